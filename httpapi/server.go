package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/flashapp/flashauth"
	"github.com/flashapp/flashauth/middleware"
)

// ServerConfig carries the HTTP-layer settings.
type ServerConfig struct {
	Port    int
	Cookies middleware.CookieConfig
	// RateLimit applies per-IP throttling to the auth routes when a Redis
	// client is supplied.
	RateLimit middleware.RateLimitConfig
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
}

// New constructs a Server with the standard middleware chain and the auth
// routes mounted under /api/v1.
func New(engine *flashauth.Engine, redisClient redis.UniversalClient, cfg ServerConfig) *Server {
	router := chi.NewRouter()
	router.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Logger,
		chimw.Timeout(60*time.Second),
	)

	router.Get("/healthz", healthz(engine))

	rateLimit := middleware.RateLimit(redisClient, cfg.RateLimit)
	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(rateLimit)
			AuthRouter(r, engine, cfg.Cookies)
		})
		r.Route("/user", func(r chi.Router) {
			UserRouter(r, engine, cfg.Cookies)
		})
	})

	port := cfg.Port
	if port == 0 {
		port = 8080
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		router: router,
	}
}

// healthz reports readiness: the session cache must answer, since refresh
// rotation fails closed without it.
func healthz(engine *flashauth.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := engine.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "session cache unreachable")
			return
		}
		writeData(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// Router exposes the chi router, mainly for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
