package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flashapp/flashauth"
	"github.com/flashapp/flashauth/middleware"
)

// userView is the client-facing account shape. Tokens never appear here;
// they travel only as cookies.
type userView struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	Username        string     `json:"username"`
	Role            string     `json:"role"`
	IsEmailVerified bool       `json:"isEmailVerified"`
	LastLogin       *time.Time `json:"lastLogin,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func viewOf(p *flashauth.Principal) userView {
	v := userView{
		ID:              p.ID,
		Email:           p.Email,
		Username:        p.Username,
		Role:            string(p.Role),
		IsEmailVerified: p.IsEmailVerified,
		CreatedAt:       p.CreatedAt,
	}
	if !p.LastLogin.IsZero() {
		last := p.LastLogin
		v.LastLogin = &last
	}
	return v
}

// AuthHandler serves the session lifecycle endpoints.
type AuthHandler struct {
	engine  *flashauth.Engine
	cookies middleware.CookieConfig
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(engine *flashauth.Engine, cookies middleware.CookieConfig) *AuthHandler {
	return &AuthHandler{engine: engine, cookies: cookies}
}

// AuthRouter registers the auth routes.
func AuthRouter(r chi.Router, engine *flashauth.Engine, cookies middleware.CookieConfig) {
	handler := NewAuthHandler(engine, cookies)

	r.Post("/signup", handler.SignUp)
	r.Post("/signin", handler.SignIn)
	r.Post("/signout", handler.SignOut)
	r.Post("/refresh", handler.Refresh)
	r.Post("/verify-email", handler.VerifyEmail)
}

// UserRouter registers the authenticated user routes.
func UserRouter(r chi.Router, engine *flashauth.Engine, cookies middleware.CookieConfig) {
	handler := NewAuthHandler(engine, cookies)

	r.With(middleware.Protect(engine, cookies)).Get("/me", handler.Me)
}

type signUpRequest struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	IsTermsAccepted bool   `json:"isTermsAccepted"`
}

// SignUp registers an account. The response carries the unverified user;
// no cookies are set until the email is verified and the user signs in.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email, username and password are required")
		return
	}

	ctx := requestContext(r)
	result, err := h.engine.SignUp(ctx, flashauth.SignUpInput{
		Email:           req.Email,
		Username:        req.Username,
		Password:        req.Password,
		IsTermsAccepted: req.IsTermsAccepted,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeData(w, http.StatusCreated, viewOf(result.Principal))
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn authenticates a credential pair and sets the session cookies.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	ctx := requestContext(r)
	result, err := h.engine.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	h.setCookies(w, result.Credentials)
	writeData(w, http.StatusOK, viewOf(result.Principal))
}

// SignOut retires the session. Always succeeds from the client's view:
// the cookies are cleared whatever state the presented token was in.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.engine.SignOut(requestContext(r), cookieValue(r, middleware.CookieRefreshToken))
	middleware.ClearSessionCookies(w, h.cookies)
	writeData(w, http.StatusOK, nil)
}

// Refresh rotates the refresh token from its cookie and re-sets both
// session cookies.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refresh := cookieValue(r, middleware.CookieRefreshToken)
	if refresh == "" {
		writeError(w, http.StatusUnauthorized, "missing refresh token")
		return
	}

	result, err := h.engine.Rotate(requestContext(r), refresh)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	h.setCookies(w, result.Credentials)
	writeData(w, http.StatusOK, viewOf(result.Principal))
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

// VerifyEmail redeems a verification token carried in the body or, for
// direct link clicks, the "token" query parameter.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		var req verifyEmailRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			token = req.Token
		}
	}
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing verification token")
		return
	}

	principal, err := h.engine.VerifyEmail(requestContext(r), token)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeData(w, http.StatusOK, viewOf(principal))
}

// Me returns the authenticated user. Runs behind the Protect middleware,
// which has already resolved and status-checked the session.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	principal, err := h.engine.Me(r.Context(), session.SubjectID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeData(w, http.StatusOK, viewOf(principal))
}

func (h *AuthHandler) setCookies(w http.ResponseWriter, creds flashauth.Credentials) {
	accessTTL, refreshTTL := h.engine.TokenTTLs()
	middleware.SetSessionCookies(w, creds, accessTTL, refreshTTL, h.cookies)
}

// requestContext stamps the engine-visible request attributes onto the
// context.
func requestContext(r *http.Request) context.Context {
	ctx := flashauth.WithClientIP(r.Context(), clientIP(r))
	return flashauth.WithReferer(ctx, r.Referer())
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
