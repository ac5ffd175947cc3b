package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/flashapp/flashauth"
)

// Cookie names carrying the credential pair.
const (
	CookieAccessToken  = "flashAccessToken"
	CookieRefreshToken = "flashRefreshToken"
)

// CookieConfig controls the attributes of the credential cookies.
type CookieConfig struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

type sessionContextKey struct{}

// SessionFromContext returns the session injected by [Protect].
func SessionFromContext(ctx context.Context) (flashauth.SessionContext, bool) {
	sc, ok := ctx.Value(sessionContextKey{}).(flashauth.SessionContext)
	return sc, ok
}

// Protect authenticates the request from its credential cookies. Requests
// re-authenticated through refresh rotation get the rotated pair attached
// as replacement cookies before the inner handler runs, so the client's
// next request carries fresh credentials without any handler involvement.
func Protect(engine *flashauth.Engine, cookies CookieConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeAuthError(w, http.StatusUnauthorized, "unauthenticated", "")
				return
			}

			ctx := flashauth.WithClientIP(r.Context(), clientIP(r))
			ctx = flashauth.WithReferer(ctx, r.Referer())

			result, err := engine.Authenticate(ctx, cookieValue(r, CookieAccessToken), cookieValue(r, CookieRefreshToken))
			if err != nil {
				status, message, reason := classify(err)
				writeAuthError(w, status, message, reason)
				return
			}

			if result.NewAccessToken != "" {
				accessTTL, refreshTTL := engine.TokenTTLs()
				SetSessionCookies(w, flashauth.Credentials{
					AccessToken:  result.NewAccessToken,
					RefreshToken: result.NewRefreshToken,
				}, accessTTL, refreshTTL, cookies)
			}

			ctx = context.WithValue(ctx, sessionContextKey{}, flashauth.SessionContext{
				SubjectID: result.Principal.ID,
				Role:      result.Principal.Role,
				Email:     result.Principal.Email,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func classify(err error) (status int, message, reason string) {
	if unverified, ok := flashauth.AsUnverified(err); ok {
		return http.StatusUnprocessableEntity, unverified.Error(), unverified.Reason()
	}
	switch err {
	case flashauth.ErrAccountSuspended:
		return http.StatusUnauthorized, err.Error(), ""
	default:
		return http.StatusUnauthorized, "unauthenticated", ""
	}
}

func writeAuthError(w http.ResponseWriter, status int, message, reason string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "error",
		"message": message,
		"reason":  reason,
	})
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
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
