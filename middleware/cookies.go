package middleware

import (
	"net/http"
	"time"

	"github.com/flashapp/flashauth"
)

// SetSessionCookies attaches the credential pair to the response. Each
// cookie expires with its token so the browser stops sending dead
// credentials.
func SetSessionCookies(w http.ResponseWriter, creds flashauth.Credentials, accessTTL, refreshTTL time.Duration, cfg CookieConfig) {
	http.SetCookie(w, sessionCookie(CookieAccessToken, creds.AccessToken, accessTTL, cfg))
	http.SetCookie(w, sessionCookie(CookieRefreshToken, creds.RefreshToken, refreshTTL, cfg))
}

// ClearSessionCookies expires both credential cookies.
func ClearSessionCookies(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, sessionCookie(CookieAccessToken, "", -time.Hour, cfg))
	http.SetCookie(w, sessionCookie(CookieRefreshToken, "", -time.Hour, cfg))
}

func sessionCookie(name, value string, ttl time.Duration, cfg CookieConfig) *http.Cookie {
	sameSite := cfg.SameSite
	if sameSite == 0 {
		sameSite = http.SameSiteLaxMode
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: sameSite,
	}
}
