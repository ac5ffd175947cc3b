// Package httpapi exposes the auth engine over HTTP.
//
// Routes live under /api/v1. Credentials travel exclusively in HttpOnly
// cookies set by the handlers; response bodies carry sanitized user data in
// a {status, data} envelope and never include tokens.
package httpapi
