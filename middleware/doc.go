// Package middleware provides the HTTP guard that authenticates requests
// against the engine, plus a Redis-backed per-IP rate limiter.
//
// The guard reads the credential cookies, runs the engine's authenticate
// flow, and injects the resulting session into the request context. When
// the engine re-authenticated the request through refresh rotation, the
// rotated pair is attached to the response as replacement cookies before
// the inner handler runs.
package middleware
