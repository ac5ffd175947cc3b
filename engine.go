package flashauth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/flashapp/flashauth/cache"
	"github.com/flashapp/flashauth/password"
	"github.com/flashapp/flashauth/token"
)

// Engine is the authentication state machine. Configure through [Builder]
// and treat as immutable afterwards; all methods are safe for concurrent
// use. The only shared mutable state is external, in the session cache and
// the user directory, and each of their operations is individually atomic.
type Engine struct {
	config    Config
	codec     *token.Codec
	cache     *cache.Store
	directory Directory
	mail      EmailQueue
	hasher    *password.Bcrypt
	audit     *auditDispatcher
	metrics   *Metrics
}

// Close flushes and stops the audit dispatcher. The Engine must not be used
// after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports audit events discarded under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Ping probes the session cache. A failure means refresh rotation is
// rejecting everything (the ledger fails closed), so health checks should
// treat it as not-ready.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.cache == nil {
		return ErrEngineNotReady
	}
	if _, err := e.cache.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// TokenTTLs reports the configured access and refresh lifetimes, for
// transports that need matching cookie expiries.
func (e *Engine) TokenTTLs() (access, refresh time.Duration) {
	if e == nil {
		return 0, 0
	}
	return e.config.Token.AccessTTL, e.config.Token.RefreshTTL
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// Authenticate resolves a possibly-absent credential pair into a verified
// principal.
//
// A valid access token authenticates by itself: the principal is resolved
// cache-then-directory and checked against the account-status invariants.
// When the access token is absent, expired, or carries a bad signature, the
// request falls through to refresh-based re-authentication, which runs the
// full rotation protocol and returns a fresh credential pair in the result.
// With no usable credential at all the call fails with [ErrUnauthenticated].
//
// Failure modes: [ErrUnauthenticated], [ErrAccountSuspended],
// [*UnverifiedEmailError], [ErrReplayDetected]. Unexpected internal errors
// are collapsed into [ErrUnauthenticated].
func (e *Engine) Authenticate(ctx context.Context, accessToken, refreshToken string) (*AuthResult, error) {
	if e == nil || e.codec == nil || e.cache == nil || e.directory == nil {
		return nil, ErrEngineNotReady
	}

	if accessToken != "" {
		claims, err := e.codec.Verify(token.KindAccess, accessToken)
		if err == nil {
			principal, err := e.resolvePrincipal(ctx, claims.SubjectID)
			if err != nil {
				return nil, failClosed(err)
			}
			if err := checkStatus(principal); err != nil {
				return nil, err
			}
			return &AuthResult{Principal: principal}, nil
		}
		// Expired or tampered access tokens are recoverable only through
		// the refresh path.
		if refreshToken == "" {
			return nil, ErrUnauthenticated
		}
	}

	if refreshToken == "" {
		return nil, ErrUnauthenticated
	}

	principal, creds, err := e.rotateInternal(ctx, refreshToken)
	if err != nil {
		return nil, failClosed(err)
	}
	return &AuthResult{
		Principal:       principal,
		NewAccessToken:  creds.AccessToken,
		NewRefreshToken: creds.RefreshToken,
	}, nil
}

// Me returns the sanitized principal for a subject id, served read-through.
func (e *Engine) Me(ctx context.Context, subjectID string) (*Principal, error) {
	if e == nil || e.cache == nil || e.directory == nil {
		return nil, ErrEngineNotReady
	}
	if subjectID == "" {
		return nil, ErrUserNotFound
	}

	principal, err := e.resolvePrincipal(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return principal.Sanitized(), nil
}

// resolvePrincipal performs the cache-then-directory read-through. On a
// directory fallback the sanitized projection is written back with the
// access-TTL-scale lifetime so subsequent requests in the same window avoid
// the directory. Cache unavailability here degrades to a miss.
func (e *Engine) resolvePrincipal(ctx context.Context, subjectID string) (*Principal, error) {
	if cached, ok := e.cache.GetUser(ctx, subjectID); ok {
		e.metricInc(MetricCacheHit)
		return principalFromProjection(cached), nil
	}
	e.metricInc(MetricCacheMiss)

	principal, err := e.directory.FindByID(ctx, subjectID, FieldStatusFlags)
	if err != nil {
		return nil, err
	}

	e.cachePrincipal(ctx, principal)
	return principal, nil
}

// cachePrincipal writes the sanitized projection back. Best-effort: a cache
// outage must not fail the request it is optimizing.
func (e *Engine) cachePrincipal(ctx context.Context, p *Principal) {
	if p == nil {
		return
	}
	if err := e.cache.SetUser(ctx, projectionFromPrincipal(p), e.config.Cache.UserTTL); err != nil {
		log.Print("flashauth: user projection cache write failed")
	}
}

// checkStatus enforces the account-status invariants on a resolved
// principal. Suspension is reported first: it is terminal, while the
// unverified state is remediable.
func checkStatus(p *Principal) error {
	if p == nil || p.IsDeleted {
		return ErrUnauthenticated
	}
	if p.IsSuspended {
		return ErrAccountSuspended
	}
	if !p.IsEmailVerified {
		return &UnverifiedEmailError{Email: p.Email}
	}
	return nil
}

// failClosed collapses everything outside the exposed taxonomy into
// ErrUnauthenticated.
func failClosed(err error) error {
	if _, ok := AsUnverified(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrAccountSuspended),
		errors.Is(err, ErrReplayDetected),
		errors.Is(err, ErrUnauthenticated):
		return err
	default:
		return ErrUnauthenticated
	}
}

func principalFromProjection(u *cache.User) *Principal {
	return &Principal{
		ID:              u.ID,
		Email:           u.Email,
		Username:        u.Username,
		Role:            Role(u.Role),
		IsEmailVerified: u.IsEmailVerified,
		IsSuspended:     u.IsSuspended,
		IsDeleted:       u.IsDeleted,
		LastLogin:       u.LastLogin,
		CreatedAt:       u.CreatedAt,
	}
}

func projectionFromPrincipal(p *Principal) *cache.User {
	return &cache.User{
		ID:              p.ID,
		Email:           p.Email,
		Username:        p.Username,
		Role:            string(p.Role),
		IsEmailVerified: p.IsEmailVerified,
		IsSuspended:     p.IsSuspended,
		IsDeleted:       p.IsDeleted,
		LastLogin:       p.LastLogin,
		CreatedAt:       p.CreatedAt,
	}
}
