package flashauth

import (
	"context"
	"errors"
	"log"

	"github.com/flashapp/flashauth/token"
)

// VerifyEmail redeems a verification token and flips the account's
// verified flag.
//
// Expired, malformed, and unknown-subject tokens all fail with
// [ErrVerificationInvalid]. Redeeming against an already-verified account
// fails with [ErrEmailAlreadyVerified] so a double-clicked link reads as a
// distinct, harmless outcome. On success the cached projection is dropped
// rather than rewritten; the next authenticated request repopulates it from
// the directory.
func (e *Engine) VerifyEmail(ctx context.Context, verification string) (*Principal, error) {
	if e == nil || e.codec == nil || e.directory == nil || e.cache == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.codec.Verify(token.KindVerification, verification)
	if err != nil {
		return nil, ErrVerificationInvalid
	}

	// The cached projection answers the already-verified case without a
	// directory round trip.
	if cached, ok := e.cache.GetUser(ctx, claims.SubjectID); ok && cached.IsEmailVerified {
		return nil, ErrEmailAlreadyVerified
	}

	principal, err := e.directory.FindByID(ctx, claims.SubjectID, FieldStatusFlags)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrVerificationInvalid
		}
		return nil, err
	}
	if principal.IsDeleted {
		return nil, ErrVerificationInvalid
	}
	if principal.IsEmailVerified {
		return nil, ErrEmailAlreadyVerified
	}

	updated, err := e.directory.MarkEmailVerified(ctx, principal.ID)
	if err != nil {
		return nil, err
	}

	// Invalidate instead of rewrite: the delete is idempotent and cannot
	// race a concurrent reader into caching the stale unverified row for
	// a full TTL.
	if err := e.cache.DeleteUser(ctx, updated.ID); err != nil {
		log.Print("flashauth: user projection invalidation failed")
	}

	e.metricInc(MetricEmailVerified)
	e.emitAudit(ctx, auditEventEmailVerified, true, updated.ID, nil, nil)

	return updated.Sanitized(), nil
}
