package flashauth

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	"github.com/flashapp/flashauth/cache"
	"github.com/flashapp/flashauth/token"
)

// Rotate exchanges a refresh token for a new credential pair, retiring the
// presented token in the same atomic step. Each refresh token rotates at
// most once: a second presentation within the used-marker window fails with
// [ErrReplayDetected].
//
// The ledger is authoritative. A token whose signature verifies but whose
// id has no live ledger entry (signed out, already rotated, or expired out
// of the ledger) fails with [ErrRefreshInvalid]. Ledger unavailability
// fails closed.
func (e *Engine) Rotate(ctx context.Context, refreshToken string) (*SignInResult, error) {
	if e == nil || e.codec == nil || e.cache == nil || e.directory == nil {
		return nil, ErrEngineNotReady
	}

	principal, creds, err := e.rotateInternal(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return &SignInResult{
		Principal:   principal.Sanitized(),
		Credentials: creds,
	}, nil
}

func (e *Engine) rotateInternal(ctx context.Context, refreshToken string) (*Principal, Credentials, error) {
	claims, err := e.codec.Verify(token.KindRefresh, refreshToken)
	if err != nil {
		e.rotateFailed(ctx, "", ErrRefreshInvalid, "bad_token")
		return nil, Credentials{}, ErrRefreshInvalid
	}

	subjectID, err := e.cache.ConsumeRefresh(ctx, claims.TokenID)
	if err != nil {
		switch {
		case errors.Is(err, cache.ErrRefreshReplayed):
			e.metricInc(MetricReplayDetected)
			e.emitAudit(ctx, auditEventReplayDetected, false, claims.SubjectID, ErrReplayDetected, func() map[string]string {
				return map[string]string{"token_id": claims.TokenID}
			})
			return nil, Credentials{}, ErrReplayDetected
		case errors.Is(err, cache.ErrRefreshMissing):
			e.rotateFailed(ctx, claims.SubjectID, ErrRefreshInvalid, "not_in_ledger")
			return nil, Credentials{}, ErrRefreshInvalid
		default:
			// Ledger unreachable. Accepting a refresh token we cannot
			// check for reuse would defeat single-use, so reject.
			e.rotateFailed(ctx, claims.SubjectID, err, "ledger_unavailable")
			return nil, Credentials{}, ErrUnauthenticated
		}
	}
	if subjectID != claims.SubjectID {
		e.rotateFailed(ctx, claims.SubjectID, ErrRefreshInvalid, "subject_mismatch")
		return nil, Credentials{}, ErrRefreshInvalid
	}

	principal, err := e.resolvePrincipal(ctx, subjectID)
	if err != nil {
		e.rotateFailed(ctx, subjectID, err, "unknown_subject")
		return nil, Credentials{}, failClosed(err)
	}
	if err := checkStatus(principal); err != nil {
		e.rotateFailed(ctx, subjectID, err, "account_status")
		return nil, Credentials{}, err
	}

	creds, err := e.issueCredentials(ctx, subjectID)
	if err != nil {
		e.rotateFailed(ctx, subjectID, err, "issue")
		return nil, Credentials{}, ErrUnauthenticated
	}

	e.metricInc(MetricRotateSuccess)
	e.emitAudit(ctx, auditEventRotateSuccess, true, subjectID, nil, nil)
	return principal, creds, nil
}

// issueCredentials mints an access/refresh pair and registers the refresh
// token id in the ledger. A token that was signed but never registered is
// unusable, so registration failure aborts the issuance.
func (e *Engine) issueCredentials(ctx context.Context, subjectID string) (Credentials, error) {
	access, err := e.codec.Issue(token.KindAccess, subjectID, "")
	if err != nil {
		return Credentials{}, err
	}

	tokenID := uuid.NewString()
	refresh, err := e.codec.Issue(token.KindRefresh, subjectID, tokenID)
	if err != nil {
		return Credentials{}, err
	}
	if err := e.cache.RegisterRefresh(ctx, tokenID, subjectID, e.config.Token.RefreshTTL); err != nil {
		return Credentials{}, err
	}
	return Credentials{AccessToken: access, RefreshToken: refresh}, nil
}

func (e *Engine) rotateFailed(ctx context.Context, subjectID string, cause error, reason string) {
	e.metricInc(MetricRotateFailure)
	e.emitAudit(ctx, auditEventRotateInvalid, false, subjectID, cause, func() map[string]string {
		return map[string]string{"reason": reason}
	})
}

// SignOut retires the presented refresh token so it can no longer rotate.
// Best-effort and always successful from the caller's perspective: a
// malformed token, a token already absent from the ledger, and even a ledger
// outage all end the same way for the client, which discards its cookies
// regardless. Uses plain revocation rather than the used-marker protocol:
// sign-out is a voluntary retirement, not a replay signal.
func (e *Engine) SignOut(ctx context.Context, refreshToken string) {
	if e == nil || e.codec == nil || e.cache == nil {
		return
	}

	claims, err := e.codec.Verify(token.KindRefresh, refreshToken)
	if err != nil || claims.TokenID == "" {
		e.emitAudit(ctx, auditEventSignOut, true, "", nil, nil)
		return
	}
	if err := e.cache.RevokeRefresh(ctx, claims.TokenID); err != nil {
		log.Print("flashauth: refresh revocation failed during sign-out")
	}
	e.emitAudit(ctx, auditEventSignOut, true, claims.SubjectID, nil, nil)
}
