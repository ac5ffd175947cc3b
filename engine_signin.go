package flashauth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// SignIn authenticates an email/password pair and establishes a session.
//
// Every credential failure (unknown email, deleted account, wrong
// password) reports the identical [ErrInvalidCredentials], so the response
// does not reveal whether the email is registered. Wrong passwords against
// a live account additionally bump its failed-login counter.
//
// Accounts that pass the password check are still gated on status: an
// unverified email re-sends the verification mail and fails with
// [*UnverifiedEmailError], and a suspended account fails with
// [ErrAccountSuspended]. Neither issues tokens.
func (e *Engine) SignIn(ctx context.Context, email, plaintext string) (*SignInResult, error) {
	if e == nil || e.directory == nil || e.hasher == nil || e.cache == nil {
		return nil, ErrEngineNotReady
	}

	principal, err := e.directory.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.signInFailed(ctx, "", "unknown_email")
			return nil, ErrInvalidCredentials
		}
		e.signInFailed(ctx, "", "directory")
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	if principal.IsDeleted {
		e.signInFailed(ctx, principal.ID, "deleted")
		return nil, ErrInvalidCredentials
	}

	ok, err := e.hasher.Verify(plaintext, principal.PasswordHash)
	if err != nil {
		e.signInFailed(ctx, principal.ID, "hash")
		return nil, err
	}
	if !ok {
		if err := e.directory.RecordLoginFailure(ctx, principal.ID); err != nil {
			log.Print("flashauth: failed-login counter update failed")
		}
		e.signInFailed(ctx, principal.ID, "bad_password")
		return nil, ErrInvalidCredentials
	}

	// Password accepted; the account may still be unable to hold a
	// session. Unverified is checked before suspended here because it is
	// the state the caller can act on immediately.
	if !principal.IsEmailVerified {
		e.sendVerificationEmail(ctx, principal)
		e.signInFailed(ctx, principal.ID, "email_unverified")
		return nil, &UnverifiedEmailError{Email: principal.Email}
	}
	if principal.IsSuspended {
		e.signInFailed(ctx, principal.ID, "suspended")
		return nil, ErrAccountSuspended
	}

	creds, err := e.issueCredentials(ctx, principal.ID)
	if err != nil {
		e.signInFailed(ctx, principal.ID, "issue")
		return nil, err
	}

	now := time.Now().UTC()
	if err := e.directory.RecordLoginSuccess(ctx, principal.ID, now); err != nil {
		log.Print("flashauth: last-login update failed")
	} else {
		principal.LastLogin = now
		principal.LoginRetries = 0
	}

	e.cachePrincipal(ctx, principal)
	e.metricInc(MetricSignInSuccess)
	e.emitAudit(ctx, auditEventSignInSuccess, true, principal.ID, nil, nil)

	return &SignInResult{
		Principal:   principal.Sanitized(),
		Credentials: creds,
	}, nil
}

func (e *Engine) signInFailed(ctx context.Context, subjectID, reason string) {
	e.metricInc(MetricSignInFailure)
	e.emitAudit(ctx, auditEventSignInFailure, false, subjectID, ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"reason": reason}
	})
}
