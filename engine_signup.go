package flashauth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/flashapp/flashauth/token"
)

// emailJobWelcome selects the welcome-plus-verification template on the
// mail consumer.
const emailJobWelcome = "welcomeEmail"

// SignUpInput is the registration request.
type SignUpInput struct {
	Email           string
	Username        string
	Password        string
	IsTermsAccepted bool
}

// SignUp registers a new account and dispatches its verification email.
//
// Registration never issues tokens: the account starts unverified and must
// complete [Engine.VerifyEmail] before it can sign in, so the returned
// result carries the sanitized principal with empty credentials.
//
// Email and username are pre-checked for duplicates to produce the precise
// [ErrEmailTaken]/[ErrUsernameTaken] answer; the directory's uniqueness
// constraints remain the actual guarantee, and a race that slips past the
// pre-check surfaces as [ErrConflict] from Create.
func (e *Engine) SignUp(ctx context.Context, input SignUpInput) (*SignInResult, error) {
	if e == nil || e.directory == nil || e.hasher == nil || e.cache == nil {
		return nil, ErrEngineNotReady
	}

	if !input.IsTermsAccepted {
		e.signUpFailed(ctx, ErrTermsNotAccepted, "terms")
		return nil, ErrTermsNotAccepted
	}

	if _, err := e.directory.FindByEmail(ctx, input.Email); err == nil {
		e.signUpFailed(ctx, ErrEmailTaken, "email_taken")
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	if _, err := e.directory.FindByUsername(ctx, input.Username); err == nil {
		e.signUpFailed(ctx, ErrUsernameTaken, "username_taken")
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}

	hash, err := e.hasher.Hash(input.Password)
	if err != nil {
		e.signUpFailed(ctx, err, "weak_password")
		return nil, err
	}

	principal, err := e.directory.Create(ctx, CreatePrincipalInput{
		Email:           input.Email,
		Username:        input.Username,
		PasswordHash:    hash,
		Role:            RoleUser,
		IsTermsAccepted: true,
		IPAddress:       clientIPFromContext(ctx),
	})
	if err != nil {
		e.signUpFailed(ctx, err, "create")
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}

	e.cachePrincipal(ctx, principal)
	e.sendVerificationEmail(ctx, principal)

	e.metricInc(MetricSignUpSuccess)
	e.emitAudit(ctx, auditEventSignUpSuccess, true, principal.ID, nil, nil)

	return &SignInResult{Principal: principal.Sanitized()}, nil
}

// sendVerificationEmail mints a verification token and enqueues the welcome
// email carrying its link. Fire-and-forget: signup and sign-in outcomes do
// not depend on the mail pipeline, and the user can trigger a re-send by
// attempting to sign in again.
func (e *Engine) sendVerificationEmail(ctx context.Context, p *Principal) {
	if e.mail == nil {
		return
	}

	verification, err := e.codec.Issue(token.KindVerification, p.ID, "")
	if err != nil {
		log.Print("flashauth: verification token issuance failed")
		return
	}

	job := EmailJob{
		Type: emailJobWelcome,
		Data: EmailJobData{
			To:               p.Email,
			Username:         p.Username,
			SubjectID:        p.ID,
			VerificationLink: e.verificationLink(ctx, verification),
		},
	}
	if err := e.mail.Enqueue(ctx, job); err != nil {
		log.Print("flashauth: verification email enqueue failed")
	}
}

// verificationLink builds the clickable URL for a verification token. The
// request's Referer, when present, wins over the configured frontend URL so
// the link lands on the origin the user actually signed up from.
func (e *Engine) verificationLink(ctx context.Context, verification string) string {
	base := strings.TrimRight(refererFromContext(ctx), "/")
	if base == "" {
		base = strings.TrimRight(e.config.Mail.FrontendURL, "/")
	}
	return base + e.config.Mail.VerifyPath + "?token=" + url.QueryEscape(verification)
}

func (e *Engine) signUpFailed(ctx context.Context, cause error, reason string) {
	e.emitAudit(ctx, auditEventSignUpFailure, false, "", cause, func() map[string]string {
		return map[string]string{"reason": reason}
	})
}
