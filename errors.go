package flashauth

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when no usable credential is present,
	// or when an unexpected internal failure occurs on an authentication
	// path (fail closed).
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredentials is returned for a bad email/password pair. The
	// error is identical whether the email is unknown or the password is
	// wrong, to avoid account enumeration.
	ErrInvalidCredentials = errors.New("email or password is incorrect")
	// ErrAccountSuspended is returned for a suspended principal. Suspension
	// is terminal and takes precedence over the unverified-email state.
	ErrAccountSuspended = errors.New("account suspended")
	// ErrRefreshInvalid is returned when a refresh token fails signature or
	// expiry verification, or its ledger entry is gone.
	ErrRefreshInvalid = errors.New("invalid or expired refresh token")
	// ErrReplayDetected is returned when an already-rotated refresh token is
	// presented again. Security-significant: it indicates possible token
	// theft and is kept distinct from ordinary invalidity.
	ErrReplayDetected = errors.New("refresh token reuse detected")
	// ErrEmailTaken is returned at signup for a duplicate email.
	ErrEmailTaken = errors.New("user already exists")
	// ErrUsernameTaken is returned at signup for a duplicate username.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrConflict is the generic unique-constraint violation reported by the
	// directory when the pre-checks race with a concurrent signup.
	ErrConflict = errors.New("account conflict")
	// ErrTermsNotAccepted is returned at signup when the terms flag is unset.
	ErrTermsNotAccepted = errors.New("terms and conditions not accepted")
	// ErrUserNotFound is returned by profile lookups for unknown ids.
	ErrUserNotFound = errors.New("user not found")
	// ErrVerificationInvalid is returned for a malformed or expired email
	// verification token.
	ErrVerificationInvalid = errors.New("invalid verification token")
	// ErrEmailAlreadyVerified is returned when a verification token is
	// presented for an already-verified account.
	ErrEmailAlreadyVerified = errors.New("email already verified")
	// ErrCacheUnavailable wraps Redis failures on paths where the cache is
	// the source of truth (the refresh-token ledger).
	ErrCacheUnavailable = errors.New("session cache unavailable")
	// ErrDirectoryUnavailable wraps directory failures other than the
	// lookup's own outcome. The driver error is folded into the message so
	// its chain never crosses the Engine boundary.
	ErrDirectoryUnavailable = errors.New("user directory unavailable")
	// ErrEngineNotReady is returned when an Engine is used before Build
	// wired its dependencies.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// UnverifiedEmailError is the distinguished failure for a valid principal
// whose email has not been verified. It carries the email so the transport
// layer can scope a restricted allowance to the verify-email endpoint only.
type UnverifiedEmailError struct {
	Email string
}

func (e *UnverifiedEmailError) Error() string {
	return "email is yet to be verified"
}

// Reason returns the machine-readable reason code surfaced to clients,
// e.g. "email-unverified:alice@x.com".
func (e *UnverifiedEmailError) Reason() string {
	return fmt.Sprintf("email-unverified:%s", e.Email)
}

// AsUnverified reports whether err is an [UnverifiedEmailError] and returns
// it when so.
func AsUnverified(err error) (*UnverifiedEmailError, bool) {
	var ue *UnverifiedEmailError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
