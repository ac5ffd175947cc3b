package flashauth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/flashapp/flashauth/token"
)

func TestSignInSuccess(t *testing.T) {
	_, rdb := newTestRedis(t)

	dir := newMockDirectory()
	queue := &mockEmailQueue{}
	engine := newTestEngine(t, rdb, dir, queue)

	u := verifiedUser("u1", "alice@example.com", "alice", mustHash(t, engine, "correct horse battery"))
	dir.users["u1"] = u
	dir.byEmail["alice@example.com"] = "u1"
	dir.byUsername["alice"] = "u1"

	result := mustSignIn(t, engine, "alice@example.com", "correct horse battery")

	if result.Credentials.AccessToken == "" || result.Credentials.RefreshToken == "" {
		t.Fatal("expected a credential pair")
	}
	if result.Principal.PasswordHash != "" {
		t.Fatal("sign-in leaked the password hash")
	}
	if result.Principal.LastLogin.IsZero() {
		t.Fatal("expected last login to be stamped")
	}
	if dir.loginSuccessCalls != 1 {
		t.Fatalf("loginSuccessCalls = %d, want 1", dir.loginSuccessCalls)
	}

	// The refresh token is live in the ledger.
	if _, err := engine.Rotate(context.Background(), result.Credentials.RefreshToken); err != nil {
		t.Fatalf("rotating the fresh token failed: %v", err)
	}

	// The projection was cached, so an authenticate does not touch the
	// directory again.
	before := dir.findByIDCalls
	access, err := engine.codec.Issue(token.KindAccess, "u1", "")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := engine.Authenticate(context.Background(), access, ""); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if dir.findByIDCalls != before {
		t.Fatal("expected the cached projection to serve the lookup")
	}
}

func TestSignInWrongPasswordIncrementsRetries(t *testing.T) {
	_, rdb := newTestRedis(t)

	dir := newMockDirectory()
	engine := newTestEngine(t, rdb, dir, nil)

	u := verifiedUser("u1", "alice@example.com", "alice", mustHash(t, engine, "right-password"))
	dir.users["u1"] = u
	dir.byEmail["alice@example.com"] = "u1"

	for i := 1; i <= 3; i++ {
		_, err := engine.SignIn(context.Background(), "alice@example.com", "wrong-password")
		wantErrIs(t, err, ErrInvalidCredentials)
		if got := dir.retries("u1"); got != i {
			t.Fatalf("retries = %d after attempt %d", got, i)
		}
	}

	// A successful sign-in resets the counter.
	mustSignIn(t, engine, "alice@example.com", "right-password")
	if got := dir.retries("u1"); got != 0 {
		t.Fatalf("retries = %d after success, want 0", got)
	}
}

func TestSignInUnknownEmailIndistinguishable(t *testing.T) {
	_, rdb := newTestRedis(t)

	dir := newMockDirectory()
	engine := newTestEngine(t, rdb, dir, nil)

	u := verifiedUser("u1", "alice@example.com", "alice", mustHash(t, engine, "right-password"))
	dir.users["u1"] = u
	dir.byEmail["alice@example.com"] = "u1"

	_, errUnknown := engine.SignIn(context.Background(), "nobody@example.com", "whatever-pass")
	_, errWrongPw := engine.SignIn(context.Background(), "alice@example.com", "wrong-password")

	wantErrIs(t, errUnknown, ErrInvalidCredentials)
	wantErrIs(t, errWrongPw, ErrInvalidCredentials)
	if errUnknown.Error() != errWrongPw.Error() {
		t.Fatalf("error messages differ: %q vs %q", errUnknown, errWrongPw)
	}
}

func TestSignInUnverifiedResendsVerification(t *testing.T) {
	_, rdb := newTestRedis(t)

	dir := newMockDirectory()
	queue := &mockEmailQueue{}
	engine := newTestEngine(t, rdb, dir, queue)

	u := verifiedUser("u1", "alice@example.com", "alice", mustHash(t, engine, "right-password"))
	u.IsEmailVerified = false
	dir.users["u1"] = u
	dir.byEmail["alice@example.com"] = "u1"

	_, err := engine.SignIn(context.Background(), "alice@example.com", "right-password")
	unverified, ok := AsUnverified(err)
	if !ok {
		t.Fatalf("got %v, want UnverifiedEmailError", err)
	}
	if unverified.Email != "alice@example.com" {
		t.Fatalf("got email %q", unverified.Email)
	}

	jobs := queue.all()
	if len(jobs) != 1 {
		t.Fatalf("got %d queued jobs, want 1", len(jobs))
	}
	job := jobs[0]
	if job.Type != emailJobWelcome || job.Data.To != "alice@example.com" {
		t.Fatalf("unexpected job %+v", job)
	}
	if !strings.Contains(job.Data.VerificationLink, "/verify-email?token=") {
		t.Fatalf("unexpected verification link %q", job.Data.VerificationLink)
	}
}

func TestSignInSuspended(t *testing.T) {
	_, rdb := newTestRedis(t)

	dir := newMockDirectory()
	engine := newTestEngine(t, rdb, dir, nil)

	u := verifiedUser("u1", "alice@example.com", "alice", mustHash(t, engine, "right-password"))
	u.IsSuspended = true
	dir.users["u1"] = u
	dir.byEmail["alice@example.com"] = "u1"

	_, err := engine.SignIn(context.Background(), "alice@example.com", "right-password")
	wantErrIs(t, err, ErrAccountSuspended)
}

func TestSignOutRetiresRefreshToken(t *testing.T) {
	_, rdb := newTestRedis(t)

	dir := newMockDirectory()
	engine := newTestEngine(t, rdb, dir, nil)

	u := verifiedUser("u1", "alice@example.com", "alice", mustHash(t, engine, "right-password"))
	dir.users["u1"] = u
	dir.byEmail["alice@example.com"] = "u1"

	result := mustSignIn(t, engine, "alice@example.com", "right-password")
	engine.SignOut(context.Background(), result.Credentials.RefreshToken)

	// Voluntary retirement, not a replay: the ledger entry is simply gone.
	_, err := engine.Rotate(context.Background(), result.Credentials.RefreshToken)
	wantErrIs(t, err, ErrRefreshInvalid)
}

func TestSignOutToleratesGarbage(t *testing.T) {
	_, rdb := newTestRedis(t)

	engine := newTestEngine(t, rdb, newMockDirectory(), nil)

	engine.SignOut(context.Background(), "garbage")
	engine.SignOut(context.Background(), "")
}

func TestSignInDirectoryOutageIsClassified(t *testing.T) {
	_, rdb := newTestRedis(t)

	dir := newMockDirectory()
	engine := newTestEngine(t, rdb, dir, nil)

	driverErr := errors.New("dial tcp 10.0.0.5:5432: connection refused")
	dir.findErr = driverErr

	_, err := engine.SignIn(context.Background(), "alice@example.com", "whatever123")
	wantErrIs(t, err, ErrDirectoryUnavailable)
	if errors.Is(err, driverErr) {
		t.Fatal("driver error must not survive in the chain")
	}
}
