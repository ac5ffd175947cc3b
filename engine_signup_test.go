package flashauth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
)

func TestSignUpSuccess(t *testing.T) {
	_, rdb := newTestRedis(t)

	dir := newMockDirectory()
	queue := &mockEmailQueue{}
	engine := newTestEngine(t, rdb, dir, queue)

	result, err := engine.SignUp(context.Background(), SignUpInput{
		Email:           "alice@example.com",
		Username:        "alice",
		Password:        "correct horse battery",
		IsTermsAccepted: true,
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	if result.Principal.Email != "alice@example.com" {
		t.Fatalf("got email %q", result.Principal.Email)
	}
	if result.Principal.IsEmailVerified {
		t.Fatal("new account must start unverified")
	}
	if result.Credentials.AccessToken != "" || result.Credentials.RefreshToken != "" {
		t.Fatal("signup must not issue tokens")
	}
	if result.Principal.PasswordHash != "" {
		t.Fatal("signup leaked the password hash")
	}

	jobs := queue.all()
	if len(jobs) != 1 {
		t.Fatalf("got %d queued jobs, want 1", len(jobs))
	}
	if jobs[0].Type != emailJobWelcome || jobs[0].Data.Username != "alice" {
		t.Fatalf("unexpected job %+v", jobs[0])
	}
}

func TestSignUpTermsRequired(t *testing.T) {
	_, rdb := newTestRedis(t)

	dir := newMockDirectory()
	engine := newTestEngine(t, rdb, dir, nil)

	_, err := engine.SignUp(context.Background(), SignUpInput{
		Email:    "alice@example.com",
		Username: "alice",
		Password: "correct horse battery",
	})
	wantErrIs(t, err, ErrTermsNotAccepted)
	if dir.createCalls != 0 {
		t.Fatal("create must not run without accepted terms")
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	_, rdb := newTestRedis(t)

	dir := newMockDirectory(verifiedUser("u1", "alice@example.com", "alice", "x"))
	engine := newTestEngine(t, rdb, dir, nil)

	_, err := engine.SignUp(context.Background(), SignUpInput{
		Email:           "ALICE@example.com",
		Username:        "alice2",
		Password:        "correct horse battery",
		IsTermsAccepted: true,
	})
	wantErrIs(t, err, ErrEmailTaken)
}

func TestSignUpDuplicateUsername(t *testing.T) {
	_, rdb := newTestRedis(t)

	dir := newMockDirectory(verifiedUser("u1", "alice@example.com", "alice", "x"))
	engine := newTestEngine(t, rdb, dir, nil)

	_, err := engine.SignUp(context.Background(), SignUpInput{
		Email:           "alice2@example.com",
		Username:        "alice",
		Password:        "correct horse battery",
		IsTermsAccepted: true,
	})
	wantErrIs(t, err, ErrUsernameTaken)
}

func TestSignUpShortPassword(t *testing.T) {
	_, rdb := newTestRedis(t)

	engine := newTestEngine(t, rdb, newMockDirectory(), nil)

	_, err := engine.SignUp(context.Background(), SignUpInput{
		Email:           "alice@example.com",
		Username:        "alice",
		Password:        "short",
		IsTermsAccepted: true,
	})
	if err == nil {
		t.Fatal("expected a password policy error")
	}
}

func TestSignUpRefererShapesVerificationLink(t *testing.T) {
	_, rdb := newTestRedis(t)

	queue := &mockEmailQueue{}
	engine := newTestEngine(t, rdb, newMockDirectory(), queue)

	ctx := WithReferer(context.Background(), "https://beta.example.com/")
	_, err := engine.SignUp(ctx, SignUpInput{
		Email:           "alice@example.com",
		Username:        "alice",
		Password:        "correct horse battery",
		IsTermsAccepted: true,
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	jobs := queue.all()
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(jobs))
	}
	if !strings.HasPrefix(jobs[0].Data.VerificationLink, "https://beta.example.com/verify-email?token=") {
		t.Fatalf("unexpected link %q", jobs[0].Data.VerificationLink)
	}
}

func verificationTokenFromJob(t *testing.T, job EmailJob) string {
	t.Helper()

	parsed, err := url.Parse(job.Data.VerificationLink)
	if err != nil {
		t.Fatalf("bad verification link %q: %v", job.Data.VerificationLink, err)
	}
	tok := parsed.Query().Get("token")
	if tok == "" {
		t.Fatalf("no token in link %q", job.Data.VerificationLink)
	}
	return tok
}

func TestVerifyEmailFlow(t *testing.T) {
	_, rdb := newTestRedis(t)

	dir := newMockDirectory()
	queue := &mockEmailQueue{}
	engine := newTestEngine(t, rdb, dir, queue)

	if _, err := engine.SignUp(context.Background(), SignUpInput{
		Email:           "alice@example.com",
		Username:        "alice",
		Password:        "correct horse battery",
		IsTermsAccepted: true,
	}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	verification := verificationTokenFromJob(t, queue.all()[0])

	principal, err := engine.VerifyEmail(context.Background(), verification)
	if err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
	if !principal.IsEmailVerified {
		t.Fatal("expected the account to be verified")
	}
	if dir.markVerifiedCalls != 1 {
		t.Fatalf("markVerifiedCalls = %d, want 1", dir.markVerifiedCalls)
	}

	// A second redemption of the same link is a distinct, harmless error.
	_, err = engine.VerifyEmail(context.Background(), verification)
	wantErrIs(t, err, ErrEmailAlreadyVerified)
}

func TestVerifyEmailGarbageToken(t *testing.T) {
	_, rdb := newTestRedis(t)

	engine := newTestEngine(t, rdb, newMockDirectory(), nil)

	_, err := engine.VerifyEmail(context.Background(), "garbage")
	wantErrIs(t, err, ErrVerificationInvalid)
}

func TestMeReadsThroughCache(t *testing.T) {
	_, rdb := newTestRedis(t)

	dir := newMockDirectory(verifiedUser("u1", "alice@example.com", "alice", "secret-hash"))
	engine := newTestEngine(t, rdb, dir, nil)

	first, err := engine.Me(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Me failed: %v", err)
	}
	if first.PasswordHash != "" {
		t.Fatal("Me leaked the password hash")
	}

	if _, err := engine.Me(context.Background(), "u1"); err != nil {
		t.Fatalf("second Me failed: %v", err)
	}
	if dir.findByIDCalls != 1 {
		t.Fatalf("directory hit %d times, want 1", dir.findByIDCalls)
	}
}

func TestMeUnknownSubject(t *testing.T) {
	_, rdb := newTestRedis(t)

	engine := newTestEngine(t, rdb, newMockDirectory(), nil)

	_, err := engine.Me(context.Background(), "ghost")
	wantErrIs(t, err, ErrUserNotFound)
}

func TestSignUpDirectoryOutageIsClassified(t *testing.T) {
	_, rdb := newTestRedis(t)

	dir := newMockDirectory()
	engine := newTestEngine(t, rdb, dir, nil)

	driverErr := errors.New("dial tcp 10.0.0.5:5432: connection refused")
	dir.findErr = driverErr

	_, err := engine.SignUp(context.Background(), SignUpInput{
		Email:           "alice@example.com",
		Username:        "alice",
		Password:        "correct horse battery",
		IsTermsAccepted: true,
	})
	wantErrIs(t, err, ErrDirectoryUnavailable)
	if errors.Is(err, driverErr) {
		t.Fatal("driver error must not survive in the chain")
	}
}

func TestSignUpCreateFailureIsClassified(t *testing.T) {
	_, rdb := newTestRedis(t)

	dir := newMockDirectory()
	engine := newTestEngine(t, rdb, dir, nil)

	input := SignUpInput{
		Email:           "alice@example.com",
		Username:        "alice",
		Password:        "correct horse battery",
		IsTermsAccepted: true,
	}

	dir.createErr = errors.New("write: broken pipe")
	_, err := engine.SignUp(context.Background(), input)
	wantErrIs(t, err, ErrDirectoryUnavailable)

	// A uniqueness race surfaced by the store keeps its precise answer.
	dir.createErr = ErrConflict
	_, err = engine.SignUp(context.Background(), input)
	wantErrIs(t, err, ErrConflict)
}
