package flashauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type mockDirectory struct {
	mu         sync.Mutex
	users      map[string]*Principal
	byEmail    map[string]string
	byUsername map[string]string

	createErr error
	findErr   error

	findByIDCalls     int
	findByEmailCalls  int
	createCalls       int
	markVerifiedCalls int
	loginFailureCalls int
	loginSuccessCalls int
}

func newMockDirectory(users ...*Principal) *mockDirectory {
	d := &mockDirectory{
		users:      map[string]*Principal{},
		byEmail:    map[string]string{},
		byUsername: map[string]string{},
	}
	for _, u := range users {
		d.users[u.ID] = u
		d.byEmail[strings.ToLower(u.Email)] = u.ID
		d.byUsername[strings.ToLower(u.Username)] = u.ID
	}
	return d
}

func (d *mockDirectory) FindByID(_ context.Context, id string, _ ...Field) (*Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.findByIDCalls++

	if d.findErr != nil {
		return nil, d.findErr
	}
	u, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (d *mockDirectory) FindByEmail(_ context.Context, email string) (*Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.findByEmailCalls++

	if d.findErr != nil {
		return nil, d.findErr
	}
	id, ok := d.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	clone := *d.users[id]
	return &clone, nil
}

func (d *mockDirectory) FindByUsername(_ context.Context, username string) (*Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id, ok := d.byUsername[strings.ToLower(username)]
	if !ok {
		return nil, ErrUserNotFound
	}
	clone := *d.users[id]
	return &clone, nil
}

func (d *mockDirectory) Create(_ context.Context, input CreatePrincipalInput) (*Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.createCalls++

	if d.createErr != nil {
		return nil, d.createErr
	}
	if _, exists := d.byEmail[strings.ToLower(input.Email)]; exists {
		return nil, fmt.Errorf("%w: users_email_key", ErrConflict)
	}
	if _, exists := d.byUsername[strings.ToLower(input.Username)]; exists {
		return nil, fmt.Errorf("%w: users_username_key", ErrConflict)
	}

	u := &Principal{
		ID:              fmt.Sprintf("u%d", len(d.users)+1),
		Email:           input.Email,
		Username:        input.Username,
		PasswordHash:    input.PasswordHash,
		Role:            input.Role,
		IsTermsAccepted: input.IsTermsAccepted,
		CreatedAt:       time.Now().UTC(),
	}
	d.users[u.ID] = u
	d.byEmail[strings.ToLower(u.Email)] = u.ID
	d.byUsername[strings.ToLower(u.Username)] = u.ID
	clone := *u
	return &clone, nil
}

func (d *mockDirectory) MarkEmailVerified(_ context.Context, id string) (*Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.markVerifiedCalls++

	u, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u.IsEmailVerified = true
	clone := *u
	return &clone, nil
}

func (d *mockDirectory) RecordLoginFailure(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loginFailureCalls++

	u, ok := d.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.LoginRetries++
	return nil
}

func (d *mockDirectory) RecordLoginSuccess(_ context.Context, id string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loginSuccessCalls++

	u, ok := d.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.LoginRetries = 0
	u.LastLogin = at
	return nil
}

func (d *mockDirectory) retries(id string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.users[id].LoginRetries
}

type mockEmailQueue struct {
	mu         sync.Mutex
	jobs       []EmailJob
	enqueueErr error
}

func (q *mockEmailQueue) Enqueue(_ context.Context, job EmailJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *mockEmailQueue) all() []EmailJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]EmailJob, len(q.jobs))
	copy(out, q.jobs)
	return out
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.AccessSecret = []byte("test-access-secret-0123456789abcdef")
	cfg.Token.RefreshSecret = []byte("test-refresh-secret-0123456789abcde")
	cfg.Mail.FrontendURL = "https://app.example.com"
	cfg.Password.Cost = 10
	return cfg
}

func newTestEngine(t *testing.T, rdb *redis.Client, dir Directory, queue EmailQueue) *Engine {
	t.Helper()

	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithDirectory(dir).
		WithEmailQueue(queue).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return engine
}

func verifiedUser(id, email, username, passwordHash string) *Principal {
	return &Principal{
		ID:              id,
		Email:           email,
		Username:        username,
		PasswordHash:    passwordHash,
		Role:            RoleUser,
		IsEmailVerified: true,
		IsTermsAccepted: true,
		CreatedAt:       time.Now().UTC(),
	}
}

func mustHash(t *testing.T, engine *Engine, plaintext string) string {
	t.Helper()

	hash, err := engine.hasher.Hash(plaintext)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	return hash
}

func mustSignIn(t *testing.T, engine *Engine, email, password string) *SignInResult {
	t.Helper()

	result, err := engine.SignIn(context.Background(), email, password)
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	return result
}

func wantErrIs(t *testing.T, err, target error) {
	t.Helper()

	if !errors.Is(err, target) {
		t.Fatalf("got error %v, want %v", err, target)
	}
}
