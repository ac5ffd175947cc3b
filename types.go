package flashauth

import (
	"context"
	"time"
)

// Role is the single authorization attribute carried by a principal.
type Role string

const (
	// RoleUser is the default role assigned at signup.
	RoleUser Role = "user"
	// RoleAdmin is assigned administratively.
	RoleAdmin Role = "admin"
)

// Principal is the account record relevant to access decisions. Email and
// Username are globally unique among non-deleted accounts; Email is stored
// case-folded.
type Principal struct {
	ID              string
	Email           string
	Username        string
	PasswordHash    string
	Role            Role
	IsEmailVerified bool
	IsSuspended     bool
	IsDeleted       bool
	IsTermsAccepted bool
	LastLogin       time.Time
	LoginRetries    int
	CreatedAt       time.Time
}

// Sanitized returns a copy safe for caching and for client responses: the
// password hash and internal-only fields are stripped.
func (p *Principal) Sanitized() *Principal {
	if p == nil {
		return nil
	}
	out := *p
	out.PasswordHash = ""
	out.LoginRetries = 0
	return &out
}

// Field names a directory column for selective projection.
type Field string

const (
	// FieldPasswordHash includes the credential hash in the projection.
	// Never requested on cache-population paths.
	FieldPasswordHash Field = "password_hash"
	// FieldStatusFlags includes isSuspended/isEmailVerified/isDeleted.
	FieldStatusFlags Field = "status_flags"
)

// Directory is the durable store of accounts, consulted on cache miss. Its
// uniqueness constraints on email and username are part of the Engine's
// correctness argument. Implementations report [ErrConflict] on constraint
// violation and [ErrUserNotFound] for absent records.
//
// Counter mutations are expressed as dedicated atomic operations rather than
// a generic read-modify-write patch, so concurrent failed logins against the
// same account cannot lose updates.
type Directory interface {
	FindByID(ctx context.Context, id string, fields ...Field) (*Principal, error)
	FindByEmail(ctx context.Context, email string) (*Principal, error)
	FindByUsername(ctx context.Context, username string) (*Principal, error)
	Create(ctx context.Context, input CreatePrincipalInput) (*Principal, error)
	MarkEmailVerified(ctx context.Context, id string) (*Principal, error)
	RecordLoginFailure(ctx context.Context, id string) error
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error
}

// CreatePrincipalInput is the input for [Directory.Create].
type CreatePrincipalInput struct {
	Email           string
	Username        string
	PasswordHash    string
	Role            Role
	IsTermsAccepted bool
	IPAddress       string
}

// EmailJob is the payload enqueued for the email consumer. The shape mirrors
// the queue contract of the mail worker: Type selects the template, Data
// carries template fields.
type EmailJob struct {
	Type string       `json:"type"`
	Data EmailJobData `json:"data"`
}

// EmailJobData carries the per-template fields of an [EmailJob].
type EmailJobData struct {
	To               string `json:"to"`
	Username         string `json:"username,omitempty"`
	SubjectID        string `json:"subjectId,omitempty"`
	VerificationLink string `json:"verificationLink,omitempty"`
}

// EmailQueue is the async job queue the Engine enqueues verification emails
// onto. Delivery is fire-and-forget with at-least-once semantics; the Engine
// never waits for or depends on delivery success.
type EmailQueue interface {
	Enqueue(ctx context.Context, job EmailJob) error
}

// AuthResult is returned by [Engine.Authenticate]. NewAccessToken and
// NewRefreshToken are non-empty only when the request was re-authenticated
// through the refresh rotation protocol; the transport layer is responsible
// for attaching them to its response.
type AuthResult struct {
	Principal       *Principal
	NewAccessToken  string
	NewRefreshToken string
}

// Credentials is the token pair issued at sign-in and at each rotation.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// SignInResult is returned by [Engine.SignIn] and [Engine.SignUp] (the
// latter without credentials while the email is unverified).
type SignInResult struct {
	Principal   *Principal
	Credentials Credentials
}

// SessionContext identifies the authenticated request as it flows through
// the call chain. It is an explicit value, never reconstructed from dynamic
// request attributes.
type SessionContext struct {
	SubjectID string
	Role      Role
	Email     string
}
