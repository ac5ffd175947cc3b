package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/flashapp/flashauth"
	"github.com/flashapp/flashauth/directory/migrations"
)

// uniqueViolation is the Postgres SQLSTATE for a unique-constraint error.
const uniqueViolation = "23505"

// Store implements flashauth.Directory over PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ flashauth.Directory = (*Store)(nil)

// Open opens a Postgres connection using the given DSN and verifies it with
// a ping. Caller must call Close when done.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// RunMigrations sets up goose with the embedded migrations and applies them.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// principalColumns is the projection shared by every read. password_hash is
// appended only where the caller asked for it.
const principalColumns = `id, email, username, role,
	is_email_verified, is_suspended, is_deleted, is_terms_accepted,
	login_retries, last_login, created_at`

func scanPrincipal(row *sql.Row, withHash bool) (*flashauth.Principal, error) {
	var (
		p         flashauth.Principal
		lastLogin sql.NullTime
	)
	dest := []any{
		&p.ID, &p.Email, &p.Username, &p.Role,
		&p.IsEmailVerified, &p.IsSuspended, &p.IsDeleted, &p.IsTermsAccepted,
		&p.LoginRetries, &lastLogin, &p.CreatedAt,
	}
	if withHash {
		dest = append(dest, &p.PasswordHash)
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, flashauth.ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if lastLogin.Valid {
		p.LastLogin = lastLogin.Time
	}
	return &p, nil
}

// FindByID loads a principal by primary key. The password hash is included
// only when fields requests it.
func (s *Store) FindByID(ctx context.Context, id string, fields ...flashauth.Field) (*flashauth.Principal, error) {
	withHash := false
	for _, f := range fields {
		if f == flashauth.FieldPasswordHash {
			withHash = true
		}
	}

	cols := principalColumns
	if withHash {
		cols += ", password_hash"
	}
	query := `SELECT ` + cols + ` FROM users WHERE id = $1`

	return scanPrincipal(s.db.QueryRowContext(ctx, query, id), withHash)
}

// FindByEmail loads a principal by email, case-insensitively, including the
// password hash for credential checks.
func (s *Store) FindByEmail(ctx context.Context, email string) (*flashauth.Principal, error) {
	query := `SELECT ` + principalColumns + `, password_hash
		FROM users WHERE lower(email) = lower($1)`
	return scanPrincipal(s.db.QueryRowContext(ctx, query, email), true)
}

// FindByUsername loads a principal by username, case-insensitively.
func (s *Store) FindByUsername(ctx context.Context, username string) (*flashauth.Principal, error) {
	query := `SELECT ` + principalColumns + `
		FROM users WHERE lower(username) = lower($1)`
	return scanPrincipal(s.db.QueryRowContext(ctx, query, username), false)
}

// Create inserts a new account. Unique-constraint violations on email or
// username surface as flashauth.ErrConflict.
func (s *Store) Create(ctx context.Context, input flashauth.CreatePrincipalInput) (*flashauth.Principal, error) {
	query := `INSERT INTO users
			(email, username, password_hash, role, is_terms_accepted, signup_ip)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		RETURNING ` + principalColumns

	row := s.db.QueryRowContext(ctx, query,
		input.Email, input.Username, input.PasswordHash,
		string(input.Role), input.IsTermsAccepted, input.IPAddress,
	)
	p, err := scanPrincipal(row, false)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %s", flashauth.ErrConflict, pgErr.ConstraintName)
		}
		return nil, err
	}
	return p, nil
}

// MarkEmailVerified flips the verified flag and returns the updated row.
func (s *Store) MarkEmailVerified(ctx context.Context, id string) (*flashauth.Principal, error) {
	query := `UPDATE users
		SET is_email_verified = TRUE, updated_at = now()
		WHERE id = $1
		RETURNING ` + principalColumns
	return scanPrincipal(s.db.QueryRowContext(ctx, query, id), false)
}

// RecordLoginFailure bumps the failed-login counter. The increment happens
// in the database so concurrent failures against one account never lose
// updates.
func (s *Store) RecordLoginFailure(ctx context.Context, id string) error {
	query := `UPDATE users
		SET login_retries = login_retries + 1, updated_at = now()
		WHERE id = $1`
	return s.exec(ctx, query, id)
}

// RecordLoginSuccess resets the failed-login counter and stamps last_login.
func (s *Store) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE users
		SET login_retries = 0, last_login = $2, updated_at = now()
		WHERE id = $1`
	return s.exec(ctx, query, id, at)
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return flashauth.ErrUserNotFound
	}
	return nil
}
