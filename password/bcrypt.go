package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordBytes = 8

// Config carries bcrypt parameters.
type Config struct {
	Cost int
}

// Bcrypt hashes and verifies passwords. Immutable after construction.
type Bcrypt struct {
	config Config
}

// NewBcrypt validates cfg and returns a ready hasher.
func NewBcrypt(cfg Config) (*Bcrypt, error) {
	if cfg.Cost < bcrypt.MinCost || cfg.Cost > bcrypt.MaxCost {
		return nil, errors.New("bcrypt cost out of range")
	}
	if cfg.Cost < 10 {
		return nil, errors.New("bcrypt cost below hardening floor")
	}
	return &Bcrypt{config: cfg}, nil
}

// Hash returns the bcrypt hash of password.
func (b *Bcrypt) Hash(password string) (string, error) {
	// Raw string bytes exactly as provided; no Unicode normalization.
	if len(password) < minPasswordBytes {
		return "", errors.New("password must be at least 8 bytes")
	}
	if len(password) > 72 {
		// bcrypt silently truncates beyond 72 bytes; reject instead.
		return "", errors.New("password must be at most 72 bytes")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.config.Cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether password matches the stored hash. The error return
// is reserved for malformed stored hashes; an ordinary mismatch is (false, nil).
func (b *Bcrypt) Verify(password, storedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}
