package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind selects the credential class and with it the signing secret and TTL.
type Kind int

const (
	// KindAccess is the short-lived stateless bearer credential.
	KindAccess Kind = iota
	// KindRefresh is the longer-lived rotating credential carrying a jti.
	KindRefresh
	// KindVerification is the email-verification credential.
	KindVerification
)

var (
	// ErrExpired is returned when a token's expiry instant has passed.
	ErrExpired = errors.New("token expired")
	// ErrMalformed is returned for any other verification failure:
	// bad structure, wrong signing method, invalid signature, missing
	// subject.
	ErrMalformed = errors.New("token malformed or signature invalid")
)

// Config carries the per-kind secrets and lifetimes.
type Config struct {
	AccessSecret       []byte
	RefreshSecret      []byte
	VerificationSecret []byte

	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	VerificationTTL time.Duration

	Issuer string
	Leeway time.Duration
}

// Claims is the verified content of a token. TokenID is set for refresh
// tokens only.
type Claims struct {
	SubjectID string
	TokenID   string
}

// Codec signs and verifies tokens. Secrets are immutable after construction.
type Codec struct {
	config Config
}

// NewCodec validates cfg and returns a ready codec. VerificationSecret
// defaults to AccessSecret.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.AccessSecret) == 0 {
		return nil, errors.New("access secret required")
	}
	if len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("refresh secret required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if len(cfg.VerificationSecret) == 0 {
		cfg.VerificationSecret = cfg.AccessSecret
	}
	if cfg.VerificationTTL <= 0 {
		cfg.VerificationTTL = 24 * time.Hour
	}
	return &Codec{config: cfg}, nil
}

// Issue signs a token of the given kind for subjectID. tokenID is required
// for KindRefresh and ignored otherwise.
func (c *Codec) Issue(kind Kind, subjectID, tokenID string) (string, error) {
	if subjectID == "" {
		return "", errors.New("subject id required")
	}
	if kind == KindRefresh && tokenID == "" {
		return "", errors.New("token id required for refresh tokens")
	}

	secret, ttl, err := c.material(kind)
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subjectID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    c.config.Issuer,
	}
	if kind == KindRefresh {
		claims.ID = tokenID
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Verify parses and validates a token of the given kind. Failure is always
// classified as [ErrExpired] or [ErrMalformed]; raw library errors never
// escape.
func (c *Codec) Verify(kind Kind, tokenStr string) (Claims, error) {
	secret, _, err := c.material(kind)
	if err != nil {
		return Claims{}, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if c.config.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.config.Issuer))
	}

	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, errKind(err))
	}

	if claims.Subject == "" {
		return Claims{}, ErrMalformed
	}
	if kind == KindRefresh && claims.ID == "" {
		return Claims{}, ErrMalformed
	}

	return Claims{SubjectID: claims.Subject, TokenID: claims.ID}, nil
}

// TTL reports the configured lifetime for a kind, for callers that align
// transport expiry (cookies, ledger records) with token expiry.
func (c *Codec) TTL(kind Kind) time.Duration {
	_, ttl, err := c.material(kind)
	if err != nil {
		return 0
	}
	return ttl
}

func (c *Codec) material(kind Kind) ([]byte, time.Duration, error) {
	switch kind {
	case KindAccess:
		return c.config.AccessSecret, c.config.AccessTTL, nil
	case KindRefresh:
		return c.config.RefreshSecret, c.config.RefreshTTL, nil
	case KindVerification:
		return c.config.VerificationSecret, c.config.VerificationTTL, nil
	default:
		return nil, 0, errors.New("unknown token kind")
	}
}

// errKind collapses library error chains to a stable category string so the
// wrapped message carries no attacker-controllable token content.
func errKind(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature"
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return "nbf"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "structure"
	default:
		return "validation"
	}
}
