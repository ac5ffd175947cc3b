package flashauth

import (
	"errors"
	"time"
)

// Config carries all Engine tuning. Construct with [DefaultConfig] and
// override before [Builder.Build]; it is treated as immutable afterwards.
type Config struct {
	Token    TokenConfig
	Cache    CacheConfig
	Password PasswordConfig
	Mail     MailConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// TokenConfig configures the token codec. Access and refresh tokens use
// distinct signing secrets so that an access-secret compromise cannot forge
// refresh tokens and vice versa.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	// VerificationSecret signs email-verification tokens. Defaults to
	// AccessSecret when empty.
	VerificationSecret []byte

	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	VerificationTTL time.Duration
}

// CacheConfig configures the Redis session cache.
type CacheConfig struct {
	// Prefix namespaces all cache keys.
	Prefix string
	// UserTTL bounds cached user projections. Kept on the access-token TTL
	// scale so a stale suspension flag cannot outlive the stateless window.
	UserTTL time.Duration
	// UsedMarkerTTL bounds the replay-detection marker written when a
	// refresh token is consumed. Long enough to catch near-simultaneous
	// replays, short enough not to accumulate.
	UsedMarkerTTL time.Duration
}

// PasswordConfig configures bcrypt hashing.
type PasswordConfig struct {
	Cost int
}

// MailConfig configures the verification-email side effect.
type MailConfig struct {
	// FrontendURL is the base for verification links when the request
	// carries no referer.
	FrontendURL string
	// VerifyPath is appended to the link base; the token travels as the
	// "token" query parameter.
	VerifyPath string
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the baseline configuration. Secrets have no default
// and must be provided.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:       15 * time.Minute,
			RefreshTTL:      24 * time.Hour,
			VerificationTTL: 24 * time.Hour,
		},
		Cache: CacheConfig{
			Prefix:        "fa",
			UserTTL:       15 * time.Minute,
			UsedMarkerTTL: 5 * time.Minute,
		},
		Password: PasswordConfig{
			Cost: 12,
		},
		Mail: MailConfig{
			VerifyPath: "/verify-email",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate reports configuration errors. Called by [Builder.Build]; missing
// required configuration at startup is a programmer error and aborts the
// build rather than degrading at runtime.
func (c *Config) Validate() error {
	if len(c.Token.AccessSecret) < 32 {
		return errors.New("token: access secret must be at least 32 bytes")
	}
	if len(c.Token.RefreshSecret) < 32 {
		return errors.New("token: refresh secret must be at least 32 bytes")
	}
	if string(c.Token.AccessSecret) == string(c.Token.RefreshSecret) {
		return errors.New("token: access and refresh secrets must differ")
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return errors.New("token: TTLs must be positive")
	}
	if c.Token.AccessTTL >= c.Token.RefreshTTL {
		return errors.New("token: access TTL must be shorter than refresh TTL")
	}
	if c.Cache.UserTTL <= 0 {
		return errors.New("cache: user projection TTL must be positive")
	}
	if c.Cache.UsedMarkerTTL <= 0 {
		return errors.New("cache: used-marker TTL must be positive")
	}
	if c.Cache.UsedMarkerTTL > c.Token.RefreshTTL {
		return errors.New("cache: used-marker TTL must not exceed refresh TTL")
	}
	if c.Password.Cost < 10 || c.Password.Cost > 31 {
		return errors.New("password: bcrypt cost out of range")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.AccessSecret = cloneBytes(cfg.Token.AccessSecret)
	out.Token.RefreshSecret = cloneBytes(cfg.Token.RefreshSecret)
	out.Token.VerificationSecret = cloneBytes(cfg.Token.VerificationSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
