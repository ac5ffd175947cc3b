package flashauth

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/flashapp/flashauth/cache"
	"github.com/flashapp/flashauth/password"
	"github.com/flashapp/flashauth/token"
)

// Builder assembles an [Engine]. Configure with the With* methods and call
// Build once; a Builder is single-use and not safe for concurrent mutation.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	directory Directory
	mail      EmailQueue
	auditSink AuditSink

	built bool
}

// New returns a Builder pre-loaded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the entire configuration. The config is cloned, so
// later mutation of cfg by the caller does not reach the engine.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing the session cache and refresh
// ledger. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithDirectory sets the durable account store. Required.
func (b *Builder) WithDirectory(d Directory) *Builder {
	b.directory = d
	return b
}

// WithEmailQueue sets the queue verification emails are enqueued onto.
// Optional; without it signup and unverified sign-in skip the email side
// effect.
func (b *Builder) WithEmailQueue(q EmailQueue) *Builder {
	b.mail = q
	return b
}

// WithAuditSink sets the audit destination and enables the dispatcher.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, wires the components, and returns a
// ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.directory == nil {
		return nil, errors.New("directory required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	codec, err := token.NewCodec(token.Config{
		AccessSecret:       cloneBytes(cfg.Token.AccessSecret),
		RefreshSecret:      cloneBytes(cfg.Token.RefreshSecret),
		VerificationSecret: cloneBytes(cfg.Token.VerificationSecret),
		AccessTTL:          cfg.Token.AccessTTL,
		RefreshTTL:         cfg.Token.RefreshTTL,
		VerificationTTL:    cfg.Token.VerificationTTL,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewBcrypt(password.Config{
		Cost: cfg.Password.Cost,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cfg,
		codec:     codec,
		cache:     cache.NewStore(b.redis, cfg.Cache.Prefix, cfg.Cache.UsedMarkerTTL),
		directory: b.directory,
		mail:      b.mail,
		hasher:    hasher,
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:   NewMetrics(cfg.Metrics),
	}

	b.built = true

	return engine, nil
}
