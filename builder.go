package goProfile

import (
	"errors"

	"github.com/MrEthical07/goProfile/capability"
	"github.com/MrEthical07/goProfile/facts"
	internalaudit "github.com/MrEthical07/goProfile/internal/audit"
	"github.com/MrEthical07/goProfile/internal/rate"
	"github.com/MrEthical07/goProfile/profile"
	"github.com/MrEthical07/goProfile/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Builder assembles an [Engine]. Configure it during initialization and
// call [Builder.Build] once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	clock  Clock
	logger *zerolog.Logger

	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration with a copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithClock overrides the millisecond clock. Defaults to [SystemClock].
func (b *Builder) WithClock(clock Clock) *Builder {
	b.clock = clock
	return b
}

// WithLogger sets the engine logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

// WithAuditSink sets the sink that receives audit events when
// Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the validation latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready [Engine]. A Builder
// can be built only once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	caps, err := capability.NewManager(capability.Config{
		SigningMethod: capability.SigningMethod(cfg.Capability.SigningMethod),
		PrivateKey:    cloneBytes(cfg.Capability.PrivateKey),
		PublicKey:     cloneBytes(cfg.Capability.PublicKey),
		Issuer:        cfg.Capability.Issuer,
		KeyID:         cfg.Capability.KeyID,
		VerifyKeys:    cfg.Capability.VerifyKeys,
	})
	if err != nil {
		return nil, err
	}

	factsKey := cfg.factsKey()

	engine := &Engine{
		config:       cloneConfig(cfg),
		redis:        b.redis,
		profiles:     profile.NewStore(b.redis, cfg.Redis.KeyPrefix, factsKey),
		sessions:     session.NewStore(b.redis, cfg.Redis.KeyPrefix, factsKey),
		facts:        facts.NewLog(b.redis, factsKey),
		capabilities: caps,
		metrics:      NewMetrics(cfg.Metrics),
	}

	engine.rateLimiter = rate.New(b.redis, rate.Config{
		KeyPrefix:              cfg.Redis.KeyPrefix,
		EnableRegisterThrottle: cfg.Security.EnableRegisterThrottle,
		MaxRegistrations:       cfg.Security.MaxRegistrationsPerWindow,
		RegisterWindow:         cfg.Security.RegisterWindow,
	})
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:         cfg.Audit.Enabled,
		BufferSize:      cfg.Audit.BufferSize,
		DropIfFull:      cfg.Audit.DropIfFull,
		DeliveryTimeout: cfg.Audit.DeliveryTimeout,
		OnDrop:          engine.auditDropped,
	}, b.auditSink)

	engine.clock = b.clock
	if engine.clock == nil {
		engine.clock = &SystemClock{}
	}
	if b.logger != nil {
		engine.logger = *b.logger
	} else {
		engine.logger = zerolog.Nop()
	}

	b.built = true

	return engine, nil
}
