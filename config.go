package goProfile

import (
	"errors"
	"strings"
	"time"
)

// Config holds every tunable of an [Engine]. Start from [DefaultConfig] and
// override fields; [Builder.Build] validates the result.
type Config struct {
	Redis      RedisConfig
	Session    SessionConfig
	Capability CapabilityConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
	Security   SecurityConfig
}

/*
====================================
REDIS CONFIG
====================================
*/

// RedisConfig sets the key namespace. Records live under KeyPrefix and the
// fact stream at KeyPrefix + ":" + FactsStream.
type RedisConfig struct {
	KeyPrefix   string
	FactsStream string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session store maintenance.
//
// RequireOwnerForCleanup restricts CleanupExpiredSessions and
// SweepExpiredSessions to the store owner. It is off by default, which lets
// any caller remove expired entries.
type SessionConfig struct {
	RequireOwnerForCleanup bool
	CleanupBatchSize       int
	SweepBatchSize         int
}

/*
====================================
CAPABILITY CONFIG
====================================
*/

// CapabilityConfig configures admin capability signing.
type CapabilityConfig struct {
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	KeyID         string
	VerifyKeys    map[string][]byte
}

// AuditConfig controls the async audit dispatcher. DeliveryTimeout bounds
// each sink call; zero uses the dispatcher default.
type AuditConfig struct {
	Enabled         bool
	BufferSize      int
	DropIfFull      bool
	DeliveryTimeout time.Duration
}

// MetricsConfig toggles in-process counters and the latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig configures abuse throttles. The registration throttle is
// opt-in: with it on, Register may fail with ErrRateLimited.
type SecurityConfig struct {
	EnableRegisterThrottle    bool
	MaxRegistrationsPerWindow int
	RegisterWindow            time.Duration
}

/*
====================================
DEFAULTS
====================================
*/

// DefaultConfig returns the baseline configuration. Capability keys are
// empty and must be supplied before [Builder.Build].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Redis: RedisConfig{
			KeyPrefix:   "gp",
			FactsStream: "facts",
		},
		Session: SessionConfig{
			RequireOwnerForCleanup: false,
			CleanupBatchSize:       1000,
			SweepBatchSize:         256,
		},
		Capability: CapabilityConfig{
			SigningMethod: "ed25519",
			Issuer:        "goprofile",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Security: SecurityConfig{
			EnableRegisterThrottle:    false,
			MaxRegistrationsPerWindow: 10,
			RegisterWindow:            time.Hour,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Capability.PrivateKey = cloneBytes(cfg.Capability.PrivateKey)
	out.Capability.PublicKey = cloneBytes(cfg.Capability.PublicKey)
	if cfg.Capability.VerifyKeys != nil {
		out.Capability.VerifyKeys = make(map[string][]byte, len(cfg.Capability.VerifyKeys))
		for kid, key := range cfg.Capability.VerifyKeys {
			out.Capability.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks structural invariants. Key material itself is parsed and
// checked when the capability manager is built.
func (c *Config) Validate() error {
	// Redis
	if strings.TrimSpace(c.Redis.KeyPrefix) == "" {
		return errors.New("Redis KeyPrefix must not be empty")
	}
	if strings.ContainsAny(c.Redis.KeyPrefix, " \t\n") {
		return errors.New("Redis KeyPrefix must not contain whitespace")
	}
	if strings.TrimSpace(c.Redis.FactsStream) == "" {
		return errors.New("Redis FactsStream must not be empty")
	}

	// Session
	if c.Session.CleanupBatchSize <= 0 {
		return errors.New("Session CleanupBatchSize must be > 0")
	}
	if c.Session.SweepBatchSize <= 0 {
		return errors.New("Session SweepBatchSize must be > 0")
	}

	// Capability
	switch c.Capability.SigningMethod {
	case "ed25519":
		if len(c.Capability.PrivateKey) == 0 && len(c.Capability.PublicKey) == 0 && len(c.Capability.VerifyKeys) == 0 {
			return errors.New("ed25519 requires PrivateKey, PublicKey, or VerifyKeys")
		}
	case "hs256":
		if len(c.Capability.PrivateKey) == 0 {
			return errors.New("hs256 requires PrivateKey")
		}
	default:
		return errors.New("unsupported capability signing method")
	}
	if strings.TrimSpace(c.Capability.Issuer) != c.Capability.Issuer {
		return errors.New("Capability Issuer must not have surrounding whitespace")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Audit.DeliveryTimeout < 0 {
		return errors.New("Audit DeliveryTimeout must not be negative")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	// Security
	if c.Security.EnableRegisterThrottle {
		if c.Security.MaxRegistrationsPerWindow <= 0 {
			return errors.New("Security MaxRegistrationsPerWindow must be > 0")
		}
		if c.Security.RegisterWindow <= 0 {
			return errors.New("Security RegisterWindow must be > 0")
		}
	}

	return nil
}

func (c *Config) factsKey() string {
	return c.Redis.KeyPrefix + ":" + c.Redis.FactsStream
}
