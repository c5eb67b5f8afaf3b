package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	goProfile "github.com/MrEthical07/goProfile"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by [Load].
const EnvPrefix = "PROFILED"

// Config is the profiled daemon configuration. Values come from Default,
// then an optional YAML file, then PROFILED_* environment variables.
type Config struct {
	HTTPAddr        string        `yaml:"http_addr" envconfig:"HTTP_ADDR"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	LogLevel        string        `yaml:"log_level" envconfig:"LOG_LEVEL"`

	// Dev runs against an in-process miniredis instead of RedisAddr.
	Dev bool `yaml:"dev" envconfig:"DEV"`

	RedisAddr     string `yaml:"redis_addr" envconfig:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" envconfig:"REDIS_DB"`
	KeyPrefix     string `yaml:"key_prefix" envconfig:"KEY_PREFIX"`
	FactsStream   string `yaml:"facts_stream" envconfig:"FACTS_STREAM"`

	SigningMethod    string `yaml:"signing_method" envconfig:"SIGNING_METHOD"`
	SigningKey       string `yaml:"signing_key" envconfig:"SIGNING_KEY"`
	SigningKeyFile   string `yaml:"signing_key_file" envconfig:"SIGNING_KEY_FILE"`
	CapabilityIssuer string `yaml:"capability_issuer" envconfig:"CAPABILITY_ISSUER"`

	RequireOwnerForCleanup bool `yaml:"require_owner_for_cleanup" envconfig:"REQUIRE_OWNER_FOR_CLEANUP"`

	RegisterThrottle  bool          `yaml:"register_throttle" envconfig:"REGISTER_THROTTLE"`
	MaxRegistrations  int           `yaml:"max_registrations" envconfig:"MAX_REGISTRATIONS"`
	RegisterWindow    time.Duration `yaml:"register_window" envconfig:"REGISTER_WINDOW"`
	AuditEnabled      bool          `yaml:"audit_enabled" envconfig:"AUDIT_ENABLED"`
	AuditBufferSize   int           `yaml:"audit_buffer_size" envconfig:"AUDIT_BUFFER_SIZE"`
	AuditTimeout      time.Duration `yaml:"audit_timeout" envconfig:"AUDIT_TIMEOUT"`
	MetricsEnabled    bool          `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
	LatencyHistograms bool          `yaml:"latency_histograms" envconfig:"LATENCY_HISTOGRAMS"`

	PostgresDSN    string        `yaml:"postgres_dsn" envconfig:"POSTGRES_DSN"`
	IndexBatchSize int64         `yaml:"index_batch_size" envconfig:"INDEX_BATCH_SIZE"`
	IndexBlock     time.Duration `yaml:"index_block" envconfig:"INDEX_BLOCK"`

	NATSURL    string `yaml:"nats_url" envconfig:"NATS_URL"`
	NATSStream string `yaml:"nats_stream" envconfig:"NATS_STREAM"`

	OTLPEndpoint string `yaml:"otlp_endpoint" envconfig:"OTLP_ENDPOINT"`
}

// Default returns the built-in daemon defaults.
func Default() Config {
	return Config{
		HTTPAddr:          ":8080",
		ShutdownTimeout:   10 * time.Second,
		LogLevel:          "info",
		RedisAddr:         "localhost:6379",
		KeyPrefix:         "gp",
		FactsStream:       "facts",
		SigningMethod:     "ed25519",
		CapabilityIssuer:  "goprofile",
		RegisterThrottle:  true,
		MaxRegistrations:  10,
		RegisterWindow:    time.Hour,
		AuditBufferSize:   1024,
		AuditTimeout:      5 * time.Second,
		MetricsEnabled:    true,
		LatencyHistograms: true,
		IndexBatchSize:    500,
		IndexBlock:        2 * time.Second,
		NATSStream:        "GOPROFILE",
	}
}

// Load reads .env (if present), then the YAML file at path (if non-empty),
// then the environment.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks daemon-level settings. Engine settings are checked again
// by the engine builder.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("http_addr must not be empty")
	}
	if !c.Dev && c.RedisAddr == "" {
		return errors.New("redis_addr is required unless dev mode is on")
	}
	if c.SigningKey != "" && c.SigningKeyFile != "" {
		return errors.New("set signing_key or signing_key_file, not both")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	if c.IndexBatchSize <= 0 {
		return errors.New("index_batch_size must be > 0")
	}
	return nil
}

// Level returns the parsed log level, defaulting to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// KeyMaterial returns the configured signing key bytes, reading
// SigningKeyFile when set.
func (c *Config) KeyMaterial() ([]byte, error) {
	if c.SigningKeyFile != "" {
		data, err := os.ReadFile(c.SigningKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read signing key: %w", err)
		}
		return data, nil
	}
	if c.SigningKey == "" {
		return nil, nil
	}
	return []byte(c.SigningKey), nil
}

// Engine maps the daemon settings onto an engine configuration.
func (c *Config) Engine() (goProfile.Config, error) {
	key, err := c.KeyMaterial()
	if err != nil {
		return goProfile.Config{}, err
	}
	if len(key) == 0 {
		return goProfile.Config{}, errors.New("signing key is required")
	}

	ec := goProfile.DefaultConfig()
	ec.Redis.KeyPrefix = c.KeyPrefix
	ec.Redis.FactsStream = c.FactsStream
	ec.Session.RequireOwnerForCleanup = c.RequireOwnerForCleanup
	ec.Capability.SigningMethod = c.SigningMethod
	ec.Capability.PrivateKey = key
	ec.Capability.Issuer = c.CapabilityIssuer
	ec.Audit.Enabled = c.AuditEnabled
	ec.Audit.BufferSize = c.AuditBufferSize
	ec.Audit.DeliveryTimeout = c.AuditTimeout
	ec.Metrics.Enabled = c.MetricsEnabled
	ec.Metrics.EnableLatencyHistograms = c.MetricsEnabled && c.LatencyHistograms
	ec.Security.EnableRegisterThrottle = c.RegisterThrottle
	ec.Security.MaxRegistrationsPerWindow = c.MaxRegistrations
	ec.Security.RegisterWindow = c.RegisterWindow
	return ec, ec.Validate()
}
