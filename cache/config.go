package cache

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "TOOLCACHE_"

// Config holds the construction-time settings of a Cache. A Cache never
// changes its configuration after New returns.
type Config struct {
	// Backend selects the storage: memory, filesystem or remote.
	Backend Kind `env:"BACKEND"`

	// TTL is the default entry lifetime.
	TTL time.Duration `env:"TTL"`

	// MaxTTL clamps every TTL, including per-write overrides. Zero disables
	// the clamp.
	MaxTTL time.Duration `env:"MAX_TTL"`

	// MaxSize bounds the entry count of the memory backend. Zero or less
	// disables the bound. Ignored by other backends.
	MaxSize int `env:"MAX_SIZE"`

	// Dir is the root directory of the filesystem backend.
	Dir string `env:"DIR"`

	// Connection is the remote backend URL. It may reference environment
	// variables (${REDIS_PASSWORD}) and secrets (secretref:file:redis.url).
	Connection string `env:"CONNECTION"`

	// KeyPrefix namespaces remote keys. Clear removes only keys under it.
	KeyPrefix string `env:"KEY_PREFIX"`

	// Workers is the size of the pool that runs blocking backend calls for
	// the non-blocking methods.
	Workers int `env:"WORKERS"`

	// OperationTimeout bounds each remote command.
	OperationTimeout time.Duration `env:"OPERATION_TIMEOUT"`

	// BreakerFailures is the number of consecutive remote failures that
	// open the circuit breaker.
	BreakerFailures int `env:"BREAKER_FAILURES"`

	// BreakerReset is how long an open breaker waits before probing again.
	BreakerReset time.Duration `env:"BREAKER_RESET"`
}

// DefaultConfig returns a memory cache configuration with a one hour TTL
// and room for 1000 entries.
func DefaultConfig() Config {
	return Config{
		Backend:          KindMemory,
		TTL:              time.Hour,
		MaxSize:          1000,
		Dir:              "data/cache",
		KeyPrefix:        "max_assistant:",
		Workers:          2,
		OperationTimeout: 3 * time.Second,
		BreakerFailures:  5,
		BreakerReset:     30 * time.Second,
	}
}

// LoadConfig returns DefaultConfig overridden by TOOLCACHE_* environment
// variables, e.g. TOOLCACHE_BACKEND=filesystem or TOOLCACHE_TTL=10m.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports whether the configuration can build a Cache.
func (c *Config) Validate() error {
	if _, err := ParseKind(string(c.Backend)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("%w: ttl must be positive, got %s", ErrInvalidConfig, c.TTL)
	}
	if c.MaxTTL < 0 {
		return fmt.Errorf("%w: max ttl must not be negative", ErrInvalidConfig)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidConfig)
	}

	kind, _ := ParseKind(string(c.Backend))
	switch kind {
	case KindFilesystem:
		if c.Dir == "" {
			return fmt.Errorf("%w: filesystem backend requires a directory", ErrInvalidConfig)
		}
	case KindRemote:
		if c.Connection == "" {
			return fmt.Errorf("%w: remote backend requires a connection", ErrInvalidConfig)
		}
	}
	return nil
}

// policy returns the expiry policy the configuration describes.
func (c *Config) policy() Policy {
	return Policy{DefaultTTL: c.TTL, MaxTTL: c.MaxTTL}
}
