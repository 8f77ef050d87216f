package cache

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Backend != KindMemory {
		t.Errorf("Backend = %q, want memory", cfg.Backend)
	}
	if cfg.TTL != time.Hour {
		t.Errorf("TTL = %v, want 1h", cfg.TTL)
	}
	if cfg.MaxSize != 1000 {
		t.Errorf("MaxSize = %d, want 1000", cfg.MaxSize)
	}
	if cfg.Dir != "data/cache" {
		t.Errorf("Dir = %q, want data/cache", cfg.Dir)
	}
	if cfg.KeyPrefix != "max_assistant:" {
		t.Errorf("KeyPrefix = %q, want max_assistant:", cfg.KeyPrefix)
	}
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Workers)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"empty backend means memory", func(c *Config) { c.Backend = "" }, false},
		{"unknown backend", func(c *Config) { c.Backend = "tape" }, true},
		{"zero ttl", func(c *Config) { c.TTL = 0 }, true},
		{"negative max ttl", func(c *Config) { c.MaxTTL = -time.Second }, true},
		{"negative workers", func(c *Config) { c.Workers = -1 }, true},
		{"filesystem without dir", func(c *Config) { c.Backend = KindFilesystem; c.Dir = "" }, true},
		{"filesystem with dir", func(c *Config) { c.Backend = KindFilesystem }, false},
		{"remote without connection", func(c *Config) { c.Backend = KindRemote }, true},
		{"remote with connection", func(c *Config) {
			c.Backend = KindRemote
			c.Connection = "redis://localhost:6379/0"
		}, false},
		{"alias accepted", func(c *Config) { c.Backend = "disk" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("LoadConfig() = %+v, want defaults", cfg)
	}
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("TOOLCACHE_BACKEND", "redis")
	t.Setenv("TOOLCACHE_TTL", "90s")
	t.Setenv("TOOLCACHE_MAX_TTL", "10m")
	t.Setenv("TOOLCACHE_MAX_SIZE", "42")
	t.Setenv("TOOLCACHE_CONNECTION", "redis://:${REDIS_PASSWORD}@cache:6379/1")
	t.Setenv("TOOLCACHE_KEY_PREFIX", "svc:")
	t.Setenv("TOOLCACHE_WORKERS", "8")
	t.Setenv("TOOLCACHE_OPERATION_TIMEOUT", "250ms")
	t.Setenv("TOOLCACHE_BREAKER_FAILURES", "3")
	t.Setenv("TOOLCACHE_BREAKER_RESET", "1m")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	want := Config{
		Backend:          KindRemote,
		TTL:              90 * time.Second,
		MaxTTL:           10 * time.Minute,
		MaxSize:          42,
		Dir:              "data/cache",
		Connection:       "redis://:${REDIS_PASSWORD}@cache:6379/1",
		KeyPrefix:        "svc:",
		Workers:          8,
		OperationTimeout: 250 * time.Millisecond,
		BreakerFailures:  3,
		BreakerReset:     time.Minute,
	}
	if cfg != want {
		t.Errorf("LoadConfig() =\n%+v\nwant\n%+v", cfg, want)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"unknown backend", "TOOLCACHE_BACKEND", "tape"},
		{"bad duration", "TOOLCACHE_TTL", "soon"},
		{"bad int", "TOOLCACHE_MAX_SIZE", "lots"},
		{"zero ttl", "TOOLCACHE_TTL", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("LoadConfig() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"memory", KindMemory, false},
		{"", KindMemory, false},
		{"Filesystem", KindFilesystem, false},
		{"disk", KindFilesystem, false},
		{" remote ", KindRemote, false},
		{"redis", KindRemote, false},
		{"memcached", "", true},
	}

	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrUnknownBackend) {
			t.Errorf("ParseKind(%q) error = %v, want ErrUnknownBackend", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
