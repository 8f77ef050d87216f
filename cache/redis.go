package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/toolcache/resilience"
)

// RedisConfig configures a RedisBackend.
type RedisConfig struct {
	// URL is a redis:// or rediss:// URL. A bare host:port is accepted.
	URL string

	// Prefix is prepended to every key. Clear only removes keys under it.
	Prefix string

	// OperationTimeout bounds each command. Default: 3 seconds
	OperationTimeout time.Duration

	// BreakerFailures is the number of consecutive failed commands after
	// which the backend stops contacting the server. Default: 5
	BreakerFailures int

	// BreakerReset is how long the breaker stays open. Default: 30 seconds
	BreakerReset time.Duration
}

// RedisBackend stores entries in Redis under Prefix+key with a server-side
// expiry. Every command runs through a circuit breaker and a timeout, so an
// outage costs one fast rejection rather than a network timeout per call.
type RedisBackend struct {
	client   redis.UniversalClient
	prefix   string
	exec     *resilience.Executor
	owned    bool
	now      func() time.Time
	scanSize int64
}

const redisScanBatch = 100

// NewRedisBackend connects to the server at cfg.URL. The connection is lazy;
// an unreachable server surfaces on first use, not here.
func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return nil, fmt.Errorf("%w: remote backend requires a connection URL", ErrInvalidConfig)
	}
	if !strings.Contains(raw, "://") {
		raw = "redis://" + raw
	}

	opts, err := redis.ParseURL(raw)
	if err != nil {
		// The URL usually embeds a password; do not echo it.
		return nil, fmt.Errorf("%w: malformed redis URL", ErrInvalidConfig)
	}

	b := NewRedisBackendWithClient(redis.NewClient(opts), cfg)
	b.owned = true
	return b, nil
}

// NewRedisBackendWithClient wraps an existing client. cfg.URL is ignored and
// Close leaves the client open.
func NewRedisBackendWithClient(client redis.UniversalClient, cfg RedisConfig) *RedisBackend {
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 3 * time.Second
	}

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         "redis",
		MaxFailures:  cfg.BreakerFailures,
		ResetTimeout: cfg.BreakerReset,
	})

	return &RedisBackend{
		client: client,
		prefix: cfg.Prefix,
		exec: resilience.NewExecutor(
			resilience.WithCircuitBreaker(breaker),
			resilience.WithTimeout(cfg.OperationTimeout),
		),
		now:      time.Now,
		scanSize: redisScanBatch,
	}
}

// Kind returns KindRemote.
func (r *RedisBackend) Kind() Kind { return KindRemote }

// Dispatch reports that the client multiplexes requests itself.
func (r *RedisBackend) Dispatch() Dispatch { return DispatchNative }

// Client returns the underlying client.
func (r *RedisBackend) Client() redis.UniversalClient { return r.client }

// Breaker returns the circuit breaker guarding the server.
func (r *RedisBackend) Breaker() *resilience.CircuitBreaker { return r.exec.CircuitBreaker() }

// Get fetches Prefix+key. A missing key or an empty value is a miss.
func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := resilience.Call(ctx, r.exec, func(ctx context.Context) ([]byte, error) {
		b, err := r.client.Get(ctx, r.prefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return b, err
	})
	if err != nil {
		return nil, false, unavailable("get", err)
	}
	if len(payload) == 0 {
		return nil, false, nil
	}
	return payload, true, nil
}

// Set stores Prefix+key with an expiry of expiresAt - now. An entry that is
// already dead is deleted instead, so a stale value cannot outlive it.
func (r *RedisBackend) Set(ctx context.Context, key string, payload []byte, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())

	err := r.exec.Execute(ctx, func(ctx context.Context) error {
		if ttl <= 0 {
			return r.client.Del(ctx, r.prefix+key).Err()
		}
		return r.client.Set(ctx, r.prefix+key, payload, ttl).Err()
	})
	if err != nil {
		return unavailable("set", err)
	}
	return nil
}

// Delete removes Prefix+key and reports whether it existed.
func (r *RedisBackend) Delete(ctx context.Context, key string) (bool, error) {
	n, err := resilience.Call(ctx, r.exec, func(ctx context.Context) (int64, error) {
		return r.client.Del(ctx, r.prefix+key).Result()
	})
	if err != nil {
		return false, unavailable("delete", err)
	}
	return n > 0, nil
}

// Clear deletes every key under Prefix, scanning in batches rather than
// blocking the server with KEYS.
func (r *RedisBackend) Clear(ctx context.Context) error {
	pattern := escapeGlob(r.prefix) + "*"

	err := r.exec.Execute(ctx, func(ctx context.Context) error {
		iter := r.client.Scan(ctx, 0, pattern, r.scanSize).Iterator()
		batch := make([]string, 0, r.scanSize)
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
			if int64(len(batch)) >= r.scanSize {
				if err := r.client.Del(ctx, batch...).Err(); err != nil {
					return err
				}
				batch = batch[:0]
			}
		}
		if err := iter.Err(); err != nil {
			return err
		}
		if len(batch) > 0 {
			return r.client.Del(ctx, batch...).Err()
		}
		return nil
	})
	if err != nil {
		return unavailable("clear", err)
	}
	return nil
}

// Ping checks the server through the breaker.
func (r *RedisBackend) Ping(ctx context.Context) error {
	err := r.exec.Execute(ctx, func(ctx context.Context) error {
		return r.client.Ping(ctx).Err()
	})
	if err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close closes the client if this backend created it.
func (r *RedisBackend) Close() error {
	if !r.owned {
		return nil
	}
	if err := r.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: redis %s: %w", ErrBackendUnavailable, op, err)
}

// escapeGlob escapes the characters SCAN MATCH treats as pattern syntax.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}

var (
	_ Backend    = (*RedisBackend)(nil)
	_ Dispatcher = (*RedisBackend)(nil)
	_ Pinger     = (*RedisBackend)(nil)
)
