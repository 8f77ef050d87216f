package cache

import (
	"context"
	"time"

	"github.com/jonwraymond/toolcache/health"
)

// HealthDegradedAfter is the probe latency above which a backend reports
// degraded instead of healthy.
const HealthDegradedAfter = 250 * time.Millisecond

// HealthChecker returns a checker named "cache.<name>" that probes the
// backend. Backends without a probe are always healthy; a closed cache is
// unhealthy. Details carry the Stats counters, the entry count when known
// and, for Redis, the circuit breaker state.
func (c *Cache[V]) HealthChecker() health.Checker {
	name := "cache." + c.name

	return health.NewCheckerFunc(name, func(ctx context.Context) health.Result {
		if c.closed.Load() {
			return health.Unhealthy("cache closed", ErrClosed).WithDetails(c.healthDetails())
		}

		p, ok := c.backend.(Pinger)
		if !ok {
			return health.Healthy("no probe").WithDetails(c.healthDetails())
		}
		return health.NewPingChecker(name, p, HealthDegradedAfter).Check(ctx).WithDetails(c.healthDetails())
	})
}

func (c *Cache[V]) healthDetails() map[string]any {
	stats := c.Stats()
	details := map[string]any{
		"backend": string(c.backend.Kind()),
		"hits":    stats.Hits,
		"misses":  stats.Misses,
		"errors":  stats.Errors,
	}
	if n, ok := c.Len(); ok {
		details["entries"] = n
	}
	if rb, ok := c.backend.(*RedisBackend); ok {
		details["breaker"] = rb.Breaker().State().String()
	}
	return details
}
