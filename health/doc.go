// Package health provides health checking primitives for cache backends.
//
// A cache never surfaces storage failures to its callers, so an unreachable
// Redis server or an unwritable cache directory is invisible on the data
// path. Health checks make that state observable.
//
//	agg := health.NewAggregator()
//	agg.Register("sessions", sessions.HealthChecker())
//	agg.Register("llm-responses", responses.HealthChecker())
//
//	results := agg.CheckAll(ctx)
//	if health.OverallStatus(results) == health.StatusUnhealthy {
//	    log.Printf("cache degraded to pass-through: %v", results)
//	}
//
// Storage that can prove reachability implements Pinger and is wrapped with
// NewPingChecker.
package health
