// Package resilience provides the failure-isolation patterns the cache uses
// around slow or unreliable storage.
//
// # Patterns
//
//   - Circuit Breaker: stops calling a remote store after consecutive
//     failures so that an outage costs one fast rejection per call instead
//     of one network timeout.
//
//   - Bulkhead: bounds concurrency. Submit runs work on a bounded pool and
//     returns immediately, which is how blocking backends are offered to
//     non-blocking callers.
//
//   - Timeout: bounds how long a caller waits.
//
// # Usage
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    Name:         "redis",
//	    MaxFailures:  5,
//	    ResetTimeout: 30 * time.Second,
//	})
//
//	executor := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(cb),
//	    resilience.WithTimeout(3*time.Second),
//	)
//
//	payload, err := resilience.Call(ctx, executor, func(ctx context.Context) ([]byte, error) {
//	    return client.Get(ctx, key).Bytes()
//	})
//
// The bulkhead as a worker pool:
//
//	pool := resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 2, MaxWait: -1})
//	done := pool.Submit(ctx, func(ctx context.Context) error {
//	    return writeFile(ctx)
//	})
//	err := <-done
package resilience
