// Package cache provides a storage-agnostic result cache with TTL expiry,
// blocking and non-blocking access, and function memoization.
//
// A Cache is built from a Config and owns one Backend for its lifetime:
//
//   - MemoryBackend keeps entries in process, bounded by MaxSize. When a
//     write overflows the bound, expired entries go first, then the least
//     recently accessed.
//   - FileBackend keeps one file per key under Dir/<shard>/<key> and
//     survives restarts.
//   - RedisBackend keeps entries under KeyPrefix+key with server-side
//     expiry, behind a circuit breaker.
//
// Keys may be any value. NormalizeKey renders them to a bounded string:
// strings are kept as-is, structured values are encoded with sorted map
// keys, and anything longer than MaxRawKeyLength is replaced by its MD5
// digest. Values are encoded by a Codec; GobCodec is the default.
//
// The cache is an optimization layer and never fails its caller. A read
// that hits a storage or decoding error is a miss, and a write that fails
// is dropped. Failures are logged through observe.Logger and counted in
// Stats; HealthChecker exposes them to a health.Aggregator.
//
//	cfg := cache.DefaultConfig()
//	cfg.TTL = time.Minute
//	c, err := cache.New[string](ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer c.Close(ctx)
//
//	c.Set(ctx, "greeting", "hello")
//	v := c.Get(ctx, "greeting", "")
//
// The Async methods return a Future. Memory calls complete inline,
// filesystem calls run on a bounded worker pool and Redis calls run on
// their own goroutine. Abandoning a Future does not cancel the call.
//
// Memoize and MemoizeAsync wrap a function so repeated calls with the same
// argument are served from a Cache. Concurrent misses on one key each call
// the function unless WithSingleflight is given.
package cache
