package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/toolcache/observe"
	"github.com/jonwraymond/toolcache/resilience"
	"github.com/jonwraymond/toolcache/secret"
)

// Operation names used for telemetry.
const (
	opGet    = "get"
	opSet    = "set"
	opDelete = "delete"
	opClear  = "clear"
)

// Cache maps arbitrary keys to values of type V on top of one Backend.
//
// Contract:
//   - Concurrency: safe for concurrent use from any number of goroutines,
//     through both the blocking and the non-blocking methods.
//   - Errors: data-path methods never fail. A failed read is a miss and a
//     failed write is a no-op; failures are logged and counted in Stats.
//   - Ordering: none across concurrent calls on the same key; the last
//     writer wins.
type Cache[V any] struct {
	name     string
	backend  Backend
	codec    Codec[V]
	policy   Policy
	now      func() time.Time
	mw       *observe.Middleware
	dispatch Dispatch
	pool     *resilience.Bulkhead

	// lifecycle orders dispatches before Close's drain; inflight tracks
	// natively dispatched calls, pool tracks the rest.
	lifecycle sync.RWMutex
	closed    atomic.Bool
	inflight  sync.WaitGroup
	closeOnce sync.Once
	closeErr  error

	hits   atomic.Int64
	misses atomic.Int64
	errs   atomic.Int64
}

// Stats is a snapshot of a Cache's counters.
type Stats struct {
	Hits   int64
	Misses int64
	// Errors counts absorbed backend, codec and lifecycle failures.
	Errors int64
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	codec      any
	backend    Backend
	logger     observe.Logger
	observer   observe.Observer
	middleware *observe.Middleware
	resolver   *secret.Resolver
	name       string
	now        func() time.Time
}

// WithCodec sets the value codec. The default is GobCodec. New rejects a
// codec whose type parameter differs from the Cache's.
func WithCodec[V any](codec Codec[V]) Option {
	return func(o *options) { o.codec = codec }
}

// WithBackend uses b instead of building a backend from Config.Backend.
// The Cache takes ownership: Close closes b.
func WithBackend(b Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithLogger sets the logger for absorbed failures. Ignored when
// WithObserver or WithMiddleware is also given.
func WithLogger(l observe.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver instruments every operation with the observer's tracer,
// meter and logger.
func WithObserver(obs observe.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithMiddleware instruments every operation with m. It takes precedence
// over WithObserver.
func WithMiddleware(m *observe.Middleware) Option {
	return func(o *options) { o.middleware = m }
}

// WithSecretResolver resolves Config.Connection with r. The default
// resolver expands environment variables and understands env and file
// secret references.
func WithSecretResolver(r *secret.Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithName names the cache in logs, spans and metrics. The default is the
// backend kind.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithClock replaces time.Now for expiry decisions of the cache and of the
// built-in memory and filesystem backends.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New builds a Cache from cfg. Construction is the only place a Cache
// reports errors: an invalid configuration, an unresolvable connection
// secret or an unusable filesystem root.
func New[V any](ctx context.Context, cfg Config, opts ...Option) (*Cache[V], error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var codec Codec[V] = GobCodec[V]{}
	if o.codec != nil {
		typed, ok := o.codec.(Codec[V])
		if !ok {
			var zero V
			return nil, fmt.Errorf("%w: codec %T cannot encode %T", ErrInvalidConfig, o.codec, zero)
		}
		codec = typed
	}

	now := o.now
	if now == nil {
		now = time.Now
	}

	backend := o.backend
	if backend == nil {
		var err error
		backend, err = openBackend(ctx, cfg, o.resolver, now)
		if err != nil {
			return nil, err
		}
	}

	mw := o.middleware
	if mw == nil {
		if o.observer != nil {
			var err error
			mw, err = observe.MiddlewareFromObserver(o.observer)
			if err != nil {
				_ = backend.Close()
				return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
			}
		} else {
			mw = observe.NewMiddleware(nil, nil, o.logger)
		}
	}

	name := o.name
	if name == "" {
		name = string(backend.Kind())
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultConfig().Workers
	}

	return &Cache[V]{
		name:     name,
		backend:  backend,
		codec:    codec,
		policy:   cfg.policy(),
		now:      now,
		mw:       mw,
		dispatch: dispatchOf(backend),
		pool: resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: workers,
			MaxWait:       -1,
		}),
	}, nil
}

func openBackend(ctx context.Context, cfg Config, resolver *secret.Resolver, now func() time.Time) (Backend, error) {
	kind, err := ParseKind(string(cfg.Backend))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	switch kind {
	case KindFilesystem:
		fb, err := NewFileBackend(cfg.Dir)
		if err != nil {
			return nil, err
		}
		fb.now = now
		return fb, nil

	case KindRemote:
		if resolver == nil {
			resolver = secret.DefaultResolver()
		}
		url, err := resolver.ResolveValue(ctx, cfg.Connection)
		if err != nil {
			return nil, fmt.Errorf("%w: resolve connection: %w", ErrInvalidConfig, err)
		}
		rb, err := NewRedisBackend(RedisConfig{
			URL:              url,
			Prefix:           cfg.KeyPrefix,
			OperationTimeout: cfg.OperationTimeout,
			BreakerFailures:  cfg.BreakerFailures,
			BreakerReset:     cfg.BreakerReset,
		})
		if err != nil {
			return nil, err
		}
		rb.now = now
		return rb, nil

	default:
		mb := NewMemoryBackend(cfg.MaxSize)
		mb.now = now
		return mb, nil
	}
}

// Name returns the cache name used in telemetry.
func (c *Cache[V]) Name() string { return c.name }

// Backend returns the underlying backend.
func (c *Cache[V]) Backend() Backend { return c.backend }

// Policy returns the expiry policy.
func (c *Cache[V]) Policy() Policy { return c.policy }

// Get returns the value stored under key, or def on a miss.
func (c *Cache[V]) Get(ctx context.Context, key any, def V) V {
	if v, ok := c.lookup(ctx, NormalizeKey(key), false); ok {
		return v
	}
	return def
}

// GetWithStatus returns the value stored under key and whether it was a
// hit. It distinguishes a cached zero value from a miss.
func (c *Cache[V]) GetWithStatus(ctx context.Context, key any) (V, bool) {
	return c.lookup(ctx, NormalizeKey(key), false)
}

// Set stores value under key with the default TTL.
func (c *Cache[V]) Set(ctx context.Context, key any, value V) {
	c.store(ctx, NormalizeKey(key), value, 0, false)
}

// SetWithTTL stores value under key for ttl. A non-positive ttl selects
// the default TTL; Config.MaxTTL clamps it.
func (c *Cache[V]) SetWithTTL(ctx context.Context, key any, value V, ttl time.Duration) {
	c.store(ctx, NormalizeKey(key), value, ttl, false)
}

// Delete removes key and reports whether an entry was removed. Deleting an
// absent key is not an error.
func (c *Cache[V]) Delete(ctx context.Context, key any) bool {
	return c.remove(ctx, NormalizeKey(key), false)
}

// Clear removes every entry.
func (c *Cache[V]) Clear(ctx context.Context) {
	c.purge(ctx, false)
}

// Len returns the number of resident entries when the backend can count
// them cheaply. Only the memory backend can.
func (c *Cache[V]) Len() (int, bool) {
	if l, ok := c.backend.(Lener); ok {
		return l.Len(), true
	}
	return 0, false
}

// Stats returns a snapshot of the hit, miss and error counters.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Errors: c.errs.Load(),
	}
}

// GetAsync is the non-blocking form of Get.
func (c *Cache[V]) GetAsync(ctx context.Context, key any, def V) *Future[V] {
	k := NormalizeKey(key)
	return submit(ctx, c, func(ctx context.Context) V {
		if v, ok := c.lookup(ctx, k, true); ok {
			return v
		}
		return def
	})
}

// GetWithStatusAsync is the non-blocking form of GetWithStatus.
func (c *Cache[V]) GetWithStatusAsync(ctx context.Context, key any) *Future[Lookup[V]] {
	k := NormalizeKey(key)
	return submit(ctx, c, func(ctx context.Context) Lookup[V] {
		v, ok := c.lookup(ctx, k, true)
		return Lookup[V]{Value: v, Hit: ok}
	})
}

// SetAsync is the non-blocking form of Set.
func (c *Cache[V]) SetAsync(ctx context.Context, key any, value V) *Future[struct{}] {
	return c.SetWithTTLAsync(ctx, key, value, 0)
}

// SetWithTTLAsync is the non-blocking form of SetWithTTL.
func (c *Cache[V]) SetWithTTLAsync(ctx context.Context, key any, value V, ttl time.Duration) *Future[struct{}] {
	k := NormalizeKey(key)
	return submit(ctx, c, func(ctx context.Context) struct{} {
		c.store(ctx, k, value, ttl, true)
		return struct{}{}
	})
}

// DeleteAsync is the non-blocking form of Delete.
func (c *Cache[V]) DeleteAsync(ctx context.Context, key any) *Future[bool] {
	k := NormalizeKey(key)
	return submit(ctx, c, func(ctx context.Context) bool {
		return c.remove(ctx, k, true)
	})
}

// ClearAsync is the non-blocking form of Clear.
func (c *Cache[V]) ClearAsync(ctx context.Context) *Future[struct{}] {
	return submit(ctx, c, func(ctx context.Context) struct{} {
		c.purge(ctx, true)
		return struct{}{}
	})
}

// Close stops accepting non-blocking calls, waits for dispatched ones to
// finish or for ctx to end, then closes the backend. If ctx ends first,
// Close returns its error and may be called again to finish. Data-path
// calls on a closed Cache are misses and no-ops.
func (c *Cache[V]) Close(ctx context.Context) error {
	c.lifecycle.Lock()
	c.closed.Store(true)
	c.lifecycle.Unlock()

	if err := c.pool.Wait(ctx); err != nil {
		return err
	}

	drained := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.closeOnce.Do(func() { c.closeErr = c.backend.Close() })
	return c.closeErr
}

func (c *Cache[V]) lookup(ctx context.Context, key string, async bool) (V, bool) {
	var (
		value V
		hit   bool
	)
	meta := c.meta(opGet, async)

	c.absorb(ctx, meta, func(ctx context.Context) error {
		if c.closed.Load() {
			return ErrClosed
		}
		payload, ok, err := c.backend.Get(ctx, key)
		if err != nil || !ok {
			return err
		}
		v, err := c.codec.Unmarshal(payload)
		if err != nil {
			_, _ = c.backend.Delete(ctx, key)
			c.mw.Logger().WithOp(meta).Debug(ctx, "purged corrupted entry",
				observe.Field{Key: "cache.key", Value: key})
			return fmt.Errorf("%w: %w", ErrCorrupted, err)
		}
		value, hit = v, true
		return nil
	})

	c.mw.Lookup(ctx, meta, hit)
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return value, hit
}

func (c *Cache[V]) store(ctx context.Context, key string, value V, ttl time.Duration, async bool) {
	c.absorb(ctx, c.meta(opSet, async), func(ctx context.Context) error {
		if c.closed.Load() {
			return ErrClosed
		}
		payload, err := c.codec.Marshal(value)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSerializationFailed, err)
		}
		return c.backend.Set(ctx, key, payload, c.policy.ExpiresAt(c.now(), ttl))
	})
}

func (c *Cache[V]) remove(ctx context.Context, key string, async bool) bool {
	var removed bool
	c.absorb(ctx, c.meta(opDelete, async), func(ctx context.Context) error {
		if c.closed.Load() {
			return ErrClosed
		}
		var err error
		removed, err = c.backend.Delete(ctx, key)
		return err
	})
	return removed
}

func (c *Cache[V]) purge(ctx context.Context, async bool) {
	c.absorb(ctx, c.meta(opClear, async), func(ctx context.Context) error {
		if c.closed.Load() {
			return ErrClosed
		}
		return c.backend.Clear(ctx)
	})
}

// absorb runs op under instrumentation and swallows its error. It is the
// single point where backend and codec failures become misses and no-ops;
// the middleware has already logged the failure at warn level.
func (c *Cache[V]) absorb(ctx context.Context, meta observe.OpMeta, op observe.OpFunc) {
	if err := c.mw.Instrument(ctx, meta, op); err != nil {
		c.errs.Add(1)
	}
}

func (c *Cache[V]) meta(op string, async bool) observe.OpMeta {
	return observe.OpMeta{
		Cache:   c.name,
		Backend: string(c.backend.Kind()),
		Op:      op,
		Async:   async,
	}
}

// submit runs op according to the backend's dispatch mode and returns its
// pending result. Dispatched work is detached from ctx cancellation so an
// abandoned caller cannot interrupt a write halfway; ctx values are kept.
func submit[V, T any](ctx context.Context, c *Cache[V], op func(context.Context) T) *Future[T] {
	if c.dispatch == DispatchInline {
		return resolvedFuture(op(ctx))
	}

	c.lifecycle.RLock()
	defer c.lifecycle.RUnlock()
	if c.closed.Load() {
		// op observes the flag and degrades to a miss or no-op.
		return resolvedFuture(op(ctx))
	}

	f := newFuture[T]()
	detached := context.WithoutCancel(ctx)

	if c.dispatch == DispatchNative {
		c.inflight.Add(1)
		go func() {
			defer c.inflight.Done()
			f.resolve(op(detached))
		}()
		return f
	}

	// The pool waits without limit for a slot and detached is never done,
	// so Submit always runs op.
	c.pool.Submit(detached, func(ctx context.Context) error {
		f.resolve(op(ctx))
		return nil
	})
	return f
}
