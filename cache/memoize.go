package cache

import (
	"context"
	"reflect"
	"runtime"
	"time"

	"golang.org/x/sync/singleflight"
)

// Func is a function that can be memoized.
type Func[A, R any] func(ctx context.Context, arg A) (R, error)

// AsyncFunc is the non-blocking form of Func.
type AsyncFunc[A, R any] func(ctx context.Context, arg A) *Future[Outcome[R]]

// Args carries positional and keyword arguments for functions that take
// more than one. The default memo key includes every positional argument
// but only the keyword arguments of primitive kind (bool, numbers,
// strings, nil); two calls that differ only in a non-primitive keyword
// argument share an entry.
type Args struct {
	Positional []any
	Keyword    map[string]any
}

// MemoizeOption configures Memoize and MemoizeAsync.
type MemoizeOption func(*memoOptions)

type memoOptions struct {
	ttl     time.Duration
	name    string
	keyFunc func(name string, arg any) any
	single  bool
}

// WithMemoTTL sets the TTL of memoized results. Zero uses the cache's
// default TTL.
func WithMemoTTL(ttl time.Duration) MemoizeOption {
	return func(o *memoOptions) { o.ttl = ttl }
}

// WithMemoName sets the function identity used in default keys. The
// default is the function's symbol name.
func WithMemoName(name string) MemoizeOption {
	return func(o *memoOptions) { o.name = name }
}

// WithKeyFunc replaces the default key builder. fn receives the function
// identity and the call argument and returns any value NormalizeKey accepts.
func WithKeyFunc(fn func(name string, arg any) any) MemoizeOption {
	return func(o *memoOptions) { o.keyFunc = fn }
}

// WithSingleflight collapses concurrent misses on the same key into one
// call of the wrapped function. Without it, concurrent misses each call
// the function and the last result written wins.
//
// The shared call runs without the first caller's cancellation, so one
// caller giving up does not fail the others waiting on the same key.
func WithSingleflight() MemoizeOption {
	return func(o *memoOptions) { o.single = true }
}

func newMemoOptions(fn any, opts []MemoizeOption) memoOptions {
	var o memoOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.name == "" {
		o.name = funcName(fn)
	}
	if o.keyFunc == nil {
		o.keyFunc = defaultMemoKey
	}
	return o
}

func (o memoOptions) key(arg any) string {
	return NormalizeKey(o.keyFunc(o.name, arg))
}

// defaultMemoKey builds {func, args, kwargs}. It returns a map so that
// NormalizeKey sorts keyword names at every depth.
func defaultMemoKey(name string, arg any) any {
	args := []any{arg}
	kwargs := map[string]any{}

	switch a := arg.(type) {
	case Args:
		args, kwargs = a.Positional, primitiveOnly(a.Keyword)
	case *Args:
		args = nil
		if a != nil {
			args, kwargs = a.Positional, primitiveOnly(a.Keyword)
		}
	}
	if args == nil {
		args = []any{}
	}

	return map[string]any{
		"func":   name,
		"args":   args,
		"kwargs": kwargs,
	}
}

func primitiveOnly(kw map[string]any) map[string]any {
	out := make(map[string]any, len(kw))
	for k, v := range kw {
		if isPrimitive(v) {
			out[k] = v
		}
	}
	return out
}

func isPrimitive(v any) bool {
	if v == nil {
		return true
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func funcName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}
	if f := runtime.FuncForPC(v.Pointer()); f != nil {
		return f.Name()
	}
	return ""
}

// privateCache backs memoized functions created without a cache.
func privateCache[R any](ttl time.Duration) *Cache[R] {
	cfg := DefaultConfig()
	if ttl > 0 {
		cfg.TTL = ttl
	}
	c, err := New[R](context.Background(), cfg)
	if err != nil {
		// A memory configuration derived from DefaultConfig always validates.
		panic(err)
	}
	return c
}

// Memoize wraps fn so that repeated calls with the same argument return the
// cached result. Errors are returned but never cached. A nil c gives fn a
// private memory cache.
//
// Lookups and stores go through c's public methods, so a failing backend
// degrades to calling fn every time.
func Memoize[A, R any](c *Cache[R], fn Func[A, R], opts ...MemoizeOption) Func[A, R] {
	o := newMemoOptions(fn, opts)
	if c == nil {
		c = privateCache[R](o.ttl)
	}
	var group singleflight.Group

	call := func(ctx context.Context, key string, arg A) (R, error) {
		r, err := fn(ctx, arg)
		if err != nil {
			return r, err
		}
		c.SetWithTTL(ctx, key, r, o.ttl)
		return r, nil
	}

	return func(ctx context.Context, arg A) (R, error) {
		key := o.key(arg)
		if v, ok := c.GetWithStatus(ctx, key); ok {
			return v, nil
		}
		if !o.single {
			return call(ctx, key, arg)
		}

		// The shared call outlives any one caller; each waiter honors its own ctx.
		flight := group.DoChan(key, func() (any, error) {
			return call(context.WithoutCancel(ctx), key, arg)
		})
		select {
		case res := <-flight:
			r, _ := res.Val.(R)
			return r, res.Err
		case <-ctx.Done():
			var zero R
			return zero, ctx.Err()
		}
	}
}

// MemoizeAsync is the non-blocking form of Memoize. The returned function
// never blocks; its Future resolves once the result is cached or fn fails.
func MemoizeAsync[A, R any](c *Cache[R], fn AsyncFunc[A, R], opts ...MemoizeOption) AsyncFunc[A, R] {
	o := newMemoOptions(fn, opts)
	if c == nil {
		c = privateCache[R](o.ttl)
	}
	var group singleflight.Group

	call := func(ctx context.Context, key string, arg A) Outcome[R] {
		out, err := fn(ctx, arg).Wait(ctx)
		if err != nil {
			return Outcome[R]{Err: err}
		}
		if out.Err != nil {
			return out
		}
		_, _ = c.SetWithTTLAsync(ctx, key, out.Value, o.ttl).Wait(ctx)
		return out
	}

	return func(ctx context.Context, arg A) *Future[Outcome[R]] {
		key := o.key(arg)
		return Go(func() Outcome[R] {
			if l, err := c.GetWithStatusAsync(ctx, key).Wait(ctx); err == nil && l.Hit {
				return Outcome[R]{Value: l.Value}
			}
			if !o.single {
				return call(ctx, key, arg)
			}

			flight := group.DoChan(key, func() (any, error) {
				return call(context.WithoutCancel(ctx), key, arg), nil
			})
			select {
			case res := <-flight:
				out, _ := res.Val.(Outcome[R])
				return out
			case <-ctx.Done():
				return Outcome[R]{Err: ctx.Err()}
			}
		})
	}
}
