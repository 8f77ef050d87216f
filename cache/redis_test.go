package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/jonwraymond/toolcache/resilience"
)

func newTestRedis(t *testing.T, prefix string) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	rb, err := NewRedisBackend(RedisConfig{
		URL:              mr.Addr(),
		Prefix:           prefix,
		OperationTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("NewRedisBackend failed: %v", err)
	}
	t.Cleanup(func() { _ = rb.Close() })
	return rb, mr
}

func TestNewRedisBackend_InvalidURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"bad scheme", "http://localhost:6379"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRedisBackend(RedisConfig{URL: tt.url})
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestRedisBackend_RoundTrip(t *testing.T) {
	rb, mr := newTestRedis(t, "app:")
	ctx := context.Background()

	if err := rb.Set(ctx, "k", []byte("v"), time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !mr.Exists("app:k") {
		t.Error("value should be stored under the prefixed key")
	}

	got, ok, err := rb.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Errorf("Get = %q, %v, %v; want v, true, nil", got, ok, err)
	}
}

func TestRedisBackend_ServerSideExpiry(t *testing.T) {
	rb, mr := newTestRedis(t, "app:")
	ctx := context.Background()

	_ = rb.Set(ctx, "k", []byte("v"), time.Now().Add(10*time.Second))
	if ttl := mr.TTL("app:k"); ttl <= 0 || ttl > 10*time.Second {
		t.Errorf("server TTL = %v, want (0, 10s]", ttl)
	}

	mr.FastForward(11 * time.Second)
	if _, ok, err := rb.Get(ctx, "k"); ok || err != nil {
		t.Errorf("Get after expiry = ok %v, err %v; want miss", ok, err)
	}
}

func TestRedisBackend_SetExpiredDeletes(t *testing.T) {
	rb, mr := newTestRedis(t, "app:")
	ctx := context.Background()

	_ = rb.Set(ctx, "k", []byte("v"), time.Now().Add(time.Minute))
	if err := rb.Set(ctx, "k", []byte("v2"), time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if mr.Exists("app:k") {
		t.Error("an already expired write should remove the key")
	}
}

func TestRedisBackend_EmptyValueIsMiss(t *testing.T) {
	rb, mr := newTestRedis(t, "app:")

	if err := mr.Set("app:empty", ""); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := rb.Get(context.Background(), "empty"); ok || err != nil {
		t.Errorf("Get(empty) = ok %v, err %v; want miss", ok, err)
	}
}

func TestRedisBackend_Delete(t *testing.T) {
	rb, _ := newTestRedis(t, "app:")
	ctx := context.Background()

	_ = rb.Set(ctx, "k", []byte("v"), time.Now().Add(time.Minute))

	removed, err := rb.Delete(ctx, "k")
	if err != nil || !removed {
		t.Errorf("Delete(k) = %v, %v; want true, nil", removed, err)
	}
	removed, err = rb.Delete(ctx, "k")
	if err != nil || removed {
		t.Errorf("Delete(k) again = %v, %v; want false, nil", removed, err)
	}
}

func TestRedisBackend_ClearOnlyPrefix(t *testing.T) {
	rb, mr := newTestRedis(t, "app:")
	rb.scanSize = 2
	ctx := context.Background()

	for i := range 7 {
		_ = rb.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Now().Add(time.Minute))
	}
	if err := mr.Set("other:k", "keep"); err != nil {
		t.Fatal(err)
	}

	if err := rb.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if keys := mr.Keys(); len(keys) != 1 || keys[0] != "other:k" {
		t.Errorf("keys after Clear = %v, want [other:k]", keys)
	}
}

func TestRedisBackend_ClearEscapesPrefix(t *testing.T) {
	rb, mr := newTestRedis(t, "a*")
	ctx := context.Background()

	_ = rb.Set(ctx, "k", []byte("v"), time.Now().Add(time.Minute))
	if err := mr.Set("ab", "keep"); err != nil {
		t.Fatal(err)
	}

	if err := rb.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if mr.Exists("a*k") {
		t.Error("a*k should be cleared")
	}
	if !mr.Exists("ab") {
		t.Error("ab is outside the prefix and should survive")
	}
}

func TestRedisBackend_ServerErrorsAreUnavailable(t *testing.T) {
	rb, mr := newTestRedis(t, "app:")
	ctx := context.Background()

	mr.SetError("ERR forced failure")
	defer mr.SetError("")

	if _, _, err := rb.Get(ctx, "k"); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("Get error = %v, want ErrBackendUnavailable", err)
	}
	if err := rb.Set(ctx, "k", []byte("v"), time.Now().Add(time.Minute)); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("Set error = %v, want ErrBackendUnavailable", err)
	}
}

func TestRedisBackend_UnreachableOpensBreaker(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	addr := mr.Addr()
	mr.Close()

	rb, err := NewRedisBackend(RedisConfig{
		URL:              "redis://" + addr,
		OperationTimeout: 500 * time.Millisecond,
		BreakerFailures:  2,
		BreakerReset:     time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer rb.Close()
	ctx := context.Background()

	for range 2 {
		if _, ok, err := rb.Get(ctx, "k"); ok || !errors.Is(err, ErrBackendUnavailable) {
			t.Fatalf("Get = ok %v, err %v; want unavailable miss", ok, err)
		}
	}

	if rb.Breaker().State() != resilience.StateOpen {
		t.Fatalf("breaker state = %v, want open", rb.Breaker().State())
	}
	_, _, err = rb.Get(ctx, "k")
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Get with open breaker error = %v, want ErrCircuitOpen", err)
	}
	if err := rb.Ping(ctx); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("Ping() = %v, want ErrBackendUnavailable", err)
	}
}

func TestRedisBackend_BorrowedClientStaysOpen(t *testing.T) {
	owner, mr := newTestRedis(t, "")

	borrowed := NewRedisBackendWithClient(owner.Client(), RedisConfig{Prefix: "b:"})
	if err := borrowed.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	ctx := context.Background()
	if err := owner.Ping(ctx); err != nil {
		t.Errorf("owner Ping after borrowed Close = %v", err)
	}
	_ = borrowed.Set(ctx, "k", []byte("v"), time.Now().Add(time.Minute))
	if !mr.Exists("b:k") {
		t.Error("borrowed backend should still write through the shared client")
	}
}

func TestEscapeGlob(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"max_assistant:", "max_assistant:"},
		{"a*b", `a\*b`},
		{"q?[x]", `q\?\[x\]`},
		{`back\slash`, `back\\slash`},
	}

	for _, tt := range tests {
		if got := escapeGlob(tt.in); got != tt.want {
			t.Errorf("escapeGlob(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
