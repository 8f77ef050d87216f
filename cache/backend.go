package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Kind names a backend implementation.
type Kind string

const (
	KindMemory     Kind = "memory"
	KindFilesystem Kind = "filesystem"
	KindRemote     Kind = "remote"
)

// ParseKind parses a backend name. "disk" and "redis" are accepted as
// aliases for filesystem and remote.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "memory", "":
		return KindMemory, nil
	case "filesystem", "disk":
		return KindFilesystem, nil
	case "remote", "redis":
		return KindRemote, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler so Kind can be read
// from environment variables.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Backend stores (expiry, payload) pairs under normalized keys.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Keys: callers pass normalized keys; backends may escape them further
//     for their storage but must not collide two distinct keys.
//   - Expiry: an entry with now >= expiresAt must read as a miss and should
//     be removed when observed.
//   - Errors: storage failures are returned wrapped in the package sentinels;
//     a miss is (nil, false, nil), never an error.
type Backend interface {
	Kind() Kind
	Get(ctx context.Context, key string) (payload []byte, ok bool, err error)
	Set(ctx context.Context, key string, payload []byte, expiresAt time.Time) error
	Delete(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context) error
	Close() error
}

// Dispatch describes how the non-blocking Cache methods run a backend call.
type Dispatch int

const (
	// DispatchPool runs blocking calls on the cache's bounded worker pool.
	DispatchPool Dispatch = iota
	// DispatchInline runs the call on the calling goroutine; the backend
	// never blocks on I/O.
	DispatchInline
	// DispatchNative runs the call on its own goroutine; the backend's
	// client multiplexes requests itself and needs no pool slot.
	DispatchNative
)

// Dispatcher is implemented by backends that do not want pool dispatch.
type Dispatcher interface {
	Dispatch() Dispatch
}

func dispatchOf(b Backend) Dispatch {
	if d, ok := b.(Dispatcher); ok {
		return d.Dispatch()
	}
	return DispatchPool
}

// Pinger is implemented by backends that can prove they are usable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Lener is implemented by backends that can count resident entries cheaply.
type Lener interface {
	Len() int
}
