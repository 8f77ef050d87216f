package cache

import "errors"

// Sentinel errors. Backends wrap their causes with these; the Cache façade
// absorbs all of them on the data path, so callers only see them from
// construction and from the Backend methods when used directly.
var (
	// ErrBackendUnavailable indicates the storage could not be reached or
	// written: an unreachable Redis server, an unwritable directory.
	ErrBackendUnavailable = errors.New("cache: backend unavailable")

	// ErrCorrupted indicates a stored entry could not be decoded.
	ErrCorrupted = errors.New("cache: corrupted entry")

	// ErrSerializationFailed indicates a value could not be encoded.
	ErrSerializationFailed = errors.New("cache: serialization failed")

	// ErrInvalidConfig indicates a Config or Option was rejected.
	ErrInvalidConfig = errors.New("cache: invalid config")

	// ErrUnknownBackend indicates an unrecognized backend kind.
	ErrUnknownBackend = errors.New("cache: unknown backend")

	// ErrClosed indicates the cache or backend has been closed.
	ErrClosed = errors.New("cache: closed")
)
