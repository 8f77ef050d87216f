package cache

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryBackend is an in-process backend bounded by entry count.
//
// When a write leaves more than maxSize entries resident, eviction runs in
// two phases: every expired entry is dropped first, then the least recently
// accessed live entries until the bound holds again.
type MemoryBackend struct {
	maxSize int
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry
	access  map[string]accessMark
	seq     uint64
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// accessMark orders entries by recency; seq breaks ties between accesses
// that share a clock reading.
type accessMark struct {
	at  time.Time
	seq uint64
}

// NewMemoryBackend creates a memory backend holding at most maxSize entries.
// A non-positive maxSize disables the bound.
func NewMemoryBackend(maxSize int) *MemoryBackend {
	return &MemoryBackend{
		maxSize: maxSize,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
		access:  make(map[string]accessMark),
	}
}

// Kind returns KindMemory.
func (m *MemoryBackend) Kind() Kind { return KindMemory }

// Dispatch reports that memory operations never need a worker.
func (m *MemoryBackend) Dispatch() Dispatch { return DispatchInline }

// Get returns the payload for key and refreshes its access time.
// An expired entry is removed and reported as a miss.
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}

	now := m.now()
	if expired(now, entry.expiresAt) {
		m.removeLocked(key)
		return nil, false, nil
	}

	m.touchLocked(key, now)
	return entry.payload, true, nil
}

// Set replaces the entry for key and enforces the size bound.
func (m *MemoryBackend) Set(_ context.Context, key string, payload []byte, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.entries[key] = memoryEntry{payload: payload, expiresAt: expiresAt}
	m.touchLocked(key, now)

	if m.maxSize > 0 && len(m.entries) > m.maxSize {
		m.evictLocked(now)
	}
	return nil
}

// Delete removes key and reports whether it was resident.
func (m *MemoryBackend) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.entries[key]
	m.removeLocked(key)
	return ok, nil
}

// Clear removes every entry.
func (m *MemoryBackend) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.entries)
	clear(m.access)
	return nil
}

// Len returns the number of resident entries, expired ones included.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Ping always succeeds.
func (m *MemoryBackend) Ping(context.Context) error { return nil }

// Close drops all entries.
func (m *MemoryBackend) Close() error {
	return m.Clear(context.Background())
}

func (m *MemoryBackend) touchLocked(key string, now time.Time) {
	m.seq++
	m.access[key] = accessMark{at: now, seq: m.seq}
}

func (m *MemoryBackend) removeLocked(key string) {
	delete(m.entries, key)
	delete(m.access, key)
}

func (m *MemoryBackend) evictLocked(now time.Time) {
	for key, entry := range m.entries {
		if expired(now, entry.expiresAt) {
			m.removeLocked(key)
		}
	}

	excess := len(m.entries) - m.maxSize
	if excess <= 0 {
		return
	}

	type candidate struct {
		key  string
		mark accessMark
	}
	candidates := make([]candidate, 0, len(m.access))
	for key, mark := range m.access {
		candidates = append(candidates, candidate{key: key, mark: mark})
	}
	slices.SortFunc(candidates, func(a, b candidate) int {
		if c := a.mark.at.Compare(b.mark.at); c != 0 {
			return c
		}
		return cmp.Compare(a.mark.seq, b.mark.seq)
	})

	for _, c := range candidates[:excess] {
		m.removeLocked(c.key)
	}
}

var (
	_ Backend    = (*MemoryBackend)(nil)
	_ Dispatcher = (*MemoryBackend)(nil)
	_ Pinger     = (*MemoryBackend)(nil)
	_ Lener      = (*MemoryBackend)(nil)
)
