package cache

import "time"

// Policy holds the expiry rules of a Cache.
type Policy struct {
	// DefaultTTL is the TTL used when a write does not specify one.
	DefaultTTL time.Duration

	// MaxTTL clamps every TTL. If zero, no maximum is enforced.
	MaxTTL time.Duration
}

// DefaultPolicy returns the default expiry policy: one hour, unclamped.
func DefaultPolicy() Policy {
	return Policy{DefaultTTL: time.Hour}
}

// EffectiveTTL returns the TTL to use for a write. A non-positive override
// selects DefaultTTL; the result is clamped to MaxTTL.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.DefaultTTL
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl
}

// ExpiresAt returns the absolute expiry of a write made at now.
func (p Policy) ExpiresAt(now time.Time, override time.Duration) time.Time {
	return now.Add(p.EffectiveTTL(override))
}

// expired reports whether an entry expiring at expiresAt is dead at now.
// An entry is dead from the instant now reaches its expiry.
func expired(now, expiresAt time.Time) bool {
	return !now.Before(expiresAt)
}
