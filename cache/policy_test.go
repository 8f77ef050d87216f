package cache

import (
	"testing"
	"time"
)

func TestPolicy_EffectiveTTL(t *testing.T) {
	p := Policy{
		DefaultTTL: 5 * time.Minute,
		MaxTTL:     10 * time.Minute,
	}

	tests := []struct {
		name     string
		override time.Duration
		want     time.Duration
	}{
		{"zero selects default", 0, 5 * time.Minute},
		{"negative selects default", -time.Second, 5 * time.Minute},
		{"override honored", 3 * time.Minute, 3 * time.Minute},
		{"sub-second override honored", 10 * time.Millisecond, 10 * time.Millisecond},
		{"override clamped", 15 * time.Minute, 10 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.EffectiveTTL(tt.override); got != tt.want {
				t.Errorf("EffectiveTTL(%v) = %v, want %v", tt.override, got, tt.want)
			}
		})
	}
}

func TestPolicy_NoMaxTTL(t *testing.T) {
	p := Policy{DefaultTTL: time.Minute}

	if got := p.EffectiveTTL(24 * time.Hour); got != 24*time.Hour {
		t.Errorf("EffectiveTTL(24h) = %v, want 24h when MaxTTL is zero", got)
	}
}

func TestPolicy_DefaultClampedByMaxTTL(t *testing.T) {
	p := Policy{DefaultTTL: time.Hour, MaxTTL: time.Minute}

	if got := p.EffectiveTTL(0); got != time.Minute {
		t.Errorf("EffectiveTTL(0) = %v, want %v", got, time.Minute)
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	if p.DefaultTTL != time.Hour {
		t.Errorf("DefaultTTL = %v, want 1h", p.DefaultTTL)
	}
	if p.MaxTTL != 0 {
		t.Errorf("MaxTTL = %v, want 0", p.MaxTTL)
	}
}

func TestPolicy_ExpiresAt(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := Policy{DefaultTTL: time.Minute}

	if got, want := p.ExpiresAt(now, 0), now.Add(time.Minute); !got.Equal(want) {
		t.Errorf("ExpiresAt(now, 0) = %v, want %v", got, want)
	}
	if got, want := p.ExpiresAt(now, time.Second), now.Add(time.Second); !got.Equal(want) {
		t.Errorf("ExpiresAt(now, 1s) = %v, want %v", got, want)
	}
}

func TestExpired_Boundary(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if expired(at.Add(-time.Nanosecond), at) {
		t.Error("entry should be live one nanosecond before expiry")
	}
	if !expired(at, at) {
		t.Error("entry should be dead at its expiry instant")
	}
	if !expired(at.Add(time.Second), at) {
		t.Error("entry should be dead after expiry")
	}
}
