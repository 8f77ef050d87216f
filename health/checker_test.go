package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubPinger struct {
	delay time.Duration
	err   error
}

func (p stubPinger) Ping(ctx context.Context) error {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return p.err
}

func TestStatus_String(t *testing.T) {
	tests := map[Status]string{
		StatusHealthy:   "healthy",
		StatusDegraded:  "degraded",
		StatusUnhealthy: "unhealthy",
		Status(99):      "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", s, got, want)
		}
	}
}

func TestResultConstructors(t *testing.T) {
	boom := errors.New("boom")

	if r := Healthy("ok"); r.Status != StatusHealthy || r.Timestamp.IsZero() {
		t.Errorf("Healthy() = %+v", r)
	}
	if r := Degraded("slow"); r.Status != StatusDegraded || r.Message != "slow" {
		t.Errorf("Degraded() = %+v", r)
	}
	r := Unhealthy("down", boom).
		WithDetails(map[string]any{"backend": "remote"}).
		WithDuration(time.Millisecond)
	if r.Status != StatusUnhealthy || !errors.Is(r.Error, boom) {
		t.Errorf("Unhealthy() = %+v", r)
	}
	if r.Details["backend"] != "remote" || r.Duration != time.Millisecond {
		t.Errorf("builders not applied: %+v", r)
	}
}

func TestCheckerFunc(t *testing.T) {
	c := NewCheckerFunc("memory", func(context.Context) Result { return Healthy("in-process") })

	if c.Name() != "memory" {
		t.Errorf("Name() = %q", c.Name())
	}
	if r := c.Check(context.Background()); r.Message != "in-process" {
		t.Errorf("Check() = %+v", r)
	}
}

func TestPingChecker(t *testing.T) {
	refused := errors.New("connection refused")

	tests := []struct {
		name          string
		pinger        stubPinger
		degradedAfter time.Duration
		want          Status
	}{
		{name: "reachable", pinger: stubPinger{}, want: StatusHealthy},
		{name: "unreachable", pinger: stubPinger{err: refused}, want: StatusUnhealthy},
		{name: "slow", pinger: stubPinger{delay: 20 * time.Millisecond}, degradedAfter: time.Millisecond, want: StatusDegraded},
		{name: "slow without threshold", pinger: stubPinger{delay: 5 * time.Millisecond}, want: StatusHealthy},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewPingChecker("redis", tc.pinger, tc.degradedAfter)
			r := c.Check(context.Background())
			if r.Status != tc.want {
				t.Errorf("Check() status = %v, want %v", r.Status, tc.want)
			}
			if tc.pinger.err != nil && !errors.Is(r.Error, tc.pinger.err) {
				t.Errorf("Check() error = %v, want %v", r.Error, tc.pinger.err)
			}
			if c.Name() != "redis" {
				t.Errorf("Name() = %q", c.Name())
			}
		})
	}
}
