package health

import (
	"context"
	"time"
)

// Status represents the health status of a component.
type Status int

const (
	// StatusHealthy indicates the component is functioning normally.
	StatusHealthy Status = iota
	// StatusDegraded indicates the component answers but slowly or partially.
	StatusDegraded
	// StatusUnhealthy indicates the component is unusable. For a cache this
	// means every operation is currently degrading to a miss.
	StatusUnhealthy
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result contains the outcome of a health check.
type Result struct {
	Status    Status
	Message   string
	Details   map[string]any
	Duration  time.Duration
	Timestamp time.Time
	Error     error
}

// Healthy creates a healthy result.
func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message, Timestamp: time.Now()}
}

// Degraded creates a degraded result.
func Degraded(message string) Result {
	return Result{Status: StatusDegraded, Message: message, Timestamp: time.Now()}
}

// Unhealthy creates an unhealthy result.
func Unhealthy(message string, err error) Result {
	return Result{Status: StatusUnhealthy, Message: message, Error: err, Timestamp: time.Now()}
}

// WithDetails adds details to a result.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// WithDuration sets the duration on a result.
func (r Result) WithDuration(d time.Duration) Result {
	r.Duration = d
	return r
}

// Checker reports the health of one component.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc creates a new CheckerFunc.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

// Name returns the name of this checker.
func (f *CheckerFunc) Name() string {
	return f.name
}

// Check performs the health check.
func (f *CheckerFunc) Check(ctx context.Context) Result {
	return f.fn(ctx)
}

// Pinger is implemented by storage that can prove it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker turns a Pinger into a Checker. A failed ping is unhealthy;
// a successful ping slower than DegradedAfter is degraded.
type PingChecker struct {
	name          string
	pinger        Pinger
	degradedAfter time.Duration
}

// NewPingChecker creates a checker that pings p. A zero degradedAfter
// disables the latency check.
func NewPingChecker(name string, p Pinger, degradedAfter time.Duration) *PingChecker {
	return &PingChecker{name: name, pinger: p, degradedAfter: degradedAfter}
}

// Name returns the name of this checker.
func (c *PingChecker) Name() string {
	return c.name
}

// Check pings the component and grades the outcome.
func (c *PingChecker) Check(ctx context.Context) Result {
	start := time.Now()
	err := c.pinger.Ping(ctx)
	elapsed := time.Since(start)

	switch {
	case err != nil:
		return Unhealthy("ping failed", err).WithDuration(elapsed)
	case c.degradedAfter > 0 && elapsed > c.degradedAfter:
		return Degraded("ping slow").WithDuration(elapsed)
	default:
		return Healthy("ping ok").WithDuration(elapsed)
	}
}
