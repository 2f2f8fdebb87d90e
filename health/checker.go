package health

import (
	"context"
	"fmt"
	"time"
)

// Status is a component's health. Higher values are worse.
type Status int

const (
	StatusHealthy Status = iota
	// StatusDegraded means the component still serves traffic, for example a
	// pool with some keys cooling down.
	StatusDegraded
	StatusUnhealthy
)

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

// MarshalText renders the status as its name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the outcome of one check.
type Result struct {
	Status  Status
	Message string
	Details map[string]any
	// Duration and Timestamp are filled in by the Aggregator when unset.
	Duration  time.Duration
	Timestamp time.Time
	Error     error
}

func newResult(s Status, message string, err error) Result {
	return Result{Status: s, Message: message, Error: err, Timestamp: time.Now()}
}

// Healthy returns a healthy result.
func Healthy(message string) Result { return newResult(StatusHealthy, message, nil) }

// Degraded returns a degraded result.
func Degraded(message string) Result { return newResult(StatusDegraded, message, nil) }

// Unhealthy returns an unhealthy result carrying err.
func Unhealthy(message string, err error) Result {
	return newResult(StatusUnhealthy, message, err)
}

// WithDetails returns r with details attached.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// Checker checks one component.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc returns a Checker named name that calls fn.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

func (f *CheckerFunc) Name() string                     { return f.name }
func (f *CheckerFunc) Check(ctx context.Context) Result { return f.fn(ctx) }

// Pinger is a dependency that can report reachability.
// *stats.RedisRecorder and *stats.MemoryRecorder implement it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker reports a dependency unhealthy when its Ping fails.
type PingChecker struct {
	name   string
	pinger Pinger
}

// NewPingChecker returns a checker named name around p.
func NewPingChecker(name string, p Pinger) *PingChecker {
	return &PingChecker{name: name, pinger: p}
}

func (c *PingChecker) Name() string { return c.name }

// Check pings the dependency.
func (c *PingChecker) Check(ctx context.Context) Result {
	if err := c.pinger.Ping(ctx); err != nil {
		return Unhealthy(c.name+" unreachable", fmt.Errorf("%w: %w", ErrCheckFailed, err))
	}
	return Healthy(c.name + " reachable")
}
