package resilience

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Sentinel errors for key rotation.
var (
	// ErrNoKeys is returned by NewKeyPool when no credentials are configured.
	ErrNoKeys = errors.New("resilience: no api keys configured")

	// ErrAllKeysExhausted is matched by *ExhaustedError.
	ErrAllKeysExhausted = errors.New("resilience: all api keys are cooling down")

	// ErrRetriesExhausted is matched by *RetriesExhaustedError.
	ErrRetriesExhausted = errors.New("resilience: retry budget exhausted")
)

// ExhaustedError is returned when every key in the pool is in cooldown.
type ExhaustedError struct {
	// RetryAfter is the shortest remaining cooldown across the pool.
	RetryAfter time.Duration
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: retry after %ds", ErrAllKeysExhausted.Error(), e.RetryAfterSeconds())
}

// Is reports whether target is ErrAllKeysExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllKeysExhausted
}

// RetryAfterSeconds returns RetryAfter rounded up to whole seconds.
func (e *ExhaustedError) RetryAfterSeconds() int {
	if e == nil || e.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

// RetriesExhaustedError is returned when every attempt was rate limited.
// It matches both ErrRetriesExhausted and the last provider error.
type RetriesExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s after %d attempts", ErrRetriesExhausted.Error(), e.Attempts)
	}
	return fmt.Sprintf("%s after %d attempts: %v", ErrRetriesExhausted.Error(), e.Attempts, e.Err)
}

// Unwrap exposes the sentinel and the last underlying error.
func (e *RetriesExhaustedError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRetriesExhausted}
	}
	return []error{ErrRetriesExhausted, e.Err}
}

// RetryAfter extracts the suggested wait from an exhaustion error.
// It returns false for any other error.
func RetryAfter(err error) (time.Duration, bool) {
	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		return exhausted.RetryAfter, true
	}
	return 0, false
}
