package stats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidEvent is returned when an event has no key ID or an unknown kind.
var ErrInvalidEvent = errors.New("stats: invalid event")

// Kind is the type of a recorded event.
type Kind string

const (
	// KindAttempt is recorded before each provider call.
	KindAttempt Kind = "attempt"
	// KindRateLimited is recorded when a key is put into cooldown.
	KindRateLimited Kind = "rate_limited"
	// KindSuccess is recorded when a call succeeds.
	KindSuccess Kind = "success"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindAttempt, KindRateLimited, KindSuccess:
		return true
	default:
		return false
	}
}

// Event is a single usage observation for one key.
type Event struct {
	KeyID string
	Kind  Kind
	At    time.Time
}

func (e Event) validate() error {
	if strings.TrimSpace(e.KeyID) == "" {
		return fmt.Errorf("%w: empty key id", ErrInvalidEvent)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
	return nil
}

// Counts aggregates events for a key.
type Counts struct {
	Attempts    int64 `json:"attempts"`
	RateLimited int64 `json:"rate_limited"`
	Successes   int64 `json:"successes"`
}

func (c *Counts) add(kind Kind, n int64) {
	switch kind {
	case KindAttempt:
		c.Attempts += n
	case KindRateLimited:
		c.RateLimited += n
	case KindSuccess:
		c.Successes += n
	}
}

// Recorder persists usage events.
//
// Implementations must be safe for concurrent use.
type Recorder interface {
	// Record stores a single event.
	Record(ctx context.Context, ev Event) error

	// Snapshot returns cumulative counts keyed by key ID.
	Snapshot(ctx context.Context) (map[string]Counts, error)

	// Minute returns the counts recorded in the minute containing at.
	// Expired or disabled buckets read as empty.
	Minute(ctx context.Context, at time.Time) (map[string]Counts, error)

	// Reset drops every counter and bucket.
	Reset(ctx context.Context) error
}

// DefaultBucketTTL is how long per-minute buckets are kept by default.
const DefaultBucketTTL = 24 * time.Hour

func minuteOf(at time.Time) time.Time {
	if at.IsZero() {
		at = time.Now()
	}
	return at.UTC().Truncate(time.Minute)
}

// Total sums every entry of a snapshot.
func Total(snapshot map[string]Counts) Counts {
	var total Counts
	for _, c := range snapshot {
		total.Attempts += c.Attempts
		total.RateLimited += c.RateLimited
		total.Successes += c.Successes
	}
	return total
}
