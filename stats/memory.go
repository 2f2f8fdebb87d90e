package stats

import (
	"context"
	"maps"
	"sync"
	"time"
)

// MemoryRecorder is an in-process Recorder.
//
// Cumulative counters are never expired. Minute buckets older than the
// bucket TTL are pruned on write.
type MemoryRecorder struct {
	mu      sync.Mutex
	byKey   map[string]Counts
	minutes map[time.Time]map[string]Counts
	ttl     time.Duration
}

// MemoryOption configures a MemoryRecorder.
type MemoryOption func(*MemoryRecorder)

// WithRetention sets how long minute buckets are kept. Non-positive values
// keep the default.
func WithRetention(d time.Duration) MemoryOption {
	return func(m *MemoryRecorder) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// NewMemoryRecorder creates an empty MemoryRecorder.
func NewMemoryRecorder(opts ...MemoryOption) *MemoryRecorder {
	m := &MemoryRecorder{
		byKey:   make(map[string]Counts),
		minutes: make(map[time.Time]map[string]Counts),
		ttl:     DefaultBucketTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Record implements Recorder.
func (m *MemoryRecorder) Record(_ context.Context, ev Event) error {
	if err := ev.validate(); err != nil {
		return err
	}
	minute := minuteOf(ev.At)

	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.byKey[ev.KeyID]
	c.add(ev.Kind, 1)
	m.byKey[ev.KeyID] = c

	bucket, ok := m.minutes[minute]
	if !ok {
		bucket = make(map[string]Counts)
		m.minutes[minute] = bucket
		m.pruneLocked(minute)
	}
	c = bucket[ev.KeyID]
	c.add(ev.Kind, 1)
	bucket[ev.KeyID] = c
	return nil
}

func (m *MemoryRecorder) pruneLocked(now time.Time) {
	for minute := range m.minutes {
		if now.Sub(minute) >= m.ttl {
			delete(m.minutes, minute)
		}
	}
}

// Snapshot implements Recorder. The returned map is a copy.
func (m *MemoryRecorder) Snapshot(_ context.Context) (map[string]Counts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.byKey), nil
}

// Minute implements Recorder. The returned map is a copy.
func (m *MemoryRecorder) Minute(_ context.Context, at time.Time) (map[string]Counts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := maps.Clone(m.minutes[minuteOf(at)])
	if out == nil {
		out = make(map[string]Counts)
	}
	return out, nil
}

// Reset implements Recorder.
func (m *MemoryRecorder) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.byKey)
	clear(m.minutes)
	return nil
}

// Ping always succeeds.
func (m *MemoryRecorder) Ping(context.Context) error { return nil }
