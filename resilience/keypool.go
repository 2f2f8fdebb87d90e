package resilience

import (
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"
)

// DefaultCooldown is how long a key stays disabled after a rate-limit signal.
const DefaultCooldown = 60 * time.Second

// Key is a credential handed out by a KeyPool.
type Key struct {
	// Index is the key's position in the pool.
	Index int

	// Secret is the raw credential. Never log it; use ID instead.
	Secret string
}

// ID returns a short fingerprint of the secret for logs and metrics.
// It is not suitable for comparing secrets.
func (k Key) ID() string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(k.Secret))
	return hex.EncodeToString(h.Sum(nil))[:8]
}

// String renders the key without its secret.
func (k Key) String() string {
	return fmt.Sprintf("key[%d]:%s", k.Index, k.ID())
}

// KeyState is the rotation state of a single key.
type KeyState int

const (
	// KeyActive means the key can be selected.
	KeyActive KeyState = iota
	// KeyCooldown means the key was rate limited and is waiting to expire.
	KeyCooldown
)

// String returns the string representation of the state.
func (s KeyState) String() string {
	switch s {
	case KeyActive:
		return "active"
	case KeyCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// KeyPoolConfig configures a KeyPool.
type KeyPoolConfig struct {
	// Keys is the ordered credential list. Blank entries are dropped.
	// Required: at least one non-blank key.
	Keys []string

	// Cooldown is how long a rate-limited key is excluded from selection.
	// Default: 60s
	Cooldown time.Duration

	// Clock returns the current time.
	// Default: time.Now
	Clock func() time.Time
}

// KeyPool holds an ordered set of credentials and their cooldown state.
//
// Contract:
//   - Concurrency: all methods are safe for concurrent use; every read and
//     write of the selection index and the cooldown map happens under one mutex.
//   - Blocking: methods never block beyond the mutex and never call out.
type KeyPool struct {
	keys     []string
	cooldown time.Duration
	now      func() time.Time

	mu            sync.Mutex
	current       int
	disabledUntil map[int]time.Time
}

// NewKeyPool creates a pool. It returns ErrNoKeys when no usable key is given.
func NewKeyPool(config KeyPoolConfig) (*KeyPool, error) {
	keys := make([]string, 0, len(config.Keys))
	for _, k := range config.Keys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}

	if config.Cooldown <= 0 {
		config.Cooldown = DefaultCooldown
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &KeyPool{
		keys:          keys,
		cooldown:      config.Cooldown,
		now:           config.Clock,
		disabledUntil: make(map[int]time.Time),
	}, nil
}

// Len returns the number of keys in the pool.
func (p *KeyPool) Len() int {
	return len(p.keys)
}

// Cooldown returns the configured cooldown duration.
func (p *KeyPool) Cooldown() time.Duration {
	return p.cooldown
}

// Current returns the index the next selection starts from.
func (p *KeyPool) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// ActiveKey returns the key at the current index if it is not in cooldown.
// Otherwise it scans forward from the current index, wrapping around, and
// moves the index to the first key that is not in cooldown.
//
// When every key is in cooldown it returns an *ExhaustedError carrying the
// shortest remaining cooldown.
func (p *KeyPool) ActiveKey() (Key, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	n := len(p.keys)
	for offset := 0; offset < n; offset++ {
		idx := (p.current + offset) % n
		if !p.isDisabledLocked(idx, now) {
			p.current = idx
			return Key{Index: idx, Secret: p.keys[idx]}, nil
		}
	}

	return Key{}, &ExhaustedError{RetryAfter: p.minWaitLocked(now)}
}

// MarkRateLimited puts the key at index into cooldown and advances the
// current index to the following key, round-robin. The target of the advance
// is not checked; exhaustion is detected by the next ActiveKey call.
// Out-of-range indices are ignored.
func (p *KeyPool) MarkRateLimited(index int) {
	if index < 0 || index >= len(p.keys) {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.disabledUntil[index] = p.now().Add(p.cooldown)
	p.current = (index + 1) % len(p.keys)
}

// IsDisabled reports whether the key at index is in cooldown. An expired
// cooldown entry is removed the first time it is checked.
func (p *KeyPool) IsDisabled(index int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isDisabledLocked(index, p.now())
}

// KeyStatus describes one key for diagnostics.
type KeyStatus struct {
	Index         int
	ID            string
	State         KeyState
	DisabledUntil time.Time
	Remaining     time.Duration
}

// PoolStatus is a point-in-time view of the pool.
type PoolStatus struct {
	Current  int
	Cooldown time.Duration
	Keys     []KeyStatus
}

// ActiveCount returns how many keys are selectable.
func (s PoolStatus) ActiveCount() int {
	count := 0
	for _, k := range s.Keys {
		if k.State == KeyActive {
			count++
		}
	}
	return count
}

// MinRemaining returns the shortest remaining cooldown, or zero when at least
// one key is active.
func (s PoolStatus) MinRemaining() time.Duration {
	var shortest time.Duration
	for _, k := range s.Keys {
		if k.State == KeyActive {
			return 0
		}
		if shortest == 0 || k.Remaining < shortest {
			shortest = k.Remaining
		}
	}
	return shortest
}

// Status returns a snapshot of every key's state.
func (p *KeyPool) Status() PoolStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	status := PoolStatus{
		Current:  p.current,
		Cooldown: p.cooldown,
		Keys:     make([]KeyStatus, len(p.keys)),
	}
	for i, secret := range p.keys {
		ks := KeyStatus{
			Index: i,
			ID:    Key{Index: i, Secret: secret}.ID(),
			State: KeyActive,
		}
		if p.isDisabledLocked(i, now) {
			until := p.disabledUntil[i]
			ks.State = KeyCooldown
			ks.DisabledUntil = until
			ks.Remaining = until.Sub(now)
		}
		status.Keys[i] = ks
	}
	return status
}

func (p *KeyPool) isDisabledLocked(index int, now time.Time) bool {
	until, ok := p.disabledUntil[index]
	if !ok {
		return false
	}
	if now.Before(until) {
		return true
	}
	delete(p.disabledUntil, index)
	return false
}

func (p *KeyPool) minWaitLocked(now time.Time) time.Duration {
	var shortest time.Duration
	for _, until := range p.disabledUntil {
		remaining := until.Sub(now)
		if remaining <= 0 {
			continue
		}
		if shortest == 0 || remaining < shortest {
			shortest = remaining
		}
	}
	if shortest == 0 {
		return p.cooldown
	}
	return shortest
}
