package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory session store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	policy   Policy
	now      func() time.Time
}

type entry struct {
	messages  []Message
	expiresAt time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock sets the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates a new in-memory store with the given policy.
func NewMemoryStore(policy Policy, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]*entry),
		policy:   policy,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// History returns a copy of the session's messages.
func (s *MemoryStore) History(_ context.Context, id string) ([]Message, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	e, ok := s.sessions[id]
	var out []Message
	expired := false
	if ok {
		if s.expired(e) {
			expired = true
		} else {
			out = append([]Message(nil), e.messages...)
		}
	}
	s.mu.RUnlock()

	if expired {
		// Expired - clean up lazily
		s.mu.Lock()
		if e, ok := s.sessions[id]; ok && s.expired(e) {
			delete(s.sessions, id)
		}
		s.mu.Unlock()
	}

	if out == nil {
		out = []Message{}
	}
	return out, nil
}

// Append adds messages and refreshes the session expiry.
func (s *MemoryStore) Append(_ context.Context, id string, msgs ...Message) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	for _, m := range msgs {
		if err := validateMessage(m); err != nil {
			return err
		}
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok || s.expired(e) {
		e = &entry{}
		s.sessions[id] = e
	}
	for _, m := range msgs {
		if m.At.IsZero() {
			m.At = now
		}
		e.messages = append(e.messages, m)
	}
	e.messages = s.policy.trim(e.messages)
	if s.policy.Expires() {
		e.expiresAt = now.Add(s.policy.TTL)
	}
	return nil
}

// Clear removes a session. Idempotent - no error on miss.
func (s *MemoryStore) Clear(_ context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions, including expired ones not yet
// cleaned up.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) expired(e *entry) bool {
	return s.policy.Expires() && !s.now().Before(e.expiresAt)
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
