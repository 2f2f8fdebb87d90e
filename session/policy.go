package session

import "time"

// Policy configures session retention.
type Policy struct {
	// TTL is how long an idle session is kept. Zero keeps sessions forever.
	TTL time.Duration `mapstructure:"ttl"`

	// MaxMessages caps the stored history; older messages are dropped first.
	// Trimming never leaves a model turn at the head, so an odd cap keeps
	// one message less. Zero means unbounded.
	MaxMessages int `mapstructure:"max_messages"`
}

// DefaultPolicy returns the default retention policy.
// TTL: 1 hour, MaxMessages: 100
func DefaultPolicy() Policy {
	return Policy{
		TTL:         time.Hour,
		MaxMessages: 100,
	}
}

// Expires reports whether sessions expire under this policy.
func (p Policy) Expires() bool {
	return p.TTL > 0
}

// trim returns at most MaxMessages of the most recent messages, starting at
// a user turn.
func (p Policy) trim(msgs []Message) []Message {
	if p.MaxMessages <= 0 || len(msgs) <= p.MaxMessages {
		return msgs
	}
	start := len(msgs) - p.MaxMessages
	for start < len(msgs) && msgs[start].Role != RoleUser {
		start++
	}
	return msgs[start:]
}
