package session

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxIDLength is the maximum allowed length for a session ID.
const MaxIDLength = 512

// Sentinel errors for session operations.
var (
	ErrNilStore    = errors.New("session: store is nil")
	ErrInvalidID   = errors.New("session: id is invalid")
	ErrIDTooLong   = errors.New("session: id exceeds max length")
	ErrInvalidRole = errors.New("session: message role is invalid")
)

// Message roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message is one turn of a conversation.
type Message struct {
	Role string
	Text string
	At   time.Time
}

// Store holds conversation history.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - History returns a copy; callers may modify it freely.
// - History on an unknown or expired session returns an empty slice, not an error.
type Store interface {
	// History returns the messages of a session, oldest first.
	History(ctx context.Context, id string) ([]Message, error)

	// Append adds messages to a session and refreshes its expiry.
	Append(ctx context.Context, id string, msgs ...Message) error

	// Clear removes a session. Idempotent.
	Clear(ctx context.Context, id string) error
}

// ValidateID checks if a session ID is usable.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidID
	}
	if len(id) > MaxIDLength {
		return ErrIDTooLong
	}
	if strings.ContainsAny(id, "\n\r") {
		return ErrInvalidID
	}
	return nil
}

func validateMessage(m Message) error {
	switch m.Role {
	case RoleUser, RoleModel:
		return nil
	default:
		return ErrInvalidRole
	}
}
