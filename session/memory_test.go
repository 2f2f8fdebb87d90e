package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func TestMemoryStore_AppendHistoryClear(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore(DefaultPolicy(), WithClock(clock.Now))
	ctx := context.Background()

	got, err := store.History(ctx, "s1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("History on unknown session = %v, want empty slice", got)
	}

	err = store.Append(ctx, "s1",
		Message{Role: RoleUser, Text: "hi"},
		Message{Role: RoleModel, Text: "hello"},
	)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err = store.History(ctx, "s1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(History) = %d, want 2", len(got))
	}
	if got[0].Role != RoleUser || got[1].Text != "hello" {
		t.Errorf("History = %+v", got)
	}
	if !got[0].At.Equal(clock.Now()) {
		t.Errorf("At = %v, want %v", got[0].At, clock.Now())
	}

	if err := store.Clear(ctx, "s1"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	got, _ = store.History(ctx, "s1")
	if len(got) != 0 {
		t.Errorf("History after Clear = %v, want empty", got)
	}

	if err := store.Clear(ctx, "never-existed"); err != nil {
		t.Errorf("Clear on unknown session should not error, got: %v", err)
	}
}

func TestMemoryStore_HistoryIsCopy(t *testing.T) {
	store := NewMemoryStore(DefaultPolicy())
	ctx := context.Background()

	_ = store.Append(ctx, "s", Message{Role: RoleUser, Text: "original"})
	got, _ := store.History(ctx, "s")
	got[0].Text = "mutated"

	again, _ := store.History(ctx, "s")
	if again[0].Text != "original" {
		t.Error("mutating History result should not affect the store")
	}
}

func TestMemoryStore_InvalidInput(t *testing.T) {
	store := NewMemoryStore(DefaultPolicy())
	ctx := context.Background()

	if _, err := store.History(ctx, ""); !errors.Is(err, ErrInvalidID) {
		t.Errorf("History(\"\") = %v, want ErrInvalidID", err)
	}
	if err := store.Append(ctx, "s", Message{Role: "system", Text: "x"}); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("Append with bad role = %v, want ErrInvalidRole", err)
	}
	if store.Len() != 0 {
		t.Error("a rejected Append should not create a session")
	}
}

func TestMemoryStore_TTL(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore(Policy{TTL: time.Minute}, WithClock(clock.Now))
	ctx := context.Background()

	_ = store.Append(ctx, "s", Message{Role: RoleUser, Text: "hi"})

	clock.Advance(59 * time.Second)
	got, _ := store.History(ctx, "s")
	if len(got) != 1 {
		t.Fatalf("session should still be live, got %d messages", len(got))
	}

	// Append refreshes the expiry.
	_ = store.Append(ctx, "s", Message{Role: RoleModel, Text: "hello"})
	clock.Advance(59 * time.Second)
	got, _ = store.History(ctx, "s")
	if len(got) != 2 {
		t.Fatalf("session should be refreshed by Append, got %d messages", len(got))
	}

	clock.Advance(time.Second)
	got, _ = store.History(ctx, "s")
	if len(got) != 0 {
		t.Errorf("expired session should be empty, got %d messages", len(got))
	}
	if store.Len() != 0 {
		t.Error("expired session should be removed lazily on read")
	}
}

func TestMemoryStore_AppendAfterExpiryStartsFresh(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore(Policy{TTL: time.Minute}, WithClock(clock.Now))
	ctx := context.Background()

	_ = store.Append(ctx, "s", Message{Role: RoleUser, Text: "old"})
	clock.Advance(2 * time.Minute)
	_ = store.Append(ctx, "s", Message{Role: RoleUser, Text: "new"})

	got, _ := store.History(ctx, "s")
	if len(got) != 1 || got[0].Text != "new" {
		t.Errorf("History = %+v, want only the new message", got)
	}
}

func TestMemoryStore_MaxMessages(t *testing.T) {
	store := NewMemoryStore(Policy{MaxMessages: 3})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = store.Append(ctx, "s", Message{Role: RoleUser, Text: fmt.Sprintf("m%d", i)})
	}

	got, _ := store.History(ctx, "s")
	if len(got) != 3 {
		t.Fatalf("len(History) = %d, want 3", len(got))
	}
	if got[0].Text != "m2" || got[2].Text != "m4" {
		t.Errorf("History = %+v, want the most recent three", got)
	}
}

// An odd cap must not leave the history starting with a model turn.
func TestMemoryStore_MaxMessagesKeepsPairs(t *testing.T) {
	tests := []struct {
		max   int
		pairs int
		want  []string
	}{
		{max: 3, pairs: 2, want: []string{"q1", "a1"}},
		{max: 4, pairs: 3, want: []string{"q1", "a1", "q2", "a2"}},
		{max: 5, pairs: 3, want: []string{"q1", "a1", "q2", "a2"}},
		{max: 1, pairs: 2, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("max=%d", tt.max), func(t *testing.T) {
			store := NewMemoryStore(Policy{MaxMessages: tt.max})
			ctx := context.Background()
			for i := 0; i < tt.pairs; i++ {
				err := store.Append(ctx, "s",
					Message{Role: RoleUser, Text: fmt.Sprintf("q%d", i)},
					Message{Role: RoleModel, Text: fmt.Sprintf("a%d", i)},
				)
				if err != nil {
					t.Fatalf("Append() error = %v", err)
				}
			}

			got, _ := store.History(ctx, "s")
			texts := make([]string, 0, len(got))
			for _, m := range got {
				texts = append(texts, m.Text)
			}
			if fmt.Sprint(texts) != fmt.Sprint(tt.want) {
				t.Errorf("History = %v, want %v", texts, tt.want)
			}
			if len(got) > 0 && got[0].Role != RoleUser {
				t.Errorf("History starts with %q, want %q", got[0].Role, RoleUser)
			}
		})
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := NewMemoryStore(DefaultPolicy())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", n%4)
			for j := 0; j < 50; j++ {
				_ = store.Append(ctx, id, Message{Role: RoleUser, Text: "x"})
				_, _ = store.History(ctx, id)
			}
		}(i)
	}
	wg.Wait()

	if store.Len() != 4 {
		t.Errorf("Len() = %d, want 4", store.Len())
	}
}
