package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonwraymond/toolify/gemini"
	"github.com/jonwraymond/toolify/observe"
	"github.com/jonwraymond/toolify/session"
)

// Languages a chat reply can be tagged with.
const (
	LanguageEnglish = "en"
	LanguageFrench  = "fr"
	LanguagePidgin  = "pdg"
)

// DefaultSystemInstruction frames the chat assistant.
const DefaultSystemInstruction = `You are a helpful assistant with expert knowledge of hand tools, power tools and everyday objects.
Identify the language of the user's question and answer in that same language.
English (en), French (fr) and Nigerian Pidgin (pdg) must be supported.
Reply with a JSON object: "language" is the language code of your answer, "response" is the answer itself.
Keep answers practical and concise.`

// chatSchema is the structured reply requested from the model.
var chatSchema = &gemini.Schema{
	Type: "object",
	Properties: map[string]*gemini.Schema{
		"language": {
			Type:        "string",
			Description: "Language of the response.",
			Enum:        []string{LanguageEnglish, LanguageFrench, LanguagePidgin},
		},
		"response": {
			Type:        "string",
			Description: "The response in that language.",
		},
	},
	Required: []string{"language", "response"},
}

// Reply is one chat answer.
type Reply struct {
	Text     string `json:"content"`
	Language string `json:"language"`
}

// ChatConfig configures a Chat.
type ChatConfig struct {
	Model             string
	SystemInstruction string
	Temperature       float64
	MaxOutputTokens   int
	// Now stamps stored messages. Defaults to time.Now.
	Now func() time.Time
}

// Chat is a multi-turn conversation adapter.
//
// The history store is independent of the key pool: a rotation replaces the
// bound client, never the conversation. Sends to the same session are
// serialized; different sessions proceed in parallel.
type Chat struct {
	caller
	store  session.Store
	config ChatConfig
	locks  sessionLocks
}

// NewChat creates a chat adapter.
func NewChat(exec *Executor, store session.Store, mw *observe.Middleware, config ChatConfig) (*Chat, error) {
	c, err := newCaller("chat", config.Model, exec, mw)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, session.ErrNilStore
	}
	if config.SystemInstruction == "" {
		config.SystemInstruction = DefaultSystemInstruction
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Chat{caller: c, store: store, config: config}, nil
}

// Send appends text to the session and returns the model's reply.
//
// The request is built once from the stored history. Retries reuse it with a
// freshly bound client. Both turns are stored only when a reply arrives.
func (c *Chat) Send(ctx context.Context, sessionID, text string) (Reply, error) {
	if err := session.ValidateID(sessionID); err != nil {
		return Reply{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, ErrEmptyInput
	}

	unlock, err := c.locks.lock(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}
	defer unlock()

	history, err := c.store.History(ctx, sessionID)
	if err != nil {
		return Reply{}, fmt.Errorf("adapter: load history: %w", err)
	}

	raw, err := c.generate(ctx, "send", c.buildRequest(history, text))
	if err != nil {
		return Reply{}, err
	}
	reply := parseReply(raw)
	if reply.Text == "" {
		return Reply{}, gemini.ErrEmptyResponse
	}

	now := c.config.Now()
	err = c.store.Append(ctx, sessionID,
		session.Message{Role: session.RoleUser, Text: text, At: now},
		session.Message{Role: session.RoleModel, Text: reply.Text, At: now},
	)
	if err != nil {
		return Reply{}, fmt.Errorf("adapter: save history: %w", err)
	}
	return reply, nil
}

// History returns the stored turns of a session.
func (c *Chat) History(ctx context.Context, sessionID string) ([]session.Message, error) {
	if err := session.ValidateID(sessionID); err != nil {
		return nil, err
	}
	return c.store.History(ctx, sessionID)
}

// Reset forgets a session.
func (c *Chat) Reset(ctx context.Context, sessionID string) error {
	if err := session.ValidateID(sessionID); err != nil {
		return err
	}
	return c.store.Clear(ctx, sessionID)
}

func (c *Chat) buildRequest(history []session.Message, text string) *gemini.GenerateRequest {
	contents := make([]gemini.Content, 0, len(history)+1)
	for _, m := range history {
		role := gemini.RoleUser
		if m.Role == session.RoleModel {
			role = gemini.RoleModel
		}
		contents = append(contents, gemini.Content{Role: role, Parts: []gemini.Part{gemini.TextPart(m.Text)}})
	}
	contents = append(contents, gemini.Content{Role: gemini.RoleUser, Parts: []gemini.Part{gemini.TextPart(text)}})

	temperature := c.config.Temperature
	cfg := generationConfig(&temperature, c.config.MaxOutputTokens)
	cfg.ResponseMIMEType = "application/json"
	cfg.ResponseSchema = chatSchema
	return &gemini.GenerateRequest{
		SystemInstruction: &gemini.Content{Parts: []gemini.Part{gemini.TextPart(c.config.SystemInstruction)}},
		Contents:          contents,
		GenerationConfig:  cfg,
	}
}

// parseReply decodes the structured reply. A model that ignores the schema
// and answers in plain text gets its text back tagged as English.
func parseReply(raw string) Reply {
	var out struct {
		Language string `json:"language"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil || strings.TrimSpace(out.Response) == "" {
		return Reply{Text: strings.TrimSpace(raw), Language: LanguageEnglish}
	}
	return Reply{Text: strings.TrimSpace(out.Response), Language: NormalizeLanguage(out.Language)}
}

// NormalizeLanguage maps a language tag onto en, fr or pdg. Unknown tags
// become en.
func NormalizeLanguage(tag string) string {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "fr", "fr-fr", "french", "français":
		return LanguageFrench
	case "pdg", "pcm", "pidgin", "nigerian pidgin":
		return LanguagePidgin
	default:
		return LanguageEnglish
	}
}

// sessionLocks hands out one mutex per session ID and drops it once no
// caller holds or waits for it.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	ch   chan struct{}
	refs int
}

// lock blocks until id is free or ctx is done.
func (l *sessionLocks) lock(ctx context.Context, id string) (func(), error) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sessionLock)
	}
	s, ok := l.locks[id]
	if !ok {
		s = &sessionLock{ch: make(chan struct{}, 1)}
		l.locks[id] = s
	}
	s.refs++
	l.mu.Unlock()

	release := func() {
		l.mu.Lock()
		s.refs--
		if s.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}

	select {
	case s.ch <- struct{}{}:
		return func() {
			<-s.ch
			release()
		}, nil
	case <-ctx.Done():
		release()
		return nil, ctx.Err()
	}
}
