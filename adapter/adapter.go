package adapter

import (
	"context"
	"errors"
	"strings"

	"github.com/jonwraymond/toolify/gemini"
	"github.com/jonwraymond/toolify/observe"
	"github.com/jonwraymond/toolify/resilience"
)

// Executor runs provider calls with key rotation.
type Executor = resilience.RetryExecutor[*gemini.Client]

var (
	// ErrNilExecutor is returned by constructors given a nil executor.
	ErrNilExecutor = errors.New("adapter: executor is nil")

	// ErrEmptyInput is returned for an empty message, image or audio clip.
	ErrEmptyInput = errors.New("adapter: input is empty")

	// ErrUnsupportedMIME is returned when the media type does not match the adapter.
	ErrUnsupportedMIME = errors.New("adapter: unsupported media type")
)

// caller is embedded by every adapter.
type caller struct {
	name  string
	model string
	exec  *Executor
	mw    *observe.Middleware
}

func newCaller(name, model string, exec *Executor, mw *observe.Middleware) (caller, error) {
	if exec == nil {
		return caller{}, ErrNilExecutor
	}
	if strings.TrimSpace(model) == "" {
		model = gemini.DefaultModel
	}
	return caller{name: name, model: model, exec: exec, mw: mw}, nil
}

// generate sends req through the executor inside an observed call and
// returns the trimmed reply text.
func (c caller) generate(ctx context.Context, op string, req *gemini.GenerateRequest) (string, error) {
	meta := observe.CallMeta{Adapter: c.name, Operation: op, Model: c.model}

	var reply string
	err := c.mw.Observe(ctx, meta, func(ctx context.Context) error {
		resp, err := resilience.Execute(ctx, c.exec, func(ctx context.Context, client *gemini.Client) (*gemini.GenerateResponse, error) {
			return client.GenerateContent(ctx, req)
		})
		if err != nil {
			return err
		}
		reply = strings.TrimSpace(resp.Text())
		if reply == "" {
			return gemini.ErrEmptyResponse
		}
		return nil
	})
	if errors.Is(err, resilience.ErrAllKeysExhausted) {
		c.mw.Metrics().RecordExhausted(ctx, meta)
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}

func generationConfig(temperature *float64, maxTokens int) *gemini.GenerationConfig {
	if temperature == nil && maxTokens <= 0 {
		return nil
	}
	return &gemini.GenerationConfig{Temperature: temperature, MaxOutputTokens: maxTokens}
}
