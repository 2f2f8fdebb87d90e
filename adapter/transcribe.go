package adapter

import (
	"context"
	"strings"

	"github.com/jonwraymond/toolify/gemini"
	"github.com/jonwraymond/toolify/observe"
)

// TranscribePrompt asks for a verbatim transcription.
const TranscribePrompt = "Transcribe this audio exactly as spoken. Do not translate. Reply with the transcription only."

// TranscriberConfig configures a Transcriber.
type TranscriberConfig struct {
	Model           string
	MaxOutputTokens int
}

// Transcriber turns audio into text.
type Transcriber struct {
	caller
	config TranscriberConfig
}

// NewTranscriber creates a transcription adapter.
func NewTranscriber(exec *Executor, mw *observe.Middleware, config TranscriberConfig) (*Transcriber, error) {
	c, err := newCaller("transcribe", config.Model, exec, mw)
	if err != nil {
		return nil, err
	}
	return &Transcriber{caller: c, config: config}, nil
}

// Transcribe returns the trimmed transcription of audio.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyInput
	}

	req := &gemini.GenerateRequest{
		Contents: []gemini.Content{{
			Role: gemini.RoleUser,
			Parts: []gemini.Part{
				gemini.TextPart(TranscribePrompt),
				gemini.InlinePart(NormalizeAudioMIME(mimeType), audio),
			},
		}},
		GenerationConfig: generationConfig(nil, t.config.MaxOutputTokens),
	}
	return t.generate(ctx, "transcribe", req)
}

// NormalizeAudioMIME maps a loosely specified audio type or file extension
// to one the provider accepts. Unknown types are treated as MP3.
func NormalizeAudioMIME(mimeType string) string {
	m := strings.ToLower(mimeType)
	switch {
	case strings.Contains(m, "wav"):
		return "audio/wav"
	case strings.Contains(m, "ogg"):
		return "audio/ogg"
	case strings.Contains(m, "m4a"), strings.Contains(m, "mp4"):
		return "audio/mp4"
	case strings.Contains(m, "aac"):
		return "audio/aac"
	case strings.Contains(m, "webm"):
		return "audio/webm"
	default:
		return "audio/mp3"
	}
}
