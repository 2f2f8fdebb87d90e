package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jonwraymond/toolify/gemini"
	"github.com/jonwraymond/toolify/observe"
)

// IdentifyPrompt asks for the name of the tool nearest the camera.
const IdentifyPrompt = "Identify the tool closest to the camera in this image. " +
	"Reply with the specific tool name only. If there is no tool, name the main object shown."

// VisionConfig configures a Vision adapter.
type VisionConfig struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int
}

// Vision identifies tools in images.
type Vision struct {
	caller
	config VisionConfig
}

// NewVision creates a vision adapter.
func NewVision(exec *Executor, mw *observe.Middleware, config VisionConfig) (*Vision, error) {
	c, err := newCaller("vision", config.Model, exec, mw)
	if err != nil {
		return nil, err
	}
	return &Vision{caller: c, config: config}, nil
}

// Identify returns the tool names found in image. An empty mimeType is
// detected from the content.
func (v *Vision) Identify(ctx context.Context, image []byte, mimeType string) ([]string, error) {
	if len(image) == 0 {
		return nil, ErrEmptyInput
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMIME, mimeType)
	}

	temperature := v.config.Temperature
	req := &gemini.GenerateRequest{
		Contents: []gemini.Content{{
			Role:  gemini.RoleUser,
			Parts: []gemini.Part{gemini.TextPart(IdentifyPrompt), gemini.InlinePart(mimeType, image)},
		}},
		GenerationConfig: generationConfig(&temperature, v.config.MaxOutputTokens),
	}

	reply, err := v.generate(ctx, "identify", req)
	if err != nil {
		return nil, err
	}
	return ParseToolNames(reply), nil
}

// ParseToolNames splits a reply on commas, trims each name and drops empties.
func ParseToolNames(reply string) []string {
	var names []string
	for _, name := range strings.Split(reply, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
