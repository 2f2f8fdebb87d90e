package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonwraymond/toolify/gemini"
	"github.com/jonwraymond/toolify/observe"
)

const (
	manualInstruction = `You are an expert technical writer of tool manuals and user guides.
Write clear, complete and user-friendly manuals from the research you are given, in a professional yet accessible tone.`

	manualPrompt = `Create a comprehensive user manual for the tool: %s
%s
Research:
%s

Structure the manual with these sections:

## 1. Tool Overview
What the tool is, what it is used for and its key applications.

## 2. Key Features and Specifications
Main features, technical specifications where known, and common variants.

## 3. Safety Precautions
Safety warnings, protective equipment and hazards to avoid.

## 4. Step-by-Step Usage Guide
Preparation, detailed operating instructions and what to do after use.

## 5. Tips and Best Practices
Expert recommendations, efficiency tips and common techniques.

## 6. Common Mistakes to Avoid
Frequent errors, what not to do and how to fix common problems.

## 7. Maintenance and Care
Cleaning, storage, maintenance schedule and when to replace parts.

## 8. Additional Resources
Video tutorials mentioned in the research and further reading.

Use headings, bullet points and numbered lists. Write in %s.
Be thorough but concise.`

	safetyInstruction = "You are a safety expert specialising in tool use and workplace safety."

	safetyPrompt = `Based on this research about %[1]s:

%[2]s

Write a focused safety guide titled "Safety Precautions for %[1]s" with these sections:

### Essential Safety Equipment
### Before Use
### During Use
### After Use
### Emergency Procedures

Write in %[3]s. Put the user's safety above everything else.`

	summaryInstruction = "You are a technical expert who writes concise tool descriptions."

	summaryPrompt = `Based on this research about %s:

%s

Write a 2-3 sentence summary saying what the tool is and what it is mainly used for.
Write in %s. Be concise and informative.`
)

// ManualRequest describes the tool to document.
type ManualRequest struct {
	ToolName        string `json:"tool_name"`
	ResearchContext string `json:"research_context"`
	// ToolDescription is optional, typically from image recognition.
	ToolDescription string `json:"tool_description,omitempty"`
	// Language is en, fr or pdg. Empty means en.
	Language string `json:"language,omitempty"`
}

func (r ManualRequest) validate() error {
	if strings.TrimSpace(r.ToolName) == "" {
		return fmt.Errorf("%w: tool name", ErrEmptyInput)
	}
	if strings.TrimSpace(r.ResearchContext) == "" {
		return fmt.Errorf("%w: research context", ErrEmptyInput)
	}
	return nil
}

// ManualConfig configures a Manual adapter.
type ManualConfig struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int
}

// Manual writes tool documentation from research notes.
type Manual struct {
	caller
	config ManualConfig
}

// NewManual creates a manual adapter.
func NewManual(exec *Executor, mw *observe.Middleware, config ManualConfig) (*Manual, error) {
	c, err := newCaller("manual", config.Model, exec, mw)
	if err != nil {
		return nil, err
	}
	return &Manual{caller: c, config: config}, nil
}

// Generate writes a full user manual.
func (m *Manual) Generate(ctx context.Context, req ManualRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}
	description := ""
	if d := strings.TrimSpace(req.ToolDescription); d != "" {
		description = "\nTool description (from image recognition):\n" + d + "\n"
	}
	prompt := fmt.Sprintf(manualPrompt, req.ToolName, description, req.ResearchContext, languageName(req.Language))
	return m.generate(ctx, "generate", m.request(manualInstruction, prompt))
}

// SafetyGuide writes safety guidance only.
func (m *Manual) SafetyGuide(ctx context.Context, req ManualRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}
	prompt := fmt.Sprintf(safetyPrompt, req.ToolName, req.ResearchContext, languageName(req.Language))
	return m.generate(ctx, "safety_guide", m.request(safetyInstruction, prompt))
}

// Summary writes a two or three sentence description.
func (m *Manual) Summary(ctx context.Context, req ManualRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}
	prompt := fmt.Sprintf(summaryPrompt, req.ToolName, req.ResearchContext, languageName(req.Language))
	return m.generate(ctx, "summary", m.request(summaryInstruction, prompt))
}

func (m *Manual) request(instruction, prompt string) *gemini.GenerateRequest {
	temperature := m.config.Temperature
	return &gemini.GenerateRequest{
		SystemInstruction: &gemini.Content{Parts: []gemini.Part{gemini.TextPart(instruction)}},
		Contents: []gemini.Content{{
			Role:  gemini.RoleUser,
			Parts: []gemini.Part{gemini.TextPart(prompt)},
		}},
		GenerationConfig: generationConfig(&temperature, m.config.MaxOutputTokens),
	}
}

// languageName spells out a language code for a prompt.
func languageName(code string) string {
	switch NormalizeLanguage(code) {
	case LanguageFrench:
		return "French"
	case LanguagePidgin:
		return "Nigerian Pidgin"
	default:
		return "English"
	}
}
