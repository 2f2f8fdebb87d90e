package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotConfigured is returned when a nil Client is used.
	ErrNotConfigured = errors.New("gemini: client not configured")

	// ErrMissingAPIKey is returned when a Client or Binder is given a blank key.
	ErrMissingAPIKey = errors.New("gemini: api key is required")

	// ErrEmptyResponse is returned when the provider answers with no candidates.
	ErrEmptyResponse = errors.New("gemini: empty response")
)

// ProviderError is returned when the API responds with a non-2xx status.
//
// RawResponse holds the response body and never includes the API key.
type ProviderError struct {
	StatusCode  int
	Status      string
	Message     string
	RawResponse []byte
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "gemini: provider error"
	}
	if e.Status != "" {
		return fmt.Sprintf("gemini: request failed: status %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("gemini: request failed: status %d: %s", e.StatusCode, e.Message)
}

// HTTPStatus returns the response status code.
func (e *ProviderError) HTTPStatus() int {
	return e.StatusCode
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func newProviderError(statusCode int, body []byte) *ProviderError {
	pe := &ProviderError{
		StatusCode:  statusCode,
		Message:     strings.TrimSpace(string(body)),
		RawResponse: body,
	}
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		pe.Message = env.Error.Message
		pe.Status = env.Error.Status
	}
	return pe
}
