package gemini

import (
	"net/http"
	"strings"
	"time"

	"github.com/jonwraymond/toolify/resilience"
)

// BinderConfig holds the settings shared by every bound client.
type BinderConfig struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Binder builds key-scoped clients for a resilience.RetryExecutor.
type Binder struct {
	config BinderConfig
}

// NewBinder returns a binder with defaults applied.
func NewBinder(config BinderConfig) *Binder {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(config.Model) == "" {
		config.Model = DefaultModel
	}
	return &Binder{config: config}
}

// Model returns the configured model name.
func (b *Binder) Model() string {
	return b.config.Model
}

// Bind returns a new client for key. Only the HTTP transport is shared
// between clients; it carries no credential.
func (b *Binder) Bind(key resilience.Key) (*Client, error) {
	if strings.TrimSpace(key.Secret) == "" {
		return nil, ErrMissingAPIKey
	}
	c := NewClient(b.config.BaseURL, key.Secret, b.config.Model)
	c.HTTPClient = b.config.HTTPClient
	c.Timeout = b.config.Timeout
	return c, nil
}
