package config

import (
	"errors"
	"fmt"

	"github.com/jonwraymond/toolify/resilience"
)

var (
	// ErrNoCredentials is returned when neither a key list nor a legacy key
	// is configured, or when every configured key resolves to blank.
	ErrNoCredentials = fmt.Errorf("config: no API keys configured: %w", resilience.ErrNoKeys)

	// ErrInvalid is wrapped by every validation failure.
	ErrInvalid = errors.New("config: invalid value")

	// ErrConfigFile is returned when an explicit config file cannot be read.
	ErrConfigFile = errors.New("config: cannot read config file")
)
