package secret

import "errors"

var (
	// ErrMissingEnv is returned when a ${VAR} reference names an unset variable.
	ErrMissingEnv = errors.New("secret: missing required environment variables")

	// ErrUnknownProvider is returned for a secretref naming an unregistered provider.
	ErrUnknownProvider = errors.New("secret: provider is not registered")

	// ErrNotFound is returned by a provider when the reference does not exist.
	ErrNotFound = errors.New("secret: not found")

	// ErrEmptyValue is returned in strict mode when a provider yields "".
	ErrEmptyValue = errors.New("secret: provider returned empty value")
)
