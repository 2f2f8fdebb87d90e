// Package gemini is a minimal HTTP client for the Gemini generateContent API.
//
// A Client is bound to exactly one API key. Binder produces a fresh Client per
// key so that callers rotating credentials never reuse a handle across keys.
//
// Non-2xx responses are returned as *ProviderError, whose message carries both
// the HTTP status code and the provider status name (for example
// "429 RESOURCE_EXHAUSTED").
package gemini
