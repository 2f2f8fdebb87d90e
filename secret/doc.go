// Package secret resolves credential values found in configuration.
//
// A configured API key is one of:
//   - a literal value, after strict environment expansion (see ExpandEnvStrict)
//   - a reference of the form "secretref:<provider>:<ref>", resolved by the
//     provider registered under that name
//
// Two providers are built in:
//   - env:  secretref:env:GEMINI_API_KEY_2
//   - file: secretref:file:/run/secrets/gemini_key
//
// Resolved values are never logged.
package secret
