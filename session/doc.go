// Package session stores per-conversation chat history.
//
// History is keyed by a caller-chosen session ID and is independent of any
// credential state: rotating API keys never touches a session.
package session
