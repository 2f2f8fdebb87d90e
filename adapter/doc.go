// Package adapter holds the call sites that talk to the generative model.
//
// Every adapter runs its provider call through a shared [Executor], so a
// rate-limited key is cooled down and the next key is tried transparently.
// Adapters build their request once per call; only the key-bound client is
// rebuilt between attempts.
//
//   - [Chat] keeps multi-turn history in a session.Store. History is written
//     only after a successful reply, so a rotation never loses or duplicates
//     a turn. Replies carry the detected language (en, fr or pdg).
//   - [Vision] identifies the tool in an image.
//   - [Transcriber] transcribes an audio clip.
//   - [Manual] writes a user manual, a safety guide or a short summary from
//     research notes.
//
// Errors from the executor reach the caller unchanged. Use
// resilience.RetryAfter to recover the wait hint when every key is cooling
// down.
package adapter
