// Package stats records per-key usage of the credential pool.
//
// Each retry attempt, rate-limit rotation and success produces an [Event]
// keyed by the key's fingerprint (never its secret). A [Recorder] aggregates
// events into [Counts] that back the keys report and the ops endpoints.
//
// Two recorders are provided:
//
//   - [MemoryRecorder] keeps counters in process. It is the default.
//   - [RedisRecorder] keeps counters in Redis so replicas sharing a key set
//     see the same totals.
//
// Both keep per-minute buckets next to the cumulative counters, expired
// after a TTL, so the keys report can show last-minute usage.
package stats
