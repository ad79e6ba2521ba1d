// Package registry owns the durable representation of devices, sensor
// readings, and alert thresholds.
//
// The SQLite store behind the Repository interface is the single
// source of truth: the synchronisation core, the command dispatcher,
// and the HTTP API all read and write through it rather than caching
// device state independently, so the dashboard's view can never
// diverge from the persisted view.
//
// Key contracts:
//   - Each operation is one transaction; rows are never observed
//     partially updated.
//   - At most one device claims a non-empty inbound topic.
//   - SetState is idempotent: replaying the same update is harmless.
//   - Reading history is capped per device; the oldest rows are pruned
//     in the same transaction that appends.
//   - Thresholds are get-or-create in two explicit steps (GetThreshold,
//     then CreateDefaultThreshold on ErrThresholdNotFound).
package registry
