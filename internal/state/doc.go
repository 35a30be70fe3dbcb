// Package state provides thread-safe state shared between the presence
// dispatcher, the status poller and the UI.
//
// # Overview
//
// Three producers write into a single Store:
//
//   - the dispatcher records each applied session transition (SetSession)
//     and what it published (SetPresence)
//   - the poller copies reader statuses and the transport's health (Update)
//
// The UI reads immutable Snapshots on its own refresh tick.
//
// # Update Semantics
//
// Update with a nil error replaces the reader statuses and resets the failure
// counter. Update with an error records it and increments
// ConsecutiveFailures; an empty reader slice keeps the previous statuses.
// IsOffline reports two or more failures in a row.
//
// # Defensive Copying
//
// Snapshot clones the reader slice and wraps the last error so callers can
// keep a Snapshot without holding the lock.
package state
