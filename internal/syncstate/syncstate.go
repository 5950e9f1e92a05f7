// Package syncstate tracks whether a locally created entry has reached the remote store.
package syncstate

// State is the reconciliation state of an optimistic entry.
type State string

const (
	// Pending entries were added locally and their remote write is in flight.
	Pending State = "pending"
	// Synced entries were confirmed by the remote store, or loaded from it.
	Synced State = "synced"
	// Unsynced entries failed their remote write and wait in the outbox.
	Unsynced State = "unsynced"
)
