package events

import "context"

// Repository defines event persistence.
type Repository interface {
	// Insert stores an event. Re-inserting an existing id is a no-op.
	Insert(ctx context.Context, event Event) error
	// List returns events newest first.
	List(ctx context.Context) ([]Event, error)
}
