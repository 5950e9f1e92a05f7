package notices

import "context"

// Repository defines notice persistence.
type Repository interface {
	// Insert stores a notice. Re-inserting an existing id is a no-op.
	Insert(ctx context.Context, notice Notice) error
	// List returns notices newest first.
	List(ctx context.Context) ([]Notice, error)
}
