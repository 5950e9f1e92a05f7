package profiles

import "context"

// Repository defines profile persistence. Rows are owned by the backend; the
// portal only creates them where the backend has no signup trigger.
type Repository interface {
	FindByID(ctx context.Context, id string) (Profile, error)
	Create(ctx context.Context, profile Profile) (Profile, error)
	List(ctx context.Context, opts ListOptions) ([]Profile, error)
	CountByClub(ctx context.Context, clubID string) (int, error)
}
