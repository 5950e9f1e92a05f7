package clubs

import "context"

// Repository defines club and roster persistence.
type Repository interface {
	List(ctx context.Context) ([]Club, error)
	Get(ctx context.Context, id string) (Club, error)
	UpdateDescription(ctx context.Context, id, description string) error
	SetMentor(ctx context.Context, id, mentor string) error
	// AddMember stores a roster entry. Re-adding an existing id is a no-op.
	AddMember(ctx context.Context, member Member) error
	// Members returns a club's roster in join order.
	Members(ctx context.Context, clubID string) ([]Member, error)
}

// MemberCounter counts profiles affiliated with a club.
type MemberCounter interface {
	CountByClub(ctx context.Context, clubID string) (int, error)
}
