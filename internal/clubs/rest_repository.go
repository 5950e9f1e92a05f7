package clubs

import (
	"context"
	"fmt"

	"pecportal/internal/platform/supabase"
)

// RESTRepository reads and writes clubs through the hosted backend.
type RESTRepository struct {
	client *supabase.Client
}

// NewRESTRepository constructs a repository backed by the hosted REST API.
func NewRESTRepository(client *supabase.Client) *RESTRepository {
	return &RESTRepository{client: client}
}

type restClub struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	LogoInitial string  `json:"logo_initial"`
	Mentor      *string `json:"mentor"`
	Category    string  `json:"category"`
	Image       string  `json:"image"`
}

func (r restClub) toClub() Club {
	return Club{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		LogoInitial: r.LogoInitial,
		Mentor:      r.Mentor,
		Category:    r.Category,
		Image:       r.Image,
	}
}

type restMember struct {
	ID        string  `json:"id"`
	ClubID    string  `json:"club_id"`
	ProfileID *string `json:"profile_id"`
	Name      string  `json:"name"`
	Role      string  `json:"role"`
	Status    string  `json:"status"`
	JoinedOn  string  `json:"joined_on"`
}

// List returns clubs ordered by id.
func (r *RESTRepository) List(ctx context.Context) ([]Club, error) {
	var rows []restClub
	if err := r.client.Select(ctx, "clubs", supabase.Query{OrderBy: "id"}, &rows); err != nil {
		return nil, fmt.Errorf("list clubs: %w", err)
	}
	out := make([]Club, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toClub())
	}
	return out, nil
}

// Get returns a club by id.
func (r *RESTRepository) Get(ctx context.Context, id string) (Club, error) {
	var rows []restClub
	q := supabase.Query{Filters: []supabase.Filter{supabase.Eq("id", id)}, Limit: 1}
	if err := r.client.Select(ctx, "clubs", q, &rows); err != nil {
		return Club{}, fmt.Errorf("select club: %w", err)
	}
	if len(rows) == 0 {
		return Club{}, ErrNotFound
	}
	return rows[0].toClub(), nil
}

// UpdateDescription replaces a club's description.
func (r *RESTRepository) UpdateDescription(ctx context.Context, id, description string) error {
	patch := map[string]string{"description": description}
	if err := r.client.Update(ctx, "clubs", []supabase.Filter{supabase.Eq("id", id)}, patch); err != nil {
		return fmt.Errorf("update club description: %w", err)
	}
	return nil
}

// SetMentor records the faculty mentor of a club.
func (r *RESTRepository) SetMentor(ctx context.Context, id, mentor string) error {
	patch := map[string]string{"mentor": mentor}
	if err := r.client.Update(ctx, "clubs", []supabase.Filter{supabase.Eq("id", id)}, patch); err != nil {
		return fmt.Errorf("update club mentor: %w", err)
	}
	return nil
}

// AddMember inserts a roster entry.
func (r *RESTRepository) AddMember(ctx context.Context, member Member) error {
	row := restMember{
		ID:        member.ID,
		ClubID:    member.ClubID,
		ProfileID: member.ProfileID,
		Name:      member.Name,
		Role:      string(member.Role),
		Status:    string(member.Status),
		JoinedOn:  member.JoinedOn,
	}
	if err := r.client.Insert(ctx, "club_members", row); err != nil {
		return fmt.Errorf("insert club member: %w", err)
	}
	return nil
}

// Members returns a club's roster in join order.
func (r *RESTRepository) Members(ctx context.Context, clubID string) ([]Member, error) {
	var rows []restMember
	q := supabase.Query{Filters: []supabase.Filter{supabase.Eq("club_id", clubID)}, OrderBy: "created_at"}
	if err := r.client.Select(ctx, "club_members", q, &rows); err != nil {
		return nil, fmt.Errorf("list club members: %w", err)
	}
	out := make([]Member, 0, len(rows))
	for _, row := range rows {
		out = append(out, Member{
			ID:        row.ID,
			ClubID:    row.ClubID,
			ProfileID: row.ProfileID,
			Name:      row.Name,
			Role:      MemberRole(row.Role),
			Status:    MemberStatus(row.Status),
			JoinedOn:  row.JoinedOn,
		})
	}
	return out, nil
}
