package profiles

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pecportal/internal/platform/supabase"
)

const table = "profiles"

// RESTRepository reads profiles through the hosted backend's REST API.
type RESTRepository struct {
	client *supabase.Client
}

// NewRESTRepository constructs a repository backed by the hosted REST API.
func NewRESTRepository(client *supabase.Client) *RESTRepository {
	return &RESTRepository{client: client}
}

// restProfile maps the store's snake_case columns.
type restProfile struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Role       string     `json:"role"`
	Email      string     `json:"email"`
	Department string     `json:"department"`
	ClubID     *string    `json:"club_id"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

func (r restProfile) toProfile() Profile {
	p := Profile{
		ID:         r.ID,
		Name:       r.Name,
		Role:       Role(r.Role),
		Email:      r.Email,
		Department: r.Department,
		ClubID:     r.ClubID,
	}
	if r.CreatedAt != nil {
		p.CreatedAt = *r.CreatedAt
	}
	return p
}

// FindByID fetches exactly one profile row.
func (r *RESTRepository) FindByID(ctx context.Context, id string) (Profile, error) {
	var rows []restProfile
	err := r.client.Select(ctx, table, supabase.Query{
		Filters: []supabase.Filter{supabase.Eq("id", id)},
		Limit:   1,
	}, &rows)
	if err != nil {
		return Profile{}, fmt.Errorf("select profile: %w", err)
	}
	if len(rows) == 0 {
		return Profile{}, ErrNotFound
	}
	return rows[0].toProfile(), nil
}

// Create inserts a profile row.
func (r *RESTRepository) Create(ctx context.Context, profile Profile) (Profile, error) {
	row := restProfile{
		ID:         profile.ID,
		Name:       profile.Name,
		Role:       string(profile.Role),
		Email:      profile.Email,
		Department: profile.Department,
		ClubID:     profile.ClubID,
	}
	if err := r.client.Insert(ctx, table, row); err != nil {
		return Profile{}, fmt.Errorf("insert profile: %w", err)
	}
	return profile, nil
}

// List returns profiles matching opts ordered by name.
func (r *RESTRepository) List(ctx context.Context, opts ListOptions) ([]Profile, error) {
	var filters []supabase.Filter
	if opts.Role != "" {
		filters = append(filters, supabase.Eq("role", string(opts.Role)))
	}
	if opts.Department != "" {
		filters = append(filters, supabase.Eq("department", opts.Department))
	}
	if opts.ClubID != "" {
		filters = append(filters, supabase.Eq("club_id", opts.ClubID))
	}
	if q := strings.TrimSpace(opts.Query); q != "" {
		filters = append(filters, supabase.AnyOf(supabase.ILike("name", q), supabase.ILike("email", q)))
	}

	var rows []restProfile
	if err := r.client.Select(ctx, table, supabase.Query{Filters: filters, OrderBy: "name"}, &rows); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	out := make([]Profile, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toProfile())
	}
	return out, nil
}

// CountByClub counts profiles affiliated with clubID.
func (r *RESTRepository) CountByClub(ctx context.Context, clubID string) (int, error) {
	n, err := r.client.Count(ctx, table, []supabase.Filter{supabase.Eq("club_id", clubID)})
	if err != nil {
		return 0, fmt.Errorf("count club profiles: %w", err)
	}
	return n, nil
}
