package events

import (
	"context"
	"fmt"
	"time"

	"pecportal/internal/platform/supabase"
)

// RESTRepository reads and writes events through the hosted backend.
type RESTRepository struct {
	client *supabase.Client
}

// NewRESTRepository constructs a repository backed by the hosted REST API.
func NewRESTRepository(client *supabase.Client) *RESTRepository {
	return &RESTRepository{client: client}
}

type restEvent struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Date            string     `json:"date"`
	Location        string     `json:"location"`
	Organizer       string     `json:"organizer"`
	ImageURL        *string    `json:"image_url"`
	RegisteredCount int        `json:"registered_count"`
	Category        string     `json:"category,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
}

// Insert stores an event row.
func (r *RESTRepository) Insert(ctx context.Context, event Event) error {
	row := restEvent{
		ID:              event.ID,
		Title:           event.Title,
		Description:     event.Description,
		Date:            event.Date,
		Location:        event.Location,
		Organizer:       event.Organizer,
		ImageURL:        event.ImageURL,
		RegisteredCount: event.RegisteredCount,
		Category:        event.Category,
	}
	if err := r.client.Insert(ctx, "events", row); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// List returns events newest first.
func (r *RESTRepository) List(ctx context.Context) ([]Event, error) {
	var rows []restEvent
	if err := r.client.Select(ctx, "events", supabase.Query{OrderBy: "created_at", Descending: true}, &rows); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out := make([]Event, 0, len(rows))
	for _, row := range rows {
		e := Event{
			ID:              row.ID,
			Title:           row.Title,
			Description:     row.Description,
			Date:            row.Date,
			Location:        row.Location,
			Organizer:       row.Organizer,
			ImageURL:        row.ImageURL,
			RegisteredCount: row.RegisteredCount,
			Category:        row.Category,
		}
		if row.CreatedAt != nil {
			e.CreatedAt = *row.CreatedAt
		}
		out = append(out, e)
	}
	return out, nil
}
