package notices

import (
	"context"
	"fmt"
	"time"

	"pecportal/internal/platform/supabase"
)

// RESTRepository reads and writes notices through the hosted backend.
type RESTRepository struct {
	client *supabase.Client
}

// NewRESTRepository constructs a repository backed by the hosted REST API.
func NewRESTRepository(client *supabase.Client) *RESTRepository {
	return &RESTRepository{client: client}
}

type restNotice struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Date      string     `json:"date"`
	Category  string     `json:"category"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Insert stores a notice row.
func (r *RESTRepository) Insert(ctx context.Context, notice Notice) error {
	row := restNotice{
		ID:       notice.ID,
		Title:    notice.Title,
		Content:  notice.Content,
		Date:     notice.Date,
		Category: string(notice.Category),
	}
	if err := r.client.Insert(ctx, "notices", row); err != nil {
		return fmt.Errorf("insert notice: %w", err)
	}
	return nil
}

// List returns notices newest first.
func (r *RESTRepository) List(ctx context.Context) ([]Notice, error) {
	var rows []restNotice
	if err := r.client.Select(ctx, "notices", supabase.Query{OrderBy: "created_at", Descending: true}, &rows); err != nil {
		return nil, fmt.Errorf("list notices: %w", err)
	}
	out := make([]Notice, 0, len(rows))
	for _, row := range rows {
		n := Notice{
			ID:       row.ID,
			Title:    row.Title,
			Content:  row.Content,
			Date:     row.Date,
			Category: Category(row.Category),
		}
		if row.CreatedAt != nil {
			n.CreatedAt = *row.CreatedAt
		}
		out = append(out, n)
	}
	return out, nil
}
