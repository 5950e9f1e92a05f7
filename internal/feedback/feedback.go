// Package feedback stores portal feedback submitted from the floating feedback form.
package feedback

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"pecportal/internal/platform/supabase"
)

// Entry is one feedback submission.
type Entry struct {
	ID        string    `json:"id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	UserID    *string   `json:"userId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repository stores feedback.
type Repository interface {
	Create(ctx context.Context, entry Entry) error
}

// InMemoryRepository keeps feedback in process memory.
type InMemoryRepository struct {
	mu      sync.Mutex
	entries []Entry
}

// NewInMemoryRepository constructs an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Create appends an entry.
func (r *InMemoryRepository) Create(_ context.Context, entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

// Entries returns a copy of the stored feedback.
func (r *InMemoryRepository) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// PostgresRepository persists feedback to Postgres.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository constructs a repository backed by sqlx.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts an entry.
func (r *PostgresRepository) Create(ctx context.Context, entry Entry) error {
	var userID sql.NullString
	if entry.UserID != nil {
		userID = sql.NullString{String: *entry.UserID, Valid: true}
	}
	const query = `INSERT INTO feedback (id, rating, comment, user_id, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, entry.ID, entry.Rating, entry.Comment, userID, entry.CreatedAt); err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

// RESTRepository sends feedback to the hosted backend.
type RESTRepository struct {
	client *supabase.Client
}

// NewRESTRepository constructs a repository backed by the hosted REST API.
func NewRESTRepository(client *supabase.Client) *RESTRepository {
	return &RESTRepository{client: client}
}

// Create inserts an entry.
func (r *RESTRepository) Create(ctx context.Context, entry Entry) error {
	row := struct {
		ID      string  `json:"id"`
		Rating  int     `json:"rating"`
		Comment string  `json:"comment"`
		UserID  *string `json:"user_id"`
	}{entry.ID, entry.Rating, entry.Comment, entry.UserID}
	if err := r.client.Insert(ctx, "feedback", row); err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}
