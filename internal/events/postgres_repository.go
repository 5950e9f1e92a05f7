package events

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresRepository persists events to Postgres.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository constructs a repository backed by sqlx.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores an event, ignoring duplicate ids.
func (r *PostgresRepository) Insert(ctx context.Context, event Event) error {
	const query = `
		INSERT INTO events (id, title, description, date, location, organizer, image_url, registered_count, category, created_at)
		VALUES (:id, :title, :description, :date, :location, :organizer, :image_url, :registered_count, :category, :created_at)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.db.NamedExecContext(ctx, query, newEventRow(event)); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// List returns events newest first.
func (r *PostgresRepository) List(ctx context.Context) ([]Event, error) {
	const query = `
		SELECT id, title, description, date, location, organizer, image_url, registered_count, category, created_at
		FROM events
		ORDER BY created_at DESC
	`
	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out := make([]Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEvent())
	}
	return out, nil
}

type eventRow struct {
	ID              string         `db:"id"`
	Title           string         `db:"title"`
	Description     string         `db:"description"`
	Date            string         `db:"date"`
	Location        string         `db:"location"`
	Organizer       string         `db:"organizer"`
	ImageURL        sql.NullString `db:"image_url"`
	RegisteredCount int            `db:"registered_count"`
	Category        string         `db:"category"`
	CreatedAt       time.Time      `db:"created_at"`
}

func newEventRow(e Event) eventRow {
	row := eventRow{
		ID:              e.ID,
		Title:           e.Title,
		Description:     e.Description,
		Date:            e.Date,
		Location:        e.Location,
		Organizer:       e.Organizer,
		RegisteredCount: e.RegisteredCount,
		Category:        e.Category,
		CreatedAt:       e.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if e.ImageURL != nil {
		row.ImageURL = sql.NullString{String: *e.ImageURL, Valid: true}
	}
	return row
}

func (r eventRow) toEvent() Event {
	e := Event{
		ID:              r.ID,
		Title:           r.Title,
		Description:     r.Description,
		Date:            r.Date,
		Location:        r.Location,
		Organizer:       r.Organizer,
		RegisteredCount: r.RegisteredCount,
		Category:        r.Category,
		CreatedAt:       r.CreatedAt,
	}
	if r.ImageURL.Valid {
		url := r.ImageURL.String
		e.ImageURL = &url
	}
	return e
}
