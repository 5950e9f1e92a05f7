package notices

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresRepository persists notices to Postgres.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository constructs a repository backed by sqlx.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores a notice, ignoring duplicate ids so outbox replays are safe.
func (r *PostgresRepository) Insert(ctx context.Context, notice Notice) error {
	const query = `
		INSERT INTO notices (id, title, content, date, category, created_at)
		VALUES (:id, :title, :content, :date, :category, :created_at)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.db.NamedExecContext(ctx, query, newNoticeRow(notice)); err != nil {
		return fmt.Errorf("insert notice: %w", err)
	}
	return nil
}

// List returns notices newest first.
func (r *PostgresRepository) List(ctx context.Context) ([]Notice, error) {
	const query = `SELECT id, title, content, date, category, created_at FROM notices ORDER BY created_at DESC`

	var rows []noticeRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list notices: %w", err)
	}
	out := make([]Notice, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toNotice())
	}
	return out, nil
}

type noticeRow struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	Content   string    `db:"content"`
	Date      string    `db:"date"`
	Category  string    `db:"category"`
	CreatedAt time.Time `db:"created_at"`
}

func newNoticeRow(n Notice) noticeRow {
	created := n.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return noticeRow{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		Date:      n.Date,
		Category:  string(n.Category),
		CreatedAt: created,
	}
}

func (r noticeRow) toNotice() Notice {
	return Notice{
		ID:        r.ID,
		Title:     r.Title,
		Content:   r.Content,
		Date:      r.Date,
		Category:  Category(r.Category),
		CreatedAt: r.CreatedAt,
	}
}
