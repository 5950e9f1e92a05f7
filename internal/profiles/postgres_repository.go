package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"pecportal/internal/platform/database"
)

// PostgresRepository persists profiles to a Postgres database.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository constructs a repository backed by sqlx.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const profileColumns = `id, name, role, email, department, club_id, created_at`

// FindByID returns exactly one profile row or ErrNotFound.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	var row profileRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("select profile: %w", err)
	}
	return row.toProfile(), nil
}

// Create inserts a profile unless one already exists for the id.
func (r *PostgresRepository) Create(ctx context.Context, profile Profile) (Profile, error) {
	const query = `
		INSERT INTO profiles (id, name, role, email, department, club_id, created_at)
		VALUES (:id, :name, :role, :email, :department, :club_id, :created_at)
		ON CONFLICT (id) DO NOTHING
	`
	row := newProfileRow(profile)
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return Profile{}, fmt.Errorf("insert profile: %w", err)
	}
	return profile, nil
}

// List returns profiles matching opts ordered by name.
func (r *PostgresRepository) List(ctx context.Context, opts ListOptions) ([]Profile, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if opts.Role != "" {
		add("role = $%d", string(opts.Role))
	}
	if opts.Department != "" {
		add("department = $%d", opts.Department)
	}
	if opts.ClubID != "" {
		add("club_id = $%d", opts.ClubID)
	}
	if q := strings.TrimSpace(opts.Query); q != "" {
		args = append(args, database.ContainsPattern(q))
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", len(args), len(args)))
	}

	query := `SELECT ` + profileColumns + ` FROM profiles`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY name`

	var rows []profileRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	out := make([]Profile, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toProfile())
	}
	return out, nil
}

// CountByClub counts profiles affiliated with clubID.
func (r *PostgresRepository) CountByClub(ctx context.Context, clubID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM profiles WHERE club_id = $1`, clubID); err != nil {
		return 0, fmt.Errorf("count club profiles: %w", err)
	}
	return n, nil
}

// profileRow is a database row representation of Profile.
type profileRow struct {
	ID         string         `db:"id"`
	Name       string         `db:"name"`
	Role       string         `db:"role"`
	Email      string         `db:"email"`
	Department string         `db:"department"`
	ClubID     sql.NullString `db:"club_id"`
	CreatedAt  time.Time      `db:"created_at"`
}

func newProfileRow(p Profile) profileRow {
	row := profileRow{
		ID:         p.ID,
		Name:       p.Name,
		Role:       string(p.Role),
		Email:      p.Email,
		Department: p.Department,
		CreatedAt:  p.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if p.ClubID != nil {
		row.ClubID = sql.NullString{String: *p.ClubID, Valid: true}
	}
	return row
}

func (r profileRow) toProfile() Profile {
	p := Profile{
		ID:         r.ID,
		Name:       r.Name,
		Role:       Role(r.Role),
		Email:      r.Email,
		Department: r.Department,
		CreatedAt:  r.CreatedAt,
	}
	if r.ClubID.Valid {
		clubID := r.ClubID.String
		p.ClubID = &clubID
	}
	return p
}
