package clubs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresRepository persists clubs and rosters to Postgres.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository constructs a repository backed by sqlx.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const clubColumns = `id, name, description, logo_initial, mentor, category, image`

// List returns clubs ordered by id.
func (r *PostgresRepository) List(ctx context.Context) ([]Club, error) {
	var rows []clubRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+clubColumns+` FROM clubs ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list clubs: %w", err)
	}
	out := make([]Club, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toClub())
	}
	return out, nil
}

// Get returns a club by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Club, error) {
	var row clubRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+clubColumns+` FROM clubs WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Club{}, ErrNotFound
		}
		return Club{}, fmt.Errorf("select club: %w", err)
	}
	return row.toClub(), nil
}

// UpdateDescription replaces a club's description.
func (r *PostgresRepository) UpdateDescription(ctx context.Context, id, description string) error {
	return r.updateColumn(ctx, `UPDATE clubs SET description = $1 WHERE id = $2`, description, id)
}

// SetMentor records the faculty mentor of a club.
func (r *PostgresRepository) SetMentor(ctx context.Context, id, mentor string) error {
	return r.updateColumn(ctx, `UPDATE clubs SET mentor = $1 WHERE id = $2`, mentor, id)
}

func (r *PostgresRepository) updateColumn(ctx context.Context, query, value, id string) error {
	result, err := r.db.ExecContext(ctx, query, value, id)
	if err != nil {
		return fmt.Errorf("update club: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update club rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddMember inserts a roster entry, ignoring duplicate ids.
func (r *PostgresRepository) AddMember(ctx context.Context, member Member) error {
	const query = `
		INSERT INTO club_members (id, club_id, profile_id, name, role, status, joined_on, created_at)
		VALUES (:id, :club_id, :profile_id, :name, :role, :status, :joined_on, :created_at)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.db.NamedExecContext(ctx, query, newMemberRow(member)); err != nil {
		return fmt.Errorf("insert club member: %w", err)
	}
	return nil
}

// Members returns a club's roster in join order.
func (r *PostgresRepository) Members(ctx context.Context, clubID string) ([]Member, error) {
	const query = `
		SELECT id, club_id, profile_id, name, role, status, joined_on, created_at
		FROM club_members
		WHERE club_id = $1
		ORDER BY created_at
	`
	var rows []memberRow
	if err := r.db.SelectContext(ctx, &rows, query, clubID); err != nil {
		return nil, fmt.Errorf("list club members: %w", err)
	}
	out := make([]Member, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toMember())
	}
	return out, nil
}

type clubRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	LogoInitial string         `db:"logo_initial"`
	Mentor      sql.NullString `db:"mentor"`
	Category    string         `db:"category"`
	Image       string         `db:"image"`
}

func (r clubRow) toClub() Club {
	c := Club{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		LogoInitial: r.LogoInitial,
		Category:    r.Category,
		Image:       r.Image,
	}
	if r.Mentor.Valid {
		mentor := r.Mentor.String
		c.Mentor = &mentor
	}
	return c
}

type memberRow struct {
	ID        string         `db:"id"`
	ClubID    string         `db:"club_id"`
	ProfileID sql.NullString `db:"profile_id"`
	Name      string         `db:"name"`
	Role      string         `db:"role"`
	Status    string         `db:"status"`
	JoinedOn  string         `db:"joined_on"`
	CreatedAt time.Time      `db:"created_at"`
}

func newMemberRow(m Member) memberRow {
	row := memberRow{
		ID:        m.ID,
		ClubID:    m.ClubID,
		Name:      m.Name,
		Role:      string(m.Role),
		Status:    string(m.Status),
		JoinedOn:  m.JoinedOn,
		CreatedAt: m.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if m.ProfileID != nil {
		row.ProfileID = sql.NullString{String: *m.ProfileID, Valid: true}
	}
	return row
}

func (r memberRow) toMember() Member {
	m := Member{
		ID:        r.ID,
		ClubID:    r.ClubID,
		Name:      r.Name,
		Role:      MemberRole(r.Role),
		Status:    MemberStatus(r.Status),
		JoinedOn:  r.JoinedOn,
		CreatedAt: r.CreatedAt,
	}
	if r.ProfileID.Valid {
		id := r.ProfileID.String
		m.ProfileID = &id
	}
	return m
}
