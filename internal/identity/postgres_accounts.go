package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresAccountStore implements AccountStore using PostgreSQL. Inserting an
// account fires the profile trigger from the accounts migration.
type PostgresAccountStore struct {
	db *sqlx.DB
}

// NewPostgresAccountStore creates a new PostgresAccountStore.
func NewPostgresAccountStore(db *sqlx.DB) *PostgresAccountStore {
	return &PostgresAccountStore{db: db}
}

const accountColumns = `id, email, password_hash, provider, provider_id, metadata, created_at, last_login_at`

// FindByEmail looks up an account by email address.
func (s *PostgresAccountStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return s.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, normalizeEmail(email))
}

// FindByProvider looks up an account by federated provider and subject.
func (s *PostgresAccountStore) FindByProvider(ctx context.Context, provider, providerID string) (*Account, error) {
	return s.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE provider = $1 AND provider_id = $2`, provider, providerID)
}

func (s *PostgresAccountStore) findOne(ctx context.Context, query string, args ...any) (*Account, error) {
	var row accountRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select account: %w", err)
	}
	return row.toAccount()
}

// Create inserts a new account.
func (s *PostgresAccountStore) Create(ctx context.Context, account Account) error {
	metadata, err := json.Marshal(account.Metadata)
	if err != nil {
		return fmt.Errorf("encode account metadata: %w", err)
	}
	var providerID sql.NullString
	if account.ProviderID != "" {
		providerID = sql.NullString{String: account.ProviderID, Valid: true}
	}

	const query = `
		INSERT INTO accounts (id, email, password_hash, provider, provider_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.Provider,
		providerID,
		metadata,
		account.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// TouchLogin records the last login time.
func (s *PostgresAccountStore) TouchLogin(ctx context.Context, id string, at time.Time) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE accounts SET last_login_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("update account login: %w", err)
	}
	return nil
}

// accountRow is a database row representation of Account.
type accountRow struct {
	ID           string         `db:"id"`
	Email        string         `db:"email"`
	PasswordHash string         `db:"password_hash"`
	Provider     string         `db:"provider"`
	ProviderID   sql.NullString `db:"provider_id"`
	Metadata     []byte         `db:"metadata"`
	CreatedAt    time.Time      `db:"created_at"`
	LastLoginAt  sql.NullTime   `db:"last_login_at"`
}

func (r accountRow) toAccount() (*Account, error) {
	account := &Account{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Provider:     r.Provider,
		ProviderID:   r.ProviderID.String,
		CreatedAt:    r.CreatedAt,
		LastLoginAt:  r.LastLoginAt.Time,
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &account.Metadata); err != nil {
			return nil, fmt.Errorf("decode account metadata: %w", err)
		}
	}
	return account, nil
}
