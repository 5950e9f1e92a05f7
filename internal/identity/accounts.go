package identity

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Account is a locally managed identity.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	Provider     string
	ProviderID   string
	Metadata     Metadata
	CreatedAt    time.Time
	LastLoginAt  time.Time
}

func (a Account) authUser() AuthUser {
	return AuthUser{ID: a.ID, Email: a.Email, Metadata: a.Metadata}
}

// AccountStore persists local accounts. Lookups return nil, nil when nothing matches.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByProvider(ctx context.Context, provider, providerID string) (*Account, error)
	Create(ctx context.Context, account Account) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
}

// InMemoryAccountStore keeps accounts in process memory.
type InMemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

// NewInMemoryAccountStore constructs an empty store.
func NewInMemoryAccountStore() *InMemoryAccountStore {
	return &InMemoryAccountStore{accounts: make(map[string]Account)}
}

// FindByEmail looks an account up by normalised email.
func (s *InMemoryAccountStore) FindByEmail(_ context.Context, email string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = normalizeEmail(email)
	for _, a := range s.accounts {
		if a.Email == email {
			account := a
			return &account, nil
		}
	}
	return nil, nil
}

// FindByProvider looks an account up by federated identity.
func (s *InMemoryAccountStore) FindByProvider(_ context.Context, provider, providerID string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.Provider == provider && a.ProviderID == providerID {
			account := a
			return &account, nil
		}
	}
	return nil, nil
}

// Create stores a new account, rejecting duplicate emails.
func (s *InMemoryAccountStore) Create(_ context.Context, account Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.Email == account.Email {
			return ErrEmailTaken
		}
	}
	s.accounts[account.ID] = account
	return nil
}

// TouchLogin records the last login time.
func (s *InMemoryAccountStore) TouchLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.accounts[id]; ok {
		a.LastLoginAt = at
		s.accounts[id] = a
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
