package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"pecportal/internal/profiles"
)

const providerEmail = "email"

// ProfileCreator receives the profile row created after signup.
type ProfileCreator interface {
	Create(ctx context.Context, profile profiles.Profile) (profiles.Profile, error)
}

// LocalAuthority is a self-hosted identity service shared by all portal clients.
// Like the hosted backend, it creates the profile row asynchronously after signup,
// so callers observe the same window in which the profile does not exist yet.
type LocalAuthority struct {
	accounts     AccountStore
	tokens       *TokenIssuer
	profiles     ProfileCreator
	idTokens     IDTokenVerifier
	profileDelay time.Duration
	hashCost     int
	logger       *slog.Logger
	now          func() time.Time

	wg sync.WaitGroup
}

// LocalAuthorityOption configures a LocalAuthority.
type LocalAuthorityOption func(*LocalAuthority)

// WithIDTokenVerifier enables federated sign-in.
func WithIDTokenVerifier(v IDTokenVerifier) LocalAuthorityOption {
	return func(a *LocalAuthority) {
		a.idTokens = v
	}
}

// WithProfileDelay sets how long after signup the profile row appears.
func WithProfileDelay(d time.Duration) LocalAuthorityOption {
	return func(a *LocalAuthority) {
		a.profileDelay = d
	}
}

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) LocalAuthorityOption {
	return func(a *LocalAuthority) {
		a.hashCost = cost
	}
}

// NewLocalAuthority constructs the authority.
func NewLocalAuthority(accounts AccountStore, tokens *TokenIssuer, profileRepo ProfileCreator, logger *slog.Logger, opts ...LocalAuthorityOption) *LocalAuthority {
	a := &LocalAuthority{
		accounts: accounts,
		tokens:   tokens,
		profiles: profileRepo,
		hashCost: bcrypt.DefaultCost,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Wait blocks until pending profile creations have finished.
func (a *LocalAuthority) Wait() {
	a.wg.Wait()
}

// SignUp creates an account and returns a session for it.
func (a *LocalAuthority) SignUp(ctx context.Context, req SignUpRequest) (*Session, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, errors.New("email is required")
	}
	if len(req.Password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), a.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := a.now().UTC()
	account := Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Provider:     providerEmail,
		Metadata:     req.Metadata,
		CreatedAt:    now,
		LastLoginAt:  now,
	}
	if err := a.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	a.createProfileLater(account)
	return a.tokens.Issue(account.authUser())
}

// SignIn checks a password and returns a session.
func (a *LocalAuthority) SignIn(ctx context.Context, email, password string) (*Session, error) {
	account, err := a.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if account == nil || account.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := a.accounts.TouchLogin(ctx, account.ID, a.now().UTC()); err != nil {
		a.logger.Warn("record login failed", "account_id", account.ID, "error", err)
	}
	return a.tokens.Issue(account.authUser())
}

// SignInWithIDToken verifies a federated ID token, creating the account on first use.
func (a *LocalAuthority) SignInWithIDToken(ctx context.Context, provider, idToken string) (*Session, error) {
	if a.idTokens == nil {
		return nil, fmt.Errorf("%s sign-in is not configured", provider)
	}
	claims, err := a.idTokens.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}

	account, err := a.accounts.FindByProvider(ctx, provider, claims.Sub)
	if err != nil {
		return nil, err
	}
	if account != nil {
		if err := a.accounts.TouchLogin(ctx, account.ID, a.now().UTC()); err != nil {
			a.logger.Warn("record login failed", "account_id", account.ID, "error", err)
		}
		return a.tokens.Issue(account.authUser())
	}

	now := a.now().UTC()
	created := Account{
		ID:         uuid.NewString(),
		Email:      normalizeEmail(claims.Email),
		Provider:   provider,
		ProviderID: claims.Sub,
		Metadata:   Metadata{Name: claims.Name, Role: profiles.RoleStudent},
		CreatedAt:  now,
	}
	if err := a.accounts.Create(ctx, created); err != nil {
		return nil, err
	}
	a.createProfileLater(created)
	return a.tokens.Issue(created.authUser())
}

// Refresh exchanges a refresh token for a new session.
func (a *LocalAuthority) Refresh(refreshToken string) (*Session, error) {
	claims, err := a.tokens.Verify(refreshToken, tokenKindRefresh)
	if err != nil {
		return nil, err
	}
	return a.tokens.Issue(AuthUser{ID: claims.Subject, Email: claims.Email})
}

func (a *LocalAuthority) createProfileLater(account Account) {
	if a.profiles == nil {
		return
	}
	profile := profileFromAccount(account)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if a.profileDelay > 0 {
			time.Sleep(a.profileDelay)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := a.profiles.Create(ctx, profile); err != nil {
			a.logger.Error("create profile failed", "account_id", account.ID, "error", err)
			return
		}
		a.logger.Debug("profile created", "account_id", account.ID)
	}()
}

func profileFromAccount(account Account) profiles.Profile {
	md := account.Metadata
	name := md.Name
	if name == "" {
		name, _, _ = strings.Cut(account.Email, "@")
	}
	role := md.Role
	if !role.Valid() {
		role = profiles.RoleStudent
	}
	p := profiles.Profile{
		ID:         account.ID,
		Name:       name,
		Role:       role,
		Email:      account.Email,
		Department: md.Department,
		CreatedAt:  account.CreatedAt,
	}
	if md.ClubID != "" {
		clubID := md.ClubID
		p.ClubID = &clubID
	}
	return p
}

// LocalProvider is one portal client's view of a LocalAuthority.
type LocalProvider struct {
	authority *LocalAuthority
	state     sessionState
	hub       Hub
}

// NewLocalProvider constructs a provider for one client.
func NewLocalProvider(authority *LocalAuthority) *LocalProvider {
	return &LocalProvider{authority: authority}
}

// Session returns the current session, refreshing an expired access token.
func (p *LocalProvider) Session(_ context.Context) (*Session, error) {
	current := p.state.get()
	if current == nil || !current.Expired(p.authority.now()) {
		return current, nil
	}

	refreshed, err := p.authority.Refresh(current.RefreshToken)
	if err != nil {
		p.state.set(nil)
		p.hub.Publish(Event{Kind: EventSignedOut})
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	p.state.set(refreshed)
	p.hub.Publish(Event{Kind: EventTokenRefreshed, Session: refreshed})
	return refreshed, nil
}

// SignUp registers an account.
func (p *LocalProvider) SignUp(ctx context.Context, req SignUpRequest) (*Session, error) {
	session, err := p.authority.SignUp(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	p.state.set(session)
	p.hub.Publish(Event{Kind: EventSignedUp, Session: session})
	return session, nil
}

// SignIn authenticates with email and password.
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	session, err := p.authority.SignIn(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	p.state.set(session)
	p.hub.Publish(Event{Kind: EventSignedIn, Session: session})
	return session, nil
}

// SignInWithIDToken authenticates with a federated ID token.
func (p *LocalProvider) SignInWithIDToken(ctx context.Context, provider, idToken string) (*Session, error) {
	session, err := p.authority.SignInWithIDToken(ctx, provider, idToken)
	if err != nil {
		return nil, fmt.Errorf("sign in with %s: %w", provider, err)
	}
	p.state.set(session)
	p.hub.Publish(Event{Kind: EventSignedIn, Session: session})
	return session, nil
}

// SignOut drops the session. Tokens are stateless and simply expire.
func (p *LocalProvider) SignOut(_ context.Context) error {
	p.state.set(nil)
	p.hub.Publish(Event{Kind: EventSignedOut})
	return nil
}

// Subscribe returns a subscription to this client's session events.
func (p *LocalProvider) Subscribe() *Subscription {
	return p.hub.Subscribe()
}

// Restore seeds the provider from a persisted refresh token; the next Session call redeems it.
func (p *LocalProvider) Restore(refreshToken string) {
	p.state.restore(refreshToken)
}
