package portal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pecportal/internal/clubs"
	"pecportal/internal/events"
	"pecportal/internal/feedback"
	"pecportal/internal/identity"
	"pecportal/internal/notices"
	"pecportal/internal/profiles"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubProvider is a scriptable identity provider. Unset functions succeed with a nil session.
type stubProvider struct {
	identity.Hub

	sessionFn func(ctx context.Context) (*identity.Session, error)
	signUpFn  func(ctx context.Context, req identity.SignUpRequest) (*identity.Session, error)
	signInFn  func(ctx context.Context, email, password string) (*identity.Session, error)
	idTokenFn func(ctx context.Context, provider, idToken string) (*identity.Session, error)
	signOutFn func(ctx context.Context) error

	restored atomic.Value
}

func (s *stubProvider) Session(ctx context.Context) (*identity.Session, error) {
	if s.sessionFn == nil {
		return nil, nil
	}
	return s.sessionFn(ctx)
}

func (s *stubProvider) SignUp(ctx context.Context, req identity.SignUpRequest) (*identity.Session, error) {
	if s.signUpFn == nil {
		return nil, nil
	}
	return s.signUpFn(ctx, req)
}

func (s *stubProvider) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	if s.signInFn == nil {
		return nil, identity.ErrInvalidCredentials
	}
	return s.signInFn(ctx, email, password)
}

func (s *stubProvider) SignInWithIDToken(ctx context.Context, provider, idToken string) (*identity.Session, error) {
	if s.idTokenFn == nil {
		return nil, identity.ErrInvalidToken
	}
	return s.idTokenFn(ctx, provider, idToken)
}

func (s *stubProvider) SignOut(ctx context.Context) error {
	if s.signOutFn == nil {
		return nil
	}
	return s.signOutFn(ctx)
}

func (s *stubProvider) Restore(refreshToken string) {
	s.restored.Store(refreshToken)
}

// stubProfiles is a profile repository whose lookups are scripted.
type stubProfiles struct {
	*profiles.InMemoryRepository

	findFn func(ctx context.Context, id string) (profiles.Profile, error)
	calls  atomic.Int32
}

func (s *stubProfiles) FindByID(ctx context.Context, id string) (profiles.Profile, error) {
	s.calls.Add(1)
	if s.findFn == nil {
		return s.InMemoryRepository.FindByID(ctx, id)
	}
	return s.findFn(ctx, id)
}

// stubWriter applies pending writes through applyFn and records them.
type stubWriter struct {
	applyFn func(ctx context.Context, w PendingWrite) error

	mu      sync.Mutex
	applied []PendingWrite
}

func (s *stubWriter) Apply(ctx context.Context, w PendingWrite) error {
	s.mu.Lock()
	s.applied = append(s.applied, w)
	s.mu.Unlock()
	if s.applyFn == nil {
		return nil
	}
	return s.applyFn(ctx, w)
}

func (s *stubWriter) writes() []PendingWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PendingWrite, len(s.applied))
	copy(out, s.applied)
	return out
}

var testClubs = []clubs.Club{
	{ID: "c1", Name: "Mulearn", Description: "Learning community", LogoInitial: "M", Category: "Technical"},
	{ID: "c2", Name: "IEEE", Description: "Engineering society", LogoInitial: "I", Category: "Technical"},
}

type testEnv struct {
	app      *App
	provider *stubProvider
	profiles *stubProfiles
	writer   *stubWriter
	outbox   *MemoryOutbox
	notices  *notices.InMemoryRepository
	events   *events.InMemoryRepository
	clubs    *clubs.InMemoryRepository
	feedback *feedback.InMemoryRepository
}

func newTestEnv(t *testing.T, seed ...profiles.Profile) *testEnv {
	t.Helper()
	return newTestEnvWithOptions(t, Options{MaxRetries: 3, Backoff: time.Millisecond, SignupDelay: time.Millisecond}, seed...)
}

func newTestEnvWithOptions(t *testing.T, opts Options, seed ...profiles.Profile) *testEnv {
	t.Helper()

	env := &testEnv{
		provider: &stubProvider{},
		profiles: &stubProfiles{InMemoryRepository: profiles.NewInMemoryRepository(seed)},
		writer:   &stubWriter{},
		outbox:   NewMemoryOutbox(),
		notices:  notices.NewInMemoryRepository(nil),
		events:   events.NewInMemoryRepository(nil),
		clubs:    clubs.NewInMemoryRepository(testClubs, nil),
		feedback: feedback.NewInMemoryRepository(),
	}
	env.app = New("client-1", Dependencies{
		Provider: env.provider,
		Profiles: env.profiles,
		Notices:  env.notices,
		Events:   env.events,
		Clubs:    clubs.NewService(env.clubs, env.profiles),
		Feedback: env.feedback,
		Writer:   env.writer,
		Outbox:   env.outbox,
		Logger:   discardLogger(),
	}, opts)
	t.Cleanup(env.app.Close)
	return env
}

// signIn installs user directly, bypassing the provider.
func (e *testEnv) signIn(user profiles.User) {
	e.app.publishLocalUser(user)
}

func session(id, email string) *identity.Session {
	return &identity.Session{
		AccessToken:  "access-" + id,
		RefreshToken: "refresh-" + id,
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         identity.AuthUser{ID: id, Email: email},
	}
}

func strPtr(s string) *string {
	return &s
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

var errOffline = errors.New("TypeError: Failed to fetch")
