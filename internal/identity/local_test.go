package identity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"pecportal/internal/profiles"
)

type recordingProfiles struct {
	mu      sync.Mutex
	created []profiles.Profile
}

func (r *recordingProfiles) Create(_ context.Context, p profiles.Profile) (profiles.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, p)
	return p, nil
}

func (r *recordingProfiles) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.created)
}

type stubVerifier struct {
	verifyFn func(ctx context.Context, raw string) (*GoogleClaims, error)
}

func (s stubVerifier) VerifyIDToken(ctx context.Context, raw string) (*GoogleClaims, error) {
	return s.verifyFn(ctx, raw)
}

func newTestAuthority(repo ProfileCreator, opts ...LocalAuthorityOption) *LocalAuthority {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := NewTokenIssuer([]byte("test-secret"), "pecportal", time.Hour, 24*time.Hour)
	opts = append([]LocalAuthorityOption{WithHashCost(bcrypt.MinCost)}, opts...)
	return NewLocalAuthority(NewInMemoryAccountStore(), tokens, repo, logger, opts...)
}

func TestLocalAuthorityCreatesProfileAfterDelay(t *testing.T) {
	repo := &recordingProfiles{}
	authority := newTestAuthority(repo, WithProfileDelay(50*time.Millisecond))

	session, err := authority.SignUp(context.Background(), SignUpRequest{
		Email:    "A@PEC.edu.in",
		Password: "secret1",
		Metadata: Metadata{Name: "Jane", Role: profiles.RoleLead, Department: "Computer Science", ClubID: "c1"},
	})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if session.User.Email != "a@pec.edu.in" {
		t.Fatalf("expected normalised email, got %q", session.User.Email)
	}
	if repo.count() != 0 {
		t.Fatal("expected profile creation to be deferred")
	}

	authority.Wait()
	if repo.count() != 1 {
		t.Fatalf("expected one profile, got %d", repo.count())
	}
	p := repo.created[0]
	if p.ID != session.User.ID || p.Role != profiles.RoleLead || p.ClubID == nil || *p.ClubID != "c1" {
		t.Fatalf("unexpected profile %+v", p)
	}
}

func TestLocalAuthoritySignIn(t *testing.T) {
	authority := newTestAuthority(nil)
	ctx := context.Background()

	if _, err := authority.SignUp(ctx, SignUpRequest{Email: "sarah@pec.ac.in", Password: "password"}); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if _, err := authority.SignUp(ctx, SignUpRequest{Email: "sarah@pec.ac.in", Password: "password"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := authority.SignUp(ctx, SignUpRequest{Email: "x@pec.ac.in", Password: "123"}); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	if _, err := authority.SignIn(ctx, "sarah@pec.ac.in", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := authority.SignIn(ctx, "nobody@pec.ac.in", "password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
	session, err := authority.SignIn(ctx, "Sarah@pec.ac.in", "password")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if session.AccessToken == "" || session.RefreshToken == "" {
		t.Fatal("expected tokens to be issued")
	}
}

func TestLocalAuthorityIDTokenCreatesAccountOnce(t *testing.T) {
	repo := &recordingProfiles{}
	verifier := stubVerifier{verifyFn: func(_ context.Context, raw string) (*GoogleClaims, error) {
		if raw != "good" {
			return nil, ErrEmailNotAllowed
		}
		return &GoogleClaims{Sub: "g-1", Email: "ravi@pec.edu.in", EmailVerified: true, Name: "Ravi"}, nil
	}}
	authority := newTestAuthority(repo, WithIDTokenVerifier(verifier))
	ctx := context.Background()

	first, err := authority.SignInWithIDToken(ctx, "google", "good")
	if err != nil {
		t.Fatalf("first sign-in: %v", err)
	}
	second, err := authority.SignInWithIDToken(ctx, "google", "good")
	if err != nil {
		t.Fatalf("second sign-in: %v", err)
	}
	if first.User.ID != second.User.ID {
		t.Fatal("expected the same account on repeat sign-in")
	}
	if _, err := authority.SignInWithIDToken(ctx, "google", "bad"); !errors.Is(err, ErrEmailNotAllowed) {
		t.Fatalf("expected ErrEmailNotAllowed, got %v", err)
	}

	authority.Wait()
	if repo.count() != 1 || repo.created[0].Role != profiles.RoleStudent {
		t.Fatalf("expected one student profile, got %+v", repo.created)
	}
}

func TestLocalProviderPublishesSessionEvents(t *testing.T) {
	provider := NewLocalProvider(newTestAuthority(nil))
	sub := provider.Subscribe()
	defer sub.Unsubscribe()
	ctx := context.Background()

	if _, err := provider.SignUp(ctx, SignUpRequest{Email: "jane@pec.edu.in", Password: "secret1"}); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if ev := <-sub.C; ev.Kind != EventSignedUp || ev.Session == nil {
		t.Fatalf("unexpected event %+v", ev)
	}

	current, err := provider.Session(ctx)
	if err != nil || current == nil {
		t.Fatalf("expected current session, got %v, %v", current, err)
	}

	if err := provider.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if ev := <-sub.C; ev.Kind != EventSignedOut || ev.Session != nil {
		t.Fatalf("unexpected event %+v", ev)
	}
	if current, _ := provider.Session(ctx); current != nil {
		t.Fatal("expected no session after sign out")
	}
}

func TestLocalProviderRefreshesExpiredSession(t *testing.T) {
	authority := newTestAuthority(nil)
	provider := NewLocalProvider(authority)
	ctx := context.Background()

	if _, err := provider.SignUp(ctx, SignUpRequest{Email: "jane@pec.edu.in", Password: "secret1"}); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	sub := provider.Subscribe()
	defer sub.Unsubscribe()

	authority.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	refreshed, err := provider.Session(ctx)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if refreshed == nil {
		t.Fatal("expected refreshed session")
	}
	if ev := <-sub.C; ev.Kind != EventTokenRefreshed {
		t.Fatalf("expected refresh event, got %q", ev.Kind)
	}
}

func TestLocalProviderRestoresFromRefreshToken(t *testing.T) {
	authority := newTestAuthority(nil)
	ctx := context.Background()

	first := NewLocalProvider(authority)
	session, err := first.SignUp(ctx, SignUpRequest{Email: "jane@pec.edu.in", Password: "secret1"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	second := NewLocalProvider(authority)
	second.Restore(session.RefreshToken)
	restored, err := second.Session(ctx)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if restored == nil || restored.User.ID != session.User.ID || restored.User.Email != "jane@pec.edu.in" {
		t.Fatalf("unexpected restored session %+v", restored)
	}

	third := NewLocalProvider(authority)
	third.Restore("garbage")
	if s, err := third.Session(ctx); err == nil || s != nil {
		t.Fatalf("expected invalid refresh token to fail, got %v, %v", s, err)
	}
}
