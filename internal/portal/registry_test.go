package portal

import (
	"context"
	"sync"
	"testing"
	"time"

	"pecportal/internal/clubs"
	"pecportal/internal/events"
	"pecportal/internal/feedback"
	"pecportal/internal/identity"
	"pecportal/internal/notices"
	"pecportal/internal/platform/supabase"
	"pecportal/internal/profiles"
	"pecportal/internal/syncstate"
)

type registryFixture struct {
	registry  *Registry
	mu        sync.Mutex
	providers map[string]*stubProvider
	created   int
	now       time.Time
}

func newRegistryFixture(t *testing.T, ttl time.Duration, seed ...profiles.Profile) *registryFixture {
	t.Helper()
	f := &registryFixture{providers: make(map[string]*stubProvider), now: time.Unix(1_700_000_000, 0)}
	profileRepo := profiles.NewInMemoryRepository(seed)
	clubRepo := clubs.NewInMemoryRepository(testClubs, nil)

	factory := func(clientID string) *App {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.created++
		p := &stubProvider{}
		p.sessionFn = func(context.Context) (*identity.Session, error) {
			token, _ := p.restored.Load().(string)
			if token == "" {
				return nil, nil
			}
			return session("u1", "jane@pec.edu.in"), nil
		}
		f.providers[clientID] = p
		return New(clientID, Dependencies{
			Provider: p,
			Profiles: profileRepo,
			Notices:  notices.NewInMemoryRepository(nil),
			Events:   events.NewInMemoryRepository(nil),
			Clubs:    clubs.NewService(clubRepo, profileRepo),
			Feedback: feedback.NewInMemoryRepository(),
			Writer:   &stubWriter{},
			Logger:   discardLogger(),
		}, Options{Backoff: time.Millisecond})
	}
	f.registry = NewRegistry(factory, ttl, discardLogger(), nil)
	f.registry.now = func() time.Time {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.now
	}
	t.Cleanup(f.registry.Close)
	return f
}

func (f *registryFixture) advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestRegistryCreatesOneAppPerClient(t *testing.T) {
	f := newRegistryFixture(t, time.Minute)
	ctx := context.Background()

	a1, err := f.registry.Get(ctx, "browser-a", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	a2, _ := f.registry.Get(ctx, "browser-a", "")
	b, _ := f.registry.Get(ctx, "browser-b", "")

	if a1 != a2 {
		t.Fatal("expected the same app for the same client")
	}
	if a1 == b {
		t.Fatal("expected distinct apps for distinct clients")
	}
	if f.created != 2 || f.registry.Len() != 2 {
		t.Fatalf("expected two apps, created %d, live %d", f.created, f.registry.Len())
	}
	if a1.Loading() {
		t.Fatal("expected Get to return a bootstrapped app")
	}
}

func TestRegistryRestoresSessionFromRefreshToken(t *testing.T) {
	f := newRegistryFixture(t, time.Minute, profiles.Profile{ID: "u1", Name: "Jane", Role: profiles.RoleStudent})

	app, err := f.registry.Get(context.Background(), "browser-a", "refresh-u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if got, _ := f.providers["browser-a"].restored.Load().(string); got != "refresh-u1" {
		t.Fatalf("expected refresh token to be restored, got %q", got)
	}
	if u := app.User(); u == nil || u.Name != "Jane" {
		t.Fatalf("expected restored user, got %+v", u)
	}
}

func TestRegistrySweepEvictsIdleClients(t *testing.T) {
	f := newRegistryFixture(t, time.Minute)
	ctx := context.Background()
	_, _ = f.registry.Get(ctx, "idle", "")
	_, _ = f.registry.Get(ctx, "busy", "")

	f.advance(45 * time.Second)
	f.registry.Lookup("busy")
	f.advance(30 * time.Second)

	if n := f.registry.Sweep(); n != 1 {
		t.Fatalf("expected one eviction, got %d", n)
	}
	if _, ok := f.registry.Lookup("idle"); ok {
		t.Fatal("expected idle client to be gone")
	}
	if _, ok := f.registry.Lookup("busy"); !ok {
		t.Fatal("expected busy client to survive")
	}
}

func TestRegistryMarkSyncedRoutesToClient(t *testing.T) {
	f := newRegistryFixture(t, time.Minute)
	app, _ := f.registry.Get(context.Background(), "browser-a", "")
	app.publishLocalUser(faculty)

	writer := app.deps.Writer.(*stubWriter)
	writer.applyFn = func(context.Context, PendingWrite) error { return errOffline }
	posted, err := app.PostNotice(context.Background(), notices.Notice{Title: "Fee deadline", Content: "Friday"})
	if err != nil {
		t.Fatalf("PostNotice: %v", err)
	}
	app.Flush()

	f.registry.MarkSynced(PendingWrite{ClientID: "browser-a", Kind: KindNotice, EntityID: posted.ID})
	f.registry.MarkSynced(PendingWrite{ClientID: "gone", Kind: KindNotice, EntityID: posted.ID})

	if got := app.Notices()[0].SyncState; got != syncstate.Synced {
		t.Fatalf("expected synced, got %q", got)
	}
}

func TestRegistryReplaysWithOwnerSession(t *testing.T) {
	f := newRegistryFixture(t, time.Minute, profiles.Profile{ID: "u1", Name: "Jane", Role: profiles.RoleStudent})
	ctx := context.Background()
	if _, err := f.registry.Get(ctx, "browser-a", "refresh-u1"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	outbox := NewMemoryOutbox()
	_ = outbox.Push(ctx, PendingWrite{ClientID: "browser-a", Kind: KindNotice, EntityID: "n1", Attempts: 1})
	_ = outbox.Push(ctx, PendingWrite{ClientID: "gone", Kind: KindNotice, EntityID: "n2", Attempts: 1})

	tokens := make(map[string]string)
	replayer := NewReplayer(outbox, applierFunc(func(ctx context.Context, w PendingWrite) error {
		tokens[w.EntityID] = supabase.AccessTokenFrom(ctx)
		return nil
	}), discardLogger(), nil, f.registry)

	if _, err := replayer.ReplayOnce(ctx); err != nil {
		t.Fatalf("ReplayOnce: %v", err)
	}
	if tokens["n1"] != "access-u1" {
		t.Fatalf("expected the live client's token, got %q", tokens["n1"])
	}
	if tokens["n2"] != "" {
		t.Fatalf("expected no token for a departed client, got %q", tokens["n2"])
	}
}

func TestRegistryCloseRejectsNewClients(t *testing.T) {
	f := newRegistryFixture(t, time.Minute)
	f.registry.Close()

	if _, err := f.registry.Get(context.Background(), "late", ""); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
