package portal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"pecportal/internal/clubs"
	"pecportal/internal/events"
	"pecportal/internal/feedback"
	"pecportal/internal/identity"
	"pecportal/internal/notices"
	"pecportal/internal/platform/metrics"
	"pecportal/internal/platform/supabase"
	"pecportal/internal/profiles"
	"pecportal/internal/syncstate"
)

// DefaultSignupDelay gives the backend time to write the profile row after signup.
const DefaultSignupDelay = time.Second

// Dependencies are the collaborators shared by every App.
type Dependencies struct {
	Provider identity.Provider
	Profiles profiles.Repository
	Notices  notices.Repository
	Events   events.Repository
	Clubs    *clubs.Service
	Feedback feedback.Repository
	Writer   Applier
	Outbox   Outbox
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Options tune timing. Zero values select the defaults.
type Options struct {
	MaxRetries  int
	Backoff     time.Duration
	SignupDelay time.Duration
	// NoRetries forces a single profile lookup, overriding MaxRetries.
	NoRetries bool
}

func (o Options) withDefaults() Options {
	if o.MaxRetries == 0 && !o.NoRetries {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.NoRetries {
		o.MaxRetries = 0
	}
	if o.Backoff == 0 {
		o.Backoff = DefaultBackoff
	}
	if o.SignupDelay == 0 {
		o.SignupDelay = DefaultSignupDelay
	}
	return o
}

// resolution is one in-flight or completed profile resolution.
type resolution struct {
	gen    uint64
	token  string
	cancel context.CancelFunc
	done   chan struct{}
}

// App is the state of one portal client: the signed-in user, the current
// view and the locally held notices, events and clubs.
type App struct {
	clientID string
	deps     Dependencies
	opts     Options
	resolver *Resolver
	logger   *slog.Logger

	ctx  context.Context
	stop context.CancelFunc

	// wg tracks resolutions and remote writes; listening tracks the event listener.
	wg        sync.WaitGroup
	listening sync.WaitGroup

	mu           sync.Mutex
	closed       bool
	loading      bool
	user         *profiles.User
	session      *identity.Session
	generation   uint64
	current      *resolution
	sub          *identity.Subscription
	view         View
	selectedClub *clubs.Club
	notices      []notices.Notice
	events       []events.Event
	clubs        []clubs.Club
	roster       []clubs.Member
	joinRequests map[string]clubs.Member
}

// New constructs an App for clientID. Call Bootstrap before use and Close when done.
func New(clientID string, deps Dependencies, opts Options) *App {
	opts = opts.withDefaults()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("client_id", clientID)
	if deps.Outbox == nil {
		deps.Outbox = NewMemoryOutbox()
	}

	ctx, stop := context.WithCancel(context.Background())
	return &App{
		clientID:     clientID,
		deps:         deps,
		opts:         opts,
		resolver:     NewResolver(deps.Profiles, opts.MaxRetries, opts.Backoff, deps.Metrics, logger),
		logger:       logger,
		ctx:          ctx,
		stop:         stop,
		loading:      true,
		view:         ViewHome,
		joinRequests: make(map[string]clubs.Member),
	}
}

// ClientID returns the identifier of the browser client owning this App.
func (a *App) ClientID() string {
	return a.clientID
}

// Restore hands a persisted refresh token to the provider before Bootstrap.
func (a *App) Restore(refreshToken string) {
	if r, ok := a.deps.Provider.(identity.Restorer); ok {
		r.Restore(refreshToken)
	}
}

// Bootstrap subscribes to session changes and resolves the existing session,
// if any. It always leaves the App out of the loading state.
func (a *App) Bootstrap(ctx context.Context) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.loading = true
	if a.sub == nil {
		a.sub = a.deps.Provider.Subscribe()
		a.listening.Add(1)
		go a.listen(a.sub)
	}
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.loading = false
		a.mu.Unlock()
	}()

	session, err := a.deps.Provider.Session(ctx)
	if err != nil {
		a.logger.Warn("session lookup failed", "error", err)
		return
	}
	if session == nil {
		return
	}

	done := a.startResolution(session, 0)
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// listen handles session events for the App's lifetime.
func (a *App) listen(sub *identity.Subscription) {
	defer a.listening.Done()
	for ev := range sub.C {
		a.handleEvent(ev)
	}
}

func (a *App) handleEvent(ev identity.Event) {
	if ev.Session == nil {
		a.logger.Debug("session ended", "event", ev.Kind)
		a.clearSession()
		return
	}
	if ev.Kind == identity.EventTokenRefreshed && a.swapSession(ev.Session) {
		return
	}
	var delay time.Duration
	if ev.Kind == identity.EventSignedUp {
		delay = a.opts.SignupDelay
	}
	a.startResolution(ev.Session, delay)
}

// startResolution resolves session's profile in the background. Starting a
// resolution cancels the previous one; a resolution already running for the
// same access token is reused. The returned channel closes when it finishes.
func (a *App) startResolution(session *identity.Session, delay time.Duration) <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		done := make(chan struct{})
		close(done)
		return done
	}
	if cur := a.current; cur != nil && session.AccessToken != "" && cur.token == session.AccessToken {
		return cur.done
	}
	if a.current != nil {
		a.current.cancel()
	}

	a.generation++
	ctx, cancel := context.WithCancel(a.ctx)
	r := &resolution{
		gen:    a.generation,
		token:  session.AccessToken,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	a.current = r
	a.session = session

	a.wg.Add(1)
	go a.runResolution(ctx, r, session, delay)
	return r.done
}

func (a *App) runResolution(ctx context.Context, r *resolution, session *identity.Session, delay time.Duration) {
	defer a.wg.Done()
	defer close(r.done)
	defer r.cancel()

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	ctx = supabase.WithAccessToken(ctx, session.AccessToken)
	user, err := a.resolver.Resolve(ctx, session.User.ID, session.User.Email)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			a.logger.Warn("profile resolution gave up", "subject_id", session.User.ID, "error", err)
		}
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if r.gen != a.generation {
		a.logger.Debug("discarding stale profile resolution", "subject_id", session.User.ID)
		return
	}
	a.user = &user
	a.rerouteLocked()
}

// swapSession installs a refreshed session for the user already signed in.
// It reports false when the session belongs to someone else.
func (a *App) swapSession(session *identity.Session) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil || a.session.User.ID != session.User.ID {
		return false
	}
	a.session = session
	return true
}

// clearSession drops the user and invalidates any pending resolution.
func (a *App) clearSession() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clearSessionLocked()
}

func (a *App) clearSessionLocked() {
	if a.current != nil {
		a.current.cancel()
		a.current = nil
	}
	a.generation++
	a.user = nil
	a.session = nil
	a.roster = nil
	a.joinRequests = make(map[string]clubs.Member)
	a.rerouteLocked()
}

// rerouteLocked re-applies the view guards after the user changed.
func (a *App) rerouteLocked() {
	nav := Route(a.user, string(a.view), a.selectedClub != nil)
	if nav.View == a.view {
		return
	}
	a.logger.Info("view no longer available", "view", a.view, "now", nav.View, "reason", nav.Reason)
	a.view = nav.View
}

// publishLocalUser sets user without a remote round trip, superseding pending resolutions.
func (a *App) publishLocalUser(user profiles.User) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != nil {
		a.current.cancel()
		a.current = nil
	}
	a.generation++
	a.user = &user
}

// User returns a copy of the current user, or nil when signed out.
func (a *App) User() *profiles.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.user == nil {
		return nil
	}
	u := *a.user
	return &u
}

// Loading reports whether bootstrap is still running.
func (a *App) Loading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loading
}

// RefreshToken returns the refresh token of the current session, for persistence by the client.
func (a *App) RefreshToken() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return ""
	}
	return a.session.RefreshToken
}

// remoteContext attaches the current access token for data store calls. The
// token comes from the provider, which refreshes it once it has expired.
func (a *App) remoteContext(ctx context.Context) context.Context {
	a.mu.Lock()
	held := a.session
	a.mu.Unlock()
	if held == nil {
		return ctx
	}

	current, err := a.deps.Provider.Session(ctx)
	if err != nil {
		a.logger.Warn("session refresh failed", "error", err)
		return ctx
	}
	if current == nil || current.AccessToken == "" {
		return ctx
	}
	if current.User.ID == held.User.ID {
		a.mu.Lock()
		if a.session == held {
			a.session = current
		}
		a.mu.Unlock()
	}
	return supabase.WithAccessToken(ctx, current.AccessToken)
}

// State is a point-in-time view of the App for rendering.
type State struct {
	User         *profiles.User `json:"user"`
	Loading      bool           `json:"loading"`
	View         View           `json:"view"`
	SelectedClub *clubs.Club    `json:"selectedClub,omitempty"`
	Capabilities Capabilities   `json:"capabilities"`
	PendingSync  int            `json:"pendingSync"`
}

// Snapshot returns the current State.
func (a *App) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := State{
		Loading:      a.loading,
		View:         a.view,
		Capabilities: CapabilitiesFor(a.user),
	}
	if a.user != nil {
		u := *a.user
		st.User = &u
	}
	if a.selectedClub != nil {
		c := *a.selectedClub
		st.SelectedClub = &c
	}
	for _, n := range a.notices {
		if n.SyncState == syncstate.Pending || n.SyncState == syncstate.Unsynced {
			st.PendingSync++
		}
	}
	for _, e := range a.events {
		if e.SyncState == syncstate.Pending || e.SyncState == syncstate.Unsynced {
			st.PendingSync++
		}
	}
	return st
}

// Navigate moves to view, applying the role guards.
func (a *App) Navigate(view string) Navigation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.navigateLocked(view)
}

func (a *App) navigateLocked(view string) Navigation {
	nav := Route(a.user, view, a.selectedClub != nil)
	if nav.Denied != nil {
		a.logger.Info("navigation denied", "requested", view, "reason", nav.Reason)
	}
	a.view = nav.View
	return nav
}

// OpenClub selects a club and shows its detail view.
func (a *App) OpenClub(ctx context.Context, clubID string) (Navigation, error) {
	club, ok := a.localClub(clubID)
	if !ok {
		fetched, err := a.deps.Clubs.Get(a.remoteContext(ctx), clubID)
		if err != nil {
			return Navigation{}, err
		}
		club = fetched
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.selectedClub = &club
	return a.navigateLocked(string(ViewClubDetail)), nil
}

func (a *App) localClub(clubID string) (clubs.Club, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range a.clubs {
		if c.ID == clubID {
			return c, true
		}
	}
	return clubs.Club{}, false
}

// Refresh reloads notices, events and clubs, newest first. Failures are logged
// and leave the previous collection in place. Local entries that have not
// reached the store yet are kept ahead of the remote rows.
func (a *App) Refresh(ctx context.Context) {
	ctx = a.remoteContext(ctx)

	if remote, err := a.deps.Notices.List(ctx); err != nil {
		a.logger.Warn("load notices failed", "error", err)
	} else {
		a.mu.Lock()
		a.notices = mergeNotices(a.notices, remote)
		a.mu.Unlock()
	}

	if remote, err := a.deps.Events.List(ctx); err != nil {
		a.logger.Warn("load events failed", "error", err)
	} else {
		a.mu.Lock()
		a.events = mergeEvents(a.events, remote)
		a.mu.Unlock()
	}

	if list, err := a.deps.Clubs.List(ctx); err != nil {
		a.logger.Warn("load clubs failed", "error", err)
	} else {
		a.mu.Lock()
		a.clubs = list
		a.mu.Unlock()
	}
}

func mergeNotices(local, remote []notices.Notice) []notices.Notice {
	seen := make(map[string]struct{}, len(remote))
	for _, n := range remote {
		seen[n.ID] = struct{}{}
	}
	out := make([]notices.Notice, 0, len(local)+len(remote))
	for _, n := range local {
		if _, ok := seen[n.ID]; !ok && n.SyncState != "" && n.SyncState != syncstate.Synced {
			out = append(out, n)
		}
	}
	for _, n := range remote {
		n.SyncState = syncstate.Synced
		out = append(out, n)
	}
	return out
}

func mergeEvents(local, remote []events.Event) []events.Event {
	seen := make(map[string]struct{}, len(remote))
	for _, e := range remote {
		seen[e.ID] = struct{}{}
	}
	out := make([]events.Event, 0, len(local)+len(remote))
	for _, e := range local {
		if _, ok := seen[e.ID]; !ok && e.SyncState != "" && e.SyncState != syncstate.Synced {
			out = append(out, e)
		}
	}
	for _, e := range remote {
		e.SyncState = syncstate.Synced
		out = append(out, e)
	}
	return out
}

// Notices returns the local notices, newest first.
func (a *App) Notices() []notices.Notice {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]notices.Notice, len(a.notices))
	copy(out, a.notices)
	return out
}

// Events returns the local events, newest first.
func (a *App) Events() []events.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]events.Event, len(a.events))
	copy(out, a.events)
	return out
}

// Clubs returns the locally loaded clubs.
func (a *App) Clubs() []clubs.Club {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]clubs.Club, len(a.clubs))
	copy(out, a.clubs)
	return out
}

// Flush waits until in-flight remote writes and resolutions have finished.
func (a *App) Flush() {
	a.wg.Wait()
}

// Close unsubscribes from session events, cancels background work and waits for it.
func (a *App) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	sub := a.sub
	if a.current != nil {
		a.current.cancel()
	}
	a.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	a.stop()
	a.listening.Wait()
	a.wg.Wait()
}
