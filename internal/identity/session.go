package identity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"pecportal/internal/profiles"
)

var (
	// ErrInvalidCredentials is returned when an email and password do not match an account.
	ErrInvalidCredentials = errors.New("invalid login credentials")
	// ErrEmailTaken is returned when signing up with an email that already has an account.
	ErrEmailTaken = errors.New("user already registered")
	// ErrWeakPassword is returned when a signup password is too short.
	ErrWeakPassword = errors.New("password should be at least 6 characters")
	// ErrEmailNotAllowed is returned when a federated identity is outside the campus allowlist.
	ErrEmailNotAllowed = errors.New("email is not allowed to sign in")
	// ErrInvalidToken is returned when an access or refresh token cannot be verified.
	ErrInvalidToken = errors.New("invalid token")
)

// MinPasswordLength matches the hosted provider's default policy.
const MinPasswordLength = 6

// Metadata is stored with the account at signup and copied into the profile row.
type Metadata struct {
	Name       string        `json:"name,omitempty"`
	Role       profiles.Role `json:"role,omitempty"`
	Department string        `json:"department,omitempty"`
	ClubID     string        `json:"club_id,omitempty"`
}

// AuthUser is the identity behind a session.
type AuthUser struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Metadata Metadata `json:"metadata"`
}

// Session is an authenticated session as issued by a provider.
type Session struct {
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expiresAt"`
	User         AuthUser  `json:"user"`
}

// expiryMargin refreshes sessions slightly before the provider would reject them.
const expiryMargin = 30 * time.Second

// Expired reports whether the access token should be refreshed before use.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt.Add(-expiryMargin))
}

// SignUpRequest carries the fields needed to register an account.
type SignUpRequest struct {
	Email    string
	Password string
	Metadata Metadata
}

// EventKind names a session transition.
type EventKind string

const (
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedUp       EventKind = "SIGNED_UP"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
)

// Event is a session-change notification. Session is nil when the user signed out.
type Event struct {
	Kind    EventKind
	Session *Session
}

// Provider is the identity provider as seen by one portal client.
type Provider interface {
	// Session returns the current session, refreshing it when expired. It returns nil when signed out.
	Session(ctx context.Context) (*Session, error)
	// SignUp registers an account. The returned session is nil when the provider requires email confirmation.
	SignUp(ctx context.Context, req SignUpRequest) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	// SignInWithIDToken exchanges an OpenID Connect ID token from provider (for example "google") for a session.
	SignInWithIDToken(ctx context.Context, provider, idToken string) (*Session, error)
	SignOut(ctx context.Context) error
	Subscribe() *Subscription
}

// Restorer is implemented by providers that can resume a session persisted by the browser.
type Restorer interface {
	Restore(refreshToken string)
}

// subscriptionBuffer bounds pending events per subscriber.
const subscriptionBuffer = 16

// Subscription delivers session events until Unsubscribe is called.
type Subscription struct {
	C <-chan Event

	once   sync.Once
	cancel func()
}

// Unsubscribe stops delivery and closes C. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

// Hub fans session events out to subscribers. The zero value is ready to use.
type Hub struct {
	// Logger reports dropped events. Nil uses slog.Default.
	Logger *slog.Logger

	mu   sync.Mutex
	subs map[*Subscription]chan Event
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan Event, subscriptionBuffer)
	sub := &Subscription{C: ch}
	sub.cancel = func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[sub]; ok {
			delete(h.subs, sub)
			close(c)
		}
	}

	h.mu.Lock()
	if h.subs == nil {
		h.subs = make(map[*Subscription]chan Event)
	}
	h.subs[sub] = ch
	h.mu.Unlock()
	return sub
}

// Publish delivers ev to every subscriber without blocking. A full subscriber
// misses ev, except for sign-outs, which displace the oldest pending event.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
			continue
		default:
		}

		dropped := ev.Kind
		if ev.Kind == EventSignedOut {
			select {
			case old := <-ch:
				dropped = old.Kind
			default:
			}
			select {
			case ch <- ev:
			default:
				dropped = ev.Kind
			}
		}
		h.logger().Warn("session event dropped for slow subscriber", "event", dropped)
	}
}

func (h *Hub) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// sessionState holds one client's current session.
type sessionState struct {
	mu      sync.Mutex
	current *Session
}

func (s *sessionState) get() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *sessionState) set(session *Session) {
	s.mu.Lock()
	s.current = session
	s.mu.Unlock()
}

// restore installs an already-expired session so the next lookup refreshes it.
func (s *sessionState) restore(refreshToken string) {
	if refreshToken == "" {
		return
	}
	s.set(&Session{RefreshToken: refreshToken, ExpiresAt: time.Unix(1, 0)})
}
