package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pecportal/internal/platform/supabase"
)

// GoTrueClient talks to the hosted auth service for a single portal client.
type GoTrueClient struct {
	api   *supabase.Client
	state sessionState
	hub   Hub
	now   func() time.Time
}

// NewGoTrueClient constructs a provider over the hosted /auth/v1 endpoints.
func NewGoTrueClient(api *supabase.Client) *GoTrueClient {
	return &GoTrueClient{api: api, now: time.Now}
}

type gotrueUser struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	UserMetadata Metadata `json:"user_metadata"`
}

// tokenResponse covers both the session payload and the bare user returned
// by signup when email confirmation is required.
type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int         `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	User         *gotrueUser `json:"user"`
	gotrueUser
}

func (r tokenResponse) session(now time.Time) *Session {
	if r.AccessToken == "" || r.User == nil {
		return nil
	}
	s := &Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		User: AuthUser{
			ID:       r.User.ID,
			Email:    r.User.Email,
			Metadata: r.User.UserMetadata,
		},
	}
	switch {
	case r.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(r.ExpiresAt, 0)
	case r.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return s
}

// Session returns the current session, refreshing it when the access token expired.
func (c *GoTrueClient) Session(ctx context.Context) (*Session, error) {
	current := c.state.get()
	if current == nil || !current.Expired(c.now()) {
		return current, nil
	}
	if current.RefreshToken == "" {
		c.state.set(nil)
		return nil, nil
	}

	refreshed, err := c.token(ctx, "refresh_token", map[string]string{"refresh_token": current.RefreshToken})
	if err != nil {
		c.state.set(nil)
		c.hub.Publish(Event{Kind: EventSignedOut})
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	c.state.set(refreshed)
	c.hub.Publish(Event{Kind: EventTokenRefreshed, Session: refreshed})
	return refreshed, nil
}

// SignUp registers an account with metadata the backend copies into the profile row.
func (c *GoTrueClient) SignUp(ctx context.Context, req SignUpRequest) (*Session, error) {
	body := map[string]any{
		"email":    req.Email,
		"password": req.Password,
		"data":     req.Metadata,
	}
	var resp tokenResponse
	if err := c.api.Auth(ctx, http.MethodPost, "/signup", nil, body, &resp); err != nil {
		return nil, fmt.Errorf("sign up: %w", mapAuthError(err))
	}

	session := resp.session(c.now())
	if session != nil {
		c.state.set(session)
		c.hub.Publish(Event{Kind: EventSignedUp, Session: session})
	}
	return session, nil
}

// SignIn authenticates with email and password.
func (c *GoTrueClient) SignIn(ctx context.Context, email, password string) (*Session, error) {
	session, err := c.token(ctx, "password", map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	c.state.set(session)
	c.hub.Publish(Event{Kind: EventSignedIn, Session: session})
	return session, nil
}

// SignInWithIDToken exchanges a federated ID token for a session.
func (c *GoTrueClient) SignInWithIDToken(ctx context.Context, provider, idToken string) (*Session, error) {
	session, err := c.token(ctx, "id_token", map[string]string{"provider": provider, "id_token": idToken})
	if err != nil {
		return nil, fmt.Errorf("sign in with %s: %w", provider, err)
	}
	c.state.set(session)
	c.hub.Publish(Event{Kind: EventSignedIn, Session: session})
	return session, nil
}

// SignOut drops the local session, then revokes it remotely.
func (c *GoTrueClient) SignOut(ctx context.Context) error {
	current := c.state.get()
	c.state.set(nil)
	c.hub.Publish(Event{Kind: EventSignedOut})

	if current == nil {
		return nil
	}
	ctx = supabase.WithAccessToken(ctx, current.AccessToken)
	if err := c.api.Auth(ctx, http.MethodPost, "/logout", nil, nil, nil); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// Subscribe returns a subscription to this client's session events.
func (c *GoTrueClient) Subscribe() *Subscription {
	return c.hub.Subscribe()
}

// Restore seeds the client from a persisted refresh token; the next Session call redeems it.
func (c *GoTrueClient) Restore(refreshToken string) {
	c.state.restore(refreshToken)
}

func (c *GoTrueClient) token(ctx context.Context, grant string, body any) (*Session, error) {
	query := url.Values{"grant_type": []string{grant}}
	var resp tokenResponse
	if err := c.api.Auth(ctx, http.MethodPost, "/token", query, body, &resp); err != nil {
		return nil, mapAuthError(err)
	}
	session := resp.session(c.now())
	if session == nil {
		return nil, errors.New("auth response did not include a session")
	}
	return session, nil
}

// mapAuthError translates hosted auth errors into package sentinels.
func mapAuthError(err error) error {
	var apiErr *supabase.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	code := strings.ToLower(apiErr.Code)
	msg := strings.ToLower(apiErr.Message)
	switch {
	case code == "invalid_credentials" || code == "invalid_grant" || strings.Contains(msg, "invalid login credentials"):
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, apiErr.Message)
	case code == "user_already_exists" || strings.Contains(msg, "already registered"):
		return fmt.Errorf("%w: %s", ErrEmailTaken, apiErr.Message)
	case code == "weak_password":
		return fmt.Errorf("%w: %s", ErrWeakPassword, apiErr.Message)
	default:
		return err
	}
}
