package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleClaims contains the relevant claims from a Google ID token.
type GoogleClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	HostedDomain  string `json:"hd"`
}

// IDTokenVerifier checks a raw OpenID Connect ID token.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, rawIDToken string) (*GoogleClaims, error)
}

// OIDCAuthenticator drives campus Google sign-in.
type OIDCAuthenticator struct {
	config         *oauth2.Config
	verifier       *oidc.IDTokenVerifier
	allowedDomains map[string]struct{}
	allowedEmails  map[string]struct{}
}

// NewOIDCAuthenticator discovers Google's OIDC configuration and builds an authenticator.
func NewOIDCAuthenticator(ctx context.Context, clientID, clientSecret, redirectURL string, allowedDomains, allowedEmails []string) (*OIDCAuthenticator, error) {
	provider, err := oidc.NewProvider(ctx, "https://accounts.google.com")
	if err != nil {
		return nil, fmt.Errorf("oidc provider: %w", err)
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}

	return &OIDCAuthenticator{
		config:         config,
		verifier:       provider.Verifier(&oidc.Config{ClientID: clientID}),
		allowedDomains: toSet(allowedDomains),
		allowedEmails:  toSet(allowedEmails),
	}, nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

// AuthURL generates the Google consent URL with the given state.
func (g *OIDCAuthenticator) AuthURL(state string) string {
	opts := []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("prompt", "select_account")}
	if len(g.allowedDomains) == 1 {
		for domain := range g.allowedDomains {
			opts = append(opts, oauth2.SetAuthURLParam("hd", domain))
		}
	}
	return g.config.AuthCodeURL(state, opts...)
}

// Exchange trades the authorization code for a verified ID token and its claims.
func (g *OIDCAuthenticator) Exchange(ctx context.Context, code string) (string, *GoogleClaims, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return "", nil, fmt.Errorf("token exchange: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return "", nil, errors.New("no id_token in response")
	}

	claims, err := g.VerifyIDToken(ctx, rawIDToken)
	if err != nil {
		return "", nil, err
	}
	return rawIDToken, claims, nil
}

// VerifyIDToken checks the token signature and audience and enforces the allowlist.
func (g *OIDCAuthenticator) VerifyIDToken(ctx context.Context, rawIDToken string) (*GoogleClaims, error) {
	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}

	var claims GoogleClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("parse claims: %w", err)
	}
	if !claims.EmailVerified || !g.IsEmailAllowed(claims.Email) {
		return nil, ErrEmailNotAllowed
	}
	return &claims, nil
}

// IsEmailAllowed checks the email against the domain and email allowlists.
func (g *OIDCAuthenticator) IsEmailAllowed(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))

	if _, ok := g.allowedEmails[email]; ok {
		return true
	}

	if _, domain, found := strings.Cut(email, "@"); found {
		if _, ok := g.allowedDomains[domain]; ok {
			return true
		}
	}

	// No allowlist configured: any verified Google account may sign in.
	return len(g.allowedDomains) == 0 && len(g.allowedEmails) == 0
}

// GenerateState generates a cryptographically secure random state string.
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
