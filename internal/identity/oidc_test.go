package identity

import (
	"net/url"
	"testing"

	"golang.org/x/oauth2"
)

func TestIsEmailAllowed(t *testing.T) {
	authenticator := &OIDCAuthenticator{
		allowedDomains: toSet([]string{"PEC.edu.in"}),
		allowedEmails:  toSet([]string{"guest@example.com"}),
	}

	cases := map[string]bool{
		"Student@pec.edu.in": true,
		"guest@example.com":  true,
		"user@other.com":     false,
		"not-an-email":       false,
	}
	for email, want := range cases {
		if got := authenticator.IsEmailAllowed(email); got != want {
			t.Fatalf("IsEmailAllowed(%q) = %v, want %v", email, got, want)
		}
	}
}

func TestIsEmailAllowedAllowsAllWhenNoAllowlist(t *testing.T) {
	authenticator := &OIDCAuthenticator{allowedDomains: toSet(nil), allowedEmails: toSet(nil)}
	if !authenticator.IsEmailAllowed("anyone@gmail.com") {
		t.Fatal("expected email to be allowed when no allowlist is configured")
	}
}

func TestAuthURLHintsSingleCampusDomain(t *testing.T) {
	authenticator := &OIDCAuthenticator{
		config: &oauth2.Config{
			ClientID:    "client",
			RedirectURL: "http://localhost:8080/api/auth/google/callback",
			Endpoint:    oauth2.Endpoint{AuthURL: "https://accounts.google.com/o/oauth2/auth"},
		},
		allowedDomains: toSet([]string{"pec.edu.in"}),
	}

	parsed, err := url.Parse(authenticator.AuthURL("state-123"))
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	q := parsed.Query()
	if q.Get("state") != "state-123" || q.Get("hd") != "pec.edu.in" || q.Get("prompt") != "select_account" {
		t.Fatalf("unexpected auth url query %v", q)
	}
}

func TestGenerateStateIsUnique(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState: %v", err)
	}
	b, _ := GenerateState()
	if a == "" || a == b {
		t.Fatalf("expected distinct non-empty states, got %q and %q", a, b)
	}
}
