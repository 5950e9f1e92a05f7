package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"pecportal/internal/identity"
	"pecportal/internal/portal"
	"pecportal/internal/profiles"
)

func TestSessionStatusIssuesClientCookieForNewBrowser(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/api/session", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if _, ok := f.cookies[clientCookieName]; !ok {
		t.Fatal("expected client cookie to be issued")
	}
	state := decodeBody[portal.State](t, rec)
	if state.User != nil || state.Loading || state.View != portal.ViewHome {
		t.Fatalf("unexpected anonymous state: %+v", state)
	}
}

func TestSessionStatusReusesClientAcrossRequests(t *testing.T) {
	f := newAPIFixture(t)

	f.do(http.MethodGet, "/api/session", nil)
	first := f.app()
	f.do(http.MethodGet, "/api/session", nil)

	if f.app() != first {
		t.Fatal("expected the same portal client for the same browser")
	}
	if f.registry.Len() != 1 {
		t.Fatalf("expected one registered client, got %d", f.registry.Len())
	}
}

func TestSessionLoginResolvesProfileAndStoresRefreshToken(t *testing.T) {
	f := newAPIFixture(t)
	f.account("admin@pec.edu", identity.Metadata{Name: "Asha", Role: profiles.RoleAdmin, Department: "Computer Science"})

	rec := f.do(http.MethodPost, "/api/session", map[string]string{"email": "admin@pec.edu", "password": testPassword})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	state := decodeBody[portal.State](t, rec)
	if state.User == nil || state.User.Name != "Asha" || state.User.Role != profiles.RoleAdmin {
		t.Fatalf("unexpected user: %+v", state.User)
	}
	if !state.Capabilities.CanViewDashboard {
		t.Fatal("expected admin to see the dashboard")
	}
	if c, ok := f.cookies[refreshCookieName]; !ok || c.Value == "" || !c.HttpOnly {
		t.Fatalf("expected HttpOnly refresh cookie, got %+v", c)
	}
}

func TestSessionLoginRejectsWrongPassword(t *testing.T) {
	f := newAPIFixture(t)
	f.account("admin@pec.edu", identity.Metadata{Name: "Asha", Role: profiles.RoleAdmin})

	rec := f.do(http.MethodPost, "/api/session", map[string]string{"email": "admin@pec.edu", "password": "wrong-one"})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if _, ok := f.cookies[refreshCookieName]; ok {
		t.Fatal("expected no refresh cookie after failed login")
	}
}

func TestSessionLoginValidatesInput(t *testing.T) {
	f := newAPIFixture(t)

	tests := map[string]any{
		"missing email":  map[string]string{"password": testPassword},
		"invalid email":  map[string]string{"email": "not-an-email", "password": testPassword},
		"empty password": map[string]string{"email": "a@pec.edu"},
		"unknown field":  map[string]string{"email": "a@pec.edu", "password": testPassword, "token": "x"},
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/session", body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}
		})
	}
}

func TestSessionSignUpLeadGetsDefaultClub(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodPost, "/api/session/signup", map[string]string{
		"name":       "Jane",
		"email":      "jane@pec.edu",
		"password":   testPassword,
		"role":       "lead",
		"department": "Computer Science",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	state := decodeBody[portal.State](t, rec)
	if state.User == nil || state.User.Name != "Jane" || state.User.ClubID != profiles.DefaultLeadClubID {
		t.Fatalf("unexpected user: %+v", state.User)
	}
	if !state.Capabilities.CanManageClub {
		t.Fatal("expected lead to manage their club")
	}
}

func TestSessionSignUpErrors(t *testing.T) {
	f := newAPIFixture(t)
	f.account("taken@pec.edu", identity.Metadata{Name: "Old", Role: profiles.RoleStudent})

	tests := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{"weak password", map[string]string{"name": "N", "email": "n@pec.edu", "password": "123", "role": "student", "department": "Civil"}, http.StatusBadRequest},
		{"unknown role", map[string]string{"name": "N", "email": "n@pec.edu", "password": testPassword, "role": "dean", "department": "Civil"}, http.StatusBadRequest},
		{"email taken", map[string]string{"name": "N", "email": "taken@pec.edu", "password": testPassword, "role": "student", "department": "Civil"}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/session/signup", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if user := f.app().User(); user != nil {
				t.Fatalf("expected no user after failed signup, got %+v", user)
			}
		})
	}
}

func TestSessionLogoutClearsUserAndRefreshCookie(t *testing.T) {
	f := newAPIFixture(t)
	f.account("lead@pec.edu", identity.Metadata{Name: "Lee", Role: profiles.RoleLead, ClubID: "c1"})
	f.login("lead@pec.edu")
	f.do(http.MethodPost, "/api/navigate", map[string]string{"view": "my-club"})

	rec := f.do(http.MethodDelete, "/api/session", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if _, ok := f.cookies[refreshCookieName]; ok {
		t.Fatal("expected refresh cookie to be cleared")
	}
	state := f.app().Snapshot()
	if state.User != nil || state.View != portal.ViewHome {
		t.Fatalf("expected signed-out home state, got %+v", state)
	}
}

func TestSessionRestoresFromRefreshCookie(t *testing.T) {
	f := newAPIFixture(t)
	f.account("faculty@pec.edu", identity.Metadata{Name: "Dr Rao", Role: profiles.RoleFaculty})
	f.login("faculty@pec.edu")

	// A new browser session that only kept the refresh cookie.
	delete(f.cookies, clientCookieName)
	rec := f.do(http.MethodGet, "/api/session", nil)

	state := decodeBody[portal.State](t, rec)
	if state.User == nil || state.User.Name != "Dr Rao" {
		t.Fatalf("expected restored faculty user, got %+v", state.User)
	}
	if f.registry.Len() != 2 {
		t.Fatalf("expected a second client, got %d", f.registry.Len())
	}
}

func TestClientIPFromRequestRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:12345"

	ip := clientIPFromRequest(req)
	if ip != "192.0.2.1" {
		t.Fatalf("expected 192.0.2.1, got %s", ip)
	}
}

func TestClientIPFromRequestNoPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1"

	ip := clientIPFromRequest(req)
	if ip != "192.0.2.1" {
		t.Fatalf("expected 192.0.2.1, got %s", ip)
	}
}
