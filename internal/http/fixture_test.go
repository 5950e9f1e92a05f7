package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"pecportal/internal/clubs"
	"pecportal/internal/config"
	"pecportal/internal/events"
	"pecportal/internal/feedback"
	"pecportal/internal/identity"
	"pecportal/internal/notices"
	"pecportal/internal/portal"
	"pecportal/internal/profiles"
)

const testPassword = "secret1"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// apiFixture runs the full router against in-memory stores and a local identity
// authority. Requests carry the cookies of one simulated browser.
type apiFixture struct {
	t         *testing.T
	authority *identity.LocalAuthority
	profiles  *profiles.InMemoryRepository
	notices   *notices.InMemoryRepository
	clubs     *clubs.InMemoryRepository
	feedback  *feedback.InMemoryRepository
	registry  *portal.Registry
	handler   http.Handler
	cookies   map[string]*http.Cookie
}

type fixtureOption func(*config.Config, *RouterDeps)

func newAPIFixture(t *testing.T, opts ...fixtureOption) *apiFixture {
	t.Helper()
	logger := discardLogger()

	profileRepo := profiles.NewInMemoryRepository([]profiles.Profile{
		{ID: "s1", Name: "Arun", Role: profiles.RoleStudent, Email: "arun@pec.edu", Department: "Computer Science"},
		{ID: "s2", Name: "Bina", Role: profiles.RoleStudent, Email: "bina@pec.edu", Department: "Mechanical Engineering"},
	})
	noticeRepo := notices.NewInMemoryRepository([]notices.Notice{
		{ID: "n1", Title: "Welcome", Content: "Semester starts", Date: "2026-08-01", Category: notices.CategoryGeneral, CreatedAt: time.Now().Add(-time.Hour)},
	})
	eventRepo := events.NewInMemoryRepository([]events.Event{
		{ID: "e1", Title: "Hack Night", Date: "2026-09-01", Location: "Lab 2", Organizer: "Mulearn", CreatedAt: time.Now().Add(-time.Hour)},
	})
	clubRepo := clubs.NewInMemoryRepository([]clubs.Club{
		{ID: "c1", Name: "Mulearn", Description: "Learning community", LogoInitial: "M", Category: "Technical"},
		{ID: "c2", Name: "IEEE", Description: "Engineering society", LogoInitial: "I", Category: "Technical"},
	}, nil)
	feedbackRepo := feedback.NewInMemoryRepository()
	clubSvc := clubs.NewService(clubRepo, profileRepo)

	tokens := identity.NewTokenIssuer([]byte("test-secret"), "pecportal", time.Hour, 24*time.Hour)
	authority := identity.NewLocalAuthority(identity.NewInMemoryAccountStore(), tokens, profileRepo, logger,
		identity.WithHashCost(bcrypt.MinCost),
		identity.WithIDTokenVerifier(fakeVerifier{}))

	writer := portal.NewRemoteWriter(noticeRepo, eventRepo, clubRepo)
	outbox := portal.NewMemoryOutbox()
	factory := func(clientID string) *portal.App {
		return portal.New(clientID, portal.Dependencies{
			Provider: identity.NewLocalProvider(authority),
			Profiles: profileRepo,
			Notices:  noticeRepo,
			Events:   eventRepo,
			Clubs:    clubSvc,
			Feedback: feedbackRepo,
			Writer:   writer,
			Outbox:   outbox,
			Logger:   logger,
		}, portal.Options{Backoff: time.Millisecond, SignupDelay: time.Millisecond})
	}
	registry := portal.NewRegistry(factory, time.Hour, logger, nil)
	t.Cleanup(registry.Close)

	cfg := config.Config{
		Environment:       "development",
		DataStore:         "memory",
		AllowedOrigins:    []string{"http://localhost:5173"},
		FrontendURL:       "http://frontend.test",
		AuthRatePerSecond: 100,
		AuthRateBurst:     100,
	}
	deps := RouterDeps{Clients: registry, Logger: logger}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}

	return &apiFixture{
		t:         t,
		authority: authority,
		profiles:  profileRepo,
		notices:   noticeRepo,
		clubs:     clubRepo,
		feedback:  feedbackRepo,
		registry:  registry,
		handler:   NewRouter(cfg, deps),
		cookies:   make(map[string]*http.Cookie),
	}
}

// fakeVerifier accepts ID tokens of the form "<sub>|<email>".
type fakeVerifier struct{}

func (fakeVerifier) VerifyIDToken(_ context.Context, raw string) (*identity.GoogleClaims, error) {
	sub, email, ok := strings.Cut(raw, "|")
	if !ok {
		return nil, identity.ErrInvalidToken
	}
	return &identity.GoogleClaims{Sub: sub, Email: email, EmailVerified: true, Name: "Google User"}, nil
}

// account registers an account whose profile exists once the call returns.
func (f *apiFixture) account(email string, md identity.Metadata) {
	f.t.Helper()
	if _, err := f.authority.SignUp(context.Background(), identity.SignUpRequest{
		Email:    email,
		Password: testPassword,
		Metadata: md,
	}); err != nil {
		f.t.Fatalf("create account %s: %v", email, err)
	}
	f.authority.Wait()
}

// login signs the fixture's browser in and fails the test on any error.
func (f *apiFixture) login(email string) {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/api/session", map[string]string{"email": email, "password": testPassword})
	if rec.Code != http.StatusOK {
		f.t.Fatalf("login %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
}

func (f *apiFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			f.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return f.send(req)
}

// upload posts content as the multipart "file" field.
func (f *apiFixture) upload(path, content string) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "roster.csv")
	if err != nil {
		f.t.Fatalf("create form file: %v", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		f.t.Fatalf("write form file: %v", err)
	}
	if err := form.Close(); err != nil {
		f.t.Fatalf("close form: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	return f.send(req)
}

func (f *apiFixture) send(req *http.Request) *httptest.ResponseRecorder {
	f.t.Helper()
	for _, c := range f.cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(f.cookies, c.Name)
			continue
		}
		f.cookies[c.Name] = c
	}
	return rec
}

// app returns the portal client bound to the fixture's browser.
func (f *apiFixture) app() *portal.App {
	f.t.Helper()
	c, ok := f.cookies[clientCookieName]
	if !ok {
		f.t.Fatal("no client cookie issued yet")
	}
	app, ok := f.registry.Lookup(c.Value)
	if !ok {
		f.t.Fatalf("client %s not registered", c.Value)
	}
	return app
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}
