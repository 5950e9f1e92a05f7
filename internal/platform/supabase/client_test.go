package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSelectBuildsPostgrestQuery(t *testing.T) {
	var gotQuery, gotAuth, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/profiles" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("apikey")
		_, _ = w.Write([]byte(`[{"id":"u1","club_id":"c1"}]`))
	}))
	defer srv.Close()

	client := New(srv.URL, "anon", WithHTTPClient(srv.Client()))
	ctx := WithAccessToken(context.Background(), "user-token")

	var rows []struct {
		ID     string `json:"id"`
		ClubID string `json:"club_id"`
	}
	err := client.Select(ctx, "profiles", Query{
		Filters:    []Filter{Eq("id", "u1")},
		OrderBy:    "created_at",
		Descending: true,
		Limit:      1,
	}, &rows)
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if len(rows) != 1 || rows[0].ClubID != "c1" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if gotQuery != "id=eq.u1&limit=1&order=created_at.desc&select=%2A" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if gotAuth != "Bearer user-token" || gotKey != "anon" {
		t.Fatalf("unexpected auth headers %q / %q", gotAuth, gotKey)
	}
}

func TestInsertSendsSnakeCaseBody(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Prefer") != "return=minimal,resolution=ignore-duplicates" {
			t.Errorf("unexpected request %s prefer=%q", r.Method, r.Header.Get("Prefer"))
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := New(srv.URL, "anon", WithHTTPClient(srv.Client()))
	row := struct {
		ImageURL string `json:"image_url"`
	}{ImageURL: "https://example.com/a.png"}

	if err := client.Insert(context.Background(), "events", row); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if body["image_url"] != "https://example.com/a.png" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestCountReadsContentRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead || r.URL.Query().Get("club_id") != "eq.c2" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.RawQuery)
		}
		w.Header().Set("Content-Range", "0-0/42")
		w.WriteHeader(http.StatusPartialContent)
	}))
	defer srv.Close()

	client := New(srv.URL, "anon", WithHTTPClient(srv.Client()))
	n, err := client.Count(context.Background(), "profiles", []Filter{Eq("club_id", "c2")})
	if err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	if n != 42 {
		t.Fatalf("expected 42, got %d", n)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid API key","hint":"Double check your key"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "anon", WithHTTPClient(srv.Client()))
	err := client.Insert(context.Background(), "notices", map[string]string{"title": "x"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Message != "Invalid API key" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestMissingAPIKeyFailsBeforeRequest(t *testing.T) {
	client := New("https://placeholder.supabase.co", "")
	var rows []map[string]any
	if err := client.Select(context.Background(), "clubs", Query{}, &rows); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestParseContentRangeTotal(t *testing.T) {
	if n, err := parseContentRangeTotal("*/0"); err != nil || n != 0 {
		t.Fatalf("expected 0, got %d (%v)", n, err)
	}
	if _, err := parseContentRangeTotal("0-9/*"); err == nil {
		t.Fatal("expected error for unknown total")
	}
}

func TestAnyOfBuildsOrFilter(t *testing.T) {
	f := AnyOf(ILike("name", "jane"), ILike("email", "jane"))
	values := Query{Filters: []Filter{f}}.values()
	if got := values.Get("or"); got != "(name.ilike.*jane*,email.ilike.*jane*)" {
		t.Fatalf("unexpected or filter %q", got)
	}
}

func TestAnyOfQuotesReservedValues(t *testing.T) {
	f := AnyOf(ILike("name", `kumar, r)`), ILike("email", `say "hi"`))
	values := Query{Filters: []Filter{f}}.values()
	want := `(name.ilike."*kumar, r)*",email.ilike."*say \"hi\"*")`
	if got := values.Get("or"); got != want {
		t.Fatalf("unexpected or filter %s", got)
	}
}

func TestILikeEscapesWildcards(t *testing.T) {
	values := Query{Filters: []Filter{ILike("name", `50%_\`)}}.values()
	if got := values.Get("name"); got != `ilike.*50\%\_\\*` {
		t.Fatalf("unexpected ilike filter %s", got)
	}
}
