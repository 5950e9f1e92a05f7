package portal

import (
	"context"
	"encoding/json"
	"testing"

	"pecportal/internal/clubs"
	"pecportal/internal/events"
	"pecportal/internal/notices"
)

func payload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestRemoteWriterAppliesEachKind(t *testing.T) {
	ctx := context.Background()
	n := notices.NewInMemoryRepository(nil)
	e := events.NewInMemoryRepository(nil)
	c := clubs.NewInMemoryRepository(testClubs, nil)
	w := NewRemoteWriter(n, e, c)

	writes := []PendingWrite{
		{Kind: KindNotice, Payload: payload(t, notices.Notice{ID: "n1", Title: "Library Closed"})},
		{Kind: KindEvent, Payload: payload(t, events.Event{ID: "e1", Title: "Hack Night"})},
		{Kind: KindClubMember, Payload: payload(t, clubs.Member{ID: "m1", ClubID: "c1", Name: "Sara"})},
		{Kind: KindClubDescription, Payload: payload(t, clubFieldPatch{ClubID: "c1", Value: "New description"})},
		{Kind: KindClubMentor, Payload: payload(t, clubFieldPatch{ClubID: "c2", Value: "Dr. Rao"})},
	}
	for _, pw := range writes {
		if err := w.Apply(ctx, pw); err != nil {
			t.Fatalf("Apply %s: %v", pw.Kind, err)
		}
	}
	// Replaying an insert must not duplicate it.
	if err := w.Apply(ctx, writes[0]); err != nil {
		t.Fatalf("replay: %v", err)
	}

	if list, _ := n.List(ctx); len(list) != 1 {
		t.Fatalf("expected one notice, got %d", len(list))
	}
	if list, _ := e.List(ctx); len(list) != 1 {
		t.Fatalf("expected one event, got %d", len(list))
	}
	if roster, _ := c.Members(ctx, "c1"); len(roster) != 1 || roster[0].Name != "Sara" {
		t.Fatalf("unexpected roster %+v", roster)
	}
	c1, _ := c.Get(ctx, "c1")
	if c1.Description != "New description" {
		t.Fatalf("unexpected description %q", c1.Description)
	}
	c2, _ := c.Get(ctx, "c2")
	if c2.Mentor == nil || *c2.Mentor != "Dr. Rao" {
		t.Fatalf("unexpected mentor %v", c2.Mentor)
	}
}

func TestRemoteWriterRejectsUnknownKind(t *testing.T) {
	w := NewRemoteWriter(nil, nil, nil)
	if err := w.Apply(context.Background(), PendingWrite{Kind: "poll"}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if err := w.Apply(context.Background(), PendingWrite{Kind: KindNotice, Payload: json.RawMessage(`{`)}); err == nil {
		t.Fatal("expected decode error")
	}
}
