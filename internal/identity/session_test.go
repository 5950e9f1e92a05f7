package identity

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestSubscriptionReceivesEventsUntilUnsubscribed(t *testing.T) {
	var h Hub
	sub := h.Subscribe()

	h.Publish(Event{Kind: EventSignedOut})
	select {
	case ev := <-sub.C:
		if ev.Kind != EventSignedOut {
			t.Fatalf("unexpected event %q", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("expected event to be delivered")
	}

	sub.Unsubscribe()
	sub.Unsubscribe()
	if _, ok := <-sub.C; ok {
		t.Fatal("expected channel to be closed after Unsubscribe")
	}

	h.Publish(Event{Kind: EventSignedIn})
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	h := Hub{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	sub := h.Subscribe()
	defer sub.Unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriptionBuffer*2; i++ {
			h.Publish(Event{Kind: EventTokenRefreshed})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestSignOutReachesFullSubscriber(t *testing.T) {
	var logs bytes.Buffer
	h := Hub{Logger: slog.New(slog.NewTextHandler(&logs, nil))}
	sub := h.Subscribe()
	defer sub.Unsubscribe()

	for i := 0; i < subscriptionBuffer; i++ {
		h.Publish(Event{Kind: EventTokenRefreshed})
	}
	h.Publish(Event{Kind: EventSignedOut})

	var last Event
	for i := 0; i < subscriptionBuffer; i++ {
		last = <-sub.C
	}
	if last.Kind != EventSignedOut {
		t.Fatalf("expected sign out to be delivered last, got %q", last.Kind)
	}
	if !strings.Contains(logs.String(), "event=TOKEN_REFRESHED") {
		t.Fatalf("expected the displaced event to be logged, got %q", logs.String())
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	if (&Session{}).Expired(now) {
		t.Fatal("session without expiry should not expire")
	}
	if !(&Session{ExpiresAt: now.Add(10 * time.Second)}).Expired(now) {
		t.Fatal("session inside the expiry margin should be refreshed")
	}
	if (&Session{ExpiresAt: now.Add(time.Hour)}).Expired(now) {
		t.Fatal("fresh session should not be expired")
	}
}
