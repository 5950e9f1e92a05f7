package portal

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"pecportal/internal/profiles"
)

type finderFunc func(ctx context.Context, id string) (profiles.Profile, error)

func (f finderFunc) FindByID(ctx context.Context, id string) (profiles.Profile, error) {
	return f(ctx, id)
}

func TestResolverGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	r := NewResolver(finderFunc(func(context.Context, string) (profiles.Profile, error) {
		calls.Add(1)
		return profiles.Profile{}, profiles.ErrNotFound
	}), 3, time.Millisecond, nil, discardLogger())

	_, err := r.Resolve(context.Background(), "u1", "u1@pec.edu.in")

	if !errors.Is(err, ErrProfileUnavailable) {
		t.Fatalf("expected ErrProfileUnavailable, got %v", err)
	}
	if calls.Load() != 4 {
		t.Fatalf("expected 4 lookups, got %d", calls.Load())
	}
}

func TestResolverSucceedsOnLaterAttempt(t *testing.T) {
	var calls atomic.Int32
	r := NewResolver(finderFunc(func(_ context.Context, id string) (profiles.Profile, error) {
		if calls.Add(1) < 3 {
			return profiles.Profile{}, errors.New("connection reset")
		}
		return profiles.Profile{ID: id, Name: "Jane", Role: profiles.RoleStudent}, nil
	}), 3, time.Millisecond, nil, discardLogger())

	user, err := r.Resolve(context.Background(), "u1", "jane@pec.edu.in")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if user.Email != "jane@pec.edu.in" {
		t.Fatalf("expected session email fallback, got %q", user.Email)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 lookups, got %d", calls.Load())
	}
}

func TestResolverStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	r := NewResolver(finderFunc(func(context.Context, string) (profiles.Profile, error) {
		calls.Add(1)
		cancel()
		return profiles.Profile{}, profiles.ErrNotFound
	}), 3, time.Hour, nil, discardLogger())

	_, err := r.Resolve(ctx, "u1", "")

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single lookup, got %d", calls.Load())
	}
}

func TestResolverWithoutRetries(t *testing.T) {
	var calls atomic.Int32
	r := NewResolver(finderFunc(func(context.Context, string) (profiles.Profile, error) {
		calls.Add(1)
		return profiles.Profile{}, profiles.ErrNotFound
	}), -1, time.Millisecond, nil, discardLogger())

	if _, err := r.Resolve(context.Background(), "u1", ""); !errors.Is(err, ErrProfileUnavailable) {
		t.Fatalf("expected ErrProfileUnavailable, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one lookup, got %d", calls.Load())
	}
}
