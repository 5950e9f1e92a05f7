package events

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository keeps events in process memory.
type InMemoryRepository struct {
	mu   sync.RWMutex
	data map[string]Event
}

// NewInMemoryRepository constructs a repository seeded with optional initial events.
func NewInMemoryRepository(initial []Event) *InMemoryRepository {
	data := make(map[string]Event, len(initial))
	for _, e := range initial {
		data[e.ID] = e
	}
	return &InMemoryRepository{data: data}
}

// Insert stores an event unless its id is already present.
func (r *InMemoryRepository) Insert(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data[event.ID]; ok {
		return nil
	}
	event.SyncState = ""
	r.data[event.ID] = event
	return nil
}

// List returns events newest first.
func (r *InMemoryRepository) List(_ context.Context) ([]Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Event, 0, len(r.data))
	for _, e := range r.data {
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
