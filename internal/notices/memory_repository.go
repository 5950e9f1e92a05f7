package notices

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository keeps notices in process memory.
type InMemoryRepository struct {
	mu   sync.RWMutex
	data map[string]Notice
}

// NewInMemoryRepository constructs a repository seeded with optional initial notices.
func NewInMemoryRepository(initial []Notice) *InMemoryRepository {
	data := make(map[string]Notice, len(initial))
	for _, n := range initial {
		data[n.ID] = n
	}
	return &InMemoryRepository{data: data}
}

// Insert stores a notice unless its id is already present.
func (r *InMemoryRepository) Insert(_ context.Context, notice Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data[notice.ID]; ok {
		return nil
	}
	notice.SyncState = ""
	r.data[notice.ID] = notice
	return nil
}

// List returns notices ordered by creation time, newest first.
func (r *InMemoryRepository) List(_ context.Context) ([]Notice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Notice, 0, len(r.data))
	for _, n := range r.data {
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
