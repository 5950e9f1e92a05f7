package profiles

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository stores profiles in an in-process map, ideal for local development or tests.
type InMemoryRepository struct {
	mu   sync.RWMutex
	data map[string]Profile
}

// NewInMemoryRepository constructs a repository seeded with optional initial profiles.
func NewInMemoryRepository(initial []Profile) *InMemoryRepository {
	data := make(map[string]Profile, len(initial))
	for _, p := range initial {
		data[p.ID] = p
	}
	return &InMemoryRepository{data: data}
}

// FindByID returns the profile with the given id.
func (r *InMemoryRepository) FindByID(_ context.Context, id string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.data[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

// Create stores a profile, replacing none: an existing id is left untouched.
func (r *InMemoryRepository) Create(_ context.Context, profile Profile) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.data[profile.ID]; ok {
		return existing, nil
	}
	r.data[profile.ID] = profile
	return profile, nil
}

// List returns profiles matching opts ordered by name.
func (r *InMemoryRepository) List(_ context.Context, opts ListOptions) ([]Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Profile, 0, len(r.data))
	for _, p := range r.data {
		if opts.Matches(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CountByClub counts profiles affiliated with clubID.
func (r *InMemoryRepository) CountByClub(_ context.Context, clubID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, p := range r.data {
		if p.ClubID != nil && *p.ClubID == clubID {
			n++
		}
	}
	return n, nil
}
