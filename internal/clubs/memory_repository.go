package clubs

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository keeps clubs and rosters in process memory.
type InMemoryRepository struct {
	mu      sync.RWMutex
	clubs   map[string]Club
	members map[string][]Member
}

// NewInMemoryRepository constructs a repository seeded with clubs and roster entries.
func NewInMemoryRepository(initial []Club, roster []Member) *InMemoryRepository {
	r := &InMemoryRepository{
		clubs:   make(map[string]Club, len(initial)),
		members: make(map[string][]Member),
	}
	for _, c := range initial {
		r.clubs[c.ID] = c
	}
	for _, m := range roster {
		r.members[m.ClubID] = append(r.members[m.ClubID], m)
	}
	return r
}

// List returns clubs ordered by id.
func (r *InMemoryRepository) List(_ context.Context) ([]Club, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Club, 0, len(r.clubs))
	for _, c := range r.clubs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get returns a club by id.
func (r *InMemoryRepository) Get(_ context.Context, id string) (Club, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clubs[id]
	if !ok {
		return Club{}, ErrNotFound
	}
	return c, nil
}

// UpdateDescription replaces a club's description.
func (r *InMemoryRepository) UpdateDescription(_ context.Context, id, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clubs[id]
	if !ok {
		return ErrNotFound
	}
	c.Description = description
	r.clubs[id] = c
	return nil
}

// SetMentor records the faculty mentor of a club.
func (r *InMemoryRepository) SetMentor(_ context.Context, id, mentor string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clubs[id]
	if !ok {
		return ErrNotFound
	}
	c.Mentor = &mentor
	r.clubs[id] = c
	return nil
}

// AddMember appends a roster entry unless its id is already present.
func (r *InMemoryRepository) AddMember(_ context.Context, member Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clubs[member.ClubID]; !ok {
		return ErrNotFound
	}
	for _, existing := range r.members[member.ClubID] {
		if existing.ID == member.ID {
			return nil
		}
	}
	member.SyncState = ""
	r.members[member.ClubID] = append(r.members[member.ClubID], member)
	return nil
}

// Members returns a copy of a club's roster.
func (r *InMemoryRepository) Members(_ context.Context, clubID string) ([]Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Member, len(r.members[clubID]))
	copy(out, r.members[clubID])
	return out, nil
}
