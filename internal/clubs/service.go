package clubs

import (
	"context"
	"fmt"
)

// Service reads clubs and fills in their derived member counts.
type Service struct {
	repo    Repository
	counter MemberCounter
}

// NewService constructs a Service. A nil counter leaves MemberCount at zero.
func NewService(repo Repository, counter MemberCounter) *Service {
	return &Service{repo: repo, counter: counter}
}

// Repository exposes the underlying store for writes.
func (s *Service) Repository() Repository {
	return s.repo
}

// List returns every club with its member count.
func (s *Service) List(ctx context.Context) ([]Club, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if err := s.fillCount(ctx, &list[i]); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// Get returns one club with its member count.
func (s *Service) Get(ctx context.Context, id string) (Club, error) {
	club, err := s.repo.Get(ctx, id)
	if err != nil {
		return Club{}, err
	}
	if err := s.fillCount(ctx, &club); err != nil {
		return Club{}, err
	}
	return club, nil
}

func (s *Service) fillCount(ctx context.Context, club *Club) error {
	if s.counter == nil {
		return nil
	}
	n, err := s.counter.CountByClub(ctx, club.ID)
	if err != nil {
		return fmt.Errorf("count members of %s: %w", club.ID, err)
	}
	club.MemberCount = n
	return nil
}
