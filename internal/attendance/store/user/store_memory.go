package user

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"nfcattend/internal/attendance/models"
	"nfcattend/pkg/platform/sentinel"
)

// InMemoryStore keeps users in a map guarded by a RWMutex.
type InMemoryStore struct {
	mu    sync.RWMutex
	users map[string]*models.User
	byTag map[string]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users: make(map[string]*models.User),
		byTag: make(map[string]string),
	}
}

func (s *InMemoryStore) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[u.ID]; exists {
		return sentinel.ErrConflict
	}
	if u.TagID != "" {
		if _, taken := s.byTag[u.TagID]; taken {
			return sentinel.ErrConflict
		}
		s.byTag[u.TagID] = u.ID
	}
	s.users[u.ID] = cloneUser(u)
	return nil
}

func (s *InMemoryStore) ResolveByTag(_ context.Context, tagID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byTag[tagID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s *InMemoryStore) FindByID(_ context.Context, userID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *InMemoryStore) MarkCheckedIn(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	at = at.UTC()
	u.LastCheckInAt = &at
	if u.Status != models.UserStatusInactive {
		u.Status = models.UserStatusPresent
	}
	return nil
}

func (s *InMemoryStore) SetStatus(_ context.Context, userID string, status models.UserStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("set user status %q: %w", status, sentinel.ErrInvalidState)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	u.Status = status
	return nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Ping always succeeds.
func (s *InMemoryStore) Ping(context.Context) error {
	return nil
}

func cloneUser(u *models.User) *models.User {
	c := *u
	if u.LastCheckInAt != nil {
		t := *u.LastCheckInAt
		c.LastCheckInAt = &t
	}
	return &c
}
