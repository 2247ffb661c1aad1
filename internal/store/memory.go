package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/ender-accounts/internal/models"
)

// MemoryStore keeps users in process memory. It backs local development and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*memoryUser
}

type memoryUser struct {
	user      models.User
	followers map[uuid.UUID]struct{}
	following map[uuid.UUID]struct{}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[uuid.UUID]*memoryUser)}
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u.snapshot(), nil
}

func (s *MemoryStore) GetByUsername(_ context.Context, username string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.user.Username == username {
			return u.snapshot(), nil
		}
	}
	return models.User{}, ErrNotFound
}

func (s *MemoryStore) SearchByUsername(_ context.Context, fragment string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var users []models.User
	for _, u := range s.users {
		if strings.Contains(u.user.Username, fragment) {
			users = append(users, u.snapshot())
		}
	}
	sortByUsername(users)
	return users, nil
}

func (s *MemoryStore) AddToSet(_ context.Context, id uuid.UUID, field Field, member uuid.UUID) error {
	if err := field.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.set(field)[member] = struct{}{}
	return nil
}

func (s *MemoryStore) RemoveFromSet(_ context.Context, id uuid.UUID, field Field, member uuid.UUID) error {
	if err := field.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	delete(u.set(field), member)
	return nil
}

func (s *MemoryStore) GetByIDs(_ context.Context, ids []uuid.UUID) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if u, ok := s.users[id]; ok {
			users = append(users, u.snapshot())
		}
	}
	sortByUsername(users)
	return users, nil
}

func (s *MemoryStore) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.user.Username == user.Username {
			return ErrConflict
		}
	}
	if _, exists := s.users[user.ID]; exists {
		return ErrConflict
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	mu := &memoryUser{
		user:      user,
		followers: make(map[uuid.UUID]struct{}),
		following: make(map[uuid.UUID]struct{}),
	}
	for _, id := range user.Followers {
		mu.followers[id] = struct{}{}
	}
	for _, id := range user.Following {
		mu.following[id] = struct{}{}
	}
	mu.user.Followers, mu.user.Following = nil, nil
	s.users[user.ID] = mu
	return nil
}

func (s *MemoryStore) ListIDs(_ context.Context) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemoryStore) Close() error { return nil }

func (u *memoryUser) set(field Field) map[uuid.UUID]struct{} {
	if field == FieldFollowers {
		return u.followers
	}
	return u.following
}

// snapshot copies the record so callers never share the store's maps.
func (u *memoryUser) snapshot() models.User {
	out := u.user
	out.Followers = keys(u.followers)
	out.Following = keys(u.following)
	return out
}

func keys(set map[uuid.UUID]struct{}) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

func sortByUsername(users []models.User) {
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
}
