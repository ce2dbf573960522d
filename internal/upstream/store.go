package upstream

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/eion/userdesk/internal/users"
)

// MemoryStore keeps the collection in process, in insertion order.
type MemoryStore struct {
	mu     sync.RWMutex
	users  []users.User
	nextID int
	now    func() time.Time
}

// NewMemoryStore creates a store holding a copy of seed.
func NewMemoryStore(seed []users.User) *MemoryStore {
	s := &MemoryStore{
		users:  slices.Clone(seed),
		nextID: 1,
		now:    time.Now,
	}
	for _, u := range seed {
		if u.ID >= s.nextID {
			s.nextID = u.ID + 1
		}
	}
	return s
}

func (s *MemoryStore) ListUsers(ctx context.Context) ([]users.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.users), nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id int) (users.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return users.User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return s.users[i], nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, req NewUserRequest) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := req.ID
	if id <= 0 || s.indexOf(id) >= 0 {
		id = s.nextID
	}
	if id >= s.nextID {
		s.nextID = id + 1
	}

	user := newUser(id, req, s.now().UTC())
	s.users = append(s.users, user)
	return user, nil
}

func (s *MemoryStore) UpdateUser(ctx context.Context, id int, update users.UserUpdate) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return users.User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	s.users[i] = applyUpdate(s.users[i], update)
	return s.users[i], nil
}

func (s *MemoryStore) DeleteUser(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	s.users = slices.Delete(s.users, i, i+1)
	return nil
}

func (s *MemoryStore) indexOf(id int) int {
	return slices.IndexFunc(s.users, func(u users.User) bool { return u.ID == id })
}
