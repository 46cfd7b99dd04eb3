package memory

import (
	"context"
	"sync"

	"questboard/core"
)

// Store is a concurrent in-memory Storage implementation. Values are
// cloned on the way in and out so callers never share slices with it.
type Store struct {
	mu        sync.RWMutex
	users     map[core.UserID]core.User
	usernames map[string]core.UserID
	tasks     map[string]core.Task
}

func New() *Store {
	return &Store{
		users:     map[core.UserID]core.User{},
		usernames: map[string]core.UserID{},
		tasks:     map[string]core.Task{},
	}
}

func (s *Store) CreateUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.usernames[u.Username]; taken {
		return core.ErrConflict
	}
	if _, exists := s.users[u.ID]; exists {
		return core.ErrConflict
	}
	s.users[u.ID] = u.Clone()
	s.usernames[u.Username] = u.ID
	return nil
}

func (s *Store) GetUser(_ context.Context, id core.UserID) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return u.Clone(), nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usernames[username]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return s.users[id].Clone(), nil
}

// SaveUser replaces an existing user. The username is immutable.
func (s *Store) SaveUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.users[u.ID]
	if !ok {
		return core.ErrNotFound
	}
	u.Username = prev.Username
	s.users[u.ID] = u.Clone()
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Clone())
	}
	return out, nil
}

func (s *Store) CreateTask(_ context.Context, t core.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[t.ID]; exists {
		return core.ErrConflict
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

func (s *Store) GetTask(_ context.Context, id string) (core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return core.Task{}, core.ErrNotFound
	}
	return t.Clone(), nil
}

func (s *Store) ListTasks(_ context.Context, owner core.UserID) ([]core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.Task{}
	for _, t := range s.tasks {
		if t.OwnerID == owner {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (s *Store) SaveTask(_ context.Context, t core.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		return core.ErrNotFound
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

func (s *Store) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

var _ interface {
	CreateUser(context.Context, core.User) error
	GetUser(context.Context, core.UserID) (core.User, error)
	GetUserByUsername(context.Context, string) (core.User, error)
	SaveUser(context.Context, core.User) error
	ListUsers(context.Context) ([]core.User, error)
	CreateTask(context.Context, core.Task) error
	GetTask(context.Context, string) (core.Task, error)
	ListTasks(context.Context, core.UserID) ([]core.Task, error)
	SaveTask(context.Context, core.Task) error
	DeleteTask(context.Context, string) error
} = (*Store)(nil)
