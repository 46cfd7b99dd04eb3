package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"questboard/core"
)

const (
	usersFile = "users.json"
	tasksFile = "tasks.json"
)

// Store keeps users and tasks in two JSON files under one directory.
// Every mutation rewrites the affected file through a temp file + rename.
// Suitable for demos and small deployments.
type Store struct {
	dir string
	mu  sync.Mutex
	// in-memory cache for speed
	users map[core.UserID]core.User
	tasks map[string]core.Task
}

func New(dir string) (*Store, error) {
	s := &Store{dir: dir, users: map[core.UserID]core.User{}, tasks: map[string]core.Task{}}
	if err := load(filepath.Join(dir, usersFile), &s.users); err != nil {
		return nil, err
	}
	if err := load(filepath.Join(dir, tasksFile), &s.tasks); err != nil {
		return nil, err
	}
	return s, nil
}

// load decodes path into dst. A missing or empty file leaves dst empty.
func load[K comparable, V any](path string, dst *map[K]V) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(b) == 0) {
		return nil
	}
	if err != nil {
		return err
	}
	raw := map[K]V{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	*dst = raw
	return nil
}

func (s *Store) persist(name string, v any) error {
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Store) byUsername(name string) (core.User, bool) {
	for _, u := range s.users {
		if u.Username == name {
			return u, true
		}
	}
	return core.User{}, false
}

func (s *Store) CreateUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byUsername(u.Username); taken {
		return core.ErrConflict
	}
	if _, exists := s.users[u.ID]; exists {
		return core.ErrConflict
	}
	s.users[u.ID] = u.Clone()
	if err := s.persist(usersFile, s.users); err != nil {
		delete(s.users, u.ID)
		return err
	}
	return nil
}

func (s *Store) GetUser(_ context.Context, id core.UserID) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return u.Clone(), nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byUsername(username)
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return u.Clone(), nil
}

func (s *Store) SaveUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.users[u.ID]
	if !ok {
		return core.ErrNotFound
	}
	u.Username = prev.Username
	s.users[u.ID] = u.Clone()
	if err := s.persist(usersFile, s.users); err != nil {
		s.users[u.ID] = prev
		return err
	}
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
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
	if err := s.persist(tasksFile, s.tasks); err != nil {
		delete(s.tasks, t.ID)
		return err
	}
	return nil
}

func (s *Store) GetTask(_ context.Context, id string) (core.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return core.Task{}, core.ErrNotFound
	}
	return t.Clone(), nil
}

func (s *Store) ListTasks(_ context.Context, owner core.UserID) ([]core.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
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
	prev, ok := s.tasks[t.ID]
	if !ok {
		return core.ErrNotFound
	}
	s.tasks[t.ID] = t.Clone()
	if err := s.persist(tasksFile, s.tasks); err != nil {
		s.tasks[t.ID] = prev
		return err
	}
	return nil
}

func (s *Store) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.tasks[id]
	if !ok {
		return core.ErrNotFound
	}
	delete(s.tasks, id)
	if err := s.persist(tasksFile, s.tasks); err != nil {
		s.tasks[id] = prev
		return err
	}
	return nil
}
