package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"questboard/core"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string        `json:"addr" env:"ADDR"`
	Password     string        `json:"password,omitempty" env:"PASSWORD"`
	DB           int           `json:"db" env:"DB"`
	PoolSize     int           `json:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int           `json:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `json:"dial_timeout" env:"DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" env:"WRITE_TIMEOUT"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Store implements engine.Storage on Redis.
// Data structure:
// - qb:user:{id} -> JSON user document
// - qb:username:{name} -> user id
// - qb:users -> set of user ids
// - qb:task:{id} -> JSON task document
// - qb:user:{id}:tasks -> set of task ids owned by the user
type Store struct {
	client *redis.Client
}

// New creates a new Redis-backed storage with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

const usersKey = "qb:users"

func userKey(id core.UserID) string      { return fmt.Sprintf("qb:user:%s", id) }
func usernameKey(name string) string     { return fmt.Sprintf("qb:username:%s", name) }
func taskKey(id string) string           { return fmt.Sprintf("qb:task:%s", id) }
func userTasksKey(id core.UserID) string { return fmt.Sprintf("qb:user:%s:tasks", id) }

// createUserScript claims the username and writes the document in one step.
var createUserScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 1 or redis.call('EXISTS', KEYS[2]) == 1 then
		return 0
	end
	redis.call('SET', KEYS[1], ARGV[1])
	redis.call('SET', KEYS[2], ARGV[2])
	redis.call('SADD', KEYS[3], ARGV[1])
	return 1
`)

// replaceScript overwrites KEYS[1] only if it already exists.
var replaceScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return 0
	end
	redis.call('SET', KEYS[1], ARGV[1])
	return 1
`)

// createTaskScript writes a new task and indexes it under its owner.
var createTaskScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 1 then
		return 0
	end
	redis.call('SET', KEYS[1], ARGV[1])
	redis.call('SADD', KEYS[2], ARGV[2])
	return 1
`)

func runFlag(ctx context.Context, s *Store, script *redis.Script, keys []string, args ...any) (bool, error) {
	n, err := script.Run(ctx, s.client, keys, args...).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) CreateUser(ctx context.Context, u core.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	ok, err := runFlag(ctx, s, createUserScript,
		[]string{usernameKey(u.Username), userKey(u.ID), usersKey}, string(u.ID), data)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	if !ok {
		return core.ErrConflict
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id core.UserID) (core.User, error) {
	var u core.User
	if err := s.getJSON(ctx, userKey(id), &u); err != nil {
		return core.User{}, err
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	id, err := s.client.Get(ctx, usernameKey(username)).Result()
	if errors.Is(err, redis.Nil) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("failed to resolve username: %w", err)
	}
	return s.GetUser(ctx, core.UserID(id))
}

// SaveUser replaces an existing document. The username index is not
// touched, so a changed Username field is ignored.
func (s *Store) SaveUser(ctx context.Context, u core.User) error {
	prev, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return err
	}
	u.Username = prev.Username
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	ok, err := runFlag(ctx, s, replaceScript, []string{userKey(u.ID)}, data)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	if !ok {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]core.User, error) {
	ids, err := s.client.SMembers(ctx, usersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = userKey(core.UserID(id))
	}
	out := []core.User{}
	err = s.mgetJSON(ctx, keys, func(b []byte) error {
		var u core.User
		if err := json.Unmarshal(b, &u); err != nil {
			return err
		}
		out = append(out, u)
		return nil
	})
	return out, err
}

func (s *Store) CreateTask(ctx context.Context, t core.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	ok, err := runFlag(ctx, s, createTaskScript, []string{taskKey(t.ID), userTasksKey(t.OwnerID)}, data, t.ID)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	if !ok {
		return core.ErrConflict
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, id string) (core.Task, error) {
	var t core.Task
	if err := s.getJSON(ctx, taskKey(id), &t); err != nil {
		return core.Task{}, err
	}
	return t, nil
}

func (s *Store) ListTasks(ctx context.Context, owner core.UserID) ([]core.Task, error) {
	ids, err := s.client.SMembers(ctx, userTasksKey(owner)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = taskKey(id)
	}
	out := []core.Task{}
	err = s.mgetJSON(ctx, keys, func(b []byte) error {
		var t core.Task
		if err := json.Unmarshal(b, &t); err != nil {
			return err
		}
		out = append(out, t)
		return nil
	})
	return out, err
}

func (s *Store) SaveTask(ctx context.Context, t core.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	ok, err := runFlag(ctx, s, replaceScript, []string{taskKey(t.ID)}, data)
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	if !ok {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, taskKey(id))
		pipe.SRem(ctx, userTasksKey(t.OwnerID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

func (s *Store) getJSON(ctx context.Context, key string, dst any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// mgetJSON fetches keys in one round trip. Missing keys, left behind by an
// index that raced a delete, are skipped.
func (s *Store) mgetJSON(ctx context.Context, keys []string, each func([]byte) error) error {
	if len(keys) == 0 {
		return nil
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("failed to fetch documents: %w", err)
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		if err := each([]byte(str)); err != nil {
			return fmt.Errorf("failed to decode %s: %w", keys[i], err)
		}
	}
	return nil
}
