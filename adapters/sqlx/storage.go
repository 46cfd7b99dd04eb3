package sqlx

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"questboard/core"
)

// Driver names a supported database/sql driver.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// Config holds SQL connection configuration.
type Config struct {
	Driver          Driver        `json:"driver" env:"DRIVER"`
	DSN             string        `json:"dsn" env:"DSN"`
	MaxOpenConns    int           `json:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `json:"auto_migrate" env:"AUTO_MIGRATE"`
}

// DefaultConfig returns pool defaults for driver. DSN is left empty.
func DefaultConfig(driver Driver) Config {
	return Config{
		Driver:          driver,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		AutoMigrate:     true,
	}
}

// Store implements engine.Storage on postgres or mysql.
// Users and tasks are stored as JSON documents next to the columns
// needed for lookups:
// - users(id, username UNIQUE, doc, created_at, updated_at)
// - tasks(id, owner_id, doc, created_at, updated_at)
type Store struct {
	db     *sqlx.DB
	driver Driver
}

// New opens and pings the database, running AutoMigrate when configured.
func New(cfg Config) (*Store, error) {
	if cfg.Driver != DriverPostgres && cfg.Driver != DriverMySQL {
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, errors.New("sql dsn is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := sqlx.ConnectContext(ctx, string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	s := NewWithDB(db, cfg.Driver)
	if cfg.AutoMigrate {
		if err := s.AutoMigrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewWithDB wraps an existing handle (useful for testing).
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) Close() error { return s.db.Close() }

// AutoMigrate creates the tables when missing.
func (s *Store) AutoMigrate(ctx context.Context) error {
	for _, stmt := range schema(s.driver) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func schema(d Driver) []string {
	if d == DriverMySQL {
		return []string{
			`CREATE TABLE IF NOT EXISTS users (
				id VARCHAR(64) PRIMARY KEY,
				username VARCHAR(64) NOT NULL UNIQUE,
				doc LONGTEXT NOT NULL,
				created_at DATETIME(6) NOT NULL,
				updated_at DATETIME(6) NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS tasks (
				id VARCHAR(64) PRIMARY KEY,
				owner_id VARCHAR(64) NOT NULL,
				doc LONGTEXT NOT NULL,
				created_at DATETIME(6) NOT NULL,
				updated_at DATETIME(6) NOT NULL,
				INDEX idx_tasks_owner (owner_id)
			)`,
		}
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			doc TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			doc TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks (owner_id)`,
	}
}

// isUniqueViolation recognises duplicate-key errors from either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return false
}

func (s *Store) q(query string) string { return s.db.Rebind(query) }

func (s *Store) CreateUser(ctx context.Context, u core.User) error {
	doc, err := json.Marshal(u)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		s.q(`INSERT INTO users (id, username, doc, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`),
		string(u.ID), u.Username, string(doc), u.CreatedAt.UTC(), u.UpdatedAt.UTC())
	if isUniqueViolation(err) {
		return core.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id core.UserID) (core.User, error) {
	return s.getUser(ctx, s.q(`SELECT doc FROM users WHERE id = ?`), string(id))
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	return s.getUser(ctx, s.q(`SELECT doc FROM users WHERE username = ?`), username)
}

func (s *Store) getUser(ctx context.Context, query string, arg any) (core.User, error) {
	var doc string
	err := s.db.GetContext(ctx, &doc, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("select user: %w", err)
	}
	var u core.User
	if err := json.Unmarshal([]byte(doc), &u); err != nil {
		return core.User{}, fmt.Errorf("decode user: %w", err)
	}
	return u, nil
}

// SaveUser rewrites an existing user's document, keeping the stored username.
func (s *Store) SaveUser(ctx context.Context, u core.User) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var username string
		err := tx.GetContext(ctx, &username, s.q(`SELECT username FROM users WHERE id = ?`), string(u.ID))
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("select user: %w", err)
		}
		u.Username = username
		doc, err := json.Marshal(u)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE users SET doc = ?, updated_at = ? WHERE id = ?`),
			string(doc), u.UpdatedAt.UTC(), string(u.ID)); err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		return nil
	})
}

func (s *Store) ListUsers(ctx context.Context) ([]core.User, error) {
	var docs []string
	if err := s.db.SelectContext(ctx, &docs, `SELECT doc FROM users ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	out := make([]core.User, 0, len(docs))
	for _, doc := range docs {
		var u core.User
		if err := json.Unmarshal([]byte(doc), &u); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *Store) CreateTask(ctx context.Context, t core.Task) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		s.q(`INSERT INTO tasks (id, owner_id, doc, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`),
		t.ID, string(t.OwnerID), string(doc), t.CreatedAt.UTC(), t.UpdatedAt.UTC())
	if isUniqueViolation(err) {
		return core.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, id string) (core.Task, error) {
	var doc string
	err := s.db.GetContext(ctx, &doc, s.q(`SELECT doc FROM tasks WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Task{}, core.ErrNotFound
	}
	if err != nil {
		return core.Task{}, fmt.Errorf("select task: %w", err)
	}
	var t core.Task
	if err := json.Unmarshal([]byte(doc), &t); err != nil {
		return core.Task{}, fmt.Errorf("decode task: %w", err)
	}
	return t, nil
}

func (s *Store) ListTasks(ctx context.Context, owner core.UserID) ([]core.Task, error) {
	var docs []string
	if err := s.db.SelectContext(ctx, &docs, s.q(`SELECT doc FROM tasks WHERE owner_id = ? ORDER BY created_at`), string(owner)); err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	out := make([]core.Task, 0, len(docs))
	for _, doc := range docs {
		var t core.Task
		if err := json.Unmarshal([]byte(doc), &t); err != nil {
			return nil, fmt.Errorf("decode task: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) SaveTask(ctx context.Context, t core.Task) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var exists bool
		if err := tx.GetContext(ctx, &exists, s.q(`SELECT EXISTS(SELECT 1 FROM tasks WHERE id = ?)`), t.ID); err != nil {
			return fmt.Errorf("select task: %w", err)
		}
		if !exists {
			return core.ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE tasks SET doc = ?, updated_at = ? WHERE id = ?`),
			string(doc), t.UpdatedAt.UTC(), t.ID); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		return nil
	})
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM tasks WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
