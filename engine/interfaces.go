package engine

import (
	"context"

	"questboard/core"
)

// UserStore persists accounts and their progression records.
// Lookups of unknown ids return core.ErrNotFound; CreateUser returns
// core.ErrConflict when the username is taken.
type UserStore interface {
	CreateUser(ctx context.Context, u core.User) error
	GetUser(ctx context.Context, id core.UserID) (core.User, error)
	GetUserByUsername(ctx context.Context, username string) (core.User, error)
	SaveUser(ctx context.Context, u core.User) error
	ListUsers(ctx context.Context) ([]core.User, error)
}

// TaskStore persists tasks with their embedded subtasks.
type TaskStore interface {
	CreateTask(ctx context.Context, t core.Task) error
	GetTask(ctx context.Context, id string) (core.Task, error)
	ListTasks(ctx context.Context, owner core.UserID) ([]core.Task, error)
	SaveTask(ctx context.Context, t core.Task) error
	DeleteTask(ctx context.Context, id string) error
}

// Storage abstracts persistence for users and tasks.
type Storage interface {
	UserStore
	TaskStore
}

// RuleEngine evaluates rules and emits derived events.
type RuleEngine interface {
	Evaluate(ctx context.Context, state core.PlayerRPG, trigger core.Event) []core.Event
}
