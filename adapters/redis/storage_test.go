package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questboard/core"
)

// newTestClient spins up a miniredis server and returns a client plus cleanup.
func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cleanup := func() {
		_ = client.Close()
		mr.Close()
	}
	return client, mr, cleanup
}

func testUser(id core.UserID, name string) core.User {
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	return core.User{ID: id, Username: name, CreatedAt: now, UpdatedAt: now, RPG: core.CreateInitial()}
}

func TestStore_CreateAndGetUser(t *testing.T) {
	client, _, cleanup := newTestClient(t)
	defer cleanup()
	store := NewWithClient(client)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, testUser("u1", "alice")))
	err := store.CreateUser(ctx, testUser("u2", "alice"))
	assert.ErrorIs(t, err, core.ErrConflict)

	got, err := store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, core.UserID("u1"), got.ID)
	assert.Equal(t, 1, got.RPG.Level)

	_, err = store.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = store.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStore_SaveUser(t *testing.T) {
	client, _, cleanup := newTestClient(t)
	defer cleanup()
	store := NewWithClient(client)
	ctx := context.Background()

	u := testUser("u1", "alice")
	require.NoError(t, store.CreateUser(ctx, u))
	u.RPG.XP = 240
	u.Username = "mallory"
	require.NoError(t, store.SaveUser(ctx, u))

	got, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(240), got.RPG.XP)
	assert.Equal(t, "alice", got.Username)

	assert.ErrorIs(t, store.SaveUser(ctx, testUser("ghost", "ghost")), core.ErrNotFound)

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestStore_Tasks(t *testing.T) {
	client, _, cleanup := newTestClient(t)
	defer cleanup()
	store := NewWithClient(client)
	ctx := context.Background()

	task := core.Task{ID: "t1", OwnerID: "u1", Title: "plan", Status: core.StatusTodo, Priority: core.PriorityLow, TaskLevel: 2}
	require.NoError(t, store.CreateTask(ctx, task))
	assert.ErrorIs(t, store.CreateTask(ctx, task), core.ErrConflict)
	require.NoError(t, store.CreateTask(ctx, core.Task{ID: "t2", OwnerID: "u2", Title: "other"}))

	task.Status = core.StatusDone
	require.NoError(t, store.SaveTask(ctx, task))
	got, err := store.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusDone, got.Status)

	list, err := store.ListTasks(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "plan", list[0].Title)

	require.NoError(t, store.DeleteTask(ctx, "t1"))
	list, err = store.ListTasks(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.ErrorIs(t, store.DeleteTask(ctx, "t1"), core.ErrNotFound)
	assert.ErrorIs(t, store.SaveTask(ctx, task), core.ErrNotFound)
}

func TestStore_LegacyDocumentRepaired(t *testing.T) {
	client, mr, cleanup := newTestClient(t)
	defer cleanup()
	store := NewWithClient(client)
	ctx := context.Background()

	require.NoError(t, mr.Set(userKey("old"), `{"id":"old","username":"old","rpg":"corrupt"}`))
	got, err := store.GetUser(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, 1, got.RPG.Level)
	assert.Equal(t, float64(100), got.RPG.HP)
	assert.NotNil(t, got.RPG.XPLog)
}

func TestStore_ListSkipsDanglingIndex(t *testing.T) {
	client, _, cleanup := newTestClient(t)
	defer cleanup()
	store := NewWithClient(client)
	ctx := context.Background()

	require.NoError(t, client.SAdd(ctx, userTasksKey("u1"), "gone").Err())
	list, err := store.ListTasks(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestConfig_DefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "localhost:6379", config.Addr)
	assert.Equal(t, "", config.Password)
	assert.Equal(t, 0, config.DB)
	assert.Equal(t, 10, config.PoolSize)
	assert.Equal(t, 2, config.MinIdleConns)
	assert.Equal(t, 5*time.Second, config.DialTimeout)
	assert.Equal(t, 3*time.Second, config.ReadTimeout)
	assert.Equal(t, 3*time.Second, config.WriteTimeout)
}
