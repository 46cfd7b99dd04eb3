package sqlx_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	libsqlx "github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	storage "questboard/adapters/sqlx"
	"questboard/core"
)

func newMockStore(t *testing.T, driver storage.Driver) (*storage.Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	xdb := storage.NewWithDB(libsqlx.NewDb(db, string(driver)), driver)
	cleanup := func() {
		_ = db.Close()
	}
	return xdb, mock, cleanup
}

func userDoc(t *testing.T, u core.User) string {
	t.Helper()
	b, err := json.Marshal(u)
	require.NoError(t, err)
	return string(b)
}

func sampleUser() core.User {
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	return core.User{ID: "u1", Username: "alice", CreatedAt: now, UpdatedAt: now, RPG: core.CreateInitial()}
}

func TestSQLMock_CreateUser_Postgres(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectExec(`INSERT INTO users \(id, username, doc, created_at, updated_at\) VALUES \(\$1, \$2, \$3, \$4, \$5\)`).
		WithArgs("u1", "alice", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.CreateUser(context.Background(), sampleUser()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_CreateUser_Conflict(t *testing.T) {
	cases := map[storage.Driver]error{
		storage.DriverPostgres: &pq.Error{Code: "23505"},
		storage.DriverMySQL:    &mysql.MySQLError{Number: 1062},
	}
	for driver, dbErr := range cases {
		store, mock, cleanup := newMockStore(t, driver)
		mock.ExpectExec(`INSERT INTO users`).WillReturnError(dbErr)
		err := store.CreateUser(context.Background(), sampleUser())
		require.ErrorIs(t, err, core.ErrConflict, "driver %s", driver)
		require.NoError(t, mock.ExpectationsWereMet())
		cleanup()
	}
}

func TestSQLMock_GetUser(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()
	ctx := context.Background()

	u := sampleUser()
	u.RPG.XP = 150
	mock.ExpectQuery(`SELECT doc FROM users WHERE id = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(userDoc(t, u)))
	mock.ExpectQuery(`SELECT doc FROM users WHERE username = \$1`).
		WithArgs("nobody").
		WillReturnError(sql.ErrNoRows)

	got, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(150), got.RPG.XP)
	require.Equal(t, 2, got.RPG.Level)

	_, err = store.GetUserByUsername(ctx, "nobody")
	require.ErrorIs(t, err, core.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_SaveUser_MySQL(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverMySQL)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT username FROM users WHERE id = \?`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"username"}).AddRow("alice"))
	mock.ExpectExec(`UPDATE users SET doc = \?, updated_at = \? WHERE id = \?`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	u := sampleUser()
	u.Username = "renamed"
	require.NoError(t, store.SaveUser(context.Background(), u))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_SaveUser_Missing(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT username FROM users`).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	require.ErrorIs(t, store.SaveUser(context.Background(), sampleUser()), core.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Tasks(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()
	ctx := context.Background()

	task := core.Task{ID: "t1", OwnerID: "u1", Title: "plan", Status: core.StatusTodo, Priority: core.PriorityMedium, TaskLevel: 1}
	doc, err := json.Marshal(task)
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO tasks`).
		WithArgs("t1", "u1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT doc FROM tasks WHERE owner_id = \$1 ORDER BY created_at`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(string(doc)))
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(`UPDATE tasks SET doc`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "t1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec(`DELETE FROM tasks WHERE id = \$1`).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.CreateTask(ctx, task))
	list, err := store.ListTasks(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "plan", list[0].Title)

	task.Status = core.StatusDone
	require.NoError(t, store.SaveTask(ctx, task))
	require.ErrorIs(t, store.DeleteTask(ctx, "t1"), core.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_AutoMigrate(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS users`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS tasks`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_tasks_owner`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.AutoMigrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_RejectsBadConfig(t *testing.T) {
	_, err := storage.New(storage.Config{Driver: "sqlite", DSN: "x"})
	require.Error(t, err)
	_, err = storage.New(storage.DefaultConfig(storage.DriverPostgres))
	require.Error(t, err)
}
