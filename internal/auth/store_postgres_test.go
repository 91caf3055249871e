package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresUserStore_GetUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT id, username, password_hash, created_at FROM users").
		WithArgs("admin").
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "password_hash", "created_at"}).
			AddRow(int64(1), "admin", "$2a$10$hash", now))

	u, err := NewPostgresUserStore(mock).GetUser(context.Background(), "admin")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "$2a$10$hash", u.PasswordHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserStore_GetUser_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, username, password_hash, created_at FROM users").
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err = NewPostgresUserStore(mock).GetUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestPostgresUserStore_CreateUser_Duplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("admin", "hash").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err = NewPostgresUserStore(mock).CreateUser(context.Background(), "admin", "hash")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestPostgresUserStore_CreateUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("admin", "hash").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := NewPostgresUserStore(mock).CreateUser(context.Background(), "admin", "hash")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

func TestPostgresUserStore_UpdatePassword(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresUserStore(mock)

	mock.ExpectExec("UPDATE users SET password_hash").
		WithArgs("hash", "admin").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, store.UpdatePassword(context.Background(), "admin", "hash"))

	mock.ExpectExec("UPDATE users SET password_hash").
		WithArgs("hash", "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, store.UpdatePassword(context.Background(), "ghost", "hash"), ErrUserNotFound)

	mock.ExpectExec("UPDATE users SET password_hash").
		WithArgs("hash", "admin").
		WillReturnError(fmt.Errorf("connection refused"))
	err = store.UpdatePassword(context.Background(), "admin", "hash")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update password")
	assert.NoError(t, mock.ExpectationsWereMet())
}
