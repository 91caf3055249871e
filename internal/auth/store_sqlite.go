package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// SQLiteUserStore implements UserStore on the SQLite users table.
type SQLiteUserStore struct {
	db *sql.DB
}

// NewSQLiteUserStore creates a SQLiteUserStore.
func NewSQLiteUserStore(db *sql.DB) *SQLiteUserStore {
	return &SQLiteUserStore{db: db}
}

// GetUser implements UserStore.
func (s *SQLiteUserStore) GetUser(ctx context.Context, username string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`,
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrUserNotFound, "sqlite: get user %s", username)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get user")
	}
	return &u, nil
}

// CreateUser implements UserStore.
func (s *SQLiteUserStore) CreateUser(ctx context.Context, username, passwordHash string) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		username, passwordHash, now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, eris.Wrapf(ErrUserExists, "sqlite: create user %s", username)
		}
		return 0, eris.Wrap(err, "sqlite: create user")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: last insert id")
	}
	return id, nil
}

// UpdatePassword implements UserStore.
func (s *SQLiteUserStore) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE username = ?`,
		passwordHash, time.Now().UTC(), username,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: update password")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrUserNotFound, "sqlite: update password %s", username)
	}
	return nil
}
