package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pilgrim-map/internal/db"
)

// PostgresUserStore implements UserStore on the users table.
type PostgresUserStore struct {
	pool db.Pool
}

// NewPostgresUserStore creates a PostgresUserStore.
func NewPostgresUserStore(pool db.Pool) *PostgresUserStore {
	return &PostgresUserStore{pool: pool}
}

// GetUser implements UserStore.
func (s *PostgresUserStore) GetUser(ctx context.Context, username string) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrUserNotFound, "auth: get user %s", username)
	}
	if err != nil {
		return nil, eris.Wrap(err, "auth: get user")
	}
	return &u, nil
}

// CreateUser implements UserStore.
func (s *PostgresUserStore) CreateUser(ctx context.Context, username, passwordHash string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING id`,
		username, passwordHash,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, eris.Wrapf(ErrUserExists, "auth: create user %s", username)
		}
		return 0, eris.Wrap(err, "auth: create user")
	}
	return id, nil
}

// UpdatePassword implements UserStore.
func (s *PostgresUserStore) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = now() WHERE username = $2`,
		passwordHash, username,
	)
	if err != nil {
		return eris.Wrap(err, "auth: update password")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrUserNotFound, "auth: update password %s", username)
	}
	return nil
}
