// Package auth implements admin accounts and cookie sessions guarding the
// catalog's write operations.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// MinPasswordLength is the shortest accepted admin password.
const MinPasswordLength = 8

// bcryptCost matches the cost used for existing admin hashes.
const bcryptCost = 10

// User is an admin account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// UserStore persists admin accounts.
type UserStore interface {
	GetUser(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, username, passwordHash string) (int64, error)
	UpdatePassword(ctx context.Context, username, passwordHash string) error
}

// NormalizeUsername trims, NFC-normalizes and case-folds a username so that
// lookups ignore case and Unicode composition differences.
func NormalizeUsername(username string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(username)))
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", eris.Wrap(err, "auth: hash password")
	}
	return string(hash), nil
}

// dummyHash is compared against when the user does not exist so that unknown
// usernames take as long as wrong passwords.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("pilgrim-map-dummy-password"), bcryptCost)

// Authenticate checks a username/password pair. Unknown users and wrong
// passwords both return ErrInvalidCredentials.
func Authenticate(ctx context.Context, users UserStore, username, password string) (*User, error) {
	u, err := users.GetUser(ctx, NormalizeUsername(username))
	if errors.Is(err, ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, eris.Wrap(err, "auth: lookup user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// SetupAdmin creates the admin account, or updates its password when it
// already exists and update is true. It reports whether the account was
// created.
func SetupAdmin(ctx context.Context, users UserStore, username, password string, update bool) (bool, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return false, eris.New("auth: username is required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return false, err
	}

	_, err = users.CreateUser(ctx, username, hash)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, ErrUserExists) || !update {
		return false, err
	}
	if err := users.UpdatePassword(ctx, username, hash); err != nil {
		return false, err
	}
	return false, nil
}
