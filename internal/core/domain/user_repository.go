package domain

import (
	"context"
	"errors"
)

// ErrDuplicateUsername is returned by UserRepository.Create when the
// username unique index rejects the insert. The store, not the caller,
// arbitrates concurrent registrations for the same name.
var ErrDuplicateUsername = errors.New("duplicate username")

// UserRow represents a user record returned from the database.
// It includes the password hash so the Logic layer can verify credentials.
type UserRow struct {
	ID           string
	Username     string
	PasswordHash string
}

// UserRepository defines the data-access contract for user operations.
// Implementations live in internal/core/repository (Core layer).
// The Logic layer depends on this interface only — never on SQL or pgx directly.
type UserRepository interface {
	// GetByUsername returns the user matching the given username.
	// Returns (nil, nil) when no user is found.
	GetByUsername(ctx context.Context, username string) (*UserRow, error)

	// Create inserts a new user and returns the generated user ID.
	// Returns ErrDuplicateUsername when the username is already taken;
	// nothing is written in that case.
	Create(ctx context.Context, username, passwordHash string) (string, error)
}
