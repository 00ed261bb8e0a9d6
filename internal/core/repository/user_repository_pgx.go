package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minhhle/authgate/internal/core/domain"
)

// uniqueViolation is the postgres error code raised when an insert
// trips a unique index.
const uniqueViolation = "23505"

// PgxUserRepository implements domain.UserRepository using pgxpool.
type PgxUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PgxUserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PgxUserRepository {
	return &PgxUserRepository{pool: pool}
}

// GetByUsername returns the user matching the given username.
// Returns (nil, nil) when no user is found.
func (r *PgxUserRepository) GetByUsername(ctx context.Context, username string) (*domain.UserRow, error) {
	query := `SELECT id, username, password_hash FROM users WHERE username = $1`

	var row domain.UserRow
	err := r.pool.QueryRow(ctx, query, username).Scan(
		&row.ID, &row.Username, &row.PasswordHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &row, nil
}

// Create inserts a new user and returns the generated user ID.
// The insert is not pre-checked: the unique index on username decides
// races, and its rejection comes back as domain.ErrDuplicateUsername.
func (r *PgxUserRepository) Create(ctx context.Context, username, passwordHash string) (string, error) {
	query := `INSERT INTO users (id, username, password_hash) VALUES ($1, $2, $3) RETURNING id`

	var userID string
	err := r.pool.QueryRow(ctx, query, uuid.NewString(), username, passwordHash).Scan(&userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", domain.ErrDuplicateUsername
		}
		return "", fmt.Errorf("insert user: %w", err)
	}

	return userID, nil
}
