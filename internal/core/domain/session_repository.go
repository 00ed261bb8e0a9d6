package domain

import (
	"context"
	"time"
)

// Session is the server-side record behind an opaque session token.
// The token itself is the storage key; it never appears in logs.
type Session struct {
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionRepository defines the data-access contract for session operations.
// Backends are TTL-capable key-value stores (Redis in production, an
// in-process map for local development and tests).
//
// Reads and writes for different tokens are independent and may run fully
// in parallel. A single token is owned by one client; implementations
// tolerate last-writer-wins when that client races itself.
type SessionRepository interface {
	// Create persists a new session record keyed by its token.
	Create(ctx context.Context, session *Session) error

	// Get looks up a session by token.
	// Returns (nil, nil) when the token does not match any session.
	// Implementations may have already evicted expired records, but
	// callers must not rely on that: expiry is re-checked at read time.
	Get(ctx context.Context, token string) (*Session, error)

	// Refresh extends a live session to the given expiry (sliding TTL).
	// A missing token is not an error; the next Get will miss anyway.
	Refresh(ctx context.Context, token string, expiresAt time.Time) error

	// Delete removes the session if present. Deleting an absent token
	// is not an error.
	Delete(ctx context.Context, token string) error
}
