package repository

import (
	"context"
	"sync"
	"time"

	"github.com/minhhle/authgate/internal/core/domain"
)

// MemorySessionRepository implements domain.SessionRepository with an
// in-process map. It backs local development (no REDIS_URL) and tests.
// A background reaper sweeps expired records so the map does not grow
// unbounded; correctness never depends on the sweep, since reads
// re-check expiry.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemorySessionRepository creates the store and starts its reaper.
// reapInterval <= 0 disables the reaper (useful in tests).
func NewMemorySessionRepository(reapInterval time.Duration) *MemorySessionRepository {
	r := &MemorySessionRepository{
		sessions: make(map[string]domain.Session),
		stop:     make(chan struct{}),
	}
	if reapInterval > 0 {
		go r.reap(reapInterval)
	}
	return r
}

// Create persists a new session record keyed by its token.
func (r *MemorySessionRepository) Create(_ context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.Token] = *session
	return nil
}

// Get looks up a session by token. Returns (nil, nil) when absent.
// Records past their expiry are treated as absent and dropped.
func (r *MemorySessionRepository) Get(_ context.Context, token string) (*domain.Session, error) {
	r.mu.RLock()
	session, ok := r.sessions[token]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if time.Now().After(session.ExpiresAt) {
		r.mu.Lock()
		delete(r.sessions, token)
		r.mu.Unlock()
		return nil, nil
	}

	copied := session
	return &copied, nil
}

// Refresh extends a live session to the given expiry.
func (r *MemorySessionRepository) Refresh(_ context.Context, token string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[token]
	if !ok {
		return nil
	}
	session.ExpiresAt = expiresAt
	r.sessions[token] = session
	return nil
}

// Delete removes the session if present. Idempotent.
func (r *MemorySessionRepository) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
	return nil
}

// Close stops the reaper goroutine. Safe to call more than once.
func (r *MemorySessionRepository) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *MemorySessionRepository) reap(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case now := <-ticker.C:
			r.mu.Lock()
			for token, session := range r.sessions {
				if now.After(session.ExpiresAt) {
					delete(r.sessions, token)
				}
			}
			r.mu.Unlock()
		}
	}
}
