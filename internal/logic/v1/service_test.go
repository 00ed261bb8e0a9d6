package v1

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/minhhle/authgate/internal/core/domain"
	"github.com/minhhle/authgate/internal/hashworker"
)

// --- fakes ---

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.UserRow
	next  int

	getErr    error
	createErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.UserRow)}
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.UserRow, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.users[username]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (f *fakeUserRepo) Create(_ context.Context, username, passwordHash string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[username]; ok {
		return "", domain.ErrDuplicateUsername
	}
	f.next++
	id := fmt.Sprintf("user-%d", f.next)
	f.users[username] = &domain.UserRow{ID: id, Username: username, PasswordHash: passwordHash}
	return id, nil
}

// fakeSessionRepo stores blindly with no expiry logic of its own, so the
// tests exercise the service's read-time expiry check rather than the
// store's eviction.
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]domain.Session)}
}

func (f *fakeSessionRepo) Create(_ context.Context, session *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session.Token] = *session
	return nil
}

func (f *fakeSessionRepo) Get(_ context.Context, token string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[token]
	if !ok {
		return nil, nil
	}
	copied := session
	return &copied, nil
}

func (f *fakeSessionRepo) Refresh(_ context.Context, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[token]
	if !ok {
		return nil
	}
	session.ExpiresAt = expiresAt
	f.sessions[token] = session
	return nil
}

func (f *fakeSessionRepo) Delete(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, token)
	return nil
}

// --- helpers ---

func newTestService(t *testing.T, users domain.UserRepository, sessions domain.SessionRepository) *AuthService {
	t.Helper()
	hasher := hashworker.New(2, bcrypt.MinCost)
	t.Cleanup(hasher.Close)
	return NewAuthService(users, sessions, hasher, time.Hour, false)
}

// --- tests ---

func TestRegister(t *testing.T) {
	users := newFakeUserRepo()
	svc := newTestService(t, users, newFakeSessionRepo())
	ctx := context.Background()

	userID, err := svc.Register(ctx, domain.RegisterRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)
	require.NotEmpty(t, userID)

	// Stored hash must not be the plaintext.
	row, err := users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.NotEqual(t, "secret123", row.PasswordHash)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := newTestService(t, newFakeUserRepo(), newFakeSessionRepo())
	ctx := context.Background()

	_, err := svc.Register(ctx, domain.RegisterRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, domain.RegisterRequest{Username: "alice", Password: "other"})
	require.ErrorIs(t, err, ErrUserExists)
}

func TestRegisterInvalidInput(t *testing.T) {
	svc := newTestService(t, newFakeUserRepo(), newFakeSessionRepo())
	ctx := context.Background()

	_, err := svc.Register(ctx, domain.RegisterRequest{Username: "", Password: "secret123"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Register(ctx, domain.RegisterRequest{Username: "alice", Password: ""})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestVerifyCredentials(t *testing.T) {
	svc := newTestService(t, newFakeUserRepo(), newFakeSessionRepo())
	ctx := context.Background()

	userID, err := svc.Register(ctx, domain.RegisterRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	user, err := svc.VerifyCredentials(ctx, "alice", "secret123")
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
	assert.Equal(t, "alice", user.Username)

	_, err = svc.VerifyCredentials(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyCredentialsEnumerationResistance(t *testing.T) {
	svc := newTestService(t, newFakeUserRepo(), newFakeSessionRepo())
	ctx := context.Background()

	_, err := svc.Register(ctx, domain.RegisterRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	// Unknown user and wrong password must resolve to the same sentinel.
	_, unknownErr := svc.VerifyCredentials(ctx, "nobody", "anything")
	_, wrongErr := svc.VerifyCredentials(ctx, "alice", "wrong")

	require.ErrorIs(t, unknownErr, ErrInvalidCredentials)
	require.ErrorIs(t, wrongErr, ErrInvalidCredentials)
}

func TestSessionLifecycle(t *testing.T) {
	svc := newTestService(t, newFakeUserRepo(), newFakeSessionRepo())
	ctx := context.Background()

	user := &domain.User{ID: "user-1", Username: "alice"}
	session, err := svc.CreateSession(ctx, user)
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	assert.Equal(t, session.CreatedAt.Add(time.Hour), session.ExpiresAt)

	got, err := svc.ValidateSession(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.ID)

	require.NoError(t, svc.DestroySession(ctx, session.Token))

	_, err = svc.ValidateSession(ctx, session.Token)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestValidateSessionUnknownToken(t *testing.T) {
	svc := newTestService(t, newFakeUserRepo(), newFakeSessionRepo())

	_, err := svc.ValidateSession(context.Background(), "no-such-token")
	require.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.ValidateSession(context.Background(), "")
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestValidateSessionExpiry(t *testing.T) {
	sessions := newFakeSessionRepo()
	svc := newTestService(t, newFakeUserRepo(), sessions)
	ctx := context.Background()

	start := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	session, err := svc.CreateSession(ctx, &domain.User{ID: "user-1", Username: "alice"})
	require.NoError(t, err)

	// Just inside the window.
	svc.now = func() time.Time { return start.Add(time.Hour - time.Second) }
	_, err = svc.ValidateSession(ctx, session.Token)
	require.NoError(t, err)

	// Just past the window: same failure as a missing session, and the
	// stale record is gone afterwards.
	svc.now = func() time.Time { return start.Add(time.Hour + time.Second) }
	_, err = svc.ValidateSession(ctx, session.Token)
	require.ErrorIs(t, err, ErrUnauthenticated)

	stored, err := sessions.Get(ctx, session.Token)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestValidateSessionSliding(t *testing.T) {
	sessions := newFakeSessionRepo()
	hasher := hashworker.New(1, bcrypt.MinCost)
	t.Cleanup(hasher.Close)
	svc := NewAuthService(newFakeUserRepo(), sessions, hasher, time.Hour, true)
	ctx := context.Background()

	start := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	session, err := svc.CreateSession(ctx, &domain.User{ID: "user-1", Username: "alice"})
	require.NoError(t, err)

	// Validation halfway through the window pushes the expiry out.
	svc.now = func() time.Time { return start.Add(30 * time.Minute) }
	_, err = svc.ValidateSession(ctx, session.Token)
	require.NoError(t, err)

	stored, err := sessions.Get(ctx, session.Token)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, start.Add(90*time.Minute), stored.ExpiresAt)
}

func TestDestroySessionIdempotent(t *testing.T) {
	svc := newTestService(t, newFakeUserRepo(), newFakeSessionRepo())
	ctx := context.Background()

	require.NoError(t, svc.DestroySession(ctx, "never-existed"))

	session, err := svc.CreateSession(ctx, &domain.User{ID: "user-1", Username: "alice"})
	require.NoError(t, err)
	require.NoError(t, svc.DestroySession(ctx, session.Token))
	require.NoError(t, svc.DestroySession(ctx, session.Token))
}

func TestLogin(t *testing.T) {
	svc := newTestService(t, newFakeUserRepo(), newFakeSessionRepo())
	ctx := context.Background()

	userID, err := svc.Register(ctx, domain.RegisterRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	result, err := svc.Login(ctx, domain.LoginRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, userID, result.User.ID)
	assert.NotEmpty(t, result.Token)

	// The issued token is immediately valid.
	user, err := svc.ValidateSession(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
}

func TestLoginEmptyFields(t *testing.T) {
	svc := newTestService(t, newFakeUserRepo(), newFakeSessionRepo())

	_, err := svc.Login(context.Background(), domain.LoginRequest{Username: "", Password: "x"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), domain.LoginRequest{Username: "alice", Password: ""})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSessionTokensAreUnique(t *testing.T) {
	svc := newTestService(t, newFakeUserRepo(), newFakeSessionRepo())
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		session, err := svc.CreateSession(ctx, &domain.User{ID: "user-1", Username: "alice"})
		require.NoError(t, err)
		assert.Len(t, session.Token, 64)
		assert.False(t, seen[session.Token], "token collision")
		seen[session.Token] = true
	}
}
