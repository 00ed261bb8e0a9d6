package v1

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/minhhle/authgate/internal/core/domain"
	"github.com/minhhle/authgate/middleware"
)

// dummyHash is a valid bcrypt hash compared against when the username
// does not exist, so a lookup miss costs the same as a wrong password.
// The comparison result is discarded either way.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// PasswordHasher abstracts the bcrypt worker pool so the service never
// runs a hash on the calling goroutine directly.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Compare(ctx context.Context, hash, password string) error
}

// AuthService implements registration, credential verification, and the
// session lifecycle. It depends on repository interfaces (injected via
// constructor) and MUST NOT access the database or SQL directly.
type AuthService struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	hasher   PasswordHasher

	sessionTTL time.Duration
	sliding    bool

	// now is swapped in tests to pin the clock.
	now func() time.Time
}

// NewAuthService creates a new AuthService with the given dependencies.
// sliding selects rolling expiry: each successful validation pushes the
// session expiry out by sessionTTL again.
func NewAuthService(users domain.UserRepository, sessions domain.SessionRepository, hasher PasswordHasher, sessionTTL time.Duration, sliding bool) *AuthService {
	return &AuthService{
		users:      users,
		sessions:   sessions,
		hasher:     hasher,
		sessionTTL: sessionTTL,
		sliding:    sliding,
		now:        time.Now,
	}
}

// Register creates a new user and returns its ID. The insert is not
// preceded by an existence check: the unique index decides concurrent
// registrations and the loser gets ErrUserExists.
func (s *AuthService) Register(ctx context.Context, req domain.RegisterRequest) (string, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.register", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if req.Username == "" || req.Password == "" {
		return "", fmt.Errorf("register: %w", ErrInvalidInput)
	}

	passwordHash, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("hash password: %w", err)
	}

	userID, err := s.users.Create(ctx, req.Username, passwordHash)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateUsername) {
			span.SetAttributes(attribute.Bool("registration.success", false))
			return "", fmt.Errorf("register user: %w", ErrUserExists)
		}
		span.RecordError(err)
		return "", fmt.Errorf("insert user: %w", err)
	}

	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.Bool("registration.success", true),
	)
	span.AddEvent("user.registered")

	return userID, nil
}

// VerifyCredentials checks a username/password pair and returns the user
// on success. An unknown username and a wrong password both return
// ErrInvalidCredentials, and both cost one bcrypt comparison.
func (s *AuthService) VerifyCredentials(ctx context.Context, username, password string) (*domain.User, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.verify_credentials", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	row, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query user: %w", err)
	}
	if row == nil {
		// Burn a comparison so the miss is not observably faster.
		_ = s.hasher.Compare(ctx, dummyHash, password)
		span.SetAttributes(attribute.Bool("auth.success", false))
		span.AddEvent("authentication.failed")
		return nil, fmt.Errorf("authenticate user: %w", ErrInvalidCredentials)
	}

	if err := s.hasher.Compare(ctx, row.PasswordHash, password); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			span.SetAttributes(attribute.Bool("auth.success", false))
			span.AddEvent("authentication.failed")
			return nil, fmt.Errorf("authenticate user: %w", ErrInvalidCredentials)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("compare password: %w", err)
	}

	span.SetAttributes(
		attribute.String("user.id", row.ID),
		attribute.Bool("auth.success", true),
	)
	span.AddEvent("user.authenticated")

	return &domain.User{ID: row.ID, Username: row.Username}, nil
}

// Login verifies credentials and opens a session for the user.
func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.login", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if req.Username == "" || req.Password == "" {
		// Same response as a failed match: an empty field can never
		// authenticate, and the error must not say why.
		return nil, fmt.Errorf("login: %w", ErrInvalidCredentials)
	}

	user, err := s.VerifyCredentials(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}

	session, err := s.CreateSession(ctx, user)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &domain.LoginResult{Token: session.Token, User: *user}, nil
}

// CreateSession issues an unguessable token and persists the session
// record. The caller is assumed to have authenticated the user already.
func (s *AuthService) CreateSession(ctx context.Context, user *domain.User) (*domain.Session, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.create_session", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", user.ID),
	))
	defer span.End()

	token, err := newSessionToken()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	now := s.now()
	session := &domain.Session{
		Token:     token,
		UserID:    user.ID,
		Username:  user.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create session: %w", err)
	}

	span.AddEvent("session.created")
	return session, nil
}

// ValidateSession resolves a token to the user that owns it. Every call
// is a fresh store read so a logout elsewhere is visible immediately.
// A missing record and an expired one are the same failure.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*domain.User, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.validate_session", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if token == "" {
		return nil, fmt.Errorf("validate session: %w", ErrUnauthenticated)
	}

	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query session: %w", err)
	}
	if session == nil {
		span.SetAttributes(attribute.Bool("session.valid", false))
		return nil, fmt.Errorf("lookup session: %w", ErrUnauthenticated)
	}

	// The store's own TTL eviction may lag; the expiry check here is
	// what actually enforces the validity window.
	now := s.now()
	if now.After(session.ExpiresAt) {
		span.SetAttributes(attribute.Bool("session.valid", false))
		if delErr := s.sessions.Delete(ctx, token); delErr != nil {
			span.RecordError(delErr)
		}
		return nil, fmt.Errorf("session expired: %w", ErrUnauthenticated)
	}

	if s.sliding {
		// Best-effort: a failed refresh only means the session keeps
		// its current expiry.
		if refErr := s.sessions.Refresh(ctx, token, now.Add(s.sessionTTL)); refErr != nil {
			span.RecordError(refErr)
		}
	}

	span.SetAttributes(
		attribute.String("user.id", session.UserID),
		attribute.Bool("session.valid", true),
	)

	return &domain.User{ID: session.UserID, Username: session.Username}, nil
}

// DestroySession revokes a token. Destroying an absent or already
// destroyed session succeeds.
func (s *AuthService) DestroySession(ctx context.Context, token string) error {
	ctx, span := middleware.StartSpan(ctx, "auth.destroy_session", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if token == "" {
		return nil
	}

	if err := s.sessions.Delete(ctx, token); err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete session: %w", err)
	}

	span.AddEvent("session.destroyed")
	return nil
}

// newSessionToken returns 32 bytes from crypto/rand as 64 hex characters.
func newSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
