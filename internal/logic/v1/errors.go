// Package v1 provides authentication business logic for API version 1.
//
// Error Handling:
// This package defines sentinel errors that represent common authentication failures.
// These errors should be wrapped with context using fmt.Errorf("%w") when returned
// from business logic methods.
//
// Example Usage:
//
//	if row == nil {
//	    return nil, fmt.Errorf("authenticate user: %w", ErrInvalidCredentials)
//	}
//
// Error Checking (in handlers):
//
//	switch {
//	case errors.Is(err, logicv1.ErrInvalidCredentials):
//	    c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid username or password"})
//	case errors.Is(err, logicv1.ErrUserExists):
//	    c.JSON(http.StatusConflict, gin.H{"message": "Username already taken"})
//	default:
//	    c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
//	}
package v1

import "errors"

// Sentinel errors for authentication operations.
// These errors should be wrapped with context using fmt.Errorf("%w") when returned.
var (
	// ErrInvalidInput indicates a missing or malformed field, caught
	// before the store is touched.
	// HTTP Status: 400 Bad Request
	ErrInvalidInput = errors.New("invalid input")

	// ErrUserExists indicates the username is already registered.
	// HTTP Status: 409 Conflict
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidCredentials covers both an unknown username and a wrong
	// password. The two cases must stay one error value so responses
	// cannot be used to enumerate accounts.
	// HTTP Status: 401 Unauthorized
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthenticated covers a missing, unknown, or expired session
	// token. Expired and unknown are deliberately indistinguishable.
	// HTTP Status: 401 Unauthorized
	ErrUnauthenticated = errors.New("unauthenticated")
)
