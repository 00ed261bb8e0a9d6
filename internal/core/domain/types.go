package domain

// RegisterRequest is the payload for user registration.
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest is the payload for credential authentication.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// User is the public shape of a user identity. It never carries the
// password hash.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// LoginResult bundles the authenticated user with the freshly issued
// session token. The token is handed back to the client once and is
// otherwise only ever used as a lookup key.
type LoginResult struct {
	Token string
	User  User
}
