package auth

import "errors"

var (
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrMissingField       = errors.New("email and password are both required")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSessionEnded is returned to a chat action whose session logged out
	// while the action was waiting for its turn.
	ErrSessionEnded = errors.New("session ended")
	// ErrInvalidToken means a session token failed signature or expiry checks.
	ErrInvalidToken = errors.New("invalid token")
)
