package auth

import "errors"

// Sentinel errors for authentication operations.
var (
	// ErrUserNotFound is returned when a user does not exist.
	ErrUserNotFound = errors.New("auth: user not found")

	// ErrUserExists is returned when creating a user with a taken username.
	ErrUserExists = errors.New("auth: username already taken")

	// ErrInvalidCredentials is returned when authentication fails.
	// The same error covers unknown username and wrong password so the
	// response does not reveal which one was wrong.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrInvalidUsername is returned for usernames that fail format validation.
	ErrInvalidUsername = errors.New("auth: invalid username format")

	// ErrTokenInvalid is returned for expired, malformed, or tampered tokens.
	ErrTokenInvalid = errors.New("auth: invalid token")
)
