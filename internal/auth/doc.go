// Package auth handles user accounts, password hashing, and API tokens.
//
// Passwords are hashed with Argon2id and stored in PHC string format.
// API access uses short-lived HS256 JWTs validated by signature only,
// so authenticated requests never hit the database.
package auth
