package auth

import "errors"

var (
	// ErrEmailTaken is returned by Signup when the normalized email is
	// already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials covers both unknown-email and wrong-password
	// login failures; callers must not distinguish the two.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailNotVerified is returned when policy requires a verified
	// email and the account has none.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrInvalidMFACode is returned when a required TOTP code is absent
	// or does not verify.
	ErrInvalidMFACode = errors.New("invalid mfa code")
	// ErrInvalidToken covers malformed, unknown, and revoked tokens of
	// every kind.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when a token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenAlreadyUsed is returned when a single-use token has a
	// use-marker set.
	ErrTokenAlreadyUsed = errors.New("token already used")
	// ErrConfiguration is fatal and must prevent the service from
	// accepting traffic.
	ErrConfiguration = errors.New("configuration error")
	// ErrRateLimited maps to a 429 at the boundary.
	ErrRateLimited = errors.New("rate limited")
	// ErrUserNotFound is returned by account-scoped operations when the
	// subject no longer exists.
	ErrUserNotFound = errors.New("user not found")
)
