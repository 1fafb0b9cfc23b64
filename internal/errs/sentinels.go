// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist or is not visible
	// to the caller. Both cases are reported the same way.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates the principal is not eligible for the action.
	ErrForbidden = errors.New("not eligible")

	// ErrConflict indicates a spent single-use credential: a used vote token
	// or an already recorded QR token hash.
	ErrConflict = errors.New("already used")

	// ErrExpired indicates a signed QR token older than its max-age window.
	ErrExpired = errors.New("token expired")

	// ErrInvalidSignature indicates a forged, tampered or malformed signed token.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrKeysNotConfigured indicates the ballot keypair is missing.
	ErrKeysNotConfigured = errors.New("keys not configured")

	// ErrConfiguration indicates a deployment misconfiguration detected at startup.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnauthorized indicates failed authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates a temporary lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation on creation.
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation")
)
