package auth

import "errors"

// Authentication errors.
var (
	// ErrTokenInvalid is returned for malformed, mis-signed or expired tokens.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrSecretMissing is returned when signing without a configured secret.
	ErrSecretMissing = errors.New("auth: jwt secret not configured")

	// ErrForbidden is returned when a role lacks a permission.
	ErrForbidden = errors.New("auth: insufficient permissions")
)
