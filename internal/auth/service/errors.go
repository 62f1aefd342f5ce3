package service

import "errors"

// Sentinel errors returned by the services. The HTTP layer maps these onto
// status codes; the strings double as machine-readable error codes.
var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidToken       = errors.New("invalid_token")
	ErrTokenRevoked       = errors.New("token_revoked")
	ErrInvalidCode        = errors.New("invalid_code")
	ErrExpired            = errors.New("expired")
	ErrAlreadyUsed        = errors.New("already_used")
	ErrTooManyAttempts    = errors.New("too_many_attempts")
	ErrRateLimited        = errors.New("rate_limited")
	ErrWeakPassword       = errors.New("weak_password")

	ErrTwoFactorNotEnabled     = errors.New("two_factor_not_enabled")
	ErrTwoFactorAlreadyEnabled = errors.New("two_factor_already_enabled")

	// ErrDispatchFailed signals that state was written but the out-of-band
	// message could not be sent. Handlers log it and still answer generically
	// so the error channel does not become an account oracle.
	ErrDispatchFailed = errors.New("dispatch_failed")
)
