package app

import "errors"

var (
	// ErrInvalidCredentials is returned when the supplied credentials do not match.
	// This message is intended to be shown to end users and should not enable account enumeration.
	ErrInvalidCredentials = errors.New("Incorrect email address or password")

	// ErrAccountDisabled is returned when an account is disabled.
	// Handlers should generally NOT expose this to clients to avoid account enumeration.
	ErrAccountDisabled = errors.New("account disabled")

	ErrEmailAndPasswordRequired = errors.New("email and password required")
	ErrUsernameRequired         = errors.New("username required")
	ErrEmailAlreadyExists       = errors.New("email already exists")
	ErrAccountNotFound          = errors.New("account not found")

	ErrRefreshTokenRequired = errors.New("refresh token required")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")
)
