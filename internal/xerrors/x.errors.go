package xerrors

import "errors"

// Generic
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input provided")
)

// Token
var (
	ErrMissingToken = errors.New("no token provided")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
	ErrNoUserClaim  = errors.New("token carries no user id")
)

// Notifications
var (
	ErrMissingRecipient = errors.New("notification recipient required")
	ErrMissingTitle     = errors.New("notification title required")
	ErrMissingType      = errors.New("notification type required")
	ErrUnknownPriority  = errors.New("unknown notification priority")
	ErrUnencodableData  = errors.New("notification data is not JSON encodable")
)

// Lifecycle
var (
	ErrShuttingDown = errors.New("service shutting down")
)
