package chat

import "errors"

// Error taxonomy for messaging operations. Every error stays local to the
// initiating caller; a counterpart is never told about an operation that
// failed before reaching them.
var (
	// ErrValidation covers missing/invalid sender or receiver and empty
	// content+attachments. Rejected before any persistence attempt.
	ErrValidation = errors.New("invalid message")

	// ErrNotFound means the receiver or counterpart user does not exist.
	ErrNotFound = errors.New("user not found")

	// ErrPersistence wraps a store failure. Nothing was stored.
	ErrPersistence = errors.New("persistence failed")

	// ErrUnauthorized means the caller does not own the record it tried to
	// modify.
	ErrUnauthorized = errors.New("not authorized")
)
