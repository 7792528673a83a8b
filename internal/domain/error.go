package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrOperationFailed    = errors.New("operation failed")
	ErrLockHeld           = errors.New("lock is held by another worker")

	// Job processing
	ErrMalformedPayload = errors.New("malformed job payload")
	ErrUnknownJobType   = errors.New("unknown job type")
	ErrNonRetryable     = errors.New("non-retryable job failure")
	ErrNothingDelivered = errors.New("broadcast reached no group")

	// Groups and join requests
	ErrGroupNotManaged = errors.New("group is not managed")
	ErrGroupInactive   = errors.New("group is inactive")
)
