package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrSessionCapReached indicates the owner already holds the maximum number
	// of active sessions and no new row was inserted.
	ErrSessionCapReached = errors.New("repository: session cap reached")
)
