package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrSourceUnavailable  = errors.New("data source unavailable")
	ErrSourceMalformed    = errors.New("data source returned malformed data")
	ErrStoreWrite         = errors.New("store write failed")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrLockHeld           = errors.New("lock already held")
	ErrContextDone        = errors.New("context cancelled")
	ErrWSDisconnect       = errors.New("websocket disconnected")
)
