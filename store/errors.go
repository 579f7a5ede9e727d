package store

import "errors"

// Sentinel errors for store operations.
var (
	ErrNotFound    = errors.New("store: object not found")
	ErrInvalidName = errors.New("store: invalid object name")
	ErrLocked      = errors.New("store: directory is locked by another process")
)
