package storage

import "errors"

// Common storage errors
var (
	ErrNotFound   = errors.New("not found")
	ErrDuplicate  = errors.New("already exists")
	ErrNotPending = errors.New("donation is not pending")
)
