package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrNoDetail = errors.New("no detail available")
	ErrLockHeld = errors.New("lock already held")
)
