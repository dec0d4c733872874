package repository

import "errors"

var (
	// ErrNotFound is returned when a record is missing or not owned by the caller.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a uniqueness constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")

	// ErrNotEmpty is returned when a folder still has children.
	ErrNotEmpty = errors.New("folder not empty")

	// ErrCycle is returned when a move would put a folder inside itself.
	ErrCycle = errors.New("folder cycle")
)
