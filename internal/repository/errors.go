package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrAlreadyExists indicates a create collided with an existing record.
	ErrAlreadyExists = errors.New("repository: already exists")
	// ErrConflict indicates an optimistic-concurrency version mismatch.
	ErrConflict = errors.New("repository: version conflict")
	// ErrUnavailable indicates the backing store could not be reached.
	// Callers must never collapse this into ErrNotFound.
	ErrUnavailable = errors.New("repository: store unavailable")
)
