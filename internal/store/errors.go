package store

import "errors"

var (
	// ErrNotFound indicates no record or job exists for the key.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict indicates a commit would remap a provider identity to a
	// different internal id.
	ErrConflict = errors.New("store: identity conflict")

	// ErrUnavailable indicates the database could not be reached or a
	// transaction could not be started or committed.
	ErrUnavailable = errors.New("store: persistence unavailable")
)
