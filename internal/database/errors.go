package database

import "errors"

var (
	// ErrTargetNotFound is returned when no target has the requested id.
	ErrTargetNotFound = errors.New("target not found")

	// ErrDatabaseNotFound is returned by Open when the database file is
	// missing and CreateIfNotExists is false.
	ErrDatabaseNotFound = errors.New("database not found")
)
