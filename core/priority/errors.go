package priority

import "errors"

var (
	// ErrInvalidTarget is returned when an update names a class that does not
	// exist in the requested category.
	ErrInvalidTarget = errors.New("invalid priority target")

	// ErrPersistence is returned when the current configuration could not be
	// written. The in-memory change is kept.
	ErrPersistence = errors.New("priority persistence failed")

	// ErrConfigLoad is returned by Registry.Load when the stored documents
	// could not be read and the built-in baseline is in use.
	ErrConfigLoad = errors.New("priority config load failed")

	// ErrNotFound is returned by a Store that holds no document yet.
	ErrNotFound = errors.New("priority document not found")

	// ErrReadOnly is returned when writing to a read-only Store.
	ErrReadOnly = errors.New("priority store is read-only")
)
