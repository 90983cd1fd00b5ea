package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an operation targets an absent key or node.
	ErrNotFound = errors.New("lattice: not found")

	// ErrAlreadyExists is returned when a create targets an occupied path.
	ErrAlreadyExists = errors.New("lattice: node already exists")

	// ErrUnsupported is returned when a backend lacks a required capability,
	// e.g. deleting from a write-once archive.
	ErrUnsupported = errors.New("lattice: operation not supported by backend")

	// ErrInvalidPath is returned for malformed paths or keys.
	ErrInvalidPath = errors.New("lattice: invalid path")

	// ErrRootForbidden is returned when attempting to delete or move the
	// root group.
	ErrRootForbidden = errors.New("lattice: root group cannot be deleted")
)

// IOError wraps an opaque transport or storage failure from a concrete
// backend. The hierarchy engine never masks these as semantic errors; the
// original cause stays reachable through errors.Unwrap.
type IOError struct {
	// Op is the store operation that failed ("get", "set", ...).
	Op string

	// Key is the key or prefix the operation targeted.
	Key string

	// Err is the underlying backend error.
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("lattice: backend %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ioErr wraps err as an IOError unless it is already one of the package's
// semantic errors.
func ioErr(op, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnsupported) {
		return err
	}
	return &IOError{Op: op, Key: key, Err: err}
}
