package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a required record that is missing.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument marks malformed input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict marks a write that collided with another one; callers may retry.
	ErrConflict = errors.New("conflict")
	// ErrDataLoss marks a stored blob whose checksum no longer matches.
	ErrDataLoss = errors.New("data loss")
)

// NotFound wraps ErrNotFound with the name of the missing record.
func NotFound(what fmt.Stringer) error {
	return fmt.Errorf("%w: %s", ErrNotFound, what)
}

// InvalidArgument wraps ErrInvalidArgument.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// DataLoss wraps ErrDataLoss with the name of the corrupted record.
func DataLoss(what fmt.Stringer) error {
	return fmt.Errorf("%w: checksum mismatch for %s", ErrDataLoss, what)
}
