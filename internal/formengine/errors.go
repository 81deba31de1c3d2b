package formengine

import (
	"errors"
	"fmt"
)

var (
	// ErrPathNotFound means a segment named a key or index that does not exist.
	ErrPathNotFound = errors.New("path not found")
	// ErrTypeMismatch means a segment did not fit the value it was applied to, or the
	// target of an edit is not a leaf.
	ErrTypeMismatch = errors.New("type mismatch")
	ErrInvalidJSON  = errors.New("invalid json")
)

// PathError records which operation failed, on which path, and at which segment.
type PathError struct {
	Op   string
	Path Path
	At   int
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path.String(), e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}
