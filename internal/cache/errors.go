package cache

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Store.Get when no record exists for the id.
var ErrNotFound = errors.New("record not found")

// StorageError reports a failed backend operation.
type StorageError struct {
	Table string
	Op    string
	ID    string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s %q: %v", e.Table, e.Op, e.ID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Wrap returns nil for a nil err, passes ErrNotFound through untouched and
// wraps anything else in a StorageError.
func Wrap(table, op, id string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return &StorageError{Table: table, Op: op, ID: id, Err: err}
}
