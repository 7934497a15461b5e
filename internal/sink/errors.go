package sink

import (
	"errors"
	"fmt"
)

var (
	// ErrSinkLocked means another process holds the lock of the series.
	ErrSinkLocked = errors.New("measurement series is locked by another process")
	// ErrClosed is returned when writing to a closed sink.
	ErrClosed = errors.New("sink closed")
)

// Error is a resource failure of the sink: creating directories, opening,
// locking, writing or closing the series file.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("sink %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
