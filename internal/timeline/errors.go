package timeline

import "errors"

var (
	// ErrInvalidInput is returned for malformed segment input: overlapping,
	// unsorted, or ending before it starts.
	ErrInvalidInput = errors.New("invalid input")

	// ErrOutOfRange is returned when a drag position falls outside [0,1].
	ErrOutOfRange = errors.New("position out of range")

	// ErrStaleSelection is returned when a selection refers to a window that
	// is no longer loaded.
	ErrStaleSelection = errors.New("stale selection")
)
