package history

import (
	"errors"
)

var (
	// ErrStoreUnavailable wraps any failure of the underlying store. A save
	// or load that returns it has failed as a whole.
	ErrStoreUnavailable = errors.New("history store unavailable")

	// ErrMalformedRecord reports a stored record that cannot be decoded.
	ErrMalformedRecord = errors.New("malformed history record")

	// ErrMalformedIndex reports a top-level key (id list or counter) that
	// cannot be decoded.
	ErrMalformedIndex = errors.New("malformed history index")

	// ErrInvalidPayload reports a payload that is not a JSON object.
	ErrInvalidPayload = errors.New("record payload must be a JSON object")

	// ErrDuplicateID reports an id that appears more than once across
	// quicksaves and histories.
	ErrDuplicateID = errors.New("duplicate record id")

	// ErrUnknownID reports an operation on an id that is not in memory.
	ErrUnknownID = errors.New("unknown record id")

	// ErrNotLoaded is returned by Manager mutators called before Load.
	ErrNotLoaded = errors.New("history not loaded")
)

// IsStoreFailure reports whether err came from the store rather than from
// the data in it.
func IsStoreFailure(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
