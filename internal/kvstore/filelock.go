package kvstore

import (
	"errors"
)

// ErrWouldBlock signals that a non-blocking lock attempt failed because the
// store is locked by another process.
var ErrWouldBlock = errors.New("store is locked by another process")
