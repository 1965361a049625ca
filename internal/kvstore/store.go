// Package kvstore provides the durable key-value stores that back canine's
// local session history.
//
// Every backend is a synchronous, string-keyed, string-valued map. Values
// survive process restarts (except for the memory backend, which exists for
// tests and dry runs). Stores are looked up by known keys only; enumeration
// (Lister) is reserved for maintenance tooling.
package kvstore

import (
	"errors"
)

// ErrClosed is returned by operations on a store that has been closed.
var ErrClosed = errors.New("kvstore: store is closed")

// ErrInvalidKey is returned when a key cannot be stored by a backend.
var ErrInvalidKey = errors.New("kvstore: invalid key")

// Store defines the contract for all persistence backends.
type Store interface {
	// Get returns the value stored under key.
	// It MUST return ("", false, nil) if the key does not exist.
	Get(key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any existing value.
	Set(key, value string) error

	// Remove deletes key. Removing a key that does not exist is a no-op.
	Remove(key string) error

	// Close releases backend resources, such as file locks or database handles.
	Close() error
}

// Lister is implemented by stores that can enumerate their keys. It is used
// by maintenance tooling only; normal reads and writes never scan the store.
type Lister interface {
	// Keys returns every stored key in sorted order.
	Keys() ([]string, error)
}

func validateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return nil
}
