package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/joeycumines/canine/internal/kvstore"
	"github.com/stretchr/testify/require"
)

// countingStore records every mutation made through it.
type countingStore struct {
	kvstore.Store
	sets    []string
	removes []string
}

func newCountingStore() *countingStore {
	return &countingStore{Store: kvstore.NewMemoryStore()}
}

func (s *countingStore) Set(key, value string) error {
	s.sets = append(s.sets, key)
	return s.Store.Set(key, value)
}

func (s *countingStore) Remove(key string) error {
	s.removes = append(s.removes, key)
	return s.Store.Remove(key)
}

func (s *countingStore) reset() {
	s.sets, s.removes = nil, nil
}

// recordSets returns the record keys written since the last reset.
func (s *countingStore) recordSets() []string {
	var out []string
	for _, k := range s.sets {
		if strings.HasPrefix(k, RecordKeyPrefix) {
			out = append(out, k)
		}
	}
	return out
}

// failingStore fails any operation whose key satisfies failOn.
type failingStore struct {
	kvstore.Store
	failOn func(op, key string) bool
}

var errInjected = errors.New("injected store failure")

func (s *failingStore) Get(key string) (string, bool, error) {
	if s.failOn("get", key) {
		return "", false, errInjected
	}
	return s.Store.Get(key)
}

func (s *failingStore) Set(key, value string) error {
	if s.failOn("set", key) {
		return errInjected
	}
	return s.Store.Set(key, value)
}

func (s *failingStore) Remove(key string) error {
	if s.failOn("remove", key) {
		return errInjected
	}
	return s.Store.Remove(key)
}

// rec builds a record with a small distinguishing payload.
func rec(id int) Record {
	return Record{ID: id, Payload: json.RawMessage(fmt.Sprintf(`{"title":"session %d"}`, id))}
}

func mustGet(t *testing.T, s kvstore.Store, key string) string {
	t.Helper()
	v, ok, err := s.Get(key)
	require.NoError(t, err)
	require.True(t, ok, "key %q not present", key)
	return v
}
