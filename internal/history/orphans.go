package history

import (
	"errors"
	"fmt"
	"sort"

	"github.com/joeycumines/canine/internal/kvstore"
)

// ErrNotListable is returned when orphan detection needs to enumerate a store
// that cannot list its keys.
var ErrNotListable = errors.New("store cannot list its keys")

// Orphans returns, in ascending order, the ids of record keys present in the
// store but referenced by neither collection. They appear when a save is
// interrupted after writing records but before rewriting the id lists.
func (m *Manager) Orphans() ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orphansLocked()
}

// RemoveOrphans deletes every orphaned record key and returns the removed ids.
func (m *Manager) RemoveOrphans() ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids, err := m.orphansLocked()
	if err != nil {
		return nil, err
	}
	for i, id := range ids {
		if err := m.store.Remove(RecordKey(id)); err != nil {
			return ids[:i], fmt.Errorf("%w: remove orphan %d: %w", ErrStoreUnavailable, id, err)
		}
	}
	return ids, nil
}

func (m *Manager) orphansLocked() ([]int, error) {
	if !m.loaded {
		return nil, ErrNotLoaded
	}
	lister, ok := m.store.(kvstore.Lister)
	if !ok {
		return nil, ErrNotListable
	}
	keys, err := lister.Keys()
	if err != nil {
		return nil, fmt.Errorf("%w: list keys: %w", ErrStoreUnavailable, err)
	}

	used := m.data.IDs()
	var orphans []int
	for _, key := range keys {
		id, ok := parseRecordKey(key)
		if !ok || used.Has(id) {
			continue
		}
		orphans = append(orphans, id)
	}
	sort.Ints(orphans)
	return orphans, nil
}
