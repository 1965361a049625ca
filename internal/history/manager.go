package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/joeycumines/canine/internal/kvstore"
)

// Manager owns the in-memory history and keeps the store in sync with it.
//
// All methods are safe for concurrent use: the read-modify-write of data,
// index, and the top-level keys happens under one mutex, so there is a single
// logical writer.
//
// When persisting fails, mutators keep the change in memory and return an
// error wrapping ErrStoreUnavailable; the next successful save catches the
// store up.
type Manager struct {
	mu         sync.Mutex
	store      kvstore.Store
	reconciler *Reconciler
	loader     *Loader
	data       Data
	index      Index
	loaded     bool
}

// NewManager creates a Manager over store. Call Load before mutating.
func NewManager(store kvstore.Store, opts ...LoaderOption) *Manager {
	return &Manager{
		store:      store,
		reconciler: NewReconciler(store),
		loader:     NewLoader(store, opts...),
		index:      NewIndex(),
	}
}

// Load replaces the in-memory state with the stored one.
func (m *Manager) Load() (Data, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, index, err := m.loader.Load()
	if err != nil {
		return Data{}, err
	}
	m.data, m.index, m.loaded = data, index, true
	return data.Clone(), nil
}

// Save makes desired the current state and persists it.
//
// desired is validated first; invalid data is rejected without touching
// memory or the store. The key counter never moves backwards: a desired
// counter below the current one is raised.
func (m *Manager) Save(desired Data) error {
	if err := desired.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	desired = desired.Clone()
	desired.KeyCounter = max(desired.KeyCounter, m.data.KeyCounter)
	return m.saveLocked(desired)
}

// Data returns a copy of the current in-memory state.
func (m *Manager) Data() Data {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.Clone()
}

// Index returns a copy of the current existence index.
func (m *Manager) Index() Index {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index.Clone()
}

// Get returns the record with id and the collection it belongs to.
func (m *Manager) Get(id int) (Record, Kind, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.Find(id)
}

// AddQuickSave appends a new quicksave holding payload.
func (m *Manager) AddQuickSave(payload json.RawMessage) (Record, error) {
	return m.add(KindQuickSave, payload)
}

// AddHistory appends a new named history entry holding payload.
func (m *Manager) AddHistory(payload json.RawMessage) (Record, error) {
	return m.add(KindHistory, payload)
}

// Delete removes the record with id from whichever collection holds it.
func (m *Manager) Delete(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		return ErrNotLoaded
	}

	_, kind, ok := m.data.Find(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownID, id)
	}
	desired := m.data.Clone()
	records := desired.collection(kind)
	*records = slices.DeleteFunc(*records, func(r Record) bool { return r.ID == id })
	return m.saveLocked(desired)
}

// Replace swaps the record with id for a new record holding payload, at the
// same position in the same collection. Records are immutable, so the new
// record gets a fresh id.
func (m *Manager) Replace(id int, payload json.RawMessage) (Record, error) {
	if err := ValidatePayload(payload); err != nil {
		return Record{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		return Record{}, ErrNotLoaded
	}

	_, kind, ok := m.data.Find(id)
	if !ok {
		return Record{}, fmt.Errorf("%w: %d", ErrUnknownID, id)
	}
	desired := m.data.Clone()
	rec, err := desired.assign(payload)
	if err != nil {
		return Record{}, err
	}
	records := *desired.collection(kind)
	records[indexOf(records, id)] = rec
	return rec, m.saveLocked(desired)
}

// Clear removes every record of kind.
func (m *Manager) Clear(kind Kind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		return ErrNotLoaded
	}

	desired := m.data.Clone()
	*desired.collection(kind) = nil
	return m.saveLocked(desired)
}

func (m *Manager) add(kind Kind, payload json.RawMessage) (Record, error) {
	if err := ValidatePayload(payload); err != nil {
		return Record{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		return Record{}, ErrNotLoaded
	}

	desired := m.data.Clone()
	rec, err := desired.assign(payload)
	if err != nil {
		return Record{}, err
	}
	records := desired.collection(kind)
	*records = append(*records, rec)
	return rec, m.saveLocked(desired)
}

// saveLocked reconciles desired against the current index. The in-memory
// state always becomes desired; the index only advances when the store
// accepted every write. Must be called with m.mu held.
func (m *Manager) saveLocked(desired Data) error {
	m.data, m.loaded = desired, true

	index, err := m.reconciler.Reconcile(desired, m.index)
	if err != nil {
		slog.Warn("[history] failed to persist history; keeping in-memory state", "error", err)
		return err
	}
	m.index = index
	return nil
}

// assign allocates the next id for payload, advancing the key counter.
func (d *Data) assign(payload json.RawMessage) (Record, error) {
	id := d.KeyCounter
	if d.IDs().Has(id) {
		return Record{}, fmt.Errorf("%w: key counter %d is already in use", ErrDuplicateID, id)
	}
	d.KeyCounter++
	fields, err := payloadFields(payload)
	if err != nil {
		return Record{}, err
	}
	normalized, err := marshalObject(fields)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return Record{ID: id, Payload: normalized}, nil
}
