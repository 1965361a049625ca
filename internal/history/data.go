package history

import (
	"fmt"
	"slices"
)

// Kind distinguishes the two record collections.
type Kind int

const (
	KindQuickSave Kind = iota
	KindHistory
)

func (k Kind) String() string {
	switch k {
	case KindQuickSave:
		return "quicksave"
	case KindHistory:
		return "history"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Data is the complete in-memory history state.
type Data struct {
	// KeyCounter is the next id to assign. It never decreases.
	KeyCounter int
	// QuickSaves are ordered by save time.
	QuickSaves []Record
	// Histories are ordered by save time.
	Histories []Record
}

// IDs returns the set of ids used by either collection.
func (d Data) IDs() Index {
	ids := NewIndex()
	for _, r := range d.QuickSaves {
		ids.Add(r.ID)
	}
	for _, r := range d.Histories {
		ids.Add(r.ID)
	}
	return ids
}

// Validate checks the data invariants: ids are non-negative, unique across
// both collections, and below KeyCounter; payloads are JSON objects.
func (d Data) Validate() error {
	if d.KeyCounter < 0 {
		return fmt.Errorf("key counter %d is negative", d.KeyCounter)
	}
	seen := NewIndex()
	for _, r := range d.all() {
		if r.ID < 0 {
			return fmt.Errorf("record id %d is negative", r.ID)
		}
		if seen.Has(r.ID) {
			return fmt.Errorf("%w: %d", ErrDuplicateID, r.ID)
		}
		seen.Add(r.ID)
		if r.ID >= d.KeyCounter {
			return fmt.Errorf("record id %d is not below key counter %d", r.ID, d.KeyCounter)
		}
		if err := ValidatePayload(r.Payload); err != nil {
			return fmt.Errorf("record %d: %w", r.ID, err)
		}
	}
	return nil
}

// Find returns the record with the given id and the collection holding it.
func (d Data) Find(id int) (Record, Kind, bool) {
	if i := indexOf(d.QuickSaves, id); i >= 0 {
		return d.QuickSaves[i], KindQuickSave, true
	}
	if i := indexOf(d.Histories, id); i >= 0 {
		return d.Histories[i], KindHistory, true
	}
	return Record{}, 0, false
}

// Clone returns a copy that shares no slices with d. Payload bytes are
// shared; they are never modified in place.
func (d Data) Clone() Data {
	return Data{
		KeyCounter: d.KeyCounter,
		QuickSaves: slices.Clone(d.QuickSaves),
		Histories:  slices.Clone(d.Histories),
	}
}

func (d Data) all() []Record {
	return slices.Concat(d.QuickSaves, d.Histories)
}

func (d *Data) collection(kind Kind) *[]Record {
	if kind == KindHistory {
		return &d.Histories
	}
	return &d.QuickSaves
}

func indexOf(records []Record, id int) int {
	return slices.IndexFunc(records, func(r Record) bool { return r.ID == id })
}
