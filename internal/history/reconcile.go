package history

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/joeycumines/canine/internal/kvstore"
)

// Reconciler writes the difference between desired Data and the stored state
// described by an Index.
type Reconciler struct {
	store kvstore.Store
}

// NewReconciler creates a Reconciler over store.
func NewReconciler(store kvstore.Store) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile brings the store in line with desired and returns the new
// existence index, which is exactly the set of ids desired uses.
//
// Records are removed first, then new records are written, and only then are
// the three top-level keys rewritten (always, even when no record changed).
// A failure part way leaves the previously written id lists in place, and
// those only reference records that are still stored.
//
// desired must not contain duplicate ids; that is checked where ids are
// assigned, not here.
func (r *Reconciler) Reconcile(desired Data, prior Index) (Index, error) {
	used := desired.IDs()
	plan := Classify(prior, used)

	for _, id := range plan.ToRemove.IDs() {
		if err := r.store.Remove(RecordKey(id)); err != nil {
			return nil, fmt.Errorf("%w: remove record %d: %w", ErrStoreUnavailable, id, err)
		}
	}

	for _, rec := range desired.all() {
		if !plan.ToAdd.Has(rec.ID) {
			continue
		}
		value, err := EncodeRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("encode record %d: %w", rec.ID, err)
		}
		if err := r.store.Set(RecordKey(rec.ID), value); err != nil {
			return nil, fmt.Errorf("%w: write record %d: %w", ErrStoreUnavailable, rec.ID, err)
		}
	}

	if err := r.writeIndexKeys(desired); err != nil {
		return nil, err
	}

	slog.Debug("[history] reconciled",
		"added", plan.ToAdd.Len(),
		"removed", plan.ToRemove.Len(),
		"quicksaves", len(desired.QuickSaves),
		"histories", len(desired.Histories),
		"keyCounter", desired.KeyCounter)

	return used, nil
}

// writeIndexKeys persists the id lists and the key counter.
func (r *Reconciler) writeIndexKeys(desired Data) error {
	entries := []struct {
		key   string
		value any
	}{
		{QuickSavesKey, recordIDs(desired.QuickSaves)},
		{HistoriesKey, recordIDs(desired.Histories)},
		{KeyCounterKey, desired.KeyCounter},
	}
	for _, e := range entries {
		b, err := json.Marshal(e.value)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", e.key, err)
		}
		if err := r.store.Set(e.key, string(b)); err != nil {
			return fmt.Errorf("%w: write %s: %w", ErrStoreUnavailable, e.key, err)
		}
	}
	return nil
}

// recordIDs returns the ids of records in order. It never returns nil, so an
// empty collection is stored as [] rather than null.
func recordIDs(records []Record) []int {
	ids := make([]int, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}
