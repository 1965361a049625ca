package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joeycumines/canine/internal/kvstore"
)

// MissingRecordPolicy decides what Load does with an id whose record key is
// absent from the store.
type MissingRecordPolicy int

const (
	// MissingRecordSkip drops the id from the loaded data and index without
	// reporting an error. This is how a store that lost a record heals: the
	// next save rewrites the id lists without it.
	MissingRecordSkip MissingRecordPolicy = iota
)

// MalformedRecordPolicy decides what Load does with a record that is present
// but cannot be decoded.
type MalformedRecordPolicy int

const (
	// MalformedRecordSkip treats the record exactly like a missing one, and
	// logs a warning.
	MalformedRecordSkip MalformedRecordPolicy = iota
	// MalformedRecordAbort fails the whole load with ErrMalformedRecord.
	MalformedRecordAbort
)

func (p MalformedRecordPolicy) String() string {
	switch p {
	case MalformedRecordSkip:
		return "skip"
	case MalformedRecordAbort:
		return "abort"
	default:
		return fmt.Sprintf("MalformedRecordPolicy(%d)", int(p))
	}
}

// ParseMalformedRecordPolicy parses "skip" or "abort" (case-insensitive).
func ParseMalformedRecordPolicy(s string) (MalformedRecordPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "skip", "":
		return MalformedRecordSkip, nil
	case "abort":
		return MalformedRecordAbort, nil
	default:
		return 0, fmt.Errorf("invalid malformed record policy %q (want skip or abort)", s)
	}
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithMalformedRecordPolicy sets the policy for undecodable records.
func WithMalformedRecordPolicy(p MalformedRecordPolicy) LoaderOption {
	return func(l *Loader) { l.malformed = p }
}

// Loader reconstructs Data and its existence Index from a store.
type Loader struct {
	store     kvstore.Store
	missing   MissingRecordPolicy
	malformed MalformedRecordPolicy
}

// NewLoader creates a Loader over store.
func NewLoader(store kvstore.Store, opts ...LoaderOption) *Loader {
	l := &Loader{
		store:     store,
		missing:   MissingRecordSkip,
		malformed: MalformedRecordSkip,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the top-level keys and then every listed record, quicksaves
// first, each list in stored order. Absent top-level keys mean a counter of 0
// and empty lists.
//
// The returned Index holds only ids that were both listed and resolvable, so
// a following Reconcile treats every skipped id as not stored.
func (l *Loader) Load() (Data, Index, error) {
	var data Data
	if err := l.readJSON(KeyCounterKey, &data.KeyCounter); err != nil {
		return Data{}, nil, err
	}
	var quickSaveIDs, historyIDs []int
	if err := l.readJSON(QuickSavesKey, &quickSaveIDs); err != nil {
		return Data{}, nil, err
	}
	if err := l.readJSON(HistoriesKey, &historyIDs); err != nil {
		return Data{}, nil, err
	}

	index := NewIndex()
	var err error
	if data.QuickSaves, err = l.loadRecords(quickSaveIDs, index); err != nil {
		return Data{}, nil, err
	}
	if data.Histories, err = l.loadRecords(historyIDs, index); err != nil {
		return Data{}, nil, err
	}

	// A counter that lags behind the stored ids would hand out an id that is
	// already in use.
	if ids := index.IDs(); len(ids) > 0 && data.KeyCounter <= ids[len(ids)-1] {
		slog.Warn("[history] key counter behind stored ids; advancing",
			"keyCounter", data.KeyCounter,
			"maxID", ids[len(ids)-1])
		data.KeyCounter = ids[len(ids)-1] + 1
	}

	return data, index, nil
}

// loadRecords resolves ids in order, adding every loaded id to index.
func (l *Loader) loadRecords(ids []int, index Index) ([]Record, error) {
	var records []Record
	for _, id := range ids {
		if index.Has(id) {
			slog.Warn("[history] id listed more than once; ignoring repeat", "id", id)
			continue
		}

		value, ok, err := l.store.Get(RecordKey(id))
		if err != nil {
			return nil, fmt.Errorf("%w: read record %d: %w", ErrStoreUnavailable, id, err)
		}
		if !ok {
			switch l.missing {
			case MissingRecordSkip:
				slog.Debug("[history] skipping missing record", "id", id)
				continue
			default:
				return nil, fmt.Errorf("record %d: unsupported missing record policy %d", id, l.missing)
			}
		}

		rec, err := DecodeRecord(value)
		if err == nil && rec.ID != id {
			err = fmt.Errorf("%w: key %s holds id %d", ErrMalformedRecord, RecordKey(id), rec.ID)
		}
		if err != nil {
			if l.malformed == MalformedRecordAbort {
				return nil, fmt.Errorf("record %d: %w", id, err)
			}
			slog.Warn("[history] skipping malformed record", "id", id, "error", err)
			continue
		}

		index.Add(id)
		records = append(records, rec)
	}
	return records, nil
}

// readJSON decodes the value under key into v, leaving v untouched when the
// key is absent.
func (l *Loader) readJSON(key string, v any) error {
	value, ok, err := l.store.Get(key)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrStoreUnavailable, key, err)
	}
	if !ok {
		return nil
	}
	if err := json.Unmarshal([]byte(value), v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedIndex, key, err)
	}
	return nil
}
