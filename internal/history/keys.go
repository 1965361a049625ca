package history

import (
	"strconv"
	"strings"
)

// Store keys. These must match the web client's local storage layout.
const (
	QuickSavesKey   = "wandbox.quicksaves"
	HistoriesKey    = "wandbox.histories"
	KeyCounterKey   = "wandbox.keycounter"
	RecordKeyPrefix = "wd."
)

// RecordKey returns the store key holding the record with the given id.
func RecordKey(id int) string {
	return RecordKeyPrefix + strconv.Itoa(id)
}

// parseRecordKey extracts the id from a record key.
func parseRecordKey(key string) (int, bool) {
	rest, ok := strings.CutPrefix(key, RecordKeyPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	id, err := strconv.Atoi(rest)
	if err != nil || id < 0 || strconv.Itoa(id) != rest {
		return 0, false
	}
	return id, true
}
