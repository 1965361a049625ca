package history

import (
	"sort"
)

// Index is a set of record ids. As the Manager's existence index it records
// which ids are physically present in the store as of the last save or load.
//
// The zero value (nil) is an empty, read-only set; use NewIndex before Add.
type Index map[int]struct{}

// NewIndex returns a set holding ids.
func NewIndex(ids ...int) Index {
	x := make(Index, len(ids))
	for _, id := range ids {
		x[id] = struct{}{}
	}
	return x
}

// Has reports whether id is in the set.
func (x Index) Has(id int) bool {
	_, ok := x[id]
	return ok
}

// Add inserts id.
func (x Index) Add(id int) {
	x[id] = struct{}{}
}

// Len returns the number of ids.
func (x Index) Len() int { return len(x) }

// Union returns a new set holding every id in x or other.
func (x Index) Union(other Index) Index {
	out := make(Index, len(x)+len(other))
	for id := range x {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Difference returns a new set holding the ids in x that are not in other.
func (x Index) Difference(other Index) Index {
	out := make(Index)
	for id := range x {
		if !other.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Equal reports whether both sets hold exactly the same ids.
func (x Index) Equal(other Index) bool {
	if len(x) != len(other) {
		return false
	}
	for id := range x {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (x Index) Clone() Index {
	return x.Union(nil)
}

// IDs returns the ids in ascending order.
func (x Index) IDs() []int {
	ids := make([]int, 0, len(x))
	for id := range x {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
