package kvstore

import (
	"fmt"
	"sort"
)

// BackendFactory creates a Store. An empty path selects the backend default.
type BackendFactory func(path string) (Store, error)

// BackendRegistry maps backend names to their factory functions.
var BackendRegistry = make(map[string]BackendFactory)

func init() {
	// The file system backend is the default.
	BackendRegistry["fs"] = func(path string) (Store, error) {
		if path == "" {
			var err error
			if path, err = defaultDirectory(); err != nil {
				return nil, err
			}
		}
		return NewFileSystemStore(path)
	}

	BackendRegistry["sqlite"] = func(path string) (Store, error) {
		if path == "" {
			var err error
			if path, err = defaultDatabasePath(); err != nil {
				return nil, err
			}
		}
		return NewSQLiteStore(path)
	}

	// Nothing survives the process; useful for tests and dry runs.
	BackendRegistry["memory"] = func(string) (Store, error) {
		return NewMemoryStore(), nil
	}
}

// Open creates a store using the named backend.
func Open(name, path string) (Store, error) {
	factory, ok := BackendRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown storage backend: %s (available: %v)", name, BackendNames())
	}
	return factory(path)
}

// BackendNames returns the registered backend names in sorted order.
func BackendNames() []string {
	names := make([]string, 0, len(BackendRegistry))
	for name := range BackendRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
