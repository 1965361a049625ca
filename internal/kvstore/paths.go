package kvstore

import (
	"fmt"
	"os"
	"path/filepath"
)

// To enable testing without polluting the user's config directory, the
// default path resolvers are variables that tests can override.
var (
	defaultDirectory    = DefaultDirectory
	defaultDatabasePath = DefaultDatabasePath
)

// SetTestPaths points the default store locations at dir.
// This should only be used in tests.
func SetTestPaths(dir string) {
	defaultDirectory = func() (string, error) { return filepath.Join(dir, "store"), nil }
	defaultDatabasePath = func() (string, error) { return filepath.Join(dir, "history.db"), nil }
}

// ResetPaths restores the default path resolvers.
// This should only be used in tests.
func ResetPaths() {
	defaultDirectory = DefaultDirectory
	defaultDatabasePath = DefaultDatabasePath
}

// baseDirectory returns {UserConfigDir}/canine.
func baseDirectory() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "canine"), nil
}

// DefaultDirectory returns the directory used by the file system backend
// when no explicit path is configured: {UserConfigDir}/canine/store
func DefaultDirectory() (string, error) {
	base, err := baseDirectory()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "store"), nil
}

// DefaultDatabasePath returns the database file used by the SQLite backend
// when no explicit path is configured: {UserConfigDir}/canine/history.db
func DefaultDatabasePath() (string, error) {
	base, err := baseDirectory()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "history.db"), nil
}
