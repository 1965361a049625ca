package kvstore

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const (
	valueFileSuffix = ".kv"
	lockFileName    = ".lock"
)

// FileSystemStore implements Store using one file per key inside a directory.
//
// The directory is locked exclusively for the lifetime of the store, so that
// at most one process writes to it at a time.
type FileSystemStore struct {
	mu       sync.Mutex
	dir      string
	lockFile *os.File
}

// NewFileSystemStore opens (creating if necessary) the store rooted at dir.
// It acquires an exclusive lock on the directory to prevent concurrent access.
func NewFileSystemStore(dir string) (*FileSystemStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory cannot be empty")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	lockFile, err := acquireFileLock(filepath.Join(dir, lockFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to acquire store lock: %w", err)
	}

	return &FileSystemStore{
		dir:      dir,
		lockFile: lockFile,
	}, nil
}

// Dir returns the directory backing the store.
func (s *FileSystemStore) Dir() string { return s.dir }

// Get retrieves the value for key.
// It returns ("", false, nil) if the key does not exist.
func (s *FileSystemStore) Get(key string) (string, bool, error) {
	path, err := s.keyPath(key)
	if err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lockFile == nil {
		return "", false, ErrClosed
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return string(data), true, nil
}

// Set atomically replaces the value for key.
func (s *FileSystemStore) Set(key, value string) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lockFile == nil {
		return ErrClosed
	}

	if err := AtomicWriteFile(path, []byte(value), 0644); err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

// Remove deletes key. A missing key is not an error.
func (s *FileSystemStore) Remove(key string) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lockFile == nil {
		return ErrClosed
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove key %q: %w", key, err)
	}
	return nil
}

// Close releases the directory lock.
func (s *FileSystemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lockFile == nil {
		return nil
	}

	if err := releaseFileLock(s.lockFile); err != nil {
		return fmt.Errorf("failed to release store lock: %w", err)
	}

	s.lockFile = nil
	return nil
}

// Keys returns every key stored in the directory, in sorted order.
func (s *FileSystemStore) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lockFile == nil {
		return nil, ErrClosed
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if key, ok := keyFromFileName(entry.Name()); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// keyPath maps a key onto a file inside the store directory. Keys are
// query-escaped so that separators and reserved characters can never
// escape the directory.
func (s *FileSystemStore) keyPath(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, url.QueryEscape(key)+valueFileSuffix), nil
}

// keyFromFileName reverses keyPath for a bare file name. It reports false
// for files that are not value files (lock and temporary files).
func keyFromFileName(name string) (string, bool) {
	if !strings.HasSuffix(name, valueFileSuffix) {
		return "", false
	}
	key, err := url.QueryUnescape(strings.TrimSuffix(name, valueFileSuffix))
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

// Ensure FileSystemStore implements Store at compile time
var (
	_ Store  = (*FileSystemStore)(nil)
	_ Lister = (*FileSystemStore)(nil)
)
