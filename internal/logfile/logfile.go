// Package logfile provides a size-rotated log file for the slog handlers
// configured by the CLI.
package logfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
)

const (
	// DefaultMaxSizeMB is the size at which the active file is rotated.
	DefaultMaxSizeMB = 10
	// DefaultMaxBackups is how many rotated files are kept.
	DefaultMaxBackups = 5
)

// RotatingWriter appends to a file and rotates it once a write would push it
// past the size limit: the active file becomes <path>.1, .1 becomes .2, and
// so on, keeping at most maxBackups rotated files. A single write is never
// split between files.
//
// Safe for concurrent use.
type RotatingWriter struct {
	mu         sync.Mutex
	path       string
	maxSize    int64
	maxBackups int
	size       int64
	file       *os.File
}

// Option configures a RotatingWriter.
type Option func(*RotatingWriter)

// WithMaxSizeMB sets the rotation threshold in megabytes. Values below 1 are
// raised to 1.
func WithMaxSizeMB(mb int) Option {
	return func(w *RotatingWriter) {
		w.maxSize = int64(max(mb, 1)) << 20
	}
}

// WithMaxBackups sets how many rotated files are kept. Zero keeps none, so
// rotating simply starts the file over; negative values mean the default.
func WithMaxBackups(n int) Option {
	return func(w *RotatingWriter) {
		if n >= 0 {
			w.maxBackups = n
		}
	}
}

// withMaxSizeBytes is used by tests to rotate on tiny files.
func withMaxSizeBytes(n int64) Option {
	return func(w *RotatingWriter) {
		w.maxSize = n
	}
}

// Open opens path for appending, creating it and its parent directory as
// needed.
func Open(path string, opts ...Option) (*RotatingWriter, error) {
	w := &RotatingWriter{
		path:       path,
		maxSize:    DefaultMaxSizeMB << 20,
		maxBackups: DefaultMaxBackups,
	}
	for _, opt := range opts {
		opt(w)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("logfile: create directory: %w", err)
		}
	}
	if err := w.openLocked(); err != nil {
		return nil, err
	}
	return w, nil
}

// Path returns the active file path.
func (w *RotatingWriter) Path() string {
	return w.path
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	if w.size > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotateLocked(); err != nil {
			return 0, fmt.Errorf("logfile: rotate: %w", err)
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Close closes the active file. Further writes fail with os.ErrClosed.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingWriter) openLocked() error {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("logfile: open: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("logfile: stat: %w", err)
	}
	w.file, w.size = f, info.Size()
	return nil
}

func (w *RotatingWriter) rotateLocked() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil

	backups := w.backups()
	slices.Reverse(backups)
	for _, n := range backups {
		if n >= w.maxBackups {
			_ = os.Remove(w.backupPath(n))
			continue
		}
		_ = os.Rename(w.backupPath(n), w.backupPath(n+1))
	}
	if w.maxBackups > 0 {
		_ = os.Rename(w.path, w.backupPath(1))
	} else {
		_ = os.Remove(w.path)
	}
	return w.openLocked()
}

func (w *RotatingWriter) backupPath(n int) string {
	return w.path + "." + strconv.Itoa(n)
}

// backups returns the numbers of existing rotated files, ascending.
func (w *RotatingWriter) backups() []int {
	entries, err := os.ReadDir(filepath.Dir(w.path))
	if err != nil {
		return nil
	}
	prefix := filepath.Base(w.path) + "."
	var nums []int
	for _, e := range entries {
		suffix, ok := strings.CutPrefix(e.Name(), prefix)
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(suffix); err == nil && n >= 1 {
			nums = append(nums, n)
		}
	}
	slices.Sort(nums)
	return nums
}

var _ io.WriteCloser = (*RotatingWriter)(nil)
