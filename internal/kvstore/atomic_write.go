package kvstore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// tempPattern must never end in valueFileSuffix, or Keys would report
// in-flight temp files.
const tempPattern = ".tmp-kv-*"

// testHookCrashBeforeRename runs, in tests, between the temp file being
// complete and it being moved into place.
var testHookCrashBeforeRename func()

// AtomicWriteFile replaces filename with data. Readers see either the old or
// the new contents: the data is written and synced to a temp file in the same
// directory, which is then renamed over filename, and the directory is
// synced so the rename itself survives a crash.
func AtomicWriteFile(filename string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	// The remove also runs while a panic unwinds.
	replaced := false
	defer func() {
		if replaced {
			return
		}
		if rmErr := os.Remove(tmpPath); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.Warn("[kvstore] failed to remove temp file", "path", tmpPath, "error", rmErr)
		}
	}()

	if err := writeAndClose(tmp, data, perm); err != nil {
		return err
	}
	if testHookCrashBeforeRename != nil {
		testHookCrashBeforeRename()
	}
	if err := replaceFile(tmpPath, filename); err != nil {
		return fmt.Errorf("replace %s: %w", filename, err)
	}
	replaced = true
	syncDir(dir)
	return nil
}

func writeAndClose(f *os.File, data []byte, perm os.FileMode) error {
	_, err := f.Write(data)
	if err == nil {
		err = f.Sync()
	}
	if err == nil {
		err = f.Chmod(perm)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	return nil
}

// syncDir flushes directory metadata. Not every platform can open a
// directory for syncing; failures are ignored.
func syncDir(dir string) {
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
}
