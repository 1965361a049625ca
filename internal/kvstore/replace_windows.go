//go:build windows

package kvstore

import "golang.org/x/sys/windows"

// replaceFile uses MoveFileEx so an existing destination is replaced in one
// step, with the move flushed before it returns.
func replaceFile(from, to string) error {
	src, err := windows.UTF16PtrFromString(from)
	if err != nil {
		return err
	}
	dst, err := windows.UTF16PtrFromString(to)
	if err != nil {
		return err
	}
	return windows.MoveFileEx(src, dst, windows.MOVEFILE_REPLACE_EXISTING|windows.MOVEFILE_WRITE_THROUGH)
}
