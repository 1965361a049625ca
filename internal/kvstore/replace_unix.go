//go:build !windows

package kvstore

import "os"

func replaceFile(from, to string) error {
	return os.Rename(from, to)
}
