//go:build windows

package localstore

import (
	"fmt"
	"os"
)

// Windows has no cheap stable file id from os.FileInfo; fall back to a
// name+size identity, which breaks across renames but keeps the walker
// usable for development.
func fileID(info os.FileInfo) string {
	return fmt.Sprintf("name-%s-%d", info.Name(), info.Size())
}
