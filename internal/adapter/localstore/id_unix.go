//go:build unix

package localstore

import (
	"fmt"
	"os"
	"syscall"
)

// fileID derives a stable identity from the inode, so moves and renames
// within the store keep the same id.
func fileID(info os.FileInfo) string {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return fmt.Sprintf("%x-%x", st.Dev, st.Ino)
	}
	return fmt.Sprintf("name-%s-%d", info.Name(), info.Size())
}
