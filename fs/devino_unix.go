//go:build unix

package fs

import (
	"os"
	"syscall"
)

type devIno struct {
	dev, ino uint64
}

// fileDevIno reports the device and inode of a file
// that has more than one hard link.
func fileDevIno(info os.FileInfo) (devIno, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok || st.Nlink < 2 {
		return devIno{}, false
	}
	return devIno{dev: uint64(st.Dev), ino: uint64(st.Ino)}, true
}
