//go:build !unix

package fs

import "os"

type devIno struct{}

func fileDevIno(os.FileInfo) (devIno, bool) {
	return devIno{}, false
}
