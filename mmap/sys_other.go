//go:build unix && !linux && !openbsd

package mmap

import "os"

const mapPopulate = 0

func fdatasync(f *os.File, _ []byte) error {
	return f.Sync()
}
