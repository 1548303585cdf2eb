package mmap

import "os"

// Fdatasync flushes the file data (and, where the platform needs it, the
// given mapping) to stable storage without forcing a metadata write.
//
// A failed sync cannot be retried safely: the kernel may already have marked
// the dirty pages clean. Callers should treat the file as damaged.
func Fdatasync(f *os.File, mapping []byte) error {
	return fdatasync(f, mapping)
}
