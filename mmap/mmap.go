// Package mmap maps files into memory and syncs them to disk using the
// cheapest call each platform offers.
package mmap

import (
	"errors"
	"fmt"
	"os"
)

type Options uint

const (
	// Writable maps the file read-write. The default is read-only.
	Writable Options = 1 << 0

	// SequentialAccess asks for aggressive read-ahead (MADV_SEQUENTIAL).
	// Do not combine with RandomAccess.
	SequentialAccess Options = 1 << 1

	// RandomAccess disables most read-ahead (MADV_RANDOM).
	RandomAccess Options = 1 << 2

	// Prefault loads the whole mapping up front. Only honored on Linux.
	Prefault Options = 1 << 3
)

var ErrTooLarge = errors.New("file too large to map")

func (o Options) Has(v Options) bool {
	return o&v != 0
}

// Mmap maps the first size bytes of f. Only offset 0 is supported.
func Mmap(f *os.File, offset, size int, opt Options) ([]byte, error) {
	if offset != 0 {
		panic("non-zero offset not yet supported")
	}
	if int64(size) > MaxSize {
		return nil, ErrTooLarge
	}
	return mmap(f, size, opt)
}

// Munmap releases a slice returned by Mmap.
func Munmap(b []byte) error {
	return munmap(b)
}

// ReadFile maps the whole file read-only for the duration of fn. The data
// must not be retained after fn returns. An empty file yields nil data.
func ReadFile(path string, opt Options, fn func(data []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	size := st.Size()
	if size == 0 {
		return fn(nil)
	}
	if size > MaxSize {
		return fmt.Errorf("%s: %w (%d bytes)", path, ErrTooLarge, size)
	}
	data, err := mmap(f, int(size), opt&^Writable)
	if err != nil {
		return fmt.Errorf("mmap %s: %w", path, err)
	}
	defer munmap(data)
	return fn(data)
}
