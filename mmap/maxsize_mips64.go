//go:build mips64 || mips64le

package mmap

// MaxSize is the largest mapping this architecture can address (512 GiB).
const MaxSize = 1 << 39
