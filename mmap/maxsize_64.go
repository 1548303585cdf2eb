//go:build amd64 || arm64 || loong64 || ppc64 || ppc64le || riscv64 || s390x

package mmap

// MaxSize is the largest mapping this architecture can address (256 TiB).
const MaxSize = 1<<48 - 1
