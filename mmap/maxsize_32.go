//go:build 386 || arm || ppc || mips || mipsle

package mmap

// MaxSize is the largest mapping a 32-bit address space can hold.
const MaxSize = 1<<31 - 1
