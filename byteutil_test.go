package mkey

import (
	"reflect"
	"testing"
)

func TestByteUtil_Grow(t *testing.T) {
	buf := ensureCapacity(nil, 3)
	if cap(buf) != 16 || len(buf) != 0 {
		t.Fatalf("ensureCapacity(nil, 3) = len %d cap %d, wanted len 0 cap 16", len(buf), cap(buf))
	}
	buf = append(buf, 1, 2)
	buf = ensureCapacity(buf, 40)
	if cap(buf) != 64 || !reflect.DeepEqual(buf, []byte{1, 2}) {
		t.Fatalf("ensureCapacity(buf, 40) = %x cap %d, wanted 0102 cap 64", buf, cap(buf))
	}

	off, buf := grow(buf, 3)
	if off != 2 || len(buf) != 5 {
		t.Fatalf("grow = (%d, len %d), wanted (2, len 5)", off, len(buf))
	}
}

func TestByteUtil_AppendHelpers(t *testing.T) {
	src := []byte{0xAA, 0xBB, 0xCC}
	buf := appendRaw(nil, src)
	if !reflect.DeepEqual(buf, src) {
		t.Fatalf("appendRaw = %x, wanted %x", buf, src)
	}
	buf = appendRaw(buf, nil)
	if !reflect.DeepEqual(buf, src) {
		t.Fatalf("appendRaw(nil) = %x, wanted %x", buf, src)
	}

	c := cloneBytes(src)
	c[0] = 0
	if src[0] != 0xAA {
		t.Fatalf("cloneBytes aliases its input")
	}
	if cloneBytes(nil) != nil {
		t.Fatalf("cloneBytes(nil) != nil")
	}
	if b := cloneBytes([]byte{}); b == nil || len(b) != 0 {
		t.Fatalf("cloneBytes([]byte{}) = %#v, wanted empty non-nil", b)
	}
}
