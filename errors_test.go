package mkey

import (
	"errors"
	"strings"
	"testing"
)

func TestDataError_ErrorAndUnwrap(t *testing.T) {
	t.Run("small data", func(t *testing.T) {
		err := dataErrf([]byte{0xAA, 0xBB}, 1, ErrOverflow, "oops")
		var de *DataError
		if !errors.As(err, &de) {
			t.Fatalf("err = %T, wanted *DataError", err)
		}
		if !errors.Is(err, ErrOverflow) {
			t.Fatalf("errors.Is(err, ErrOverflow) = false, wanted true")
		}
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("errors.Is(err, ErrMalformed) = false, wanted true")
		}
		deepEqual(t, err.Error(), "oops at 1: integer overflow: (2) aabb")
	})

	t.Run("without cause", func(t *testing.T) {
		err := dataErrf([]byte{0x02}, 0, nil, "bad %s", "lead")
		deepEqual(t, err.Error(), "bad lead at 0: (1) 02")
		if errors.Is(err, ErrOverflow) {
			t.Fatalf("errors.Is(err, ErrOverflow) = true, wanted false")
		}
	})

	t.Run("large data includes prefix+suffix", func(t *testing.T) {
		data := make([]byte, 200)
		for i := range data {
			data[i] = byte(i)
		}
		s := dataErrf(data, 0, nil, "oops").Error()
		if !strings.Contains(s, "(200)") || !strings.Contains(s, "...") || !strings.HasSuffix(s, "c7") {
			t.Fatalf("err.Error() = %q, wanted message with (200), ... and the tail", s)
		}
	})
}

func TestValueError(t *testing.T) {
	err := valueErrf(nil, ErrEmptyKey, "")
	deepEqual(t, err.Error(), "mkey: composite key requires at least one component")

	err = valueErrf(uint64(1)<<63, ErrOverflow, "%d does not fit", uint64(1)<<63)
	deepEqual(t, err.Error(), "mkey: 9223372036854775808 does not fit: integer overflow")
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("errors.Is(err, ErrOverflow) = false, wanted true")
	}
	if errors.Is(err, ErrMalformed) {
		t.Fatalf("errors.Is(err, ErrMalformed) = true, wanted false")
	}
}
