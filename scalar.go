package mkey

import (
	"bytes"
	"slices"
	"strconv"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

// Kind tells which variant a Scalar holds.
type Kind uint8

const (
	Invalid Kind = iota
	IntKind
	TextKind
)

func (k Kind) String() string {
	switch k {
	case IntKind:
		return "int"
	case TextKind:
		return "text"
	default:
		return "invalid"
	}
}

// Scalar is a single subscript: an integer or a text string. It is an
// immutable value; its encoding is computed once by the constructor.
//
// The zero Scalar is invalid; use Int, Text or ScalarOf.
type Scalar struct {
	kind Kind
	n    int64
	s    string
	enc  []byte
}

// Int returns an integer subscript.
func Int(n int64) Scalar {
	return Scalar{kind: IntKind, n: n, enc: EncodeInt(n)}
}

// Text returns a text subscript. Unlike ScalarOf, it never turns numeric
// strings into integers.
func Text(s string) Scalar {
	return Scalar{kind: TextKind, s: s, enc: EncodeText(s)}
}

// DecodeScalar decodes a single subscript, choosing the variant by the
// leading byte.
func DecodeScalar(b []byte) (Scalar, error) {
	if len(b) == 0 {
		return Scalar{}, dataErrf(b, 0, nil, "empty subscript")
	}
	switch lead := b[0]; {
	case lead == TextPrefix:
		s, err := DecodeText(b)
		if err != nil {
			return Scalar{}, err
		}
		return Scalar{kind: TextKind, s: s, enc: cloneBytes(b)}, nil
	case isIntLead(lead):
		n, err := DecodeInt(b)
		if err != nil {
			return Scalar{}, err
		}
		return Scalar{kind: IntKind, n: n, enc: cloneBytes(b)}, nil
	default:
		return Scalar{}, dataErrf(b, 0, nil, "unrecognized subscript lead byte 0x%02x", lead)
	}
}

// EncodeScalar converts v with ScalarOf and returns its encoding.
func EncodeScalar(v any) ([]byte, error) {
	sc, err := ScalarOf(v)
	if err != nil {
		return nil, err
	}
	return slices.Clone(sc.enc), nil
}

func (sc Scalar) Kind() Kind    { return sc.kind }
func (sc Scalar) IsValid() bool { return sc.kind != Invalid }
func (sc Scalar) IsInt() bool   { return sc.kind == IntKind }
func (sc Scalar) IsText() bool  { return sc.kind == TextKind }

// Int64 returns the integer value, or 0 for text.
func (sc Scalar) Int64() int64 {
	return sc.n
}

// Str returns the text value, or the decimal form of an integer.
func (sc Scalar) Str() string {
	if sc.kind == IntKind {
		return strconv.FormatInt(sc.n, 10)
	}
	return sc.s
}

// Value returns int64 or string.
func (sc Scalar) Value() any {
	switch sc.kind {
	case IntKind:
		return sc.n
	case TextKind:
		return sc.s
	default:
		return nil
	}
}

func (sc Scalar) IsZero() bool     { return sc.kind == IntKind && sc.n == 0 }
func (sc Scalar) IsNegative() bool { return sc.kind == IntKind && sc.n < 0 }
func (sc Scalar) IsPositive() bool { return sc.kind == IntKind && sc.n > 0 }
func (sc Scalar) IsEmpty() bool    { return sc.kind == TextKind && sc.s == "" }

// Len returns the length of the text in bytes, or the number of characters
// in the decimal form of an integer.
func (sc Scalar) Len() int {
	return len(sc.Str())
}

func (sc Scalar) IsValidUTF8() bool {
	return sc.kind != TextKind || utf8.ValidString(sc.s)
}

// Encoded returns the cached encoding. The caller must not modify it.
func (sc Scalar) Encoded() []byte {
	return sc.enc
}

func (sc Scalar) AppendEncoded(buf []byte) []byte {
	return appendRaw(buf, sc.enc)
}

// Compare orders scalars the way their encodings sort.
func (sc Scalar) Compare(other Scalar) int {
	return bytes.Compare(sc.enc, other.enc)
}

func (sc Scalar) Equal(other Scalar) bool {
	return bytes.Equal(sc.enc, other.enc)
}

// CompareKey compares a bare subscript with a composite key. A subscript
// equal to the key's first component sorts before any longer key.
func (sc Scalar) CompareKey(k Key) int {
	return bytes.Compare(sc.enc, k.enc)
}

func (sc Scalar) Hash() uint64 {
	return xxhash.Sum64(sc.enc)
}

// String returns the decimal integer or the Go-quoted text, matching the
// syntax accepted by ParseKey.
func (sc Scalar) String() string {
	switch sc.kind {
	case IntKind:
		return strconv.FormatInt(sc.n, 10)
	case TextKind:
		return strconv.Quote(sc.s)
	default:
		return "<invalid>"
	}
}

// SortScalars sorts in encoded order.
func SortScalars(scs []Scalar) {
	slices.SortFunc(scs, Scalar.Compare)
}

// Compare is the byte-wise comparison every encoded form is designed for.
func Compare(a, b []byte) int {
	return bytes.Compare(a, b)
}
