package mkey

import (
	"bytes"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Key is a composite key: a non-empty tuple of subscripts with its joined
// encoding cached.
//
// The zero Key holds no components and has a nil encoding. Constructors never
// return it; package globals uses it to address the root of a global.
type Key struct {
	comps []Scalar
	enc   []byte
}

// NewKey builds a key from native values, converting each one with ScalarOf.
// nil becomes empty text; a Key among the values is rejected.
func NewKey(values ...any) (Key, error) {
	if len(values) == 0 {
		return Key{}, valueErrf(values, ErrEmptyKey, "")
	}
	comps := make([]Scalar, len(values))
	for i, v := range values {
		sc, err := ScalarOf(v)
		if err != nil {
			return Key{}, err
		}
		comps[i] = sc
	}
	return makeKey(comps), nil
}

// MustKey is NewKey that panics on error.
func MustKey(values ...any) Key {
	k, err := NewKey(values...)
	if err != nil {
		panic(err)
	}
	return k
}

// KeyOf builds a key from subscripts.
func KeyOf(comps ...Scalar) (Key, error) {
	if len(comps) == 0 {
		return Key{}, valueErrf(comps, ErrEmptyKey, "")
	}
	for i, sc := range comps {
		if !sc.IsValid() {
			return Key{}, valueErrf(sc, ErrUnsupportedType, "component %d is an invalid Scalar", i)
		}
	}
	return makeKey(slices.Clone(comps)), nil
}

func makeKey(comps []Scalar) Key {
	n := len(comps) - 1
	for _, sc := range comps {
		n += len(sc.enc)
	}
	buf := make([]byte, 0, n)
	for i, sc := range comps {
		if i > 0 {
			buf = append(buf, Delimiter)
		}
		buf = appendRaw(buf, sc.enc)
	}
	return Key{comps: comps, enc: buf}
}

// EncodeComposite converts values like NewKey and returns the joined
// encoding.
func EncodeComposite(values ...any) ([]byte, error) {
	k, err := NewKey(values...)
	if err != nil {
		return nil, err
	}
	return k.enc, nil
}

// SplitComposite splits a composite encoding into component encodings. The
// returned slices alias b.
func SplitComposite(b []byte) ([][]byte, error) {
	if len(b) == 0 {
		return nil, dataErrf(b, 0, nil, "empty composite key")
	}
	parts := make([][]byte, 0, bytes.Count(b, []byte{Delimiter})+1)
	start := 0
	for {
		i := bytes.IndexByte(b[start:], Delimiter)
		end := len(b)
		if i >= 0 {
			end = start + i
		}
		if end == start {
			return nil, dataErrf(b, start, nil, "empty component in composite key")
		}
		parts = append(parts, b[start:end])
		if i < 0 {
			return parts, nil
		}
		start = end + 1
	}
}

// DecodeComposite decodes every component of a composite encoding.
func DecodeComposite(b []byte) ([]Scalar, error) {
	parts, err := SplitComposite(b)
	if err != nil {
		return nil, err
	}
	comps := make([]Scalar, len(parts))
	off := 0
	for i, part := range parts {
		comps[i], err = DecodeScalar(part)
		if err != nil {
			if de, ok := err.(*DataError); ok {
				return nil, dataErrf(b, off+de.Off, de.Err, "component %d: %s", i, de.Msg)
			}
			return nil, err
		}
		off += len(part) + 1
	}
	return comps, nil
}

// DecodeKey decodes a composite encoding into a Key. A single subscript
// encoding decodes into a one-component key.
func DecodeKey(b []byte) (Key, error) {
	comps, err := DecodeComposite(b)
	if err != nil {
		return Key{}, err
	}
	return Key{comps: comps, enc: cloneBytes(b)}, nil
}

func (k Key) IsZero() bool { return len(k.comps) == 0 }
func (k Key) Len() int     { return len(k.comps) }

// At returns the i-th component; it panics when i is out of range.
func (k Key) At(i int) Scalar {
	return k.comps[i]
}

func (k Key) Last() Scalar {
	return k.comps[len(k.comps)-1]
}

func (k Key) Scalars() []Scalar {
	return slices.Clone(k.comps)
}

// Values returns each component as int64 or string.
func (k Key) Values() []any {
	vals := make([]any, len(k.comps))
	for i, sc := range k.comps {
		vals[i] = sc.Value()
	}
	return vals
}

// Encoded returns the cached encoding. The caller must not modify it.
func (k Key) Encoded() []byte {
	return k.enc
}

func (k Key) AppendEncoded(buf []byte) []byte {
	return appendRaw(buf, k.enc)
}

func (k Key) Compare(other Key) int {
	return bytes.Compare(k.enc, other.enc)
}

func (k Key) Equal(other Key) bool {
	return bytes.Equal(k.enc, other.enc)
}

func (k Key) Hash() uint64 {
	return xxhash.Sum64(k.enc)
}

// Prefix returns the key made of the first n components; n must be between 1
// and Len().
func (k Key) Prefix(n int) Key {
	if n < 1 || n > len(k.comps) {
		panic("mkey: Key.Prefix out of range")
	}
	if n == len(k.comps) {
		return k
	}
	var size int
	for _, sc := range k.comps[:n] {
		size += len(sc.enc) + 1
	}
	return Key{comps: k.comps[:n:n], enc: k.enc[: size-1 : size-1]}
}

// Parent returns the key without its last component. A one-component key
// has no parent.
func (k Key) Parent() (Key, bool) {
	if len(k.comps) < 2 {
		return Key{}, false
	}
	return k.Prefix(len(k.comps) - 1), true
}

// Child returns the key extended by values. On the zero Key, it is NewKey.
func (k Key) Child(values ...any) (Key, error) {
	if len(values) == 0 {
		if k.IsZero() {
			return Key{}, valueErrf(values, ErrEmptyKey, "")
		}
		return k, nil
	}
	comps := make([]Scalar, len(k.comps), len(k.comps)+len(values))
	copy(comps, k.comps)
	for _, v := range values {
		sc, err := ScalarOf(v)
		if err != nil {
			return Key{}, err
		}
		comps = append(comps, sc)
	}
	return makeKey(comps), nil
}

// HasPrefix reports whether prefix's components are the leading components
// of k. Every key has the zero Key as a prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if prefix.IsZero() {
		return true
	}
	if !bytes.HasPrefix(k.enc, prefix.enc) {
		return false
	}
	return len(k.enc) == len(prefix.enc) || k.enc[len(prefix.enc)] == Delimiter
}

// String formats the key as ("users",42,"email").
func (k Key) String() string {
	var buf strings.Builder
	buf.WriteByte('(')
	for i, sc := range k.comps {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(sc.String())
	}
	buf.WriteByte(')')
	return buf.String()
}

// SortKeys sorts in encoded order.
func SortKeys(keys []Key) {
	slices.SortFunc(keys, Key.Compare)
}
