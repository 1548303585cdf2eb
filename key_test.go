package mkey

import (
	"bytes"
	"errors"
	"slices"
	"testing"
)

func TestEncodeComposite(t *testing.T) {
	tests := []struct {
		values   []any
		expected string
	}{
		{[]any{"users"}, "ff7573657273"},
		{[]any{"users", 42}, "ff7573657273 00 4143"},
		{[]any{"users", 42, "email"}, "ff7573657273 00 4143 00 ff656d61696c"},
		{[]any{0, -1}, "40 00 3efdff"},
		{[]any{"users", nil}, "ff7573657273 00 ff"},
		{[]any{nil}, "ff"},
		{[]any{"a\x00b", 1}, "ff6101ff62 00 4102"},
	}
	for _, tt := range tests {
		encoded, err := EncodeComposite(tt.values...)
		if err != nil {
			t.Errorf("** EncodeComposite(%v) failed: %v", tt.values, err)
			continue
		}
		if expected := x(tt.expected); !bytes.Equal(encoded, expected) {
			t.Errorf("** EncodeComposite(%v) = %x, wanted %x", tt.values, encoded, expected)
		}
	}
}

func TestKey_Hierarchy(t *testing.T) {
	keys := []Key{
		MustKey("accounts", 100),
		MustKey("users"),
		MustKey("users", 1),
		MustKey("users", 1, "email"),
		MustKey("users", 1, "name"),
		MustKey("users", 2),
		MustKey("users", 2, "email"),
		MustKey("users", 10),
		MustKey("users", "admin"),
		MustKey("users\x00"),
		MustKey("usersX"),
	}
	for i := range keys {
		for j := range keys {
			if got, want := keys[i].Compare(keys[j]), sign(i-j); got != want {
				t.Errorf("** %v.Compare(%v) = %d, wanted %d", keys[i], keys[j], got, want)
			}
		}
	}

	shuffled := slices.Clone(keys)
	slices.Reverse(shuffled)
	SortKeys(shuffled)
	for i := range keys {
		if !shuffled[i].Equal(keys[i]) {
			t.Errorf("** SortKeys position %d = %v, wanted %v", i, shuffled[i], keys[i])
		}
	}
}

func TestKey_MixedOrder(t *testing.T) {
	// Integers sort before text at every level.
	keys := []Key{
		MustKey(-100, "z"),
		MustKey(-5),
		MustKey(-5, 0),
		MustKey(0),
		MustKey(0, ""),
		MustKey(99),
		MustKey(100, -1),
		MustKey(""),
		MustKey("", 1),
		MustKey("0a"),
		MustKey("a", -1),
		MustKey("a", 0),
		MustKey("a", "a"),
	}
	for i := 0; i+1 < len(keys); i++ {
		if keys[i].Compare(keys[i+1]) >= 0 {
			t.Errorf("** %v is not below %v", keys[i], keys[i+1])
		}
	}
}

func TestKey_Errors(t *testing.T) {
	_, err := NewKey()
	if !errors.Is(err, ErrEmptyKey) {
		t.Errorf("** NewKey() err = %v, wanted ErrEmptyKey", err)
	}
	_, err = NewKey("users", MustKey("nested"))
	if !errors.Is(err, ErrNestedKey) {
		t.Errorf("** NewKey with a Key err = %v, wanted ErrNestedKey", err)
	}
	_, err = EncodeComposite("users", []int{1})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("** EncodeComposite with a slice err = %v, wanted ErrUnsupportedType", err)
	}
	_, err = KeyOf()
	if !errors.Is(err, ErrEmptyKey) {
		t.Errorf("** KeyOf() err = %v, wanted ErrEmptyKey", err)
	}
	_, err = KeyOf(Int(1), Scalar{})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("** KeyOf with an invalid scalar err = %v, wanted ErrUnsupportedType", err)
	}
	assertPanics(t, func() {
		MustKey()
	})
}

func TestKeyOf(t *testing.T) {
	comps := []Scalar{Text("users"), Int(42)}
	k := must(KeyOf(comps...))
	comps[1] = Int(43)
	if !k.Equal(MustKey("users", 42)) {
		t.Fatalf("KeyOf = %v, wanted (\"users\",42)", k)
	}
}

func TestSplitComposite(t *testing.T) {
	parts := must(SplitComposite(x("ff7573657273 00 4143 00 3efdff")))
	deepEqual(t, parts, [][]byte{x("ff7573657273"), x("4143"), x("3efdff")})

	parts = must(SplitComposite(x("40")))
	deepEqual(t, parts, [][]byte{x("40")})

	for _, input := range []string{"", "00", "4102 00", "00 4102", "4102 00 00 ff", "0000"} {
		_, err := SplitComposite(x(input))
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("** SplitComposite(%s) err = %v, wanted ErrMalformed", input, err)
		}
	}
}

func TestDecodeComposite(t *testing.T) {
	comps := must(DecodeComposite(x("ff7573657273 00 4143 00 ff656d61696c")))
	deepEqual(t, len(comps), 3)
	deepEqual(t, comps[0].Value(), any("users"))
	deepEqual(t, comps[1].Value(), any(int64(42)))
	deepEqual(t, comps[2].Value(), any("email"))

	_, err := DecodeComposite(x("4102 00 ff6101"))
	var de *DataError
	if !errors.As(err, &de) {
		t.Fatalf("DecodeComposite err = %v, wanted *DataError", err)
	}
	if de.Off != 5 {
		t.Errorf("** DataError.Off = %d, wanted 5", de.Off)
	}
	if len(de.Data) != 6 {
		t.Errorf("** DataError.Data = %x, wanted the whole composite", de.Data)
	}

	_, err = DecodeComposite(x("4102 00 02"))
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("** DecodeComposite with a bad lead byte err = %v, wanted ErrMalformed", err)
	}
}

func TestDecodeKey(t *testing.T) {
	for _, k := range []Key{
		MustKey("users", 42, "email"),
		MustKey(0),
		MustKey(""),
		MustKey("a\x00\x01b", -1_000_000, 1_000_000),
	} {
		enc := slices.Clone(k.Encoded())
		decoded, err := DecodeKey(enc)
		if err != nil {
			t.Errorf("** DecodeKey(%x) failed: %v", enc, err)
			continue
		}
		enc[0] ^= 0xFF
		if !decoded.Equal(k) || decoded.Len() != k.Len() {
			t.Errorf("** DecodeKey(%x) = %v, wanted %v", k.Encoded(), decoded, k)
		}
		deepEqual(t, decoded.Values(), k.Values())
	}

	k := must(DecodeKey(EncodeInt(7)))
	if k.Len() != 1 || k.At(0).Int64() != 7 {
		t.Errorf("** DecodeKey of a bare subscript = %v, wanted (7)", k)
	}
}

func TestKey_Navigation(t *testing.T) {
	k := MustKey("users", 42, "email")
	deepEqual(t, k.Len(), 3)
	deepEqual(t, k.Last().Str(), "email")
	deepEqual(t, k.At(1).Int64(), int64(42))

	p2 := k.Prefix(2)
	if !p2.Equal(MustKey("users", 42)) {
		t.Errorf("** Prefix(2) = %v, wanted (\"users\",42)", p2)
	}
	if !k.Prefix(3).Equal(k) {
		t.Errorf("** Prefix(3) = %v, wanted %v", k.Prefix(3), k)
	}
	assertPanics(t, func() { k.Prefix(0) })
	assertPanics(t, func() { k.Prefix(4) })

	parent, ok := k.Parent()
	if !ok || !parent.Equal(p2) {
		t.Errorf("** Parent() = (%v, %v), wanted (%v, true)", parent, ok, p2)
	}
	if _, ok := MustKey("users").Parent(); ok {
		t.Errorf("** a one-component key must have no parent")
	}

	// Extending a prefix must not clobber the original key.
	child := must(p2.Child("name"))
	if !child.Equal(MustKey("users", 42, "name")) {
		t.Errorf("** Child = %v, wanted (\"users\",42,\"name\")", child)
	}
	if !k.Equal(MustKey("users", 42, "email")) {
		t.Errorf("** original key changed to %v", k)
	}
	if got := must(p2.Child()); !got.Equal(p2) {
		t.Errorf("** Child() = %v, wanted %v", got, p2)
	}

	root := Key{}
	if got := must(root.Child("users", 1)); !got.Equal(MustKey("users", 1)) {
		t.Errorf("** Key{}.Child = %v, wanted (\"users\",1)", got)
	}
	if _, err := root.Child(); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("** Key{}.Child() err = %v, wanted ErrEmptyKey", err)
	}
	if _, err := k.Child(MustKey(1)); !errors.Is(err, ErrNestedKey) {
		t.Errorf("** Child(Key) err = %v, wanted ErrNestedKey", err)
	}
}

func TestKey_HasPrefix(t *testing.T) {
	k := MustKey("users", 42, "email")
	tests := []struct {
		prefix Key
		want   bool
	}{
		{Key{}, true},
		{MustKey("users"), true},
		{MustKey("users", 42), true},
		{k, true},
		{MustKey("user"), false},
		{MustKey("users", 4), false},
		{MustKey("users", 42, "email", 1), false},
		{MustKey("accounts"), false},
	}
	for _, tt := range tests {
		if got := k.HasPrefix(tt.prefix); got != tt.want {
			t.Errorf("** %v.HasPrefix(%v) = %v, wanted %v", k, tt.prefix, got, tt.want)
		}
	}
}

func TestKey_String(t *testing.T) {
	deepEqual(t, MustKey("users", 42, "email").String(), `("users",42,"email")`)
	deepEqual(t, MustKey(-1).String(), `(-1)`)
	deepEqual(t, MustKey("a\x00\"").String(), `("a\x00\"")`)
	deepEqual(t, Key{}.String(), `()`)
}

func TestKey_Hash(t *testing.T) {
	a := MustKey("users", 42)
	b := must(DecodeKey(slices.Clone(a.Encoded())))
	if a.Hash() != b.Hash() {
		t.Errorf("** equal keys hash differently")
	}
	if a.Hash() == MustKey("users", 43).Hash() {
		t.Errorf("** distinct keys hash equally")
	}

	if got := a.AppendEncoded([]byte{0xAA}); !bytes.Equal(got[1:], a.Encoded()) || got[0] != 0xAA {
		t.Errorf("** AppendEncoded = %x", got)
	}
}
