package mkey

import (
	"encoding"
	"slices"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	_ msgpack.CustomEncoder      = Key{}
	_ msgpack.CustomDecoder      = (*Key)(nil)
	_ encoding.BinaryMarshaler   = Key{}
	_ encoding.BinaryUnmarshaler = (*Key)(nil)
	_ encoding.TextMarshaler     = Key{}
	_ encoding.TextUnmarshaler   = (*Key)(nil)

	_ msgpack.CustomEncoder      = Scalar{}
	_ msgpack.CustomDecoder      = (*Scalar)(nil)
	_ encoding.BinaryMarshaler   = Scalar{}
	_ encoding.BinaryUnmarshaler = (*Scalar)(nil)
	_ encoding.TextMarshaler     = Scalar{}
	_ encoding.TextUnmarshaler   = (*Scalar)(nil)
)

// EncodeMsgpack writes the key as msgpack bin holding its encoding; the zero
// Key is written as nil.
func (k Key) EncodeMsgpack(enc *msgpack.Encoder) error {
	if k.IsZero() {
		return enc.EncodeNil()
	}
	return enc.EncodeBytes(k.enc)
}

func (k *Key) DecodeMsgpack(dec *msgpack.Decoder) error {
	raw, err := dec.DecodeBytes()
	if err != nil {
		return err
	}
	if raw == nil {
		*k = Key{}
		return nil
	}
	return k.UnmarshalBinary(raw)
}

func (k Key) MarshalBinary() ([]byte, error) {
	return slices.Clone(k.enc), nil
}

func (k *Key) UnmarshalBinary(data []byte) error {
	v, err := DecodeKey(data)
	if err != nil {
		return err
	}
	*k = v
	return nil
}

func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Key) UnmarshalText(text []byte) error {
	v, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

func (sc Scalar) EncodeMsgpack(enc *msgpack.Encoder) error {
	if !sc.IsValid() {
		return enc.EncodeNil()
	}
	return enc.EncodeBytes(sc.enc)
}

func (sc *Scalar) DecodeMsgpack(dec *msgpack.Decoder) error {
	raw, err := dec.DecodeBytes()
	if err != nil {
		return err
	}
	if raw == nil {
		*sc = Scalar{}
		return nil
	}
	return sc.UnmarshalBinary(raw)
}

func (sc Scalar) MarshalBinary() ([]byte, error) {
	return slices.Clone(sc.enc), nil
}

func (sc *Scalar) UnmarshalBinary(data []byte) error {
	v, err := DecodeScalar(data)
	if err != nil {
		return err
	}
	*sc = v
	return nil
}

func (sc Scalar) MarshalText() ([]byte, error) {
	if !sc.IsValid() {
		return nil, valueErrf(sc, ErrUnsupportedType, "invalid Scalar")
	}
	return []byte(sc.String()), nil
}

func (sc *Scalar) UnmarshalText(text []byte) error {
	v, err := ParseScalar(string(text))
	if err != nil {
		return err
	}
	*sc = v
	return nil
}
