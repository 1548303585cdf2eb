package globals

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// Compression selects how large node values are compressed.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("invalid compression %d", int(c))
	}
}

const DefaultCompressThreshold = 256

// Stored value layout: flags:uvarint rawSize:uvarint payload, where rawSize
// is the length of the msgpack payload before compression.
type valueFlags uint64

const (
	vfVerBit0 = valueFlags(1 << iota)
	vfVerBit1
	vfVerBit2
	vfVerBit3
	vfCompressionBit0
	vfCompressionBit1

	vfVerMask         = (vfVerBit0 | vfVerBit1 | vfVerBit2 | vfVerBit3)
	vfVer1            = vfVerBit0
	vfCompressionMask = (vfCompressionBit0 | vfCompressionBit1)
	vfZstd            = vfCompressionBit0
	vfLZ4             = vfCompressionBit1
	vfSupportedMask   = (vfVer1 | vfCompressionMask)
	vfDefault         = vfVer1

	minValueSize       = 3
	maxValueHeaderSize = binary.MaxVarintLen64 * 2
	maxRawValueSize    = 1 << 30 // sanity limit for corrupted headers
)

func (vf valueFlags) ver() valueFlags {
	return vf & vfVerMask
}

func (vf valueFlags) compression() Compression {
	switch vf & vfCompressionMask {
	case vfZstd:
		return CompressionZstd
	case vfLZ4:
		return CompressionLZ4
	default:
		return CompressionNone
	}
}

type valueCodec struct {
	compression Compression
	threshold   int
}

// encode serializes v with msgpack and wraps it into a stored value.
func (vc valueCodec) encode(v any) ([]byte, error) {
	payload, err := encodeMsgpack(valueBytesPool.Get().([]byte), v)
	if err != nil {
		return nil, err
	}
	defer releaseValueBytes(payload)

	flags := vfDefault
	data := payload
	if vc.compression != CompressionNone && len(payload) >= vc.threshold {
		if c, cflags := compressValue(vc.compression, payload); len(c) > 0 && len(c) < len(payload) {
			flags |= cflags
			data = c
		}
	}

	out := make([]byte, 0, maxValueHeaderSize+len(data))
	out = appendUvarint(out, uint64(flags))
	out = appendUvarint(out, uint64(len(payload)))
	return appendRaw(out, data), nil
}

type value struct {
	Flags   valueFlags
	RawSize int
	Data    []byte
}

func (vle *value) decode(data []byte) error {
	if len(data) < minValueSize {
		return dataErrf(data, 0, nil, "invalid value: at least %d bytes required", minValueSize)
	}
	d := makeByteDecoder(data)

	v, err := d.Uvarint()
	if err != nil {
		return err
	}
	if (v &^ uint64(vfSupportedMask)) != 0 {
		return dataErrf(data, 0, nil, "invalid value: unsupported flags %x", v)
	}
	vle.Flags = valueFlags(v)
	if vle.Flags.ver() != vfVer1 {
		return dataErrf(data, 0, nil, "invalid value: unsupported version %d", vle.Flags.ver())
	}
	if vle.Flags&vfCompressionMask == vfCompressionMask {
		return dataErrf(data, 0, nil, "invalid value: conflicting compression flags %x", v)
	}

	off := d.Off()
	vle.RawSize, err = d.Uvarinti()
	if err != nil {
		return err
	}
	if vle.RawSize > maxRawValueSize {
		return dataErrf(data, off, nil, "invalid value: raw size %d exceeds limit", vle.RawSize)
	}
	vle.Data = d.Buf
	if vle.Flags.compression() == CompressionNone && len(vle.Data) != vle.RawSize {
		return dataErrf(data, d.Off(), nil, "invalid value: got %d bytes of data, expected %d bytes", len(vle.Data), vle.RawSize)
	}
	return nil
}

// payload returns the uncompressed msgpack payload. It may alias the stored
// bytes.
func (vle *value) payload() ([]byte, error) {
	var out []byte
	var err error
	switch vle.Flags.compression() {
	case CompressionNone:
		return vle.Data, nil
	case CompressionZstd:
		dec := zstdDecoderPool.Get().(*zstd.Decoder)
		out, err = dec.DecodeAll(vle.Data, make([]byte, 0, vle.RawSize))
		zstdDecoderPool.Put(dec)
	case CompressionLZ4:
		out = make([]byte, vle.RawSize)
		var n int
		n, err = lz4.UncompressBlock(vle.Data, out)
		out = out[:max(n, 0)]
	}
	if err != nil {
		return nil, dataErrf(vle.Data, 0, err, "invalid value: %v decompression failed", vle.Flags.compression())
	}
	if len(out) != vle.RawSize {
		return nil, dataErrf(vle.Data, 0, nil, "invalid value: decompressed %d bytes, expected %d bytes", len(out), vle.RawSize)
	}
	return out, nil
}

func decodeStoredValue(data []byte, ptr any) error {
	var vle value
	if err := vle.decode(data); err != nil {
		return err
	}
	payload, err := vle.payload()
	if err != nil {
		return err
	}
	return decodeMsgpack(payload, ptr)
}

func compressValue(c Compression, src []byte) ([]byte, valueFlags) {
	switch c {
	case CompressionZstd:
		enc := zstdEncoderPool.Get().(*zstd.Encoder)
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(src, nil), vfZstd
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(src)))
		lc := lz4CompressorPool.Get().(*lz4.Compressor)
		defer lz4CompressorPool.Put(lc)
		n, err := lc.CompressBlock(src, dst)
		if err != nil || n == 0 {
			return nil, 0
		}
		return dst[:n], vfLZ4
	default:
		return nil, 0
	}
}

func encodeMsgpack(buf []byte, v any) ([]byte, error) {
	bb := bytesBuilder{buf[:0]}
	enc := msgpack.GetEncoder()
	enc.Reset(&bb)
	enc.SetSortMapKeys(true)
	enc.UseCompactInts(true)
	err := enc.Encode(v)
	msgpack.PutEncoder(enc)
	if err != nil {
		releaseValueBytes(bb.Buf)
		return nil, fmt.Errorf("failed to encode %T using msgpack: %w", v, err)
	}
	return bb.Buf, nil
}

func decodeMsgpack(buf []byte, ptr any) error {
	var r bytes.Reader
	r.Reset(buf)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	err := dec.Decode(ptr)
	msgpack.PutDecoder(dec)
	if err != nil {
		return dataErrf(buf, 0, err, "failed to decode msgpack into %T", ptr)
	}
	return nil
}
