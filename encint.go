package mkey

import "math"

// AppendInt appends the order-preserving encoding of n to buf.
func AppendInt(buf []byte, n int64) []byte {
	if n == 0 {
		return append(buf, ZeroMarker)
	}

	neg := n < 0
	var mag uint64
	if neg {
		mag = uint64(-(n + 1)) + 1 // MinInt64 has no positive counterpart
	} else {
		mag = uint64(n)
	}

	var pairs [maxDigitPairs]byte
	i := len(pairs)
	for mag > 0 {
		i--
		pairs[i] = byte(mag % 100)
		mag /= 100
	}
	digits := pairs[i:]
	np := len(digits)

	if neg {
		off, buf := grow(buf, np+2)
		buf[off] = exponentBias - 1 - byte(np)
		for j, d := range digits {
			buf[off+1+j] = negCode[d]
		}
		buf[off+1+np] = NegTerminator
		return buf
	} else {
		off, buf := grow(buf, np+1)
		buf[off] = exponentBias + byte(np)
		for j, d := range digits {
			buf[off+1+j] = posCode[d]
		}
		return buf
	}
}

// EncodeInt returns the order-preserving encoding of n.
func EncodeInt(n int64) []byte {
	return AppendInt(make([]byte, 0, maxDigitPairs+2), n)
}

// DecodeInt decodes a complete integer encoding produced by AppendInt.
func DecodeInt(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, dataErrf(b, 0, nil, "empty integer")
	}
	lead := b[0]
	switch {
	case lead == ZeroMarker:
		if len(b) != 1 {
			return 0, dataErrf(b, 1, nil, "trailing bytes after integer zero")
		}
		return 0, nil

	case lead >= minPosExponent && lead <= maxPosExponent:
		np := int(lead - exponentBias)
		if err := checkIntLen(b, np, 1+np); err != nil {
			return 0, err
		}
		mag, err := decodeMantissa(b, np, &posDecode)
		if err != nil {
			return 0, err
		}
		if mag > math.MaxInt64 {
			return 0, dataErrf(b, 0, ErrOverflow, "positive integer out of range")
		}
		return int64(mag), nil

	case lead >= minNegExponent && lead <= maxNegExponent:
		np := int(exponentBias - 1 - lead)
		if err := checkIntLen(b, np, 2+np); err != nil {
			return 0, err
		}
		if b[1+np] != NegTerminator {
			return 0, dataErrf(b, 1+np, nil, "negative integer lacks terminator")
		}
		mag, err := decodeMantissa(b, np, &negDecode)
		if err != nil {
			return 0, err
		}
		const minMag = uint64(1) << 63
		if mag > minMag {
			return 0, dataErrf(b, 0, ErrOverflow, "negative integer out of range")
		} else if mag == minMag {
			return math.MinInt64, nil
		}
		return -int64(mag), nil

	default:
		return 0, dataErrf(b, 0, nil, "unrecognized integer lead byte 0x%02x", lead)
	}
}

func checkIntLen(b []byte, np, want int) error {
	if len(b) < want {
		return dataErrf(b, len(b), nil, "truncated integer: %d digit pairs announced", np)
	} else if len(b) > want {
		return dataErrf(b, want, nil, "trailing bytes after integer")
	}
	return nil
}

// decodeMantissa reads np digit pairs starting at b[1].
func decodeMantissa(b []byte, np int, inv *[256]int8) (uint64, error) {
	var mag uint64
	for i := 1; i <= np; i++ {
		d := inv[b[i]]
		if d < 0 {
			return 0, dataErrf(b, i, nil, "invalid digit pair byte 0x%02x", b[i])
		}
		if i == 1 && d == 0 {
			return 0, dataErrf(b, i, nil, "non-canonical integer: leading zero digit pair")
		}
		if mag > (math.MaxUint64-uint64(d))/100 {
			return 0, dataErrf(b, i, ErrOverflow, "integer magnitude out of range")
		}
		mag = mag*100 + uint64(d)
	}
	return mag, nil
}
