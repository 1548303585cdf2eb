package mkey

import "bytes"

func needsEscape(c byte) bool {
	return c == Delimiter || c == EscapeMarker
}

// AppendText appends the encoding of s to buf: the text prefix, then the
// bytes of s with Delimiter and EscapeMarker escaped.
//
// An escaped byte b is written as EscapeMarker, b^0xFF, so "a\x01" sorts
// before "a\x00". Every other byte keeps its natural order.
func AppendText(buf []byte, s string) []byte {
	n := 1 + len(s)
	for i := 0; i < len(s); i++ {
		if needsEscape(s[i]) {
			n++
		}
	}

	off, buf := grow(buf, n)
	buf[off] = TextPrefix
	off++
	for i := 0; i < len(s); i++ {
		c := s[i]
		if needsEscape(c) {
			buf[off] = EscapeMarker
			buf[off+1] = c ^ 0xFF
			off += 2
		} else {
			buf[off] = c
			off++
		}
	}
	return buf
}

// EncodeText returns the encoding of s.
func EncodeText(s string) []byte {
	return AppendText(nil, s)
}

// DecodeText decodes a complete text encoding produced by AppendText.
func DecodeText(b []byte) (string, error) {
	if len(b) == 0 {
		return "", dataErrf(b, 0, nil, "empty text")
	}
	if b[0] != TextPrefix {
		return "", dataErrf(b, 0, nil, "text must start with 0x%02x, got 0x%02x", TextPrefix, b[0])
	}
	body := b[1:]
	if i := bytes.IndexByte(body, Delimiter); i >= 0 {
		return "", dataErrf(b, 1+i, nil, "unescaped delimiter in text")
	}
	if bytes.IndexByte(body, EscapeMarker) < 0 {
		return string(body), nil
	}

	out := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != EscapeMarker {
			out = append(out, c)
			continue
		}
		if i+1 == len(body) {
			return "", dataErrf(b, 1+i, nil, "truncated escape sequence")
		}
		i++
		orig := body[i] ^ 0xFF
		if !needsEscape(orig) {
			return "", dataErrf(b, 1+i, nil, "invalid escape sequence 0x%02x 0x%02x", EscapeMarker, body[i])
		}
		out = append(out, orig)
	}
	return string(out), nil
}
