package globals

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/andreyvit/mkey"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &mkey.DataError{Data: data, Off: off, Err: err, Msg: fmt.Sprintf(format, args...)}
}

// successor returns the smallest byte string greater than every string
// prefixed by p. It returns false when p is empty or all 0xFF.
func successor(p []byte) ([]byte, bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] != 0xFF {
			s := make([]byte, i+1)
			copy(s, p)
			s[i]++
			return s, true
		}
	}
	return nil, false
}

// childPrefix returns the encoding prefix shared by all descendants of k.
// For the zero key it is empty, which matches every node.
func childPrefix(k mkey.Key) []byte {
	if k.IsZero() {
		return nil
	}
	return append(k.AppendEncoded(make([]byte, 0, len(k.Encoded())+1)), mkey.Delimiter)
}

// siblingBound returns k's encoding followed by 0x01, which sorts after k
// and all of k's descendants but before any later sibling.
func siblingBound(k mkey.Key) []byte {
	return append(k.AppendEncoded(make([]byte, 0, len(k.Encoded())+1)), mkey.EscapeMarker)
}

// componentAfter decodes the subscript that immediately follows prefix in a
// stored key.
func componentAfter(raw, prefix []byte) (mkey.Scalar, error) {
	rest := raw[len(prefix):]
	for i, b := range rest {
		if b == mkey.Delimiter {
			rest = rest[:i]
			break
		}
	}
	return mkey.DecodeScalar(rest)
}

func isValidGlobalName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		case c == '%' && i == 0:
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func hexstr(b []byte) string {
	if b == nil {
		return "<nil>"
	}
	if len(b) == 0 {
		return "<empty>"
	}
	return hex.EncodeToString(b)
}

func hexAttr(key string, b []byte) slog.Attr {
	return slog.String(key, hexstr(b))
}

func unsafeBytesFromString(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
