package mkey

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed is matched (via errors.Is) by every *DataError.
	ErrMalformed = errors.New("malformed encoding")

	ErrOverflow        = errors.New("integer overflow")
	ErrEmptyKey        = errors.New("composite key requires at least one component")
	ErrNestedKey       = errors.New("cannot nest composite keys")
	ErrUnsupportedType = errors.New("unsupported type")
	ErrNotFinite       = errors.New("cannot represent NaN or infinity")
)

// DataError reports encoded bytes that cannot be decoded.
type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Is(target error) bool {
	return target == ErrMalformed
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s at %d: %v: (%d) %x", e.Msg, e.Off, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s at %d: (%d) %x", e.Msg, e.Off, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s at %d: %v: (%d) %x...%x", e.Msg, e.Off, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s at %d: (%d) %x...%x", e.Msg, e.Off, n, p, s)
		}
	}
}

// ValueError reports a Go value that cannot become a subscript or a key.
type ValueError struct {
	Value any
	Err   error
	Msg   string
}

func valueErrf(v any, err error, format string, args ...any) error {
	return &ValueError{v, err, fmt.Sprintf(format, args...)}
}

func (e *ValueError) Unwrap() error {
	return e.Err
}

func (e *ValueError) Error() string {
	if e.Msg == "" {
		return "mkey: " + e.Err.Error()
	}
	return fmt.Sprintf("mkey: %s: %v", e.Msg, e.Err)
}
