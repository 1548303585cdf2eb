package globals

import (
	"errors"
	"strings"

	"github.com/andreyvit/mkey"
)

var (
	ErrGlobalNotFound    = errors.New("global not found")
	ErrInvalidGlobalName = errors.New("invalid global name")
	ErrReadOnly          = errors.New("transaction is read-only")
	ErrNotInteger        = errors.New("value is not an integer")
	ErrTxClosed          = errors.New("transaction is closed")
	ErrClosed            = errors.New("store is closed")
)

// NodeError describes a failure involving a particular node.
type NodeError struct {
	Global string
	Key    mkey.Key
	Msg    string
	Err    error
}

func nodeErr(global string, key mkey.Key, err error, msg string) error {
	return &NodeError{global, key, msg, err}
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

func (e *NodeError) Error() string {
	var buf strings.Builder
	buf.WriteByte('^')
	buf.WriteString(e.Global)
	if !e.Key.IsZero() {
		buf.WriteString(e.Key.String())
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
		if e.Err != nil {
			buf.WriteString(": ")
			buf.WriteString(e.Err.Error())
		}
	} else if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}
