package globals

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/andreyvit/mkey"
)

const (
	debugLogScans = false
)

// Range selects stored keys by their encodings. The constructors use
// mnemonics: O means open, I means inclusive, E means exclusive; the first
// letter is for the lower bound, the second for the upper bound.
type Range struct {
	Prefix   []byte
	Lower    []byte
	Upper    []byte
	LowerInc bool
	UpperInc bool
	Reverse  bool
}

func All() Range             { return Range{} }
func IO(l mkey.Key) Range    { return Range{Lower: l.Encoded(), LowerInc: true} }
func EO(l mkey.Key) Range    { return Range{Lower: l.Encoded(), LowerInc: false} }
func OI(u mkey.Key) Range    { return Range{Upper: u.Encoded(), UpperInc: true} }
func OE(u mkey.Key) Range    { return Range{Upper: u.Encoded(), UpperInc: false} }
func II(l, u mkey.Key) Range { return Range{Lower: l.Encoded(), Upper: u.Encoded(), LowerInc: true, UpperInc: true} }
func IE(l, u mkey.Key) Range { return Range{Lower: l.Encoded(), Upper: u.Encoded(), LowerInc: true} }
func EI(l, u mkey.Key) Range { return Range{Lower: l.Encoded(), Upper: u.Encoded(), UpperInc: true} }
func EE(l, u mkey.Key) Range { return Range{Lower: l.Encoded(), Upper: u.Encoded()} }

func (r Range) Reversed() Range         { r.Reverse = true; return r }
func (r Range) Prefixed(p []byte) Range { r.Prefix = p; return r }

// Descendants selects every node strictly below k. For the zero Key, it
// selects the whole global.
func Descendants(k mkey.Key) Range {
	return Range{Prefix: childPrefix(k)}
}

// Subtree selects k itself and every node below it.
func Subtree(k mkey.Key) Range {
	if k.IsZero() {
		return Range{}
	}
	return Range{Lower: k.Encoded(), LowerInc: true, Upper: siblingBound(k), UpperInc: false}
}

func (r *Range) start(bcur storageCursor, logger *slog.Logger) ([]byte, []byte) {
	var k, v []byte
	if r.Reverse {
		if upper := r.Upper; upper != nil {
			if r.Prefix != nil && !bytes.HasPrefix(upper, r.Prefix) {
				panic("upper bound does not match prefix")
			}
			k, v = bcur.Seek(upper)
			if k == nil {
				k, v = bcur.Last()
			} else if !r.UpperInc || !bytes.Equal(k, upper) {
				k, v = bcur.Prev()
			}
			if debugLogScans {
				logger.LogAttrs(context.Background(), slog.LevelDebug, "SEEK to upper", hexAttr("upper", upper), hexAttr("key", k))
			}
		} else if r.Prefix != nil {
			k, v = bcur.SeekLast(r.Prefix)
			if debugLogScans {
				logger.LogAttrs(context.Background(), slog.LevelDebug, "SEEK to last with prefix", hexAttr("prefix", r.Prefix), hexAttr("key", k))
			}
		} else {
			k, v = bcur.Last()
			if debugLogScans {
				logger.LogAttrs(context.Background(), slog.LevelDebug, "LAST", hexAttr("key", k))
			}
		}
	} else {
		if lower := r.Lower; lower != nil {
			if r.Prefix != nil && !bytes.HasPrefix(lower, r.Prefix) {
				panic("lower bound does not match prefix")
			}
			k, v = bcur.Seek(lower)
			if k != nil && !r.LowerInc && bytes.Equal(k, lower) {
				k, v = bcur.Next()
			}
			if debugLogScans {
				logger.LogAttrs(context.Background(), slog.LevelDebug, "SEEK to lower", hexAttr("lower", lower), hexAttr("key", k))
			}
		} else if r.Prefix != nil {
			k, v = bcur.Seek(r.Prefix)
		} else {
			k, v = bcur.First()
			if debugLogScans {
				logger.LogAttrs(context.Background(), slog.LevelDebug, "FIRST", hexAttr("key", k))
			}
		}
	}
	if k != nil && r.match(k, logger) {
		return k, v
	}
	return nil, nil
}

func (r *Range) next(bcur storageCursor, logger *slog.Logger) ([]byte, []byte) {
	var k, v []byte
	if r.Reverse {
		k, v = bcur.Prev()
		if debugLogScans {
			logger.LogAttrs(context.Background(), slog.LevelDebug, "PREV", hexAttr("key", k))
		}
	} else {
		k, v = bcur.Next()
		if debugLogScans {
			logger.LogAttrs(context.Background(), slog.LevelDebug, "NEXT", hexAttr("key", k))
		}
	}
	if k != nil && r.match(k, logger) {
		return k, v
	}
	return nil, nil
}

func (r *Range) match(k []byte, logger *slog.Logger) bool {
	if r.Prefix != nil && !bytes.HasPrefix(k, r.Prefix) {
		if debugLogScans {
			logger.LogAttrs(context.Background(), slog.LevelDebug, "BAIL on prefix", hexAttr("prefix", r.Prefix), hexAttr("key", k))
		}
		return false
	}
	if r.Reverse {
		if lower := r.Lower; lower != nil {
			cmp := bytes.Compare(k, lower)
			if cmp < 0 || (cmp == 0 && !r.LowerInc) {
				if debugLogScans {
					logger.LogAttrs(context.Background(), slog.LevelDebug, "BAIL on lower", hexAttr("lower", lower), hexAttr("key", k))
				}
				return false
			}
		}
	} else {
		if upper := r.Upper; upper != nil {
			cmp := bytes.Compare(k, upper)
			if cmp > 0 || (cmp == 0 && !r.UpperInc) {
				if debugLogScans {
					logger.LogAttrs(context.Background(), slog.LevelDebug, "BAIL on upper", hexAttr("upper", upper), hexAttr("key", k))
				}
				return false
			}
		}
	}
	return true
}

// Cursor walks the nodes of one global selected by a Range. Keys and values
// are only valid until the transaction ends.
type Cursor struct {
	rang   Range
	bcur   storageCursor
	logger *slog.Logger
	k, v   []byte
	init   bool
	err    error
}

func newCursor(rang Range, bcur storageCursor, logger *slog.Logger) *Cursor {
	return &Cursor{rang: rang, bcur: bcur, logger: logger}
}

// Next advances the cursor; it returns false at the end of the range or
// when a key fails to decode (see Err).
func (c *Cursor) Next() bool {
	if c.bcur == nil || c.err != nil {
		return false
	}
	if c.init {
		c.k, c.v = c.rang.next(c.bcur, c.logger)
	} else {
		c.init = true
		c.k, c.v = c.rang.start(c.bcur, c.logger)
	}
	return c.k != nil
}

func (c *Cursor) RawKey() []byte { return c.k }

// RawValue returns the stored value including its header.
func (c *Cursor) RawValue() []byte { return c.v }

// Key decodes the current key. A malformed key stops the iteration.
func (c *Cursor) Key() mkey.Key {
	k, err := mkey.DecodeKey(c.k)
	if err != nil {
		c.err = err
		return mkey.Key{}
	}
	return k
}

// Decode unmarshals the current value into ptr.
func (c *Cursor) Decode(ptr any) error {
	return decodeStoredValue(c.v, ptr)
}

func (c *Cursor) Err() error {
	return c.err
}
