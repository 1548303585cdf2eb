package globals

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"slices"

	"github.com/andreyvit/mkey"
)

// DataState is the result of Data, following M's $DATA.
type DataState int

const (
	NoData      DataState = 0
	HasValue    DataState = 1
	HasChildren DataState = 10
)

func (ds DataState) HasValue() bool    { return ds%10 == 1 }
func (ds DataState) HasChildren() bool { return ds >= HasChildren }

// Direction selects forward or backward collation order.
type Direction int

const (
	Forward  Direction = 1
	Backward Direction = -1
)

func (tx *Tx) bucket(global string) (storageBucket, error) {
	if !isValidGlobalName(global) {
		return nil, nodeErr(global, mkey.Key{}, ErrInvalidGlobalName, "")
	}
	if tx.closed {
		return nil, ErrTxClosed
	}
	return tx.stx.Bucket(global), nil
}

func (tx *Tx) writableBucket(global string, key mkey.Key) (storageBucket, error) {
	if !isValidGlobalName(global) {
		return nil, nodeErr(global, key, ErrInvalidGlobalName, "")
	}
	if tx.closed {
		return nil, ErrTxClosed
	}
	if !tx.stx.Writable() {
		return nil, nodeErr(global, key, ErrReadOnly, "")
	}
	return tx.stx.CreateBucket(global)
}

func (tx *Tx) record(chg *Change, raw []byte) {
	if !tx.noJournal && tx.db.journal != nil {
		tx.changes = append(tx.changes, journalEntry{Op: chg.Op, Global: chg.Global, Key: chg.Key, Value: raw})
	}
	if tx.db.verbose {
		tx.db.logger.LogAttrs(context.Background(), slog.LevelDebug, "globals: "+chg.Op.String(), slog.String("global", chg.Global), hexAttr("key", chg.Key.Encoded()), slog.String("value", formatValue(chg.Value)), slog.Int("count", chg.Count))
	}
	if tx.changeHandler != nil {
		tx.changeHandler(chg)
	}
}

// Set stores value at key, creating the global if needed. The value is
// serialized with msgpack.
func (tx *Tx) Set(global string, key mkey.Key, value any) error {
	if key.IsZero() {
		return nodeErr(global, key, mkey.ErrEmptyKey, "cannot set a value at the root")
	}
	raw, err := tx.db.codec.encode(value)
	if err != nil {
		return nodeErr(global, key, err, "")
	}
	return tx.put(global, key, value, raw)
}

func (tx *Tx) put(global string, key mkey.Key, value any, raw []byte) error {
	b, err := tx.writableBucket(global, key)
	if err != nil {
		return err
	}
	if tx.db.strict {
		if _, err := mkey.DecodeKey(key.Encoded()); err != nil {
			panic(err)
		}
	}
	if err := b.Put(key.Encoded(), raw); err != nil {
		return nodeErr(global, key, err, "put")
	}
	tx.record(&Change{Op: OpSet, Global: global, Key: key, Value: value, Count: 1}, raw)
	return nil
}

// Get decodes the value stored at key into ptr. It returns false when the
// node has no value.
func (tx *Tx) Get(global string, key mkey.Key, ptr any) (bool, error) {
	b, err := tx.bucket(global)
	if b == nil || err != nil || key.IsZero() {
		return false, err
	}
	raw := b.Get(key.Encoded())
	if raw == nil {
		return false, nil
	}
	if err := decodeStoredValue(raw, ptr); err != nil {
		return true, nodeErr(global, key, err, "")
	}
	return true, nil
}

// GetRaw returns the msgpack encoding of the value stored at key, or nil.
func (tx *Tx) GetRaw(global string, key mkey.Key) ([]byte, error) {
	b, err := tx.bucket(global)
	if b == nil || err != nil || key.IsZero() {
		return nil, err
	}
	raw := b.Get(key.Encoded())
	if raw == nil {
		return nil, nil
	}
	var vle value
	if err := vle.decode(raw); err != nil {
		return nil, nodeErr(global, key, err, "")
	}
	payload, err := vle.payload()
	if err != nil {
		return nil, nodeErr(global, key, err, "")
	}
	return slices.Clone(payload), nil
}

// Kill deletes the node at key with all its descendants and returns the
// number of deleted nodes. The zero Key kills the whole global.
func (tx *Tx) Kill(global string, key mkey.Key) (int, error) {
	b, err := tx.bucket(global)
	if err != nil {
		return 0, err
	}
	if !tx.stx.Writable() {
		return 0, nodeErr(global, key, ErrReadOnly, "")
	}
	if b == nil {
		return 0, nil
	}

	var victims [][]byte
	c := newCursor(Subtree(key), b.Cursor(), tx.db.logger)
	for c.Next() {
		victims = append(victims, slices.Clone(c.RawKey()))
	}
	if len(victims) == 0 {
		return 0, nil
	}

	if !key.IsZero() {
		for _, k := range victims {
			if err := b.Delete(k); err != nil {
				return 0, nodeErr(global, key, err, "kill")
			}
		}
	}
	// a global without nodes does not exist
	if first, _ := b.Cursor().First(); key.IsZero() || first == nil {
		if err := tx.stx.DeleteBucket(global); err != nil {
			return 0, nodeErr(global, key, err, "kill")
		}
	}
	tx.record(&Change{Op: OpKill, Global: global, Key: key, Count: len(victims)}, nil)
	return len(victims), nil
}

// Data reports whether key has a value and whether it has descendants.
func (tx *Tx) Data(global string, key mkey.Key) (DataState, error) {
	b, err := tx.bucket(global)
	if b == nil || err != nil {
		return NoData, err
	}
	var ds DataState
	if !key.IsZero() && b.Get(key.Encoded()) != nil {
		ds |= HasValue
	}
	prefix := childPrefix(key)
	var k []byte
	if prefix == nil {
		k, _ = b.Cursor().First()
	} else {
		k, _ = b.Cursor().Seek(prefix)
	}
	if k != nil && bytes.HasPrefix(k, prefix) {
		ds += HasChildren
	}
	return ds, nil
}

// Order returns the subscript of the next (or previous) sibling of key, like
// M's $ORDER. Siblings are found even when only their descendants hold
// values.
func (tx *Tx) Order(global string, key mkey.Key, dir Direction) (mkey.Scalar, bool, error) {
	if key.IsZero() {
		return mkey.Scalar{}, false, nodeErr(global, key, mkey.ErrEmptyKey, "order needs a subscript")
	}
	b, err := tx.bucket(global)
	if b == nil || err != nil {
		return mkey.Scalar{}, false, err
	}
	var prefix []byte
	if parent, ok := key.Parent(); ok {
		prefix = childPrefix(parent)
	}

	c := b.Cursor()
	var k []byte
	if dir == Backward {
		if k, _ = c.Seek(key.Encoded()); k == nil {
			k, _ = c.Last()
		} else {
			k, _ = c.Prev()
		}
	} else {
		k, _ = c.Seek(siblingBound(key))
	}
	return tx.subscriptAfter(global, key, k, prefix)
}

// Child returns the first (or last) subscript directly under parent. The
// zero parent addresses the top level of the global.
func (tx *Tx) Child(global string, parent mkey.Key, dir Direction) (mkey.Scalar, bool, error) {
	b, err := tx.bucket(global)
	if b == nil || err != nil {
		return mkey.Scalar{}, false, err
	}
	prefix := childPrefix(parent)

	c := b.Cursor()
	var k []byte
	switch {
	case dir == Backward && prefix == nil:
		k, _ = c.Last()
	case dir == Backward:
		k, _ = c.SeekLast(prefix)
	case prefix == nil:
		k, _ = c.First()
	default:
		k, _ = c.Seek(prefix)
	}
	return tx.subscriptAfter(global, parent, k, prefix)
}

func (tx *Tx) subscriptAfter(global string, key mkey.Key, k, prefix []byte) (mkey.Scalar, bool, error) {
	if k == nil || !bytes.HasPrefix(k, prefix) || len(k) == len(prefix) {
		return mkey.Scalar{}, false, nil
	}
	sc, err := componentAfter(k, prefix)
	if err != nil {
		return mkey.Scalar{}, false, nodeErr(global, key, err, "corrupted key")
	}
	return sc, true, nil
}

// Query returns the next (or previous) node holding a value in collation
// order, like M's $QUERY. The zero Key starts from either end.
func (tx *Tx) Query(global string, key mkey.Key, dir Direction) (mkey.Key, bool, error) {
	b, err := tx.bucket(global)
	if b == nil || err != nil {
		return mkey.Key{}, false, err
	}
	c := b.Cursor()
	var k []byte
	switch {
	case key.IsZero() && dir == Backward:
		k, _ = c.Last()
	case key.IsZero():
		k, _ = c.First()
	case dir == Backward:
		if k, _ = c.Seek(key.Encoded()); k == nil {
			k, _ = c.Last()
		} else {
			k, _ = c.Prev()
		}
	default:
		if k, _ = c.Seek(key.Encoded()); k != nil && bytes.Equal(k, key.Encoded()) {
			k, _ = c.Next()
		}
	}
	if k == nil {
		return mkey.Key{}, false, nil
	}
	found, err := mkey.DecodeKey(k)
	if err != nil {
		return mkey.Key{}, false, nodeErr(global, key, err, "corrupted key")
	}
	return found, true, nil
}

// Increment adds delta to the integer stored at key and returns the result,
// like M's $INCREMENT. A missing node counts as 0; a canonical integer string
// is accepted too.
func (tx *Tx) Increment(global string, key mkey.Key, delta int64) (int64, error) {
	var cur any
	found, err := tx.Get(global, key, &cur)
	if err != nil {
		return 0, err
	}
	var n int64
	if found {
		n, err = integerValue(cur)
		if err != nil {
			return 0, nodeErr(global, key, err, "increment")
		}
	}
	if (delta > 0 && n > math.MaxInt64-delta) || (delta < 0 && n < math.MinInt64-delta) {
		return 0, nodeErr(global, key, mkey.ErrOverflow, "increment")
	}
	n += delta
	if err := tx.Set(global, key, n); err != nil {
		return 0, err
	}
	return n, nil
}

func integerValue(v any) (int64, error) {
	switch v := v.(type) {
	case nil, bool:
		return 0, ErrNotInteger
	case float32:
		return integerValue(float64(v))
	case float64:
		if v != math.Trunc(v) {
			return 0, ErrNotInteger
		}
	}
	sc, err := mkey.ScalarOf(v)
	if errors.Is(err, mkey.ErrOverflow) {
		return 0, mkey.ErrOverflow
	} else if err != nil || !sc.IsInt() {
		return 0, ErrNotInteger
	}
	return sc.Int64(), nil
}

// Scan returns a cursor over the nodes of global selected by r.
func (tx *Tx) Scan(global string, r Range) *Cursor {
	b, err := tx.bucket(global)
	if err != nil {
		return &Cursor{err: err}
	}
	if b == nil {
		return &Cursor{}
	}
	return newCursor(r, b.Cursor(), tx.db.logger)
}

// Globals lists the names of all globals in byte order.
func (tx *Tx) Globals() []string {
	names := tx.stx.BucketNames()
	return slices.DeleteFunc(names, func(name string) bool {
		return !isValidGlobalName(name)
	})
}

// GlobalStats summarizes the storage used by one global.
type GlobalStats struct {
	Nodes    int
	DataSize int64
	// Alloc is the space allocated by the backend, or 0 when it does not
	// track allocations.
	Alloc int64
}

func (tx *Tx) Stats(global string) (GlobalStats, error) {
	b, err := tx.bucket(global)
	if b == nil || err != nil {
		return GlobalStats{}, err
	}
	bs := b.Stats()
	return GlobalStats{
		Nodes:    bs.KeyN,
		DataSize: bs.LeafInuse,
		Alloc:    bs.TotalAlloc(),
	}, nil
}
