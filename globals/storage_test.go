package globals

import (
	"testing"
)

func storages(t *testing.T, f func(t *testing.T, st storage)) {
	t.Run("mem", func(t *testing.T) {
		st := newMemStorage()
		t.Cleanup(func() { st.Close() })
		f(t, st)
	})
	if testing.Short() {
		return
	}
	t.Run("bolt", func(t *testing.T) {
		db := setup(t, "", Options{})
		f(t, db.st)
	})
}

func fillBucket(t testing.TB, st storage, name string, keys ...string) {
	stx := must(st.BeginTx(true))
	b := must(stx.CreateBucket(name))
	for _, key := range keys {
		ensure(b.Put([]byte(key), []byte("v"+key)))
	}
	ensure(stx.Commit())
}

func TestStorage_CursorMoves(t *testing.T) {
	storages(t, func(t *testing.T, st storage) {
		fillBucket(t, st, "b", "b", "d", "f")
		stx := must(st.BeginTx(false))
		defer stx.Rollback()
		c := stx.Bucket("b").Cursor()

		key := func(k, _ []byte) string {
			if k == nil {
				return "<nil>"
			}
			return string(k)
		}
		deepEqual(t, key(c.First()), "b")
		deepEqual(t, key(c.Next()), "d")
		deepEqual(t, key(c.Next()), "f")
		deepEqual(t, key(c.Next()), "<nil>")
		deepEqual(t, key(c.Last()), "f")
		deepEqual(t, key(c.Prev()), "d")
		deepEqual(t, key(c.Seek([]byte("c"))), "d")
		deepEqual(t, key(c.Seek([]byte("d"))), "d")
		deepEqual(t, key(c.Seek([]byte("g"))), "<nil>")
		deepEqual(t, key(c.Seek([]byte("a"))), "b")
		deepEqual(t, key(c.Prev()), "<nil>")
	})
}

func TestStorage_SeekLast(t *testing.T) {
	storages(t, func(t *testing.T, st storage) {
		fillBucket(t, st, "b", "a", "b\x00", "b\x00x", "b\x01", "b\xff", "b\xff\xff", "c", "\xff", "\xff\xff\x01")
		stx := must(st.BeginTx(false))
		defer stx.Rollback()
		b := stx.Bucket("b")

		tests := []struct {
			prefix string
			want   string
		}{
			{"", "\xff\xff\x01"},
			{"a", "a"},
			{"b", "b\xff\xff"},
			{"b\x00", "b\x00x"},
			{"b\xff", "b\xff\xff"},
			{"bb", "b\x01"},
			{"0", "<nil>"},
			{"\xff", "\xff\xff\x01"},
			{"\xff\xff", "\xff\xff\x01"},
			{"\xff\xff\xff", "\xff\xff\x01"},
		}
		for _, tt := range tests {
			k, _ := b.Cursor().SeekLast([]byte(tt.prefix))
			got := "<nil>"
			if k != nil {
				got = string(k)
			}
			if got != tt.want {
				t.Errorf("SeekLast(%q) = %q, wanted %q", tt.prefix, got, tt.want)
			}
		}
	})
}

func TestStorage_Buckets(t *testing.T) {
	storages(t, func(t *testing.T, st storage) {
		fillBucket(t, st, "beta", "x")
		fillBucket(t, st, "alpha", "y")

		stx := must(st.BeginTx(true))
		deepEqual(t, stx.BucketNames(), []string{"alpha", "beta"})
		deepEqual(t, stx.Bucket("gamma") == nil, true)
		ensure(stx.DeleteBucket("beta"))
		isErr(t, stx.DeleteBucket("beta"), ErrGlobalNotFound)
		deepEqual(t, stx.BucketNames(), []string{"alpha"})
		ensure(stx.Rollback())

		stx = must(st.BeginTx(false))
		defer stx.Rollback()
		deepEqual(t, stx.BucketNames(), []string{"alpha", "beta"})
		deepEqual(t, stx.Bucket("alpha").Stats().KeyN, 1)
		deepEqual(t, string(stx.Bucket("alpha").Get([]byte("y"))), "vy")
	})
}

func TestMemStorage_ReadOnlyAndClosed(t *testing.T) {
	st := newMemStorage()
	fillBucket(t, st, "b", "x")

	stx := must(st.BeginTx(false))
	b := stx.Bucket("b")
	isErr(t, b.Put([]byte("y"), []byte("v")), ErrReadOnly)
	isErr(t, b.Delete([]byte("x")), ErrReadOnly)
	_, err := stx.CreateBucket("c")
	isErr(t, err, ErrReadOnly)
	ensure(stx.Rollback())

	ensure(st.Close())
	_, err = st.BeginTx(false)
	isErr(t, err, ErrClosed)
}
