package globals

import (
	"errors"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/andreyvit/mkey"
)

func init() {
	slog.SetLogLoggerLevel(slog.LevelDebug)
}

// backends runs f against the in-memory store and, unless -short is given,
// against a Bolt file.
func backends(t *testing.T, opt Options, f func(t *testing.T, db *DB)) {
	t.Run("mem", func(t *testing.T) {
		f(t, setup(t, InMemory, opt))
	})
	if testing.Short() {
		return
	}
	t.Run("bolt", func(t *testing.T) {
		f(t, setup(t, "", opt))
	})
}

func setup(t testing.TB, path string, opt Options) *DB {
	t.Helper()
	if path == "" {
		dbFile := must(os.CreateTemp("", "globals_test_*.db"))
		t.Logf("DB: %s", dbFile.Name())
		dbFile.Close()
		path = dbFile.Name()
		t.Cleanup(func() { os.Remove(path) })
	}
	opt.IsTesting = true
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.NewTextHandler(&logWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	db := must(Open(path, opt))
	t.Cleanup(func() { db.Close() })
	return db
}

type logWriter struct{ t testing.TB }

func (c *logWriter) Write(buf []byte) (int, error) {
	c.t.Log(strings.TrimSuffix(string(buf), "\n"))
	return len(buf), nil
}

func k(values ...any) mkey.Key {
	return mkey.MustKey(values...)
}

// fill stores each value at the key formed by the preceding subscripts, e.g.
// fill(tx, "g", 1, "x", 2) sets ^g(1,"x") = 2.
func fill(tx *Tx, global string, nodes ...[]any) {
	for _, node := range nodes {
		ensure(tx.Set(global, k(node[:len(node)-1]...), node[len(node)-1]))
	}
}

func n(comps ...any) []any { return comps }

func keysOf(c *Cursor) []string {
	var result []string
	for c.Next() {
		result = append(result, c.Key().String())
	}
	ensure(c.Err())
	return result
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func isErr(t testing.TB, err, target error) {
	if !errors.Is(err, target) {
		t.Helper()
		t.Errorf("** got error %v, wanted %v", err, target)
	}
}

func success(t testing.TB, err error) {
	if err != nil {
		t.Helper()
		t.Fatalf("** unexpected error: %v", err)
	}
}
