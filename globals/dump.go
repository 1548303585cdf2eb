package globals

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type DumpFlags uint64

const (
	DumpGlobalHeaders = DumpFlags(1 << iota)
	DumpNodes
	DumpStats

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders every global for debugging and golden tests. Nodes are
// printed in collation order as ^name(subscripts) = value.
func (tx *Tx) Dump(f DumpFlags) string {
	var buf strings.Builder
	for _, name := range tx.Globals() {
		tx.dumpGlobal(&buf, f, name)
	}
	return buf.String()
}

func (tx *Tx) dumpGlobal(w *strings.Builder, f DumpFlags, name string) {
	s, err := tx.Stats(name)
	if err != nil {
		fmt.Fprintf(w, "^%s ** ERROR: %v\n", name, err)
		return
	}
	if f.Contains(DumpGlobalHeaders) {
		fmt.Fprintln(w, dumpSep1)
		fmt.Fprintf(w, "^%s (%d nodes)\n", name, s.Nodes)
	}
	if f.Contains(DumpStats) {
		fmt.Fprintf(w, "^%s.stats: nodes = %d, data_size = %d, alloc = %d\n", name, s.Nodes, s.DataSize, s.Alloc)
	}
	if !f.Contains(DumpNodes) {
		return
	}
	if f.Contains(DumpStats) {
		fmt.Fprintln(w, dumpSep2)
	}
	c := tx.Scan(name, All())
	for c.Next() {
		key := c.Key()
		if err := c.Err(); err != nil {
			fmt.Fprintf(w, "^%s[%s] ** ERROR: %v\n", name, hexstr(c.RawKey()), err)
			return
		}
		var v any
		if err := c.Decode(&v); err != nil {
			fmt.Fprintf(w, "^%s%v ** ERROR: %v\n", name, key, err)
			continue
		}
		fmt.Fprintf(w, "^%s%v = %s\n", name, key, formatValue(v))
	}
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(v)
	case []byte:
		return fmt.Sprintf("0x%x", v)
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(v)
	case fmt.Stringer:
		return v.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
