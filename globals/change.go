package globals

import (
	"fmt"

	"github.com/andreyvit/mkey"
)

type Op int

const (
	OpNone Op = 0
	OpSet  Op = 1
	OpKill Op = 2
)

func (v Op) String() string {
	switch v {
	case OpNone:
		return "none"
	case OpSet:
		return "set"
	case OpKill:
		return "kill"
	default:
		return fmt.Sprintf("invalid op %d", int(v))
	}
}

// Change describes one mutation, delivered to the handler installed with
// Tx.OnChange right after the mutation is applied.
type Change struct {
	Op     Op
	Global string
	// Key is the zero Key when a whole global is killed.
	Key mkey.Key
	// Value is what was passed to Set, or the new counter value after
	// Increment. It is nil for kills.
	Value any
	// Count is the number of nodes a kill removed.
	Count int
}

func (chg *Change) String() string {
	switch chg.Op {
	case OpSet:
		return fmt.Sprintf("set ^%s%v = %s", chg.Global, chg.Key, formatValue(chg.Value))
	case OpKill:
		if chg.Key.IsZero() {
			return fmt.Sprintf("kill ^%s (%d nodes)", chg.Global, chg.Count)
		}
		return fmt.Sprintf("kill ^%s%v (%d nodes)", chg.Global, chg.Key, chg.Count)
	default:
		return chg.Op.String()
	}
}
