package globals

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/andreyvit/mkey"
	"github.com/andreyvit/mkey/journal"
)

// journalEntry is one mutation as written to the journal. Value holds the
// stored bytes (header included) so that replay reproduces compression
// choices exactly.
type journalEntry struct {
	Op     Op       `msgpack:"o"`
	Global string   `msgpack:"g"`
	Key    mkey.Key `msgpack:"k"`
	Value  []byte   `msgpack:"v,omitempty"`
}

// writeJournal appends one committed record holding all entries of a
// transaction. Read-only and empty transactions write nothing.
func (db *DB) writeJournal(entries []journalEntry) error {
	if db.journal == nil || len(entries) == 0 {
		return nil
	}
	data, err := msgpack.Marshal(entries)
	if err != nil {
		return err
	}
	if err := db.journal.WriteRecord(0, data); err != nil {
		return err
	}
	return db.journal.Commit()
}

// Replay applies every committed journal record found in dir, each in its own
// write transaction, and returns the number of records applied. Replayed
// changes are not journaled again. Replaying a journal onto a database that
// already contains its effects is harmless: sets and kills are idempotent,
// and increments are journaled as sets of the resulting value.
func (db *DB) Replay(dir string) (int, error) {
	j := journal.New(dir, journal.Options{
		FileName:  journalFileName,
		DebugName: "globals-replay",
		Logger:    db.logger,
		Verbose:   db.verbose,
	})
	var n int
	err := j.Records(func(rec journal.Record) error {
		var entries []journalEntry
		if err := msgpack.Unmarshal(rec.Data, &entries); err != nil {
			return fmt.Errorf("record %d: %w", rec.ID, err)
		}
		if err := db.applyEntries(entries); err != nil {
			return fmt.Errorf("record %d: %w", rec.ID, err)
		}
		n++
		return nil
	})
	if db.verbose {
		db.logger.LogAttrs(context.Background(), slog.LevelDebug, "globals: replayed journal", slog.String("dir", dir), slog.Int("records", n))
	}
	if err != nil {
		return n, fmt.Errorf("globals: replay: %w", err)
	}
	return n, nil
}

func (db *DB) applyEntries(entries []journalEntry) error {
	tx, err := db.begin(true, true)
	if err != nil {
		return err
	}
	defer tx.Close()
	tx.noJournal = true

	for _, e := range entries {
		switch e.Op {
		case OpSet:
			var vle value
			if err := vle.decode(e.Value); err != nil {
				return nodeErr(e.Global, e.Key, err, "journaled value")
			}
			if e.Key.IsZero() {
				return nodeErr(e.Global, e.Key, mkey.ErrEmptyKey, "journaled set")
			}
			if err := tx.put(e.Global, e.Key, nil, e.Value); err != nil {
				return err
			}
		case OpKill:
			if _, err := tx.Kill(e.Global, e.Key); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown journal op %v", e.Op)
		}
	}
	return tx.Commit()
}
