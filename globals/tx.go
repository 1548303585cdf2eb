package globals

import (
	"fmt"
	"runtime/debug"
	"time"

	"go.etcd.io/bbolt"
)

type Tx struct {
	db        *DB
	stx       storageTx
	managed   bool
	closed    bool
	noJournal bool

	startTime time.Time
	stack     string

	changes       []journalEntry
	changeHandler func(chg *Change)
}

func (db *DB) begin(writable, managed bool) (*Tx, error) {
	if writable {
		db.WriterCount.Add(1)
	} else {
		db.ReaderCount.Add(1)
	}
	stx, err := db.st.BeginTx(writable)
	if err != nil {
		db.countClose(writable)
		return nil, err
	}
	tx := &Tx{
		db:        db,
		stx:       stx,
		managed:   managed,
		startTime: time.Now(),
	}
	if trackTxns {
		tx.stack = string(debug.Stack())
		db.addTx(tx)
	}
	return tx, nil
}

func (db *DB) countClose(writable bool) {
	if writable {
		db.WriterCount.Add(-1)
	} else {
		db.ReaderCount.Add(-1)
	}
}

func (tx *Tx) DB() *DB {
	return tx.db
}

// OnChange installs a handler called after every mutation made by this
// transaction.
func (tx *Tx) OnChange(f func(chg *Change)) {
	tx.changeHandler = f
}

// BoltTx returns the underlying Bolt transaction, or nil for an InMemory
// store.
func (tx *Tx) BoltTx() *bbolt.Tx {
	if btx, ok := tx.stx.(*boltStorageTx); ok {
		return btx.btx
	}
	return nil
}

// Tx runs f in a transaction. A writable transaction commits when f returns
// nil and rolls back otherwise. A panic inside f is returned as an error.
func (db *DB) Tx(writable bool, f func(tx *Tx) error) error {
	tx, err := db.begin(writable, true)
	if err != nil {
		return err
	}
	defer tx.Close()
	err = safelyCall(f, tx)
	if err != nil {
		return err
	}
	if writable {
		return tx.Commit()
	}
	return nil
}

type panicked struct {
	reason any
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func safelyCall(fn func(*Tx) error, tx *Tx) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicked{p, string(debug.Stack())}
		}
	}()
	return fn(tx)
}

func (db *DB) BeginRead() *Tx {
	tx, err := db.begin(false, false)
	if err != nil {
		panic(fmt.Errorf("failed to start reading: %w", err))
	}
	return tx
}

func (db *DB) BeginUpdate() *Tx {
	tx, err := db.begin(true, false)
	if err != nil {
		panic(fmt.Errorf("failed to start writing: %w", err))
	}
	return tx
}

func (db *DB) Read(f func(tx *Tx)) {
	tx := db.BeginRead()
	defer tx.Close()
	f(tx)
}

func (db *DB) Write(f func(tx *Tx)) {
	tx := db.BeginUpdate()
	defer tx.Close()
	f(tx)
	err := tx.Commit()
	if err != nil {
		panic(fmt.Errorf("commit: %w", err))
	}
}

func (tx *Tx) IsWritable() bool {
	return tx.stx.Writable()
}

// Commit writes the transaction's changes to the journal, if one is
// configured, and then commits the backend transaction.
func (tx *Tx) Commit() error {
	if tx.closed {
		return ErrTxClosed
	}
	if !tx.stx.Writable() {
		return ErrReadOnly
	}
	if !tx.noJournal {
		if err := tx.db.writeJournal(tx.changes); err != nil {
			tx.Close()
			return fmt.Errorf("globals: journal: %w", err)
		}
	}
	size := tx.stx.Size()
	if err := tx.stx.Commit(); err != nil {
		tx.Close()
		return err
	}
	tx.db.lastSize.Store(size)
	tx.db.WriteCount.Add(1)
	tx.finish()
	return nil
}

// Close rolls back the transaction unless it has been committed. It is safe
// to call more than once.
func (tx *Tx) Close() {
	if tx.closed {
		return
	}
	err := tx.stx.Rollback()
	if err != nil {
		panic(err) // not expected to happen unless Bolt API changes
	}
	if !tx.stx.Writable() {
		tx.db.ReadCount.Add(1)
	}
	tx.finish()
}

func (tx *Tx) finish() {
	tx.closed = true
	tx.changes = nil
	tx.db.countClose(tx.stx.Writable())
	if trackTxns {
		tx.db.removeTx(tx)
	}
}
