package globals

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"

	"github.com/andreyvit/mkey/journal"
)

const trackTxns = true

// InMemory, passed as the path to Open, selects the transient in-memory
// backend.
const InMemory = ":memory:"

const journalFileName = "globals-*.wal"

type DB struct {
	st      storage
	bdb     *bbolt.DB
	logger  *slog.Logger
	verbose bool
	strict  bool
	codec   valueCodec
	journal *journal.Journal

	lastSize    atomic.Int64
	ReaderCount atomic.Int64
	WriterCount atomic.Int64
	ReadCount   atomic.Uint64
	WriteCount  atomic.Uint64

	txns     []*Tx
	txnsLock sync.Mutex
}

type Options struct {
	Logger    *slog.Logger
	Verbose   bool
	IsTesting bool
	MmapSize  int
	Timeout   time.Duration

	Compression       Compression
	CompressThreshold int

	// JournalDir enables journaling of every committed write transaction.
	JournalDir         string
	JournalMaxFileSize int64
}

func Open(path string, opt Options) (*DB, error) {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.CompressThreshold <= 0 {
		opt.CompressThreshold = DefaultCompressThreshold
	}
	if opt.Timeout == 0 {
		opt.Timeout = 10 * time.Second
	}

	db := &DB{
		logger:  opt.Logger,
		verbose: opt.Verbose,
		strict:  opt.IsTesting,
		codec: valueCodec{
			compression: opt.Compression,
			threshold:   opt.CompressThreshold,
		},
	}

	if path == InMemory {
		db.st = newMemStorage()
	} else {
		bopt := &bbolt.Options{}
		*bopt = *bbolt.DefaultOptions
		bopt.Timeout = opt.Timeout
		if opt.IsTesting {
			bopt.NoSync = true
			bopt.NoFreelistSync = true
			bopt.InitialMmapSize = 1024 * 1024 * 5
		} else {
			bopt.InitialMmapSize = 1024 * 1024 * 1024
			bopt.FreelistType = bbolt.FreelistMapType
		}
		if opt.MmapSize != 0 {
			bopt.InitialMmapSize = opt.MmapSize
		}

		bdb, err := bbolt.Open(path, 0666, bopt)
		if err != nil {
			return nil, fmt.Errorf("globals: %w", err)
		}
		db.bdb = bdb
		db.st = newBoltStorage(bdb)
	}

	if opt.JournalDir != "" {
		db.journal = journal.New(opt.JournalDir, journal.Options{
			FileName:    journalFileName,
			MaxFileSize: opt.JournalMaxFileSize,
			DebugName:   "globals",
			NoSync:      opt.IsTesting,
			Logger:      opt.Logger,
			Verbose:     opt.Verbose,
		})
		if err := db.journal.StartWriting(); err != nil {
			db.st.Close()
			return nil, fmt.Errorf("globals: journal: %w", err)
		}
	}

	return db, nil
}

// Bolt returns the underlying Bolt database, or nil for an InMemory store.
func (db *DB) Bolt() *bbolt.DB {
	return db.bdb
}

// Size returns the database size observed by the last committed write.
func (db *DB) Size() int64 {
	return db.lastSize.Load()
}

func (db *DB) Close() error {
	var jerr error
	if db.journal != nil {
		jerr = db.journal.Close()
	}
	if err := db.st.Close(); err != nil {
		return fmt.Errorf("globals: closing: %w", err)
	}
	return jerr
}

func (db *DB) addTx(tx *Tx) {
	db.txnsLock.Lock()
	defer db.txnsLock.Unlock()
	db.txns = append(db.txns, tx)
}

func (db *DB) removeTx(tx *Tx) {
	db.txnsLock.Lock()
	defer db.txnsLock.Unlock()

	found := slices.Index(db.txns, tx)
	if found < 0 {
		panic("tx not found in list")
	}

	n := len(db.txns)
	db.txns[found] = db.txns[n-1]
	db.txns[n-1] = nil // ensure it gets collected
	db.txns = db.txns[:n-1]
}

func (db *DB) DescribeOpenTxns() string {
	if !trackTxns {
		return "OPEN TX TRACKING DISABLED"
	}

	db.txnsLock.Lock()
	txns := slices.Clone(db.txns)
	db.txnsLock.Unlock()

	if len(txns) == 0 {
		return "NO OPEN TRANSACTIONS"
	}

	slices.SortFunc(txns, func(a, b *Tx) int {
		return a.startTime.Compare(b.startTime)
	})

	now := time.Now()

	var buf strings.Builder
	fmt.Fprintf(&buf, "%d OPEN TRANSACTIONS:\n", len(txns))
	for _, tx := range txns {
		ms := now.Sub(tx.startTime).Milliseconds()
		if ms < 100 {
			fmt.Fprintf(&buf, "\n---\nopen for %d ms\n", ms)
		} else {
			fmt.Fprintf(&buf, "\n---\nopen for %d ms:\n%s", ms, tx.stack)
		}
	}

	return buf.String()
}
