// Package journal implements append-only segment files that record committed
// write transactions, so that a store can be rebuilt or audited later.
//
// A journal is a directory of segment files named
// prefix<ordinal>-<timestamp>-<first record id>suffix. Segments rotate once
// they exceed MaxFileSize.
//
// File format:
//
//   - segment = segmentHeader (record* commit)*
//   - segmentHeader = magic:64 version:8 pad:24 ordinal:32 timestamp:32 pad:32 firstRecord:64 checksum:64
//   - record = size<<1:uvarint tsDelta:uvarint bytes*
//   - commit = 0x01 checksum:64
//
// The commit checksum is xxhash64 of all bytes of the segment before it.
// Records are only visible to readers once followed by a valid commit; an
// uncommitted or corrupted tail is trimmed when writing resumes.
package journal

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/andreyvit/mkey/mmap"
)

var (
	ErrIncompatible       = errors.New("incompatible journal")
	ErrUnsupportedVersion = errors.New("unsupported journal version")
	ErrReadOnly           = errors.New("journal is not open for writing")
	errCorruptedFile      = errors.New("corrupted journal segment file")
)

type Options struct {
	Context     context.Context
	FileName    string // e.g. "mydb-*.wal"
	MaxFileSize int64  // new segment after this size
	DebugName   string
	Now         func() time.Time

	// NoSync skips fdatasync on commit. Only for tests.
	NoSync bool

	Logger  *slog.Logger
	Verbose bool
}

const DefaultMaxFileSize = 4 * 1024 * 1024

const (
	magic          = 0x4c424f4c4e524a4d // "MJRNLOBL" as little-endian uint64
	version0 uint8 = 0
)

const segmentHeaderSize = 5 * 8

type segmentHeader struct {
	Magic          uint64
	Version        uint8
	_              [3]uint8
	SegmentOrdinal uint32
	Timestamp      uint32
	_              uint32
	FirstRecord    uint64
	Checksum       uint64
}

const (
	commitMarker   byte = 1
	commitSize          = 1 + 8
	recordSizeBits      = 1
	timestampFmt        = "20060102T150405"
)

// Record is one committed journal record.
type Record struct {
	// ID numbers records across the whole journal, starting from 1.
	ID        uint64
	Segment   uint32
	Timestamp time.Time
	Data      []byte
}

// Journal is a directory of segment files.
type Journal struct {
	context        context.Context
	maxFileSize    int64
	fileNamePrefix string
	fileNameSuffix string
	debugName      string
	dir            string
	now            func() time.Time
	logger         *slog.Logger
	verbose        bool
	noSync         bool

	lock      sync.Mutex
	writable  bool
	writeErr  error
	writeSeg  uint32
	writeRec  uint64
	segWriter *segmentWriter
}

func New(dir string, o Options) *Journal {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Context == nil {
		o.Context = context.Background()
	}
	if o.FileName == "" {
		o.FileName = "*"
	}
	prefix, suffix, _ := strings.Cut(o.FileName, "*")
	if o.DebugName == "" {
		o.DebugName = "journal"
	}
	if o.MaxFileSize == 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return &Journal{
		context:        o.Context,
		maxFileSize:    o.MaxFileSize,
		fileNamePrefix: prefix,
		fileNameSuffix: suffix,
		debugName:      o.DebugName,
		dir:            dir,
		now:            o.Now,
		verbose:        o.Verbose,
		noSync:         o.NoSync,
		logger:         o.Logger,
	}
}

// Now returns the current time as a journal timestamp.
func (j *Journal) Now() uint32 {
	v := j.now().Unix()
	if v < 0 {
		panic("time travel disallowed")
	}
	u := uint64(v)
	if u&0xFFFF_FFFF_0000_0000 != 0 {
		panic("time travel disallowed both ways")
	}
	return uint32(u)
}

func (j *Journal) String() string {
	return j.debugName
}

// StartWriting prepares the journal for appending: it creates the directory
// if needed and trims any uncommitted tail of the last segment.
func (j *Journal) StartWriting() error {
	j.lock.Lock()
	defer j.lock.Unlock()
	if j.writable {
		return nil
	}
	if j.writeErr != nil {
		return j.writeErr
	}
	if err := j.prepareToWrite_locked(); err != nil {
		j.writeErr = err
		return err
	}
	j.writable = true
	return nil
}

func (j *Journal) prepareToWrite_locked() error {
	if err := os.MkdirAll(j.dir, 0o777); err != nil {
		return err
	}
	for {
		names, err := j.segmentNames()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			return nil
		}
		lastName := names[len(names)-1]
		seq, _, _, err := j.parseSegmentName(lastName)
		if err != nil {
			return err
		}

		var scan segmentScan
		err = j.readSegment(lastName, func(data []byte) error {
			return scan.run(data, seq, nil)
		})
		if err == errCorruptedFile {
			j.logger.LogAttrs(j.context, slog.LevelWarn, "journal: deleting corrupted file", slog.String("jrnl", j.debugName), slog.String("file", lastName))
			if err := os.Remove(filepath.Join(j.dir, lastName)); err != nil {
				return fmt.Errorf("journal: failed to delete corrupted file: %w", err)
			}
			continue
		} else if err != nil {
			return err
		}

		j.writeSeg = seq
		j.writeRec = scan.lastRec
		if scan.end < scan.size {
			j.logger.LogAttrs(j.context, slog.LevelWarn, "journal: trimming uncommitted tail", slog.String("jrnl", j.debugName), slog.String("file", lastName), slog.Int64("size", scan.size), slog.Int64("trimmed", scan.size-scan.end))
		}
		if scan.end >= j.maxFileSize {
			if scan.end < scan.size {
				return os.Truncate(filepath.Join(j.dir, lastName), scan.end)
			}
			return nil
		}
		sw, err := resumeSegment(j, lastName, &scan)
		if err != nil {
			return err
		}
		j.segWriter = sw
		return nil
	}
}

// FinishWriting closes the current segment. Records written since the last
// Commit are discarded.
func (j *Journal) FinishWriting() error {
	j.lock.Lock()
	defer j.lock.Unlock()
	return j.finishWriting_locked()
}

func (j *Journal) Close() error {
	return j.FinishWriting()
}

func (j *Journal) finishWriting_locked() error {
	j.writable = false
	if j.segWriter == nil {
		return nil
	}
	if j.segWriter.uncommitted {
		j.logger.LogAttrs(j.context, slog.LevelWarn, "journal: discarding uncommitted records", slog.String("jrnl", j.debugName), slog.Int("bytes", len(j.segWriter.buf)))
	}
	err := j.segWriter.close()
	j.segWriter = nil
	return err
}

// Rotate makes the next record start a new segment.
func (j *Journal) Rotate() error {
	j.lock.Lock()
	defer j.lock.Unlock()
	if j.segWriter == nil {
		return nil
	}
	if j.segWriter.uncommitted {
		return fmt.Errorf("%v: cannot rotate with uncommitted records", j.debugName)
	}
	err := j.segWriter.close()
	j.segWriter = nil
	return j.fail(err)
}

func (j *Journal) fail(err error) error {
	if err == nil {
		return nil
	}
	j.logger.LogAttrs(j.context, slog.LevelError, "journal: failed", slog.String("jrnl", j.debugName), slog.Any("err", err))
	if j.segWriter != nil {
		j.segWriter.close()
		j.segWriter = nil
	}
	j.writable = false
	if j.writeErr == nil {
		j.writeErr = err
	}
	return err
}

// WriteRecord adds a record to the current transaction. A zero timestamp
// means now. Nothing reaches the file until Commit.
func (j *Journal) WriteRecord(timestamp uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	j.lock.Lock()
	defer j.lock.Unlock()

	if j.writeErr != nil {
		return j.writeErr
	}
	if !j.writable {
		return ErrReadOnly
	}
	if timestamp == 0 {
		timestamp = j.Now()
	}

	j.writeRec++

	if j.segWriter == nil {
		j.writeSeg++
		sw, err := startSegment(j, j.writeSeg, timestamp, j.writeRec)
		if err != nil {
			return j.fail(err)
		}
		j.segWriter = sw
	}

	j.segWriter.writeRecord(timestamp, data)
	return nil
}

// Commit writes the pending records followed by a commit marker and syncs
// the segment to disk.
func (j *Journal) Commit() error {
	j.lock.Lock()
	defer j.lock.Unlock()
	if j.writeErr != nil {
		return j.writeErr
	}
	if j.segWriter == nil {
		return nil
	}
	if err := j.segWriter.commit(j.noSync); err != nil {
		return j.fail(err)
	}
	if j.verbose {
		j.logger.LogAttrs(j.context, slog.LevelDebug, "journal: committed", slog.String("jrnl", j.debugName), slog.Uint64("rec", j.writeRec), slog.Int64("size", j.segWriter.size))
	}
	if j.segWriter.size >= j.maxFileSize {
		err := j.segWriter.close()
		j.segWriter = nil
		return j.fail(err)
	}
	return nil
}

// Records calls fn for every committed record in order. Reading stops at
// the first uncommitted or corrupted data in the last segment; corruption
// in an earlier segment is an error.
func (j *Journal) Records(fn func(rec Record) error) error {
	j.lock.Lock()
	defer j.lock.Unlock()

	names, err := j.segmentNames()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}
	for i, name := range names {
		if err := j.context.Err(); err != nil {
			return err
		}
		seq, _, _, err := j.parseSegmentName(name)
		if err != nil {
			return err
		}
		var scan segmentScan
		err = j.readSegment(name, func(data []byte) error {
			return scan.run(data, seq, fn)
		})
		isLast := (i == len(names)-1)
		if err == errCorruptedFile && isLast {
			return nil
		} else if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if scan.end < scan.size && !isLast {
			return fmt.Errorf("%s: %w", name, errCorruptedFile)
		}
	}
	return nil
}

// FileNames lists the segment files in order.
func (j *Journal) FileNames() ([]string, error) {
	return j.segmentNames()
}

func (j *Journal) segmentNames() ([]string, error) {
	ents, err := os.ReadDir(j.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, ent := range ents {
		if !ent.Type().IsRegular() {
			continue
		}
		name := ent.Name()
		if !strings.HasPrefix(name, j.fileNamePrefix) || !strings.HasSuffix(name, j.fileNameSuffix) {
			continue
		}
		if _, _, _, err := j.parseSegmentName(name); err != nil {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// readSegment maps the named segment into memory for the duration of fn.
func (j *Journal) readSegment(name string, fn func(data []byte) error) error {
	return mmap.ReadFile(filepath.Join(j.dir, name), mmap.SequentialAccess, func(data []byte) error {
		if len(data) < segmentHeaderSize {
			return errCorruptedFile
		}
		return fn(data)
	})
}

type segmentScan struct {
	header  segmentHeader
	size    int64
	end     int64
	lastRec uint64
	ts      uint32
	hash    xxhash.Digest
}

// run validates the segment and delivers committed records to fn, if any.
// Record data is copied out of the mapping.
func (scan *segmentScan) run(data []byte, expectedSeq uint32, fn func(rec Record) error) error {
	scan.size = int64(len(data))
	if err := decodeSegmentHeader(data, &scan.header, expectedSeq); err != nil {
		return err
	}
	scan.end = segmentHeaderSize
	scan.lastRec = scan.header.FirstRecord - 1
	scan.ts = scan.header.Timestamp
	scan.hash.Reset()
	scan.hash.Write(data[:segmentHeaderSize])

	var pending []Record
	hash := scan.hash
	rec, ts := scan.lastRec, scan.ts
	off := int(scan.end)
	for off < len(data) {
		if data[off] == commitMarker {
			if off+commitSize > len(data) {
				return nil
			}
			sum := binary.LittleEndian.Uint64(data[off+1 : off+commitSize])
			if sum != hash.Sum64() {
				return nil
			}
			hash.Write(data[off : off+commitSize])
			off += commitSize

			scan.hash, scan.lastRec, scan.ts, scan.end = hash, rec, ts, int64(off)
			if fn != nil {
				for _, r := range pending {
					if err := fn(r); err != nil {
						return err
					}
				}
			}
			pending = pending[:0]
			continue
		}

		start := off
		v, n := binary.Uvarint(data[off:])
		if n <= 0 || v&1 != 0 {
			return nil
		}
		off += n
		size := v >> recordSizeBits
		tsDelta, n := binary.Uvarint(data[off:])
		if n <= 0 || tsDelta > 0xFFFF_FFFF {
			return nil
		}
		off += n
		if size > uint64(len(data)-off) {
			return nil
		}
		end := off + int(size)
		hash.Write(data[start:end])
		rec++
		ts += uint32(tsDelta)
		if fn != nil {
			pending = append(pending, Record{
				ID:        rec,
				Segment:   expectedSeq,
				Timestamp: time.Unix(int64(ts), 0).UTC(),
				Data:      slices.Clone(data[off:end]),
			})
		}
		off = end
	}
	return nil
}

func decodeSegmentHeader(data []byte, h *segmentHeader, expectedSeq uint32) error {
	if len(data) < segmentHeaderSize {
		return errCorruptedFile
	}
	buf := data[:segmentHeaderSize]
	n, err := binary.Decode(buf, binary.LittleEndian, h)
	if err != nil {
		panic(err)
	}
	if n != len(buf) {
		panic("internal size mismatch")
	}
	checksum := xxhash.Sum64(buf[:segmentHeaderSize-8])
	if checksum != h.Checksum {
		return errCorruptedFile
	}
	if h.Magic != magic {
		return ErrIncompatible
	}
	if expectedSeq != h.SegmentOrdinal || h.FirstRecord == 0 {
		return errCorruptedFile
	}
	if h.Version > version0 {
		return ErrUnsupportedVersion
	}
	return nil
}

type segmentWriter struct {
	f           *os.File
	seg         uint32
	ts          uint32
	size        int64
	hash        xxhash.Digest
	buf         []byte
	uncommitted bool
}

func startSegment(j *Journal, seg, ts uint32, rec uint64) (*segmentWriter, error) {
	name := formatSegmentName(j.fileNamePrefix, j.fileNameSuffix, seg, ts, rec)

	f, err := os.OpenFile(filepath.Join(j.dir, name), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		return nil, err
	}

	var ok bool
	defer closeAndDeleteUnlessOK(f, &ok)

	sw := &segmentWriter{
		f:    f,
		seg:  seg,
		ts:   ts,
		size: segmentHeaderSize,
	}
	sw.hash.Reset()

	var hbuf [segmentHeaderSize]byte
	fillSegmentHeader(hbuf[:], seg, ts, rec)
	sw.hash.Write(hbuf[:])

	if _, err := f.Write(hbuf[:]); err != nil {
		return nil, err
	}
	if j.verbose {
		j.logger.LogAttrs(j.context, slog.LevelDebug, "journal: new segment", slog.String("jrnl", j.debugName), slog.String("file", name))
	}

	ok = true
	return sw, nil
}

// resumeSegment reopens a scanned segment for appending after its last
// commit, dropping anything beyond it.
func resumeSegment(j *Journal, name string, scan *segmentScan) (*segmentWriter, error) {
	f, err := os.OpenFile(filepath.Join(j.dir, name), os.O_RDWR, 0o666)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(scan.end); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(scan.end, 0); err != nil {
		f.Close()
		return nil, err
	}
	return &segmentWriter{
		f:    f,
		seg:  scan.header.SegmentOrdinal,
		ts:   scan.ts,
		size: scan.end,
		hash: scan.hash,
	}, nil
}

const maxRecHeaderLen = binary.MaxVarintLen64 + binary.MaxVarintLen32

func (sw *segmentWriter) writeRecord(ts uint32, data []byte) {
	var tsDelta uint32
	if ts > sw.ts {
		tsDelta = ts - sw.ts
		sw.ts = ts
	}
	sw.uncommitted = true

	var hbuf [maxRecHeaderLen]byte
	h := appendRecordHeader(hbuf[:0], len(data), tsDelta)
	sw.buf = append(sw.buf, h...)
	sw.buf = append(sw.buf, data...)
}

func (sw *segmentWriter) commit(noSync bool) error {
	if !sw.uncommitted {
		return nil
	}
	sw.hash.Write(sw.buf)
	sw.buf = append(sw.buf, commitMarker)
	sw.buf = binary.LittleEndian.AppendUint64(sw.buf, sw.hash.Sum64())
	sw.hash.Write(sw.buf[len(sw.buf)-commitSize:])

	if _, err := sw.f.Write(sw.buf); err != nil {
		return err
	}
	if !noSync {
		if err := mmap.Fdatasync(sw.f, nil); err != nil {
			return err
		}
	}
	sw.size += int64(len(sw.buf))
	sw.buf = sw.buf[:0]
	sw.uncommitted = false
	return nil
}

func (sw *segmentWriter) close() error {
	if sw.f == nil {
		return nil
	}
	err := sw.f.Close()
	sw.f = nil
	return err
}

func closeAndDeleteUnlessOK(f *os.File, ok *bool) {
	if *ok {
		return
	}
	f.Close()
	os.Remove(f.Name())
}

func fillSegmentHeader(buf []byte, seg, ts uint32, rec uint64) {
	h := segmentHeader{
		Magic:          magic,
		Version:        version0,
		SegmentOrdinal: seg,
		Timestamp:      ts,
		FirstRecord:    rec,
	}
	n, err := binary.Encode(buf, binary.LittleEndian, h)
	if err != nil {
		panic(err)
	}
	if n != len(buf) {
		panic("internal size mismatch")
	}
	binary.LittleEndian.PutUint64(buf[segmentHeaderSize-8:], xxhash.Sum64(buf[:segmentHeaderSize-8]))
}

func appendRecordHeader(b []byte, size int, tsDelta uint32) []byte {
	b = binary.AppendUvarint(b, uint64(size)<<recordSizeBits)
	b = binary.AppendUvarint(b, uint64(tsDelta))
	return b
}

func formatSegmentName(prefix, suffix string, seq, ts uint32, id uint64) string {
	t := time.Unix(int64(uint64(ts)), 0).UTC()
	return fmt.Sprintf("%s%012d-%s-%016x%s", prefix, seq, t.Format(timestampFmt), id, suffix)
}

func (j *Journal) parseSegmentName(name string) (seq, ts uint32, id uint64, err error) {
	base, ok := strings.CutPrefix(name, j.fileNamePrefix)
	if ok {
		base, ok = strings.CutSuffix(base, j.fileNameSuffix)
	}
	if !ok {
		return 0, 0, 0, fmt.Errorf("invalid segment file name %q", name)
	}
	return parseSegmentName(base)
}

func parseSegmentName(name string) (seq, ts uint32, id uint64, err error) {
	seqStr, rem, ok := strings.Cut(name, "-")
	if !ok {
		return 0, 0, 0, fmt.Errorf("invalid segment file name %q", name)
	}
	v, err := strconv.ParseUint(seqStr, 10, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid segment file name %q (invalid segment number)", name)
	}
	seq = uint32(v)

	tsStr, idStr, ok := strings.Cut(rem, "-")
	if !ok {
		return 0, 0, 0, fmt.Errorf("invalid segment file name %q", name)
	}
	t, err := time.ParseInLocation(timestampFmt, tsStr, time.UTC)
	if err != nil {
		return seq, 0, 0, fmt.Errorf("invalid segment file name %q (invalid timestamp)", name)
	}
	ts = uint32(t.Unix())

	id, err = strconv.ParseUint(idStr, 16, 64)
	if err != nil {
		return seq, 0, 0, fmt.Errorf("invalid segment file name %q (invalid record identifier)", name)
	}
	return
}
