package journal

import (
	"testing"
)

func TestParseName(t *testing.T) {
	seq, ts, id, err := parseSegmentName("123-20230101T000000-11223344aabbccdd")
	if err != nil {
		t.Fatal(err)
	}
	if e := uint32(123); seq != e {
		t.Errorf("seq = %v, expected %v", seq, e)
	}
	if e := uint32(1672531200); ts != e {
		t.Errorf("ts = %v, expected %v", ts, e)
	}
	if e := uint64(0x11223344_aabbccdd); id != e {
		t.Errorf("id = %x, expected %x", id, e)
	}
}

func TestParseName_withPrefixAndSuffix(t *testing.T) {
	j := New(t.TempDir(), Options{FileName: "globals-*.wal"})
	seq, _, id, err := j.parseSegmentName("globals-000000000007-20230101T000000-0000000000000010.wal")
	if err != nil {
		t.Fatal(err)
	}
	if seq != 7 || id != 16 {
		t.Errorf("seq, id = %d, %d, expected 7, 16", seq, id)
	}
	for _, name := range []string{"other-000000000007-20230101T000000-0000000000000010.wal", "globals-7.wal", "globals-x-20230101T000000-1.wal"} {
		if _, _, _, err := j.parseSegmentName(name); err == nil {
			t.Errorf("parseSegmentName(%q) succeeded", name)
		}
	}
}

func TestFormatName(t *testing.T) {
	name := formatSegmentName("x", "y", 123, 1672531200, 0x11223344_aabbccdd)
	exp := "x000000000123-20230101T000000-11223344aabbccddy"
	if name != exp {
		t.Errorf("name = %q, expected %q", name, exp)
	}
}

func TestSegmentHeader(t *testing.T) {
	var buf [segmentHeaderSize]byte
	fillSegmentHeader(buf[:], 3, 1672531200, 42)

	var h segmentHeader
	if err := decodeSegmentHeader(buf[:], &h, 3); err != nil {
		t.Fatal(err)
	}
	if h.SegmentOrdinal != 3 || h.Timestamp != 1672531200 || h.FirstRecord != 42 {
		t.Errorf("header = %+v", h)
	}
	if err := decodeSegmentHeader(buf[:], &h, 4); err != errCorruptedFile {
		t.Errorf("wrong ordinal: err = %v", err)
	}

	bad := buf
	bad[20] ^= 1
	if err := decodeSegmentHeader(bad[:], &h, 3); err != errCorruptedFile {
		t.Errorf("bad checksum: err = %v", err)
	}
}

func TestRecordHeader(t *testing.T) {
	h := appendRecordHeader(nil, 300, 5)
	// size<<1 keeps bit 0 clear so records never start with a commit marker
	if h[0]&1 != 0 {
		t.Errorf("record header starts with %02x", h[0])
	}
	if len(h) != 3 {
		t.Errorf("len = %d, expected 3", len(h))
	}
}
