package logfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/qKV/lib/db/record"
)

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func openTemp(t *testing.T, opts *Options) (*Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "dir", "db.qkv")
	l, err := Open(path, opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return l, path
}

func setRec(key, value string) record.Record {
	return record.Record{Op: record.OpSet, Key: key, Value: []byte(value)}
}

func replayAll(t *testing.T, l *Log) ([]record.Record, ReplayStats) {
	t.Helper()
	var recs []record.Record
	stats, err := l.Replay(func(rec record.Record) error {
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	return recs, stats
}

// shortFile accepts at most limit more bytes, then fails
type shortFile struct {
	*os.File
	limit int
}

func (s *shortFile) WriteAt(p []byte, off int64) (int, error) {
	if len(p) <= s.limit {
		s.limit -= len(p)
		return s.File.WriteAt(p, off)
	}
	n, _ := s.File.WriteAt(p[:s.limit], off)
	s.limit = 0
	return n, errors.New("disk full")
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func TestOpenCreatesFileWithHeader(t *testing.T) {
	l, path := openTemp(t, nil)
	defer l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(record.Header()) {
		t.Errorf("new file content %q, expected header", data)
	}
	if l.Size() != int64(record.HeaderSize) {
		t.Errorf("size %d, expected %d", l.Size(), record.HeaderSize)
	}
}

func TestAppendAndReplay(t *testing.T) {
	l, path := openTemp(t, nil)

	n, err := l.Append(setRec("a", "1"), setRec("b", "2"))
	if err != nil || n != 2 {
		t.Fatalf("Append = %d, %v", n, err)
	}
	if _, err := l.Append(record.Record{Op: record.OpDelete, Key: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	l, err = Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	recs, stats := replayAll(t, l)
	if len(recs) != 3 || stats.Sets != 2 || stats.Deletes != 1 {
		t.Fatalf("replayed %d records, stats %+v", len(recs), stats)
	}
	if recs[0].Key != "a" || recs[1].Key != "b" || recs[2].Op != record.OpDelete {
		t.Errorf("records out of order: %+v", recs)
	}
	if stats.Bytes+int64(record.HeaderSize) != l.Size() {
		t.Errorf("replayed %d bytes, file holds %d", stats.Bytes, l.Size())
	}
}

func TestReplayTruncatesTornTail(t *testing.T) {
	l, path := openTemp(t, nil)
	if _, err := l.Append(setRec("a", "1"), setRec("b", "2")); err != nil {
		t.Fatal(err)
	}
	good := l.Size()
	l.Close()

	// simulate a crash in the middle of the next frame
	frame, _ := record.AppendFrame(nil, setRec("c", "3"), record.CompressionNone)
	f, _ := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	f.Write(frame[:len(frame)-3])
	f.Close()

	l, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	recs, stats := replayAll(t, l)
	if len(recs) != 2 {
		t.Errorf("expected 2 records before the torn tail, got %d", len(recs))
	}
	if stats.Truncated != int64(len(frame)-3) {
		t.Errorf("truncated %d bytes, expected %d", stats.Truncated, len(frame)-3)
	}
	if l.Size() != good {
		t.Errorf("size after repair %d, expected %d", l.Size(), good)
	}

	// appends continue on a frame boundary
	if _, err := l.Append(setRec("c", "3")); err != nil {
		t.Fatal(err)
	}
	l.Close()

	l, _ = Open(path, nil)
	defer l.Close()
	if recs, _ := replayAll(t, l); len(recs) != 3 {
		t.Errorf("expected 3 records after repair and append, got %d", len(recs))
	}
}

func TestReplayFailsOnCorruption(t *testing.T) {
	l, path := openTemp(t, nil)
	if _, err := l.Append(setRec("a", "1"), setRec("b", "2")); err != nil {
		t.Fatal(err)
	}
	l.Close()

	data, _ := os.ReadFile(path)
	data[len(data)-1] ^= 0xff // last byte of the last checksum
	os.WriteFile(path, data, 0o644)

	l, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	calls := 0
	_, err = l.Replay(func(record.Record) error {
		calls++
		return nil
	})
	if !errors.Is(err, record.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected the first record to be replayed before the error, got %d", calls)
	}
}

func TestReplayDamagedLengthPrefixIsNotATornTail(t *testing.T) {
	l, path := openTemp(t, nil)
	if _, err := l.Append(setRec("a", "1"), setRec("b", "2"), setRec("c", "3"), setRec("d", "4")); err != nil {
		t.Fatal(err)
	}
	l.Close()

	data, _ := os.ReadFile(path)
	first, _ := record.AppendFrame(nil, setRec("a", "1"), record.CompressionNone)
	second := record.HeaderSize + len(first)
	// the prefix now points past the end of the file
	binary.BigEndian.PutUint32(data[second:], 10000)
	os.WriteFile(path, data, 0o644)

	l, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	calls := 0
	stats, err := l.Replay(func(record.Record) error {
		calls++
		return nil
	})
	if !errors.Is(err, record.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	if calls != 1 || stats.Truncated != 0 {
		t.Errorf("replayed %d records, truncated %d bytes", calls, stats.Truncated)
	}
	if l.Size() != int64(len(data)) {
		t.Errorf("size %d after failed replay, expected %d", l.Size(), len(data))
	}
	if info, _ := os.Stat(path); info.Size() != int64(len(data)) {
		t.Errorf("file shrank to %d bytes, expected %d", info.Size(), len(data))
	}
}

func TestReplayStopsOnCallbackError(t *testing.T) {
	l, _ := openTemp(t, nil)
	defer l.Close()
	l.Append(setRec("a", "1"))

	boom := errors.New("boom")
	if _, err := l.Replay(func(record.Record) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("expected callback error, got %v", err)
	}
}

func TestOpenHeaderHandling(t *testing.T) {
	dir := t.TempDir()

	prefix := filepath.Join(dir, "prefix.qkv")
	os.WriteFile(prefix, record.Header()[:4], 0o644)
	l, err := Open(prefix, nil)
	if err != nil {
		t.Fatalf("header prefix should be repaired: %v", err)
	}
	l.Close()
	if data, _ := os.ReadFile(prefix); string(data) != string(record.Header()) {
		t.Errorf("repaired header %q", data)
	}

	foreign := filepath.Join(dir, "foreign.qkv")
	os.WriteFile(foreign, []byte("this is not a data file"), 0o644)
	if _, err := Open(foreign, nil); !errors.Is(err, record.ErrHeader) {
		t.Errorf("expected ErrHeader for a foreign file, got %v", err)
	}
}

func TestAppendShortWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.qkv")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatal(err)
	}

	frame, _ := record.AppendFrame(nil, setRec("k0", "v"), record.CompressionNone)
	sf := &shortFile{File: f, limit: record.HeaderSize + 2*len(frame) + 5}

	l, err := newLog(sf, path, 0, *DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	n, err := l.Append(setRec("k0", "v"), setRec("k1", "v"), setRec("k2", "v"), setRec("k3", "v"))
	if err == nil {
		t.Fatal("expected an error from the short write")
	}
	if n != 2 {
		t.Errorf("expected 2 complete records, got %d", n)
	}
	if want := int64(record.HeaderSize + 2*len(frame)); l.Size() != want {
		t.Errorf("size %d, expected %d", l.Size(), want)
	}
	if info, _ := f.Stat(); info.Size() != l.Size() {
		t.Errorf("partial frame left in file: %d bytes on disk, %d logical", info.Size(), l.Size())
	}
	l.Close()

	l, _ = Open(path, nil)
	defer l.Close()
	if recs, _ := replayAll(t, l); len(recs) != 2 {
		t.Errorf("expected 2 records on reopen, got %d", len(recs))
	}
}

func TestAppendEncodingFailureWritesNothing(t *testing.T) {
	l, _ := openTemp(t, nil)
	defer l.Close()

	n, err := l.Append(setRec("ok", "v"), record.Record{Op: 42, Key: "bad"})
	if err == nil || n != 0 {
		t.Errorf("expected (0, error), got (%d, %v)", n, err)
	}
	if l.Size() != int64(record.HeaderSize) {
		t.Errorf("file grew after a failed encoding: %d", l.Size())
	}
}

func TestTruncate(t *testing.T) {
	l, _ := openTemp(t, nil)
	defer l.Close()

	l.Append(setRec("a", "1"), setRec("b", "2"))
	if err := l.Truncate(); err != nil {
		t.Fatal(err)
	}
	if recs, _ := replayAll(t, l); len(recs) != 0 {
		t.Errorf("expected no records after Truncate, got %d", len(recs))
	}
}

func TestClosedLog(t *testing.T) {
	l, _ := openTemp(t, nil)
	l.Close()

	if _, err := l.Append(setRec("a", "1")); !errors.Is(err, ErrClosed) {
		t.Errorf("Append after Close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

func TestCompressedLog(t *testing.T) {
	for _, c := range []record.Compression{record.CompressionSnappy, record.CompressionZstd, record.CompressionLZ4, record.CompressionBrotli} {
		t.Run(c.String(), func(t *testing.T) {
			l, path := openTemp(t, &Options{SyncWrites: false, Compression: c})
			for i := 0; i < 20; i++ {
				l.Append(setRec(fmt.Sprintf("k%d", i), fmt.Sprintf("value number %d, value number %d", i, i)))
			}
			l.Close()

			// reading does not depend on the configured compression
			l, err := Open(path, nil)
			if err != nil {
				t.Fatal(err)
			}
			defer l.Close()
			recs, _ := replayAll(t, l)
			if len(recs) != 20 || string(recs[7].Value) != "value number 7, value number 7" {
				t.Errorf("unexpected replay result: %d records", len(recs))
			}
		})
	}
}

// --------------------------------------------------------------------------
// Appender tests
// --------------------------------------------------------------------------

func TestBatchAppenderSizeThreshold(t *testing.T) {
	l, _ := openTemp(t, nil)
	b := NewBatchAppender(l, BatchOptions{MaxBytes: 200})
	defer b.Close()

	b.Append(setRec("a", "1"))
	if b.Pending() != 1 || l.Size() != int64(record.HeaderSize) {
		t.Fatalf("small record should stay buffered")
	}

	big := setRec("big", string(make([]byte, 300)))
	if n, err := b.Append(big); n != 1 || err != nil {
		t.Fatalf("Append = %d, %v", n, err)
	}
	if b.Pending() != 0 {
		t.Errorf("threshold should flush, %d pending", b.Pending())
	}
	if recs, _ := replayAll(t, l); len(recs) != 2 || recs[0].Key != "a" {
		t.Errorf("batch not written in order: %+v", recs)
	}
}

func TestBatchAppenderInterval(t *testing.T) {
	l, _ := openTemp(t, nil)
	b := NewBatchAppender(l, BatchOptions{Interval: 10 * time.Millisecond})
	defer b.Close()

	b.Append(setRec("a", "1"))

	deadline := time.Now().Add(2 * time.Second)
	for b.Pending() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("timer flush did not happen")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if l.Size() == int64(record.HeaderSize) {
		t.Error("log still empty after timer flush")
	}
}

func TestBatchAppenderFlushesOnClose(t *testing.T) {
	l, path := openTemp(t, nil)
	b := NewBatchAppender(l, BatchOptions{MaxBytes: 1 << 20})

	for i := 0; i < 10; i++ {
		b.Append(setRec(fmt.Sprintf("k%d", i), "v"))
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}

	l, _ = Open(path, nil)
	defer l.Close()
	if recs, _ := replayAll(t, l); len(recs) != 10 {
		t.Errorf("expected 10 records after Close, got %d", len(recs))
	}
}

func TestBatchAppenderStickyError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sticky.qkv")
	f, _ := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	l, err := newLog(&shortFile{File: f, limit: record.HeaderSize}, path, 0, *DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	b := NewBatchAppender(l, BatchOptions{MaxBytes: 1})
	defer b.Close()

	if n, err := b.Append(setRec("a", "1")); err == nil || n != 0 {
		t.Fatalf("expected failed append, got %d, %v", n, err)
	}
	if _, err := b.Append(setRec("b", "2")); err == nil {
		t.Error("error should be sticky")
	}
}

func TestBatchAppenderTruncateClearsStickyError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sticky.qkv")
	f, _ := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	file := &shortFile{File: f, limit: record.HeaderSize}
	l, err := newLog(file, path, 0, *DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	b := NewBatchAppender(l, BatchOptions{MaxBytes: 1})
	defer b.Close()

	if _, err := b.Append(setRec("a", "1")); err == nil {
		t.Fatal("expected failed append")
	}

	file.limit = 1 << 20
	if err := b.Truncate(); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if n, err := b.Append(setRec("b", "2")); err != nil || n != 1 {
		t.Fatalf("append after truncate = %d, %v", n, err)
	}

	recs, _ := replayAll(t, l)
	if len(recs) != 1 || recs[0].Key != "b" {
		t.Errorf("expected only b after truncate, got %+v", recs)
	}
}

func TestDiscard(t *testing.T) {
	d := Discard()
	if n, err := d.Append(setRec("a", "1"), setRec("b", "2")); n != 2 || err != nil {
		t.Errorf("Discard.Append = %d, %v", n, err)
	}
	if d.Flush() != nil || d.Truncate() != nil || d.Close() != nil {
		t.Error("Discard should never fail")
	}
}
