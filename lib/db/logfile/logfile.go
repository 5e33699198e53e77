package logfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/ValentinKolb/qKV/lib/db/record"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("logfile")

// ErrClosed is returned by operations on a closed log
var ErrClosed = errors.New("logfile: closed")

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures a Log
type Options struct {
	SyncWrites  bool               // fsync after every Append
	Compression record.Compression // algorithm for new frames
}

// DefaultOptions returns durable, uncompressed writes
func DefaultOptions() *Options {
	return &Options{
		SyncWrites:  true,
		Compression: record.CompressionNone,
	}
}

// ReplayStats summarises a Replay run
type ReplayStats struct {
	Records   int   // complete frames read
	Sets      int   // of which set records
	Deletes   int   // of which tombstones
	Bytes     int64 // bytes of complete frames, header excluded
	Truncated int64 // bytes dropped from a torn tail
}

// --------------------------------------------------------------------------
// Log
// --------------------------------------------------------------------------

// dataFile is the subset of *os.File used by Log
type dataFile interface {
	io.ReaderAt
	io.WriterAt
	Truncate(size int64) error
	Sync() error
	Close() error
}

// Log is the data file of one store.
//
// Thread-safety: all methods are safe for concurrent use, writes are
// serialised by an internal mutex.
type Log struct {
	mu     sync.Mutex
	f      dataFile
	path   string
	opts   Options
	size   int64  // end of the last complete frame
	buf    []byte // frame buffer reused across appends
	ends   []int  // end offset of each frame in buf
	closed bool
}

// Open opens or creates the data file at path. Missing parent directories are
// created and an empty file gets the header. A file whose content is a strict
// prefix of the header (a crash during creation) is reinitialised; any other
// header mismatch fails with an error wrapping record.ErrHeader.
func Open(path string, opts *Options) (*Log, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("logfile: create directory %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logfile: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("logfile: stat %s: %w", path, err)
	}

	l, err := newLog(f, path, info.Size(), *opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return l, nil
}

func newLog(f dataFile, path string, size int64, opts Options) (*Log, error) {
	l := &Log{f: f, path: path, opts: opts, size: size}

	head := make([]byte, min(size, int64(record.HeaderSize)))
	if _, err := f.ReadAt(head, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("logfile: read header: %w", err)
	}

	switch {
	case size == 0:
		Logger.Infof("creating data file %s", path)
		if err := l.writeHeader(); err != nil {
			return nil, err
		}
	case record.IsHeaderPrefix(head):
		Logger.Warningf("data file %s has an incomplete header (%d bytes), reinitialising", path, size)
		if err := l.writeHeader(); err != nil {
			return nil, err
		}
	default:
		if err := record.CheckHeader(head); err != nil {
			return nil, fmt.Errorf("logfile: %s: %w", path, err)
		}
	}
	return l, nil
}

func (l *Log) writeHeader() error {
	if err := l.f.Truncate(0); err != nil {
		return fmt.Errorf("logfile: truncate: %w", err)
	}
	if _, err := l.f.WriteAt(record.Header(), 0); err != nil {
		return fmt.Errorf("logfile: write header: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("logfile: sync: %w", err)
	}
	l.size = int64(record.HeaderSize)
	return nil
}

// Path returns the path of the data file
func (l *Log) Path() string {
	return l.path
}

// Size returns the file size up to the end of the last complete frame
func (l *Log) Size() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Compression returns the algorithm used for new frames
func (l *Log) Compression() record.Compression {
	return l.opts.Compression
}

// --------------------------------------------------------------------------
// Replay
// --------------------------------------------------------------------------

// Replay reads every frame in file order and passes it to fn. An error from fn
// stops the replay and is returned as is.
func (l *Log) Replay(fn func(rec record.Record) error) (ReplayStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var stats ReplayStats
	if l.closed {
		return stats, ErrClosed
	}

	offset := int64(record.HeaderSize)
	r := bufio.NewReaderSize(io.NewSectionReader(l.f, offset, l.size-offset), 64*1024)

	for {
		rec, n, err := record.ReadFrameN(r, l.size-offset)
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if errors.Is(err, record.ErrTruncated) {
			// a damaged length prefix also ends "past the end", only cut the
			// tail if no intact frame follows it
			if err := l.checkTail(offset); err != nil {
				return stats, err
			}
			stats.Truncated = l.size - offset
			Logger.Warningf("torn record at offset %d of %s, truncating %d bytes", offset, l.path, stats.Truncated)
			if err := l.f.Truncate(offset); err != nil {
				return stats, fmt.Errorf("logfile: truncate torn tail: %w", err)
			}
			if err := l.f.Sync(); err != nil {
				return stats, fmt.Errorf("logfile: sync: %w", err)
			}
			l.size = offset
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("logfile: %s at offset %d: %w", l.path, offset, err)
		}

		if err := fn(rec); err != nil {
			return stats, err
		}

		offset += int64(n)
		stats.Records++
		stats.Bytes += int64(n)
		if rec.Op == record.OpDelete {
			stats.Deletes++
		} else {
			stats.Sets++
		}
	}
}

// checkTail returns ErrCorrupt if the bytes from offset to the end of the file
// contain a complete valid frame
func (l *Log) checkTail(offset int64) error {
	tail := make([]byte, l.size-offset)
	if _, err := l.f.ReadAt(tail, offset); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("logfile: read tail: %w", err)
	}
	if at, ok := record.FindFrame(tail[1:]); ok {
		return fmt.Errorf("logfile: %s at offset %d: %w: valid frame at offset %d follows",
			l.path, offset, record.ErrCorrupt, offset+1+int64(at))
	}
	return nil
}

// --------------------------------------------------------------------------
// Write path
// --------------------------------------------------------------------------

// Append writes recs as consecutive frames with a single write. It returns the
// number of records whose frames were written completely. If encoding fails
// nothing is written. On a short write the partial frame is cut off again, so
// the file always ends on a frame boundary.
func (l *Log) Append(recs ...record.Record) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, ErrClosed
	}
	if len(recs) == 0 {
		return 0, nil
	}

	l.buf, l.ends = l.buf[:0], l.ends[:0]
	for _, rec := range recs {
		var err error
		if l.buf, err = record.AppendFrame(l.buf, rec, l.opts.Compression); err != nil {
			return 0, err
		}
		l.ends = append(l.ends, len(l.buf))
	}

	n, werr := l.f.WriteAt(l.buf, l.size)
	if werr != nil || n < len(l.buf) {
		if werr == nil {
			werr = io.ErrShortWrite
		}
		complete, end := 0, 0
		for complete < len(l.ends) && l.ends[complete] <= n {
			end = l.ends[complete]
			complete++
		}
		if terr := l.f.Truncate(l.size + int64(end)); terr != nil {
			Logger.Errorf("cannot cut partial frame from %s: %v", l.path, terr)
		}
		l.size += int64(end)
		l.shrinkBuffer()
		return complete, fmt.Errorf("logfile: append to %s: %w", l.path, werr)
	}

	l.size += int64(n)
	l.shrinkBuffer()

	if l.opts.SyncWrites {
		if err := l.f.Sync(); err != nil {
			// the frames are in the file, only their durability is unknown
			return len(recs), fmt.Errorf("logfile: sync %s: %w", l.path, err)
		}
	}
	return len(recs), nil
}

// shrinkBuffer drops a frame buffer grown by a single huge append
func (l *Log) shrinkBuffer() {
	if cap(l.buf) > 4*1024*1024 {
		l.buf = nil
	}
}

// Flush forces written frames to stable storage
func (l *Log) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("logfile: sync %s: %w", l.path, err)
	}
	return nil
}

// Truncate drops every frame, leaving only the header
func (l *Log) Truncate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if err := l.f.Truncate(int64(record.HeaderSize)); err != nil {
		return fmt.Errorf("logfile: truncate %s: %w", l.path, err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("logfile: sync %s: %w", l.path, err)
	}
	l.size = int64(record.HeaderSize)
	return nil
}

// Close syncs and closes the file. Closing twice is a no-op.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	syncErr := l.f.Sync()
	if err := l.f.Close(); err != nil {
		return fmt.Errorf("logfile: close %s: %w", l.path, err)
	}
	if syncErr != nil {
		return fmt.Errorf("logfile: sync %s: %w", l.path, syncErr)
	}
	return nil
}
