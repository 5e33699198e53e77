package logfile

import (
	"sync"
	"time"

	"github.com/ValentinKolb/qKV/lib/db/record"
)

// Appender is the write path of a store. Append returns how many of recs were
// accepted, in order; on error the first n records are applied and the rest
// are not.
type Appender interface {
	Append(recs ...record.Record) (n int, err error)
	// Flush makes every accepted record durable
	Flush() error
	// Truncate drops all records, including accepted ones not yet written
	Truncate() error
	Close() error
}

var _ Appender = (*Log)(nil)
var _ Appender = (*BatchAppender)(nil)

// --------------------------------------------------------------------------
// Discard
// --------------------------------------------------------------------------

type discard struct{}

// Discard returns an Appender that accepts every record and keeps nothing
func Discard() Appender {
	return discard{}
}

func (discard) Append(recs ...record.Record) (int, error) { return len(recs), nil }
func (discard) Flush() error                              { return nil }
func (discard) Truncate() error                           { return nil }
func (discard) Close() error                              { return nil }

// --------------------------------------------------------------------------
// Batching
// --------------------------------------------------------------------------

// BatchOptions configures a BatchAppender
type BatchOptions struct {
	MaxBytes int           // flush once this many bytes are pending (0 = no size trigger)
	Interval time.Duration // flush at least this often (0 = no timer)
}

// BatchAppender buffers records and writes them to a Log in groups. Append
// returns as soon as the records are buffered, so records accepted since the
// last flush are lost on a crash. A write error is sticky: every later call
// returns it.
//
// Thread-safety: all methods are safe for concurrent use.
type BatchAppender struct {
	mu      sync.Mutex
	log     *Log
	opts    BatchOptions
	pending []record.Record
	bytes   int
	err     error

	stop chan struct{}
	done chan struct{}
}

// NewBatchAppender wraps log. If opts.Interval > 0 a background goroutine
// flushes on that interval until Close.
func NewBatchAppender(log *Log, opts BatchOptions) *BatchAppender {
	b := &BatchAppender{
		log:  log,
		opts: opts,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	if opts.Interval > 0 {
		go b.flushLoop()
	} else {
		close(b.done)
	}
	return b
}

func (b *BatchAppender) flushLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			b.mu.Lock()
			if err := b.flushLocked(); err != nil {
				Logger.Errorf("periodic flush of %s failed: %v", b.log.Path(), err)
			}
			b.mu.Unlock()
		}
	}
}

// frameEstimate approximates the framed size of rec before compression
func frameEstimate(rec record.Record) int {
	return 30 + len(rec.Key) + len(rec.Value)
}

func (b *BatchAppender) Append(recs ...record.Record) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.err != nil {
		return 0, b.err
	}

	before := len(b.pending)
	for _, rec := range recs {
		b.pending = append(b.pending, rec)
		b.bytes += frameEstimate(rec)
	}

	if b.opts.MaxBytes > 0 && b.bytes >= b.opts.MaxBytes {
		written, err := b.writeLocked()
		if err != nil {
			// records of earlier calls come first in the batch
			return max(0, written-before), err
		}
	}
	return len(recs), nil
}

// writeLocked hands the pending records to the log and reports how many of
// them were written
func (b *BatchAppender) writeLocked() (int, error) {
	if len(b.pending) == 0 {
		return 0, nil
	}
	n, err := b.log.Append(b.pending...)
	clear(b.pending)
	b.pending, b.bytes = b.pending[:0], 0
	if err != nil {
		b.err = err
		Logger.Errorf("batch write to %s failed after %d records: %v", b.log.Path(), n, err)
	}
	return n, err
}

func (b *BatchAppender) flushLocked() error {
	if b.err != nil {
		return b.err
	}
	if _, err := b.writeLocked(); err != nil {
		return err
	}
	return b.log.Flush()
}

// Pending returns the number of buffered records
func (b *BatchAppender) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Flush writes and syncs all buffered records
func (b *BatchAppender) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked()
}

// Truncate drops buffered records and empties the log. A successful truncate
// also clears a sticky write error, the file is back on a frame boundary.
func (b *BatchAppender) Truncate() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.pending)
	b.pending, b.bytes = b.pending[:0], 0
	if err := b.log.Truncate(); err != nil {
		return err
	}
	b.err = nil
	return nil
}

// Close stops the flush goroutine, flushes and closes the log
func (b *BatchAppender) Close() error {
	select {
	case <-b.stop:
	default:
		close(b.stop)
	}
	<-b.done

	b.mu.Lock()
	defer b.mu.Unlock()
	flushErr := b.flushLocked()
	if err := b.log.Close(); err != nil {
		return err
	}
	return flushErr
}
