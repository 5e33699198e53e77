package store

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/qKV/lib/db"
	"github.com/ValentinKolb/qKV/lib/value"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store as its
// in-memory cache.
type DBFactory func() db.KVDB

// Record is one key-value pair of a batch operation
type Record struct {
	Key   string
	Value value.Value
	// TTL applies to SetMany only: 0 uses the configured default, a negative
	// TTL stores the record without expiry
	TTL time.Duration
}

// IStore is the interface of a persistent key-value store.
// All write operations return only a *Error (nil on success),
// while read operations return the requested data along with a *Error (nil on success).
// A missing key is never an error.
type IStore interface {
	// Set inserts or replaces the value of key, using the default TTL.
	Set(key string, v value.Value) (err error)
	// SetE inserts or replaces the value of key with an expiry. A ttl of 0
	// uses the configured default, a negative ttl means no expiry.
	SetE(key string, v value.Value, ttl time.Duration) (err error)
	// SetMany writes all records under a single lock acquisition and a single
	// append. Every value is encoded before anything is written. On an I/O
	// failure the error is a *Error whose Applied field counts the records
	// that were written and are visible.
	SetMany(records []Record) (err error)
	// Delete removes key. Deleting a missing key is a no-op.
	Delete(key string) (err error)
	// DeleteMany removes all given keys with a single append.
	DeleteMany(keys []string) (err error)
	// Clear removes every key and resets the data file.
	Clear() (err error)

	// Get returns the value of key. The boolean reports whether the key exists
	// (and is not expired).
	Get(key string) (v value.Value, loaded bool, err error)
	// GetMany returns the records for keys in request order. Missing or
	// expired keys are omitted, duplicate keys appear once per occurrence.
	GetMany(keys []string) (records []Record, err error)
	// Has reports whether key exists and is not expired.
	Has(key string) (loaded bool, err error)
	// GetAll returns every live record sorted by key, read under a single
	// lock acquisition.
	GetAll() (records []Record, err error)
	// Keys returns all live keys in sorted order.
	Keys() (keys []string, err error)
	// Len returns the number of live keys.
	Len() (n int, err error)

	// GetDBInfo returns metadata about the cache engine underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
	// WriteMetrics writes the store metrics in Prometheus text format.
	WriteMetrics(w io.Writer)
	// Close flushes pending writes, stops background work and releases the
	// data file. Every later call fails with RetCClosed.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode),
// an error message and the underlying cause.
type Error struct {
	Code    RetCode // The return code
	Msg     string  // The error message
	Applied int     // Records applied before a batch failed
	Err     error   // The cause, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("qKV error (code %s): %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("qKV error (code %s): %s", e.Code, e.Msg)
}

// Unwrap exposes the cause, so errors.Is works on sentinel errors of the
// lower layers (value.ErrTypeMismatch, record.ErrCorrupt, ...)
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new Error with the given code around err.
func WrapError(code RetCode, err error, format string, args ...any) *Error {
	return &Error{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
		Err:  err,
	}
}

// CodeOf returns the RetCode of err: RetCSuccess for nil, RetCInternalError
// for errors that are not a *Error.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RetCInternalError
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation or argument.
	RetCIOFailure                           // 4: The data file could not be read or written.
	RetCCodecFailure                        // 5: Stored or supplied bytes do not decode.
	RetCTypeMismatch                        // 6: The stored value does not hold the requested type.
	RetCClosed                              // 7: The store was closed.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCIOFailure:
		return "IOFailure"
	case RetCCodecFailure:
		return "CodecFailure"
	case RetCTypeMismatch:
		return "TypeMismatch"
	case RetCClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
