// Package store defines the client facing API of qKV: the IStore interface,
// its typed wrapper Typed[T], the configuration of a store and the structured
// error type shared by all implementations.
//
// Key Components:
//
//   - IStore Interface: get, set (with optional TTL), batch get and set,
//     delete, has, keys and clear over value.Value. A missing key is reported
//     through the boolean result, never as an error.
//
//   - Typed[T]: a generic facade over any IStore that converts through a
//     value.Codec[T]. Reading a key that holds another type fails with
//     RetCTypeMismatch instead of coercing.
//
//   - Error System: every failure is a *Error with a RetCode (IOFailure,
//     CodecFailure, TypeMismatch, ...). Error.Unwrap exposes the cause, so
//     errors.Is works with the sentinel errors of the lower layers.
//
//   - Config: storage path and runtime, cache engine, compression, write path
//     batching, default TTL, sweeper interval and logging. DefaultConfig
//     returns the defaults, NormalizePath maps user input to a .qkv file.
//
//   - Logging: InitLoggers installs a dragonboat logger factory printing
//     "LEVEL | package | message" lines and sets the level of the store,
//     logfile and sweeper loggers.
//
// Implementations:
//
//	The lstore package ("github.com/ValentinKolb/qKV/lib/store/lstore")
//	implements IStore on top of a data file (package logfile) and an in-memory
//	cache (package db).
package store
