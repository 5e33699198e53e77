// Package logfile owns the data file of a store: it creates and validates the
// file, replays its frames on open and appends new frames.
//
// The file is an append-only log of record frames (see package record). It is
// never rewritten in place, except by Truncate, which resets it to the bare
// header, and by the torn tail repair during Replay.
//
// Replay policy:
//   - a frame cut short by the end of the file is a torn write. Replay stops
//     before it, truncates the file to the end of the last complete frame and
//     logs a warning.
//   - a complete frame that fails its checksum or does not decode aborts Replay
//     with an error wrapping record.ErrCorrupt and naming the byte offset.
//
// Write path:
//
// The Appender interface is the seam between a store and the file. *Log is the
// direct implementation: every Append is one write followed by an fsync when
// Options.SyncWrites is set. BatchAppender buffers records and writes them in
// groups, trading durability of the most recent writes for throughput. Discard
// accepts everything and writes nothing (memory runtime).
package logfile
