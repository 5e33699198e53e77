// Package record defines the on-disk framing of the data file.
//
// A data file starts with an 8 byte header (7 byte magic "QKVLOG\x00" and one
// format version byte) followed by frames:
//
//	[u32 bodyLen][body][u64 xxh3(body)]
//	body = [u8 op][u8 compression][i64 expireAt][u32 keyLen][key][u32 valueLen][value]
//
// All integers are big endian. The value is stored compressed when the frame's
// compression byte is not CompressionNone; each frame names its own algorithm,
// so files written with different settings stay readable.
//
// ReadFrame distinguishes two failure classes. ErrTruncated means the input
// ended inside a frame (a torn write at the tail). ErrCorrupt means a complete
// frame failed its checksum or does not decode.
package record
