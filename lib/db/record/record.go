package record

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/zeebo/xxh3"
)

// --------------------------------------------------------------------------
// Constants and Errors
// --------------------------------------------------------------------------

const (
	// Magic identifies a qKV data file
	Magic = "QKVLOG\x00"
	// Version is the frame format version written after Magic
	Version byte = 1
	// HeaderSize is the size of Magic plus the version byte
	HeaderSize = len(Magic) + 1

	lenSize      = 4
	checksumSize = 8
	// op + compression + expireAt + keyLen + valueLen
	fixedBodySize = 1 + 1 + 8 + 4 + 4

	// MaxBodySize bounds a single frame body, larger length prefixes are
	// treated as corruption
	MaxBodySize = 1 << 30
)

var (
	// ErrCorrupt is returned for a complete frame that fails validation
	ErrCorrupt = errors.New("record: corrupt frame")
	// ErrTruncated is returned when the input ends inside a frame
	ErrTruncated = errors.New("record: truncated frame")
	// ErrHeader is returned for a file that does not start with a valid header
	ErrHeader = errors.New("record: invalid file header")
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Op is the kind of mutation a record describes
type Op uint8

const (
	OpSet    Op = 1 // store Value under Key
	OpDelete Op = 2 // tombstone, removes Key
)

func (op Op) String() string {
	switch op {
	case OpSet:
		return "set"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("op(%d)", uint8(op))
	}
}

// Record is one mutation of the data file. Value holds the encoded
// value.Value (uncompressed) and is empty for tombstones.
type Record struct {
	Op       Op
	Key      string
	Value    []byte
	ExpireAt int64 // unix milliseconds, 0 = never
}

// --------------------------------------------------------------------------
// Header
// --------------------------------------------------------------------------

// Header returns the file header
func Header() []byte {
	h := make([]byte, 0, HeaderSize)
	h = append(h, Magic...)
	return append(h, Version)
}

// CheckHeader validates the first HeaderSize bytes of a data file
func CheckHeader(b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrHeader, len(b))
	}
	if string(b[:len(Magic)]) != Magic {
		return fmt.Errorf("%w: bad magic %q", ErrHeader, b[:len(Magic)])
	}
	if b[len(Magic)] != Version {
		return fmt.Errorf("%w: unsupported version %d", ErrHeader, b[len(Magic)])
	}
	return nil
}

// IsHeaderPrefix reports whether b is a strict prefix of the header, which is
// what a crash during file creation leaves behind
func IsHeaderPrefix(b []byte) bool {
	return len(b) < HeaderSize && bytes.Equal(b, Header()[:len(b)])
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// AppendFrame appends the framed record to dst and returns the extended slice.
// The value is compressed with c.
func AppendFrame(dst []byte, rec Record, c Compression) ([]byte, error) {
	if rec.Op != OpSet && rec.Op != OpDelete {
		return dst, fmt.Errorf("record: invalid op %d", rec.Op)
	}

	payload := rec.Value
	if len(payload) > 0 && c != CompressionNone {
		var err error
		if payload, err = compress(c, payload); err != nil {
			return dst, err
		}
	} else {
		c = CompressionNone
	}

	bodyLen := fixedBodySize + len(rec.Key) + len(payload)
	if bodyLen > MaxBodySize {
		return dst, fmt.Errorf("record: frame body of %d bytes exceeds limit", bodyLen)
	}

	start := len(dst)
	dst = binary.BigEndian.AppendUint32(dst, uint32(bodyLen))
	dst = append(dst, byte(rec.Op), byte(c))
	dst = binary.BigEndian.AppendUint64(dst, uint64(rec.ExpireAt))
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(rec.Key)))
	dst = append(dst, rec.Key...)
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(payload)))
	dst = append(dst, payload...)

	body := dst[start+lenSize:]
	return binary.BigEndian.AppendUint64(dst, xxh3.Hash(body)), nil
}

// --------------------------------------------------------------------------
// Decoding
// --------------------------------------------------------------------------

// ReadFrame reads the next frame from r. It returns the record and the number
// of bytes the frame occupies. At a clean end of input it returns io.EOF.
func ReadFrame(r io.Reader) (Record, int, error) {
	return ReadFrameN(r, -1)
}

// ReadFrameN is ReadFrame for an input known to hold remaining more bytes. A
// length prefix reaching past the end returns ErrTruncated without allocating
// the body. A negative remaining means unknown.
func ReadFrameN(r io.Reader, remaining int64) (Record, int, error) {
	var lenBuf [lenSize]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, 0, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Record{}, 0, ErrTruncated
		}
		return Record{}, 0, err
	}

	bodyLen := binary.BigEndian.Uint32(lenBuf[:])
	if bodyLen < fixedBodySize || bodyLen > MaxBodySize {
		return Record{}, 0, fmt.Errorf("%w: body length %d", ErrCorrupt, bodyLen)
	}
	if remaining >= 0 && int64(lenSize)+int64(bodyLen)+checksumSize > remaining {
		return Record{}, 0, ErrTruncated
	}

	buf := make([]byte, int(bodyLen)+checksumSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Record{}, 0, ErrTruncated
		}
		return Record{}, 0, err
	}

	body, sum := buf[:bodyLen], binary.BigEndian.Uint64(buf[bodyLen:])
	if xxh3.Hash(body) != sum {
		return Record{}, 0, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	rec, err := decodeBody(body)
	if err != nil {
		return Record{}, 0, err
	}
	return rec, lenSize + len(buf), nil
}

// FindFrame scans b for a complete frame that passes validation and returns
// its offset. A torn tail never holds one, so a hit means the bytes before it
// are damaged rather than unfinished.
func FindFrame(b []byte) (int, bool) {
	for i := 0; i+lenSize+fixedBodySize+checksumSize <= len(b); i++ {
		bodyLen := int(binary.BigEndian.Uint32(b[i:]))
		if bodyLen < fixedBodySize || bodyLen > MaxBodySize {
			continue
		}
		end := i + lenSize + bodyLen + checksumSize
		if end > len(b) {
			continue
		}
		body := b[i+lenSize : i+lenSize+bodyLen]
		if xxh3.Hash(body) != binary.BigEndian.Uint64(b[end-checksumSize:end]) {
			continue
		}
		if _, err := decodeBody(body); err == nil {
			return i, true
		}
	}
	return 0, false
}

func decodeBody(body []byte) (Record, error) {
	op, c := Op(body[0]), Compression(body[1])
	if op != OpSet && op != OpDelete {
		return Record{}, fmt.Errorf("%w: unknown op %d", ErrCorrupt, body[0])
	}
	if !c.Valid() {
		return Record{}, fmt.Errorf("%w: unknown compression %d", ErrCorrupt, body[1])
	}
	expireAt := int64(binary.BigEndian.Uint64(body[2:10]))
	rest := body[10:]

	key, rest, ok := lengthPrefixed(rest)
	if !ok {
		return Record{}, fmt.Errorf("%w: key length", ErrCorrupt)
	}
	payload, rest, ok := lengthPrefixed(rest)
	if !ok || len(rest) != 0 {
		return Record{}, fmt.Errorf("%w: value length", ErrCorrupt)
	}

	var value []byte
	if len(payload) > 0 {
		var err error
		if value, err = decompress(c, payload); err != nil {
			return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if c == CompressionNone {
			value = bytes.Clone(payload)
		}
	}

	return Record{Op: op, Key: string(key), Value: value, ExpireAt: expireAt}, nil
}

func lengthPrefixed(b []byte) (field, rest []byte, ok bool) {
	if len(b) < 4 {
		return nil, nil, false
	}
	n := binary.BigEndian.Uint32(b)
	b = b[4:]
	if uint64(n) > uint64(len(b)) {
		return nil, nil, false
	}
	return b[:n], b[n:], true
}
