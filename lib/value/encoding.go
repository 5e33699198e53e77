package value

import (
	"encoding/binary"
	"fmt"
	"math"
)

/*
Encoding (big endian, length prefixes are u32):

	value   = kind:u8 payload
	Null    = (empty)
	String  = len:u32 bytes
	Bytes   = len:u32 bytes
	Int     = i64
	Float   = u64 (IEEE-754 bits)
	Bool    = u8 (0 or 1)
	Hash    = n:u32 n*(len:u32 key len:u32 val)   keys in ascending order
	Seq     = elem:u8 n:u32 n*payload             payloads of kind elem
*/

// Encode returns the canonical binary form of v.
// Equal values always produce identical bytes.
func Encode(v Value) []byte {
	buf := make([]byte, 1+payloadSize(v))
	buf[0] = byte(v.kind)
	pos := putPayload(buf, 1, v)
	return buf[:pos]
}

// Decode parses bytes produced by Encode. Unknown kinds, short input and
// trailing bytes fail with an error matching ErrCodec.
func Decode(b []byte) (Value, error) {
	d := decoder{data: b}
	kind, err := d.kind("value kind")
	if err != nil {
		return Value{}, err
	}
	v, err := d.payload(kind, 0)
	if err != nil {
		return Value{}, err
	}
	if d.pos != len(d.data) {
		return Value{}, fmt.Errorf("%w: %d trailing bytes after %s value", ErrCodec, len(d.data)-d.pos, kind)
	}
	return v, nil
}

// EncodedSize returns len(Encode(v)) without encoding.
func EncodedSize(v Value) int {
	return 1 + payloadSize(v)
}

// --------------------------------------------------------------------------
// Encoding Helpers
// --------------------------------------------------------------------------

// payloadSize precomputes the payload length so Encode allocates once.
func payloadSize(v Value) int {
	switch v.kind {
	case KindString:
		return 4 + len(v.str)
	case KindBytes:
		return 4 + len(v.raw)
	case KindInt, KindFloat:
		return 8
	case KindBool:
		return 1
	case KindHash:
		size := 4
		for k, val := range v.hash {
			size += 8 + len(k) + len(val)
		}
		return size
	case KindSeq:
		size := 5
		for _, e := range v.seq {
			size += payloadSize(e)
		}
		return size
	default:
		return 0
	}
}

func putString(buf []byte, pos int, s string) int {
	binary.BigEndian.PutUint32(buf[pos:pos+4], uint32(len(s)))
	pos += 4
	return pos + copy(buf[pos:], s)
}

// putPayload writes the payload of v at pos and returns the new position.
func putPayload(buf []byte, pos int, v Value) int {
	switch v.kind {
	case KindString:
		pos = putString(buf, pos, v.str)
	case KindBytes:
		binary.BigEndian.PutUint32(buf[pos:pos+4], uint32(len(v.raw)))
		pos += 4
		pos += copy(buf[pos:], v.raw)
	case KindInt, KindFloat:
		binary.BigEndian.PutUint64(buf[pos:pos+8], v.num)
		pos += 8
	case KindBool:
		buf[pos] = byte(v.num)
		pos++
	case KindHash:
		binary.BigEndian.PutUint32(buf[pos:pos+4], uint32(len(v.hash)))
		pos += 4
		for _, k := range sortedKeys(v.hash) {
			pos = putString(buf, pos, k)
			pos = putString(buf, pos, v.hash[k])
		}
	case KindSeq:
		buf[pos] = byte(v.elem)
		binary.BigEndian.PutUint32(buf[pos+1:pos+5], uint32(len(v.seq)))
		pos += 5
		for _, e := range v.seq {
			pos = putPayload(buf, pos, e)
		}
	}
	return pos
}

// --------------------------------------------------------------------------
// Decoding Helpers
// --------------------------------------------------------------------------

// limits for hostile input
const (
	maxDepth   = 64
	maxNullSeq = 1 << 20
)

type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) need(n int, what string) error {
	if n < 0 || len(d.data)-d.pos < n {
		return fmt.Errorf("%w: data too short for %s", ErrCodec, what)
	}
	return nil
}

func (d *decoder) kind(what string) (Kind, error) {
	if err := d.need(1, what); err != nil {
		return 0, err
	}
	k := Kind(d.data[d.pos])
	d.pos++
	if !k.Valid() {
		return 0, fmt.Errorf("%w: unknown kind %d", ErrCodec, k)
	}
	return k, nil
}

func (d *decoder) u32(what string) (int, error) {
	if err := d.need(4, what); err != nil {
		return 0, err
	}
	n := binary.BigEndian.Uint32(d.data[d.pos : d.pos+4])
	d.pos += 4
	if uint64(n) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s of %d exceeds limit", ErrCodec, what, n)
	}
	return int(n), nil
}

func (d *decoder) bytes(what string) ([]byte, error) {
	n, err := d.u32(what + " length")
	if err != nil {
		return nil, err
	}
	if err := d.need(n, what); err != nil {
		return nil, err
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) payload(kind Kind, depth int) (Value, error) {
	switch kind {
	case KindNull:
		return Null(), nil

	case KindString:
		b, err := d.bytes("string")
		if err != nil {
			return Value{}, err
		}
		return String(string(b)), nil

	case KindBytes:
		b, err := d.bytes("bytes")
		if err != nil {
			return Value{}, err
		}
		return Bytes(b), nil

	case KindInt, KindFloat:
		if err := d.need(8, kind.String()); err != nil {
			return Value{}, err
		}
		num := binary.BigEndian.Uint64(d.data[d.pos : d.pos+8])
		d.pos += 8
		return Value{kind: kind, num: num}, nil

	case KindBool:
		if err := d.need(1, "bool"); err != nil {
			return Value{}, err
		}
		b := d.data[d.pos]
		d.pos++
		if b > 1 {
			return Value{}, fmt.Errorf("%w: invalid bool byte %d", ErrCodec, b)
		}
		return Bool(b == 1), nil

	case KindHash:
		n, err := d.u32("hash size")
		if err != nil {
			return Value{}, err
		}
		// every field needs at least 8 bytes, reject impossible counts before allocating
		if err := d.need(n*8, "hash fields"); err != nil {
			return Value{}, err
		}
		m := make(map[string]string, n)
		prev := ""
		for i := 0; i < n; i++ {
			k, err := d.bytes("hash key")
			if err != nil {
				return Value{}, err
			}
			val, err := d.bytes("hash value")
			if err != nil {
				return Value{}, err
			}
			key := string(k)
			if i > 0 && key <= prev {
				return Value{}, fmt.Errorf("%w: hash keys not in canonical order at %q", ErrCodec, key)
			}
			prev = key
			m[key] = string(val)
		}
		return Value{kind: KindHash, hash: m}, nil

	case KindSeq:
		if depth >= maxDepth {
			return Value{}, fmt.Errorf("%w: sequence nesting deeper than %d", ErrCodec, maxDepth)
		}
		elem, err := d.kind("sequence element kind")
		if err != nil {
			return Value{}, err
		}
		n, err := d.u32("sequence length")
		if err != nil {
			return Value{}, err
		}
		// Null elements have an empty payload, so they get a fixed bound instead
		if elem == KindNull && n > maxNullSeq {
			return Value{}, fmt.Errorf("%w: sequence of %d nulls exceeds limit", ErrCodec, n)
		}
		if elem != KindNull {
			if err := d.need(n, "sequence elements"); err != nil {
				return Value{}, err
			}
		}
		items := make([]Value, 0, min(n, 1024))
		for i := 0; i < n; i++ {
			e, err := d.payload(elem, depth+1)
			if err != nil {
				return Value{}, err
			}
			items = append(items, e)
		}
		return Value{kind: KindSeq, seq: items, elem: elem, depth: seqDepth(items)}, nil
	}

	return Value{}, fmt.Errorf("%w: unknown kind %d", ErrCodec, kind)
}
