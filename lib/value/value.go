package value

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Kind (the tag of a Value)
// --------------------------------------------------------------------------

// Kind identifies the variant held by a Value. It is written as the first byte
// of every encoded value, so existing numbers must never change.
type Kind uint8

const (
	KindNull   Kind = iota // no payload
	KindString             // utf-8 text
	KindInt                // signed 64-bit integer
	KindFloat              // IEEE-754 double
	KindBool               // true / false
	KindBytes              // opaque byte string
	KindHash               // string -> string map
	KindSeq                // ordered list of values of one kind
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindString:
		return "String"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindBool:
		return "Bool"
	case KindBytes:
		return "Bytes"
	case KindHash:
		return "Hash"
	case KindSeq:
		return "Seq"
	default:
		return "Unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k <= KindSeq
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrTypeMismatch is matched (errors.Is) by every error returned when a value
	// is read as a kind it does not hold.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrCodec is matched by every error returned while decoding malformed bytes.
	ErrCodec = errors.New("codec failure")
)

// MismatchError describes a read of the wrong kind.
type MismatchError struct {
	Want Kind
	Got  Kind
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("type mismatch: want %s, got %s", e.Want, e.Got)
}

// Is makes errors.Is(err, ErrTypeMismatch) succeed.
func (e *MismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// --------------------------------------------------------------------------
// Value
// --------------------------------------------------------------------------

// Value is a tagged union over the storable types. The zero Value is Null.
//
// Values are immutable once built: constructors copy their input and accessors
// return copies, so a Value can be shared between goroutines.
type Value struct {
	kind Kind
	str  string // KindString
	num  uint64 // KindInt (two's complement), KindFloat (bits), KindBool (0/1)
	raw  []byte // KindBytes
	hash map[string]string
	seq   []Value
	elem  Kind // element kind of a KindSeq
	depth int  // nesting levels of a KindSeq, 1 for a flat sequence
}

// Null returns the Null value.
func Null() Value { return Value{} }

// String returns a String value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int returns an Int value.
func Int(i int64) Value { return Value{kind: KindInt, num: uint64(i)} }

// Float returns a Float value.
func Float(f float64) Value { return Value{kind: KindFloat, num: math.Float64bits(f)} }

// Bool returns a Bool value.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

// Bytes returns a Bytes value holding a copy of b. A nil slice is stored as empty.
func Bytes(b []byte) Value {
	c := make([]byte, len(b))
	copy(c, b)
	return Value{kind: KindBytes, raw: c}
}

// Hash returns a Hash value holding a copy of m.
func Hash(m map[string]string) Value {
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return Value{kind: KindHash, hash: c}
}

// Seq returns a Seq value whose elements all have kind elem.
// It fails with a *MismatchError if any item has a different kind, and with
// ErrCodec if the result would nest more than 64 sequences deep, the limit
// Decode accepts.
func Seq(elem Kind, items ...Value) (Value, error) {
	if !elem.Valid() {
		return Value{}, fmt.Errorf("%w: invalid element kind %d", ErrCodec, elem)
	}
	c := make([]Value, len(items))
	for i, item := range items {
		if item.kind != elem {
			return Value{}, &MismatchError{Want: elem, Got: item.kind}
		}
		c[i] = item
	}
	depth := seqDepth(c)
	if depth > maxDepth {
		return Value{}, fmt.Errorf("%w: sequence nesting deeper than %d", ErrCodec, maxDepth)
	}
	return Value{kind: KindSeq, seq: c, elem: elem, depth: depth}, nil
}

// seqDepth returns the nesting levels of a sequence holding items
func seqDepth(items []Value) int {
	depth := 1
	for _, item := range items {
		if item.kind == KindSeq {
			depth = max(depth, item.depth+1)
		}
	}
	return depth
}

// MustSeq is like Seq but panics on a mixed item list or too deep nesting.
func MustSeq(elem Kind, items ...Value) Value {
	v, err := Seq(elem, items...)
	if err != nil {
		panic(err)
	}
	return v
}

// Kind returns the tag of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the Null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// --------------------------------------------------------------------------
// Fallible Accessors
// --------------------------------------------------------------------------

func (v Value) mismatch(want Kind) error {
	return &MismatchError{Want: want, Got: v.kind}
}

// AsString returns the string held by v or a *MismatchError.
func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", v.mismatch(KindString)
	}
	return v.str, nil
}

// AsInt returns the integer held by v or a *MismatchError.
func (v Value) AsInt() (int64, error) {
	if v.kind != KindInt {
		return 0, v.mismatch(KindInt)
	}
	return int64(v.num), nil
}

// AsFloat returns the float held by v or a *MismatchError. Ints are not widened.
func (v Value) AsFloat() (float64, error) {
	if v.kind != KindFloat {
		return 0, v.mismatch(KindFloat)
	}
	return math.Float64frombits(v.num), nil
}

// AsBool returns the bool held by v or a *MismatchError.
func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, v.mismatch(KindBool)
	}
	return v.num == 1, nil
}

// AsBytes returns a copy of the bytes held by v or a *MismatchError.
func (v Value) AsBytes() ([]byte, error) {
	if v.kind != KindBytes {
		return nil, v.mismatch(KindBytes)
	}
	c := make([]byte, len(v.raw))
	copy(c, v.raw)
	return c, nil
}

// AsHash returns a copy of the map held by v or a *MismatchError.
func (v Value) AsHash() (map[string]string, error) {
	if v.kind != KindHash {
		return nil, v.mismatch(KindHash)
	}
	c := make(map[string]string, len(v.hash))
	for k, val := range v.hash {
		c[k] = val
	}
	return c, nil
}

// AsSeq returns the element kind and a copy of the elements held by v, or a *MismatchError.
func (v Value) AsSeq() (Kind, []Value, error) {
	if v.kind != KindSeq {
		return 0, nil, v.mismatch(KindSeq)
	}
	c := make([]Value, len(v.seq))
	copy(c, v.seq)
	return v.elem, c, nil
}

// --------------------------------------------------------------------------
// Comparison and Formatting
// --------------------------------------------------------------------------

// Equal reports whether v and o hold the same kind and payload.
// Floats compare by bit pattern, so NaN equals an identical NaN.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == o.str
	case KindInt, KindFloat, KindBool:
		return v.num == o.num
	case KindBytes:
		return string(v.raw) == string(o.raw)
	case KindHash:
		if len(v.hash) != len(o.hash) {
			return false
		}
		for k, a := range v.hash {
			if b, ok := o.hash[k]; !ok || a != b {
				return false
			}
		}
		return true
	case KindSeq:
		if v.elem != o.elem || len(v.seq) != len(o.seq) {
			return false
		}
		for i := range v.seq {
			if !v.seq[i].Equal(o.seq[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders v for humans (the CLI uses it). It is not an encoding.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return strconv.Quote(v.str)
	case KindInt:
		return strconv.FormatInt(int64(v.num), 10)
	case KindFloat:
		return strconv.FormatFloat(math.Float64frombits(v.num), 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.num == 1)
	case KindBytes:
		return fmt.Sprintf("0x%x", v.raw)
	case KindHash:
		keys := sortedKeys(v.hash)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = strconv.Quote(k) + ": " + strconv.Quote(v.hash[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindSeq:
		parts := make([]string, len(v.seq))
		for i, e := range v.seq {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "<invalid>"
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
