package value

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Codec Interface
// --------------------------------------------------------------------------

// Codec converts between a Go type and a Value. The typed store facade is
// generic over a Codec, so every supported element type is an explicit value
// rather than a reflection rule.
//
// FromValue must return an error matching ErrTypeMismatch when the Value does
// not hold a T.
type Codec[T any] interface {
	ToValue(v T) (Value, error)
	FromValue(v Value) (T, error)
}

type funcCodec[T any] struct {
	to   func(T) (Value, error)
	from func(Value) (T, error)
}

func (c funcCodec[T]) ToValue(v T) (Value, error)   { return c.to(v) }
func (c funcCodec[T]) FromValue(v Value) (T, error) { return c.from(v) }

// NewCodec builds a Codec from two functions.
func NewCodec[T any](to func(T) (Value, error), from func(Value) (T, error)) Codec[T] {
	return funcCodec[T]{to: to, from: from}
}

func infallible[T any](fn func(T) Value) func(T) (Value, error) {
	return func(v T) (Value, error) { return fn(v), nil }
}

// --------------------------------------------------------------------------
// Built-in Codecs
// --------------------------------------------------------------------------

var (
	Strings Codec[string]            = NewCodec(infallible(String), Value.AsString)
	Ints    Codec[int64]             = NewCodec(infallible(Int), Value.AsInt)
	Floats  Codec[float64]           = NewCodec(infallible(Float), Value.AsFloat)
	Bools   Codec[bool]              = NewCodec(infallible(Bool), Value.AsBool)
	Blobs   Codec[[]byte]            = NewCodec(infallible(Bytes), Value.AsBytes)
	Hashes  Codec[map[string]string] = NewCodec(infallible(Hash), Value.AsHash)

	// Values is the identity codec, used by the untyped store.
	Values Codec[Value] = NewCodec(
		func(v Value) (Value, error) { return v, nil },
		func(v Value) (Value, error) { return v, nil },
	)
)

// SeqOf returns a codec for []T stored as a Seq whose elements have kind elem.
// The element kind is fixed up front so an empty slice still encodes a typed Seq.
func SeqOf[T any](elem Kind, c Codec[T]) Codec[[]T] {
	return NewCodec(
		func(items []T) (Value, error) {
			values := make([]Value, len(items))
			for i, item := range items {
				v, err := c.ToValue(item)
				if err != nil {
					return Value{}, fmt.Errorf("sequence item %d: %w", i, err)
				}
				values[i] = v
			}
			return Seq(elem, values...)
		},
		func(v Value) ([]T, error) {
			got, values, err := v.AsSeq()
			if err != nil {
				return nil, err
			}
			if got != elem {
				return nil, fmt.Errorf("sequence elements: %w", &MismatchError{Want: elem, Got: got})
			}
			items := make([]T, len(values))
			for i, e := range values {
				if items[i], err = c.FromValue(e); err != nil {
					return nil, fmt.Errorf("sequence item %d: %w", i, err)
				}
			}
			return items, nil
		},
	)
}

// --------------------------------------------------------------------------
// Struct Codecs
// --------------------------------------------------------------------------

// JSON returns a codec that stores T as JSON text in a String value.
// Text that does not unmarshal into T is reported as a type mismatch.
func JSON[T any]() Codec[T] {
	return NewCodec(
		func(v T) (Value, error) {
			b, err := json.Marshal(v)
			if err != nil {
				return Value{}, fmt.Errorf("json encode: %w", err)
			}
			return String(string(b)), nil
		},
		func(v Value) (T, error) {
			var out T
			s, err := v.AsString()
			if err != nil {
				return out, err
			}
			if err := json.Unmarshal([]byte(s), &out); err != nil {
				return out, fmt.Errorf("%w: json decode into %T: %v", ErrTypeMismatch, out, err)
			}
			return out, nil
		},
	)
}

// Gob returns a codec that stores T gob-encoded in a Bytes value.
func Gob[T any]() Codec[T] {
	return NewCodec(
		func(v T) (Value, error) {
			var buf bytes.Buffer
			if err := gob.NewEncoder(&buf).Encode(v); err != nil {
				return Value{}, fmt.Errorf("gob encode: %w", err)
			}
			return Value{kind: KindBytes, raw: buf.Bytes()}, nil
		},
		func(v Value) (T, error) {
			var out T
			if v.kind != KindBytes {
				return out, v.mismatch(KindBytes)
			}
			if err := gob.NewDecoder(bytes.NewReader(v.raw)).Decode(&out); err != nil {
				return out, fmt.Errorf("%w: gob decode into %T: %v", ErrTypeMismatch, out, err)
			}
			return out, nil
		},
	)
}
