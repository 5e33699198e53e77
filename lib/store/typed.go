package store

import (
	"time"

	"github.com/ValentinKolb/qKV/lib/value"
)

// KV is a typed key-value pair
type KV[T any] struct {
	Key   string
	Value T
}

// Typed is a typed view on an IStore. Values are converted with the codec on
// the way in and out; a stored value of the wrong type is reported as a *Error
// with code RetCTypeMismatch.
//
// Thread-safety: Typed adds no state, it is as safe as the wrapped store.
type Typed[T any] struct {
	store IStore
	codec value.Codec[T]
}

// NewTyped wraps s with codec c
func NewTyped[T any](s IStore, c value.Codec[T]) *Typed[T] {
	return &Typed[T]{store: s, codec: c}
}

func (t *Typed[T]) encode(key string, v T) (value.Value, error) {
	val, err := t.codec.ToValue(v)
	if err != nil {
		return value.Value{}, WrapError(RetCCodecFailure, err, "cannot convert value for key %q", key)
	}
	return val, nil
}

func (t *Typed[T]) decode(key string, v value.Value) (T, error) {
	out, err := t.codec.FromValue(v)
	if err != nil {
		return out, WrapError(RetCTypeMismatch, err, "value of key %q", key)
	}
	return out, nil
}

func (t *Typed[T]) Get(key string) (T, bool, error) {
	var zero T
	v, ok, err := t.store.Get(key)
	if err != nil || !ok {
		return zero, ok, err
	}
	out, err := t.decode(key, v)
	if err != nil {
		return zero, true, err
	}
	return out, true, nil
}

func (t *Typed[T]) Set(key string, v T) error {
	val, err := t.encode(key, v)
	if err != nil {
		return err
	}
	return t.store.Set(key, val)
}

func (t *Typed[T]) SetE(key string, v T, ttl time.Duration) error {
	val, err := t.encode(key, v)
	if err != nil {
		return err
	}
	return t.store.SetE(key, val, ttl)
}

// GetMany returns the pairs for keys in request order, missing keys omitted.
// A single value of the wrong type fails the whole call.
func (t *Typed[T]) GetMany(keys []string) ([]KV[T], error) {
	records, err := t.store.GetMany(keys)
	if err != nil {
		return nil, err
	}
	return t.decodeAll(records)
}

// GetAll returns every live pair sorted by key
func (t *Typed[T]) GetAll() ([]KV[T], error) {
	records, err := t.store.GetAll()
	if err != nil {
		return nil, err
	}
	return t.decodeAll(records)
}

func (t *Typed[T]) decodeAll(records []Record) ([]KV[T], error) {
	out := make([]KV[T], 0, len(records))
	for _, r := range records {
		v, err := t.decode(r.Key, r.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, KV[T]{Key: r.Key, Value: v})
	}
	return out, nil
}

// SetMany converts all pairs first, a conversion failure writes nothing
func (t *Typed[T]) SetMany(pairs []KV[T]) error {
	records := make([]Record, len(pairs))
	for i, p := range pairs {
		val, err := t.encode(p.Key, p.Value)
		if err != nil {
			return err
		}
		records[i] = Record{Key: p.Key, Value: val}
	}
	return t.store.SetMany(records)
}

func (t *Typed[T]) Delete(key string) error {
	return t.store.Delete(key)
}

func (t *Typed[T]) Has(key string) (bool, error) {
	return t.store.Has(key)
}
