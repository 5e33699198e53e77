package value

import (
	"errors"
	"reflect"
	"testing"
)

type book struct {
	Title  string
	Author string
	Year   int
}

func TestBuiltinCodecs(t *testing.T) {
	v, _ := Strings.ToValue("hello world!")
	if s, err := Strings.FromValue(v); err != nil || s != "hello world!" {
		t.Errorf("Strings: got %q, %v", s, err)
	}

	v, _ = Ints.ToValue(12)
	if _, err := Strings.FromValue(v); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("reading an Int with Strings should fail with ErrTypeMismatch, got %v", err)
	}

	v, _ = Hashes.ToValue(map[string]string{"a": "1"})
	if m, err := Hashes.FromValue(v); err != nil || m["a"] != "1" {
		t.Errorf("Hashes: got %v, %v", m, err)
	}
}

func TestSeqOf(t *testing.T) {
	codec := SeqOf(KindString, Strings)
	titles := []string{"Dune", "Neuromancer", "Hyperion"}

	v, err := codec.ToValue(titles)
	if err != nil {
		t.Fatalf("ToValue failed: %v", err)
	}
	back, err := codec.FromValue(v)
	if err != nil {
		t.Fatalf("FromValue failed: %v", err)
	}
	if !reflect.DeepEqual(back, titles) {
		t.Errorf("got %v, want %v", back, titles)
	}

	empty, _ := codec.ToValue(nil)
	if elem, items, _ := empty.AsSeq(); elem != KindString || len(items) != 0 {
		t.Errorf("empty slice should encode a typed empty Seq, got %s with %d items", elem, len(items))
	}

	ints, _ := SeqOf(KindInt, Ints).ToValue([]int64{1, 2})
	if _, err := codec.FromValue(ints); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("reading an Int sequence as strings should fail, got %v", err)
	}
}

func TestStructCodecs(t *testing.T) {
	in := book{Title: "Dune", Author: "Herbert", Year: 1965}

	for name, codec := range map[string]Codec[book]{"json": JSON[book](), "gob": Gob[book]()} {
		v, err := codec.ToValue(in)
		if err != nil {
			t.Fatalf("%s: ToValue failed: %v", name, err)
		}

		// survive the binary encoding too
		decoded, err := Decode(Encode(v))
		if err != nil {
			t.Fatalf("%s: Decode failed: %v", name, err)
		}

		out, err := codec.FromValue(decoded)
		if err != nil {
			t.Fatalf("%s: FromValue failed: %v", name, err)
		}
		if out != in {
			t.Errorf("%s: got %+v, want %+v", name, out, in)
		}
	}

	if _, err := JSON[book]().FromValue(String("not json")); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("invalid json should be a type mismatch, got %v", err)
	}
	if _, err := Gob[book]().FromValue(Int(1)); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("gob codec on an Int should be a type mismatch, got %v", err)
	}
}
