package util

import (
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/qKV/lib/value"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 40)
	for _, line := range strings.Split(WrapString(text), "\n") {
		if len(line) > Wrap {
			t.Errorf("line longer than %d: %q", Wrap, line)
		}
	}
}

func TestParseValue(t *testing.T) {
	cases := []struct {
		typ, raw string
		want     value.Value
	}{
		{"string", "hi", value.String("hi")},
		{"int", "-42", value.Int(-42)},
		{"float", "2.5", value.Float(2.5)},
		{"bool", "true", value.Bool(true)},
		{"bytes", "00ff", value.Bytes([]byte{0x00, 0xff})},
		{"hash", "a=1,b=2", value.Hash(map[string]string{"a": "1", "b": "2"})},
		{"null", "", value.Null()},
		{"strings", "x,y", value.MustSeq(value.KindString, value.String("x"), value.String("y"))},
		{"ints", "1, 2", value.MustSeq(value.KindInt, value.Int(1), value.Int(2))},
	}
	for _, c := range cases {
		got, err := ParseValue(c.typ, c.raw)
		if err != nil {
			t.Errorf("ParseValue(%s, %q): %v", c.typ, c.raw, err)
			continue
		}
		if !got.Equal(c.want) {
			t.Errorf("ParseValue(%s, %q) = %s, expected %s", c.typ, c.raw, got, c.want)
		}
	}

	for _, bad := range [][2]string{{"int", "x"}, {"bytes", "zz"}, {"hash", "novalue"}, {"matrix", "1"}} {
		if _, err := ParseValue(bad[0], bad[1]); err == nil {
			t.Errorf("ParseValue(%s, %q) should fail", bad[0], bad[1])
		}
	}
}

func TestFormatTTL(t *testing.T) {
	if got := FormatTTL(0); got != "default" {
		t.Errorf("expected default, got %s", got)
	}
	if got := FormatTTL(-time.Second); got != "never" {
		t.Errorf("expected never, got %s", got)
	}
	if got := FormatTTL(90 * time.Second); got != "1m30s" {
		t.Errorf("expected 1m30s, got %s", got)
	}
}
