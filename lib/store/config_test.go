package store

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/qKV/lib/db"
	"github.com/ValentinKolb/qKV/lib/value"
)

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"":                DefaultPath,
		"data/":           "data/db.qkv",
		"data/store":      "data/store.qkv",
		"data/store.qkv":  "data/store.qkv",
		"data/store.json": "data/store.qkv",
		"a.b/c.txt":       "a.b/c.qkv",
	}
	for in, want := range cases {
		if got := NormalizePath(in); got != want {
			t.Errorf("NormalizePath(%q) = %q, expected %q", in, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	bad := cfg
	bad.Runtime = "tape"
	if bad.Validate() == nil {
		t.Error("unknown runtime accepted")
	}

	bad = cfg
	bad.Engine = "btree"
	if bad.Validate() == nil {
		t.Error("unknown engine accepted")
	}

	bad = cfg
	bad.LogLevel = "verbose"
	if bad.Validate() == nil {
		t.Error("unknown log level accepted")
	}

	bad = cfg
	bad.BatchInterval = -time.Second
	if bad.Validate() == nil {
		t.Error("negative batch interval accepted")
	}
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchBytes = 4096
	s := cfg.String()
	for _, want := range []string{"STORAGE", "db.qkv", "batched", "EXPIRY", "LOGGING"} {
		if !strings.Contains(s, want) {
			t.Errorf("config string lacks %q:\n%s", want, s)
		}
	}

	cfg.Runtime = RuntimeMemory
	if strings.Contains(cfg.String(), "WRITE PATH") {
		t.Error("memory runtime should not print a write path")
	}
}

func TestParseHelpers(t *testing.T) {
	if e, err := ParseEngine("PLAIN"); err != nil || e != db.ImplPlain {
		t.Errorf("ParseEngine = %v, %v", e, err)
	}
	if r, err := ParseRuntime("memory"); err != nil || r != RuntimeMemory {
		t.Errorf("ParseRuntime = %v, %v", r, err)
	}
	if _, err := ParseLogLevel("warn"); err != nil {
		t.Errorf("ParseLogLevel(warn): %v", err)
	}
}

func TestErrorWrapping(t *testing.T) {
	cause := &value.MismatchError{Want: value.KindInt, Got: value.KindString}
	err := error(WrapError(RetCTypeMismatch, cause, "key %q", "k"))

	if !errors.Is(err, value.ErrTypeMismatch) {
		t.Error("wrapped mismatch should match value.ErrTypeMismatch")
	}
	if CodeOf(err) != RetCTypeMismatch {
		t.Errorf("CodeOf = %s", CodeOf(err))
	}
	if !strings.Contains(err.Error(), "TypeMismatch") {
		t.Errorf("error text lacks code: %s", err)
	}
	if CodeOf(nil) != RetCSuccess || CodeOf(errors.New("x")) != RetCInternalError {
		t.Error("CodeOf of nil or foreign errors is wrong")
	}
}
