package util

import (
	"testing"
	"time"
)

func TestHashStringSeeded(t *testing.T) {
	if HashString("key", 1) != HashString("key", 1) {
		t.Error("HashString must be deterministic for the same seed")
	}
	if HashString("key", 1) == HashString("key", 2) {
		t.Error("different seeds should produce different hashes")
	}
}

func TestExpireAt(t *testing.T) {
	now := time.UnixMilli(1_000_000)

	if got := ExpireAt(now, 0); got != 0 {
		t.Errorf("ttl 0 should never expire, got %d", got)
	}
	if got := ExpireAt(now, -time.Second); got != 0 {
		t.Errorf("negative ttl should never expire, got %d", got)
	}
	if got := ExpireAt(now, 1500*time.Millisecond); got != 1_001_500 {
		t.Errorf("expected 1001500, got %d", got)
	}
	if UnixMillis(now) != 1_000_000 {
		t.Errorf("UnixMillis mismatch: %d", UnixMillis(now))
	}
}

