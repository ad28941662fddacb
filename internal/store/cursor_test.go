package store

import (
	"testing"
	"time"
)

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 10, 12, 30, 45, 123456789, time.Local)
	encoded := encodeCursor(at, 42)

	gotAt, gotID, ok := decodeCursor(encoded)
	if !ok {
		t.Fatalf("decode failed")
	}
	if gotID != 42 {
		t.Fatalf("id mismatch: %d", gotID)
	}
	if !gotAt.Equal(at) {
		t.Fatalf("timestamp mismatch: %v != %v", gotAt, at)
	}
}

func TestDecodeCursor_GarbageMeansFirstPage(t *testing.T) {
	for _, raw := range []string{"", "???", "bm90anNvbg"} {
		if _, _, ok := decodeCursor(raw); ok {
			t.Fatalf("cursor %q should not decode", raw)
		}
	}
}
