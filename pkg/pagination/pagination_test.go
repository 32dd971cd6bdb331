package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimitClamps(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{0, DefaultLimit},
		{-5, DefaultLimit},
		{10, 10},
		{MaxLimit, MaxLimit},
		{MaxLimit + 1, MaxLimit},
	}
	for _, tc := range cases {
		if got := NormalizeLimit(tc.in); got != tc.want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
	if got := PeekLimit(10); got != 11 {
		t.Fatalf("PeekLimit(10) = %d, want 11", got)
	}
}

func TestParseCursor(t *testing.T) {
	cursor := Cursor{CreatedAt: time.Date(2026, 7, 1, 9, 30, 0, 123456789, time.UTC), ID: uuid.New()}
	parsed, err := ParseCursor(EncodeCursor(cursor))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !parsed.CreatedAt.Equal(cursor.CreatedAt) || parsed.ID != cursor.ID {
		t.Fatalf("round trip mismatch: %+v vs %+v", parsed, cursor)
	}

	if empty, err := ParseCursor("  "); err != nil || empty != nil {
		t.Fatalf("blank token must mean first page, got %v %v", empty, err)
	}
	if _, err := ParseCursor("not base64!!"); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := ParseCursor("aGVsbG8="); err == nil {
		t.Fatal("expected malformed cursor error")
	}
}
