package models

import (
	"testing"
	"time"
)

func TestQuarterString(t *testing.T) {
	q, err := NewQuarter(2026, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.String() != "2026Q1" {
		t.Errorf("String() = %s, want 2026Q1", q.String())
	}
}

func TestNewQuarterRejectsOutOfRange(t *testing.T) {
	if _, err := NewQuarter(2026, 0); err == nil {
		t.Error("expected error for quarter 0")
	}
	if _, err := NewQuarter(2026, 5); err == nil {
		t.Error("expected error for quarter 5")
	}
	if _, err := NewQuarter(1999, 1); err == nil {
		t.Error("expected error for year 1999")
	}
}

func TestParseQuarter(t *testing.T) {
	q, err := ParseQuarter(" 2026q3 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Year != 2026 || q.Quarter != 3 {
		t.Errorf("ParseQuarter = %+v, want 2026Q3", q)
	}
	for _, raw := range []string{"2026", "2026Q", "Q1", "2026Q9", "abcQ1"} {
		if _, err := ParseQuarter(raw); err == nil {
			t.Errorf("ParseQuarter(%q) expected error", raw)
		}
	}
}

func TestQuarterOfAndBounds(t *testing.T) {
	q := QuarterOf(time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC))
	if q.Year != 2026 || q.Quarter != 3 {
		t.Fatalf("QuarterOf = %+v, want 2026Q3", q)
	}
	start, end := q.Bounds()
	wantStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) || !end.Equal(wantEnd) {
		t.Errorf("Bounds() = %v..%v, want %v..%v", start, end, wantStart, wantEnd)
	}
}
