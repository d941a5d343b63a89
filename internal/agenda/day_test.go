package agenda

import (
	"testing"
	"time"
)

func TestDayBounds_UTC(t *testing.T) {
	t.Parallel()

	ref := time.Date(2024, 3, 1, 5, 0, 0, 0, time.UTC)
	start, end := DayBounds(ref, time.UTC)

	if !start.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start: %v", start)
	}
	if !end.Equal(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end: %v", end)
	}
}

func TestDayBounds_LocalZoneCrossesUTCDate(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("ICT", 7*3600)
	// 20:00 UTC on Feb 29 is already March 1 in UTC+7.
	ref := time.Date(2024, 2, 29, 20, 0, 0, 0, time.UTC)
	start, end := DayBounds(ref, loc)

	if !start.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, loc)) {
		t.Fatalf("unexpected start: %v", start)
	}
	if end.Sub(start) != 24*time.Hour {
		t.Fatalf("unexpected day length: %v", end.Sub(start))
	}
}

func TestDayBounds_NilLocationIsUTC(t *testing.T) {
	t.Parallel()

	start, _ := DayBounds(time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC), nil)
	if start.Location() != time.UTC || start.Day() != 1 {
		t.Fatalf("unexpected start: %v", start)
	}
}
