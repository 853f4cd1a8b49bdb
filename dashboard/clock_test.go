package dashboard

import (
	"testing"
	"time"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return v
}

func TestClientDayBounds(t *testing.T) {
	cases := []struct {
		now    string
		offset int
		start  string
	}{
		{"2024-01-15T22:30:00Z", -180, "2024-01-15T21:00:00Z"},
		{"2024-01-15T20:59:59Z", -180, "2024-01-14T21:00:00Z"},
		{"2024-01-15T02:00:00Z", 300, "2024-01-14T05:00:00Z"},
		{"2024-01-15T12:00:00Z", 0, "2024-01-15T00:00:00Z"},
	}
	for _, tc := range cases {
		start, end := ClientDayBounds(mustTime(t, tc.now), tc.offset)
		if want := mustTime(t, tc.start); !start.Equal(want) {
			t.Errorf("ClientDayBounds(%s, %d) start = %s, want %s", tc.now, tc.offset, start, want)
		}
		if end.Sub(start) != 24*time.Hour {
			t.Errorf("expected a 24h interval, got %s", end.Sub(start))
		}
	}
}

func TestDiffDays(t *testing.T) {
	a := mustTime(t, "2024-01-10T00:00:00Z")
	b := a.Add(36 * time.Hour)

	if got := DiffDaysCeil(b, a); got != 2 {
		t.Fatalf("ceil = %d, want 2", got)
	}
	if got := DiffDaysFloor(b, a); got != 1 {
		t.Fatalf("floor = %d, want 1", got)
	}
	if got := DiffDaysCeil(AddDays(a, 3), a); got != 3 {
		t.Fatalf("ceil exact = %d, want 3", got)
	}
}

func TestWeekKeyClientLocal(t *testing.T) {
	cases := []struct {
		at     string
		offset int
		want   string
	}{
		{"2024-01-15T10:00:00Z", 0, "2024-01-15"},
		{"2024-01-21T23:59:00Z", 0, "2024-01-15"},
		{"2024-01-21T22:30:00Z", -180, "2024-01-22"},
		{"2024-01-22T03:00:00Z", 300, "2024-01-15"},
		{"2024-03-03T12:00:00Z", 0, "2024-02-26"},
	}
	for _, tc := range cases {
		if got := WeekKeyClientLocal(mustTime(t, tc.at), tc.offset); got != tc.want {
			t.Errorf("WeekKeyClientLocal(%s, %d) = %s, want %s", tc.at, tc.offset, got, tc.want)
		}
	}
}

func TestDayKeyClientLocal(t *testing.T) {
	if got := DayKeyClientLocal(mustTime(t, "2024-01-15T22:30:00Z"), -180); got != "2024-01-16" {
		t.Fatalf("day key = %s, want 2024-01-16", got)
	}
}
