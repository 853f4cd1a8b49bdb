package dashboard

import (
	"math"
	"time"
)

const day = 24 * time.Hour

const dayKeyLayout = "2006-01-02"

// ClientDayBounds returns the UTC instants bounding the client's local day
// containing now, as the half-open interval [start, end). tzOffsetMinutes
// follows the browser getTimezoneOffset convention, so UTC+3 is -180.
func ClientDayBounds(now time.Time, tzOffsetMinutes int) (start, end time.Time) {
	offset := time.Duration(tzOffsetMinutes) * time.Minute
	local := now.UTC().Add(-offset)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	start = midnight.Add(offset)
	return start, start.Add(day)
}

func AddDays(t time.Time, n int) time.Time {
	return t.Add(time.Duration(n) * day)
}

// DiffDaysCeil counts a partial day as a full one.
func DiffDaysCeil(later, earlier time.Time) int {
	return int(math.Ceil(float64(later.Sub(earlier)) / float64(day)))
}

// DiffDaysFloor ignores a trailing partial day.
func DiffDaysFloor(later, earlier time.Time) int {
	return int(math.Floor(float64(later.Sub(earlier)) / float64(day)))
}

// DayKeyClientLocal formats t as the client-local calendar date.
func DayKeyClientLocal(t time.Time, tzOffsetMinutes int) string {
	return clientLocal(t, tzOffsetMinutes).Format(dayKeyLayout)
}

// WeekKeyClientLocal returns the client-local date of the Monday starting
// the week that contains t.
func WeekKeyClientLocal(t time.Time, tzOffsetMinutes int) string {
	local := clientLocal(t, tzOffsetMinutes)
	sinceMonday := (int(local.Weekday()) + 6) % 7
	monday := time.Date(local.Year(), local.Month(), local.Day()-sinceMonday, 0, 0, 0, 0, time.UTC)
	return monday.Format(dayKeyLayout)
}

// clientLocal shifts t so its UTC fields read as the client's wall clock.
func clientLocal(t time.Time, tzOffsetMinutes int) time.Time {
	return t.UTC().Add(-time.Duration(tzOffsetMinutes) * time.Minute)
}
