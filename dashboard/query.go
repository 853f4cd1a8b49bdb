package dashboard

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"jobtrail/application"
)

// ErrInvalidQuery marks malformed or missing dashboard query parameters.
var ErrInvalidQuery = errors.New("dashboard: invalid query")

// maxOffsetMinutes bounds tzOffsetMinutes to real-world offsets.
const maxOffsetMinutes = 14 * 60

// Filters narrows a cohort beyond its appliedAt range.
type Filters struct {
	Status       *application.Status
	WorkMode     *application.WorkMode
	Source       string
	SourceBucket *SourceBucket
}

// Query is the parameter set shared by every dashboard panel.
type Query struct {
	From            time.Time
	To              time.Time
	TZOffsetMinutes int
	Filters         Filters
}

// ParseQuery validates the panel query string. Every failure wraps ErrInvalidQuery.
func ParseQuery(values url.Values) (Query, error) {
	from, err := parseInstant(values.Get("from"))
	if err != nil {
		return Query{}, fmt.Errorf("%w: from: %v", ErrInvalidQuery, err)
	}
	to, err := parseInstant(values.Get("to"))
	if err != nil {
		return Query{}, fmt.Errorf("%w: to: %v", ErrInvalidQuery, err)
	}

	rawOffset := strings.TrimSpace(values.Get("tzOffsetMinutes"))
	if rawOffset == "" {
		return Query{}, fmt.Errorf("%w: tzOffsetMinutes is required", ErrInvalidQuery)
	}
	offset, err := strconv.Atoi(rawOffset)
	if err != nil || offset < -maxOffsetMinutes || offset > maxOffsetMinutes {
		return Query{}, fmt.Errorf("%w: tzOffsetMinutes must be an integer within ±%d", ErrInvalidQuery, maxOffsetMinutes)
	}

	q := Query{From: from, To: to, TZOffsetMinutes: offset}

	if v := values.Get("status"); v != "" {
		status := application.Status(v)
		if !status.Valid() {
			return Query{}, fmt.Errorf("%w: unknown status %q", ErrInvalidQuery, v)
		}
		q.Filters.Status = &status
	}
	if v := values.Get("workMode"); v != "" {
		mode := application.WorkMode(v)
		if !mode.Valid() {
			return Query{}, fmt.Errorf("%w: unknown workMode %q", ErrInvalidQuery, v)
		}
		q.Filters.WorkMode = &mode
	}
	if v := values.Get("sourceBucket"); v != "" {
		bucket := SourceBucket(v)
		if !bucket.Valid() {
			return Query{}, fmt.Errorf("%w: unknown sourceBucket %q", ErrInvalidQuery, v)
		}
		q.Filters.SourceBucket = &bucket
	}
	q.Filters.Source = strings.TrimSpace(values.Get("source"))

	return q, nil
}

var instantLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func parseInstant(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("required")
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable instant %q", raw)
}
