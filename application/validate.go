package application

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// ErrValidation marks caller input the service refuses before touching storage.
var ErrValidation = errors.New("application: invalid input")

const (
	maxNameLen      = 120
	maxLocationLen  = 120
	maxSourceLen    = 120
	maxAppNotesLen  = 400
	maxQueryLen     = 80
	maxStageTitle   = 120
	maxEventNotes   = 4000
	maxEventLongTxt = 4000
	defaultPageSize = 20
	maxPageSize     = 50
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func requiredText(field, v string, max int) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", invalid("%s is required", field)
	}
	if utf8.RuneCountInString(v) > max {
		return "", invalid("%s exceeds %d characters", field, max)
	}
	return v, nil
}

// optionalText trims v and maps blank to nil.
func optionalText(field string, v *string, max int) (*string, error) {
	if v == nil {
		return nil, nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(s) > max {
		return nil, invalid("%s exceeds %d characters", field, max)
	}
	return &s, nil
}

func jobURL(v *string) (*string, error) {
	s, err := optionalText("jobUrl", v, 2048)
	if err != nil || s == nil {
		return s, err
	}
	u, err := url.Parse(*s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, invalid("jobUrl must be an absolute http(s) URL")
	}
	return s, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultPageSize
	case limit > maxPageSize:
		return maxPageSize
	default:
		return limit
	}
}
