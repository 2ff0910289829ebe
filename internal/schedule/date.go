package schedule

import (
	"errors"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("date must be YYYY-MM-DD or RFC 3339")

// DateOf strips the time of day. Calendar dates are kept as midnight UTC so
// that the weekday and the printed date never move with the host timezone.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts a plain ISO date or a full RFC 3339 timestamp. For
// timestamps the calendar date is taken as written, without conversion.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return DateOf(t), nil
	}
	return time.Time{}, ErrInvalidDate
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
