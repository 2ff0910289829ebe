package schedule

import (
	"errors"
	"fmt"
)

// Clock is a local wall-clock time of day in minutes since midnight.
type Clock int

// EndOfDay is the exclusive upper bound of a day, rendered as "24:00".
const EndOfDay Clock = 24 * 60

var ErrInvalidClock = errors.New("time must be in HH:MM format")

// ParseClock parses a strict 24h "HH:MM" value.
func ParseClock(s string) (Clock, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, ErrInvalidClock
	}
	h, okH := twoDigits(s[0], s[1])
	m, okM := twoDigits(s[3], s[4])
	if !okH || !okM || h > 23 || m > 59 {
		return 0, ErrInvalidClock
	}
	return Clock(h*60 + m), nil
}

// MustClock is ParseClock for literals known to be valid.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(fmt.Sprintf("schedule: bad clock literal %q", s))
	}
	return c
}

func twoDigits(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Add shifts the clock by minutes, clamped to [00:00, 24:00].
func (c Clock) Add(minutes int) Clock {
	v := c + Clock(minutes)
	if v < 0 {
		return 0
	}
	if v > EndOfDay {
		return EndOfDay
	}
	return v
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(b []byte) error {
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ClockPtr is a helper for optional break fields.
func ClockPtr(s string) *Clock {
	c := MustClock(s)
	return &c
}
