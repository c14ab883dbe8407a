package domain

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// SecondsPerDay is the exclusive upper bound of a TimeOfDay.
const SecondsPerDay = 24 * 60 * 60

// ErrInvalidTimeOfDay is returned when a wall-clock time cannot be parsed.
var ErrInvalidTimeOfDay = errors.New("invalid time of day")

// TimeOfDay is a wall-clock time within a day, in seconds since midnight.
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from components.
func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60 + second)
}

// TimeOfDayOf returns the wall-clock time of t in t's location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute(), t.Second())
}

// ParseTimeOfDay parses "HH:MM:SS" or "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 8 && len(s) != 5 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	if s[2] != ':' || (len(s) == 8 && s[5] != ':') {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	h, errH := strconv.Atoi(s[0:2])
	m, errM := strconv.Atoi(s[3:5])
	sec := 0
	var errS error
	if len(s) == 8 {
		sec, errS = strconv.Atoi(s[6:8])
	}
	if errH != nil || errM != nil || errS != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	return NewTimeOfDay(h, m, sec), nil
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 3600 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 3600 / 60 }

// Second returns the second component.
func (t TimeOfDay) Second() int { return int(t) % 60 }

// TopOfHour truncates to HH:00:00.
func (t TimeOfDay) TopOfHour() TimeOfDay { return TimeOfDay(t.Hour() * 3600) }

// Valid reports whether t lies in [00:00:00, 23:59:59].
func (t TimeOfDay) Valid() bool { return t >= 0 && t < SecondsPerDay }

// String formats as HH:MM:SS.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

// HHMM formats as HH:MM, the upstream request format.
func (t TimeOfDay) HHMM() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// TimeBand is a closed interval of wall-clock times.
type TimeBand struct {
	Start TimeOfDay
	End   TimeOfDay
}

// DefaultBaselineBand excludes overnight readings from baselines.
var DefaultBaselineBand = TimeBand{
	Start: NewTimeOfDay(9, 0, 0),
	End:   NewTimeOfDay(21, 59, 59),
}

// ParseTimeBand parses "HH:MM:SS-HH:MM:SS".
func ParseTimeBand(s string) (TimeBand, error) {
	if len(s) != 17 || s[8] != '-' {
		return TimeBand{}, fmt.Errorf("invalid time band %q: want HH:MM:SS-HH:MM:SS", s)
	}
	start, err := ParseTimeOfDay(s[:8])
	if err != nil {
		return TimeBand{}, err
	}
	end, err := ParseTimeOfDay(s[9:])
	if err != nil {
		return TimeBand{}, err
	}
	b := TimeBand{Start: start, End: end}
	return b, b.Validate()
}

// Validate checks ordering.
func (b TimeBand) Validate() error {
	if !b.Start.Valid() || !b.End.Valid() {
		return fmt.Errorf("time band %s out of range", b)
	}
	if b.Start > b.End {
		return fmt.Errorf("time band %s: start after end", b)
	}
	return nil
}

// Contains reports whether t is inside the band, bounds included.
func (b TimeBand) Contains(t TimeOfDay) bool {
	return t >= b.Start && t <= b.End
}

func (b TimeBand) String() string {
	return b.Start.String() + "-" + b.End.String()
}

// Date is a calendar date formatted YYYY-MM-DD.
// Lexical order equals calendar order.
type Date string

const dateLayout = "2006-01-02"

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

// ParseDate validates a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(dateLayout, s); err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date(s), nil
}

// Start returns midnight of d in loc.
func (d Date) Start(loc *time.Location) time.Time {
	t, err := time.ParseInLocation(dateLayout, string(d), loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays shifts d by n calendar days.
func (d Date) AddDays(n int) Date {
	t, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return d
	}
	return DateOf(t.AddDate(0, 0, n))
}

// At returns the instant of d at wall-clock t in loc.
func (d Date) At(t TimeOfDay, loc *time.Location) time.Time {
	return d.Start(loc).Add(time.Duration(t) * time.Second)
}

func (d Date) String() string { return string(d) }

// PreviousHour returns the last complete clock hour before t, in t's location,
// as a date and an inclusive [start, end] time range (HH:00:00 to HH:59:59).
func PreviousHour(t time.Time) (Date, TimeOfDay, TimeOfDay) {
	top := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	prev := top.Add(-time.Hour)
	start := TimeOfDayOf(prev)
	return DateOf(prev), start, start + 3599
}
