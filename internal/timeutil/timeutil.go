// Package timeutil provides the canonical time representation for the
// reservation engine: integer minutes since midnight for time-of-day values,
// a plain calendar date, and a clock pinned to one configured zone.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay is the number of minutes in a calendar day.
const MinutesPerDay = 24 * 60

// ParseClock parses a "15:04" time-of-day string into minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format: %s", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", s, err)
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time out of range: %s", s)
	}
	return hour*60 + minute, nil
}

// FormatClock renders minutes since midnight as "15:04".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. This is the only overlap predicate in the
// repository; all interval comparisons go through it.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	lo := aStart
	if bStart > lo {
		lo = bStart
	}
	hi := aEnd
	if bEnd < hi {
		hi = bEnd
	}
	return lo < hi
}

// RoundUp rounds minutes up to the next multiple of step.
func RoundUp(minutes, step int) int {
	if step <= 0 {
		return minutes
	}
	rem := minutes % step
	if rem == 0 {
		return minutes
	}
	return minutes + step - rem
}

// Date is a calendar date with no time-of-day component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate constructs a Date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf extracts the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// IsZero reports whether d is the zero date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Time returns the moment minutes past midnight on d in loc.
func (d Date) Time(minutes int, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, minutes/60, minutes%60, 0, 0, loc)
}

// Weekday returns the day of week (Sunday = 0).
func (d Date) Weekday() time.Weekday {
	return d.Time(0, time.UTC).Weekday()
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time(0, time.UTC).AddDate(0, 0, n))
}

// DaysUntil returns the number of whole days from d to other (negative when
// other is earlier).
func (d Date) DaysUntil(other Date) int {
	a := d.Time(0, time.UTC)
	b := other.Time(0, time.UTC)
	return int(b.Sub(a) / (24 * time.Hour))
}

// Equal reports whether two dates are the same day.
func (d Date) Equal(other Date) bool {
	return d == other
}

// Before reports whether d is earlier than other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// Clock supplies "now" and "today" in one explicit zone. Check-in windows and
// the grace sweep are wall-clock sensitive, so nothing in the engine may read
// ambient process-local time.
type Clock struct {
	loc   *time.Location
	nowFn func() time.Time
}

// NewClock creates a Clock for the named IANA zone.
func NewClock(timezone string) (*Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &Clock{loc: loc, nowFn: time.Now}, nil
}

// NewFixedClock creates a Clock that always reports now; used in tests.
func NewFixedClock(now time.Time) *Clock {
	return &Clock{loc: now.Location(), nowFn: func() time.Time { return now }}
}

// Now returns the current moment in the clock's zone.
func (c *Clock) Now() time.Time {
	return c.nowFn().In(c.loc)
}

// Today returns the current calendar date in the clock's zone.
func (c *Clock) Today() Date {
	return DateOf(c.Now())
}

// MinuteOfDay returns the current minute since midnight in the clock's zone.
func (c *Clock) MinuteOfDay() int {
	now := c.Now()
	return now.Hour()*60 + now.Minute()
}

// Location returns the clock's zone.
func (c *Clock) Location() *time.Location {
	return c.loc
}
