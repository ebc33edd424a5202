// Package tz converts between civil date/time values and absolute instants for
// arbitrary IANA timezone identifiers.
package tz

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrInvalidTimezone is returned for identifiers the tz database does not know.
var ErrInvalidTimezone = errors.New("invalid timezone")

const DateLayout = "2006-01-02"

var locations sync.Map // string -> *time.Location

// Load resolves an IANA identifier. "" and "Local" are rejected since they do
// not name a zone.
func Load(id string) (*time.Location, error) {
	id = strings.TrimSpace(id)
	if id == "" || id == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, id)
	}
	if loc, ok := locations.Load(id); ok {
		return loc.(*time.Location), nil
	}
	loc, err := time.LoadLocation(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, id)
	}
	locations.Store(id, loc)
	return loc, nil
}

func IsValid(id string) bool {
	_, err := Load(id)
	return err == nil
}

// Clock is a time of day in 24-hour form.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) Minutes() int { return c.Hour*60 + c.Minute }

func (c Clock) Before(o Clock) bool { return c.Minutes() < o.Minutes() }

// ParseClock accepts "14:00", "9:05", "2:30 PM" and "12:00am".
func ParseClock(s string) (Clock, error) {
	raw := strings.ToUpper(strings.TrimSpace(s))
	suffix := ""
	switch {
	case strings.HasSuffix(raw, "AM"):
		suffix = "AM"
	case strings.HasSuffix(raw, "PM"):
		suffix = "PM"
	}
	raw = strings.TrimSpace(strings.TrimSuffix(raw, suffix))

	hh, mm, ok := strings.Cut(raw, ":")
	if !ok {
		return Clock{}, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("invalid time %q", s)
	}
	switch suffix {
	case "":
		if h < 0 || h > 23 {
			return Clock{}, fmt.Errorf("invalid time %q", s)
		}
	default:
		if h < 1 || h > 12 {
			return Clock{}, fmt.Errorf("invalid time %q", s)
		}
		if h == 12 {
			h = 0
		}
		if suffix == "PM" {
			h += 12
		}
	}
	return Clock{Hour: h, Minute: m}, nil
}

// Date is a civil calendar date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// DateOf returns the civil date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, time.UTC))
}

func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC).Weekday()
}

func (d Date) Before(o Date) bool { return d.String() < o.String() }

func (d Date) IsZero() bool { return d.Year == 0 }

// In returns the instant of c on d in loc. Times inside a DST gap are
// normalized forward by the gap length.
func (d Date) In(c Clock, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, 0, 0, loc)
}

// StartOfDay returns local midnight of d in loc (or the first instant of the
// day when midnight falls into a DST gap).
func (d Date) StartOfDay(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// ToAbsolute composes date + time in timezoneID into an absolute instant.
func ToAbsolute(date, clock, timezoneID string) (time.Time, error) {
	loc, err := Load(timezoneID)
	if err != nil {
		return time.Time{}, err
	}
	d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	c, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return d.In(c, loc).UTC(), nil
}

// OffsetFor returns the UTC offset ("+09:00", "-07:00", "+05:45") in effect in
// timezoneID at local noon of date. Noon is used so the answer is the offset of
// the day itself rather than of a transition instant.
func OffsetFor(timezoneID, date string) (string, error) {
	loc, err := Load(timezoneID)
	if err != nil {
		return "", err
	}
	d, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	_, secs := d.In(Clock{Hour: 12}, loc).Zone()
	return FormatOffset(secs), nil
}

func FormatOffset(seconds int) string {
	sign := '+'
	if seconds < 0 {
		sign = '-'
		seconds = -seconds
	}
	return fmt.Sprintf("%c%02d:%02d", sign, seconds/3600, (seconds%3600)/60)
}

// Civil renders an instant back into (date, clock) in loc.
func Civil(t time.Time, loc *time.Location) (Date, Clock) {
	local := t.In(loc)
	return DateOf(local), Clock{Hour: local.Hour(), Minute: local.Minute()}
}
