package model

import (
	"fmt"
	"strings"
	"time"
)

// Interval is a half-open [Start, End) range of absolute instants.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [start, end) intersects i.
func (i Interval) Overlaps(start, end time.Time) bool {
	return start.Before(i.End) && end.After(i.Start)
}

func (i Interval) IsZero() bool { return i.Start.IsZero() && i.End.IsZero() }

// BusyInterval is a range during which the host cannot be booked.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label,omitempty"`
}

type TimeOfDay string

const (
	TimeOfDayAll       TimeOfDay = "all"
	TimeOfDayMorning   TimeOfDay = "morning"
	TimeOfDayAfternoon TimeOfDay = "afternoon"
)

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	switch TimeOfDay(strings.ToLower(strings.TrimSpace(s))) {
	case "", TimeOfDayAll:
		return TimeOfDayAll, nil
	case TimeOfDayMorning:
		return TimeOfDayMorning, nil
	case TimeOfDayAfternoon:
		return TimeOfDayAfternoon, nil
	}
	return "", fmt.Errorf("time_of_day must be morning, afternoon or all (got %q)", s)
}

// Allows reports whether a host-local hour passes the filter.
func (t TimeOfDay) Allows(hour int) bool {
	switch t {
	case TimeOfDayMorning:
		return hour < NoonHour
	case TimeOfDayAfternoon:
		return hour >= NoonHour
	default:
		return true
	}
}

// NoonHour splits a host-local day into morning and afternoon.
const NoonHour = 12

// Window is the working-hours range of one host-local day.
type Window struct {
	Date              string
	Start             time.Time
	End               time.Time
	HostTimezone      string
	Location          *time.Location
	MorningLocation   string
	AfternoonLocation string
	// DefaultLocation is used when the half-day has no explicit label.
	DefaultLocation string
}

func (w Window) Empty() bool { return !w.End.After(w.Start) }

// LocationTag picks the morning or afternoon label for an instant inside w.
func (w Window) LocationTag(t time.Time) string {
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	if t.In(loc).Hour() < NoonHour {
		if w.MorningLocation != "" {
			return w.MorningLocation
		}
	} else if w.AfternoonLocation != "" {
		return w.AfternoonLocation
	}
	return w.DefaultLocation
}

// Slot is a bookable candidate. Never persisted.
type Slot struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	HostTimezone string    `json:"hostTimezone"`
	LocationTag  string    `json:"locationTag,omitempty"`
}

// LocationScheduleEntry pins where the host is on a civil date.
type LocationScheduleEntry struct {
	Date      string    `json:"date"`
	Morning   string    `json:"morning,omitempty"`
	Afternoon string    `json:"afternoon,omitempty"`
	Timezone  string    `json:"timezone,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Empty reports whether the entry carries no labels and no override.
func (e LocationScheduleEntry) Empty() bool {
	return e.Morning == "" && e.Afternoon == "" && e.Timezone == ""
}

type DayAvailability struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Start   string `json:"start" yaml:"start"`
	End     string `json:"end" yaml:"end"`
}

// WeeklyAvailability is keyed by lowercase weekday name.
type WeeklyAvailability struct {
	Days     map[string]DayAvailability `json:"days"`
	Timezone string                     `json:"timezone,omitempty"`
}

func (w WeeklyAvailability) Day(d time.Weekday) (DayAvailability, bool) {
	day, ok := w.Days[WeekdayKey(d)]
	return day, ok
}

func WeekdayKey(d time.Weekday) string {
	return strings.ToLower(d.String())
}

func ParseWeekday(s string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := WeekdayKey(d)
		if key == name || (len(key) == 3 && strings.HasPrefix(name, key)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// RecurringBreak repeats weekly on Weekdays between Start and End civil times.
type RecurringBreak struct {
	ID        string         `json:"id"`
	Weekdays  []time.Weekday `json:"-"`
	Start     string         `json:"startTime"`
	End       string         `json:"endTime"`
	Timezone  string         `json:"timezone"`
	Reason    string         `json:"reason,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (b RecurringBreak) WeekdayKeys() []string {
	out := make([]string, 0, len(b.Weekdays))
	for _, d := range b.Weekdays {
		out = append(out, WeekdayKey(d))
	}
	return out
}
