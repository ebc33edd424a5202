package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/tz"
)

// MaxRangeDays bounds admin date-range operations.
const MaxRangeDays = 366

// DateRange expands [start, end] into YYYY-MM-DD strings.
func DateRange(start, end string) ([]string, error) {
	from, err := tz.ParseDate(start)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	to := from
	if strings.TrimSpace(end) != "" {
		if to, err = tz.ParseDate(end); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDate, err)
		}
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end_date %s is before start_date %s", ErrInvalidDate, to, from)
	}
	var out []string
	for d := from; !to.Before(d); d = d.AddDays(1) {
		if len(out) == MaxRangeDays {
			return nil, fmt.Errorf("%w: range exceeds %d days", ErrInvalidDate, MaxRangeDays)
		}
		out = append(out, d.String())
	}
	return out, nil
}

// MergeEntry overlays the non-empty fields of update onto cur.
func MergeEntry(cur, update model.LocationScheduleEntry, now time.Time) model.LocationScheduleEntry {
	cur.Date = update.Date
	if update.Morning != "" {
		cur.Morning = update.Morning
	}
	if update.Afternoon != "" {
		cur.Afternoon = update.Afternoon
	}
	if update.Timezone != "" {
		cur.Timezone = update.Timezone
	}
	cur.UpdatedAt = now
	return cur
}

// ClearEntry removes the half-day label named by part; TimeOfDayAll clears
// everything.
func ClearEntry(cur model.LocationScheduleEntry, part model.TimeOfDay, now time.Time) model.LocationScheduleEntry {
	switch part {
	case model.TimeOfDayMorning:
		cur.Morning = ""
	case model.TimeOfDayAfternoon:
		cur.Afternoon = ""
	default:
		return model.LocationScheduleEntry{Date: cur.Date}
	}
	if cur.Morning == "" && cur.Afternoon == "" {
		cur.Timezone = ""
	}
	cur.UpdatedAt = now
	return cur
}

// ValidateEntry checks the date and optional timezone override.
func ValidateEntry(e model.LocationScheduleEntry) error {
	if _, err := tz.ParseDate(e.Date); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	if e.Timezone != "" {
		if _, err := tz.Load(e.Timezone); err != nil {
			return err
		}
	}
	return nil
}

// NormalizeWeekly validates a weekly template and rewrites its times to 24h
// HH:MM and its keys to lowercase weekday names.
func NormalizeWeekly(w model.WeeklyAvailability) (model.WeeklyAvailability, error) {
	out := model.WeeklyAvailability{Timezone: strings.TrimSpace(w.Timezone), Days: map[string]model.DayAvailability{}}
	if out.Timezone != "" {
		if _, err := tz.Load(out.Timezone); err != nil {
			return model.WeeklyAvailability{}, err
		}
	}
	for key, day := range w.Days {
		wd, err := model.ParseWeekday(key)
		if err != nil {
			return model.WeeklyAvailability{}, err
		}
		start, err := tz.ParseClock(day.Start)
		if err != nil {
			return model.WeeklyAvailability{}, fmt.Errorf("%s start: %w", key, err)
		}
		end, err := tz.ParseClock(day.End)
		if err != nil {
			return model.WeeklyAvailability{}, fmt.Errorf("%s end: %w", key, err)
		}
		if !start.Before(end) {
			return model.WeeklyAvailability{}, fmt.Errorf("%s: end %s must be after start %s", key, end, start)
		}
		out.Days[model.WeekdayKey(wd)] = model.DayAvailability{Enabled: day.Enabled, Start: start.String(), End: end.String()}
	}
	return out, nil
}
