// Package schedule turns the host's location schedule and weekly template into
// working-hours windows expressed as absolute instants.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/tz"
)

var ErrInvalidDate = errors.New("invalid date")

// LocationStore reads per-date location entries.
type LocationStore interface {
	Get(ctx context.Context, date string) (model.LocationScheduleEntry, bool, error)
}

// WeeklyStore reads the weekly availability template. A template with no days
// is treated as unset.
type WeeklyStore interface {
	Get(ctx context.Context) (model.WeeklyAvailability, error)
}

// LocationDetector is the fallback used for dates without a schedule entry.
type LocationDetector interface {
	Detect(ctx context.Context, date tz.Date) string
}

type Config struct {
	DefaultTimezone string
	DefaultStart    tz.Clock
	DefaultEnd      tz.Clock
	// LocationTimezones maps a location tag ("KR") to the timezone the host
	// works in while there.
	LocationTimezones map[string]string
	DefaultLocation   string
}

func DefaultConfig() Config {
	return Config{
		DefaultTimezone: "Asia/Seoul",
		DefaultStart:    tz.Clock{Hour: 8},
		DefaultEnd:      tz.Clock{Hour: 21},
	}
}

type Resolver struct {
	cfg       Config
	locations LocationStore
	weekly    WeeklyStore
	detector  LocationDetector
	logger    *slog.Logger
}

// NewResolver wires the stores; detector may be nil to disable location inference.
func NewResolver(cfg Config, locations LocationStore, weekly WeeklyStore, detector LocationDetector, logger *slog.Logger) (*Resolver, error) {
	if _, err := tz.Load(cfg.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("default timezone: %w", err)
	}
	if !cfg.DefaultStart.Before(cfg.DefaultEnd) {
		return nil, fmt.Errorf("default working hours %s-%s are empty", cfg.DefaultStart, cfg.DefaultEnd)
	}
	for tag, id := range cfg.LocationTimezones {
		if _, err := tz.Load(id); err != nil {
			return nil, fmt.Errorf("timezone for location %s: %w", tag, err)
		}
	}
	return &Resolver{cfg: cfg, locations: locations, weekly: weekly, detector: detector, logger: logger}, nil
}

// Resolution is the outcome of ResolveWindow.
type Resolution struct {
	Date         string
	Window       model.Window
	HostTimezone string
	LocationTag  string
	// Windows holds the host days before, on and after Date.
	Windows []model.Window
	// SearchRange spans every non-empty window; zero when all are empty.
	SearchRange model.Interval
	VisitorDay  model.Interval
}

// ResolveWindow resolves the host window for date plus the neighbouring days
// needed to cover the visitor's civil day of the same date.
func (r *Resolver) ResolveWindow(ctx context.Context, date, visitorTimezone string) (Resolution, error) {
	visitorLoc, err := tz.Load(visitorTimezone)
	if err != nil {
		return Resolution{}, err
	}
	d, err := tz.ParseDate(date)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}

	res := Resolution{
		Date: d.String(),
		VisitorDay: model.Interval{
			Start: d.StartOfDay(visitorLoc).UTC(),
			End:   d.AddDays(1).StartOfDay(visitorLoc).UTC(),
		},
	}
	for offset := -1; offset <= 1; offset++ {
		w, err := r.Day(ctx, d.AddDays(offset))
		if err != nil {
			return Resolution{}, err
		}
		res.Windows = append(res.Windows, w)
		if offset == 0 {
			res.Window = w
		}
		if w.Empty() {
			continue
		}
		if res.SearchRange.IsZero() || w.Start.Before(res.SearchRange.Start) {
			res.SearchRange.Start = w.Start
		}
		if w.End.After(res.SearchRange.End) {
			res.SearchRange.End = w.End
		}
	}
	res.HostTimezone = res.Window.HostTimezone
	res.LocationTag = res.Window.LocationTag(res.Window.Start)
	return res, nil
}

// Day resolves the working window of one host-local date. A disabled weekday
// yields an empty window that still carries the host timezone.
func (r *Resolver) Day(ctx context.Context, d tz.Date) (model.Window, error) {
	entry, hasEntry, err := r.locations.Get(ctx, d.String())
	if err != nil {
		return model.Window{}, fmt.Errorf("location schedule %s: %w", d, err)
	}
	weekly, err := r.weekly.Get(ctx)
	if err != nil {
		return model.Window{}, fmt.Errorf("weekly availability: %w", err)
	}

	detected := ""
	if !hasEntry && r.detector != nil {
		detected = r.detector.Detect(ctx, d)
	}
	hostTZ := r.hostTimezone(entry, weekly, detected)
	loc, err := tz.Load(hostTZ)
	if err != nil {
		return model.Window{}, err
	}

	w := model.Window{
		Date:              d.String(),
		HostTimezone:      hostTZ,
		Location:          loc,
		MorningLocation:   entry.Morning,
		AfternoonLocation: entry.Afternoon,
		DefaultLocation:   r.cfg.DefaultLocation,
	}
	if detected != "" {
		w.DefaultLocation = detected
	}

	start, end, enabled, err := r.hours(weekly, d.Weekday())
	if err != nil {
		return model.Window{}, err
	}
	if !enabled {
		w.Start = d.StartOfDay(loc).UTC()
		w.End = w.Start
		return w, nil
	}
	w.Start = d.In(start, loc).UTC()
	w.End = d.In(end, loc).UTC()
	return w, nil
}

// HostDayFor finds the host-local day whose window contains t. ok is false when
// t falls outside every window near it.
func (r *Resolver) HostDayFor(ctx context.Context, t time.Time) (model.Window, bool, error) {
	utcDay := tz.DateOf(t.UTC())
	for _, offset := range []int{0, -1, 1} {
		w, err := r.Day(ctx, utcDay.AddDays(offset))
		if err != nil {
			return model.Window{}, false, err
		}
		if w.Empty() {
			continue
		}
		if !t.Before(w.Start) && t.Before(w.End) {
			return w, true, nil
		}
	}
	return model.Window{}, false, nil
}

func (r *Resolver) hostTimezone(entry model.LocationScheduleEntry, weekly model.WeeklyAvailability, detected string) string {
	switch {
	case entry.Timezone != "":
		return entry.Timezone
	case weekly.Timezone != "":
		return weekly.Timezone
	}
	if id, ok := r.cfg.LocationTimezones[detected]; ok && detected != "" {
		return id
	}
	return r.cfg.DefaultTimezone
}

func (r *Resolver) hours(weekly model.WeeklyAvailability, wd time.Weekday) (tz.Clock, tz.Clock, bool, error) {
	day, ok := weekly.Day(wd)
	if !ok {
		return r.cfg.DefaultStart, r.cfg.DefaultEnd, true, nil
	}
	if !day.Enabled {
		return tz.Clock{}, tz.Clock{}, false, nil
	}
	start, err := tz.ParseClock(day.Start)
	if err != nil {
		return tz.Clock{}, tz.Clock{}, false, fmt.Errorf("%s start: %w", model.WeekdayKey(wd), err)
	}
	end, err := tz.ParseClock(day.End)
	if err != nil {
		return tz.Clock{}, tz.Clock{}, false, fmt.Errorf("%s end: %w", model.WeekdayKey(wd), err)
	}
	if !start.Before(end) {
		r.logger.Warn("weekly availability has empty hours", "weekday", model.WeekdayKey(wd), "start", day.Start, "end", day.End)
		return tz.Clock{}, tz.Clock{}, false, nil
	}
	return start, end, true, nil
}
