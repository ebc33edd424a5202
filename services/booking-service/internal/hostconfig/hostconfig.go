// Package hostconfig loads the host profile: default timezone and hours,
// location tags, travel keywords, subscribed feeds and booking defaults.
package hostconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/location"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/tz"
)

const DefaultPath = "config/host.yaml"

// Location is a named place the host works from.
type Location struct {
	Tag      string `yaml:"tag"`
	Timezone string `yaml:"timezone"`
	// Address is shown in confirmation emails for in-person meetings.
	Address string `yaml:"address,omitempty"`
}

// Feed is a read-only ICS calendar whose events count as busy.
type Feed struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

type Reminder struct {
	Method  string `yaml:"method"`
	Minutes int    `yaml:"minutes"`
}

type Config struct {
	Timezone        string                 `yaml:"timezone"`
	WorkStart       string                 `yaml:"work_start"`
	WorkEnd         string                 `yaml:"work_end"`
	DefaultLocation string                 `yaml:"default_location"`
	DetectLocation  bool                   `yaml:"detect_location"`
	Locations       []Location             `yaml:"locations"`
	FlightKeywords  []string               `yaml:"flight_keywords"`
	Destinations    []location.Destination `yaml:"destinations"`
	Feeds           []Feed                 `yaml:"feeds"`
	FeedRefresh     string                 `yaml:"feed_refresh"`
	SlotDuration    int                    `yaml:"slot_duration_minutes"`
	MaxSlotDuration int                    `yaml:"max_slot_duration_minutes"`
	Reminders       []Reminder             `yaml:"reminders"`
	// Weekly seeds the weekly availability template when none is stored yet.
	Weekly map[string]model.DayAvailability `yaml:"weekly,omitempty"`
}

func Default() *Config {
	return &Config{
		Timezone:        "Asia/Seoul",
		WorkStart:       "08:00",
		WorkEnd:         "21:00",
		DefaultLocation: "KR",
		Locations: []Location{
			{Tag: "KR", Timezone: "Asia/Seoul"},
			{Tag: "US", Timezone: "America/Los_Angeles"},
		},
		FeedRefresh:     "*/15 * * * *",
		SlotDuration:    30,
		MaxSlotDuration: 240,
		Reminders: []Reminder{
			{Method: "email", Minutes: 24 * 60},
			{Method: "popup", Minutes: 30},
		},
	}
}

// Normalize fills zero values with defaults.
func (c *Config) Normalize() {
	d := Default()
	c.Timezone = strings.TrimSpace(c.Timezone)
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.WorkStart == "" {
		c.WorkStart = d.WorkStart
	}
	if c.WorkEnd == "" {
		c.WorkEnd = d.WorkEnd
	}
	if c.Locations == nil {
		c.Locations = d.Locations
	}
	if c.FeedRefresh == "" {
		c.FeedRefresh = d.FeedRefresh
	}
	if c.SlotDuration <= 0 {
		c.SlotDuration = d.SlotDuration
	}
	if c.MaxSlotDuration <= 0 {
		c.MaxSlotDuration = d.MaxSlotDuration
	}
	if c.Reminders == nil {
		c.Reminders = d.Reminders
	}
	if len(c.FlightKeywords) == 0 {
		c.FlightKeywords = location.FlightKeywords
	}
	if len(c.Destinations) == 0 {
		c.Destinations = location.DefaultDestinations
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if _, err := tz.Load(c.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	start, err := tz.ParseClock(c.WorkStart)
	if err != nil {
		return fmt.Errorf("work_start: %w", err)
	}
	end, err := tz.ParseClock(c.WorkEnd)
	if err != nil {
		return fmt.Errorf("work_end: %w", err)
	}
	if !start.Before(end) {
		return fmt.Errorf("work_end %s must be after work_start %s", end, start)
	}
	for _, l := range c.Locations {
		if l.Tag == "" {
			return errors.New("locations: tag is required")
		}
		if _, err := tz.Load(l.Timezone); err != nil {
			return fmt.Errorf("location %s: %w", l.Tag, err)
		}
	}
	for _, f := range c.Feeds {
		if f.ID == "" || f.URL == "" {
			return fmt.Errorf("feed %q: id and url are required", f.ID)
		}
	}
	if len(c.Feeds) > 0 {
		if _, err := cron.ParseStandard(c.FeedRefresh); err != nil {
			return fmt.Errorf("feed_refresh: %w", err)
		}
	}
	if c.SlotDuration%30 != 0 || c.MaxSlotDuration%30 != 0 || c.SlotDuration > c.MaxSlotDuration {
		return fmt.Errorf("slot durations must be multiples of 30 with default <= max (got %d/%d)", c.SlotDuration, c.MaxSlotDuration)
	}
	return nil
}

// Load reads path; a missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = Default()
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) LocationTimezones() map[string]string {
	out := make(map[string]string, len(c.Locations))
	for _, l := range c.Locations {
		out[l.Tag] = l.Timezone
	}
	return out
}

// Addresses maps location tags to their display address.
func (c *Config) Addresses() map[string]string {
	out := map[string]string{}
	for _, l := range c.Locations {
		if l.Address != "" {
			out[l.Tag] = l.Address
		}
	}
	return out
}

func (c *Config) WorkHours() (tz.Clock, tz.Clock) {
	start, _ := tz.ParseClock(c.WorkStart)
	end, _ := tz.ParseClock(c.WorkEnd)
	return start, end
}

func (c *Config) DefaultDuration() time.Duration {
	return time.Duration(c.SlotDuration) * time.Minute
}

func (c *Config) MaxDuration() time.Duration {
	return time.Duration(c.MaxSlotDuration) * time.Minute
}

func (c *Config) CalendarReminders() []calendar.Reminder {
	out := make([]calendar.Reminder, 0, len(c.Reminders))
	for _, r := range c.Reminders {
		out = append(out, calendar.Reminder{Method: r.Method, Minutes: r.Minutes})
	}
	return out
}
