package icsfeed

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
)

// Event is a VEVENT reduced to what busy computation needs.
type Event struct {
	UID      string
	Summary  string
	Start    time.Time
	End      time.Time
	AllDay   bool
	RawRRule string
	ExDates  []time.Time
}

// Parse reads an ICS payload. Cancelled and transparent (free) events are
// dropped; all-day and floating times are read in loc.
func Parse(body []byte, loc *time.Location) ([]Event, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty ICS body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	var out []Event
	for _, ve := range cal.Events() {
		if strings.EqualFold(propValue(ve, ical.ComponentPropertyStatus), "CANCELLED") {
			continue
		}
		if strings.EqualFold(propValue(ve, ical.ComponentProperty("TRANSP")), "TRANSPARENT") {
			continue
		}
		ev, err := parseEvent(ve, loc)
		if err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func parseEvent(ve *ical.VEvent, loc *time.Location) (Event, error) {
	ev := Event{
		UID:      propValue(ve, ical.ComponentPropertyUniqueId),
		Summary:  propValue(ve, ical.ComponentPropertySummary),
		RawRRule: propValue(ve, ical.ComponentPropertyRrule),
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return Event{}, errors.New("missing DTSTART")
	}
	start, allDay, err := parseTime(startProp.Value, param(startProp.ICalParameters, "TZID"), loc)
	if err != nil {
		return Event{}, err
	}
	if strings.EqualFold(param(startProp.ICalParameters, "VALUE"), "DATE") {
		allDay = true
	}
	ev.Start, ev.AllDay = start, allDay

	switch endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); {
	case endProp != nil:
		end, _, err := parseTime(endProp.Value, param(endProp.ICalParameters, "TZID"), loc)
		if err != nil {
			return Event{}, err
		}
		ev.End = end
	case allDay:
		ev.End = start.AddDate(0, 0, 1)
	default:
		ev.End = start
	}
	if !ev.End.After(ev.Start) {
		return Event{}, errors.New("event has no duration")
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		tzid := param(p.ICalParameters, "TZID")
		for _, part := range strings.Split(p.Value, ",") {
			if t, _, err := parseTime(part, tzid, loc); err == nil {
				ev.ExDates = append(ev.ExDates, t)
			}
		}
	}
	return ev, nil
}

// Expand returns the busy intervals of events overlapping [start, end).
func Expand(events []Event, start, end time.Time) []model.BusyInterval {
	var out []model.BusyInterval
	add := func(ev Event, s, e time.Time) {
		if s.Before(end) && e.After(start) {
			out = append(out, model.BusyInterval{Start: s.UTC(), End: e.UTC(), Label: ev.Summary})
		}
	}
	for _, ev := range events {
		if ev.RawRRule == "" {
			add(ev, ev.Start, ev.End)
			continue
		}
		r, err := rrule.StrToRRule(ev.RawRRule)
		if err != nil {
			continue
		}
		r.DTStart(ev.Start)
		var set rrule.Set
		set.RRule(r)
		for _, ex := range ev.ExDates {
			set.ExDate(ex.In(ev.Start.Location()))
		}
		dur := ev.End.Sub(ev.Start)
		for _, occ := range set.Between(start.Add(-dur), end, true) {
			if ev.AllDay {
				add(ev, occ, occ.AddDate(0, 0, 1))
				continue
			}
			add(ev, occ, occ.Add(dur))
		}
	}
	return out
}

// parseTime accepts DATE, local DATE-TIME (with optional TZID) and UTC forms.
func parseTime(v, tzid string, loc *time.Location) (time.Time, bool, error) {
	v = strings.TrimSpace(v)
	if tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		}
	}
	switch {
	case strings.HasSuffix(v, "Z"):
		t, err := time.Parse("20060102T150405Z", v)
		return t, false, err
	case strings.Contains(v, "T"):
		t, err := time.ParseInLocation("20060102T150405", v, loc)
		return t, false, err
	default:
		t, err := time.ParseInLocation("20060102", v, loc)
		return t, true, err
	}
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return p.Value
	}
	return ""
}

func param(params map[string][]string, key string) string {
	if vs, ok := params[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}
