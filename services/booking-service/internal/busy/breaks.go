package busy

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/tz"
)

// BreakStore keeps recurring break rules in process memory only. Rules are
// lost on restart.
type BreakStore struct {
	mu    sync.RWMutex
	rules map[string]model.RecurringBreak
	now   func() time.Time
}

func NewBreakStore() *BreakStore {
	return &BreakStore{rules: map[string]model.RecurringBreak{}, now: time.Now}
}

// Add validates and stores rule, assigning an id.
func (s *BreakStore) Add(rule model.RecurringBreak) (model.RecurringBreak, error) {
	if len(rule.Weekdays) == 0 {
		return model.RecurringBreak{}, errors.New("at least one weekday is required")
	}
	start, err := tz.ParseClock(rule.Start)
	if err != nil {
		return model.RecurringBreak{}, err
	}
	end, err := tz.ParseClock(rule.End)
	if err != nil {
		return model.RecurringBreak{}, err
	}
	if !start.Before(end) {
		return model.RecurringBreak{}, fmt.Errorf("break end %s must be after start %s", end, start)
	}
	if _, err := tz.Load(rule.Timezone); err != nil {
		return model.RecurringBreak{}, err
	}
	rule.Start, rule.End = start.String(), end.String()
	rule.ID = uuid.NewString()
	rule.CreatedAt = s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[rule.ID] = rule
	return rule, nil
}

func (s *BreakStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return false
	}
	delete(s.rules, id)
	return true
}

// List returns rules ordered by creation time.
func (s *BreakStore) List() []model.RecurringBreak {
	s.mu.RLock()
	out := make([]model.RecurringBreak, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Busy expands every rule into concrete intervals overlapping [start, end).
func (s *BreakStore) Busy(start, end time.Time) ([]model.BusyInterval, error) {
	var out []model.BusyInterval
	for _, rule := range s.List() {
		intervals, err := ExpandBreak(rule, start, end)
		if err != nil {
			return nil, fmt.Errorf("expand break %s: %w", rule.ID, err)
		}
		out = append(out, intervals...)
	}
	return out, nil
}

// ExpandBreak turns a weekly rule into intervals overlapping [start, end). Each
// occurrence keeps its wall-clock times across DST changes.
func ExpandBreak(rule model.RecurringBreak, start, end time.Time) ([]model.BusyInterval, error) {
	loc, err := tz.Load(rule.Timezone)
	if err != nil {
		return nil, err
	}
	from, err := tz.ParseClock(rule.Start)
	if err != nil {
		return nil, err
	}
	to, err := tz.ParseClock(rule.End)
	if err != nil {
		return nil, err
	}

	weekdays := make([]rrule.Weekday, 0, len(rule.Weekdays))
	for _, d := range rule.Weekdays {
		weekdays = append(weekdays, rruleWeekday(d))
	}

	// Anchor one day before the range so an occurrence that began before start
	// but still overlaps it is produced.
	anchor := tz.DateOf(start.In(loc)).AddDays(-1)
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: weekdays,
		Dtstart:   anchor.In(from, loc),
	})
	if err != nil {
		return nil, err
	}

	label := "Break"
	if rule.Reason != "" {
		label = "Break: " + rule.Reason
	}
	var out []model.BusyInterval
	for _, occ := range r.Between(anchor.StartOfDay(loc), end, true) {
		occEnd := tz.DateOf(occ.In(loc)).In(to, loc)
		if occ.Before(end) && occEnd.After(start) {
			out = append(out, model.BusyInterval{Start: occ.UTC(), End: occEnd.UTC(), Label: label})
		}
	}
	return out, nil
}

func rruleWeekday(d time.Weekday) rrule.Weekday {
	switch d {
	case time.Monday:
		return rrule.MO
	case time.Tuesday:
		return rrule.TU
	case time.Wednesday:
		return rrule.WE
	case time.Thursday:
		return rrule.TH
	case time.Friday:
		return rrule.FR
	case time.Saturday:
		return rrule.SA
	default:
		return rrule.SU
	}
}
