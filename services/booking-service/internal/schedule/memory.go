package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
)

// MemoryLocations is a LocationStore used when no database is configured.
type MemoryLocations struct {
	mu      sync.RWMutex
	entries map[string]model.LocationScheduleEntry
}

func NewMemoryLocations() *MemoryLocations {
	return &MemoryLocations{entries: map[string]model.LocationScheduleEntry{}}
}

func (m *MemoryLocations) Get(_ context.Context, date string) (model.LocationScheduleEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[date]
	return e, ok, nil
}

func (m *MemoryLocations) List(_ context.Context) ([]model.LocationScheduleEntry, error) {
	m.mu.RLock()
	out := make([]model.LocationScheduleEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// Upsert merges non-empty fields of each entry into what is stored.
func (m *MemoryLocations) Upsert(_ context.Context, entries []model.LocationScheduleEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for _, e := range entries {
		m.entries[e.Date] = MergeEntry(m.entries[e.Date], e, now)
	}
	return nil
}

func (m *MemoryLocations) Clear(_ context.Context, dates []string, part model.TimeOfDay) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for _, d := range dates {
		cur, ok := m.entries[d]
		if !ok {
			continue
		}
		next := ClearEntry(cur, part, now)
		if next.Empty() {
			delete(m.entries, d)
			continue
		}
		m.entries[d] = next
	}
	return nil
}

func (m *MemoryLocations) ReplaceAll(_ context.Context, entries []model.LocationScheduleEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]model.LocationScheduleEntry, len(entries))
	for _, e := range entries {
		if !e.Empty() {
			m.entries[e.Date] = e
		}
	}
	return nil
}

// MemoryWeekly holds the weekly template in memory.
type MemoryWeekly struct {
	mu     sync.RWMutex
	weekly model.WeeklyAvailability
}

func NewMemoryWeekly(initial model.WeeklyAvailability) *MemoryWeekly {
	return &MemoryWeekly{weekly: initial}
}

func (m *MemoryWeekly) Get(_ context.Context) (model.WeeklyAvailability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyWeekly(m.weekly), nil
}

func (m *MemoryWeekly) Save(_ context.Context, w model.WeeklyAvailability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weekly = copyWeekly(w)
	return nil
}

func copyWeekly(w model.WeeklyAvailability) model.WeeklyAvailability {
	out := model.WeeklyAvailability{Timezone: w.Timezone, Days: make(map[string]model.DayAvailability, len(w.Days))}
	for k, v := range w.Days {
		out.Days[k] = v
	}
	return out
}
