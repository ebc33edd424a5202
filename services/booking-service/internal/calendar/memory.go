package calendar

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process calendar used for local runs and tests.
type Memory struct {
	mu     sync.Mutex
	events []Event

	// ListErr and InsertErr force failures when set.
	ListErr   error
	InsertErr error
	// InsertDelay widens the window between a read and a write in race tests.
	InsertDelay time.Duration
}

func NewMemory(events ...Event) *Memory {
	m := &Memory{}
	for _, ev := range events {
		m.Add(ev)
	}
	return m
}

func (m *Memory) Add(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	m.events = append(m.events, ev)
}

func (m *Memory) ListEvents(ctx context.Context, start, end time.Time) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, m.ListErr)
	}
	var out []Event
	for _, ev := range m.events {
		if ev.Start.Before(end) && ev.End.After(start) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *Memory) InsertEvent(ctx context.Context, ev NewEvent) (CreatedEvent, error) {
	if m.InsertDelay > 0 {
		select {
		case <-time.After(m.InsertDelay):
		case <-ctx.Done():
			return CreatedEvent{}, fmt.Errorf("%w: %v", ErrWriteFailed, ctx.Err())
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil {
		return CreatedEvent{}, fmt.Errorf("%w: %v", ErrWriteFailed, m.InsertErr)
	}
	id := uuid.NewString()
	m.events = append(m.events, Event{
		ID:          id,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       ev.Start,
		End:         ev.End,
	})
	created := CreatedEvent{ID: id, HTMLLink: "memory://events/" + id}
	if ev.ConferenceRequestID != "" {
		created.HangoutLink = "https://meet.example.invalid/" + ev.ConferenceRequestID
	}
	return created, nil
}

// Events returns a copy of everything stored.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}
