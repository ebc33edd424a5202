// Package calendar is the boundary to the host's remote calendar.
package calendar

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable means the calendar could not be read.
	ErrUnavailable = errors.New("calendar unavailable")
	// ErrWriteFailed means an insert was attempted and failed. Callers must not
	// retry blindly since the event may still have been created.
	ErrWriteFailed = errors.New("calendar write failed")
)

// Event is a calendar entry as seen by the scheduler.
type Event struct {
	ID          string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	AllDay      bool
}

// Reminder is a notification attached to a created event.
type Reminder struct {
	Method  string // "email" or "popup"
	Minutes int
}

type NewEvent struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string
	Attendees   []string
	Location    string
	// ConferenceRequestID asks the backend to attach a video meeting when set.
	ConferenceRequestID string
	Reminders           []Reminder
}

type CreatedEvent struct {
	ID          string
	HTMLLink    string
	HangoutLink string
}

// Calendar lists and inserts events on the host calendar.
type Calendar interface {
	ListEvents(ctx context.Context, start, end time.Time) ([]Event, error)
	InsertEvent(ctx context.Context, ev NewEvent) (CreatedEvent, error)
}
