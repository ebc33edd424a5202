// Package booking reserves a slot by re-checking availability and creating the
// calendar event.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/tz"
)

var (
	ErrInvalidRequest        = errors.New("invalid booking request")
	ErrSlotNoLongerAvailable = errors.New("slot no longer available")
)

type BusyLister interface {
	ListBusy(ctx context.Context, start, end time.Time) ([]model.BusyInterval, error)
}

type WindowFinder interface {
	HostDayFor(ctx context.Context, t time.Time) (model.Window, bool, error)
}

type EventInserter interface {
	InsertEvent(ctx context.Context, ev calendar.NewEvent) (calendar.CreatedEvent, error)
}

// Sink receives a record of every confirmed booking.
type Sink interface {
	MeetingBooked(ctx context.Context, ev MeetingBooked) error
}

// MeetingBooked describes a confirmed booking for downstream consumers.
type MeetingBooked struct {
	EventID          string    `json:"event_id"`
	VisitorName      string    `json:"visitor_name"`
	VisitorEmail     string    `json:"visitor_email"`
	AdditionalEmails []string  `json:"additional_emails,omitempty"`
	VisitorTimezone  string    `json:"visitor_timezone,omitempty"`
	HostTimezone     string    `json:"host_timezone"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	Purpose          string    `json:"purpose,omitempty"`
	MeetingType      string    `json:"meeting_type"`
	Location         string    `json:"location,omitempty"`
	CalendarLink     string    `json:"calendar_link,omitempty"`
	MeetLink         string    `json:"meet_link,omitempty"`
}

type Config struct {
	MinDuration time.Duration
	MaxDuration time.Duration
	Reminders   []calendar.Reminder
	// LockKey names the host; every booking for it takes the same lock.
	LockKey string
	// LockWait bounds how long a booking waits for a concurrent one.
	LockWait time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinDuration: 30 * time.Minute,
		MaxDuration: 240 * time.Minute,
		Reminders: []calendar.Reminder{
			{Method: "email", Minutes: 24 * 60},
			{Method: "popup", Minutes: 30},
		},
		LockKey:  "host",
		LockWait: 10 * time.Second,
	}
}

type Coordinator struct {
	cfg     Config
	cal     EventInserter
	busy    BusyLister
	windows WindowFinder
	locker  Locker
	sink    Sink
	logger  *slog.Logger
	now     func() time.Time
}

// NewCoordinator wires the collaborators. sink may be nil.
func NewCoordinator(cfg Config, cal EventInserter, busy BusyLister, windows WindowFinder, locker Locker, sink Sink, logger *slog.Logger) *Coordinator {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Coordinator{
		cfg:     cfg,
		cal:     cal,
		busy:    busy,
		windows: windows,
		locker:  locker,
		sink:    sink,
		logger:  logger,
		now:     time.Now,
	}
}

// Book re-verifies the slot and creates the calendar event. The insert is never
// retried here.
func (c *Coordinator) Book(ctx context.Context, b model.Booking) (model.BookingResult, error) {
	b, err := c.validate(b)
	if err != nil {
		return model.BookingResult{}, err
	}

	window, ok, err := c.windows.HostDayFor(ctx, b.SlotStart)
	if err != nil {
		return model.BookingResult{}, err
	}
	if !ok || b.SlotEnd.After(window.End) {
		return model.BookingResult{}, fmt.Errorf("%w: slot is outside working hours", ErrInvalidRequest)
	}
	if !availability.OnGrid(b.SlotStart, window.Location) {
		return model.BookingResult{}, fmt.Errorf("%w: slot must start on the hour or half hour", ErrInvalidRequest)
	}

	lockCtx, cancel := context.WithTimeout(ctx, c.cfg.LockWait)
	unlock, err := c.locker.Lock(lockCtx, c.cfg.LockKey)
	cancel()
	if err != nil {
		return model.BookingResult{}, err
	}
	defer unlock()

	busy, err := c.busy.ListBusy(ctx, b.SlotStart, b.SlotEnd)
	if err != nil {
		return model.BookingResult{}, err
	}
	for _, iv := range busy {
		if b.SlotStart.Before(iv.End) && iv.Start.Before(b.SlotEnd) {
			c.logger.Info("booking conflict",
				"slot_start", b.SlotStart.Format(time.RFC3339),
				"busy_start", iv.Start.Format(time.RFC3339),
				"busy_end", iv.End.Format(time.RFC3339),
			)
			return model.BookingResult{}, ErrSlotNoLongerAvailable
		}
	}

	location := ""
	if b.MeetingType == model.MeetingInPerson {
		location = window.LocationTag(b.SlotStart)
	}
	ev := calendar.NewEvent{
		Summary:     "Meeting with " + b.VisitorName,
		Description: describe(b),
		Start:       b.SlotStart,
		End:         b.SlotEnd,
		TimeZone:    window.HostTimezone,
		Attendees:   append([]string{b.VisitorEmail}, b.AdditionalEmails...),
		Location:    location,
		Reminders:   c.cfg.Reminders,
	}
	if b.MeetingType == model.MeetingVideo {
		ev.ConferenceRequestID = uuid.NewString()
	}
	created, err := c.cal.InsertEvent(ctx, ev)
	if err != nil {
		if !errors.Is(err, calendar.ErrWriteFailed) {
			err = fmt.Errorf("%w: %v", calendar.ErrWriteFailed, err)
		}
		return model.BookingResult{}, err
	}

	result := model.BookingResult{
		EventID:      created.ID,
		CalendarLink: created.HTMLLink,
		MeetLink:     created.HangoutLink,
		Location:     location,
		HostTimezone: window.HostTimezone,
	}
	c.logger.Info("meeting booked",
		"event_id", created.ID,
		"slot_start", b.SlotStart.Format(time.RFC3339),
		"slot_end", b.SlotEnd.Format(time.RFC3339),
		"host_timezone", window.HostTimezone,
		"meeting_type", string(b.MeetingType),
	)

	if c.sink != nil {
		if err := c.sink.MeetingBooked(ctx, MeetingBooked{
			EventID:          created.ID,
			VisitorName:      b.VisitorName,
			VisitorEmail:     b.VisitorEmail,
			AdditionalEmails: b.AdditionalEmails,
			VisitorTimezone:  b.VisitorTimezone,
			HostTimezone:     window.HostTimezone,
			Start:            b.SlotStart,
			End:              b.SlotEnd,
			Purpose:          b.Purpose,
			MeetingType:      string(b.MeetingType),
			Location:         location,
			CalendarLink:     created.HTMLLink,
			MeetLink:         created.HangoutLink,
		}); err != nil {
			// The event exists; failing here would invite a duplicate retry.
			c.logger.Warn("booking notification not recorded", "event_id", created.ID, "err", err)
		}
	}
	return result, nil
}

func (c *Coordinator) validate(b model.Booking) (model.Booking, error) {
	b.VisitorName = strings.TrimSpace(b.VisitorName)
	if b.VisitorName == "" {
		return b, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	email, err := parseEmail(b.VisitorEmail)
	if err != nil {
		return b, fmt.Errorf("%w: email: %v", ErrInvalidRequest, err)
	}
	b.VisitorEmail = email

	seen := map[string]bool{strings.ToLower(email): true}
	var extra []string
	for _, raw := range b.AdditionalEmails {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		addr, err := parseEmail(raw)
		if err != nil {
			return b, fmt.Errorf("%w: additional email %q: %v", ErrInvalidRequest, raw, err)
		}
		if seen[strings.ToLower(addr)] {
			continue
		}
		seen[strings.ToLower(addr)] = true
		extra = append(extra, addr)
	}
	b.AdditionalEmails = extra

	if b.MeetingType == "" {
		b.MeetingType = model.MeetingVideo
	}
	if b.VisitorTimezone != "" {
		if _, err := tz.Load(b.VisitorTimezone); err != nil {
			return b, err
		}
	}

	if b.SlotStart.IsZero() || b.SlotEnd.IsZero() {
		return b, fmt.Errorf("%w: slot start and end are required", ErrInvalidRequest)
	}
	b.SlotStart, b.SlotEnd = b.SlotStart.UTC(), b.SlotEnd.UTC()
	d := b.SlotEnd.Sub(b.SlotStart)
	if d < c.cfg.MinDuration || d > c.cfg.MaxDuration || d%availability.GridStep != 0 {
		return b, fmt.Errorf("%w: duration %s must be a multiple of %s between %s and %s",
			ErrInvalidRequest, d, availability.GridStep, c.cfg.MinDuration, c.cfg.MaxDuration)
	}
	if !b.SlotEnd.After(c.now()) {
		return b, fmt.Errorf("%w: slot is in the past", ErrInvalidRequest)
	}
	return b, nil
}

func parseEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return addr.Address, nil
}

func describe(b model.Booking) string {
	var sb strings.Builder
	if b.Purpose != "" {
		fmt.Fprintf(&sb, "Purpose: %s\n", b.Purpose)
	}
	fmt.Fprintf(&sb, "Meeting type: %s\n", b.MeetingType)
	fmt.Fprintf(&sb, "Booked by: %s (%s)", b.VisitorName, b.VisitorEmail)
	if b.VisitorTimezone != "" {
		fmt.Fprintf(&sb, "\nVisitor timezone: %s", b.VisitorTimezone)
	}
	return sb.String()
}
