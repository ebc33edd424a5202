package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/busy"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/schedule"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/tz"
)

type recordingSink struct {
	mu     sync.Mutex
	events []MeetingBooked
	err    error
}

func (s *recordingSink) MeetingBooked(_ context.Context, ev MeetingBooked) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

type harness struct {
	cal   *calendar.Memory
	sink  *recordingSink
	coord *Coordinator
}

func newHarness(t *testing.T) harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	locs := schedule.NewMemoryLocations()
	_ = locs.Upsert(context.Background(), []model.LocationScheduleEntry{{Date: "2025-08-23", Morning: "Gangnam office", Afternoon: "Seongsu cafe"}})
	resolver, err := schedule.NewResolver(schedule.DefaultConfig(), locs, schedule.NewMemoryWeekly(model.WeeklyAvailability{}), nil, logger)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	cal := calendar.NewMemory()
	sink := &recordingSink{}
	coord := NewCoordinator(DefaultConfig(), cal, busy.NewAggregator(cal, nil, logger), resolver, NewLocalLocker(), sink, logger)
	coord.now = func() time.Time { return time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC) }
	return harness{cal: cal, sink: sink, coord: coord}
}

func kst(t *testing.T, clock string) time.Time {
	t.Helper()
	v, err := tz.ToAbsolute("2025-08-23", clock, "Asia/Seoul")
	if err != nil {
		t.Fatalf("ToAbsolute: %v", err)
	}
	return v
}

func validBooking(t *testing.T) model.Booking {
	return model.Booking{
		SlotStart:        kst(t, "10:00"),
		SlotEnd:          kst(t, "10:30"),
		VisitorName:      "Dana Visitor",
		VisitorEmail:     "dana@example.com",
		VisitorTimezone:  "America/Los_Angeles",
		AdditionalEmails: []string{"sam@example.com", "DANA@example.com", ""},
		Purpose:          "Intro call",
		MeetingType:      model.MeetingVideo,
	}
}

func TestBookCreatesVideoEvent(t *testing.T) {
	h := newHarness(t)
	res, err := h.coord.Book(context.Background(), validBooking(t))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if res.EventID == "" || res.MeetLink == "" {
		t.Fatalf("expected event id and meet link, got %+v", res)
	}
	if res.HostTimezone != "Asia/Seoul" || res.Location != "" {
		t.Fatalf("unexpected result %+v", res)
	}
	events := h.cal.Events()
	if len(events) != 1 || events[0].Summary != "Meeting with Dana Visitor" {
		t.Fatalf("unexpected events %+v", events)
	}
	if !strings.Contains(events[0].Description, "Purpose: Intro call") {
		t.Fatalf("description missing purpose: %q", events[0].Description)
	}
	if len(h.sink.events) != 1 {
		t.Fatalf("expected one sink record, got %d", len(h.sink.events))
	}
	if got := h.sink.events[0].AdditionalEmails; len(got) != 1 || got[0] != "sam@example.com" {
		t.Fatalf("visitor email must not repeat in additional emails, got %v", got)
	}
}

func TestBookInPersonUsesHalfDayLocation(t *testing.T) {
	h := newHarness(t)
	b := validBooking(t)
	b.MeetingType = model.MeetingInPerson
	b.SlotStart, b.SlotEnd = kst(t, "14:00"), kst(t, "15:00")
	res, err := h.coord.Book(context.Background(), b)
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if res.Location != "Seongsu cafe" || res.MeetLink != "" {
		t.Fatalf("expected afternoon location and no meet link, got %+v", res)
	}
}

func TestBookConflict(t *testing.T) {
	h := newHarness(t)
	h.cal.Add(calendar.Event{ID: "x", Summary: "Busy", Start: kst(t, "10:15"), End: kst(t, "11:00")})
	_, err := h.coord.Book(context.Background(), validBooking(t))
	if !errors.Is(err, ErrSlotNoLongerAvailable) {
		t.Fatalf("expected ErrSlotNoLongerAvailable, got %v", err)
	}
	if len(h.cal.Events()) != 1 {
		t.Fatalf("no event may be inserted on conflict")
	}
}

func TestBookAdjacentEventIsNotConflict(t *testing.T) {
	h := newHarness(t)
	h.cal.Add(calendar.Event{ID: "x", Summary: "Before", Start: kst(t, "09:00"), End: kst(t, "10:00")})
	if _, err := h.coord.Book(context.Background(), validBooking(t)); err != nil {
		t.Fatalf("adjacent event must not block: %v", err)
	}
}

func TestBookValidation(t *testing.T) {
	h := newHarness(t)
	cases := map[string]func(*model.Booking){
		"missing name":      func(b *model.Booking) { b.VisitorName = " " },
		"bad email":         func(b *model.Booking) { b.VisitorEmail = "not-an-email" },
		"bad extra email":   func(b *model.Booking) { b.AdditionalEmails = []string{"nope"} },
		"reversed":          func(b *model.Booking) { b.SlotEnd = b.SlotStart.Add(-30 * time.Minute) },
		"odd duration":      func(b *model.Booking) { b.SlotEnd = b.SlotStart.Add(45 * time.Minute) },
		"too long":          func(b *model.Booking) { b.SlotEnd = b.SlotStart.Add(5 * time.Hour) },
		"off grid":          func(b *model.Booking) { b.SlotStart, b.SlotEnd = kst(t, "10:15"), kst(t, "10:45") },
		"outside hours":     func(b *model.Booking) { b.SlotStart, b.SlotEnd = kst(t, "20:30"), kst(t, "21:30") },
		"before work start": func(b *model.Booking) { b.SlotStart, b.SlotEnd = kst(t, "07:00"), kst(t, "07:30") },
	}
	for name, mutate := range cases {
		b := validBooking(t)
		mutate(&b)
		if _, err := h.coord.Book(context.Background(), b); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("%s: expected ErrInvalidRequest, got %v", name, err)
		}
	}

	b := validBooking(t)
	b.VisitorTimezone = "Moon/Base"
	if _, err := h.coord.Book(context.Background(), b); !errors.Is(err, tz.ErrInvalidTimezone) {
		t.Fatalf("expected ErrInvalidTimezone, got %v", err)
	}
}

func TestBookPastSlot(t *testing.T) {
	h := newHarness(t)
	h.coord.now = func() time.Time { return kst(t, "12:00") }
	if _, err := h.coord.Book(context.Background(), validBooking(t)); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for past slot, got %v", err)
	}
}

func TestBookCalendarFailures(t *testing.T) {
	h := newHarness(t)
	h.cal.ListErr = errors.New("down")
	if _, err := h.coord.Book(context.Background(), validBooking(t)); !errors.Is(err, calendar.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	h = newHarness(t)
	h.cal.InsertErr = errors.New("quota")
	if _, err := h.coord.Book(context.Background(), validBooking(t)); !errors.Is(err, calendar.ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
	if len(h.sink.events) != 0 {
		t.Fatalf("failed insert must not be recorded")
	}
}

func TestBookSinkFailureDoesNotFailBooking(t *testing.T) {
	h := newHarness(t)
	h.sink.err = errors.New("db down")
	if _, err := h.coord.Book(context.Background(), validBooking(t)); err != nil {
		t.Fatalf("sink failure must not fail the booking: %v", err)
	}
}

func TestBookRaceExactlyOneWins(t *testing.T) {
	h := newHarness(t)
	h.cal.InsertDelay = 20 * time.Millisecond

	const n = 2
	var wg sync.WaitGroup
	errs := make([]error, n)
	results := make([]model.BookingResult, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.coord.Book(context.Background(), validBooking(t))
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for i, err := range errs {
		switch {
		case err == nil:
			ok++
			if results[i].EventID == "" {
				t.Fatalf("winner must carry an event id")
			}
		case errors.Is(err, ErrSlotNoLongerAvailable):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != 1 {
		t.Fatalf("expected 1 success and 1 conflict, got %d/%d", ok, conflicts)
	}
	if len(h.cal.Events()) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(h.cal.Events()))
	}
}

func TestLocalLockerHonoursContext(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "k"); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	unlock()
	unlock()
	again, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	again()
	if len(l.slots) != 0 {
		t.Fatalf("expected key bookkeeping to be cleared, got %d", len(l.slots))
	}
}
