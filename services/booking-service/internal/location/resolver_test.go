package location

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/tz"
)

type countingLister struct {
	*calendar.Memory
	calls int
}

func (c *countingLister) ListEvents(ctx context.Context, start, end time.Time) ([]calendar.Event, error) {
	c.calls++
	return c.Memory.ListEvents(ctx, start, end)
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func at(day int, hour int) time.Time {
	return time.Date(2025, time.September, day, hour, 0, 0, 0, time.UTC)
}

func TestDetectUsesMostRecentFlight(t *testing.T) {
	mem := calendar.NewMemory(
		calendar.Event{ID: "1", Summary: "Flight to Seoul", Start: at(2, 1), End: at(2, 12)},
		calendar.Event{ID: "2", Summary: "Flight LAX", Location: "Los Angeles, USA", Start: at(5, 1), End: at(5, 12)},
		calendar.Event{ID: "3", Summary: "Dentist", Start: at(6, 1), End: at(6, 2)},
	)
	r := NewResolver(mem, NewFlightKeywordStrategy(nil, nil), "KR", discard())
	if got := r.Detect(context.Background(), tz.Date{Year: 2025, Month: time.September, Day: 7}); got != "US" {
		t.Fatalf("expected US, got %q", got)
	}
	if got := r.Detect(context.Background(), tz.Date{Year: 2025, Month: time.September, Day: 3}); got != "KR" {
		t.Fatalf("expected KR, got %q", got)
	}
}

func TestDetectFallbackAndCache(t *testing.T) {
	lister := &countingLister{Memory: calendar.NewMemory()}
	r := NewResolver(lister, NewFlightKeywordStrategy(nil, nil), "KR", discard())
	day := tz.Date{Year: 2025, Month: time.September, Day: 10}
	if got := r.Detect(context.Background(), day); got != "KR" {
		t.Fatalf("expected fallback KR, got %q", got)
	}
	r.Detect(context.Background(), day)
	if lister.calls != 1 {
		t.Fatalf("expected cached result, got %d calendar calls", lister.calls)
	}
}

func TestDetectDoesNotCacheFailures(t *testing.T) {
	lister := &countingLister{Memory: calendar.NewMemory()}
	lister.ListErr = errors.New("boom")
	r := NewResolver(lister, NewFlightKeywordStrategy(nil, nil), "US", discard())
	day := tz.Date{Year: 2025, Month: time.September, Day: 10}
	if got := r.Detect(context.Background(), day); got != "US" {
		t.Fatalf("expected fallback on failure, got %q", got)
	}
	r.Detect(context.Background(), day)
	if lister.calls != 2 {
		t.Fatalf("expected failure to be retried, got %d calls", lister.calls)
	}
}

func TestShortKeywordsMatchWholeWords(t *testing.T) {
	s := NewFlightKeywordStrategy(nil, nil)
	events := []calendar.Event{{Summary: "Flight: status update", Start: at(1, 0)}}
	if tag, ok := s.Infer(events, at(2, 0)); ok {
		t.Fatalf("\"status\" must not match \"us\", got %q", tag)
	}
	events = []calendar.Event{{Summary: "Flight to the US", Start: at(1, 0)}}
	if tag, ok := s.Infer(events, at(2, 0)); !ok || tag != "US" {
		t.Fatalf("expected US, got %q %v", tag, ok)
	}
}

func TestFlightKeywordInDescription(t *testing.T) {
	s := NewFlightKeywordStrategy(nil, nil)
	events := []calendar.Event{{Summary: "인천 출발", Description: "탑승 게이트 23", Start: at(1, 0)}}
	if tag, ok := s.Infer(events, at(2, 0)); !ok || tag != "KR" {
		t.Fatalf("expected KR, got %q %v", tag, ok)
	}
}

func TestInferIgnoresFutureEvents(t *testing.T) {
	s := NewFlightKeywordStrategy(nil, nil)
	events := []calendar.Event{{Summary: "Flight to Seoul", Start: at(9, 0)}}
	if _, ok := s.Infer(events, at(2, 0)); ok {
		t.Fatalf("future flight must not count")
	}
}
