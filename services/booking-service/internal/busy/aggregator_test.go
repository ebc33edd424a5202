package busy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

type staticSource struct {
	name string
	busy []model.BusyInterval
	err  error
}

func (s staticSource) Name() string { return s.name }

func (s staticSource) Busy(context.Context, time.Time, time.Time) ([]model.BusyInterval, error) {
	return s.busy, s.err
}

func TestListBusyMergesOverlappingAndAdjacent(t *testing.T) {
	cal := calendar.NewMemory()
	cal.Add(calendar.Event{ID: "a", Summary: "Standup", Start: mustTime(t, "2025-08-22T01:00:00Z"), End: mustTime(t, "2025-08-22T02:00:00Z")})
	cal.Add(calendar.Event{ID: "b", Summary: "Review", Start: mustTime(t, "2025-08-22T01:30:00Z"), End: mustTime(t, "2025-08-22T02:30:00Z")})
	cal.Add(calendar.Event{ID: "c", Summary: "Sync", Start: mustTime(t, "2025-08-22T02:30:00Z"), End: mustTime(t, "2025-08-22T03:00:00Z")})
	cal.Add(calendar.Event{ID: "d", Summary: "Lunch", Start: mustTime(t, "2025-08-22T04:00:00Z"), End: mustTime(t, "2025-08-22T05:00:00Z")})

	agg := NewAggregator(cal, nil, testLogger())
	got, err := agg.ListBusy(context.Background(), mustTime(t, "2025-08-22T00:00:00Z"), mustTime(t, "2025-08-23T00:00:00Z"))
	if err != nil {
		t.Fatalf("ListBusy: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 merged intervals, got %d: %+v", len(got), got)
	}
	if !got[0].Start.Equal(mustTime(t, "2025-08-22T01:00:00Z")) || !got[0].End.Equal(mustTime(t, "2025-08-22T03:00:00Z")) {
		t.Fatalf("unexpected first interval: %+v", got[0])
	}
	if got[0].Label != "Standup + Review + Sync" {
		t.Fatalf("unexpected merged label %q", got[0].Label)
	}
	if got[1].Label != "Lunch" {
		t.Fatalf("unexpected second label %q", got[1].Label)
	}
}

func TestListBusyFailsClosed(t *testing.T) {
	cal := calendar.NewMemory()
	cal.ListErr = errors.New("connection refused")

	agg := NewAggregator(cal, nil, testLogger())
	got, err := agg.ListBusy(context.Background(), mustTime(t, "2025-08-22T00:00:00Z"), mustTime(t, "2025-08-23T00:00:00Z"))
	if !errors.Is(err, calendar.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected no intervals on failure, got %+v", got)
	}
}

func TestListBusyIncludesSourcesAndBreaks(t *testing.T) {
	breaks := NewBreakStore()
	if _, err := breaks.Add(model.RecurringBreak{
		Weekdays: []time.Weekday{time.Friday},
		Start:    "12:00",
		End:      "13:00",
		Timezone: "Asia/Seoul",
		Reason:   "lunch",
	}); err != nil {
		t.Fatalf("add break: %v", err)
	}
	feed := staticSource{name: "ics", busy: []model.BusyInterval{{
		Start: mustTime(t, "2025-08-22T06:00:00Z"),
		End:   mustTime(t, "2025-08-22T07:00:00Z"),
		Label: "Gym",
	}}}

	agg := NewAggregator(calendar.NewMemory(), breaks, testLogger(), feed)
	got, err := agg.ListBusy(context.Background(), mustTime(t, "2025-08-21T15:00:00Z"), mustTime(t, "2025-08-22T15:00:00Z"))
	if err != nil {
		t.Fatalf("ListBusy: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected break + feed interval, got %+v", got)
	}
	// 12:00 KST on Friday 2025-08-22 is 03:00Z.
	if !got[0].Start.Equal(mustTime(t, "2025-08-22T03:00:00Z")) || got[0].Label != "Break: lunch" {
		t.Fatalf("unexpected break interval: %+v", got[0])
	}
	if got[1].Label != "Gym" {
		t.Fatalf("unexpected feed interval: %+v", got[1])
	}
}

func TestListBusySourceFailure(t *testing.T) {
	feed := staticSource{name: "ics", err: errors.New("timeout")}
	agg := NewAggregator(calendar.NewMemory(), nil, testLogger(), feed)
	_, err := agg.ListBusy(context.Background(), mustTime(t, "2025-08-22T00:00:00Z"), mustTime(t, "2025-08-23T00:00:00Z"))
	if !errors.Is(err, calendar.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestCoalesceEmpty(t *testing.T) {
	if got := Coalesce(nil); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestExpandBreakKeepsWallClockAcrossDST(t *testing.T) {
	rule := model.RecurringBreak{
		Weekdays: []time.Weekday{time.Monday},
		Start:    "09:00",
		End:      "10:00",
		Timezone: "America/Los_Angeles",
	}
	// 2025-03-09 is the spring-forward Sunday in Los Angeles.
	got, err := ExpandBreak(rule, mustTime(t, "2025-03-01T00:00:00Z"), mustTime(t, "2025-03-15T00:00:00Z"))
	if err != nil {
		t.Fatalf("ExpandBreak: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 occurrences, got %+v", got)
	}
	if !got[0].Start.Equal(mustTime(t, "2025-03-03T17:00:00Z")) {
		t.Fatalf("PST occurrence at %s", got[0].Start)
	}
	if !got[1].Start.Equal(mustTime(t, "2025-03-10T16:00:00Z")) {
		t.Fatalf("PDT occurrence at %s", got[1].Start)
	}
	if got[1].End.Sub(got[1].Start) != time.Hour {
		t.Fatalf("unexpected duration %s", got[1].End.Sub(got[1].Start))
	}
}

func TestExpandBreakIncludesOccurrenceStraddlingRangeStart(t *testing.T) {
	rule := model.RecurringBreak{
		Weekdays: []time.Weekday{time.Wednesday},
		Start:    "23:00",
		End:      "23:59",
		Timezone: "UTC",
	}
	got, err := ExpandBreak(rule, mustTime(t, "2025-08-20T23:30:00Z"), mustTime(t, "2025-08-21T12:00:00Z"))
	if err != nil {
		t.Fatalf("ExpandBreak: %v", err)
	}
	if len(got) != 1 || !got[0].Start.Equal(mustTime(t, "2025-08-20T23:00:00Z")) {
		t.Fatalf("expected straddling occurrence, got %+v", got)
	}
}

func TestBreakStoreValidation(t *testing.T) {
	store := NewBreakStore()
	cases := []model.RecurringBreak{
		{Start: "12:00", End: "13:00", Timezone: "UTC"},
		{Weekdays: []time.Weekday{time.Monday}, Start: "13:00", End: "12:00", Timezone: "UTC"},
		{Weekdays: []time.Weekday{time.Monday}, Start: "12:00", End: "13:00", Timezone: "Mars/Base"},
		{Weekdays: []time.Weekday{time.Monday}, Start: "noon", End: "13:00", Timezone: "UTC"},
	}
	for i, c := range cases {
		if _, err := store.Add(c); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
	if len(store.List()) != 0 {
		t.Fatalf("invalid rules must not be stored")
	}
}

func TestBreakStoreDelete(t *testing.T) {
	store := NewBreakStore()
	rule, err := store.Add(model.RecurringBreak{Weekdays: []time.Weekday{time.Monday}, Start: "2:00 PM", End: "3:00 PM", Timezone: "UTC"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if rule.ID == "" || rule.Start != "14:00" {
		t.Fatalf("unexpected stored rule: %+v", rule)
	}
	if !store.Delete(rule.ID) {
		t.Fatalf("expected delete to succeed")
	}
	if store.Delete(rule.ID) {
		t.Fatalf("second delete must report missing")
	}
}
