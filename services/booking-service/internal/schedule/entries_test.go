package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/tz"
)

func TestDateRange(t *testing.T) {
	got, err := DateRange("2025-02-27", "2025-03-02")
	if err != nil {
		t.Fatalf("DateRange: %v", err)
	}
	want := []string{"2025-02-27", "2025-02-28", "2025-03-01", "2025-03-02"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if single, _ := DateRange("2025-03-01", ""); len(single) != 1 {
		t.Fatalf("empty end should mean a single day, got %v", single)
	}
	if _, err := DateRange("2025-03-02", "2025-03-01"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate for reversed range, got %v", err)
	}
	if _, err := DateRange("2025-01-01", "2026-06-01"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate for oversized range, got %v", err)
	}
}

func TestMemoryLocationsMergeAndClear(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryLocations()
	_ = store.Upsert(ctx, []model.LocationScheduleEntry{{Date: "2025-09-01", Morning: "Home"}})
	_ = store.Upsert(ctx, []model.LocationScheduleEntry{{Date: "2025-09-01", Afternoon: "Office"}})

	e, ok, _ := store.Get(ctx, "2025-09-01")
	if !ok || e.Morning != "Home" || e.Afternoon != "Office" {
		t.Fatalf("expected merged entry, got %+v", e)
	}

	_ = store.Clear(ctx, []string{"2025-09-01"}, model.TimeOfDayMorning)
	e, ok, _ = store.Get(ctx, "2025-09-01")
	if !ok || e.Morning != "" || e.Afternoon != "Office" {
		t.Fatalf("expected only afternoon left, got %+v", e)
	}

	_ = store.Clear(ctx, []string{"2025-09-01"}, model.TimeOfDayAfternoon)
	if _, ok, _ := store.Get(ctx, "2025-09-01"); ok {
		t.Fatalf("entry with no labels should be removed")
	}
}

func TestMemoryLocationsReplaceAll(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryLocations()
	_ = store.Upsert(ctx, []model.LocationScheduleEntry{{Date: "2025-09-01", Morning: "Home"}})
	_ = store.ReplaceAll(ctx, []model.LocationScheduleEntry{
		{Date: "2025-10-02", Afternoon: "Office"},
		{Date: "2025-10-01", Timezone: "UTC"},
	})
	list, _ := store.List(ctx)
	if len(list) != 2 || list[0].Date != "2025-10-01" {
		t.Fatalf("expected 2 sorted entries, got %+v", list)
	}
}

func TestNormalizeWeekly(t *testing.T) {
	got, err := NormalizeWeekly(model.WeeklyAvailability{
		Timezone: "Asia/Seoul",
		Days: map[string]model.DayAvailability{
			"Mon": {Enabled: true, Start: "9:00 AM", End: "5:30 PM"},
		},
	})
	if err != nil {
		t.Fatalf("NormalizeWeekly: %v", err)
	}
	day, ok := got.Day(time.Monday)
	if !ok || day.Start != "09:00" || day.End != "17:30" {
		t.Fatalf("unexpected monday %+v", day)
	}

	if _, err := NormalizeWeekly(model.WeeklyAvailability{Days: map[string]model.DayAvailability{
		"friday": {Enabled: true, Start: "18:00", End: "09:00"},
	}}); err == nil {
		t.Fatalf("expected error for reversed hours")
	}
	if _, err := NormalizeWeekly(model.WeeklyAvailability{Timezone: "Bad/Zone"}); !errors.Is(err, tz.ErrInvalidTimezone) {
		t.Fatalf("expected ErrInvalidTimezone, got %v", err)
	}
}
