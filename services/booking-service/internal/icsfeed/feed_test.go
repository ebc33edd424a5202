package icsfeed

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const sampleICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//meetslot//test//EN
BEGIN:VEVENT
UID:one
DTSTART:20250822T010000Z
DTEND:20250822T020000Z
SUMMARY:Team sync
END:VEVENT
BEGIN:VEVENT
UID:cancelled
DTSTART:20250822T030000Z
DTEND:20250822T040000Z
STATUS:CANCELLED
SUMMARY:Dropped
END:VEVENT
BEGIN:VEVENT
UID:free
DTSTART:20250822T050000Z
DTEND:20250822T055000Z
TRANSP:TRANSPARENT
SUMMARY:Reminder only
END:VEVENT
BEGIN:VEVENT
UID:weekly
DTSTART;TZID=Asia/Seoul:20250801T150000
DTEND;TZID=Asia/Seoul:20250801T160000
RRULE:FREQ=WEEKLY;BYDAY=FR
EXDATE;TZID=Asia/Seoul:20250815T150000
SUMMARY:Weekly review
END:VEVENT
BEGIN:VEVENT
UID:holiday
DTSTART;VALUE=DATE:20250815
DTEND;VALUE=DATE:20250816
SUMMARY:Liberation Day
END:VEVENT
END:VCALENDAR
`

func crlf(s string) string { return strings.ReplaceAll(s, "\n", "\r\n") }

func seoul(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestParseAndExpand(t *testing.T) {
	loc := seoul(t)
	events, err := Parse([]byte(crlf(sampleICS)), loc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected cancelled and free events dropped, got %d", len(events))
	}

	start := time.Date(2025, 8, 15, 0, 0, 0, 0, loc)
	busy := Expand(events, start, start.AddDate(0, 0, 8))
	got := map[string][]string{}
	for _, b := range busy {
		got[b.Label] = append(got[b.Label], b.Start.Format(time.RFC3339)+"/"+b.End.Format(time.RFC3339))
	}
	if want := "2025-08-14T15:00:00Z/2025-08-15T15:00:00Z"; len(got["Liberation Day"]) != 1 || got["Liberation Day"][0] != want {
		t.Fatalf("all-day event: expected %s, got %v", want, got["Liberation Day"])
	}
	if want := "2025-08-22T06:00:00Z/2025-08-22T07:00:00Z"; len(got["Weekly review"]) != 1 || got["Weekly review"][0] != want {
		t.Fatalf("weekly with exdate: expected only %s, got %v", want, got["Weekly review"])
	}
	if len(got["Team sync"]) != 1 {
		t.Fatalf("expected single event, got %v", got["Team sync"])
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := Parse(nil, time.UTC); err == nil {
		t.Fatalf("expected error for empty body")
	}
}

func TestRefreshKeepsLastSnapshotOnFailure(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = io.WriteString(w, crlf(sampleICS))
	}))
	defer srv.Close()

	loc := seoul(t)
	store := NewStore([]Source{{ID: "team", URL: srv.URL + "/team.ics?token=secret"}}, loc, srv.Client(), quiet())
	start := time.Date(2025, 8, 22, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)

	busy, _ := store.Busy(context.Background(), start, end)
	if len(busy) != 0 {
		t.Fatalf("nothing should be busy before the first refresh, got %+v", busy)
	}

	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	busy, _ = store.Busy(context.Background(), start, end)
	if len(busy) != 2 {
		t.Fatalf("expected 2 busy intervals on 2025-08-22, got %+v", busy)
	}

	fail.Store(true)
	if err := store.Refresh(context.Background()); err == nil {
		t.Fatalf("expected refresh error")
	}
	again, _ := store.Busy(context.Background(), start, end)
	if len(again) != len(busy) {
		t.Fatalf("failed refresh must keep the last snapshot, got %+v", again)
	}
}

func TestRedact(t *testing.T) {
	if got := redact("https://cal.example.com/private/abc.ics?token=x"); got != "https://cal.example.com/...(redacted)" {
		t.Fatalf("unexpected redaction %q", got)
	}
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	store := NewStore(nil, time.UTC, nil, quiet())
	if _, err := store.Schedule("not a cron", time.Second); err == nil {
		t.Fatalf("expected invalid spec error")
	}
}
