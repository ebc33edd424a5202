package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

func newTestGoogle(t *testing.T, h http.HandlerFunc) *Google {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	svc, err := gcal.NewService(context.Background(), option.WithHTTPClient(srv.Client()), option.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	g, err := newGoogle(svc, GoogleConfig{Timezone: "Asia/Seoul", Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("new google: %v", err)
	}
	return g
}

func TestGoogle_ListEvents(t *testing.T) {
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/calendars/primary/events") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("singleEvents") != "true" {
			t.Errorf("expected singleEvents=true")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{"id": "a", "summary": "Standup", "start": map[string]string{"dateTime": "2025-08-23T10:00:00+09:00"}, "end": map[string]string{"dateTime": "2025-08-23T11:00:00+09:00"}},
				{"id": "b", "summary": "Holiday", "start": map[string]string{"date": "2025-08-24"}, "end": map[string]string{"date": "2025-08-25"}},
				{"id": "c", "status": "cancelled", "start": map[string]string{"dateTime": "2025-08-23T12:00:00+09:00"}, "end": map[string]string{"dateTime": "2025-08-23T13:00:00+09:00"}},
			},
		})
	})

	events, err := g.ListEvents(context.Background(), time.Date(2025, 8, 22, 0, 0, 0, 0, time.UTC), time.Date(2025, 8, 26, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected cancelled event to be dropped, got %d events", len(events))
	}
	if !events[0].Start.Equal(time.Date(2025, 8, 23, 1, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %s", events[0].Start)
	}
	if !events[1].AllDay || !events[1].Start.Equal(time.Date(2025, 8, 23, 15, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected all-day event anchored at KST midnight, got %+v", events[1])
	}
}

func TestGoogle_ListEventsFailureIsUnavailable(t *testing.T) {
	g := newTestGoogle(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":500,"message":"backend"}}`, http.StatusInternalServerError)
	})
	_, err := g.ListEvents(context.Background(), time.Now(), time.Now().Add(time.Hour))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestGoogle_InsertEvent(t *testing.T) {
	var got gcal.Event
	var query string
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		query = r.URL.RawQuery
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "evt1", "htmlLink": "https://calendar/evt1", "hangoutLink": "https://meet/abc"})
	})

	start := time.Date(2025, 8, 23, 1, 0, 0, 0, time.UTC)
	created, err := g.InsertEvent(context.Background(), NewEvent{
		Summary:             "Meeting with Ada",
		Start:               start,
		End:                 start.Add(30 * time.Minute),
		TimeZone:            "Asia/Seoul",
		Attendees:           []string{"ada@example.com", "bob@example.com"},
		ConferenceRequestID: "req-1",
		Reminders:           []Reminder{{Method: "email", Minutes: 1440}, {Method: "popup", Minutes: 30}},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if created.ID != "evt1" || created.HangoutLink != "https://meet/abc" {
		t.Fatalf("unexpected created event %+v", created)
	}
	if !strings.Contains(query, "conferenceDataVersion=1") || !strings.Contains(query, "sendUpdates=all") {
		t.Fatalf("expected conference and sendUpdates params, got %s", query)
	}
	if len(got.Attendees) != 2 || got.ConferenceData == nil || got.ConferenceData.CreateRequest.ConferenceSolutionKey.Type != "hangoutsMeet" {
		t.Fatalf("unexpected request body %+v", got)
	}
	if got.Reminders == nil || len(got.Reminders.Overrides) != 2 {
		t.Fatalf("expected reminder overrides, got %+v", got.Reminders)
	}
}

func TestGoogle_InsertFailureIsWriteFailed(t *testing.T) {
	g := newTestGoogle(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"forbidden"}}`, http.StatusForbidden)
	})
	_, err := g.InsertEvent(context.Background(), NewEvent{Start: time.Now(), End: time.Now().Add(time.Hour)})
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
}

func TestMemory_ListAndInsert(t *testing.T) {
	start := time.Date(2025, 8, 23, 1, 0, 0, 0, time.UTC)
	m := NewMemory(Event{Summary: "Existing", Start: start, End: start.Add(time.Hour)})
	if _, err := m.InsertEvent(context.Background(), NewEvent{Summary: "New", Start: start.Add(2 * time.Hour), End: start.Add(3 * time.Hour)}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	events, err := m.ListEvents(context.Background(), start.Add(30*time.Minute), start.Add(2*time.Hour+time.Minute))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected both overlapping events, got %d", len(events))
	}

	m.ListErr = errors.New("boom")
	if _, err := m.ListEvents(context.Background(), start, start.Add(time.Hour)); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
