package confirmation

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func sample() MeetingBooked {
	return MeetingBooked{
		EventID:          "ev-1",
		VisitorName:      "Ada",
		VisitorEmail:     "ada@example.com",
		AdditionalEmails: []string{"bob@example.com", "ADA@example.com", " "},
		VisitorTimezone:  "Europe/London",
		HostTimezone:     "Asia/Seoul",
		// 14:00-14:30 KST
		Start:        time.Date(2030, 3, 13, 5, 0, 0, 0, time.UTC),
		End:          time.Date(2030, 3, 13, 5, 30, 0, 0, time.UTC),
		Purpose:      "Intro",
		MeetingType:  "video",
		CalendarLink: "https://calendar.example/ev-1",
		MeetLink:     "https://meet.example/abc",
	}
}

func TestRender_VideoInVisitorTimezone(t *testing.T) {
	out, err := Render(sample())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{
		"Hi Ada,",
		"When: Wednesday, March 13, 2030 5:00 AM - 5:30 AM (Europe/London, UTC+00:00)",
		"Host time: Wednesday, March 13, 2030 2:00 PM - 2:30 PM (Asia/Seoul, UTC+09:00)",
		"Join: https://meet.example/abc",
		"Purpose: Intro",
		"Also invited: bob@example.com\n",
		"Calendar event: https://calendar.example/ev-1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Map:") {
		t.Fatalf("video meeting should not carry a map link:\n%s", out)
	}
}

func TestRender_InPersonWithMap(t *testing.T) {
	ev := sample()
	ev.MeetingType = "in-person"
	ev.MeetLink = ""
	ev.Location = "Seongsu cafe"
	ev.VisitorTimezone = "Asia/Seoul"
	out, err := Render(ev)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, "Location: Seongsu cafe") || !strings.Contains(out, "query=Seongsu+cafe") {
		t.Fatalf("expected location and maps link:\n%s", out)
	}
	if strings.Contains(out, "Host time:") {
		t.Fatalf("same timezone should not repeat host time:\n%s", out)
	}
}

func TestRender_UnknownVisitorTimezoneFallsBackToHost(t *testing.T) {
	ev := sample()
	ev.VisitorTimezone = "Nowhere/City"
	out, err := Render(ev)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, "2:00 PM - 2:30 PM (Asia/Seoul, UTC+09:00)") {
		t.Fatalf("expected host timezone fallback:\n%s", out)
	}
}

func TestDecode(t *testing.T) {
	if _, err := Decode([]byte(`{"visitor_email":"a@example.com","start":"2030-03-13T05:00:00Z","end":"2030-03-13T05:30:00Z"}`)); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
	for _, raw := range []string{
		`not json`,
		`{"start":"2030-03-13T05:00:00Z","end":"2030-03-13T05:30:00Z"}`,
		`{"visitor_email":"a@example.com","start":"2030-03-13T05:30:00Z","end":"2030-03-13T05:00:00Z"}`,
	} {
		if _, err := Decode([]byte(raw)); !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("expected ErrInvalidPayload for %s, got %v", raw, err)
		}
	}
}
