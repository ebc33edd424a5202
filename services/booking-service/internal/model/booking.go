package model

import (
	"fmt"
	"strings"
	"time"
)

type MeetingType string

const (
	MeetingVideo    MeetingType = "video"
	MeetingInPerson MeetingType = "in-person"
)

func ParseMeetingType(s string) (MeetingType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "video", "online":
		return MeetingVideo, nil
	case "in-person", "in_person", "inperson", "offline":
		return MeetingInPerson, nil
	}
	return "", fmt.Errorf("meeting_type must be video or in-person (got %q)", s)
}

// Booking is what a visitor asks for. Its durable form is the calendar event.
type Booking struct {
	SlotStart        time.Time
	SlotEnd          time.Time
	VisitorName      string
	VisitorEmail     string
	VisitorTimezone  string
	AdditionalEmails []string
	Purpose          string
	MeetingType      MeetingType
}

// BookingResult is returned after the calendar event was created.
type BookingResult struct {
	EventID      string `json:"eventId"`
	CalendarLink string `json:"calendarLink"`
	MeetLink     string `json:"meetLink,omitempty"`
	Location     string `json:"location,omitempty"`
	HostTimezone string `json:"hostTimezone"`
}
