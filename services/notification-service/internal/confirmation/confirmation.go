// Package confirmation renders the email sent to a visitor after a booking.
package confirmation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"text/template"
	"time"
)

const Subject = "Meeting Confirmation"

// MeetingBooked is the payload of booking.meeting.booked.v1.
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

var ErrInvalidPayload = errors.New("invalid meeting booked payload")

func Decode(raw []byte) (MeetingBooked, error) {
	var ev MeetingBooked
	if err := json.Unmarshal(raw, &ev); err != nil {
		return MeetingBooked{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	switch {
	case strings.TrimSpace(ev.VisitorEmail) == "":
		return MeetingBooked{}, fmt.Errorf("%w: visitor_email is missing", ErrInvalidPayload)
	case ev.Start.IsZero() || !ev.End.After(ev.Start):
		return MeetingBooked{}, fmt.Errorf("%w: start/end are missing or reversed", ErrInvalidPayload)
	}
	return ev, nil
}

// Recipients is the visitor followed by any additional attendees.
func (ev MeetingBooked) Recipients() []string {
	out := []string{ev.VisitorEmail}
	for _, e := range ev.AdditionalEmails {
		if e = strings.TrimSpace(e); e != "" && !strings.EqualFold(e, ev.VisitorEmail) {
			out = append(out, e)
		}
	}
	return out
}

type view struct {
	Name      string
	When      string
	Timezone  string
	HostWhen  string
	HostZone  string
	Video     bool
	MeetLink  string
	Location  string
	MapsLink  string
	Purpose   string
	Calendar  string
	ShowHost  bool
	Attendees []string
}

var body = template.Must(template.New("confirmation").Parse(`Hi {{.Name}},

Your meeting is confirmed.

When: {{.When}} ({{.Timezone}})
{{- if .ShowHost}}
Host time: {{.HostWhen}} ({{.HostZone}})
{{- end}}
{{- if .Video}}
Type: Video meeting
{{- if .MeetLink}}
Join: {{.MeetLink}}
{{- end}}
{{- else}}
Type: In-person meeting
{{- if .Location}}
Location: {{.Location}}
Map: {{.MapsLink}}
{{- end}}
{{- end}}
{{- if .Purpose}}
Purpose: {{.Purpose}}
{{- end}}
{{- if .Attendees}}
Also invited: {{range $i, $a := .Attendees}}{{if $i}}, {{end}}{{$a}}{{end}}
{{- end}}
{{- if .Calendar}}

Calendar event: {{.Calendar}}
{{- end}}
`))

// Render builds the email body. Times are shown in the visitor's timezone,
// falling back to the host's and then UTC.
func Render(ev MeetingBooked) (string, error) {
	visitorLoc, visitorZone := loadOr(ev.VisitorTimezone, ev.HostTimezone)
	hostLoc, hostZone := loadOr(ev.HostTimezone, "")

	name := strings.TrimSpace(ev.VisitorName)
	if name == "" {
		name = "there"
	}
	v := view{
		Name:     name,
		When:     span(ev.Start, ev.End, visitorLoc),
		Timezone: zoneLabel(ev.Start, visitorLoc, visitorZone),
		HostWhen: span(ev.Start, ev.End, hostLoc),
		HostZone: zoneLabel(ev.Start, hostLoc, hostZone),
		ShowHost: visitorZone != hostZone,
		Video:    !strings.EqualFold(ev.MeetingType, "in-person"),
		MeetLink: ev.MeetLink,
		Location: strings.TrimSpace(ev.Location),
		Purpose:  strings.TrimSpace(ev.Purpose),
		Calendar: ev.CalendarLink,
	}
	if v.Location != "" {
		v.MapsLink = MapsLink(v.Location)
	}
	v.Attendees = ev.Recipients()[1:]

	var buf bytes.Buffer
	if err := body.Execute(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func MapsLink(place string) string {
	return "https://www.google.com/maps/search/?api=1&query=" + url.QueryEscape(place)
}

func loadOr(ids ...string) (*time.Location, string) {
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			continue
		}
		if loc, err := time.LoadLocation(id); err == nil {
			return loc, id
		}
	}
	return time.UTC, "UTC"
}

func span(start, end time.Time, loc *time.Location) string {
	s, e := start.In(loc), end.In(loc)
	if s.YearDay() == e.YearDay() && s.Year() == e.Year() {
		return s.Format("Monday, January 2, 2006 3:04 PM") + " - " + e.Format("3:04 PM")
	}
	return s.Format("Monday, January 2, 2006 3:04 PM") + " - " + e.Format("Monday, January 2, 2006 3:04 PM")
}

func zoneLabel(t time.Time, loc *time.Location, id string) string {
	_, offset := t.In(loc).Zone()
	sign := '+'
	if offset < 0 {
		sign, offset = '-', -offset
	}
	return fmt.Sprintf("%s, UTC%c%02d:%02d", id, sign, offset/3600, (offset%3600)/60)
}
