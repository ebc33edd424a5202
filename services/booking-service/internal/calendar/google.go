package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	otelx "github.com/md-rashed-zaman/meetslot/libs/otel"
)

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	CalendarID   string
	// Timezone interprets all-day events, which carry dates only.
	Timezone string
	Timeout  time.Duration
}

// Google talks to Google Calendar v3 with an offline refresh token.
type Google struct {
	svc        *gcal.Service
	calendarID string
	loc        *time.Location
	timeout    time.Duration
	tracer     trace.Tracer
}

func NewGoogle(ctx context.Context, cfg GoogleConfig) (*Google, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, fmt.Errorf("google calendar: client id, client secret and refresh token are required")
	}
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gcal.CalendarEventsScope},
	}
	tokens := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	svc, err := gcal.NewService(ctx, option.WithTokenSource(tokens))
	if err != nil {
		return nil, fmt.Errorf("google calendar: %w", err)
	}
	return newGoogle(svc, cfg)
}

func newGoogle(svc *gcal.Service, cfg GoogleConfig) (*Google, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("google calendar timezone: %w", err)
		}
		loc = l
	}
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Google{
		svc:        svc,
		calendarID: cfg.CalendarID,
		loc:        loc,
		timeout:    cfg.Timeout,
		tracer:     otel.Tracer("calendar.google"),
	}, nil
}

func (g *Google) ListEvents(ctx context.Context, start, end time.Time) (out []Event, err error) {
	ctx, span := g.tracer.Start(ctx, "calendar.events.list", trace.WithAttributes(
		attribute.String("calendar.id", g.calendarID),
		attribute.String("range.start", start.UTC().Format(time.RFC3339)),
		attribute.String("range.end", end.UTC().Format(time.RFC3339)),
	))
	defer func() { otelx.EndSpan(span, err) }()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	call := g.svc.Events.List(g.calendarID).
		TimeMin(start.UTC().Format(time.RFC3339)).
		TimeMax(end.UTC().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250)

	err = call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			if ev, ok := g.toEvent(item); ok {
				out = append(out, ev)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	span.SetAttributes(attribute.Int("events.count", len(out)))
	return out, nil
}

func (g *Google) InsertEvent(ctx context.Context, ev NewEvent) (created CreatedEvent, err error) {
	ctx, span := g.tracer.Start(ctx, "calendar.events.insert", trace.WithAttributes(
		attribute.String("calendar.id", g.calendarID),
		attribute.Bool("conference", ev.ConferenceRequestID != ""),
	))
	defer func() { otelx.EndSpan(span, err) }()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	call := g.svc.Events.Insert(g.calendarID, toGoogleEvent(ev)).SendUpdates("all")
	if ev.ConferenceRequestID != "" {
		call = call.ConferenceDataVersion(1)
	}
	item, err := call.Context(ctx).Do()
	if err != nil {
		return CreatedEvent{}, fmt.Errorf("%w: %v", ErrWriteFailed, describe(err))
	}
	return CreatedEvent{ID: item.Id, HTMLLink: item.HtmlLink, HangoutLink: item.HangoutLink}, nil
}

// Ping performs a cheap read so /readyz notices revoked credentials.
func (g *Google) Ping(ctx context.Context) error {
	_, err := g.svc.CalendarList.Get(g.calendarID).Fields("id").Context(ctx).Do()
	return err
}

func (g *Google) toEvent(item *gcal.Event) (Event, bool) {
	if item == nil || item.Status == "cancelled" {
		return Event{}, false
	}
	start, end, allDay, ok := eventTimes(item, g.loc)
	if !ok {
		return Event{}, false
	}
	return Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Start:       start,
		End:         end,
		AllDay:      allDay,
	}, true
}

// eventTimes reads either the timed or the all-day representation.
func eventTimes(e *gcal.Event, loc *time.Location) (time.Time, time.Time, bool, bool) {
	if e.Start == nil || e.End == nil {
		return time.Time{}, time.Time{}, false, false
	}
	if e.Start.DateTime != "" && e.End.DateTime != "" {
		start, err := time.Parse(time.RFC3339, e.Start.DateTime)
		if err != nil {
			return time.Time{}, time.Time{}, false, false
		}
		end, err := time.Parse(time.RFC3339, e.End.DateTime)
		if err != nil {
			return time.Time{}, time.Time{}, false, false
		}
		return start, end, false, end.After(start)
	}
	if e.Start.Date != "" && e.End.Date != "" {
		start, err := time.ParseInLocation("2006-01-02", e.Start.Date, loc)
		if err != nil {
			return time.Time{}, time.Time{}, false, false
		}
		end, err := time.ParseInLocation("2006-01-02", e.End.Date, loc)
		if err != nil {
			return time.Time{}, time.Time{}, false, false
		}
		return start, end, true, end.After(start)
	}
	return time.Time{}, time.Time{}, false, false
}

func toGoogleEvent(ev NewEvent) *gcal.Event {
	out := &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       &gcal.EventDateTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: ev.TimeZone},
		End:         &gcal.EventDateTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: ev.TimeZone},
	}
	for _, email := range ev.Attendees {
		out.Attendees = append(out.Attendees, &gcal.EventAttendee{Email: email})
	}
	if ev.ConferenceRequestID != "" {
		out.ConferenceData = &gcal.ConferenceData{
			CreateRequest: &gcal.CreateConferenceRequest{
				RequestId:             ev.ConferenceRequestID,
				ConferenceSolutionKey: &gcal.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		}
	}
	if len(ev.Reminders) > 0 {
		rem := &gcal.EventReminders{UseDefault: false, ForceSendFields: []string{"UseDefault"}}
		for _, r := range ev.Reminders {
			rem.Overrides = append(rem.Overrides, &gcal.EventReminder{Method: r.Method, Minutes: int64(r.Minutes)})
		}
		out.Reminders = rem
	}
	return out
}

func describe(err error) string {
	if gerr, ok := err.(*googleapi.Error); ok {
		if gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden {
			return fmt.Sprintf("google api %d (credentials rejected): %s", gerr.Code, gerr.Message)
		}
		return fmt.Sprintf("google api %d: %s", gerr.Code, gerr.Message)
	}
	return err.Error()
}
