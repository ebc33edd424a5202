package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/md-rashed-zaman/meetslot/libs/httpx"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/schedule"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/tz"
)

const BreakEventSummary = "Break Time"

type DayResolver interface {
	Day(ctx context.Context, d tz.Date) (model.Window, error)
}

type EventInserter interface {
	InsertEvent(ctx context.Context, ev calendar.NewEvent) (calendar.CreatedEvent, error)
}

type BreakRules interface {
	Add(rule model.RecurringBreak) (model.RecurringBreak, error)
	Delete(id string) bool
	List() []model.RecurringBreak
}

type LocationAdminStore interface {
	Get(ctx context.Context, date string) (model.LocationScheduleEntry, bool, error)
	List(ctx context.Context) ([]model.LocationScheduleEntry, error)
	Upsert(ctx context.Context, entries []model.LocationScheduleEntry) error
	Clear(ctx context.Context, dates []string, part model.TimeOfDay) error
	ReplaceAll(ctx context.Context, entries []model.LocationScheduleEntry) error
}

type WeeklyAdminStore interface {
	Get(ctx context.Context) (model.WeeklyAvailability, error)
	Save(ctx context.Context, w model.WeeklyAvailability) error
}

type AdminHandler struct {
	days      DayResolver
	cal       EventInserter
	breaks    BreakRules
	locations LocationAdminStore
	weekly    WeeklyAdminStore
	defaultTZ string
	logger    *slog.Logger
}

func NewAdminHandler(days DayResolver, cal EventInserter, breaks BreakRules, locations LocationAdminStore, weekly WeeklyAdminStore, defaultTZ string, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		days:      days,
		cal:       cal,
		breaks:    breaks,
		locations: locations,
		weekly:    weekly,
		defaultTZ: defaultTZ,
		logger:    logger,
	}
}

func (h *AdminHandler) Register(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	if wrap == nil {
		wrap = func(next http.Handler) http.Handler { return next }
	}
	mux.Handle("/api/v1/admin/breaks", wrap(http.HandlerFunc(h.CreateBreak)))
	mux.Handle("/api/v1/admin/breaks/recurring", wrap(http.HandlerFunc(h.RecurringBreaks)))
	mux.Handle("/api/v1/admin/locations", wrap(http.HandlerFunc(h.Locations)))
	mux.Handle("/api/v1/admin/locations/export", wrap(http.HandlerFunc(h.ExportLocations)))
	mux.Handle("/api/v1/admin/locations/import", wrap(http.HandlerFunc(h.ImportLocations)))
	mux.Handle("/api/v1/admin/availability", wrap(http.HandlerFunc(h.Availability)))
}

type breakRequest struct {
	Recurring bool     `json:"recurring"`
	Date      string   `json:"date,omitempty"`
	Weekdays  []string `json:"weekdays,omitempty"`
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
	Timezone  string   `json:"timezone,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

type breakResponse struct {
	ID        string     `json:"id"`
	Recurring bool       `json:"recurring"`
	Start     *time.Time `json:"start,omitempty"`
	End       *time.Time `json:"end,omitempty"`
	Timezone  string     `json:"timezone"`
}

// CreateBreak handles POST /api/v1/admin/breaks. A one-off break becomes a
// calendar event; a recurring one is kept as an in-memory rule.
func (h *AdminHandler) CreateBreak(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req breakRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if req.Recurring {
		h.createRecurringBreak(w, req)
		return
	}

	ctx := r.Context()
	date, err := tz.ParseDate(req.Date)
	if err != nil {
		badRequest(w, "date is required (YYYY-MM-DD)")
		return
	}
	startClock, err := tz.ParseClock(req.StartTime)
	if err != nil {
		badRequest(w, "start_time: "+err.Error())
		return
	}
	endClock, err := tz.ParseClock(req.EndTime)
	if err != nil {
		badRequest(w, "end_time: "+err.Error())
		return
	}
	if !startClock.Before(endClock) {
		badRequest(w, "end_time must be after start_time")
		return
	}

	hostTZ := strings.TrimSpace(req.Timezone)
	if hostTZ == "" {
		day, err := h.days.Day(ctx, date)
		if err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		hostTZ = day.HostTimezone
	}
	loc, err := tz.Load(hostTZ)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	start, end := date.In(startClock, loc), date.In(endClock, loc)
	created, err := h.cal.InsertEvent(ctx, calendar.NewEvent{
		Summary:     BreakEventSummary,
		Description: strings.TrimSpace(req.Reason),
		Start:       start,
		End:         end,
		TimeZone:    hostTZ,
	})
	if err != nil {
		if !errors.Is(err, calendar.ErrWriteFailed) {
			err = fmt.Errorf("%w: %v", calendar.ErrWriteFailed, err)
		}
		writeDomainError(w, h.logger, err)
		return
	}
	h.logger.Info("break created", "event_id", created.ID, "start", start, "end", end, "timezone", hostTZ)
	httpx.WriteJSON(w, http.StatusCreated, breakResponse{ID: created.ID, Start: &start, End: &end, Timezone: hostTZ})
}

func (h *AdminHandler) createRecurringBreak(w http.ResponseWriter, req breakRequest) {
	if len(req.Weekdays) == 0 {
		badRequest(w, "weekdays is required for a recurring break")
		return
	}
	rule := model.RecurringBreak{
		Start:    req.StartTime,
		End:      req.EndTime,
		Timezone: firstNonEmpty(strings.TrimSpace(req.Timezone), h.defaultTZ),
		Reason:   strings.TrimSpace(req.Reason),
	}
	for _, raw := range req.Weekdays {
		wd, err := model.ParseWeekday(raw)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		rule.Weekdays = append(rule.Weekdays, wd)
	}
	saved, err := h.breaks.Add(rule)
	if err != nil {
		writeValidationError(w, h.logger, err)
		return
	}
	h.logger.Info("recurring break added", "id", saved.ID, "weekdays", saved.WeekdayKeys(), "timezone", saved.Timezone)
	httpx.WriteJSON(w, http.StatusCreated, breakResponse{ID: saved.ID, Recurring: true, Timezone: saved.Timezone})
}

type recurringBreakView struct {
	model.RecurringBreak
	Weekdays []string `json:"weekdays"`
}

// RecurringBreaks handles GET and DELETE ?id= on /api/v1/admin/breaks/recurring.
func (h *AdminHandler) RecurringBreaks(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet, http.MethodDelete) {
		return
	}
	if r.Method == http.MethodDelete {
		id := strings.TrimSpace(r.URL.Query().Get("id"))
		if id == "" {
			badRequest(w, "id is required")
			return
		}
		if !h.breaks.Delete(id) {
			httpx.WriteError(w, http.StatusNotFound, KindNotFound, "recurring break not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	rules := h.breaks.List()
	out := make([]recurringBreakView, 0, len(rules))
	for _, rule := range rules {
		out = append(out, recurringBreakView{RecurringBreak: rule, Weekdays: rule.WeekdayKeys()})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"breaks": out})
}

type locationRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
	Morning   string `json:"morning,omitempty"`
	Afternoon string `json:"afternoon,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
}

// Locations handles POST (upsert a range), GET (all or ?date=) and DELETE
// (?start_date&end_date&time_of_day=) on /api/v1/admin/locations.
func (h *AdminHandler) Locations(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet, http.MethodPost, http.MethodDelete) {
		return
	}
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		if date := strings.TrimSpace(r.URL.Query().Get("date")); date != "" {
			if _, err := tz.ParseDate(date); err != nil {
				badRequest(w, err.Error())
				return
			}
			entry, ok, err := h.locations.Get(ctx, date)
			if err != nil {
				writeDomainError(w, h.logger, err)
				return
			}
			if !ok {
				httpx.WriteError(w, http.StatusNotFound, KindNotFound, "no location entry for "+date)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, entry)
			return
		}
		entries, err := h.locations.List(ctx)
		if err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		if entries == nil {
			entries = []model.LocationScheduleEntry{}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})

	case http.MethodPost:
		var req locationRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			badRequest(w, err.Error())
			return
		}
		req.Morning = strings.TrimSpace(req.Morning)
		req.Afternoon = strings.TrimSpace(req.Afternoon)
		req.Timezone = strings.TrimSpace(req.Timezone)
		if req.Morning == "" && req.Afternoon == "" && req.Timezone == "" {
			badRequest(w, "one of morning, afternoon or timezone is required")
			return
		}
		dates, err := schedule.DateRange(req.StartDate, req.EndDate)
		if err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		entries := make([]model.LocationScheduleEntry, 0, len(dates))
		for _, d := range dates {
			e := model.LocationScheduleEntry{Date: d, Morning: req.Morning, Afternoon: req.Afternoon, Timezone: req.Timezone}
			if err := schedule.ValidateEntry(e); err != nil {
				writeDomainError(w, h.logger, err)
				return
			}
			entries = append(entries, e)
		}
		if err := h.locations.Upsert(ctx, entries); err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		h.logger.Info("location schedule updated", "from", dates[0], "to", dates[len(dates)-1], "days", len(dates))
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"updated": len(dates)})

	case http.MethodDelete:
		q := r.URL.Query()
		part, err := model.ParseTimeOfDay(q.Get("time_of_day"))
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		dates, err := schedule.DateRange(firstNonEmpty(q.Get("start_date"), q.Get("date")), q.Get("end_date"))
		if err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		if err := h.locations.Clear(ctx, dates, part); err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		h.logger.Info("location schedule cleared", "from", dates[0], "to", dates[len(dates)-1], "time_of_day", part)
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"cleared": len(dates)})
	}
}

type exportedEntry struct {
	Morning   string `json:"morning,omitempty"`
	Afternoon string `json:"afternoon,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
}

// ExportLocations handles GET /api/v1/admin/locations/export.
func (h *AdminHandler) ExportLocations(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	entries, err := h.locations.List(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	out := make(map[string]exportedEntry, len(entries))
	for _, e := range entries {
		out[e.Date] = exportedEntry{Morning: e.Morning, Afternoon: e.Afternoon, Timezone: e.Timezone}
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// ImportLocations handles POST /api/v1/admin/locations/import and replaces
// every stored entry with the posted map.
func (h *AdminHandler) ImportLocations(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var in map[string]exportedEntry
	if err := httpx.DecodeJSON(r, &in); err != nil {
		badRequest(w, err.Error())
		return
	}
	now := time.Now().UTC()
	entries := make([]model.LocationScheduleEntry, 0, len(in))
	for date, v := range in {
		e := model.LocationScheduleEntry{
			Date:      strings.TrimSpace(date),
			Morning:   strings.TrimSpace(v.Morning),
			Afternoon: strings.TrimSpace(v.Afternoon),
			Timezone:  strings.TrimSpace(v.Timezone),
			UpdatedAt: now,
		}
		if err := schedule.ValidateEntry(e); err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		if e.Empty() {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date < entries[j].Date })
	if err := h.locations.ReplaceAll(r.Context(), entries); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	h.logger.Info("location schedule imported", "entries", len(entries))
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"imported": len(entries)})
}

// Availability handles GET and PUT on /api/v1/admin/availability.
func (h *AdminHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet, http.MethodPut) {
		return
	}
	ctx := r.Context()
	if r.Method == http.MethodGet {
		weekly, err := h.weekly.Get(ctx)
		if err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		if weekly.Days == nil {
			weekly.Days = map[string]model.DayAvailability{}
		}
		httpx.WriteJSON(w, http.StatusOK, weekly)
		return
	}

	var in model.WeeklyAvailability
	if err := httpx.DecodeJSON(r, &in); err != nil {
		badRequest(w, err.Error())
		return
	}
	weekly, err := schedule.NormalizeWeekly(in)
	if err != nil {
		writeValidationError(w, h.logger, err)
		return
	}
	if err := h.weekly.Save(ctx, weekly); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	h.logger.Info("weekly availability saved", "days", len(weekly.Days), "timezone", weekly.Timezone)
	httpx.WriteJSON(w, http.StatusOK, weekly)
}
