package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/meetslot/libs/httpx"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/schedule"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/tz"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type WindowResolver interface {
	ResolveWindow(ctx context.Context, date, visitorTimezone string) (schedule.Resolution, error)
}

type BusyLister interface {
	ListBusy(ctx context.Context, start, end time.Time) ([]model.BusyInterval, error)
}

type Booker interface {
	Book(ctx context.Context, b model.Booking) (model.BookingResult, error)
}

type Idempotency interface {
	Acquire(ctx context.Context, key string) (storage.IdempotencyLease, error)
}

type PublicConfig struct {
	DefaultDuration time.Duration
	MaxDuration     time.Duration
}

type PublicHandler struct {
	windows WindowResolver
	busy    BusyLister
	booker  Booker
	idem    Idempotency
	cfg     PublicConfig
	logger  *slog.Logger
	now     func() time.Time
}

func NewPublicHandler(windows WindowResolver, busy BusyLister, booker Booker, idem Idempotency, cfg PublicConfig, logger *slog.Logger) *PublicHandler {
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = availability.DefaultDuration
	}
	if cfg.MaxDuration < cfg.DefaultDuration {
		cfg.MaxDuration = 240 * time.Minute
	}
	return &PublicHandler{
		windows: windows,
		busy:    busy,
		booker:  booker,
		idem:    idem,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

func (h *PublicHandler) Register(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	if wrap == nil {
		wrap = func(next http.Handler) http.Handler { return next }
	}
	mux.Handle("/api/v1/public/slots", wrap(http.HandlerFunc(h.Slots)))
	mux.Handle("/api/v1/public/book", wrap(http.HandlerFunc(h.Book)))
	mux.Handle("/api/v1/public/timezone", wrap(http.HandlerFunc(h.Timezone)))
}

type windowResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type slotsResponse struct {
	Date         string          `json:"date"`
	Timezone     string          `json:"timezone"`
	HostTimezone string          `json:"hostTimezone"`
	LocationTag  string          `json:"locationTag,omitempty"`
	Duration     int             `json:"duration"`
	TimeOfDay    model.TimeOfDay `json:"timeOfDay"`
	Window       *windowResponse `json:"window"`
	Slots        []model.Slot    `json:"slots"`
}

// Slots answers GET /api/v1/public/slots?date=&timezone=&duration=&time_of_day=.
func (h *PublicHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	date := strings.TrimSpace(q.Get("date"))
	if date == "" {
		badRequest(w, "date is required (YYYY-MM-DD)")
		return
	}
	visitorTZ := strings.TrimSpace(q.Get("timezone"))
	if visitorTZ == "" {
		visitorTZ = "UTC"
	}
	duration, err := h.parseDuration(q.Get("duration"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	timeOfDay, err := model.ParseTimeOfDay(firstNonEmpty(q.Get("time_of_day"), q.Get("timeOfDay")))
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	ctx := r.Context()
	res, err := h.windows.ResolveWindow(ctx, date, visitorTZ)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	resp := slotsResponse{
		Date:         res.Date,
		Timezone:     visitorTZ,
		HostTimezone: res.HostTimezone,
		LocationTag:  res.LocationTag,
		Duration:     int(duration / time.Minute),
		TimeOfDay:    timeOfDay,
		Slots:        []model.Slot{},
	}
	if !res.Window.Empty() {
		resp.Window = &windowResponse{Start: res.Window.Start, End: res.Window.End}
	}
	if res.SearchRange.IsZero() {
		httpx.WriteJSON(w, http.StatusOK, resp)
		return
	}

	busy, err := h.busy.ListBusy(ctx, res.SearchRange.Start, res.SearchRange.End)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	slots := availability.AvailableSlots(availability.Request{
		Windows:    res.Windows,
		Busy:       busy,
		Duration:   duration,
		Now:        h.now(),
		VisitorDay: res.VisitorDay,
		TimeOfDay:  timeOfDay,
	})
	if slots != nil {
		resp.Slots = slots
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

type bookRequest struct {
	SlotStart        string   `json:"slotStart"`
	SlotEnd          string   `json:"slotEnd"`
	VisitorName      string   `json:"visitorName"`
	VisitorEmail     string   `json:"visitorEmail"`
	VisitorTimezone  string   `json:"visitorTimezone,omitempty"`
	AdditionalEmails []string `json:"additionalEmails,omitempty"`
	Purpose          string   `json:"purpose,omitempty"`
	MeetingType      string   `json:"meetingType"`
}

// Book answers POST /api/v1/public/book. With an Idempotency-Key header the
// first final response is stored and replayed for retries.
func (h *PublicHandler) Book(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req bookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	b, err := req.toBooking()
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	ctx := r.Context()
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if key == "" || h.idem == nil {
		status, body, _ := h.book(ctx, b)
		writeRaw(w, status, body)
		return
	}

	lease, err := h.idem.Acquire(ctx, key)
	if err != nil {
		h.logger.Error("failed to lock idempotency key", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, KindInternal, "failed to lock idempotency key")
		return
	}
	defer lease.Release(ctx)
	if status, body, ok := lease.Replay(); ok {
		w.Header().Set("Idempotent-Replayed", "true")
		writeRaw(w, status, body)
		return
	}

	status, body, eventID := h.book(ctx, b)
	// Server-side failures stay retryable under the same key.
	if status < http.StatusInternalServerError {
		if err := lease.Finalize(ctx, eventID, status, body); err != nil {
			h.logger.Error("failed to finalize idempotency key", "err", err)
		}
	}
	writeRaw(w, status, body)
}

func (h *PublicHandler) book(ctx context.Context, b model.Booking) (int, []byte, string) {
	res, err := h.booker.Book(ctx, b)
	if err != nil {
		status, kind := classify(err)
		msg := err.Error()
		if status >= http.StatusInternalServerError {
			h.logger.Error("booking failed", "kind", kind, "err", err)
			if kind == KindInternal {
				msg = "internal error"
			}
		}
		body, _ := json.Marshal(httpx.ErrorBody{Error: kind, Message: msg})
		return status, body, ""
	}
	body, _ := json.Marshal(res)
	return http.StatusCreated, body, res.EventID
}

type timezoneResponse struct {
	Timezone string `json:"timezone"`
	Date     string `json:"date"`
	Offset   string `json:"offset,omitempty"`
	Valid    bool   `json:"valid"`
}

// Timezone answers GET /api/v1/public/timezone?tz=&date=.
func (h *PublicHandler) Timezone(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("tz"))
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		date = tz.DateOf(h.now().UTC()).String()
	}
	resp := timezoneResponse{Timezone: id, Date: date, Valid: tz.IsValid(id)}
	if resp.Valid {
		offset, err := tz.OffsetFor(id, date)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		resp.Offset = offset
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *PublicHandler) parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return h.cfg.DefaultDuration, nil
	}
	mins, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("duration must be minutes (got %q)", raw)
	}
	d := time.Duration(mins) * time.Minute
	if d < availability.GridStep || d > h.cfg.MaxDuration || d%availability.GridStep != 0 {
		return 0, fmt.Errorf("duration must be a multiple of 30 between 30 and %d minutes", int(h.cfg.MaxDuration/time.Minute))
	}
	return d, nil
}

func (req bookRequest) toBooking() (model.Booking, error) {
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.SlotStart))
	if err != nil {
		return model.Booking{}, fmt.Errorf("slotStart must be RFC 3339")
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(req.SlotEnd))
	if err != nil {
		return model.Booking{}, fmt.Errorf("slotEnd must be RFC 3339")
	}
	mt, err := model.ParseMeetingType(req.MeetingType)
	if err != nil {
		return model.Booking{}, err
	}
	return model.Booking{
		SlotStart:        start,
		SlotEnd:          end,
		VisitorName:      req.VisitorName,
		VisitorEmail:     req.VisitorEmail,
		VisitorTimezone:  strings.TrimSpace(req.VisitorTimezone),
		AdditionalEmails: req.AdditionalEmails,
		Purpose:          strings.TrimSpace(req.Purpose),
		MeetingType:      mt,
	}, nil
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
