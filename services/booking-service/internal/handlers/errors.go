package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/meetslot/libs/httpx"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/schedule"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/tz"
)

const (
	KindInvalidTimezone       = "invalid_timezone"
	KindInvalidRequest        = "invalid_request"
	KindSlotNoLongerAvailable = "slot_no_longer_available"
	KindCalendarUnavailable   = "calendar_unavailable"
	KindCalendarWriteFailed   = "calendar_write_failed"
	KindBusy                  = "booking_in_progress"
	KindNotFound              = "not_found"
	KindInternal              = "internal"
)

// classify maps a domain error to its HTTP status and error kind.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, tz.ErrInvalidTimezone):
		return http.StatusBadRequest, KindInvalidTimezone
	case errors.Is(err, booking.ErrInvalidRequest), errors.Is(err, schedule.ErrInvalidDate):
		return http.StatusBadRequest, KindInvalidRequest
	case errors.Is(err, booking.ErrSlotNoLongerAvailable):
		return http.StatusConflict, KindSlotNoLongerAvailable
	case errors.Is(err, calendar.ErrUnavailable):
		return http.StatusServiceUnavailable, KindCalendarUnavailable
	case errors.Is(err, calendar.ErrWriteFailed):
		return http.StatusBadGateway, KindCalendarWriteFailed
	case errors.Is(err, booking.ErrLockTimeout):
		return http.StatusServiceUnavailable, KindBusy
	default:
		return http.StatusInternalServerError, KindInternal
	}
}

func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, kind := classify(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "kind", kind, "err", err)
		if kind == KindInternal {
			msg = "internal error"
		}
	}
	httpx.WriteError(w, status, kind, msg)
}

// writeValidationError reports err as a 400 unless it maps to a more
// specific kind.
func writeValidationError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if _, kind := classify(err); kind == KindInternal {
		badRequest(w, err.Error())
		return
	}
	writeDomainError(w, logger, err)
}

func badRequest(w http.ResponseWriter, msg string) {
	httpx.WriteError(w, http.StatusBadRequest, KindInvalidRequest, msg)
}

func allowMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	return false
}
