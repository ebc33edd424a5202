// Package location infers where the host is on dates that have no explicit
// location schedule entry.
package location

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/tz"
)

const DefaultLookback = 7 * 24 * time.Hour

type EventLister interface {
	ListEvents(ctx context.Context, start, end time.Time) ([]calendar.Event, error)
}

// Resolver caches one inferred tag per date for the life of the process.
type Resolver struct {
	events   EventLister
	strategy Strategy
	fallback string
	lookback time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[tz.Date]string
}

func NewResolver(events EventLister, strategy Strategy, fallback string, logger *slog.Logger) *Resolver {
	return &Resolver{
		events:   events,
		strategy: strategy,
		fallback: fallback,
		lookback: DefaultLookback,
		logger:   logger,
		cache:    map[tz.Date]string{},
	}
}

// Detect returns the location tag for date. Calendar failures yield the
// fallback tag without caching it, so the next call tries again.
func (r *Resolver) Detect(ctx context.Context, date tz.Date) string {
	r.mu.Lock()
	tag, ok := r.cache[date]
	r.mu.Unlock()
	if ok {
		return tag
	}

	dayStart := date.StartOfDay(time.UTC)
	dayEnd := date.AddDays(1).StartOfDay(time.UTC)
	events, err := r.events.ListEvents(ctx, dayStart.Add(-r.lookback), dayEnd)
	if err != nil {
		r.logger.Warn("location detection failed, using fallback", "date", date.String(), "fallback", r.fallback, "err", err)
		return r.fallback
	}

	tag, ok = r.strategy.Infer(events, dayEnd)
	if !ok {
		tag = r.fallback
	}
	r.mu.Lock()
	r.cache[date] = tag
	r.mu.Unlock()
	r.logger.Debug("location detected", "date", date.String(), "location", tag, "inferred", ok)
	return tag
}
