// Package busy merges everything that makes the host unavailable into one
// sorted list of intervals.
package busy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
)

// EventLister is the read half of the calendar.
type EventLister interface {
	ListEvents(ctx context.Context, start, end time.Time) ([]calendar.Event, error)
}

// Source is an additional provider of busy intervals, e.g. a subscribed feed.
type Source interface {
	Name() string
	Busy(ctx context.Context, start, end time.Time) ([]model.BusyInterval, error)
}

type Aggregator struct {
	events  EventLister
	breaks  *BreakStore
	sources []Source
	logger  *slog.Logger
}

func NewAggregator(events EventLister, breaks *BreakStore, logger *slog.Logger, sources ...Source) *Aggregator {
	if breaks == nil {
		breaks = NewBreakStore()
	}
	return &Aggregator{events: events, breaks: breaks, sources: sources, logger: logger}
}

// ListBusy returns coalesced busy intervals overlapping [start, end). A calendar
// read failure is returned as calendar.ErrUnavailable; it never degrades to an
// empty list.
func (a *Aggregator) ListBusy(ctx context.Context, start, end time.Time) ([]model.BusyInterval, error) {
	events, err := a.events.ListEvents(ctx, start, end)
	if err != nil {
		if !errors.Is(err, calendar.ErrUnavailable) {
			err = fmt.Errorf("%w: %v", calendar.ErrUnavailable, err)
		}
		return nil, err
	}

	intervals := make([]model.BusyInterval, 0, len(events))
	for _, ev := range events {
		if !ev.End.After(ev.Start) {
			continue
		}
		intervals = append(intervals, model.BusyInterval{Start: ev.Start.UTC(), End: ev.End.UTC(), Label: ev.Summary})
	}

	breaks, err := a.breaks.Busy(start, end)
	if err != nil {
		return nil, err
	}
	intervals = append(intervals, breaks...)

	for _, src := range a.sources {
		extra, err := src.Busy(ctx, start, end)
		if err != nil {
			return nil, fmt.Errorf("%w: busy source %s: %v", calendar.ErrUnavailable, src.Name(), err)
		}
		intervals = append(intervals, extra...)
	}

	merged := Coalesce(intervals)
	a.logger.Debug("busy intervals resolved",
		"range_start", start.UTC().Format(time.RFC3339),
		"range_end", end.UTC().Format(time.RFC3339),
		"events", len(events),
		"breaks", len(breaks),
		"merged", len(merged),
	)
	return merged, nil
}

func (a *Aggregator) Breaks() *BreakStore { return a.breaks }

// Coalesce sorts intervals and merges overlapping or touching ones, joining labels.
func Coalesce(in []model.BusyInterval) []model.BusyInterval {
	if len(in) == 0 {
		return nil
	}
	sorted := append([]model.BusyInterval(nil), in...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].End.Before(sorted[j].End)
		}
		return sorted[i].Start.Before(sorted[j].Start)
	})

	out := []model.BusyInterval{sorted[0]}
	labels := [][]string{labelList(sorted[0].Label)}
	for _, b := range sorted[1:] {
		last := &out[len(out)-1]
		if b.Start.After(last.End) {
			out = append(out, b)
			labels = append(labels, labelList(b.Label))
			continue
		}
		if b.End.After(last.End) {
			last.End = b.End
		}
		labels[len(labels)-1] = appendLabel(labels[len(labels)-1], b.Label)
	}
	for i := range out {
		out[i].Label = strings.Join(labels[i], " + ")
	}
	return out
}

func labelList(l string) []string {
	if l == "" {
		return nil
	}
	return []string{l}
}

func appendLabel(list []string, l string) []string {
	if l == "" {
		return list
	}
	for _, x := range list {
		if x == l {
			return list
		}
	}
	return append(list, l)
}

