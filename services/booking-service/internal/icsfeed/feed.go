// Package icsfeed treats subscribed read-only ICS calendars as busy sources.
package icsfeed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
)

const maxBody = 10 << 20

type Source struct {
	ID  string
	URL string
}

type snapshot struct {
	events    []Event
	fetchedAt time.Time
}

// Store holds the last good snapshot of every feed. A failed refresh keeps the
// previous snapshot.
type Store struct {
	client  *http.Client
	sources []Source
	loc     *time.Location
	logger  *slog.Logger

	mu        sync.RWMutex
	snapshots map[string]snapshot
}

func NewStore(sources []Source, loc *time.Location, client *http.Client, logger *slog.Logger) *Store {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Store{
		client:    client,
		sources:   sources,
		loc:       loc,
		logger:    logger,
		snapshots: map[string]snapshot{},
	}
}

func (s *Store) Name() string { return "ics" }

// Busy expands every loaded feed over [start, end).
func (s *Store) Busy(_ context.Context, start, end time.Time) ([]model.BusyInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.BusyInterval
	for _, src := range s.sources {
		snap, ok := s.snapshots[src.ID]
		if !ok {
			continue
		}
		out = append(out, Expand(snap.events, start, end)...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// Refresh fetches every feed and returns the joined errors of those that failed.
func (s *Store) Refresh(ctx context.Context) error {
	var errs []error
	for _, src := range s.sources {
		events, err := s.fetch(ctx, src)
		if err != nil {
			s.logger.Warn("ics refresh failed, keeping last snapshot", "feed", src.ID, "url", redact(src.URL), "err", err)
			errs = append(errs, fmt.Errorf("feed %s: %w", src.ID, err))
			continue
		}
		s.mu.Lock()
		s.snapshots[src.ID] = snapshot{events: events, fetchedAt: time.Now().UTC()}
		s.mu.Unlock()
		s.logger.Info("ics feed refreshed", "feed", src.ID, "events", len(events))
	}
	return errors.Join(errs...)
}

// Schedule runs Refresh on spec until the returned cron is stopped.
func (s *Store) Schedule(spec string, timeout time.Duration) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(s.loc))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = s.Refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

func (s *Store) fetch(ctx context.Context, src Source) ([]Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}
	return Parse(body, s.loc)
}

// redact keeps only scheme and host, since feed URLs often embed secrets.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
