package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/meetslot/libs/config"
	"github.com/md-rashed-zaman/meetslot/libs/db"
	"github.com/md-rashed-zaman/meetslot/libs/runtime"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/hostconfig"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/schedule"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/migrations"
	"github.com/redis/go-redis/v9"
)

// stores groups the configuration stores and the booking event sink. Without
// DATABASE_URL everything lives in memory and no booking events are emitted.
type stores struct {
	locations   handlers.LocationAdminStore
	weekly      handlers.WeeklyAdminStore
	idempotency handlers.Idempotency
	sink        booking.Sink
	publisher   *outbox.Publisher
	readyChecks []runtime.ReadyCheck
	durable     bool
	close       func()
}

func openStores(ctx context.Context, logger *slog.Logger) (*stores, error) {
	dbURL := strings.TrimSpace(config.String("DATABASE_URL", ""))
	if dbURL == "" {
		logger.Warn("DATABASE_URL not set; using in-memory stores")
		return &stores{
			locations:   schedule.NewMemoryLocations(),
			weekly:      schedule.NewMemoryWeekly(model.WeeklyAvailability{}),
			idempotency: storage.NewMemoryIdempotency(),
			close:       func() {},
		}, nil
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("db connection: %w", err)
	}
	if config.Bool("DB_MIGRATE", true) {
		if err := db.Migrate(ctx, pool, migrations.FS, ".", logger); err != nil {
			pool.Close()
			return nil, err
		}
	}

	outboxRepo := outbox.NewRepository(pool)
	return &stores{
		locations:   storage.NewLocationRepository(pool),
		weekly:      storage.NewWeeklyRepository(pool),
		idempotency: storage.NewIdempotencyRepository(pool),
		sink:        outbox.NewBookingSink(outboxRepo),
		publisher: outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   config.String("KAFKA_BROKERS", ""),
			PollEvery: 2 * time.Second,
			BatchSize: 50,
		}),
		readyChecks: []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}},
		durable:     true,
		close:       pool.Close,
	}, nil
}

func openRedis(logger *slog.Logger) *redis.Client {
	addr := strings.TrimSpace(config.String("REDIS_ADDR", ""))
	if addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       config.Int("REDIS_DB", 0),
	})
	logger.Info("redis enabled", "redis_addr", addr)
	return rdb
}

// openCalendar picks the calendar backend. The returned check is nil when the
// backend has nothing remote to probe.
func openCalendar(ctx context.Context, host *hostconfig.Config) (calendar.Calendar, func(context.Context) error, error) {
	switch backend := strings.ToLower(config.String("CALENDAR_BACKEND", "memory")); backend {
	case "memory":
		return calendar.NewMemory(), nil, nil
	case "google":
		g, err := calendar.NewGoogle(ctx, calendar.GoogleConfig{
			ClientID:     config.String("GOOGLE_CLIENT_ID", ""),
			ClientSecret: config.String("GOOGLE_CLIENT_SECRET", ""),
			RefreshToken: config.String("GOOGLE_REFRESH_TOKEN", ""),
			CalendarID:   config.String("GOOGLE_CALENDAR_ID", "primary"),
			Timezone:     host.Timezone,
			Timeout:      config.Seconds("CALENDAR_TIMEOUT_SECONDS", 10*time.Second),
		})
		if err != nil {
			return nil, nil, err
		}
		return g, g.Ping, nil
	default:
		return nil, nil, fmt.Errorf("CALENDAR_BACKEND must be google or memory (got %q)", backend)
	}
}

// seedWeekly stores the host profile's weekly template when none is saved yet.
func seedWeekly(ctx context.Context, weekly handlers.WeeklyAdminStore, host *hostconfig.Config, logger *slog.Logger) error {
	if len(host.Weekly) == 0 {
		return nil
	}
	current, err := weekly.Get(ctx)
	if err != nil {
		return err
	}
	if len(current.Days) > 0 {
		return nil
	}
	seed, err := schedule.NormalizeWeekly(model.WeeklyAvailability{Days: host.Weekly})
	if err != nil {
		return err
	}
	if err := weekly.Save(ctx, seed); err != nil {
		return err
	}
	logger.Info("weekly availability seeded from host config", "days", len(seed.Days))
	return nil
}
