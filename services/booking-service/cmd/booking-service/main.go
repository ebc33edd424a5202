package main

import (
	"context"
	"net/http"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/md-rashed-zaman/meetslot/libs/config"
	"github.com/md-rashed-zaman/meetslot/libs/grpcx"
	"github.com/md-rashed-zaman/meetslot/libs/httpx"
	"github.com/md-rashed-zaman/meetslot/libs/kafkax"
	otelx "github.com/md-rashed-zaman/meetslot/libs/otel"
	"github.com/md-rashed-zaman/meetslot/libs/runtime"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/busy"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/hostconfig"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/icsfeed"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/location"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/schedule"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/tz"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const grpcServiceName = "meetslot.booking"

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	host, err := hostconfig.Load(config.String("HOST_CONFIG_PATH", hostconfig.DefaultPath))
	if err != nil {
		logger.Error("host config invalid", "err", err)
		panic(err)
	}
	hostLoc, err := tz.Load(host.Timezone)
	if err != nil {
		panic(err)
	}

	var readyChecks []runtime.ReadyCheck

	st, err := openStores(ctx, logger)
	if err != nil {
		logger.Error("storage init failed", "err", err)
		panic(err)
	}
	defer st.close()
	readyChecks = append(readyChecks, st.readyChecks...)

	if err := seedWeekly(ctx, st.weekly, host, logger); err != nil {
		logger.Error("weekly availability seed failed", "err", err)
		panic(err)
	}

	rdb := openRedis(logger)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	cal, calCheck, err := openCalendar(ctx, host)
	if err != nil {
		logger.Error("calendar init failed", "err", err)
		panic(err)
	}
	if calCheck != nil {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "calendar", Check: calCheck})
	}

	var sources []busy.Source
	if len(host.Feeds) > 0 {
		feeds := make([]icsfeed.Source, 0, len(host.Feeds))
		for _, f := range host.Feeds {
			feeds = append(feeds, icsfeed.Source{ID: f.ID, URL: f.URL})
		}
		store := icsfeed.NewStore(feeds, hostLoc, nil, logger)
		refreshCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := store.Refresh(refreshCtx); err != nil {
			logger.Warn("initial ics refresh incomplete", "err", err)
		}
		cancel()
		c, err := store.Schedule(host.FeedRefresh, 30*time.Second)
		if err != nil {
			panic(err)
		}
		c.Start()
		defer c.Stop()
		sources = append(sources, store)
	}
	aggregator := busy.NewAggregator(cal, busy.NewBreakStore(), logger, sources...)

	// A nil *location.Resolver must not reach the schedule resolver as a
	// non-nil interface.
	var detector schedule.LocationDetector
	if host.DetectLocation {
		strategy := location.NewFlightKeywordStrategy(host.FlightKeywords, host.Destinations)
		detector = location.NewResolver(cal, strategy, host.DefaultLocation, logger)
		logger.Info("location detection enabled", "fallback", host.DefaultLocation)
	}

	workStart, workEnd := host.WorkHours()
	resolver, err := schedule.NewResolver(schedule.Config{
		DefaultTimezone:   host.Timezone,
		DefaultStart:      workStart,
		DefaultEnd:        workEnd,
		LocationTimezones: host.LocationTimezones(),
		DefaultLocation:   host.DefaultLocation,
	}, st.locations, st.weekly, detector, logger)
	if err != nil {
		panic(err)
	}

	bookingCfg := booking.DefaultConfig()
	bookingCfg.MaxDuration = host.MaxDuration()
	bookingCfg.Reminders = host.CalendarReminders()
	bookingCfg.LockWait = config.Seconds("BOOKING_LOCK_WAIT_SECONDS", bookingCfg.LockWait)
	var locker booking.Locker = booking.NewLocalLocker()
	if rdb != nil {
		locker = booking.NewRedisLocker(rdb, 30*time.Second)
	}
	coordinator := booking.NewCoordinator(bookingCfg, cal, aggregator, resolver, locker, st.sink, logger)

	if st.publisher != nil {
		go st.publisher.Run(ctx)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))})
	}

	grpcServer := grpcx.NewServer(logger)
	if err := grpcServer.Start(ctx, ":"+grpcPort); err != nil {
		logger.Error("grpc server failed", "err", err)
		panic(err)
	}

	public := handlers.NewPublicHandler(resolver, aggregator, coordinator, st.idempotency, handlers.PublicConfig{
		DefaultDuration: host.DefaultDuration(),
		MaxDuration:     host.MaxDuration(),
	}, logger)
	admin := handlers.NewAdminHandler(resolver, cal, aggregator.Breaks(), st.locations, st.weekly, host.Timezone, logger)

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	var limiter httpx.Limiter = httpx.NewRateLimiter(limitPerMinute, time.Minute)
	if rdb != nil {
		limiter = httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "meetslot:rl"))
	}
	rateLimit := httpx.RateLimit(limiter, "public", logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	public.Register(mux, rateLimit)
	admin.Register(mux, httpx.RequireAdmin(config.String("ADMIN_PASSWORD_HASH", ""), logger))

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", ""),
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(config.Seconds("REQUEST_TIMEOUT_SECONDS", 30*time.Second)),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer.SetServing("", true)
	grpcServer.SetServing(grpcServiceName, true)
	logger.Info("booking service configured",
		"host_timezone", host.Timezone,
		"calendar_backend", strings.ToLower(config.String("CALENDAR_BACKEND", "memory")),
		"feeds", len(host.Feeds),
		"durable", st.durable,
	)
	runtime.ServeHTTP(ctx, srv, logger, 10*time.Second)
	grpcServer.SetServing(grpcServiceName, false)
}
