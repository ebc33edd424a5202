package main

import (
	"context"
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/md-rashed-zaman/meetslot/libs/config"
	"github.com/md-rashed-zaman/meetslot/libs/db"
	"github.com/md-rashed-zaman/meetslot/libs/httpx"
	"github.com/md-rashed-zaman/meetslot/libs/kafkax"
	otelx "github.com/md-rashed-zaman/meetslot/libs/otel"
	"github.com/md-rashed-zaman/meetslot/libs/runtime"
	"github.com/md-rashed-zaman/meetslot/services/notification-service/internal/confirmation"
	"github.com/md-rashed-zaman/meetslot/services/notification-service/internal/consumer"
	"github.com/md-rashed-zaman/meetslot/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/meetslot/services/notification-service/internal/inbox"
	"github.com/md-rashed-zaman/meetslot/services/notification-service/internal/storage"
	"github.com/md-rashed-zaman/meetslot/services/notification-service/migrations"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
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

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()
	if config.Bool("DB_MIGRATE", true) {
		if err := db.Migrate(ctx, pool, migrations.FS, ".", logger); err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
	}

	emailSender := email.NewSMTPSender(
		config.String("SMTP_HOST", "mailpit"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", "no-reply@meetslot.local"),
	)
	handler := confirmation.NewHandler(emailSender, storage.NewRepository(pool), logger)

	eventConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
		Brokers:  config.String("KAFKA_BROKERS", ""),
		GroupID:  config.String("KAFKA_GROUP_ID", "notification-service"),
		Topic:    config.String("KAFKA_CONSUME_TOPIC", "booking.meeting.booked.v1"),
		Attempts: config.Int("NOTIFY_ATTEMPTS", 3),
		Backoff:  config.Seconds("NOTIFY_BACKOFF_SECONDS", 2*time.Second),
	}, handler.Handle)
	go eventConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	runtime.ServeHTTP(ctx, srv, logger, 10*time.Second)
}
