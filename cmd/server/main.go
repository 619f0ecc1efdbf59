// Command server runs the presence service: the attendance command surface,
// the outbox relay, the occupancy projection, and the reporting surface in
// one binary. Which backends it uses follows from configuration alone:
// Postgres, Redis and Kafka when configured, in-process equivalents when
// not.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"presence/internal/attendance/capacity"
	attendancehandler "presence/internal/attendance/handler"
	attendancemetrics "presence/internal/attendance/metrics"
	"presence/internal/attendance/service"
	idemStore "presence/internal/attendance/store/idempotency"
	sessionStore "presence/internal/attendance/store/session"
	"presence/internal/events/bus"
	eventmetrics "presence/internal/events/metrics"
	"presence/internal/events/outbox"
	"presence/internal/events/relay"
	"presence/internal/identify"
	"presence/internal/occupancy"
	"presence/internal/occupancy/dedup"
	occupancyhandler "presence/internal/occupancy/handler"
	occupancymetrics "presence/internal/occupancy/metrics"
	"presence/internal/occupancy/projector"
	"presence/internal/platform/config"
	"presence/internal/platform/httpserver"
	kafkaconsumer "presence/internal/platform/kafka/consumer"
	kafkaproducer "presence/internal/platform/kafka/producer"
	"presence/internal/platform/logger"
	platformredis "presence/internal/platform/redis"
	"presence/internal/realtime"
	realtimemetrics "presence/internal/realtime/metrics"
	"presence/internal/registry"
	"presence/internal/timeline"
	timelinehandler "presence/internal/timeline/handler"
	httptransport "presence/internal/transport/http"
	"presence/pkg/platform/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	// Registry: a seeded snapshot in production, empty for smoke testing.
	var reg *registry.InMemoryRegistry
	if cfg.RegistryFile != "" {
		var err error
		if reg, err = registry.LoadFile(cfg.RegistryFile); err != nil {
			return err
		}
		log.Info("registry loaded", "file", cfg.RegistryFile)
	} else {
		reg = registry.NewInMemoryRegistry()
		log.Warn("no registry file configured, starting with an empty registry")
	}

	// Durable stores when Postgres is configured, in-memory otherwise.
	var (
		ledger   sessionStore.Store
		outboxSt outbox.Store
		timelSt  timeline.Store
		runner   tx.Runner = tx.NopRunner{}
		db       *sql.DB
	)
	if cfg.Postgres.DSN != "" {
		var err error
		if db, err = sql.Open("postgres", cfg.Postgres.DSN); err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		for _, schema := range []string{sessionStore.Schema, outbox.Schema, timeline.Schema} {
			if _, err := db.ExecContext(ctx, schema); err != nil {
				return err
			}
		}
		ledger = sessionStore.NewPostgres(db)
		outboxSt = outbox.NewPostgres(db)
		timelSt = timeline.NewPostgres(db)
		runner = &tx.SQLRunner{DB: db}
		log.Info("postgres stores ready")
	} else {
		ledger = sessionStore.NewInMemoryStore()
		outboxSt = outbox.NewInMemoryStore()
		timelSt = timeline.NewInMemoryStore()
		log.Warn("no postgres configured, state is in-memory and non-durable")
	}

	// Shared idempotency and dedup when Redis is configured.
	var (
		idem  idemStore.Store = idemStore.NewInMemoryStore()
		dd    dedup.Store     = dedup.NewInMemoryStore()
		redis *platformredis.Client
	)
	if client, err := platformredis.New(cfg.Redis); err != nil {
		return err
	} else if client != nil {
		redis = client
		defer func() { _ = redis.Close() }()
		idem = idemStore.NewRedis(redis.Client)
		dd = dedup.NewRedis(redis.Client)
		log.Info("redis idempotency and dedup stores ready")
	}

	// Projection side.
	hub := realtime.NewHub(cfg.Attendance.SubscriberBuffer,
		realtime.WithLogger(log),
		realtime.WithMetrics(realtimemetrics.New()),
	)
	aggregator := occupancy.NewAggregator(occupancy.WithObserver(hub))
	proj := projector.New(aggregator, timelSt, dd, log,
		projector.WithMetrics(occupancymetrics.New()),
	)

	// Command side.
	svc := service.New(ledger, idem, capacity.New(reg, ledger), outboxSt, runner,
		service.WithLogger(log),
		service.WithMetrics(attendancemetrics.New()),
		service.WithIdempotencyTTL(cfg.Attendance.IdempotencyTTL),
		service.WithDerivedKeyBucket(cfg.Attendance.DerivedKeyBucket),
	)

	group, ctx := errgroup.WithContext(ctx)

	// Event transport: Kafka when brokers are configured, in-process bus
	// otherwise. The relay drains the outbox into whichever is active.
	var producer relay.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := kafkaproducer.New(ctx, cfg.Kafka)
		if err != nil {
			return err
		}
		defer kp.Close()
		producer = kp

		consumer, err := kafkaconsumer.New(cfg.Kafka, proj, log)
		if err != nil {
			return err
		}
		group.Go(func() error { return consumer.Run(ctx) })
		log.Info("kafka transport ready", "topic", cfg.Kafka.Topic, "group", cfg.Kafka.Group)
	} else {
		b := bus.New(proj, log)
		defer b.Close()
		producer = b
		log.Warn("no kafka brokers configured, using the in-process event bus")
	}

	rel := relay.New(outboxSt, producer, cfg.Attendance.OutboxPollInterval, log,
		relay.WithMetrics(eventmetrics.New()),
	)
	group.Go(func() error { return rel.Run(ctx) })

	// HTTP surface.
	router := httptransport.NewRouter(httptransport.Options{
		Logger:        log,
		JWTSigningKey: cfg.Server.JWTSigningKey,
		Commands:      attendancehandler.New(svc, identify.NewResolver(reg, nil), log),
		Reporting: []httptransport.Registrar{
			occupancyhandler.New(aggregator, hub, log),
			timelinehandler.New(timelSt, log),
		},
		Health: func() error {
			if db != nil {
				if err := db.PingContext(context.Background()); err != nil {
					return err
				}
			}
			if redis != nil {
				return redis.Health(context.Background())
			}
			return nil
		},
	})

	srv := httpserver.New(cfg.Server.Addr, router)
	group.Go(func() error {
		log.Info("http server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
