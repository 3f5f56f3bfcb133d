package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	jwttoken "ledger/internal/jwt_token"
	"ledger/internal/ledger/handler"
	"ledger/internal/ledger/service"
	"ledger/internal/ledger/store"
	"ledger/internal/platform/config"
	"ledger/internal/platform/database"
	"ledger/internal/platform/httpserver"
	"ledger/internal/platform/logger"
	"ledger/internal/platform/metrics"
	"ledger/pkg/platform/audit"
	auditmetrics "ledger/pkg/platform/audit/metrics"
	"ledger/pkg/platform/audit/publishers/breaker"
	"ledger/pkg/platform/audit/publishers/kafka"
	"ledger/pkg/platform/audit/store/gormstore"
	auditmemory "ledger/pkg/platform/audit/store/memory"
	"ledger/pkg/platform/audit/worker"
	"ledger/pkg/platform/middleware/actor"
	"ledger/pkg/platform/middleware/audittrail"
	"ledger/pkg/platform/middleware/metadata"
	"ledger/pkg/platform/middleware/requestid"
	"ledger/pkg/platform/middleware/requesttime"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogFormat, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("ledger stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	reg := prometheus.DefaultRegisterer
	ledgerMetrics := metrics.New(reg)
	auditMetrics := auditmetrics.New(reg)

	records, closeRecords, err := openRecordStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRecords()

	auditStore, err := openAuditStore(cfg, log)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	writerOpts := []audit.Option{audit.WithLogger(log), audit.WithMetrics(auditMetrics)}
	if len(cfg.KafkaBrokers) > 0 {
		pub, err := kafka.New(cfg.KafkaBrokers, cfg.KafkaTopic, kafka.WithLogger(log))
		if err != nil {
			return err
		}
		defer pub.Close()
		if err := pub.EnsureTopic(ctx); err != nil {
			log.Warn("kafka topic check failed, fan-out continues", "topic", cfg.KafkaTopic, "error", err)
		}
		fanout := worker.NewWorker(pub,
			worker.WithBreaker(breaker.New("audit-kafka")),
			worker.WithLogger(log),
			worker.WithMetrics(auditMetrics),
		)
		writerOpts = append(writerOpts, audit.WithPublisher(fanout))
		g.Go(func() error {
			if err := fanout.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		log.Info("audit fan-out enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	writer := audit.NewWriter(auditStore, writerOpts...)

	svc := service.New(records, writer,
		service.WithLogger(log),
		service.WithMetrics(ledgerMetrics),
	)

	var validator actor.JWTValidator
	if cfg.JWTSigningKey != "" {
		validator = jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(cfg.JWTSigningKey, "ledger", "ledger-api"))
	} else {
		log.Warn("JWT_SIGNING_KEY not set, all requests run as the anonymous user")
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(actor.Resolve(validator, log))
	if cfg.AuditEnabled {
		r.Use(audittrail.Middleware(writer,
			audittrail.WithReads(cfg.AuditReads),
			audittrail.WithMaxBodyBytes(cfg.AuditMaxBody),
			audittrail.WithLogger(log),
		))
	}
	r.Use(actor.Reject)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())
	handler.New(svc, log).Register(r)

	srv := httpserver.New(cfg.Addr, r)
	g.Go(func() error {
		log.Info("starting ledger", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down ledger")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func openRecordStore(ctx context.Context, cfg config.Server, log *slog.Logger) (store.UnitOfWork, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, records are kept in memory")
		return store.NewMemory(), func() {}, nil
	}
	db, err := database.Open(ctx, cfg.DatabaseURL, database.DefaultOptions)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store.NewPostgres(db, cfg.TxTimeout), closer(db, log), nil
}

func openAuditStore(cfg config.Server, log *slog.Logger) (audit.Store, error) {
	if cfg.AuditDatabase == "" {
		log.Warn("no audit database configured, audit log is kept in memory")
		return auditmemory.NewInMemoryStore(), nil
	}
	db, err := gormstore.Open(cfg.AuditDatabase, cfg.LogLevel == "debug")
	if err != nil {
		return nil, err
	}
	return gormstore.New(db), nil
}

func closer(db *sql.DB, log *slog.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			log.Warn("close database", "error", err)
		}
	}
}
