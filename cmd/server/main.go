package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"nfcattend/internal/attendance/handler"
	attendancemetrics "nfcattend/internal/attendance/metrics"
	"nfcattend/internal/attendance/service"
	"nfcattend/internal/audit"
	"nfcattend/internal/platform/config"
	"nfcattend/internal/platform/database"
	"nfcattend/internal/platform/httpserver"
	"nfcattend/internal/platform/logger"
	"nfcattend/internal/platform/metrics"
	httptransport "nfcattend/internal/transport/http"
)

// main loads configuration, wires the storage backend and serves HTTP until
// SIGINT or SIGTERM. Business logic lives in internal service packages.
func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, log)
	stop()
	if err != nil {
		var initErr *database.InitError
		if errors.As(err, &initErr) {
			log.Error("database initialisation failed", "driver", initErr.Driver, "error", initErr.Err)
		} else {
			log.Error("server stopped with error", "error", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.DefaultRegisterer

	store, err := openBackend(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer store.close()

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(attendancemetrics.New(reg)),
		service.WithLegacySource(store.legacy),
		service.WithRequireActive(cfg.Attendance.RequireActive),
		service.WithDefaultDevice(cfg.Attendance.DefaultDeviceID),
		service.WithMaxRangeDays(cfg.Attendance.MaxRangeDays),
	}
	if store.tx != nil {
		opts = append(opts, service.WithTx(store.tx))
	}

	cache, closeCache, err := openCache(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeCache()
	if cache != nil {
		opts = append(opts, service.WithCache(cache))
	}

	sink, closeSink, err := openAuditSink(ctx, cfg.Audit, log)
	if err != nil {
		return err
	}
	defer closeSink()
	var (
		publisher *audit.Publisher
		worker    *audit.Worker
	)
	if sink != nil {
		publisher = audit.NewPublisher(cfg.Audit.BufferSize)
		worker = audit.NewWorker(sink, publisher.Events(), log)
		opts = append(opts, service.WithAuditPublisher(publisher))
	}

	svc := service.New(store.users, store.ledger, opts...)
	attendanceHandler := handler.New(svc, log, metrics.New(reg), handler.WithRequestTimeout(cfg.Server.RequestTimeout))
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:      log,
		Health:      svc,
		CORSOrigins: cfg.Server.CORSOrigins,
		TrustProxy:  cfg.Server.TrustProxy,
		Gatherer:    prometheus.DefaultGatherer,
		Handlers:    []httptransport.RouteRegistrar{attendanceHandler},
	})
	srv := httpserver.New(cfg.Server, router, log)

	workerCtx, stopWorker := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorker()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting nfc attendance service",
			"addr", cfg.Server.Addr,
			"driver", cfg.Database.Driver,
			"audit_sink", cfg.Audit.Sink,
			"cache", cache != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if publisher != nil {
			publisher.Close()
		}
		stopWorker()
		return err
	})
	if worker != nil {
		g.Go(func() error {
			return worker.Run(workerCtx)
		})
	}

	err = g.Wait()
	if publisher != nil && publisher.Dropped() > 0 {
		log.Warn("audit events dropped", "count", publisher.Dropped())
	}
	return err
}
