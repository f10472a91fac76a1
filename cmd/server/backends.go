package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"nfcattend/internal/attendance/service"
	"nfcattend/internal/attendance/store/checkincache"
	"nfcattend/internal/attendance/store/ledger"
	"nfcattend/internal/attendance/store/legacy"
	"nfcattend/internal/attendance/store/user"
	"nfcattend/internal/audit"
	"nfcattend/internal/audit/kafka"
	"nfcattend/internal/platform/config"
	"nfcattend/internal/platform/database"
	"nfcattend/internal/platform/redis"
	"nfcattend/pkg/platform/circuit"
)

// startupTimeout bounds dialing, pinging and schema bootstrap.
const startupTimeout = 15 * time.Second

type backend struct {
	users  service.UserStore
	ledger service.LedgerStore
	legacy service.LegacySource
	tx     service.LedgerTx
	close  func()
}

// openBackend builds the stores for the configured driver. The memory
// driver keeps the default sharded transaction; SQL drivers run every
// ledger mutation in a database transaction.
func openBackend(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*backend, error) {
	if cfg.Driver == config.DriverMemory {
		log.Warn("using in-memory storage; data is lost on restart")
		return &backend{
			users:  user.NewInMemoryStore(),
			ledger: ledger.NewInMemoryStore(),
			legacy: legacy.NewInMemoryStore(),
			close:  func() {},
		}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db, log); err != nil {
		_ = db.Close()
		return nil, &database.InitError{Driver: cfg.Driver, Err: err}
	}
	return &backend{
		users:  user.NewSQL(db),
		ledger: ledger.NewSQL(db),
		legacy: legacy.NewSQL(db),
		tx:     newLedgerSQLTx(db),
		close: func() {
			if err := db.Close(); err != nil {
				log.Warn("failed to close database", "error", err)
			}
		},
	}, nil
}

// openCache returns nil when Redis is not configured.
func openCache(ctx context.Context, cfg config.RedisConfig, log *slog.Logger) (service.CheckInCache, func(), error) {
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	client, err := redis.New(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	if client == nil {
		return nil, func() {}, nil
	}
	log.Info("duplicate check-in cache enabled")
	cache := checkincache.NewGuarded(
		checkincache.NewRedis(client.Client, checkincache.WithGrace(cfg.CheckInGrace)),
		circuit.New("redis-checkin-cache"),
		log,
	)
	return cache, func() {
		if err := client.Close(); err != nil {
			log.Warn("failed to close redis client", "error", err)
		}
	}, nil
}

// openAuditSink returns nil for the none sink.
func openAuditSink(ctx context.Context, cfg config.AuditConfig, log *slog.Logger) (audit.Store, func(), error) {
	switch cfg.Sink {
	case config.AuditSinkNone:
		return nil, func() {}, nil
	case config.AuditSinkKafka:
		sink, err := kafka.NewSink(cfg.Brokers, cfg.Topic)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(ctx, startupTimeout)
		defer cancel()
		if err := sink.EnsureTopic(ctx, 1, 1); err != nil {
			log.Warn("could not ensure audit topic", "topic", cfg.Topic, "error", err)
		}
		return sink, sink.Close, nil
	default:
		return audit.NewLogStore(log), func() {}, nil
	}
}
