package checkincache

import (
	"context"
	"log/slog"

	"nfcattend/pkg/domain"
	"nfcattend/pkg/platform/circuit"
)

// Cache is the contract shared by every cache implementation.
type Cache interface {
	Seen(ctx context.Context, day domain.Day, userID string) (bool, error)
	Remember(ctx context.Context, day domain.Day, userID string) error
}

// GuardedCache stops calling a failing cache until a paced probe succeeds.
// While the circuit is open every lookup is a miss and Remember is a no-op.
type GuardedCache struct {
	inner   Cache
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewGuarded(inner Cache, breaker *circuit.Breaker, logger *slog.Logger) *GuardedCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &GuardedCache{inner: inner, breaker: breaker, logger: logger}
}

func (g *GuardedCache) Seen(ctx context.Context, day domain.Day, userID string) (bool, error) {
	if !g.breaker.Allow() {
		return false, nil
	}
	seen, err := g.inner.Seen(ctx, day, userID)
	g.record(ctx, err)
	return seen, err
}

func (g *GuardedCache) Remember(ctx context.Context, day domain.Day, userID string) error {
	if !g.breaker.Allow() {
		return nil
	}
	err := g.inner.Remember(ctx, day, userID)
	g.record(ctx, err)
	return err
}

func (g *GuardedCache) record(ctx context.Context, err error) {
	if err != nil {
		if _, change := g.breaker.RecordFailure(); change.Opened {
			g.logger.WarnContext(ctx, "check-in cache disabled after repeated failures",
				"breaker", g.breaker.Name(),
				"error", err,
			)
		}
		return
	}
	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "check-in cache recovered", "breaker", g.breaker.Name())
	}
}
