// Package retention deletes bundles that were dequeued long enough ago.
package retention

import (
	"context"
	"time"

	"market-gateway/internal/repository"
	"market-gateway/internal/telemetry"
	"market-gateway/pkg/logger"

	"go.uber.org/zap"
)

type Processor struct {
	repo      repository.RetentionRepository
	metrics   *telemetry.Metrics
	log       *logger.Logger
	clock     func() time.Time
	period    time.Duration
	batchSize int
	interval  time.Duration
}

// NewProcessor purges bundles dequeued more than period ago, batchSize at a
// time, every interval.
func NewProcessor(repo repository.RetentionRepository, metrics *telemetry.Metrics, period time.Duration, batchSize int, interval time.Duration) *Processor {
	return &Processor{
		repo:      repo,
		metrics:   metrics,
		log:       logger.GetGlobalLogger(),
		clock:     time.Now,
		period:    period,
		batchSize: batchSize,
		interval:  interval,
	}
}

func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Purge(ctx); err != nil && ctx.Err() == nil {
				p.log.Error(ctx, "retention purge failed", zap.Error(err))
			}
		}
	}
}

// Purge deletes batches until no expired bundle is left and returns the
// number of bundles deleted.
func (p *Processor) Purge(ctx context.Context) (int, error) {
	cutoff := p.clock().Add(-p.period)
	total := 0
	for {
		n, err := p.repo.PurgeDequeued(ctx, cutoff, p.batchSize)
		total += n
		p.metrics.BundlesPurged(ctx, n)
		if err != nil {
			return total, err
		}
		if n > 0 {
			p.log.Info(ctx, "purged dequeued bundles", zap.Int("count", n), zap.Time("cutoff", cutoff))
		}
		if n < p.batchSize {
			return total, nil
		}
	}
}
