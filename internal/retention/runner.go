package retention

import (
	"context"
	"sync"

	"market-gateway/config"
	"market-gateway/internal/repository"
	"market-gateway/internal/telemetry"
)

// Runner runs a Processor in the background until stopped.
type Runner struct {
	processor *Processor
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewRunner(processor *Processor) *Runner {
	return &Runner{processor: processor}
}

func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.processor.Run(ctx)
	}()
}

// Stop cancels the processor and waits for the running batch to finish.
func (r *Runner) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.wg.Wait()
}

func DefaultProcessor(repo repository.RetentionRepository, metrics *telemetry.Metrics, cfg *config.Config) *Processor {
	return NewProcessor(repo, metrics, cfg.RetentionPeriod, cfg.RetentionBatchSize, cfg.RetentionInterval)
}
