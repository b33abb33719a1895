package services

import (
	"context"
	"time"

	"market-gateway/internal/domain/actor"
	"market-gateway/internal/events"
	"market-gateway/internal/repository"
	"market-gateway/internal/telemetry"
	"market-gateway/pkg/logger"
)

// Option configures the queue services.
type Option func(*core)

// WithRetrier replaces the default transient-error retrier.
func WithRetrier(r *Retrier) Option {
	return func(c *core) { c.retrier = r }
}

func WithClock(clock func() time.Time) Option {
	return func(c *core) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func WithNotifier(n *events.Notifier) Option {
	return func(c *core) { c.notifier = n }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *core) { c.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *core) {
		if l != nil {
			c.log = l
		}
	}
}

// core is what every queue service needs: the store, the receiver locks and
// the transient-error retry around each logical operation.
type core struct {
	store    repository.Store
	locks    *ReceiverLocker
	retrier  *Retrier
	notifier *events.Notifier
	metrics  *telemetry.Metrics
	clock    func() time.Time
	log      *logger.Logger
}

func newCore(store repository.Store, locks *ReceiverLocker, opts []Option) core {
	if locks == nil {
		locks = NewReceiverLocker()
	}
	c := core{
		store:   store,
		locks:   locks,
		retrier: NewRetrier(),
		clock:   time.Now,
		log:     logger.GetGlobalLogger(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// inQueueTx runs fn in a store transaction while holding the receiver's
// lock. The whole transaction is retried on transient errors.
func (c *core) inQueueTx(ctx context.Context, r actor.Receiver, fn func(repository.Repositories) error) error {
	unlock, err := c.locks.Lock(ctx, r)
	if err != nil {
		return err
	}
	defer unlock()

	return c.retrier.Do(ctx, func() error {
		return c.store.InTx(ctx, fn)
	})
}
