package services

import (
	"context"
	"fmt"

	"market-gateway/internal/domain/actor"
	"market-gateway/internal/events"
	"market-gateway/internal/repository"
	gateway_errors "market-gateway/pkg/errors"
	"market-gateway/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DequeueService acknowledges delivered bundles.
type DequeueService struct {
	core
}

func NewDequeueService(store repository.Store, locks *ReceiverLocker, opts ...Option) *DequeueService {
	return &DequeueService{core: newCore(store, locks, opts)}
}

// Dequeue marks the bundle as delivered to r. It returns false, without
// error, when r has no queue or the bundle is unknown or already dequeued.
func (s *DequeueService) Dequeue(ctx context.Context, r actor.Receiver, bundleID uuid.UUID) (bool, error) {
	if r.IsZero() {
		return false, fmt.Errorf("%w: receiver is required", gateway_errors.ErrInvalidInput)
	}
	ctx = logger.WithActor(ctx, r.String())

	var dequeued bool
	err := s.inQueueTx(ctx, r, func(repos repository.Repositories) error {
		dequeued = false

		q, found, err := repos.Queues.GetForUpdate(ctx, r)
		if err != nil || !found {
			return err
		}
		if !q.Dequeue(bundleID) {
			return nil
		}
		dequeued = true
		return repos.Queues.SaveBundles(ctx, q)
	})
	if err != nil {
		return false, err
	}
	if !dequeued {
		s.log.Debug(ctx, "nothing to dequeue", zap.Stringer("bundle_id", bundleID))
		return false, nil
	}

	s.metrics.BundleDequeued(ctx, r)
	s.log.Info(ctx, "bundle dequeued", zap.Stringer("bundle_id", bundleID))
	if err := s.notifier.BundleDequeued(ctx, events.BundleDequeued{
		ActorNumber: r.Number,
		ActorRole:   r.Role,
		BundleID:    bundleID,
		OccurredAt:  s.clock().UTC(),
	}); err != nil {
		s.log.Warn(ctx, "bundle dequeued notification failed", zap.Stringer("bundle_id", bundleID), zap.Error(err))
	}
	return true, nil
}
