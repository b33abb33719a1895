package services

import (
	"context"
	"fmt"

	"market-gateway/internal/domain/outgoing"
	"market-gateway/internal/domain/queue"
	"market-gateway/internal/events"
	"market-gateway/internal/repository"
	gateway_errors "market-gateway/pkg/errors"
	"market-gateway/pkg/logger"

	"go.uber.org/zap"
)

// MessageEnqueuer places produced messages into their receiver's queue.
type MessageEnqueuer struct {
	core
}

func NewMessageEnqueuer(store repository.Store, locks *ReceiverLocker, opts ...Option) *MessageEnqueuer {
	return &MessageEnqueuer{core: newCore(store, locks, opts)}
}

// Enqueue stores msg in the bundle accepting messages of its business reason
// and document type, creating the receiver's queue and the bundle as needed.
// On success msg.AssignedBundleID is set; on failure msg is unchanged.
func (s *MessageEnqueuer) Enqueue(ctx context.Context, msg *outgoing.Message) error {
	if msg == nil {
		return fmt.Errorf("%w: message is required", gateway_errors.ErrInvalidInput)
	}
	ctx = logger.WithActor(ctx, msg.Receiver.String())

	var (
		stored outgoing.Message
		opened *queue.BundleSnapshot
	)
	err := s.inQueueTx(ctx, msg.Receiver, func(repos repository.Repositories) error {
		stored, opened = *msg, nil

		q, err := repos.Queues.GetOrCreateForUpdate(ctx, msg.Receiver)
		if err != nil {
			return err
		}
		before := len(q.Bundles())
		if err := q.Enqueue(&stored, s.clock()); err != nil {
			return err
		}
		if bundles := q.Bundles(); len(bundles) > before {
			snap := bundles[len(bundles)-1].Snapshot()
			opened = &snap
		}

		if err := repos.Queues.SaveBundles(ctx, q); err != nil {
			return err
		}
		return repos.Messages.Create(ctx, &stored)
	})
	if err != nil {
		s.log.Debug(ctx, "enqueue failed", zap.Stringer("message_id", msg.ID), zap.Error(err))
		return err
	}
	*msg = stored

	s.metrics.MessageEnqueued(ctx, msg.Receiver, msg.DocumentType)
	s.log.Debug(ctx, "message enqueued",
		zap.Stringer("message_id", msg.ID),
		zap.Stringer("bundle_id", msg.AssignedBundleID.UUID))

	if opened != nil {
		err := s.notifier.BundleReady(ctx, events.BundleReady{
			ActorNumber:    msg.Receiver.Number,
			ActorRole:      msg.Receiver.Role,
			BundleID:       opened.ID,
			DocumentType:   opened.DocumentType,
			Category:       opened.DocumentType.Category(),
			BusinessReason: opened.BusinessReason,
			OccurredAt:     opened.CreatedAt,
		})
		if err != nil {
			s.log.Warn(ctx, "bundle ready notification failed", zap.Stringer("bundle_id", opened.ID), zap.Error(err))
		}
	}
	return nil
}
