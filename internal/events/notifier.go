package events

import (
	"context"
	"time"

	"market-gateway/internal/domain/actor"
)

// Publisher delivers an encoded envelope to a channel. redis.Publisher
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Notifier publishes queue events on the receiver's actor channel.
type Notifier struct {
	pub Publisher
}

func NewNotifier(pub Publisher) *Notifier {
	return &Notifier{pub: pub}
}

func (n *Notifier) BundleReady(ctx context.Context, e BundleReady) error {
	return n.publish(ctx, actor.Receiver{Number: e.ActorNumber, Role: e.ActorRole}, EventTypeBundleReady, e.BundleID.String(), e.OccurredAt, e)
}

func (n *Notifier) BundleDequeued(ctx context.Context, e BundleDequeued) error {
	return n.publish(ctx, actor.Receiver{Number: e.ActorNumber, Role: e.ActorRole}, EventTypeBundleDequeued, e.BundleID.String(), e.OccurredAt, e)
}

func (n *Notifier) publish(ctx context.Context, r actor.Receiver, eventType, aggregateID string, at time.Time, payload interface{}) error {
	if n == nil || n.pub == nil {
		return nil
	}
	env, err := NewEnvelope(eventType, AggregateTypeBundle, aggregateID, at, payload)
	if err != nil {
		return err
	}
	data, err := env.Encode()
	if err != nil {
		return err
	}
	return n.pub.Publish(ctx, ActorChannel(r), data)
}
