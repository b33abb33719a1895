package events

import (
	"context"
	"testing"
	"time"

	"market-gateway/internal/domain/actor"
	"market-gateway/internal/domain/document"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	channel string
	payload []byte
}

type recordingPublisher struct {
	sent []published
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, payload []byte) error {
	p.sent = append(p.sent, published{channel, payload})
	return nil
}

func TestActorChannel(t *testing.T) {
	r := actor.Receiver{Number: "5790000392551", Role: actor.RoleEnergySupplier}
	assert.Equal(t, "channel:actor:5790000392551:DDQ", ActorChannel(r))
}

func TestNotifier_BundleReady(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewNotifier(pub)

	ev := BundleReady{
		ActorNumber:    "5790000392551",
		ActorRole:      actor.RoleEnergySupplier,
		BundleID:       uuid.New(),
		DocumentType:   document.NotifyAggregatedMeasureData,
		Category:       document.CategoryAggregations,
		BusinessReason: document.BalanceFixing,
		OccurredAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, n.BundleReady(context.Background(), ev))
	require.Len(t, pub.sent, 1)
	assert.Equal(t, "channel:actor:5790000392551:DDQ", pub.sent[0].channel)

	env, err := DecodeEnvelope(pub.sent[0].payload)
	require.NoError(t, err)
	assert.Equal(t, EventTypeBundleReady, env.EventType)
	assert.Equal(t, AggregateTypeBundle, env.AggregateType)
	assert.Equal(t, ev.BundleID.String(), env.AggregateID)

	var got BundleReady
	require.NoError(t, json.Unmarshal(env.Payload, &got))
	assert.Equal(t, ev, got)
}

func TestNotifier_WithoutPublisherIsNoop(t *testing.T) {
	var n *Notifier
	assert.NoError(t, n.BundleDequeued(context.Background(), BundleDequeued{BundleID: uuid.New()}))
	assert.NoError(t, NewNotifier(nil).BundleReady(context.Background(), BundleReady{}))
}
