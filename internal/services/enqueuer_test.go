package services

import (
	"context"
	"testing"

	"market-gateway/internal/domain/document"
	"market-gateway/internal/events"
	gateway_errors "market-gateway/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueue_GroupsMessagesIntoOneBundle(t *testing.T) {
	f := newFixture(t)

	first := f.enqueue(t, energySupplier, document.ConfirmRequestChangeOfSupplier, document.ChangeOfSupplier)
	second := f.enqueue(t, energySupplier, document.ConfirmRequestChangeOfSupplier, document.ChangeOfSupplier)
	other := f.enqueue(t, energySupplier, document.GenericNotification, document.ChangeOfSupplier)

	require.True(t, first.AssignedBundleID.Valid)
	assert.Equal(t, first.AssignedBundleID, second.AssignedBundleID)
	assert.NotEqual(t, first.AssignedBundleID, other.AssignedBundleID)

	b, ok := f.bundle(t, energySupplier, first.AssignedBundleID.UUID)
	require.True(t, ok)
	assert.Equal(t, 2, b.MessageCount)
	assert.Nil(t, b.ClosedAt)

	ready := f.publisher.ofType(events.EventTypeBundleReady)
	require.Len(t, ready, 2)
	assert.Equal(t, "channel:actor:5790000392551:DDQ", ready[0].channel)
	assert.Equal(t, first.AssignedBundleID.UUID.String(), ready[0].env.AggregateID)
}

func TestEnqueue_AggregationsGetABundleEach(t *testing.T) {
	f := newFixture(t)

	a := f.enqueue(t, gridOperator, document.NotifyAggregatedMeasureData, document.BalanceFixing)
	b := f.enqueue(t, gridOperator, document.NotifyAggregatedMeasureData, document.BalanceFixing)

	assert.NotEqual(t, a.AssignedBundleID, b.AssignedBundleID)
	assert.Len(t, f.publisher.ofType(events.EventTypeBundleReady), 2)
}

func TestEnqueue_FailureLeavesMessageUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.enqueuer.Enqueue(ctx, nil), gateway_errors.ErrInvalidInput)

	stored := f.enqueue(t, energySupplier, document.GenericNotification, document.MoveIn)
	assert.ErrorIs(t, f.enqueuer.Enqueue(ctx, stored), gateway_errors.ErrAlreadyAssigned)

	dup := *stored
	dup.AssignedBundleID.Valid = false
	err := f.enqueuer.Enqueue(ctx, &dup)
	assert.ErrorIs(t, err, gateway_errors.ErrConflict)
	assert.False(t, dup.AssignedBundleID.Valid)

	b, ok := f.bundle(t, energySupplier, stored.AssignedBundleID.UUID)
	require.True(t, ok)
	assert.Equal(t, 1, b.MessageCount, "rolled back enqueue must not count")
}

func TestEnqueue_Canceled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	msg := newMessage(t, energySupplier, document.GenericNotification, document.MoveIn, `{"a":1}`)
	assert.ErrorIs(t, f.enqueuer.Enqueue(ctx, msg), context.Canceled)
	assert.False(t, msg.AssignedBundleID.Valid)
}
