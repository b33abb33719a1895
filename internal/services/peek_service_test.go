package services

import (
	"context"
	"errors"
	"testing"

	"market-gateway/internal/archive"
	"market-gateway/internal/domain/actor"
	"market-gateway/internal/domain/document"
	"market-gateway/internal/domain/queue"
	"market-gateway/internal/materializer"
	gateway_errors "market-gateway/pkg/errors"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeek_NothingToPeek(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.peeker.Peek(ctx, PeekRequest{Receiver: energySupplier})
	require.NoError(t, err)
	assert.False(t, resp.Found)

	msg := f.enqueue(t, energySupplier, document.GenericNotification, document.MoveIn)
	ok, err := f.dequeuer.Dequeue(ctx, energySupplier, msg.AssignedBundleID.UUID)
	require.NoError(t, err)
	require.True(t, ok)

	resp, err = f.peeker.Peek(ctx, PeekRequest{Receiver: energySupplier})
	require.NoError(t, err)
	assert.False(t, resp.Found)

	_, err = f.peeker.Peek(ctx, PeekRequest{})
	assert.ErrorIs(t, err, gateway_errors.ErrInvalidInput)
}

func TestPeek_RendersClosesAndArchives(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg := f.enqueue(t, energySupplier, document.GenericNotification, document.MoveIn)
	f.enqueue(t, energySupplier, document.GenericNotification, document.MoveIn)

	resp, err := f.peeker.Peek(ctx, PeekRequest{Receiver: energySupplier})
	require.NoError(t, err)
	require.True(t, resp.Found)
	assert.Equal(t, msg.AssignedBundleID.UUID, resp.BundleID)
	assert.Equal(t, document.FormatXML, resp.Format)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(resp.Payload))
	require.NotNil(t, doc.Root())
	assert.Len(t, doc.Root().SelectElements("Series"), 2)

	b, ok := f.bundle(t, energySupplier, resp.BundleID)
	require.True(t, ok)
	assert.NotNil(t, b.ClosedAt)
	assert.Equal(t, queue.Rendered, b.Document.State)
	assert.Equal(t, document.FormatXML, b.Document.Format)

	rec, archived, found, err := f.archive.Lookup(ctx, resp.BundleID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, resp.Payload, archived)
	assert.Equal(t, hub, rec.Sender)
	assert.Equal(t, energySupplier, rec.Receiver)
	assert.Len(t, f.blobs.Keys(), 2)

	late := f.enqueue(t, energySupplier, document.GenericNotification, document.MoveIn)
	assert.NotEqual(t, resp.BundleID, late.AssignedBundleID.UUID, "a peeked bundle takes no more messages")
}

func TestPeek_RepeatedPeekServesStoredDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enqueue(t, energySupplier, document.GenericNotification, document.MoveIn)

	first, err := f.peeker.Peek(ctx, PeekRequest{Receiver: energySupplier})
	require.NoError(t, err)
	second, err := f.peeker.Peek(ctx, PeekRequest{Receiver: energySupplier})
	require.NoError(t, err)

	assert.Equal(t, first.BundleID, second.BundleID)
	assert.Equal(t, first.Payload, second.Payload)
	assert.Len(t, f.blobs.Keys(), 2, "archived once")
}

func TestPeek_OtherFormatIsNotStored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enqueue(t, energySupplier, document.GenericNotification, document.MoveIn)

	xml, err := f.peeker.Peek(ctx, PeekRequest{Receiver: energySupplier})
	require.NoError(t, err)

	js, err := f.peeker.Peek(ctx, PeekRequest{Receiver: energySupplier, Format: document.FormatJSON})
	require.NoError(t, err)
	assert.Equal(t, xml.BundleID, js.BundleID)
	assert.Equal(t, document.FormatJSON, js.Format)
	assert.NotEqual(t, xml.Payload, js.Payload)

	b, _ := f.bundle(t, energySupplier, xml.BundleID)
	assert.Equal(t, document.FormatXML, b.Document.Format)

	again, err := f.peeker.Peek(ctx, PeekRequest{Receiver: energySupplier})
	require.NoError(t, err)
	assert.Equal(t, xml.Payload, again.Payload)
	assert.Len(t, f.blobs.Keys(), 2)
}

func TestPeek_ByCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.enqueue(t, energySupplier, document.GenericNotification, document.MoveIn)
	agg := f.enqueue(t, energySupplier, document.NotifyAggregatedMeasureData, document.BalanceFixing)

	resp, err := f.peeker.Peek(ctx, PeekRequest{Receiver: energySupplier, Category: document.CategoryAggregations})
	require.NoError(t, err)
	require.True(t, resp.Found)
	assert.Equal(t, agg.AssignedBundleID.UUID, resp.BundleID)
	assert.Equal(t, document.NotifyAggregatedMeasureData, resp.DocumentType)
}

func TestPeek_RenderFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg := newMessage(t, energySupplier, document.GenericNotification, document.MoveIn, `[1,2,3]`)
	require.NoError(t, f.enqueuer.Enqueue(ctx, msg))

	_, err := f.peeker.Peek(ctx, PeekRequest{Receiver: energySupplier})
	assert.ErrorIs(t, err, gateway_errors.ErrMaterialization)

	b, ok := f.bundle(t, energySupplier, msg.AssignedBundleID.UUID)
	require.True(t, ok)
	assert.Equal(t, queue.RenderFailed, b.Document.State)
	assert.NotEmpty(t, b.Document.Error)
	assert.NotNil(t, b.ClosedAt)
	assert.Empty(t, f.blobs.Keys())

	ok, err = f.dequeuer.Dequeue(ctx, energySupplier, msg.AssignedBundleID.UUID)
	require.NoError(t, err)
	assert.True(t, ok, "a bundle that failed to render can still be dequeued")
}

// flakyWriter returns an error from its next failures writes.
type flakyWriter struct {
	materializer.Writer
	failures int
}

func (w *flakyWriter) Write(ctx context.Context, req materializer.Request) ([]byte, error) {
	if w.failures > 0 {
		w.failures--
		return nil, errors.New("reference data unavailable")
	}
	return w.Writer.Write(ctx, req)
}

func TestPeek_RetriesSameBundleAfterRenderFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registry := materializer.NewRegistry(&flakyWriter{Writer: materializer.NewCIMXMLWriter(), failures: 1})
	peeker := NewPeekService(f.store, NewReceiverLocker(), hub, registry, archive.NewArchiver(f.blobs), WithRetrier(NoRetry()))

	failed := f.enqueue(t, energySupplier, document.GenericNotification, document.MoveIn)
	_, err := peeker.Peek(ctx, PeekRequest{Receiver: energySupplier})
	require.ErrorIs(t, err, gateway_errors.ErrMaterialization)

	b, ok := f.bundle(t, energySupplier, failed.AssignedBundleID.UUID)
	require.True(t, ok)
	require.Equal(t, queue.RenderFailed, b.Document.State)

	// the failed bundle is closed, so this lands in a newer bundle
	newer := f.enqueue(t, energySupplier, document.GenericNotification, document.MoveIn)
	require.NotEqual(t, failed.AssignedBundleID.UUID, newer.AssignedBundleID.UUID)

	resp, err := peeker.Peek(ctx, PeekRequest{Receiver: energySupplier})
	require.NoError(t, err)
	require.True(t, resp.Found)
	assert.Equal(t, failed.AssignedBundleID.UUID, resp.BundleID)
	assert.NotEmpty(t, resp.Payload)

	b, ok = f.bundle(t, energySupplier, failed.AssignedBundleID.UUID)
	require.True(t, ok)
	assert.Equal(t, queue.Rendered, b.Document.State)
	assert.Empty(t, b.Document.Error)
	assert.Len(t, f.blobs.Keys(), 2, "document and manifest are archived once")

	other, ok := f.bundle(t, energySupplier, newer.AssignedBundleID.UUID)
	require.True(t, ok)
	assert.Nil(t, other.ClosedAt)
}

func TestPeek_UnsupportedEbixType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enqueue(t, energySupplier, document.AccountingPointCharacteristics, document.MoveIn)

	_, err := f.peeker.Peek(ctx, PeekRequest{Receiver: energySupplier, Format: document.FormatEbix})
	assert.ErrorIs(t, err, gateway_errors.ErrMaterialization)

	resp, err := f.peeker.Peek(ctx, PeekRequest{Receiver: energySupplier, Format: document.FormatXML})
	require.NoError(t, err)
	assert.True(t, resp.Found, "another format can still be rendered")
}

func TestPeek_UnknownReceiverHasNothing(t *testing.T) {
	f := newFixture(t)
	stranger := actor.Receiver{Number: "10X1001A1001A450", Role: actor.RoleSystemOperator}

	resp, err := f.peeker.Peek(context.Background(), PeekRequest{Receiver: stranger})
	require.NoError(t, err)
	assert.False(t, resp.Found)
}
