package telemetry

import (
	"context"
	"testing"

	"market-gateway/internal/domain/actor"
	"market-gateway/internal/domain/document"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNewMetrics(t *testing.T) {
	ctx := context.Background()
	r := actor.Receiver{Number: "5790000392551", Role: actor.RoleEnergySupplier}

	m, err := NewMetrics(noop.NewMeterProvider())
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		m.MessageEnqueued(ctx, r, document.GenericNotification)
		m.BundlePeeked(ctx, r, document.GenericNotification, document.FormatXML)
		m.BundleDequeued(ctx, r)
		m.RenderFailed(ctx, r, document.GenericNotification, document.FormatEbix)
		m.BundlesPurged(ctx, 3)
	})

	global, err := NewMetrics(nil)
	require.NoError(t, err)
	assert.NotNil(t, global)
}

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.MessageEnqueued(context.Background(), actor.Receiver{}, document.GenericNotification)
		m.BundlesPurged(context.Background(), 1)
	})
}
