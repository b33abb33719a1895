// Package telemetry defines the OpenTelemetry instruments of the queue
// engine.
package telemetry

import (
	"context"

	"market-gateway/internal/domain/actor"
	"market-gateway/internal/domain/document"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "market-gateway/queue"

// Metrics records queue activity. A nil *Metrics records nothing.
type Metrics struct {
	messagesEnqueued metric.Int64Counter
	bundlesPeeked    metric.Int64Counter
	bundlesDequeued  metric.Int64Counter
	renderFailures   metric.Int64Counter
	bundlesPurged    metric.Int64Counter
}

// NewMetrics creates the instruments on provider, or on the global meter
// provider when provider is nil.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	var (
		m   Metrics
		err error
	)

	m.messagesEnqueued, err = meter.Int64Counter(
		"queue.messages.enqueued",
		metric.WithDescription("The number of outgoing messages placed in a bundle."),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	m.bundlesPeeked, err = meter.Int64Counter(
		"queue.bundles.peeked",
		metric.WithDescription("The number of peeks that returned a bundle."),
		metric.WithUnit("{bundle}"),
	)
	if err != nil {
		return nil, err
	}

	m.bundlesDequeued, err = meter.Int64Counter(
		"queue.bundles.dequeued",
		metric.WithDescription("The number of bundles acknowledged by their receiver."),
		metric.WithUnit("{bundle}"),
	)
	if err != nil {
		return nil, err
	}

	m.renderFailures, err = meter.Int64Counter(
		"queue.documents.render_failures",
		metric.WithDescription("The number of bundles that could not be rendered into a market document."),
		metric.WithUnit("{bundle}"),
	)
	if err != nil {
		return nil, err
	}

	m.bundlesPurged, err = meter.Int64Counter(
		"queue.bundles.purged",
		metric.WithDescription("The number of dequeued bundles deleted by retention."),
		metric.WithUnit("{bundle}"),
	)
	if err != nil {
		return nil, err
	}

	return &m, nil
}

func queueAttrs(r actor.Receiver, t document.DocumentType) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("actor.role", r.Role.String()),
		attribute.String("document.type", t.String()),
		attribute.String("document.category", string(t.Category())),
	)
}

func (m *Metrics) MessageEnqueued(ctx context.Context, r actor.Receiver, t document.DocumentType) {
	if m == nil {
		return
	}
	m.messagesEnqueued.Add(ctx, 1, queueAttrs(r, t))
}

func (m *Metrics) BundlePeeked(ctx context.Context, r actor.Receiver, t document.DocumentType, f document.DocumentFormat) {
	if m == nil {
		return
	}
	m.bundlesPeeked.Add(ctx, 1, queueAttrs(r, t), metric.WithAttributes(attribute.String("document.format", string(f))))
}

func (m *Metrics) BundleDequeued(ctx context.Context, r actor.Receiver) {
	if m == nil {
		return
	}
	m.bundlesDequeued.Add(ctx, 1, metric.WithAttributes(attribute.String("actor.role", r.Role.String())))
}

func (m *Metrics) RenderFailed(ctx context.Context, r actor.Receiver, t document.DocumentType, f document.DocumentFormat) {
	if m == nil {
		return
	}
	m.renderFailures.Add(ctx, 1, queueAttrs(r, t), metric.WithAttributes(attribute.String("document.format", string(f))))
}

func (m *Metrics) BundlesPurged(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.bundlesPurged.Add(ctx, int64(n))
}
