package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"authsession/internal/telemetry"
	"authsession/internal/telemetry/domain"
)

// NewMetricsEmitter returns an EventEmitter that counts events by type and source on
// the authsession.events counter.
func NewMetricsEmitter(mp metric.MeterProvider) (telemetry.EventEmitter, error) {
	counter, err := mp.Meter(instrumentationName).Int64Counter(
		"authsession.events",
		metric.WithDescription("Authentication events by type and source"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}
	return &metricsEmitter{counter: counter}, nil
}

type metricsEmitter struct {
	counter metric.Int64Counter
}

func (m *metricsEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return nil
	}
	m.counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", event.Type),
		attribute.String("source", event.Source),
	))
	return nil
}
