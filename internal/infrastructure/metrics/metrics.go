// Package metrics exposes the ledger's OpenTelemetry instruments.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "fieldledger"

// Metrics holds the ledger counters. A nil *Metrics records nothing.
type Metrics struct {
	allocations    metric.Int64Counter
	refills        metric.Int64Counter
	outboxFailures metric.Int64Counter
	reservations   metric.Int64Counter
}

// New creates the instruments on provider. A nil provider uses the global one,
// which is a no-op unless the host installed an SDK provider.
func New(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	allocations, err := meter.Int64Counter("ledger.numbering.allocations",
		metric.WithDescription("final number allocations by result"))
	if err != nil {
		return nil, err
	}
	refills, err := meter.Int64Counter("ledger.numbering.refills",
		metric.WithDescription("range refill attempts by result"))
	if err != nil {
		return nil, err
	}
	outboxFailures, err := meter.Int64Counter("ledger.outbox.emit_failures")
	if err != nil {
		return nil, err
	}
	reservations, err := meter.Int64Counter("ledger.authority.reserved_numbers",
		metric.WithDescription("numbers granted by the reservation authority"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		allocations:    allocations,
		refills:        refills,
		outboxFailures: outboxFailures,
		reservations:   reservations,
	}, nil
}

// RecordAllocation counts one allocation; result is "final" or "placeholder".
func (m *Metrics) RecordAllocation(ctx context.Context, kind, result string) {
	if m == nil {
		return
	}
	m.allocations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("result", result),
	))
}

// RecordRefill counts one refill attempt; result is "ok" or "failed".
func (m *Metrics) RecordRefill(ctx context.Context, kind, result string) {
	if m == nil {
		return
	}
	m.refills.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("result", result),
	))
}

// RecordOutboxFailure counts an operation the emitter refused.
func (m *Metrics) RecordOutboxFailure(ctx context.Context, entityKind string) {
	if m == nil {
		return
	}
	m.outboxFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("entity_kind", entityKind)))
}

// RecordReservation counts numbers handed out by the authority.
func (m *Metrics) RecordReservation(ctx context.Context, kind string, count int) {
	if m == nil {
		return
	}
	m.reservations.Add(ctx, int64(count), metric.WithAttributes(attribute.String("kind", kind)))
}
