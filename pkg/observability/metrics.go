package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Alijeyrad/rookie_backend/internal/schema"
)

// DomainMetrics holds the business counters. Instruments are taken from the
// global meter provider, so Init must run first for them to be exported.
type DomainMetrics struct {
	transitions metric.Int64Counter
	webhooks    metric.Int64Counter
	jobRuns     metric.Int64Counter
	jobItems    metric.Int64Counter
}

func NewDomainMetrics() (*DomainMetrics, error) {
	return newDomainMetrics(otel.Meter(instrumentationName))
}

func newDomainMetrics(meter metric.Meter) (*DomainMetrics, error) {
	var (
		m   DomainMetrics
		err error
	)
	if m.transitions, err = meter.Int64Counter(
		"booking_transitions_total",
		metric.WithDescription("Committed booking status transitions"),
	); err != nil {
		return nil, err
	}
	if m.webhooks, err = meter.Int64Counter(
		"payment_webhook_events_total",
		metric.WithDescription("Payment processor events by outcome"),
	); err != nil {
		return nil, err
	}
	if m.jobRuns, err = meter.Int64Counter(
		"job_runs_total",
		metric.WithDescription("Background job runs by result"),
	); err != nil {
		return nil, err
	}
	if m.jobItems, err = meter.Int64Counter(
		"job_items_total",
		metric.WithDescription("Records handled by background jobs"),
	); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordTransition counts a committed booking status change. from is empty
// for newly created bookings.
func (m *DomainMetrics) RecordTransition(ctx context.Context, from, to schema.BookingStatus) {
	if from == "" {
		from = "new"
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	))
}

func (m *DomainMetrics) RecordWebhook(ctx context.Context, kind, outcome string) {
	m.webhooks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

func (m *DomainMetrics) RecordJob(ctx context.Context, job string, items int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.jobRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job", job),
		attribute.String("result", result),
	))
	if items > 0 {
		m.jobItems.Add(ctx, int64(items), metric.WithAttributes(attribute.String("job", job)))
	}
}
