package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "isp-admin/reconciler"

// ReconcilerMetrics are the instruments recorded by every reconciliation run.
// A nil *ReconcilerMetrics records nothing.
type ReconcilerMetrics struct {
	runs          metric.Int64Counter
	expired       metric.Int64Counter
	expiringSoon  metric.Int64Counter
	writeFailures metric.Int64Counter
	duration      metric.Float64Histogram
}

// NewReconcilerMetrics creates the instruments on the global meter provider
func NewReconcilerMetrics() (*ReconcilerMetrics, error) {
	return NewReconcilerMetricsFrom(otel.GetMeterProvider())
}

// NewReconcilerMetricsFrom creates the instruments on a specific provider
func NewReconcilerMetricsFrom(mp metric.MeterProvider) (*ReconcilerMetrics, error) {
	meter := mp.Meter(meterName)

	runs, err := meter.Int64Counter("reconciler.runs",
		metric.WithDescription("Reconciliation runs by outcome"))
	if err != nil {
		return nil, err
	}
	expired, err := meter.Int64Counter("reconciler.subscriptions.expired",
		metric.WithDescription("Subscriptions transitioned to expired"))
	if err != nil {
		return nil, err
	}
	expiringSoon, err := meter.Int64Counter("reconciler.subscriptions.expiring_soon",
		metric.WithDescription("Subscriptions flagged as expiring soon"))
	if err != nil {
		return nil, err
	}
	writeFailures, err := meter.Int64Counter("reconciler.write_failures",
		metric.WithDescription("Per-record status writes that failed"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("reconciler.duration",
		metric.WithDescription("Wall time of a reconciliation run"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &ReconcilerMetrics{
		runs:          runs,
		expired:       expired,
		expiringSoon:  expiringSoon,
		writeFailures: writeFailures,
		duration:      duration,
	}, nil
}

// RecordRun records one finished run. outcome is "complete", "incomplete" or "failed".
func (m *ReconcilerMetrics) RecordRun(ctx context.Context, outcome string, expired, expiringSoon, failures int, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.runs.Add(ctx, 1, attrs)
	m.expired.Add(ctx, int64(expired))
	m.expiringSoon.Add(ctx, int64(expiringSoon))
	m.writeFailures.Add(ctx, int64(failures))
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}
