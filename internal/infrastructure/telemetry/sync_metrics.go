package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/erp/invoicesync/internal/domain/integration"
)

// Metric attribute keys
const (
	AttrOperation   = attribute.Key("operation")
	AttrTrigger     = attribute.Key("trigger")
	AttrStatus      = attribute.Key("status")
	AttrDecision    = attribute.Key("decision")
	AttrMethod      = attribute.Key("http.request.method")
	AttrStatusClass = attribute.Key("http.response.status_class")
)

// durationBuckets covers a sync call end to end, in seconds
var durationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// SyncMetrics records sync engine and billing client measurements.
type SyncMetrics struct {
	operations     metric.Int64Counter
	duration       metric.Float64Histogram
	corrections    metric.Int64Counter
	remoteRequests metric.Int64Counter
	remoteDuration metric.Float64Histogram
}

// NewSyncMetrics creates the sync instruments on meter.
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	operations, err := meter.Int64Counter("invoicesync.operations",
		metric.WithDescription("Sync operations by operation, trigger and final status"),
		metric.WithUnit("{operation}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create operations counter: %w", err)
	}
	duration, err := meter.Float64Histogram("invoicesync.operation.duration",
		metric.WithDescription("Sync operation duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...))
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}
	corrections, err := meter.Int64Counter("invoicesync.rounding.corrections",
		metric.WithDescription("Rounding correction decisions that needed action"),
		metric.WithUnit("{correction}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create corrections counter: %w", err)
	}
	remoteRequests, err := meter.Int64Counter("invoicesync.remote.requests",
		metric.WithDescription("Requests sent to the billing system"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create remote requests counter: %w", err)
	}
	remoteDuration, err := meter.Float64Histogram("invoicesync.remote.request.duration",
		metric.WithDescription("Billing system request duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...))
	if err != nil {
		return nil, fmt.Errorf("failed to create remote duration histogram: %w", err)
	}

	return &SyncMetrics{
		operations:     operations,
		duration:       duration,
		corrections:    corrections,
		remoteRequests: remoteRequests,
		remoteDuration: remoteDuration,
	}, nil
}

// RecordOperation counts one finished sync operation.
func (m *SyncMetrics) RecordOperation(ctx context.Context, op integration.Operation, trigger integration.Trigger, status integration.SyncStatus, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		AttrOperation.String(op.String()),
		AttrTrigger.String(string(trigger)),
		AttrStatus.String(status.String()),
	)
	m.operations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordRoundingCorrection counts an applied or over-limit correction.
func (m *SyncMetrics) RecordRoundingCorrection(ctx context.Context, decision integration.CorrectionDecision) {
	m.corrections.Add(ctx, 1, metric.WithAttributes(AttrDecision.String(string(decision))))
}

// ObserveRemoteRequest has the shape of billing.RequestObserver. A status
// code of 0 means the request never got a response.
func (m *SyncMetrics) ObserveRemoteRequest(ctx context.Context, method string, statusCode int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		AttrMethod.String(method),
		AttrStatusClass.String(statusClass(statusCode)),
	)
	m.remoteRequests.Add(ctx, 1, attrs)
	m.remoteDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// statusClass folds a status code into 2xx/4xx/5xx, or "error" when the
// request failed before a response arrived.
func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "error"
	}
	return fmt.Sprintf("%dxx", code/100)
}
