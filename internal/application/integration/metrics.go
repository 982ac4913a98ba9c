package integration

import (
	"context"
	"time"

	"github.com/erp/invoicesync/internal/domain/integration"
)

// Metrics receives sync engine measurements
type Metrics interface {
	RecordOperation(ctx context.Context, op integration.Operation, trigger integration.Trigger, status integration.SyncStatus, elapsed time.Duration)
	RecordRoundingCorrection(ctx context.Context, decision integration.CorrectionDecision)
}

type noopMetrics struct{}

func (noopMetrics) RecordOperation(context.Context, integration.Operation, integration.Trigger, integration.SyncStatus, time.Duration) {
}

func (noopMetrics) RecordRoundingCorrection(context.Context, integration.CorrectionDecision) {}
