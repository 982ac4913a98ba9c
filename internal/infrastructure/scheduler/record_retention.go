package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RecordPurger deletes audit records older than a cutoff
type RecordPurger interface {
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RecordRetentionTask returns a task that keeps the sync audit trail to the
// last retention period
func RecordRetentionTask(purger RecordPurger, retention time.Duration, logger *zap.Logger) Task {
	return recordRetention(purger, retention, logger, time.Now)
}

func recordRetention(purger RecordPurger, retention time.Duration, logger *zap.Logger, now func() time.Time) Task {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context) error {
		cutoff := now().Add(-retention)
		removed, err := purger.DeleteCreatedBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		logger.Info("Purged expired sync records",
			zap.Int64("removed", removed),
			zap.Time("cutoff", cutoff))
		return nil
	}
}
