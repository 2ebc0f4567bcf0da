// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// JobQueue is the part of the job store housekeeping needs.
type JobQueue interface {
	RequeueStale(ctx context.Context, threshold time.Duration) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pruner deletes records created before a cutoff.
type Pruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// StaleJobTask requeues running jobs started more than threshold ago.
func StaleJobTask(q JobQueue, threshold time.Duration, logger *zap.Logger) Task {
	return Task{
		Name:     "stale-job-requeue",
		Interval: 5 * time.Minute,
		Timeout:  30 * time.Second,
		Run: func(ctx context.Context) error {
			n, err := q.RequeueStale(ctx, threshold)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("requeued stale running jobs", zap.Int64("count", n))
			}
			return nil
		},
	}
}

// RetentionTask deletes what p holds older than retention. name labels
// the task in logs.
func RetentionTask(name string, p Pruner, retention time.Duration, logger *zap.Logger) Task {
	return Task{
		Name:     name,
		Interval: 6 * time.Hour,
		Timeout:  time.Minute,
		Run: func(ctx context.Context) error {
			n, err := p.DeleteOlderThan(ctx, time.Now().Add(-retention))
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("pruned old records", zap.String("task", name), zap.Int64("deleted", n))
			}
			return nil
		},
	}
}
