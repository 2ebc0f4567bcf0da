// internal/app/features/maintenance/jobs.go
package maintenance

import (
	"context"

	jobstore "github.com/dalemusser/stratamembers/internal/app/store/jobs"
	"github.com/dalemusser/stratamembers/internal/app/system/auditlog"
	"github.com/dalemusser/stratamembers/internal/app/system/jobrunner"
	"github.com/dalemusser/stratamembers/internal/app/system/memberfix"
	"github.com/dalemusser/stratamembers/internal/app/system/metrics"
	"go.uber.org/zap"
)

// QueueName is the job queue member batches run on.
const QueueName = "maintenance"

// RegisterJobs teaches runner to execute the member batches. Each run writes
// through src, which is usually the member store.
func RegisterJobs(runner *jobrunner.Runner, src BatchStore, cfg memberfix.Config, auditLogger *auditlog.Logger, logger *zap.Logger, m *metrics.Metrics) {
	cfg.DryRun = false
	newRunner := func() *memberfix.Runner {
		return memberfix.NewRunner(src, src, cfg, logger, m)
	}
	runner.Register(QueueName, memberfix.BatchAddressFix, batchHandler(memberfix.BatchAddressFix, auditLogger, func(ctx context.Context) (memberfix.Report, error) {
		return newRunner().RunAddressFix(ctx)
	}))
	runner.Register(QueueName, memberfix.BatchTypeMigration, batchHandler(memberfix.BatchTypeMigration, auditLogger, func(ctx context.Context) (memberfix.Report, error) {
		return newRunner().RunTypeMigration(ctx)
	}))
}

// BatchStore is what a batch reads from and writes to.
type BatchStore interface {
	memberfix.Source
	memberfix.Writer
}

func batchHandler(batch string, auditLogger *auditlog.Logger, run func(context.Context) (memberfix.Report, error)) jobrunner.Handler {
	return func(ctx context.Context, job jobstore.Job) (map[string]any, error) {
		rep, runErr := run(ctx)
		auditLogger.BatchFinished(context.WithoutCancel(ctx), job.ID, batch, rep.Total, rep.Changed, rep.Failed, runErr)

		result, err := rep.ToMap()
		if err != nil && runErr == nil {
			runErr = err
		}
		return result, runErr
	}
}
