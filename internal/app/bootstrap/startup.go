// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"time"

	"github.com/dalemusser/stratamembers/internal/app/features/maintenance"
	"github.com/dalemusser/stratamembers/internal/app/resources"
	"github.com/dalemusser/stratamembers/internal/app/store/audit"
	jobstore "github.com/dalemusser/stratamembers/internal/app/store/jobs"
	memberstore "github.com/dalemusser/stratamembers/internal/app/store/members"
	"github.com/dalemusser/stratamembers/internal/app/system/auditlog"
	"github.com/dalemusser/stratamembers/internal/app/system/jobrunner"
	"github.com/dalemusser/stratamembers/internal/app/system/memberfix"
	"github.com/dalemusser/stratamembers/internal/app/system/tasks"
	"github.com/dalemusser/stratamembers/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// staleJobThreshold is how long a job may sit in running before it is
// treated as orphaned by a dead worker.
const staleJobThreshold = time.Hour

// Startup runs once after DB connections and schema/index setup are complete,
// but before the HTTP handler is built and requests are served.
//
// It loads the shared templates and starts the maintenance job runner and
// the housekeeping task runner. Returning a non-nil error aborts startup.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	resources.LoadSharedTemplates()
	viewdata.Init(appCfg.SiteName)

	// Note: Indexes are created in EnsureSchema via indexes.EnsureAll().

	if err := startJobRunner(appCfg, deps, logger); err != nil {
		logger.Error("failed to start job runner", zap.Error(err))
		return err
	}
	startTaskRunner(appCfg, deps, logger)

	return nil
}

// Runners are package-level so Shutdown can stop them.
var (
	jobRunner  *jobrunner.Runner
	taskRunner *tasks.Runner
)

// batchConfig is the memberfix configuration shared by the maintenance
// preview and the queued batches.
func batchConfig(appCfg AppConfig, deps DBDeps) memberfix.Config {
	return memberfix.Config{
		Concurrency: appCfg.MaintenanceConcurrency,
		Splitter:    deps.Splitter,
		Rule:        migrationRule(appCfg),
	}
}

func newAuditLogger(appCfg AppConfig, deps DBDeps, logger *zap.Logger) *auditlog.Logger {
	return auditlog.New(audit.New(deps.MongoDatabase), logger, auditlog.Config{
		Auth:    appCfg.AuditLogAuth,
		Members: appCfg.AuditLogMembers,
	})
}

// startJobRunner registers the maintenance batches and starts polling.
func startJobRunner(appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	jobRunner = jobrunner.New(jobstore.New(deps.MongoDatabase), logger, deps.Metrics, jobrunner.Config{
		WorkerCount: appCfg.JobWorkers,
	})
	maintenance.RegisterJobs(
		jobRunner,
		memberstore.New(deps.MongoDatabase),
		batchConfig(appCfg, deps),
		newAuditLogger(appCfg, deps, logger),
		logger,
		deps.Metrics,
	)
	return jobRunner.Start()
}

// startTaskRunner initializes and starts the housekeeping tasks.
func startTaskRunner(appCfg AppConfig, deps DBDeps, logger *zap.Logger) {
	taskRunner = tasks.New(logger)

	jobs := jobstore.New(deps.MongoDatabase)
	taskRunner.Register(tasks.StaleJobTask(jobs, staleJobThreshold, logger))
	if appCfg.JobRetention > 0 {
		taskRunner.Register(tasks.RetentionTask("job-retention", jobs, appCfg.JobRetention, logger))
	}
	if appCfg.AuditRetention > 0 {
		taskRunner.Register(tasks.RetentionTask("audit-retention", audit.New(deps.MongoDatabase), appCfg.AuditRetention, logger))
	}

	taskRunner.Start()
}
