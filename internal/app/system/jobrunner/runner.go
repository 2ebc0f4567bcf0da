// internal/app/system/jobrunner/runner.go
package jobrunner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	jobstore "github.com/dalemusser/stratamembers/internal/app/store/jobs"
	"github.com/dalemusser/stratamembers/internal/app/system/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler processes a claimed job. A non-nil result is stored even when
// err is set, so a batch that stops halfway keeps its partial report.
type Handler func(ctx context.Context, job jobstore.Job) (map[string]any, error)

// ErrNoHandler is recorded on jobs whose type has no registered handler.
var ErrNoHandler = errors.New("no handler registered for job type")

// Config holds configuration for the job runner.
type Config struct {
	// WorkerCount is the number of concurrent workers per queue.
	WorkerCount int
	// PollInterval is how often an idle worker polls for new jobs.
	PollInterval time.Duration
	// RetryDelay is multiplied by the attempt number before a retry.
	RetryDelay time.Duration
	// JobTimeout bounds one handler call.
	JobTimeout time.Duration
}

// DefaultConfig returns the defaults used by the server.
func DefaultConfig() Config {
	return Config{
		WorkerCount:  1,
		PollInterval: 2 * time.Second,
		RetryDelay:   30 * time.Second,
		JobTimeout:   30 * time.Minute,
	}
}

// Runner polls queues and dispatches jobs to handlers by job type.
type Runner struct {
	store   *jobstore.Store
	logger  *zap.Logger
	metrics *metrics.Metrics
	config  Config

	workerID   string
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	running    atomic.Int32
	activeJobs sync.Map // job ID hex -> job type

	mu       sync.RWMutex
	handlers map[string]Handler
	queues   map[string]bool
	started  bool
}

// New creates a job runner. Zero fields in cfg take their defaults.
func New(store *jobstore.Store, logger *zap.Logger, m *metrics.Metrics, cfg Config) *Runner {
	def := DefaultConfig()
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		store:    store,
		logger:   logger,
		metrics:  m,
		config:   cfg,
		workerID: uuid.New().String()[:8],
		handlers: make(map[string]Handler),
		queues:   make(map[string]bool),
	}
}

// Register sets the handler for jobType and enables its queue.
func (r *Runner) Register(queueName, jobType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = h
	r.queues[queueName] = true
}

// Start launches the workers. It returns an error when called twice.
func (r *Runner) Start() error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return fmt.Errorf("runner already started")
	}
	r.started = true
	queues := make([]string, 0, len(r.queues))
	for q := range r.queues {
		queues = append(queues, q)
	}
	r.mu.Unlock()
	sort.Strings(queues)

	if len(queues) == 0 {
		r.logger.Warn("job runner started with no queues registered")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	for _, q := range queues {
		for i := 0; i < r.config.WorkerCount; i++ {
			r.wg.Add(1)
			go r.worker(ctx, q, fmt.Sprintf("%s-%s-%d", r.workerID, q, i))
		}
	}

	r.logger.Info("job runner started",
		zap.Strings("queues", queues),
		zap.Int("workers_per_queue", r.config.WorkerCount))
	return nil
}

// Stop cancels the workers and waits for in-flight jobs until ctx expires.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		return nil
	}
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("job runner stopped gracefully")
		return nil
	case <-ctx.Done():
		var active []string
		r.activeJobs.Range(func(key, _ any) bool {
			active = append(active, key.(string))
			return true
		})
		r.logger.Warn("job runner shutdown timed out",
			zap.Int32("active_jobs", r.running.Load()),
			zap.Strings("job_ids", active))
		return ctx.Err()
	}
}

// ActiveJobs is the number of jobs currently executing in this process.
func (r *Runner) ActiveJobs() int32 {
	return r.running.Load()
}

func (r *Runner) worker(ctx context.Context, queueName, workerName string) {
	defer r.wg.Done()
	r.logger.Debug("worker started", zap.String("worker", workerName), zap.String("queue", queueName))

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("worker stopping", zap.String("worker", workerName))
			return
		case <-ticker.C:
			// Drain the queue before waiting for the next tick.
			for ctx.Err() == nil {
				ok, err := r.RunNext(ctx, queueName, workerName)
				if err != nil && ctx.Err() == nil {
					r.logger.Error("failed to claim job", zap.String("queue", queueName), zap.Error(err))
				}
				if !ok || err != nil {
					break
				}
			}
		}
	}
}

// RunNext claims and runs one job from queueName. It reports whether a job
// was found; the error covers claiming only, handler failures are stored on
// the job.
func (r *Runner) RunNext(ctx context.Context, queueName, workerName string) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	job, err := r.store.ClaimNext(claimCtx, queueName, workerName)
	cancel()
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	id := job.ID.Hex()
	r.running.Add(1)
	r.activeJobs.Store(id, job.JobType)
	defer func() {
		r.running.Add(-1)
		r.activeJobs.Delete(id)
	}()

	log := r.logger.With(
		zap.String("job_id", id),
		zap.String("job_type", job.JobType),
		zap.Int("attempt", job.Attempts))

	r.mu.RLock()
	handler, ok := r.handlers[job.JobType]
	r.mu.RUnlock()
	if !ok {
		log.Error("no handler registered for job type")
		r.finish(log, *job, nil, fmt.Errorf("%w: %s", ErrNoHandler, job.JobType))
		return true, nil
	}

	start := time.Now()
	log.Info("job started")

	jobCtx, jobCancel := context.WithTimeout(ctx, r.config.JobTimeout)
	result, herr := handler(jobCtx, *job)
	jobCancel()

	if herr != nil {
		log.Warn("job failed", zap.Duration("duration", time.Since(start)), zap.Error(herr))
	} else {
		log.Info("job completed", zap.Duration("duration", time.Since(start)))
	}
	r.finish(log, *job, result, herr)
	return true, nil
}

// finish stores the outcome with a context detached from shutdown so a job
// interrupted by Stop still records its partial result.
func (r *Runner) finish(log *zap.Logger, job jobstore.Job, result map[string]any, herr error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if herr == nil {
		if err := r.store.Complete(ctx, job.ID, result); err != nil {
			log.Error("failed to mark job as completed", zap.Error(err))
		}
		r.metrics.IncJobFinished(job.JobType, jobstore.StatusCompleted)
		return
	}

	delay := r.config.RetryDelay * time.Duration(job.Attempts)
	if err := r.store.Fail(ctx, job.ID, herr.Error(), result, delay); err != nil {
		log.Error("failed to mark job as failed", zap.Error(err))
	}
	r.metrics.IncJobFinished(job.JobType, jobstore.StatusFailed)
}
