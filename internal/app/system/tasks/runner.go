// internal/app/system/tasks/runner.go
package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrUnknownTask is returned by RunOnce for an unregistered name.
var ErrUnknownTask = errors.New("unknown task")

// Task is periodic housekeeping, such as pruning old jobs.
type Task struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration // per run; zero means no limit beyond shutdown
	Run      func(ctx context.Context) error
}

// Runner runs each registered Task on its interval, once immediately at start.
type Runner struct {
	logger  *zap.Logger
	tasks   []Task
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	running atomic.Int32
	names   sync.Map // tasks currently executing
}

// New creates a task runner.
func New(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger}
}

// Register adds a task. Call before Start.
func (r *Runner) Register(t Task) {
	r.tasks = append(r.tasks, t)
}

// Start launches one goroutine per task.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	for _, t := range r.tasks {
		r.wg.Add(1)
		go r.loop(ctx, t)
	}
	r.logger.Info("background task runner started", zap.Int("task_count", len(r.tasks)))
}

// Stop cancels the tasks and waits for them until ctx expires, returning
// ctx.Err() on timeout.
func (r *Runner) Stop(ctx context.Context) error {
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
		r.logger.Info("background task runner stopped gracefully")
		return nil
	case <-ctx.Done():
		var still []string
		r.names.Range(func(key, _ any) bool {
			still = append(still, key.(string))
			return true
		})
		r.logger.Warn("background task runner shutdown timed out",
			zap.Strings("tasks_still_running", still),
			zap.Int32("running_count", r.running.Load()))
		return ctx.Err()
	}
}

func (r *Runner) loop(ctx context.Context, t Task) {
	defer r.wg.Done()

	r.execute(ctx, t)

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("task stopped", zap.String("task", t.Name))
			return
		case <-ticker.C:
			r.execute(ctx, t)
		}
	}
}

func (r *Runner) execute(ctx context.Context, t Task) {
	r.running.Add(1)
	r.names.Store(t.Name, struct{}{})
	defer func() {
		r.running.Add(-1)
		r.names.Delete(t.Name)
	}()

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := t.Run(ctx)
	switch {
	case err == nil:
		r.logger.Debug("task completed", zap.String("task", t.Name), zap.Duration("duration", time.Since(start)))
	case errors.Is(err, context.Canceled):
		r.logger.Debug("task cancelled during shutdown", zap.String("task", t.Name))
	default:
		r.logger.Error("task failed",
			zap.String("task", t.Name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
	}
}

// RunOnce runs the named task synchronously.
func (r *Runner) RunOnce(ctx context.Context, name string) error {
	for _, t := range r.tasks {
		if t.Name == name {
			return t.Run(ctx)
		}
	}
	return ErrUnknownTask
}
