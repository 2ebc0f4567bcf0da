// internal/app/system/memberfix/runner.go
package memberfix

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	memberstore "github.com/dalemusser/stratamembers/internal/app/store/members"
	"github.com/dalemusser/stratamembers/internal/app/system/address"
	"github.com/dalemusser/stratamembers/internal/app/system/metrics"
	"github.com/dalemusser/stratamembers/internal/app/system/qualtype"
	"github.com/dalemusser/stratamembers/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Batch names, used as job types and metric labels.
const (
	BatchAddressFix    = "address_fix"
	BatchTypeMigration = "type_migration"
)

// MaxReportedChanges caps Report.Changes so a large preview stays renderable.
const MaxReportedChanges = 200

// Source yields every member record once.
type Source interface {
	Each(ctx context.Context, fn func(models.Member) error) error
}

// Writer persists one record's repair in a single write.
type Writer interface {
	ApplyNormalization(ctx context.Context, id primitive.ObjectID, p memberstore.Patch) error
}

// Config controls a Runner.
type Config struct {
	Concurrency int  // concurrent writes; values below 1 mean 1
	DryRun      bool // plan and tally without writing
	Splitter    *address.Splitter
	Rule        qualtype.Rule
}

// Runner applies the address and qualification repairs across all members.
type Runner struct {
	src     Source
	dst     Writer
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewRunner creates a Runner. A zero Rule falls back to qualtype.DefaultRule
// and a nil Splitter to the default splitter.
func NewRunner(src Source, dst Writer, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Runner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Splitter == nil {
		cfg.Splitter = address.NewSplitter()
	}
	if cfg.Rule.Replacement == "" {
		cfg.Rule = qualtype.DefaultRule()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{src: src, dst: dst, cfg: cfg, logger: logger, metrics: m}
}

// RunAddressFix converts full-width characters and splits embedded street
// numbers on every member.
func (r *Runner) RunAddressFix(ctx context.Context) (Report, error) {
	return r.run(ctx, BatchAddressFix, func(m models.Member, t *tally) (memberstore.Patch, bool) {
		ch, ok := PlanAddress(m, r.cfg.Splitter)
		if !ok {
			return memberstore.Patch{}, false
		}
		t.addressChange(m, ch)
		return ch.Patch, true
	})
}

// RunTypeMigration folds deprecated qualification tags into the replacement.
func (r *Runner) RunTypeMigration(ctx context.Context) (Report, error) {
	return r.run(ctx, BatchTypeMigration, func(m models.Member, t *tally) (memberstore.Patch, bool) {
		ch, ok := PlanTypes(m, r.cfg.Rule)
		if !ok {
			return memberstore.Patch{}, false
		}
		t.typesChange(m, ch)
		return ch.Patch, true
	})
}

type planFunc func(m models.Member, t *tally) (memberstore.Patch, bool)

// run streams every record through plan and issues one write per changed
// record with at most cfg.Concurrency writes in flight. A failed write is
// recorded in the report and does not stop the batch. Cancelling ctx stops
// new writes; the partial report is returned with ctx's error.
func (r *Runner) run(ctx context.Context, batch string, plan planFunc) (Report, error) {
	t := &tally{report: Report{
		Batch:     batch,
		RunID:     uuid.New().String(),
		DryRun:    r.cfg.DryRun,
		StartedAt: time.Now().UTC(),
	}}
	log := r.logger.With(zap.String("batch", batch), zap.String("run_id", t.report.RunID))
	log.Info("member batch started", zap.Bool("dry_run", r.cfg.DryRun), zap.Int("concurrency", r.cfg.Concurrency))

	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)

	iterErr := r.src.Each(ctx, func(m models.Member) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		t.seen()

		patch, changed := plan(m, t)
		if !changed {
			r.metrics.IncBatchRecord(batch, "unchanged")
			return nil
		}
		if r.cfg.DryRun {
			r.record(batch, t, m, nil)
			return nil
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				r.record(batch, t, m, err)
				return nil
			}
			err := r.dst.ApplyNormalization(ctx, m.ID, patch)
			if err != nil {
				log.Warn("member write failed", zap.String("member_id", m.ID.Hex()), zap.Error(err))
			}
			r.record(batch, t, m, err)
			return nil
		})
		return nil
	})
	_ = g.Wait()

	rep := t.finish()
	r.metrics.ObserveBatch(batch, rep.FinishedAt.Sub(rep.StartedAt))

	fields := []zap.Field{
		zap.Int("total", rep.Total),
		zap.Int("changed", rep.Changed),
		zap.Int("fixed", rep.Fixed),
		zap.Int("converted", rep.Converted),
		zap.Int("migrated", rep.Migrated),
		zap.Int("failed", rep.Failed),
	}
	if iterErr != nil {
		if errors.Is(iterErr, context.Canceled) || errors.Is(iterErr, context.DeadlineExceeded) {
			log.Warn("member batch interrupted", append(fields, zap.Error(iterErr))...)
		} else {
			log.Error("member batch aborted", append(fields, zap.Error(iterErr))...)
		}
		return rep, iterErr
	}
	log.Info("member batch finished", fields...)
	return rep, nil
}

// record tallies the outcome of one planned write.
func (r *Runner) record(batch string, t *tally, m models.Member, err error) {
	if err != nil {
		t.fail(m, err)
		r.metrics.IncBatchRecord(batch, "failed")
		return
	}
	kinds := t.succeed(m.ID)
	for _, k := range kinds {
		r.metrics.IncBatchRecord(batch, k)
	}
}

// tally accumulates a Report from concurrent writers.
type tally struct {
	mu      sync.Mutex
	report  Report
	pending map[primitive.ObjectID][]string // outcome kinds awaiting the write
}

func (t *tally) seen() {
	t.mu.Lock()
	t.report.Total++
	t.mu.Unlock()
}

func (t *tally) addChange(id primitive.ObjectID, kinds []string, c Change) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == nil {
		t.pending = map[primitive.ObjectID][]string{}
	}
	t.pending[id] = kinds
	t.report.Changed++
	if len(t.report.Changes) < MaxReportedChanges {
		t.report.Changes = append(t.report.Changes, c)
	}
}

func (t *tally) addressChange(m models.Member, ch AddressChange) {
	var kinds []string
	if ch.Converted {
		kinds = append(kinds, "converted")
	}
	if ch.Split {
		kinds = append(kinds, "split")
	}
	t.addChange(m.ID, kinds, Change{
		MemberID: m.ID.Hex(),
		Name:     m.Name,
		Before:   address.Join(ch.BeforeAddress, ch.BeforeStreet),
		After:    address.Join(ch.AfterAddress, ch.AfterStreet),
	})
}

func (t *tally) typesChange(m models.Member, ch TypesChange) {
	t.addChange(m.ID, []string{"migrated"}, Change{
		MemberID: m.ID.Hex(),
		Name:     m.Name,
		Before:   strings.Join(ch.Before, "、"),
		After:    strings.Join(ch.After, "、"),
	})
}

func (t *tally) succeed(id primitive.ObjectID) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	kinds := t.pending[id]
	delete(t.pending, id)
	for _, k := range kinds {
		switch k {
		case "converted":
			t.report.Converted++
		case "split":
			t.report.Fixed++
		case "migrated":
			t.report.Migrated++
		}
	}
	return kinds
}

func (t *tally) fail(m models.Member, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, m.ID)
	t.report.Failed++
	t.report.Failures = append(t.report.Failures, Failure{
		MemberID: m.ID.Hex(),
		Name:     m.Name,
		Error:    err.Error(),
	})
}

func (t *tally) finish() Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.report.FinishedAt = time.Now().UTC()
	return t.report
}
