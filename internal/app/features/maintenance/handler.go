// internal/app/features/maintenance/handler.go
package maintenance

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	errorsfeature "github.com/dalemusser/stratamembers/internal/app/features/errors"
	jobstore "github.com/dalemusser/stratamembers/internal/app/store/jobs"
	memberstore "github.com/dalemusser/stratamembers/internal/app/store/members"
	"github.com/dalemusser/stratamembers/internal/app/system/address"
	"github.com/dalemusser/stratamembers/internal/app/system/auditlog"
	"github.com/dalemusser/stratamembers/internal/app/system/auth"
	"github.com/dalemusser/stratamembers/internal/app/system/memberfix"
	"github.com/dalemusser/stratamembers/internal/app/system/qualtype"
	"github.com/dalemusser/stratamembers/internal/app/system/timeouts"
	"github.com/dalemusser/stratamembers/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler handles the maintenance pages.
type Handler struct {
	Members     *memberstore.Store
	Jobs        *jobstore.Store
	Batch       memberfix.Config
	ErrLog      *errorsfeature.ErrorLogger
	AuditLogger *auditlog.Logger
	Log         *zap.Logger
}

// NewHandler creates a new maintenance handler. batch carries the splitter
// and migration rule used both for previews and for queued runs.
func NewHandler(db *mongo.Database, batch memberfix.Config, errLog *errorsfeature.ErrorLogger, auditLogger *auditlog.Logger, logger *zap.Logger) *Handler {
	if batch.Splitter == nil {
		batch.Splitter = address.NewSplitter()
	}
	if batch.Rule.Replacement == "" {
		batch.Rule = qualtype.DefaultRule()
	}
	return &Handler{
		Members:     memberstore.New(db),
		Jobs:        jobstore.New(db),
		Batch:       batch,
		ErrLog:      errLog,
		AuditLogger: auditLogger,
		Log:         logger,
	}
}

// preview dry-runs both batches.
func (h *Handler) preview(ctx context.Context) (addr, types memberfix.Report, err error) {
	cfg := h.Batch
	cfg.DryRun = true
	runner := memberfix.NewRunner(h.Members, h.Members, cfg, h.Log, nil)
	if addr, err = runner.RunAddressFix(ctx); err != nil {
		return addr, types, err
	}
	types, err = runner.RunTypeMigration(ctx)
	return addr, types, err
}

// ServePreview handles GET /maintenance.
func (h *Handler) ServePreview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	addr, types, err := h.preview(ctx)
	if err != nil {
		h.ErrLog.Log(r, "failed to preview member batches", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	recent, err := h.Jobs.List(ctx, jobstore.ListFilter{QueueName: QueueName}, 1, 10)
	if err != nil {
		h.ErrLog.Log(r, "failed to load recent jobs", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	recentVMs := make([]JobVM, len(recent.Jobs))
	for i, j := range recent.Jobs {
		recentVMs[i] = toJobVM(j)
	}

	data := PreviewVM{
		BaseVM:        viewdata.NewBaseVM(r, "データ整備", "/dashboard"),
		Address:       addr,
		Types:         types,
		Replacement:   h.Batch.Rule.Replacement,
		Deprecated:    joinSorted(h.Batch.Rule.Deprecated.Sorted()),
		LooseFallback: h.Batch.Splitter.LooseFallback(),
		Recent:        recentVMs,
	}

	templates.Render(w, r, "maintenance/index", data)
}

// HandleEnqueue returns the POST handler that queues batch. Only one job per
// batch may be pending or running; a second request is sent to the one
// already queued.
func (h *Handler) HandleEnqueue(batch string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		defer cancel()

		actor, _ := auth.CurrentUser(r)
		in := jobstore.CreateInput{
			QueueName:   QueueName,
			JobType:     batch,
			MaxAttempts: 1,
			Payload:     map[string]any{"requested_by_login": actor.LoginID},
		}
		if id, err := primitive.ObjectIDFromHex(actor.ID); err == nil {
			in.RequestedBy = &id
		}

		job, err := h.Jobs.EnqueueExclusive(ctx, in)
		if errors.Is(err, jobstore.ErrAlreadyActive) {
			http.Redirect(w, r, "/maintenance/jobs/"+job.ID.Hex()+"?notice=active", http.StatusSeeOther)
			return
		}
		if err != nil {
			h.ErrLog.Log(r, "failed to enqueue batch", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		h.AuditLogger.BatchEnqueued(ctx, r, actor.ID, job.ID, batch)
		h.Log.Info("member batch queued", zap.String("batch", batch), zap.String("job_id", job.ID.Hex()))
		http.Redirect(w, r, "/maintenance/jobs/"+job.ID.Hex(), http.StatusSeeOther)
	}
}

// ServeList handles GET /maintenance/jobs.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	filter := jobstore.ListFilter{
		QueueName: QueueName,
		JobType:   r.URL.Query().Get("type"),
		Status:    r.URL.Query().Get("status"),
	}

	result, err := h.Jobs.List(ctx, filter, page, 25)
	if err != nil {
		h.ErrLog.Log(r, "failed to load jobs", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	jobVMs := make([]JobVM, len(result.Jobs))
	for i, j := range result.Jobs {
		jobVMs[i] = toJobVM(j)
	}

	data := JobListVM{
		BaseVM: viewdata.NewBaseVM(r, "実行履歴", "/maintenance"),
		Jobs:   jobVMs,
		Filter: filter,
		JobTypes: []JobTypeOption{
			{Value: memberfix.BatchAddressFix, Label: batchLabel(memberfix.BatchAddressFix)},
			{Value: memberfix.BatchTypeMigration, Label: batchLabel(memberfix.BatchTypeMigration)},
		},
		Statuses: []string{
			jobstore.StatusPending, jobstore.StatusRunning, jobstore.StatusCompleted,
			jobstore.StatusFailed, jobstore.StatusCancelled,
		},
		Page:       result.Page,
		TotalPages: result.TotalPages,
		TotalCount: result.TotalCount,
	}
	if result.Page > 1 {
		data.PrevURL = listURL(filter, result.Page-1)
	}
	if result.Page < result.TotalPages {
		data.NextURL = listURL(filter, result.Page+1)
	}

	templates.Render(w, r, "maintenance/jobs", data)
}

func listURL(f jobstore.ListFilter, page int) string {
	v := url.Values{}
	if f.JobType != "" {
		v.Set("type", f.JobType)
	}
	if f.Status != "" {
		v.Set("status", f.Status)
	}
	v.Set("page", strconv.Itoa(page))
	return "/maintenance/jobs?" + v.Encode()
}

// ServeDetail handles GET /maintenance/jobs/{id}.
func (h *Handler) ServeDetail(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	job, err := h.Jobs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		h.ErrLog.Log(r, "failed to load job", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	vm := toJobVM(*job)
	base := viewdata.NewBaseVM(r, vm.Label, "/maintenance/jobs")
	data := JobDetailVM{BaseVM: base, Job: vm}
	if r.URL.Query().Get("notice") == "active" {
		data.Notice = "同じ処理がすでに待機中または実行中です。"
	}
	templates.Render(w, r, "maintenance/job", data)
}

// HandleCancel handles POST /maintenance/jobs/{id}/cancel. Only a job that
// has not started can be cancelled.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	idStr := chi.URLParam(r, "id")
	id, err := primitive.ObjectIDFromHex(idStr)
	if err != nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	if err := h.Jobs.Cancel(ctx, id); err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		h.ErrLog.Log(r, "failed to cancel job", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.Log.Info("member batch cancelled", zap.String("job_id", idStr))
	http.Redirect(w, r, "/maintenance/jobs/"+idStr, http.StatusSeeOther)
}
