// internal/app/features/dashboard/dashboard.go
package dashboard

import (
	"errors"
	"net/http"

	errorsfeature "github.com/dalemusser/stratamembers/internal/app/features/errors"
	jobstore "github.com/dalemusser/stratamembers/internal/app/store/jobs"
	memberstore "github.com/dalemusser/stratamembers/internal/app/store/members"
	"github.com/dalemusser/stratamembers/internal/app/system/auth"
	"github.com/dalemusser/stratamembers/internal/app/system/memberfix"
	"github.com/dalemusser/stratamembers/internal/app/system/viewdata"
	"github.com/dalemusser/stratamembers/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler provides dashboard handlers.
type Handler struct {
	members *memberstore.Store
	jobs    *jobstore.Store
	errLog  *errorsfeature.ErrorLogger
	logger  *zap.Logger
}

// NewHandler creates a new dashboard Handler.
func NewHandler(db *mongo.Database, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		members: memberstore.New(db),
		jobs:    jobstore.New(db),
		errLog:  errLog,
		logger:  logger,
	}
}

// TypeRow is one qualification tag and how many members hold it.
type TypeRow struct {
	Type    string
	Count   int64
	Retired bool // tag outside the current catalogue, due for migration
}

// BatchRow summarizes the latest run of one maintenance batch.
type BatchRow struct {
	Label  string
	Job    *jobstore.Job
	Report memberfix.Report
}

// DashboardVM is the view model for the dashboard.
type DashboardVM struct {
	viewdata.BaseVM
	Total       int64
	Types       []TypeRow
	Prefectures []memberstore.Bucket
	Batches     []BatchRow // admins only
}

// Routes returns a chi.Router with dashboard routes mounted.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireAuth)
	r.Get("/", h.showDashboard)
	return r
}

func typeRows(c memberstore.Counts) []TypeRow {
	rows := make([]TypeRow, 0, len(c.ByType))
	for _, t := range models.QualificationTypes {
		rows = append(rows, TypeRow{Type: t, Count: c.TypeCount(t)})
	}
	for _, b := range c.ByType {
		if !models.IsQualificationType(b.Key) {
			rows = append(rows, TypeRow{Type: b.Key, Count: b.Count, Retired: true})
		}
	}
	return rows
}

func (h *Handler) showDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	counts, err := h.members.Counts(ctx)
	if err != nil {
		h.errLog.Log(r, "failed to count members", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	vm := DashboardVM{
		BaseVM:      viewdata.New(r),
		Total:       counts.Total,
		Types:       typeRows(counts),
		Prefectures: counts.ByPrefecture,
	}
	vm.Title = "ダッシュボード"

	if vm.IsAdmin {
		for _, b := range []struct{ jobType, label string }{
			{memberfix.BatchAddressFix, "住所の整備"},
			{memberfix.BatchTypeMigration, "資格区分の移行"},
		} {
			row := BatchRow{Label: b.label}
			job, err := h.jobs.LatestByType(ctx, b.jobType)
			switch {
			case errors.Is(err, jobstore.ErrNotFound):
			case err != nil:
				h.logger.Warn("failed to load latest batch", zap.String("job_type", b.jobType), zap.Error(err))
			default:
				row.Job = job
				if rep, err := memberfix.ReportFromMap(job.Result); err == nil {
					row.Report = rep
				}
			}
			vm.Batches = append(vm.Batches, row)
		}
	}

	templates.Render(w, r, "dashboard/index", vm)
}
