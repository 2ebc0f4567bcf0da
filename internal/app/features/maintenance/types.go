// internal/app/features/maintenance/types.go
package maintenance

import (
	"strings"
	"time"

	jobstore "github.com/dalemusser/stratamembers/internal/app/store/jobs"
	"github.com/dalemusser/stratamembers/internal/app/system/memberfix"
	"github.com/dalemusser/stratamembers/internal/app/system/viewdata"
)

// JobVM is the view model for a single batch job.
type JobVM struct {
	ID          string
	JobType     string
	Label       string
	Status      string
	StatusLabel string
	StatusClass string // CSS class for status badge
	Active      bool
	Attempts    int
	Error       string
	RequestedBy string
	CreatedAt   string
	StartedAt   string
	CompletedAt string
	Duration    string
	HasReport   bool
	Report      memberfix.Report
}

// PreviewVM is the view model for the maintenance page: what each batch
// would change right now, plus recent runs.
type PreviewVM struct {
	viewdata.BaseVM
	Address       memberfix.Report
	Types         memberfix.Report
	Deprecated    string
	Replacement   string
	LooseFallback bool
	Recent        []JobVM
}

// JobListVM is the view model for the job list page.
type JobListVM struct {
	viewdata.BaseVM
	Jobs       []JobVM
	Filter     jobstore.ListFilter
	JobTypes   []JobTypeOption
	Statuses   []string
	Page       int
	TotalPages int
	TotalCount int64
	PrevURL    string
	NextURL    string
}

// JobTypeOption is one entry of the job type filter.
type JobTypeOption struct {
	Value string
	Label string
}

// JobDetailVM is the view model for the job detail page.
type JobDetailVM struct {
	viewdata.BaseVM
	Job    JobVM
	Notice string
}

func batchLabel(jobType string) string {
	switch jobType {
	case memberfix.BatchAddressFix:
		return "住所の整備"
	case memberfix.BatchTypeMigration:
		return "資格区分の移行"
	}
	return jobType
}

func statusLabel(status string) string {
	switch status {
	case jobstore.StatusPending:
		return "待機中"
	case jobstore.StatusRunning:
		return "実行中"
	case jobstore.StatusCompleted:
		return "完了"
	case jobstore.StatusFailed:
		return "失敗"
	case jobstore.StatusCancelled:
		return "取消"
	}
	return status
}

const timeLayout = "2006-01-02 15:04:05"

// toJobVM converts a store Job to a view model.
func toJobVM(j jobstore.Job) JobVM {
	vm := JobVM{
		ID:          j.ID.Hex(),
		JobType:     j.JobType,
		Label:       batchLabel(j.JobType),
		Status:      j.Status,
		StatusLabel: statusLabel(j.Status),
		StatusClass: "status-" + j.Status,
		Active:      j.Active(),
		Attempts:    j.Attempts,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt.Local().Format(timeLayout),
	}
	if login, ok := j.Payload["requested_by_login"].(string); ok {
		vm.RequestedBy = login
	}
	if j.StartedAt != nil {
		vm.StartedAt = j.StartedAt.Local().Format(timeLayout)
	}
	if j.CompletedAt != nil {
		vm.CompletedAt = j.CompletedAt.Local().Format(timeLayout)
	}
	if d := j.Duration(); d > 0 {
		vm.Duration = d.Round(100 * time.Millisecond).String()
	}
	if rep, err := memberfix.ReportFromMap(j.Result); err == nil && len(j.Result) > 0 {
		vm.HasReport = true
		vm.Report = rep
	}
	return vm
}

func joinSorted(tags []string) string {
	return strings.Join(tags, "、")
}
