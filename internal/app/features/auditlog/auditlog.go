// internal/app/features/auditlog/auditlog.go
package auditlog

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	errorsfeature "github.com/dalemusser/stratamembers/internal/app/features/errors"
	"github.com/dalemusser/stratamembers/internal/app/store/audit"
	"github.com/dalemusser/stratamembers/internal/app/store/storeutil"
	userstore "github.com/dalemusser/stratamembers/internal/app/store/users"
	"github.com/dalemusser/stratamembers/internal/app/system/auth"
	"github.com/dalemusser/stratamembers/internal/app/system/viewdata"
	"github.com/dalemusser/stratamembers/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const pageSize = 50

// Handler provides audit log handlers.
type Handler struct {
	auditStore *audit.Store
	userStore  *userstore.Store
	errLog     *errorsfeature.ErrorLogger
	logger     *zap.Logger
}

// NewHandler creates a new audit log Handler.
func NewHandler(
	db *mongo.Database,
	errLog *errorsfeature.ErrorLogger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		auditStore: audit.New(db),
		userStore:  userstore.New(db),
		errLog:     errLog,
		logger:     logger,
	}
}

// listItem represents a single audit event row for display.
type listItem struct {
	Timestamp string
	Category  string
	EventType string
	ActorName string
	MemberID  string
	JobID     string
	IP        string
	Success   bool
	Details   string
}

// listData is the view model for the audit log list page.
type listData struct {
	viewdata.BaseVM

	Items []listItem

	// Filters
	Category  string
	EventType string
	StartDate string
	EndDate   string

	Categories []option
	EventTypes []option

	// Pagination
	Page       int
	TotalPages int
	Total      int64
	PrevURL    string
	NextURL    string
}

type option struct {
	Value string
	Label string
}

var categoryLabels = []option{
	{Value: audit.CategoryAuth, Label: "認証"},
	{Value: audit.CategoryMember, Label: "会員"},
	{Value: audit.CategoryMaintenance, Label: "データ整備"},
	{Value: audit.CategoryOperator, Label: "担当者"},
}

var eventLabels = map[string][]option{
	audit.CategoryAuth: {
		{Value: audit.EventLoginSuccess, Label: "ログイン"},
		{Value: audit.EventLoginFailedUserNotFound, Label: "ログイン失敗（不明なID）"},
		{Value: audit.EventLoginFailedWrongPassword, Label: "ログイン失敗（パスワード誤り）"},
		{Value: audit.EventLoginFailedUserDisabled, Label: "ログイン失敗（無効なアカウント）"},
		{Value: audit.EventLoginLockedOut, Label: "ロックアウト"},
		{Value: audit.EventLogout, Label: "ログアウト"},
	},
	audit.CategoryMember: {
		{Value: audit.EventMemberCreated, Label: "会員登録"},
		{Value: audit.EventMemberUpdated, Label: "会員更新"},
		{Value: audit.EventMemberDeleted, Label: "会員削除"},
	},
	audit.CategoryMaintenance: {
		{Value: audit.EventBatchEnqueued, Label: "整備の依頼"},
		{Value: audit.EventBatchFinished, Label: "整備の完了"},
	},
	audit.CategoryOperator: {
		{Value: audit.EventOperatorCreated, Label: "担当者の追加"},
		{Value: audit.EventOperatorDisabled, Label: "担当者の無効化"},
		{Value: audit.EventOperatorEnabled, Label: "担当者の有効化"},
		{Value: audit.EventOperatorPasswordReset, Label: "パスワード再設定"},
		{Value: audit.EventPasswordChanged, Label: "パスワード変更"},
	},
}

// eventTypesForCategory returns the event types for a given category.
// If category is empty, returns all event types.
func eventTypesForCategory(category string) []option {
	if category != "" {
		return eventLabels[category]
	}
	var all []option
	for _, c := range categoryLabels {
		all = append(all, eventLabels[c.Value]...)
	}
	return all
}

func eventLabel(eventType string) string {
	for _, opts := range eventLabels {
		for _, o := range opts {
			if o.Value == eventType {
				return o.Label
			}
		}
	}
	return eventType
}

// Routes returns a chi.Router with audit log routes mounted.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireRole(models.RoleAdmin))

	r.Get("/", h.list)

	return r
}

// list displays the audit log with filtering and pagination.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := strings.TrimSpace(q.Get("category"))
	eventType := strings.TrimSpace(q.Get("event_type"))
	startDate := strings.TrimSpace(q.Get("start_date"))
	endDate := strings.TrimSpace(q.Get("end_date"))
	page, _ := strconv.Atoi(q.Get("page"))

	filter := audit.QueryFilter{
		Category:  category,
		EventType: eventType,
	}
	if startDate != "" {
		if t, err := time.ParseInLocation("2006-01-02", startDate, time.Local); err == nil {
			filter.Since = &t
		}
	}
	if endDate != "" {
		if t, err := time.ParseInLocation("2006-01-02", endDate, time.Local); err == nil {
			endOfDay := t.Add(24*time.Hour - time.Nanosecond)
			filter.Until = &endOfDay
		}
	}

	total, err := h.auditStore.Count(r.Context(), filter)
	if err != nil {
		h.errLog.Log(r, "failed to count audit events", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	pg := storeutil.NewPage(page, pageSize, pageSize, pageSize)
	totalPages := pg.TotalPages(total)
	if pg.Number > totalPages {
		pg = storeutil.NewPage(totalPages, pageSize, pageSize, pageSize)
	}

	events, err := h.auditStore.Query(r.Context(), filter, pg)
	if err != nil {
		h.errLog.Log(r, "failed to query audit events", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	names := h.operatorNames(r)
	items := make([]listItem, 0, len(events))
	for _, e := range events {
		items = append(items, toItem(e, names))
	}

	vm := listData{
		BaseVM:     viewdata.New(r),
		Items:      items,
		Category:   category,
		EventType:  eventType,
		StartDate:  startDate,
		EndDate:    endDate,
		Categories: categoryLabels,
		EventTypes: eventTypesForCategory(category),
		Page:       pg.Number,
		TotalPages: totalPages,
		Total:      total,
	}
	vm.Title = "監査ログ"
	if pg.Number > 1 {
		vm.PrevURL = pageURL(q, pg.Number-1)
	}
	if pg.Number < totalPages {
		vm.NextURL = pageURL(q, pg.Number+1)
	}

	templates.Render(w, r, "auditlog/list", vm)
}

// operatorNames maps operator IDs to display names. Operators are few, so
// the whole collection is read.
func (h *Handler) operatorNames(r *http.Request) map[primitive.ObjectID]string {
	users, err := h.userStore.ListAll(r.Context())
	if err != nil {
		h.logger.Warn("failed to fetch operator names for audit log", zap.Error(err))
		return nil
	}
	names := make(map[primitive.ObjectID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.FullName
	}
	return names
}

func toItem(e audit.Event, names map[primitive.ObjectID]string) listItem {
	item := listItem{
		Timestamp: e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		Category:  e.Category,
		EventType: eventLabel(e.EventType),
		IP:        e.IP,
		Success:   e.Success,
	}
	// For sign-in events the operator is the actor.
	switch {
	case e.ActorID != nil:
		item.ActorName = names[*e.ActorID]
	case e.UserID != nil:
		item.ActorName = names[*e.UserID]
	}
	if item.ActorName == "" {
		item.ActorName = e.Details["login_id"]
	}
	if item.ActorName == "" {
		item.ActorName = e.Details["attempted_login_id"]
	}
	if e.MemberID != nil {
		item.MemberID = e.MemberID.Hex()
	}
	if e.JobID != nil {
		item.JobID = e.JobID.Hex()
	}

	var details []string
	for _, k := range []string{"name", "fields", "batch", "total", "changed", "failed", "locked_until"} {
		if v := e.Details[k]; v != "" {
			details = append(details, k+"="+v)
		}
	}
	if e.FailureReason != "" {
		details = append(details, e.FailureReason)
	}
	item.Details = strings.Join(details, " ")
	return item
}

func pageURL(q url.Values, page int) string {
	v := url.Values{}
	for k, vals := range q {
		if k != "page" {
			v[k] = vals
		}
	}
	v.Set("page", strconv.Itoa(page))
	return "/audit?" + v.Encode()
}
