// internal/app/features/members/members.go
package members

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	errorsfeature "github.com/dalemusser/stratamembers/internal/app/features/errors"
	auditstore "github.com/dalemusser/stratamembers/internal/app/store/audit"
	memberstore "github.com/dalemusser/stratamembers/internal/app/store/members"
	"github.com/dalemusser/stratamembers/internal/app/system/address"
	"github.com/dalemusser/stratamembers/internal/app/system/auditlog"
	"github.com/dalemusser/stratamembers/internal/app/system/auth"
	"github.com/dalemusser/stratamembers/internal/app/system/htmlsanitize"
	"github.com/dalemusser/stratamembers/internal/app/system/normalize"
	"github.com/dalemusser/stratamembers/internal/app/system/postal"
	"github.com/dalemusser/stratamembers/internal/app/system/prefectures"
	"github.com/dalemusser/stratamembers/internal/app/system/viewdata"
	"github.com/dalemusser/stratamembers/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const pageSize = 50

// Handler provides member management handlers.
type Handler struct {
	members     *memberstore.Store
	audit       *auditstore.Store
	postal      *postal.Client
	splitter    *address.Splitter
	errLog      *errorsfeature.ErrorLogger
	auditLogger *auditlog.Logger
	logger      *zap.Logger
}

// NewHandler creates a new members Handler. A nil postal client disables
// the lookup endpoint; a nil splitter uses the default rules.
func NewHandler(
	db *mongo.Database,
	postalClient *postal.Client,
	splitter *address.Splitter,
	errLog *errorsfeature.ErrorLogger,
	auditLogger *auditlog.Logger,
	logger *zap.Logger,
) *Handler {
	if splitter == nil {
		splitter = address.NewSplitter()
	}
	return &Handler{
		members:     memberstore.New(db),
		audit:       auditstore.New(db),
		postal:      postalClient,
		splitter:    splitter,
		errLog:      errLog,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// Routes returns a chi.Router with member routes mounted. Every signed-in
// operator may read; writes need an editing role.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireAuth)

	r.Get("/", h.list)
	r.Get("/postal", h.postalLookup)

	r.Group(func(r chi.Router) {
		r.Use(sessionMgr.RequireRole(models.RoleAdmin, models.RoleStaff))
		r.Get("/new", h.showNew)
		r.Post("/new", h.create)
		r.Get("/{id}/edit", h.showEdit)
		r.Post("/{id}", h.update)
		r.Post("/{id}/delete", h.delete)
	})

	r.Get("/{id}", h.show)
	return r
}

type memberRow struct {
	ID         string
	Number     string
	Name       string
	Furigana   string
	Types      string
	Prefecture string
	Address    string
	Phone      string
	NeedsFix   bool // address still has full-width text or an embedded street number
}

func toRow(m models.Member) memberRow {
	return memberRow{
		ID:         m.ID.Hex(),
		Number:     m.Number,
		Name:       m.Name,
		Furigana:   m.Furigana,
		Types:      strings.Join(m.Types, "、"),
		Prefecture: m.Prefecture,
		Address:    address.Join(m.Address, m.StreetAddress),
		Phone:      m.Phone,
		NeedsFix: address.HasFullWidth(m.Address) || address.HasFullWidth(m.StreetAddress) ||
			(m.StreetAddress == "" && address.HasEmbeddedStreetNumber(m.Address)),
	}
}

// ListVM is the view model for the member list.
type ListVM struct {
	viewdata.BaseVM

	SearchQuery string
	TypeFilter  string
	Prefecture  string
	TypeOptions []string
	Prefectures []string

	Page       int
	Total      int64
	TotalPages int
	RangeStart int
	RangeEnd   int
	PrevURL    string
	NextURL    string

	Rows []memberRow
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := memberstore.ListFilter{
		Search:     normalize.QueryParam(q.Get("search")),
		Type:       strings.TrimSpace(q.Get("type")),
		Prefecture: strings.TrimSpace(q.Get("prefecture")),
	}
	page, _ := strconv.Atoi(q.Get("page"))

	res, err := h.members.List(r.Context(), filter, page, pageSize)
	if err != nil {
		h.errLog.Log(r, "failed to list members", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	rows := make([]memberRow, 0, len(res.Members))
	for _, m := range res.Members {
		rows = append(rows, toRow(m))
	}

	vm := ListVM{
		BaseVM:      viewdata.New(r),
		SearchQuery: filter.Search,
		TypeFilter:  filter.Type,
		Prefecture:  filter.Prefecture,
		TypeOptions: models.QualificationTypes,
		Prefectures: prefectures.All,
		Page:        res.Page,
		Total:       res.TotalCount,
		TotalPages:  res.TotalPages,
		Rows:        rows,
	}
	vm.Title = "会員一覧"
	if len(rows) > 0 {
		vm.RangeStart = (res.Page-1)*res.PageSize + 1
		vm.RangeEnd = vm.RangeStart + len(rows) - 1
	}
	if res.Page > 1 {
		vm.PrevURL = pageURL(filter, res.Page-1)
	}
	if res.Page < res.TotalPages {
		vm.NextURL = pageURL(filter, res.Page+1)
	}

	templates.Render(w, r, "members/list", vm)
}

func pageURL(f memberstore.ListFilter, page int) string {
	v := url.Values{}
	if f.Search != "" {
		v.Set("search", f.Search)
	}
	if f.Type != "" {
		v.Set("type", f.Type)
	}
	if f.Prefecture != "" {
		v.Set("prefecture", f.Prefecture)
	}
	v.Set("page", strconv.Itoa(page))
	return "/members?" + v.Encode()
}

type historyRow struct {
	At      string
	Event   string
	Actor   string
	Details string
}

// ShowVM is the view model for one member.
type ShowVM struct {
	viewdata.BaseVM
	Member  models.Member
	Postal  string
	Notes   template.HTML
	History []historyRow
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	m, ok := h.load(w, r)
	if !ok {
		return
	}

	events, err := h.audit.ForMember(r.Context(), m.ID, 20)
	if err != nil {
		h.logger.Warn("failed to load member history", zap.String("member_id", m.ID.Hex()), zap.Error(err))
	}
	history := make([]historyRow, 0, len(events))
	for _, e := range events {
		row := historyRow{
			At:    e.CreatedAt.Local().Format("2006-01-02 15:04"),
			Event: eventLabel(e.EventType),
		}
		if e.ActorID != nil {
			row.Actor = e.ActorID.Hex()
		}
		if f := e.Details["fields"]; f != "" {
			row.Details = f
		}
		history = append(history, row)
	}

	vm := ShowVM{
		BaseVM:  viewdata.NewBaseVM(r, m.Name, "/members"),
		Member:  *m,
		Postal:  m.FormattedPostalCode(),
		Notes:   htmlsanitize.PrepareForDisplay(m.Notes),
		History: history,
	}
	templates.Render(w, r, "members/show", vm)
}

func eventLabel(eventType string) string {
	switch eventType {
	case auditstore.EventMemberCreated:
		return "登録"
	case auditstore.EventMemberUpdated:
		return "更新"
	case auditstore.EventMemberDeleted:
		return "削除"
	}
	return eventType
}

// load fetches the member named by the {id} URL parameter and answers 404
// itself when there is none.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*models.Member, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return nil, false
	}
	m, err := h.members.GetByID(r.Context(), id)
	if errors.Is(err, memberstore.ErrNotFound) {
		http.NotFound(w, r)
		return nil, false
	}
	if err != nil {
		h.errLog.Log(r, "failed to load member", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}
	return m, true
}
