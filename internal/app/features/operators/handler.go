// internal/app/features/operators/handler.go
package operators

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies an operator record
//   - LoginID / loginID / login_id: The human-readable string operators type to log in

import (
	"context"
	"errors"
	"net/http"
	"strings"

	errorsfeature "github.com/dalemusser/stratamembers/internal/app/features/errors"
	userstore "github.com/dalemusser/stratamembers/internal/app/store/users"
	"github.com/dalemusser/stratamembers/internal/app/system/auditlog"
	"github.com/dalemusser/stratamembers/internal/app/system/auth"
	"github.com/dalemusser/stratamembers/internal/app/system/authutil"
	"github.com/dalemusser/stratamembers/internal/app/system/formutil"
	"github.com/dalemusser/stratamembers/internal/app/system/inputval"
	"github.com/dalemusser/stratamembers/internal/app/system/normalize"
	"github.com/dalemusser/stratamembers/internal/app/system/status"
	"github.com/dalemusser/stratamembers/internal/app/system/timeouts"
	"github.com/dalemusser/stratamembers/internal/app/system/viewdata"
	"github.com/dalemusser/stratamembers/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler manages operator accounts.
type Handler struct {
	Users       *userstore.Store
	ErrLog      *errorsfeature.ErrorLogger
	AuditLogger *auditlog.Logger
	Log         *zap.Logger
}

// NewHandler creates a new operators handler.
func NewHandler(db *mongo.Database, errLog *errorsfeature.ErrorLogger, auditLogger *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:       userstore.New(db),
		ErrLog:      errLog,
		AuditLogger: auditLogger,
		Log:         logger,
	}
}

var notices = map[string]string{
	"created":             "担当者を追加しました。",
	"disabled":            "担当者を無効にしました。",
	"enabled":             "担当者を有効にしました。",
	"password_reset":      "パスワードを再設定しました。",
	"cannot_disable_self": "自分自身は無効にできません。",
	"last_admin":          "有効な管理者が他にいないため無効にできません。",
}

func toRow(u models.User) operatorRow {
	row := operatorRow{
		ID:          u.ID.Hex(),
		FullName:    u.FullName,
		LoginID:     u.LoginID,
		RoleLabel:   models.RoleLabel(u.Role),
		StatusLabel: status.Label(u.Status),
		Disabled:    u.Status == status.Disabled,
	}
	if u.LastLoginAt != nil {
		row.LastLogin = u.LastLoginAt.Local().Format("2006-01-02 15:04")
	}
	return row
}

// ServeList handles GET /operators.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	users, err := h.Users.ListAll(ctx)
	if err != nil {
		h.ErrLog.Log(r, "failed to list operators", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	rows := make([]operatorRow, len(users))
	for i, u := range users {
		rows[i] = toRow(u)
	}

	data := ListVM{
		BaseVM: viewdata.NewBaseVM(r, "担当者", "/dashboard"),
		Rows:   rows,
		Notice: notices[r.URL.Query().Get("notice")],
	}
	templates.Render(w, r, "operators/list", data)
}

func roleOptions(selected string) []roleOption {
	opts := make([]roleOption, 0, len(models.AllRoles()))
	for _, role := range models.AllRoles() {
		opts = append(opts, roleOption{Value: role, Label: models.RoleLabel(role), Selected: role == selected})
	}
	return opts
}

func (h *Handler) renderNew(w http.ResponseWriter, r *http.Request, in inputval.OperatorInput, fieldErrs map[string]string, formErr string) {
	data := NewVM{
		Base:         formutil.NewBase(r, "担当者の追加", "/operators"),
		Input:        in,
		Roles:        roleOptions(in.Role),
		PasswordHint: authutil.PasswordRules(),
	}
	data.SetFieldErrors(fieldErrs)
	if formErr != "" {
		data.SetError(formErr)
	}
	if data.HasErrors() {
		w.WriteHeader(http.StatusBadRequest)
	}
	templates.Render(w, r, "operators/new", data)
}

// ServeNew handles GET /operators/new.
func (h *Handler) ServeNew(w http.ResponseWriter, r *http.Request) {
	h.renderNew(w, r, inputval.OperatorInput{Role: models.RoleStaff}, nil, "")
}

// HandleCreate handles POST /operators/new.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	in := inputval.OperatorInput{
		FullName: normalize.Name(r.FormValue("full_name")),
		LoginID:  normalize.LoginID(r.FormValue("login_id")),
		Role:     strings.TrimSpace(r.FormValue("role")),
	}
	password := r.FormValue("password")

	fieldErrs := inputval.Validate(in).ByField()
	if err := authutil.ValidatePassword(password); err != nil {
		fieldErrs["password"] = err.Error()
	}
	if len(fieldErrs) > 0 {
		h.renderNew(w, r, in, fieldErrs, "")
		return
	}

	hash, err := authutil.HashPassword(password)
	if err != nil {
		h.ErrLog.Log(r, "failed to hash password", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	user, err := h.Users.Create(ctx, userstore.CreateInput{
		FullName:     in.FullName,
		LoginID:      in.LoginID,
		Role:         in.Role,
		PasswordHash: hash,
	})
	if errors.Is(err, userstore.ErrDuplicateLoginID) {
		h.renderNew(w, r, in, map[string]string{"login_id": "このログインIDはすでに使われています。"}, "")
		return
	}
	if err != nil {
		h.ErrLog.Log(r, "failed to create operator", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	actor, _ := auth.CurrentUser(r)
	h.AuditLogger.OperatorCreated(ctx, r, actor.ID, user.ID, user.LoginID, user.Role)
	h.Log.Info("operator created", zap.String("login_id", user.LoginID), zap.String("role", user.Role))
	http.Redirect(w, r, "/operators?notice=created", http.StatusSeeOther)
}

// load resolves the {id} URL parameter. It writes the error response and
// returns nil when the operator cannot be loaded.
func (h *Handler) load(ctx context.Context, w http.ResponseWriter, r *http.Request) *models.User {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return nil
	}
	u, err := h.Users.GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return nil
	}
	if err != nil {
		h.ErrLog.Log(r, "failed to load operator", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil
	}
	return u
}

func (h *Handler) renderShow(w http.ResponseWriter, r *http.Request, u *models.User, passwordErr string) {
	actor, _ := auth.CurrentUser(r)
	data := ShowVM{
		Base:         formutil.NewBase(r, u.FullName, "/operators"),
		Operator:     toRow(*u),
		IsSelf:       actor != nil && actor.UserID() == u.ID,
		Notice:       notices[r.URL.Query().Get("notice")],
		PasswordHint: authutil.PasswordRules(),
	}
	if passwordErr != "" {
		data.SetFieldError("password", passwordErr)
		w.WriteHeader(http.StatusBadRequest)
	}
	templates.Render(w, r, "operators/show", data)
}

// ServeShow handles GET /operators/{id}.
func (h *Handler) ServeShow(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u := h.load(ctx, w, r)
	if u == nil {
		return
	}
	h.renderShow(w, r, u, "")
}

// HandleSetStatus returns the POST handler that enables or disables an
// operator. An admin cannot disable their own account, and the last active
// admin cannot be disabled.
func (h *Handler) HandleSetStatus(enable bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		defer cancel()

		u := h.load(ctx, w, r)
		if u == nil {
			return
		}
		back := "/operators/" + u.ID.Hex()
		actor, _ := auth.CurrentUser(r)

		next := status.Active
		if !enable {
			next = status.Disabled
			if actor.UserID() == u.ID {
				http.Redirect(w, r, back+"?notice=cannot_disable_self", http.StatusSeeOther)
				return
			}
			if u.Role == models.RoleAdmin && u.Status != status.Disabled {
				n, err := h.Users.CountActiveAdmins(ctx)
				if err != nil {
					h.ErrLog.Log(r, "failed to count admins", err)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
				if n <= 1 {
					http.Redirect(w, r, back+"?notice=last_admin", http.StatusSeeOther)
					return
				}
			}
		}

		if err := h.Users.SetStatus(ctx, u.ID, next); err != nil {
			h.ErrLog.Log(r, "failed to update operator status", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if enable {
			h.AuditLogger.OperatorEnabled(ctx, r, actor.ID, u.ID, u.LoginID)
			http.Redirect(w, r, back+"?notice=enabled", http.StatusSeeOther)
			return
		}
		h.AuditLogger.OperatorDisabled(ctx, r, actor.ID, u.ID, u.LoginID)
		http.Redirect(w, r, back+"?notice=disabled", http.StatusSeeOther)
	}
}

// HandleResetPassword handles POST /operators/{id}/reset-password.
func (h *Handler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u := h.load(ctx, w, r)
	if u == nil {
		return
	}

	password := r.FormValue("password")
	if err := authutil.ValidatePassword(password); err != nil {
		h.renderShow(w, r, u, err.Error())
		return
	}
	hash, err := authutil.HashPassword(password)
	if err != nil {
		h.ErrLog.Log(r, "failed to hash password", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if err := h.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
		h.ErrLog.Log(r, "failed to reset password", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	actor, _ := auth.CurrentUser(r)
	h.AuditLogger.OperatorPasswordReset(ctx, r, actor.ID, u.ID, u.LoginID)
	http.Redirect(w, r, "/operators/"+u.ID.Hex()+"?notice=password_reset", http.StatusSeeOther)
}
