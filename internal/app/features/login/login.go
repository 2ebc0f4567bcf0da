// internal/app/features/login/login.go
package login

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies an operator record
//   - LoginID / loginID / login_id: The human-readable string operators type to log in

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	errorsfeature "github.com/dalemusser/stratamembers/internal/app/features/errors"
	"github.com/dalemusser/stratamembers/internal/app/store/ratelimit"
	userstore "github.com/dalemusser/stratamembers/internal/app/store/users"
	"github.com/dalemusser/stratamembers/internal/app/system/auditlog"
	"github.com/dalemusser/stratamembers/internal/app/system/auth"
	"github.com/dalemusser/stratamembers/internal/app/system/authutil"
	"github.com/dalemusser/stratamembers/internal/app/system/inputval"
	"github.com/dalemusser/stratamembers/internal/app/system/status"
	"github.com/dalemusser/stratamembers/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	msgInvalid     = "ログインIDまたはパスワードが正しくありません。"
	msgDisabled    = "このアカウントは無効になっています。"
	msgUnavailable = "ただいまサービスを利用できません。しばらくしてから再度お試しください。"
)

// Handler provides sign-in handlers.
type Handler struct {
	users       *userstore.Store
	rateLimit   *ratelimit.Store // nil disables limiting
	sessionMgr  *auth.SessionManager
	auditLogger *auditlog.Logger
	errLog      *errorsfeature.ErrorLogger
	logger      *zap.Logger
}

// NewHandler creates a login Handler. rateLimit may be nil.
func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	errLog *errorsfeature.ErrorLogger,
	auditLogger *auditlog.Logger,
	rateLimit *ratelimit.Store,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		users:       userstore.New(db),
		rateLimit:   rateLimit,
		sessionMgr:  sessionMgr,
		auditLogger: auditLogger,
		errLog:      errLog,
		logger:      logger,
	}
}

// LoginVM is the view model for the login page.
type LoginVM struct {
	viewdata.BaseVM
	Error     string
	LoginID   string
	ReturnURL string
}

// Routes returns a chi.Router with login routes mounted.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.show)
	r.Post("/", h.submit)
	return r
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, code int, loginID, returnURL, msg string) {
	vm := LoginVM{
		BaseVM:    viewdata.New(r),
		Error:     msg,
		LoginID:   loginID,
		ReturnURL: returnURL,
	}
	vm.Title = "ログイン"
	if code != http.StatusOK {
		w.WriteHeader(code)
	}
	templates.Render(w, r, "login/index", vm)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.CurrentUser(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "", query.Get(r, "return"), "")
}

func lockoutMessage(until *time.Time) string {
	if until == nil {
		return "ログインの失敗が続いたため、一時的にロックされています。"
	}
	mins := int(time.Until(*until).Minutes()) + 1
	return fmt.Sprintf("ログインの失敗が続いたため、約%d分間ロックされています。", mins)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.errLog.Log(r, "failed to parse form", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	in := inputval.LoginInput{
		LoginID:  r.PostFormValue("login_id"),
		Password: r.PostFormValue("password"),
	}
	returnURL := r.PostFormValue("return")

	if res := inputval.Validate(in); res.HasErrors() {
		h.render(w, r, http.StatusBadRequest, in.LoginID, returnURL, res.First())
		return
	}

	ctx := r.Context()
	if h.rateLimit.Enabled() {
		if d := h.rateLimit.Check(ctx, in.LoginID); !d.Allowed {
			until := time.Now()
			if d.LockedUntil != nil {
				until = *d.LockedUntil
			}
			h.auditLogger.LoginLockedOut(ctx, r, in.LoginID, until)
			h.render(w, r, http.StatusTooManyRequests, in.LoginID, returnURL, lockoutMessage(d.LockedUntil))
			return
		}
	}

	user, err := h.users.GetByLoginID(ctx, in.LoginID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			h.recordFailure(r, in.LoginID)
			h.auditLogger.LoginFailedUserNotFound(ctx, r, in.LoginID)
			h.render(w, r, http.StatusUnauthorized, in.LoginID, returnURL, msgInvalid)
			return
		}
		h.errLog.Log(r, "database error during login lookup", err)
		h.render(w, r, http.StatusServiceUnavailable, in.LoginID, returnURL, msgUnavailable)
		return
	}

	if user.Status != "" && user.Status != status.Active {
		h.recordFailure(r, in.LoginID)
		h.auditLogger.LoginFailedUserDisabled(ctx, r, user.ID, user.LoginID)
		h.render(w, r, http.StatusForbidden, in.LoginID, returnURL, msgDisabled)
		return
	}

	if !authutil.CheckPassword(in.Password, user.PasswordHash) {
		if until := h.recordFailure(r, in.LoginID); until != nil {
			h.auditLogger.LoginLockedOut(ctx, r, user.LoginID, *until)
			h.render(w, r, http.StatusTooManyRequests, in.LoginID, returnURL, lockoutMessage(until))
			return
		}
		h.auditLogger.LoginFailedWrongPassword(ctx, r, user.ID, user.LoginID)
		h.render(w, r, http.StatusUnauthorized, in.LoginID, returnURL, msgInvalid)
		return
	}

	if h.rateLimit.Enabled() {
		if err := h.rateLimit.Clear(ctx, in.LoginID); err != nil {
			h.logger.Warn("failed to clear login rate limit", zap.Error(err))
		}
	}

	if err := h.sessionMgr.CreateSession(w, r, user.ID, user.Role, ""); err != nil {
		h.errLog.Log(r, "failed to create session", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if err := h.users.RecordLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		h.logger.Warn("failed to record login time", zap.Error(err))
	}
	h.auditLogger.LoginSuccess(ctx, r, user.ID, user.LoginID)

	http.Redirect(w, r, urlutil.SafeReturn(returnURL, "", "/dashboard"), http.StatusSeeOther)
}

// recordFailure counts a failed attempt and returns the lockout expiry when
// this attempt triggered one.
func (h *Handler) recordFailure(r *http.Request, loginID string) *time.Time {
	if !h.rateLimit.Enabled() {
		return nil
	}
	until, err := h.rateLimit.RecordFailure(r.Context(), loginID)
	if err != nil {
		h.logger.Warn("failed to record login failure", zap.Error(err))
		return nil
	}
	return until
}
