// internal/app/features/profile/profile.go
package profile

import (
	"context"
	"net/http"

	errorsfeature "github.com/dalemusser/stratamembers/internal/app/features/errors"
	userstore "github.com/dalemusser/stratamembers/internal/app/store/users"
	"github.com/dalemusser/stratamembers/internal/app/system/auditlog"
	"github.com/dalemusser/stratamembers/internal/app/system/auth"
	"github.com/dalemusser/stratamembers/internal/app/system/authutil"
	"github.com/dalemusser/stratamembers/internal/app/system/formutil"
	"github.com/dalemusser/stratamembers/internal/app/system/timeouts"
	"github.com/dalemusser/stratamembers/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the signed-in operator's own account page.
type Handler struct {
	userStore   *userstore.Store
	errLog      *errorsfeature.ErrorLogger
	auditLogger *auditlog.Logger
	logger      *zap.Logger
}

// NewHandler creates a new profile Handler.
func NewHandler(db *mongo.Database, errLog *errorsfeature.ErrorLogger, auditLogger *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		userStore:   userstore.New(db),
		errLog:      errLog,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// ProfileVM is the view model for the profile page.
type ProfileVM struct {
	formutil.Base

	FullName      string
	AccountLogin  string
	RoleLabel     string
	LastLogin     string
	PasswordRules string
	Success       string
}

// Routes returns a chi.Router with profile routes mounted.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireSignedIn)

	r.Get("/", h.showProfile)
	r.Post("/password", h.handleChangePassword)

	return r
}

func (h *Handler) currentUser(ctx context.Context, w http.ResponseWriter, r *http.Request) *models.User {
	sessionUser, ok := auth.CurrentUser(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return nil
	}
	user, err := h.userStore.GetByID(ctx, sessionUser.UserID())
	if err != nil {
		h.errLog.Log(r, "failed to get operator", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil
	}
	return user
}

func buildProfileVM(r *http.Request, user *models.User) ProfileVM {
	vm := ProfileVM{
		Base:          formutil.NewBase(r, "アカウント", "/dashboard"),
		FullName:      user.FullName,
		AccountLogin:  user.LoginID,
		RoleLabel:     models.RoleLabel(user.Role),
		PasswordRules: authutil.PasswordRules(),
	}
	if user.LastLoginAt != nil {
		vm.LastLogin = user.LastLoginAt.Local().Format("2006-01-02 15:04")
	}
	return vm
}

// showProfile displays the operator's account.
func (h *Handler) showProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	user := h.currentUser(ctx, w, r)
	if user == nil {
		return
	}

	vm := buildProfileVM(r, user)
	if r.URL.Query().Get("success") == "password" {
		vm.Success = "パスワードを変更しました。"
	}
	templates.Render(w, r, "profile/show", vm)
}

func renderProfileWithError(w http.ResponseWriter, r *http.Request, user *models.User, field, msg string) {
	vm := buildProfileVM(r, user)
	vm.SetFieldError(field, msg)
	w.WriteHeader(http.StatusBadRequest)
	templates.Render(w, r, "profile/show", vm)
}

// handleChangePassword processes the password change form. The current
// password must be given, and the new one must differ from it.
func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.errLog.Log(r, "failed to parse form", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	user := h.currentUser(ctx, w, r)
	if user == nil {
		return
	}

	currentPassword := r.FormValue("current_password")
	newPassword := r.FormValue("new_password")
	confirmPassword := r.FormValue("confirm_password")

	if !authutil.CheckPassword(currentPassword, user.PasswordHash) {
		renderProfileWithError(w, r, user, "current_password", "現在のパスワードが正しくありません。")
		return
	}
	if err := authutil.ValidatePassword(newPassword); err != nil {
		renderProfileWithError(w, r, user, "new_password", err.Error())
		return
	}
	if newPassword != confirmPassword {
		renderProfileWithError(w, r, user, "confirm_password", "確認用のパスワードが一致しません。")
		return
	}
	if newPassword == currentPassword {
		renderProfileWithError(w, r, user, "new_password", "現在と同じパスワードは使えません。")
		return
	}

	hash, err := authutil.HashPassword(newPassword)
	if err != nil {
		h.errLog.Log(r, "failed to hash password", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if err := h.userStore.UpdatePassword(ctx, user.ID, hash); err != nil {
		h.errLog.Log(r, "failed to update password", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.auditLogger.PasswordChanged(ctx, r, user.ID, user.LoginID)
	h.logger.Info("operator changed password", zap.String("login_id", user.LoginID))
	http.Redirect(w, r, "/profile?success=password", http.StatusSeeOther)
}
