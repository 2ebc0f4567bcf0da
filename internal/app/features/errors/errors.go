// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/dalemusser/stratamembers/internal/app/system/auth"
	"github.com/dalemusser/stratamembers/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ErrorLogger records handler failures with enough request context to find
// the operator and request that hit them.
type ErrorLogger struct {
	logger *zap.Logger
}

// NewErrorLogger creates a new ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorLogger{logger: logger}
}

// Log records err at error level. A nil *ErrorLogger discards it.
func (e *ErrorLogger) Log(r *http.Request, msg string, err error, fields ...zap.Field) {
	if e == nil {
		return
	}
	all := append(make([]zap.Field, 0, len(fields)+5),
		zap.Error(err),
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
	)
	if id := chimw.GetReqID(r.Context()); id != "" {
		all = append(all, zap.String("request_id", id))
	}
	if u, ok := auth.CurrentUser(r); ok {
		all = append(all, zap.String("login_id", u.LoginID))
	}
	e.logger.Error(msg, append(all, fields...)...)
}

// Handler renders the error pages. Middleware redirects to these routes, so
// each one writes its own status code.
type Handler struct{}

// NewHandler creates a new error Handler.
func NewHandler() *Handler {
	return &Handler{}
}

func render(w http.ResponseWriter, r *http.Request, code int, page, title string) {
	vm := viewdata.New(r)
	vm.Title = title
	w.WriteHeader(code)
	templates.Render(w, r, page, vm)
}

// Forbidden renders the 403 page shown when staff open admin pages.
func (h *Handler) Forbidden(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusForbidden, "errors/forbidden", "アクセス権限がありません")
}

// Unauthorized renders the 401 page.
func (h *Handler) Unauthorized(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusUnauthorized, "errors/unauthorized", "ログインが必要です")
}

// NotFound renders the 404 page.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusNotFound, "errors/not_found", "ページが見つかりません")
}

// InternalError renders the 500 page.
func (h *Handler) InternalError(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusInternalServerError, "errors/internal", "サーバーエラー")
}
