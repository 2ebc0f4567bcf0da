// internal/app/features/logout/logout.go
package logout

import (
	"net/http"

	"github.com/dalemusser/stratamembers/internal/app/system/auditlog"
	"github.com/dalemusser/stratamembers/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Handler provides the sign-out handler.
type Handler struct {
	sessionMgr  *auth.SessionManager
	auditLogger *auditlog.Logger
}

// NewHandler creates a logout Handler. auditLogger may be nil.
func NewHandler(sessionMgr *auth.SessionManager, auditLogger *auditlog.Logger) *Handler {
	return &Handler{sessionMgr: sessionMgr, auditLogger: auditLogger}
}

// Routes returns a chi.Router with logout routes mounted. Only POST signs
// out so a prefetched link cannot end a session.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(h.sessionMgr.RequireAuth)
	r.Post("/", h.handleLogout)
	return r
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if user, ok := auth.CurrentUser(r); ok {
		h.auditLogger.Logout(r.Context(), r, user.ID)
	}
	h.sessionMgr.DestroySession(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
