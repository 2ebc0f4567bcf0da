// internal/app/features/operators/routes.go
package operators

import (
	"github.com/dalemusser/stratamembers/internal/app/system/auth"
	"github.com/dalemusser/stratamembers/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router for operator account management (admin only).
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireRole(models.RoleAdmin))

	r.Get("/", h.ServeList)
	r.Get("/new", h.ServeNew)
	r.Post("/new", h.HandleCreate)
	r.Get("/{id}", h.ServeShow)
	r.Post("/{id}/disable", h.HandleSetStatus(false))
	r.Post("/{id}/enable", h.HandleSetStatus(true))
	r.Post("/{id}/reset-password", h.HandleResetPassword)

	return r
}
