// internal/app/features/maintenance/routes.go
package maintenance

import (
	"github.com/dalemusser/stratamembers/internal/app/system/auth"
	"github.com/dalemusser/stratamembers/internal/app/system/memberfix"
	"github.com/dalemusser/stratamembers/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router for the maintenance feature.
// Access is restricted to admins.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireRole(models.RoleAdmin))

	r.Get("/", h.ServePreview)
	r.Post("/address-fix", h.HandleEnqueue(memberfix.BatchAddressFix))
	r.Post("/type-migration", h.HandleEnqueue(memberfix.BatchTypeMigration))
	r.Get("/jobs", h.ServeList)
	r.Get("/jobs/{id}", h.ServeDetail)
	r.Post("/jobs/{id}/cancel", h.HandleCancel)

	return r
}
