// internal/app/features/home/home.go
package home

import (
	"net/http"

	"github.com/dalemusser/stratamembers/internal/app/system/auth"
	"github.com/dalemusser/stratamembers/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
)

// Handler serves the landing page.
type Handler struct{}

// NewHandler creates a home Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// Routes returns a chi.Router with home routes mounted.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.Index)
	return r
}

// Index sends signed-in operators to the dashboard and shows everyone else
// the sign-in prompt.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.CurrentUser(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	vm := viewdata.New(r)
	vm.Title = "ようこそ"
	templates.Render(w, r, "home/index", vm)
}
