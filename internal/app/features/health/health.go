// internal/app/features/health/health.go
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/stratamembers/internal/app/system/jsonutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// CheckFunc reports whether a dependency is reachable.
type CheckFunc func(ctx context.Context) error

type check struct {
	name     string
	fn       CheckFunc
	required bool // failure makes the service not ready
}

// Handler provides health check endpoints.
type Handler struct {
	checks  []check
	logger  *zap.Logger
	timeout time.Duration
}

// NewHandler creates a health Handler that always checks MongoDB.
func NewHandler(mongoClient *mongo.Client, logger *zap.Logger) *Handler {
	h := &Handler{logger: logger, timeout: 5 * time.Second}
	h.checks = append(h.checks, check{
		name:     "mongodb",
		required: true,
		fn: func(ctx context.Context) error {
			return mongoClient.Ping(ctx, readpref.Primary())
		},
	})
	return h
}

// AddCheck registers an optional dependency. Its failure degrades /health
// but leaves /ready answering ready; the postal cache is such a dependency.
func (h *Handler) AddCheck(name string, fn CheckFunc) {
	h.checks = append(h.checks, check{name: name, fn: fn})
}

// Response represents the health check response.
type Response struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services,omitempty"`
}

// Routes returns a chi.Router with /, /ready and /live.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.Check)
	r.Get("/ready", h.Ready)
	r.Get("/live", h.Live)
	return r
}

// MountRootEndpoints adds the probe endpoints on the root router.
func MountRootEndpoints(r chi.Router, h *Handler) {
	r.Get("/ready", h.Ready)
	r.Get("/readyz", h.Ready)
	r.Get("/livez", h.Live)
}

// run executes every check and reports whether all required ones passed.
func (h *Handler) run(ctx context.Context) (Response, bool) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	resp := Response{Status: "ok", Services: make(map[string]string, len(h.checks))}
	ready := true
	for _, c := range h.checks {
		if err := c.fn(ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("service", c.name), zap.Error(err))
			resp.Services[c.name] = "unavailable"
			resp.Status = "degraded"
			if c.required {
				ready = false
			}
			continue
		}
		resp.Services[c.name] = "ok"
	}
	return resp, ready
}

// Check reports every dependency. Any failure answers 503.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	resp, _ := h.run(r.Context())
	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	jsonutil.JSON(w, code, resp)
}

// Ready answers 503 only when a required dependency is down.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if _, ready := h.run(r.Context()); !ready {
		jsonutil.JSON(w, http.StatusServiceUnavailable, Response{Status: "not ready"})
		return
	}
	jsonutil.JSON(w, http.StatusOK, Response{Status: "ready"})
}

// Live answers as long as the process is serving.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	jsonutil.JSON(w, http.StatusOK, Response{Status: "alive"})
}
