// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	auditlogfeature "github.com/dalemusser/stratamembers/internal/app/features/auditlog"
	dashboardfeature "github.com/dalemusser/stratamembers/internal/app/features/dashboard"
	errorsfeature "github.com/dalemusser/stratamembers/internal/app/features/errors"
	healthfeature "github.com/dalemusser/stratamembers/internal/app/features/health"
	homefeature "github.com/dalemusser/stratamembers/internal/app/features/home"
	loginfeature "github.com/dalemusser/stratamembers/internal/app/features/login"
	logoutfeature "github.com/dalemusser/stratamembers/internal/app/features/logout"
	maintenancefeature "github.com/dalemusser/stratamembers/internal/app/features/maintenance"
	membersfeature "github.com/dalemusser/stratamembers/internal/app/features/members"
	operatorsfeature "github.com/dalemusser/stratamembers/internal/app/features/operators"
	profilefeature "github.com/dalemusser/stratamembers/internal/app/features/profile"
	statusfeature "github.com/dalemusser/stratamembers/internal/app/features/status"
	appresources "github.com/dalemusser/stratamembers/internal/app/resources"
	"github.com/dalemusser/stratamembers/internal/app/store/ratelimit"
	userstore "github.com/dalemusser/stratamembers/internal/app/store/users"
	"github.com/dalemusser/stratamembers/internal/app/system/auth"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed. Every page is session-authenticated and
// CSRF-protected; /health, /ready, /live and /metrics are open for probes
// and scrapers.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Fetch the operator on each request so role changes and disabled
	// accounts take effect immediately.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(deps.MongoDatabase, logger))

	// Dev mode enables template reloading for faster iteration.
	eng := templates.New(coreCfg.Env == "dev")
	if err := eng.Boot(logger); err != nil {
		logger.Error("template engine boot failed", zap.Error(err))
		return nil, err
	}
	templates.UseEngine(eng, logger)

	errLog := errorsfeature.NewErrorLogger(logger)
	auditLogger := newAuditLogger(appCfg, deps, logger)

	r := chi.NewRouter()

	// ─────────────────────────────────────────────────────────────────────────────
	// Global Middleware (applies to ALL routes)
	// ─────────────────────────────────────────────────────────────────────────────

	r.Use(chimw.RequestID)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.CORSFromConfig(coreCfg))
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))
	r.Use(sessionMgr.LoadSessionUser)

	// Cookie name is "stratamembers_csrf" to avoid collisions with other
	// services on the same domain.
	csrfOpts := []csrf.Option{
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.CookieName("stratamembers_csrf"),
		csrf.FieldName("csrf_token"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			logger.Warn("CSRF validation failed",
				zap.String("path", req.URL.Path),
				zap.String("method", req.Method),
				zap.String("reason", csrf.FailureReason(req).Error()),
			)
			http.Error(w, "CSRF token invalid or missing", http.StatusForbidden)
		})),
	}
	if !secure {
		// In dev mode, trust localhost origins for CSRF validation.
		csrfOpts = append(csrfOpts, csrf.TrustedOrigins([]string{
			"localhost:8080",
			"localhost:3000",
			"127.0.0.1:8080",
			"127.0.0.1:3000",
		}))
	}
	if appCfg.SessionDomain != "" {
		csrfOpts = append(csrfOpts, csrf.Domain(appCfg.SessionDomain))
	}
	r.Use(csrf.Protect([]byte(appCfg.CSRFKey), csrfOpts...))

	// ─────────────────────────────────────────────────────────────────────────────
	// Routes
	// ─────────────────────────────────────────────────────────────────────────────

	// Health check endpoints for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	if deps.Redis != nil {
		healthHandler.AddCheck("redis", deps.Redis.Health)
	}
	r.Mount("/health", healthfeature.Routes(healthHandler))
	healthfeature.MountRootEndpoints(r, healthHandler)

	r.Handle("/metrics", deps.Metrics.Handler())

	// /static/* serves files from disk, /assets/* the embedded bundle.
	r.Handle("/static/*", fileserver.Handler("/static", "static"))
	r.Handle("/assets/*", appresources.AssetsHandler("/assets"))

	homeHandler := homefeature.NewHandler()
	r.Mount("/", homefeature.Routes(homeHandler))

	// Authentication
	var rateLimitStore *ratelimit.Store
	if appCfg.RateLimitEnabled {
		rateLimitStore = ratelimit.New(deps.MongoDatabase, ratelimit.Config{
			MaxAttempts: appCfg.RateLimitLoginAttempts,
			Window:      appCfg.RateLimitLoginWindow,
			Lockout:     appCfg.RateLimitLoginLockout,
		})
	}
	loginHandler := loginfeature.NewHandler(deps.MongoDatabase, sessionMgr, errLog, auditLogger, rateLimitStore, logger)
	r.Mount("/login", loginfeature.Routes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, auditLogger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	// Error pages
	errorsHandler := errorsfeature.NewHandler()
	r.Get("/forbidden", errorsHandler.Forbidden)
	r.Get("/unauthorized", errorsHandler.Unauthorized)

	dashboardHandler := dashboardfeature.NewHandler(deps.MongoDatabase, errLog, logger)
	r.Mount("/dashboard", dashboardfeature.Routes(dashboardHandler, sessionMgr))

	// Members (all operators read; admin and staff edit)
	membersHandler := membersfeature.NewHandler(deps.MongoDatabase, deps.Postal, deps.Splitter, errLog, auditLogger, logger)
	r.Mount("/members", membersfeature.Routes(membersHandler, sessionMgr))

	// Maintenance batches (admin only)
	maintenanceHandler := maintenancefeature.NewHandler(deps.MongoDatabase, batchConfig(appCfg, deps), errLog, auditLogger, logger)
	r.Mount("/maintenance", maintenancefeature.Routes(maintenanceHandler, sessionMgr))

	// Audit log (admin only)
	auditLogHandler := auditlogfeature.NewHandler(deps.MongoDatabase, errLog, logger)
	r.Mount("/audit", auditlogfeature.Routes(auditLogHandler, sessionMgr))

	// Own account (any operator)
	profileHandler := profilefeature.NewHandler(deps.MongoDatabase, errLog, auditLogger, logger)
	r.Mount("/profile", profilefeature.Routes(profileHandler, sessionMgr))

	// Operator accounts (admin only)
	operatorsHandler := operatorsfeature.NewHandler(deps.MongoDatabase, errLog, auditLogger, logger)
	r.Mount("/operators", operatorsfeature.Routes(operatorsHandler, sessionMgr))

	// System status (admin only)
	r.Mount("/admin/status", statusfeature.Routes(newStatusHandler(coreCfg, appCfg, deps, logger), sessionMgr))

	// 404 catch-all for unmatched routes
	r.NotFound(errorsHandler.NotFound)

	return r, nil
}

// newStatusHandler copies the displayable config into the status feature.
// Nil backends are passed as untyped nil so the page reports them as absent.
func newStatusHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) *statusfeature.Handler {
	var redis statusfeature.HealthChecker
	if deps.Redis != nil {
		redis = deps.Redis
	}
	var runner statusfeature.ActivityReporter
	if jobRunner != nil {
		runner = jobRunner
	}
	return statusfeature.NewHandler(deps.MongoDatabase, redis, runner, coreCfg, statusfeature.AppConfig{
		MongoURI:                 appCfg.MongoURI,
		MongoDatabase:            appCfg.MongoDatabase,
		MongoMaxPoolSize:         appCfg.MongoMaxPoolSize,
		MongoMinPoolSize:         appCfg.MongoMinPoolSize,
		SessionKey:               appCfg.SessionKey,
		SessionName:              appCfg.SessionName,
		SessionMaxAge:            appCfg.SessionMaxAge,
		CSRFKey:                  appCfg.CSRFKey,
		RateLimitEnabled:         appCfg.RateLimitEnabled,
		RateLimitLoginAttempts:   appCfg.RateLimitLoginAttempts,
		RateLimitLoginWindow:     appCfg.RateLimitLoginWindow,
		RateLimitLoginLockout:    appCfg.RateLimitLoginLockout,
		PostalAPIBaseURL:         appCfg.PostalAPIBaseURL,
		PostalTimeout:            appCfg.PostalTimeout,
		RedisURL:                 appCfg.RedisURL,
		PostalCacheTTL:           appCfg.PostalCacheTTL,
		AddressLooseFallback:     appCfg.AddressLooseFallback,
		TypeMigrationDeprecated:  appCfg.TypeMigrationDeprecated,
		TypeMigrationReplacement: appCfg.TypeMigrationReplacement,
		MaintenanceConcurrency:   appCfg.MaintenanceConcurrency,
		JobWorkers:               appCfg.JobWorkers,
		JobRetention:             appCfg.JobRetention,
		AuditRetention:           appCfg.AuditRetention,
		AuditLogAuth:             appCfg.AuditLogAuth,
		AuditLogMembers:          appCfg.AuditLogMembers,
		SeedAdminLogin:           appCfg.SeedAdminLogin,
	}, logger)
}
