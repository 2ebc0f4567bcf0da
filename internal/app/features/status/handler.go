// internal/app/features/status/handler.go
package status

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	jobstore "github.com/dalemusser/stratamembers/internal/app/store/jobs"
	"github.com/dalemusser/stratamembers/internal/app/system/certcheck"
	"github.com/dalemusser/stratamembers/internal/app/system/timeouts"
	"github.com/dalemusser/stratamembers/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dalemusser/waffle/server"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

var startTime = time.Now()

// HealthChecker is a backend that can be pinged. *redisclient.Client
// implements it.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// ActivityReporter reports jobs currently executing in this process.
// *jobrunner.Runner implements it.
type ActivityReporter interface {
	ActiveJobs() int32
}

// Handler holds dependencies for the status page.
type Handler struct {
	DB      *mongo.Database
	Jobs    *jobstore.Store
	Redis   HealthChecker
	Runner  ActivityReporter
	Log     *zap.Logger
	CoreCfg *config.CoreConfig
	AppCfg  AppConfig
}

// AppConfig mirrors the parts of bootstrap.AppConfig shown on the page.
type AppConfig struct {
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	SessionKey             string
	SessionName            string
	SessionMaxAge          time.Duration
	CSRFKey                string
	RateLimitEnabled       bool
	RateLimitLoginAttempts int
	RateLimitLoginWindow   time.Duration
	RateLimitLoginLockout  time.Duration

	PostalAPIBaseURL string
	PostalTimeout    time.Duration
	RedisURL         string
	PostalCacheTTL   time.Duration

	AddressLooseFallback     bool
	TypeMigrationDeprecated  string
	TypeMigrationReplacement string
	MaintenanceConcurrency   int
	JobWorkers               int
	JobRetention             time.Duration
	AuditRetention           time.Duration

	AuditLogAuth    string
	AuditLogMembers string
	SeedAdminLogin  string
}

// NewHandler creates a new status Handler. redis and runner may be nil.
func NewHandler(db *mongo.Database, redis HealthChecker, runner ActivityReporter, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) *Handler {
	return &Handler{
		DB:      db,
		Jobs:    jobstore.New(db),
		Redis:   redis,
		Runner:  runner,
		CoreCfg: coreCfg,
		AppCfg:  appCfg,
		Log:     logger,
	}
}

// ConfigItem represents a single configuration variable for display.
type ConfigItem struct {
	Name  string
	Value string
}

// ConfigGroup represents a logical group of configuration items.
type ConfigGroup struct {
	Name  string
	Items []ConfigItem
}

// JobCount is one row of the queue summary.
type JobCount struct {
	Status string
	Count  int64
}

// statusVM is the view model for the status page.
type statusVM struct {
	viewdata.BaseVM

	// Database
	DBConnected bool
	DBError     string
	DBPingMS    int64
	DBVersion   string

	// Postal cache
	RedisConfigured bool
	RedisOK         bool
	RedisError      string

	// Postal API certificate
	PostalEnabled bool
	CertHost      string
	CertExpiresAt string
	CertDaysLeft  int
	CertIssuer    string
	CertValid     bool
	CertError     string
	CertWarning   bool // expiring within 14 days

	// This server's own certificate
	CanRenewCert      bool
	CertChallengeType string
	RenewSuccess      bool

	// Maintenance queue
	JobCounts  []JobCount
	JobsError  string
	ActiveJobs int32

	// Runtime
	GoVersion    string
	Uptime       string
	NumGoroutine int
	MemAlloc     string

	ConfigGroups []ConfigGroup
}

// Serve handles GET /admin/status.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	vm := statusVM{
		BaseVM:       viewdata.NewBaseVM(r, "システム状態", "/dashboard"),
		GoVersion:    runtime.Version(),
		Uptime:       formatDuration(time.Since(startTime)),
		NumGoroutine: runtime.NumGoroutine(),
		RenewSuccess: r.URL.Query().Get("renewed") == "1",
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	vm.MemAlloc = formatBytes(m.Alloc)

	client := h.DB.Client()
	pingStart := time.Now()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		vm.DBError = err.Error()
		h.Log.Warn("status page: database ping failed", zap.Error(err))
	} else {
		vm.DBConnected = true
		vm.DBPingMS = time.Since(pingStart).Milliseconds()

		var result bson.M
		if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "buildInfo", Value: 1}}).Decode(&result); err == nil {
			if version, ok := result["version"].(string); ok {
				vm.DBVersion = version
			}
		}
	}

	if h.Redis != nil {
		vm.RedisConfigured = true
		if err := h.Redis.Health(ctx); err != nil {
			vm.RedisError = err.Error()
			h.Log.Warn("status page: redis ping failed", zap.Error(err))
		} else {
			vm.RedisOK = true
		}
	}

	if h.AppCfg.PostalAPIBaseURL != "" {
		vm.PostalEnabled = true
		info := certcheck.Check(ctx, h.AppCfg.PostalAPIBaseURL)
		vm.CertHost = info.Host
		vm.CertValid = info.IsValid
		vm.CertError = info.Error
		vm.CertDaysLeft = info.DaysLeft
		vm.CertIssuer = info.Issuer
		if !info.ExpiresAt.IsZero() {
			vm.CertExpiresAt = info.ExpiresAt.Local().Format("2006-01-02 15:04")
		}
		vm.CertWarning = info.DaysLeft > 0 && info.DaysLeft <= 14
	}

	if renewer := server.GetCertRenewer(); renewer != nil {
		vm.CanRenewCert = true
		vm.CertChallengeType = renewer.ChallengeType()
	}

	counts, err := h.Jobs.StatusCounts(ctx)
	if err != nil {
		vm.JobsError = err.Error()
		h.Log.Warn("status page: job counts failed", zap.Error(err))
	}
	for _, st := range []string{jobstore.StatusPending, jobstore.StatusRunning, jobstore.StatusCompleted, jobstore.StatusFailed, jobstore.StatusCancelled} {
		vm.JobCounts = append(vm.JobCounts, JobCount{Status: st, Count: counts[st]})
	}
	if h.Runner != nil {
		vm.ActiveJobs = h.Runner.ActiveJobs()
	}

	vm.ConfigGroups = h.buildConfigGroups()

	templates.Render(w, r, "status/index", vm)
}

// HandleRenew handles POST /admin/status/renew to force certificate renewal.
func (h *Handler) HandleRenew(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	renewer := server.GetCertRenewer()
	if renewer == nil {
		http.Error(w, "Certificate renewal not available", http.StatusBadRequest)
		return
	}

	h.Log.Info("forcing certificate renewal", zap.String("challenge_type", renewer.ChallengeType()))

	newExpiry, err := renewer.ForceRenewal(ctx)
	if err != nil {
		h.Log.Error("certificate renewal failed", zap.Error(err))
		http.Error(w, "Renewal failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.Log.Info("certificate renewal succeeded", zap.Time("new_expiry", newExpiry))
	http.Redirect(w, r, "/admin/status?renewed=1", http.StatusSeeOther)
}

// formatDuration renders d as days and hours, or hours and minutes.
func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%d日 %d時間", days, hours)
	case hours > 0:
		return fmt.Sprintf("%d時間 %d分", hours, minutes)
	default:
		return fmt.Sprintf("%d分", minutes)
	}
}

// formatBytes formats b with binary units.
func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatUint(b, 10) + " B"
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

// mask keeps the first and last two characters of a secret.
func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// maskURI hides the credentials in a connection URI.
func maskURI(s string) string {
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return mask(s)
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return s
	}
	user, _, _ := strings.Cut(creds, ":")
	return scheme + "://" + user + ":****@" + host
}

// buildConfigGroups creates organized groups of config items for display.
func (h *Handler) buildConfigGroups() []ConfigGroup {
	var groups []ConfigGroup
	boolStr := strconv.FormatBool
	itoa := strconv.Itoa
	a := h.AppCfg

	if h.CoreCfg != nil {
		groups = append(groups,
			ConfigGroup{
				Name: "Environment",
				Items: []ConfigItem{
					{Name: "env", Value: h.CoreCfg.Env},
					{Name: "log_level", Value: h.CoreCfg.LogLevel},
				},
			},
			ConfigGroup{
				Name: "HTTP Server",
				Items: []ConfigItem{
					{Name: "http_port", Value: fmt.Sprintf("%d", h.CoreCfg.HTTP.HTTPPort)},
					{Name: "https_port", Value: fmt.Sprintf("%d", h.CoreCfg.HTTP.HTTPSPort)},
					{Name: "use_https", Value: boolStr(h.CoreCfg.HTTP.UseHTTPS)},
					{Name: "use_lets_encrypt", Value: boolStr(h.CoreCfg.TLS.UseLetsEncrypt)},
					{Name: "domain", Value: h.CoreCfg.TLS.Domain},
					{Name: "shutdown_timeout", Value: h.CoreCfg.HTTP.ShutdownTimeout.String()},
				},
			},
		)
	}

	groups = append(groups,
		ConfigGroup{
			Name: "Database",
			Items: []ConfigItem{
				{Name: "mongo_uri", Value: maskURI(a.MongoURI)},
				{Name: "mongo_database", Value: a.MongoDatabase},
				{Name: "mongo_max_pool_size", Value: strconv.FormatUint(a.MongoMaxPoolSize, 10)},
				{Name: "mongo_min_pool_size", Value: strconv.FormatUint(a.MongoMinPoolSize, 10)},
			},
		},
		ConfigGroup{
			Name: "Session & Security",
			Items: []ConfigItem{
				{Name: "session_key", Value: mask(a.SessionKey)},
				{Name: "session_name", Value: a.SessionName},
				{Name: "session_max_age", Value: a.SessionMaxAge.String()},
				{Name: "csrf_key", Value: mask(a.CSRFKey)},
				{Name: "rate_limit_enabled", Value: boolStr(a.RateLimitEnabled)},
				{Name: "rate_limit_login_attempts", Value: itoa(a.RateLimitLoginAttempts)},
				{Name: "rate_limit_login_window", Value: a.RateLimitLoginWindow.String()},
				{Name: "rate_limit_login_lockout", Value: a.RateLimitLoginLockout.String()},
			},
		},
		ConfigGroup{
			Name: "Postal Lookup",
			Items: []ConfigItem{
				{Name: "postal_api_base_url", Value: a.PostalAPIBaseURL},
				{Name: "postal_timeout", Value: a.PostalTimeout.String()},
				{Name: "redis_url", Value: maskURI(a.RedisURL)},
				{Name: "postal_cache_ttl", Value: a.PostalCacheTTL.String()},
			},
		},
		ConfigGroup{
			Name: "Maintenance",
			Items: []ConfigItem{
				{Name: "address_loose_fallback", Value: boolStr(a.AddressLooseFallback)},
				{Name: "type_migration_deprecated", Value: a.TypeMigrationDeprecated},
				{Name: "type_migration_replacement", Value: a.TypeMigrationReplacement},
				{Name: "maintenance_concurrency", Value: itoa(a.MaintenanceConcurrency)},
				{Name: "job_workers", Value: itoa(a.JobWorkers)},
				{Name: "job_retention", Value: a.JobRetention.String()},
				{Name: "audit_retention", Value: a.AuditRetention.String()},
			},
		},
		ConfigGroup{
			Name: "Audit Logging",
			Items: []ConfigItem{
				{Name: "audit_log_auth", Value: a.AuditLogAuth},
				{Name: "audit_log_members", Value: a.AuditLogMembers},
				{Name: "seed_admin_login", Value: a.SeedAdminLogin},
			},
		},
	)

	return groups
}
