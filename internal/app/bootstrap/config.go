// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/stratamembers/internal/app/system/qualtype"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// EnvVarPrefix is the prefix for environment variables.
const EnvVarPrefix = "STRATAMEMBERS"

// appConfigKeys defines the configuration keys for this application.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, postal_api_base_url, etc.
//   - Environment variables: STRATAMEMBERS_MONGO_URI, STRATAMEMBERS_REDIS_URL, etc.
//   - Command-line flags: --mongo_uri, --redis_url, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "stratamembers", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "stratamembers-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie max age (e.g., 24h, 720h, 30m)"},

	// Rate limiting configuration
	{Name: "rate_limit_enabled", Default: true, Desc: "Enable rate limiting for login attempts"},
	{Name: "rate_limit_login_attempts", Default: 5, Desc: "Max failed login attempts before lockout"},
	{Name: "rate_limit_login_window", Default: "15m", Desc: "Time window for counting failed attempts"},
	{Name: "rate_limit_login_lockout", Default: "15m", Desc: "Lockout duration after exceeding limit"},

	{Name: "csrf_key", Default: "dev-only-csrf-key-please-change-0123456789", Desc: "CSRF token signing key (32+ chars in production)"},

	{Name: "site_name", Default: "", Desc: "Site name shown in page headers (blank keeps the default)"},

	// Postal code lookup
	{Name: "postal_api_base_url", Default: "https://zipcloud.ibsnet.co.jp", Desc: "Postal code search API host (blank disables lookup)"},
	{Name: "postal_timeout", Default: "5s", Desc: "Timeout for one postal code lookup"},
	{Name: "redis_url", Default: "", Desc: "Redis URL for the postal lookup cache (blank disables caching)"},
	{Name: "postal_cache_ttl", Default: "168h", Desc: "How long a cached postal lookup stays valid"},

	// Address and qualification repair
	{Name: "address_loose_fallback", Default: true, Desc: "Split addresses at the first digit when no block pattern matches"},
	{Name: "type_migration_deprecated", Default: "ベビーマッサージマスター,ベビーマッサージインストラクター,ベビーマッサージ", Desc: "Comma-separated qualification tags to retire"},
	{Name: "type_migration_replacement", Default: "ベビマ", Desc: "Tag that replaces the retired tags"},
	{Name: "maintenance_concurrency", Default: 4, Desc: "Concurrent member writes during a maintenance batch"},
	{Name: "job_workers", Default: 1, Desc: "Background workers for the maintenance queue"},
	{Name: "job_retention", Default: "720h", Desc: "How long finished jobs are kept"},
	{Name: "audit_retention", Default: "8760h", Desc: "How long audit events are kept"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_members", Default: "all", Desc: "Member event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Seeding
	{Name: "seed_admin_login", Default: "", Desc: "Login ID of the admin operator created on startup"},
	{Name: "seed_admin_password", Default: "", Desc: "Password of the seeded admin operator"},
	{Name: "seed_admin_name", Default: "管理者", Desc: "Display name of the seeded admin operator"},
	{Name: "seed_sample_members", Default: false, Desc: "Load sample members into an empty register"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, STRATAMEMBERS_* for app) and
// command-line flags, merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvVarPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 24*time.Hour),

		// Rate limiting
		RateLimitEnabled:       appValues.Bool("rate_limit_enabled"),
		RateLimitLoginAttempts: appValues.Int("rate_limit_login_attempts"),
		RateLimitLoginWindow:   appValues.Duration("rate_limit_login_window", 15*time.Minute),
		RateLimitLoginLockout:  appValues.Duration("rate_limit_login_lockout", 15*time.Minute),

		CSRFKey:  appValues.String("csrf_key"),
		SiteName: appValues.String("site_name"),

		// Postal lookup
		PostalAPIBaseURL: appValues.String("postal_api_base_url"),
		PostalTimeout:    appValues.Duration("postal_timeout", 5*time.Second),
		RedisURL:         appValues.String("redis_url"),
		PostalCacheTTL:   appValues.Duration("postal_cache_ttl", 7*24*time.Hour),

		// Repairs
		AddressLooseFallback:     appValues.Bool("address_loose_fallback"),
		TypeMigrationDeprecated:  appValues.String("type_migration_deprecated"),
		TypeMigrationReplacement: appValues.String("type_migration_replacement"),
		MaintenanceConcurrency:   appValues.Int("maintenance_concurrency"),
		JobWorkers:               appValues.Int("job_workers"),
		JobRetention:             appValues.Duration("job_retention", 30*24*time.Hour),
		AuditRetention:           appValues.Duration("audit_retention", 365*24*time.Hour),

		// Audit logging
		AuditLogAuth:    appValues.String("audit_log_auth"),
		AuditLogMembers: appValues.String("audit_log_members"),

		// Seeding
		SeedAdminLogin:    appValues.String("seed_admin_login"),
		SeedAdminPassword: appValues.String("seed_admin_password"),
		SeedAdminName:     appValues.String("seed_admin_name"),
		SeedSampleMembers: appValues.Bool("seed_sample_members"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if appCfg.PostalAPIBaseURL != "" {
		u, err := url.Parse(appCfg.PostalAPIBaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid postal_api_base_url %q", appCfg.PostalAPIBaseURL)
		}
	}

	if strings.TrimSpace(appCfg.TypeMigrationReplacement) == "" {
		return fmt.Errorf("type_migration_replacement must not be empty")
	}
	rule := migrationRule(appCfg)
	if rule.Deprecated.Has(rule.Replacement) {
		return fmt.Errorf("type_migration_replacement %q is also listed as deprecated", rule.Replacement)
	}

	if appCfg.SeedAdminLogin != "" && len(appCfg.SeedAdminPassword) < 8 {
		return fmt.Errorf("seed_admin_password must be at least 8 characters when seed_admin_login is set")
	}

	if coreCfg.Env == "prod" && len(appCfg.CSRFKey) < 32 {
		logger.Warn("csrf_key is shorter than 32 characters")
	}

	return nil
}

func migrationRule(appCfg AppConfig) qualtype.Rule {
	return qualtype.ParseRule(appCfg.TypeMigrationDeprecated, appCfg.TypeMigrationReplacement)
}
