// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework-level settings (ports, TLS, logging, CORS, timeouts); AppConfig
// covers the member register itself.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Maximum connections in pool (default: 100)
	MongoMinPoolSize uint64 // Minimum connections to keep warm (default: 10)

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Maximum session cookie lifetime (default: 24h)

	// Rate limiting for sign-in attempts
	RateLimitEnabled       bool
	RateLimitLoginAttempts int
	RateLimitLoginWindow   time.Duration
	RateLimitLoginLockout  time.Duration

	CSRFKey string

	SiteName string

	// Postal code lookup. An empty base URL disables the lookup endpoint.
	PostalAPIBaseURL string
	PostalTimeout    time.Duration

	// Redis caches postal lookups. Empty disables the cache.
	RedisURL       string
	PostalCacheTTL time.Duration

	// Address splitting
	AddressLooseFallback bool

	// Qualification migration rule (comma-separated deprecated tags)
	TypeMigrationDeprecated  string
	TypeMigrationReplacement string

	// Maintenance batches and the job queue
	MaintenanceConcurrency int
	JobWorkers             int
	JobRetention           time.Duration
	AuditRetention         time.Duration

	// Audit logging: 'all' (db+log), 'db', 'log', or 'off'
	AuditLogAuth    string
	AuditLogMembers string

	// Seeding
	SeedAdminLogin    string
	SeedAdminPassword string
	SeedAdminName     string
	SeedSampleMembers bool
}
