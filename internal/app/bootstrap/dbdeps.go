// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/stratamembers/internal/app/system/address"
	"github.com/dalemusser/stratamembers/internal/app/system/metrics"
	"github.com/dalemusser/stratamembers/internal/app/system/postal"
	"github.com/dalemusser/stratamembers/internal/app/system/redisclient"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database and backend dependencies for this WAFFLE app.
//
// It is created in ConnectDB and passed to EnsureSchema, Startup,
// BuildHandler, and Shutdown. Shutdown closes the connections.
type DBDeps struct {
	// MongoDB client and database
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Redis backs the postal lookup cache; nil when redis_url is blank.
	Redis *redisclient.Client

	// Postal lookup client; nil when postal_api_base_url is blank.
	Postal *postal.Client

	Splitter *address.Splitter
	Metrics  *metrics.Metrics
}
