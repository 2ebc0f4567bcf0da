// Package cli implements memberctl, the command-line companion to the
// member register server. It shares the server's STRATAMEMBERS_* settings.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix matches the server's environment prefix.
const EnvPrefix = "STRATAMEMBERS"

// OpenDBFunc connects to the member database. The returned func releases it.
type OpenDBFunc func(ctx context.Context, uri, database string) (*mongo.Database, func(context.Context) error, error)

// env carries what every subcommand needs.
type env struct {
	v      *viper.Viper
	out    io.Writer
	errOut io.Writer
	logger *zap.Logger
	openDB OpenDBFunc
}

// Option adjusts the root command, mainly for tests.
type Option func(*env)

// WithOutput redirects command output and diagnostics.
func WithOutput(out, errOut io.Writer) Option {
	return func(e *env) {
		e.out = out
		e.errOut = errOut
	}
}

// WithOpenDB replaces the MongoDB connector.
func WithOpenDB(fn OpenDBFunc) Option {
	return func(e *env) { e.openDB = fn }
}

// Execute runs memberctl with os.Args and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd builds the memberctl command tree.
func NewRootCmd(opts ...Option) *cobra.Command {
	e := &env{
		v:      viper.New(),
		out:    os.Stdout,
		errOut: os.Stderr,
		openDB: connectMongo,
	}
	for _, opt := range opts {
		opt(e)
	}
	setDefaults(e.v)

	var cfgFile string
	root := &cobra.Command{
		Use:   "memberctl",
		Short: "Maintain the member register",
		Long: `memberctl repairs and imports member records.

Settings come from flags, STRATAMEMBERS_* environment variables and an
optional YAML config file, in that order of precedence.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.loadConfig(cfgFile); err != nil {
				return err
			}
			logger, err := newLogger(e.v.GetString("log_level"), e.errOut)
			if err != nil {
				return err
			}
			e.logger = logger
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
		},
	}
	root.SetOut(e.out)
	root.SetErr(e.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./memberctl.yaml if present)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("mongo-uri", "", "MongoDB connection URI")
	pf.String("mongo-database", "", "MongoDB database name")
	bindFlag(e.v, "log_level", pf, "log-level")
	bindFlag(e.v, "mongo_uri", pf, "mongo-uri")
	bindFlag(e.v, "mongo_database", pf, "mongo-database")

	root.AddCommand(
		newFixAddressesCmd(e),
		newMigrateTypesCmd(e),
		newImportCmd(e),
		newLookupCmd(e),
	)
	return root
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("mongo_database", "stratamembers")
	v.SetDefault("postal_api_base_url", "https://zipcloud.ibsnet.co.jp")
	v.SetDefault("postal_timeout", "5s")
	v.SetDefault("redis_url", "")
	v.SetDefault("postal_cache_ttl", "168h")
	v.SetDefault("address_loose_fallback", true)
	v.SetDefault("type_migration_deprecated", "")
	v.SetDefault("type_migration_replacement", "")
	v.SetDefault("maintenance_concurrency", 4)
}

func (e *env) loadConfig(cfgFile string) error {
	e.v.SetEnvPrefix(EnvPrefix)
	e.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	e.v.AutomaticEnv()

	if cfgFile != "" {
		e.v.SetConfigFile(cfgFile)
	} else {
		e.v.SetConfigName("memberctl")
		e.v.SetConfigType("yaml")
		e.v.AddConfigPath(".")
	}
	if err := e.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// bindFlag lets an explicitly set flag override the environment and the
// config file for key.
func bindFlag(v *viper.Viper, key string, fs *pflag.FlagSet, name string) {
	if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", name, err))
	}
}

func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}

func connectMongo(ctx context.Context, uri, database string) (*mongo.Database, func(context.Context) error, error) {
	if err := wafflemongo.ValidateURI(uri); err != nil {
		return nil, nil, fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	client, err := wafflemongo.ConnectWithPool(ctx, uri, database, wafflemongo.DefaultPoolConfig())
	if err != nil {
		return nil, nil, err
	}
	return client.Database(database), client.Disconnect, nil
}
