package main

import (
	"context"
	"os"

	"github.com/denismitr/lemonrest"
	"github.com/denismitr/lemonrest/internal/config"
	"github.com/denismitr/lemonrest/internal/metrics"
	"github.com/denismitr/lemonrest/internal/storage/redisstorage"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type app struct {
	configPath string
	envFile    string
	verbose    bool

	// overrides collects flag values; zero values leave the loaded config alone
	overrides config.Config

	cfg *config.Config
	log *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "lemonrest",
		Short: "REST API over a JSON file",
		Long: `lemonrest serves one collection of JSON records over HTTP.

Records live in a JSON array file (or in memory, or in redis), every record
has an integer id assigned by the server, and the usual verbs map onto
create, read, merge and delete.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "path to a yaml config file")
	flags.StringVar(&a.envFile, "env-file", ".env", "path to a .env file, ignored when missing")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")
	flags.StringVar(&a.overrides.Storage.Driver, "driver", "", "storage driver: file, memory or redis")
	flags.StringVar(&a.overrides.Storage.Path, "data", "", "path to the json data file")
	flags.StringVar(&a.overrides.Storage.Reload, "reload", "", "reload strategy: always or open")
	flags.StringVar(&a.overrides.Redis.Addr, "redis-addr", "", "redis address for the redis driver")

	root.AddCommand(newServeCmd(a), newInspectCmd(a))
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath, a.envFile)
	if err != nil {
		return err
	}

	if err := cfg.Merge(&a.overrides); err != nil {
		return err
	}

	if a.verbose {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}

	a.cfg = cfg
	a.log = log
	return nil
}

func newLogger(lc config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	return zc.Build()
}

// openCollection opens the configured backend. A nil collector is fine.
func (a *app) openCollection(ctx context.Context, m *metrics.Collector) (*lemonrest.Collection, lemonrest.Closer, error) {
	sc := a.cfg.Storage
	lc := &lemonrest.Config{
		ReloadStrategy: lemonrest.ReloadStrategy(sc.Reload),
		IDStrategy:     lemonrest.IDStrategy(sc.IDs),
		Indent:         sc.Indent,
		SyncWrites:     sc.Sync,
		TruncateOnOpen: sc.TruncateOnOpen,
		CacheMaxBytes:  sc.CacheMaxBytes,
		Logger:         a.log.Named("collection"),
	}
	if m != nil {
		lc.Observer = m
	}

	switch sc.Driver {
	case config.DriverMemory:
		return lemonrest.Open(lemonrest.InMemory, lc)
	case config.DriverRedis:
		rc := a.cfg.Redis
		s, err := redisstorage.Open(ctx, redisstorage.Options{
			Addr:        rc.Addr,
			Password:    rc.Password,
			DB:          rc.DB,
			Key:         rc.Key,
			DialTimeout: rc.DialTimeout,
		})
		if err != nil {
			return nil, lemonrest.NullCloser, err
		}
		return lemonrest.OpenStorage(s, lc)
	}

	return lemonrest.Open(sc.Path, lc)
}
