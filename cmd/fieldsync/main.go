package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ha1tch/fieldsync/pkg/cache"
	"github.com/ha1tch/fieldsync/pkg/config"
	"github.com/ha1tch/fieldsync/pkg/metrics"
	"github.com/ha1tch/fieldsync/pkg/service"
	"github.com/ha1tch/fieldsync/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	jsonLogs   bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "fieldsync",
	Short: "Read and reconcile survey sampling hierarchies",
	Long: `fieldsync reads survey site hierarchies, techniques, block and stratum
definitions as nested JSON, and reconciles desired states read from JSON
files against the store in one transaction per command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Log JSON instead of console output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log warnings and errors")

	rootCmd.AddCommand(getCmd, syncCmd, createSitesCmd, deleteSitesCmd, versionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "fieldsync "+config.Version)
	},
}

// registerMetrics registers the collectors once per process
var registerMetrics = sync.OnceValue(func() *metrics.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
})

// app is everything a command needs, opened from the configuration
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	store  storage.Store
	cache  cache.Cache
	svc    *service.SurveyService
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	logger := zerolog.New(out).With().Timestamp().Logger()
	if !jsonLogs {
		logger = logger.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}
	level := cfg.Level()
	if quiet {
		level = zerolog.WarnLevel
	}
	return logger.Level(level)
}

// openApp loads the configuration and opens the store and cache. Logs go
// to stderr so stdout carries only command output.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, os.Stderr)

	store, err := storage.NewStore(ctx, cfg.StoreType, cfg.StoreConfig(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	info := store.Info()
	logger.Debug().
		Str("type", info.Type).
		Str("version", info.Version).
		Int("schema_version", info.SchemaVersion).
		Bool("concurrent_statements", info.ConcurrentStatements).
		Msg("Storage initialized")

	c, err := cache.New(cfg.CacheType, cfg.CacheSize, cfg.CacheDuration(), cfg.RedisAddr)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to open cache, falling back to memory cache")
		c = cache.NewMemoryCache(cfg.CacheSize, cfg.CacheDuration())
	}

	svc := service.New(store, cfg,
		service.WithCache(c),
		service.WithLogger(logger),
		service.WithMetrics(registerMetrics()),
	)
	return &app{cfg: cfg, logger: logger, store: store, cache: c, svc: svc}, nil
}

func (a *app) Close() {
	if err := a.cache.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to close cache")
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to close store")
	}
}
