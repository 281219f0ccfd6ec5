// Package cmd implements the meetscribe command-line interface.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wealthpath/meetscribe/config"
	"github.com/wealthpath/meetscribe/pkg/db"
	"github.com/wealthpath/meetscribe/pkg/events"
	"github.com/wealthpath/meetscribe/pkg/fetch"
	"github.com/wealthpath/meetscribe/pkg/logging"
	"github.com/wealthpath/meetscribe/pkg/observability"
	"github.com/wealthpath/meetscribe/pkg/storage"
)

// Global flags.
var (
	outputFormat string
	debug        bool
)

// cfg holds the loaded configuration.
var cfg *config.Config

// logger is the process logger, initialized after config load.
var logger logging.Logger = logging.NewNopLogger()

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "meetscribe",
	Short: "Meeting transcription lifecycle engine",
	Long: `meetscribe manages meeting transcripts end to end: parsing caption
files, tracking live transcription sessions, and retrieving finished
transcript content from the conferencing provider.

COMMON WORKFLOWS:
  Parse a caption file:      meetscribe parse recording.vtt
  Fetch one transcript:      meetscribe fetch --transcript-id tr-123
  Sweep the backlog:         meetscribe sweep
  Retry failed fetches:      meetscribe retry
  Show backlog stats:        meetscribe stats`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return err
		}

		if outputFormat != "" {
			cfg.OutputFormat = config.OutputFormat(outputFormat)
			if !cfg.OutputFormat.IsValid() {
				return fmt.Errorf("invalid output format: %q", outputFormat)
			}
		}
		if debug {
			cfg.Debug = true
		}

		level := logging.LevelInfo
		if cfg.Debug {
			level = logging.LevelDebug
		}
		logger = logging.NewLogger(&logging.Config{
			Level:       level,
			ServiceName: "meetscribe",
			JSONFormat:  false,
			Output:      os.Stderr,
		})
		return nil
	},
}

// Execute runs the root command.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "", "output format: text, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// printResult renders v according to the configured output format. The
// text function is used for the human-readable format.
func printResult(v interface{}, text func() string) error {
	switch cfg.OutputFormat {
	case config.OutputFormatJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case config.OutputFormatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	default:
		fmt.Println(text())
		return nil
	}
}

// connectPool opens the configured database and returns the raw pool.
func connectPool(ctx context.Context) (*pgxpool.Pool, func(), error) {
	if !cfg.Database.IsConfigured() {
		return nil, nil, fmt.Errorf("no database configured: set database in %s or MEETSCRIBE_DB_* env vars", configLocation())
	}

	dbCfg := db.DefaultConfig()
	dbCfg.Host = cfg.Database.Host
	if cfg.Database.Port != 0 {
		dbCfg.Port = cfg.Database.Port
	}
	dbCfg.Database = cfg.Database.Database
	dbCfg.User = cfg.Database.User
	dbCfg.Password = cfg.Database.Password
	if cfg.Database.SSLMode != "" {
		dbCfg.SSLMode = cfg.Database.SSLMode
	}

	pool, err := db.ConnectWithRetry(ctx, dbCfg, 3, 2*time.Second)
	if err != nil {
		return nil, nil, err
	}

	if _, err := db.RegisterPoolStats(pool, "meetscribe", metricsRegistry); err != nil {
		logger.Warn("Pool metrics registration failed", logging.Err(err))
	}
	return pool, func() { db.Close(pool) }, nil
}

// connectRepository opens the configured database and returns a repository.
func connectRepository(ctx context.Context) (*storage.Repository, func(), error) {
	pool, closePool, err := connectPool(ctx)
	if err != nil {
		return nil, nil, err
	}
	return storage.NewRepository(pool, logger), closePool, nil
}

// newPublisher returns an event publisher when Redis is configured, else nil.
func newPublisher() *events.Publisher {
	if !cfg.Redis.IsConfigured() {
		return nil
	}

	port := cfg.Redis.Port
	if port == 0 {
		port = 6379
	}
	pub, err := events.NewPublisherFromConfig(events.PublisherConfig{
		Host:     cfg.Redis.Host,
		Port:     port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		logger.Warn("Event publishing disabled", logging.Err(err))
		return nil
	}
	return pub
}

// metricsRegistry collects all process metrics: the transcript metric set
// and the database pool collector. CLI runs are short-lived; the registry
// exists so counters are exercised the same way the long-running
// deployments exercise them.
var metricsRegistry = prometheus.NewRegistry()

// newMetrics creates and registers the transcript metric set.
func newMetrics() *observability.Metrics {
	m := observability.NewMetrics("meetscribe")
	if err := m.Register(metricsRegistry); err != nil {
		logger.Warn("Metric registration failed", logging.Err(err))
		return nil
	}
	return m
}

// fetchManagerConfig maps the loaded config onto the fetch manager.
func fetchManagerConfig() fetch.ManagerConfig {
	return fetch.ManagerConfig{
		Policy: fetch.RetryPolicy{
			MaxAttempts:    cfg.Fetch.MaxAttempts,
			InitialBackoff: cfg.Fetch.InitialBackoff,
			MaxBackoff:     cfg.Fetch.MaxBackoff,
			BackoffFactor:  cfg.Fetch.BackoffFactor,
		},
		SweepGroupSize:  cfg.Fetch.SweepGroupSize,
		SweepGroupPause: cfg.Fetch.SweepGroupPause,
	}
}

// newProvider builds the provider client from config.
func newProvider() *fetch.HTTPProvider {
	return fetch.NewHTTPProvider(fetch.HTTPProviderConfig{
		BaseURL:         cfg.Provider.BaseURL,
		APIToken:        cfg.Provider.APIToken,
		DownloadTimeout: cfg.Provider.DownloadTimeout,
	}, logger)
}

func configLocation() string {
	path, err := config.ConfigPath()
	if err != nil {
		return "~/.meetscribe/config.yaml"
	}
	return path
}
