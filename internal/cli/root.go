package cli

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/jatinvaidya/auth0-bulk-delete/internal/bulk/health"
	"github.com/jatinvaidya/auth0-bulk-delete/internal/bulk/ledger"
	"github.com/jatinvaidya/auth0-bulk-delete/internal/bulk/retry"
	"github.com/jatinvaidya/auth0-bulk-delete/internal/bulk/runner"
	"github.com/jatinvaidya/auth0-bulk-delete/internal/bulk/scheduler"
	"github.com/jatinvaidya/auth0-bulk-delete/internal/core/config"
	"github.com/jatinvaidya/auth0-bulk-delete/internal/core/domain"
	"github.com/jatinvaidya/auth0-bulk-delete/internal/infra/auth0"
	redisclient "github.com/jatinvaidya/auth0-bulk-delete/internal/infra/redis"
	"github.com/jatinvaidya/auth0-bulk-delete/internal/infra/storage/postgres"
	"github.com/jatinvaidya/auth0-bulk-delete/internal/input"
)

const defaultConfigPath = "config.yaml"

var (
	cfgPath string
	isDebug bool

	mode         string
	prompt       bool
	concurrent   int
	delayMs      int
	retries      int
	idsFile      string
	failuresFile string
	metricsPort  int
)

var rootCmd = &cobra.Command{
	Use:   "bulk-delete",
	Short: "Bulk delete Auth0 entities through the Management API",
	Long: `bulk-delete removes users, clients, resource servers, device credentials,
client grants or connections listed in an ids file from an Auth0 tenant.
Requests are rate limited, HTTP 429 responses are retried and every id that
could not be deleted is written to a failure log.

Tenant credentials are read from AUTH0_DOMAIN, AUTH0_CLIENT_ID and
AUTH0_CLIENT_SECRET (a .env file is honoured).`,
	Args: cobra.NoArgs,
	Run:  runDelete,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	defaults := config.Default()

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath, "config file (optional)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&mode, "mode", "", "entity type: users, clients, resource-servers, device-credentials, client-grants, connections")
	rootCmd.PersistentFlags().StringVar(&failuresFile, "failures", defaults.Run.FailuresFile, "failure log file")

	rootCmd.Flags().BoolVar(&prompt, "prompt", defaults.Run.Prompt, "ask for the tenant short name before deleting")
	rootCmd.Flags().IntVar(&concurrent, "concurrent", defaults.Run.MaxConcurrent, "maximum in-flight delete requests (1-20)")
	rootCmd.Flags().IntVar(&delayMs, "delay", defaults.Run.MinDelayMs, "minimum milliseconds between request starts (300-3000)")
	rootCmd.Flags().IntVar(&retries, "retry", defaults.Run.MaxRetries, "retries per id after HTTP 429 (0-5)")
	rootCmd.Flags().StringVar(&idsFile, "ids", defaults.Run.IDsFile, "file with one id per line")
	rootCmd.Flags().IntVar(&metricsPort, "metrics-port", 0, "serve /health and /metrics on this port while running (0 disables)")
}

// loadConfig reads the config file, then applies every flag the user set. A
// missing default config file is not an error.
func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	path := cfgPath
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Run.Mode = mode
	}
	if flags.Changed("prompt") {
		cfg.Run.Prompt = prompt
	}
	if flags.Changed("concurrent") {
		cfg.Run.MaxConcurrent = concurrent
	}
	if flags.Changed("delay") {
		cfg.Run.MinDelayMs = delayMs
	}
	if flags.Changed("retry") {
		cfg.Run.MaxRetries = retries
	}
	if flags.Changed("ids") {
		cfg.Run.IDsFile = idsFile
	}
	if flags.Changed("failures") {
		cfg.Run.FailuresFile = failuresFile
	}
	if flags.Changed("metrics-port") {
		cfg.Server.Port = metricsPort
	}
	return cfg, nil
}

func setupLogging(cfg *config.AppConfig) {
	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
}

func runDelete(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()

	cfg, err := loadConfig(cmd)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg)

	if err := config.Validate(cfg); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	entity, _ := domain.ParseEntityType(cfg.Run.Mode)

	slog.Info("Bulk delete configured",
		"domain", cfg.Auth0.Domain,
		"mode", entity,
		"ids_file", cfg.Run.IDsFile,
		"failures_file", cfg.Run.FailuresFile,
		"concurrent", cfg.Run.MaxConcurrent,
		"delay_ms", cfg.Run.MinDelayMs,
		"retry", cfg.Run.MaxRetries,
		"prompt", cfg.Run.Prompt,
	)

	ids, err := input.ReadIDsFile(cfg.Run.IDsFile)
	if err != nil {
		slog.Error("Failed to read ids", "error", err)
		os.Exit(1)
	}
	slog.Debug("Ids loaded", "count", len(ids))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var client *auth0.Client
	if cfg.Auth0.BaseURL != "" {
		client = auth0.NewClientWithBaseURL(cfg.Auth0.Domain, cfg.Auth0.BaseURL, cfg.Auth0.Timeout)
	} else {
		client = auth0.NewClient(cfg.Auth0.Domain, cfg.Auth0.Timeout)
	}
	defer func() {
		_ = client.Close()
	}()

	token, err := client.AcquireToken(ctx, auth0.TokenRequest{
		ClientID:     cfg.Auth0.ClientID,
		ClientSecret: cfg.Auth0.ClientSecret,
		Scope:        entity.Scope(),
	})
	if err != nil {
		slog.Error("Failed to acquire management API token", "error", err)
		os.Exit(1)
	}

	runID := uuid.NewString()
	mirrors, closeMirrors := openMirrors(ctx, cfg)
	defer closeMirrors()

	led, err := ledger.Open(cfg.Run.FailuresFile, entity, mirrors...)
	if err != nil {
		slog.Warn("Failure log unavailable, failures will only be logged", "error", err)
	}
	defer func() {
		_ = led.Close()
	}()

	var gate runner.Gate
	if cfg.Run.Prompt {
		gate = input.PromptGate{In: os.Stdin, Out: os.Stdout, Domain: cfg.Auth0.Domain}
	}

	r := runner.New(runner.Config{
		Entity: entity,
		RunID:  runID,
		Scheduler: scheduler.Config{
			MaxConcurrent: cfg.Run.MaxConcurrent,
			MinDelay:      cfg.Run.MinDelay(),
		},
		Retry: retry.Config{
			MaxRetries: cfg.Run.MaxRetries,
			MinDelay:   cfg.Run.MinDelay(),
			MaxBackoff: cfg.Run.MaxBackoff,
			Jitter:     cfg.Run.Jitter,
		},
	}, client, gate, led)

	if cfg.Server.Port > 0 {
		srv := health.NewServer(r, cfg.Server.Port)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(shutdownCtx)
		}()
	}

	summary, err := r.Run(ctx, ids, token)
	if errors.Is(err, domain.ErrNotConfirmed) {
		slog.Error("Deletion not confirmed, nothing was deleted", "error", err)
		os.Exit(1)
	}

	stats := client.Stats()
	slog.Info("Bulk delete finished",
		"run_id", runID,
		"attempted", summary.Attempted,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"aborted", summary.Aborted,
		"duration", summary.Duration.Round(time.Millisecond),
		"requests", stats.Requests,
		"rate_limited", stats.RateLimited,
		"avg_latency", stats.AverageLatency().Round(time.Millisecond),
	)
	if summary.Failed > 0 {
		slog.Warn("Some ids could not be deleted", "count", summary.Failed, "failures_file", led.Path())
	}
	if err != nil {
		slog.Error("Bulk delete interrupted", "error", err)
		os.Exit(1)
	}
}

// openMirrors connects the optional failure mirrors. A mirror that cannot be
// reached is skipped with a warning.
func openMirrors(ctx context.Context, cfg *config.AppConfig) ([]ledger.Mirror, func()) {
	var (
		mirrors []ledger.Mirror
		closers []func()
	)

	if cfg.Redis.URL != "" {
		rc, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Redis mirror disabled", "error", err)
		} else {
			mirrors = append(mirrors, redisclient.NewFailureRepo(rc, cfg.Redis.TTL))
			closers = append(closers, func() { _ = rc.Close() })
			slog.Info("Mirroring failures to Redis")
		}
	}

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			slog.Warn("Postgres mirror disabled", "error", err)
		} else {
			mirrors = append(mirrors, postgres.NewFailureRepo(db))
			closers = append(closers, func() { _ = db.Close() })
			slog.Info("Mirroring failures to Postgres")
		}
	}

	return mirrors, func() {
		for _, c := range closers {
			c()
		}
	}
}
