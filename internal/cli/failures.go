package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/jatinvaidya/auth0-bulk-delete/internal/bulk/ledger"
	"github.com/jatinvaidya/auth0-bulk-delete/internal/core/config"
	"github.com/jatinvaidya/auth0-bulk-delete/internal/core/domain"
	redisclient "github.com/jatinvaidya/auth0-bulk-delete/internal/infra/redis"
	"github.com/jatinvaidya/auth0-bulk-delete/internal/infra/storage/postgres"
)

var (
	failuresSource string
	failuresRunID  string
)

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "Show ids that could not be deleted",
	Long: `Prints the failure log of a previous run. With --source redis or
--source postgres the mirrored records are read instead; those need --mode and
the matching connection settings in the config file.`,
	Args: cobra.NoArgs,
	Run:  runFailures,
}

func init() {
	failuresCmd.Flags().StringVar(&failuresSource, "source", "file", "where to read failures from: file, redis, postgres")
	failuresCmd.Flags().StringVar(&failuresRunID, "run", "", "only show this run (postgres)")
	rootCmd.AddCommand(failuresCmd)
}

func runFailures(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg)

	records, total, err := loadFailures(cmd.Context(), failuresSource, cfg)
	if err != nil {
		slog.Error("Failed to load failures", "source", failuresSource, "error", err)
		os.Exit(1)
	}
	printFailures(os.Stdout, records, total)
}

// printFailures writes records as a table. total is the number of records the
// source holds, which is larger than len(records) when filtering by run.
func printFailures(out io.Writer, records []*domain.FailureRecord, total int) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tATTEMPTS\tRUN\tFAILED AT")
	for _, r := range records {
		failedAt := "-"
		if !r.FailedAt.IsZero() {
			failedAt = r.FailedAt.Format(time.RFC3339)
		}
		attempts := "-"
		if r.Attempts > 0 {
			attempts = fmt.Sprint(r.Attempts)
		}
		runID := r.RunID
		if runID == "" {
			runID = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", r.ID, r.StatusCode, attempts, runID, failedAt)
	}
	_ = w.Flush()

	if total > len(records) {
		_, _ = fmt.Fprintf(out, "%d failed (%d stored)\n", len(records), total)
		return
	}
	_, _ = fmt.Fprintf(out, "%d failed\n", len(records))
}

func loadFailures(ctx context.Context, source string, cfg *config.AppConfig) ([]*domain.FailureRecord, int, error) {
	if source == "file" {
		header, recs, err := ledger.ReadFile(cfg.Run.FailuresFile)
		if err != nil {
			return nil, 0, err
		}
		slog.Debug("Failure log read", "path", cfg.Run.FailuresFile, "header", header)
		out := make([]*domain.FailureRecord, len(recs))
		for i := range recs {
			out[i] = &recs[i]
		}
		return out, len(out), nil
	}

	entity, err := domain.ParseEntityType(cfg.Run.Mode)
	if err != nil {
		return nil, 0, fmt.Errorf("--mode is required for source %s: %w", source, err)
	}

	switch source {
	case "redis":
		if cfg.Redis.URL == "" {
			return nil, 0, errors.New("redis.url is not configured")
		}
		rc, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, 0, err
		}
		defer func() {
			_ = rc.Close()
		}()
		repo := redisclient.NewFailureRepo(rc, cfg.Redis.TTL)
		// GetAll drops expired index entries, so count afterwards
		records, err := repo.GetAll(ctx, entity)
		if err != nil {
			return nil, 0, err
		}
		total, err := repo.Count(ctx, entity)
		if err != nil {
			return nil, 0, err
		}
		return records, total, nil
	case "postgres":
		if cfg.Database.URL == "" {
			return nil, 0, errors.New("database.url is not configured")
		}
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, 0, err
		}
		defer func() {
			_ = db.Close()
		}()
		repo := postgres.NewFailureRepo(db)
		records, err := repo.GetAll(ctx, entity, failuresRunID)
		if err != nil {
			return nil, 0, err
		}
		total, err := repo.Count(ctx, entity)
		if err != nil {
			return nil, 0, err
		}
		return records, total, nil
	default:
		return nil, 0, fmt.Errorf("unknown source %q", source)
	}
}
