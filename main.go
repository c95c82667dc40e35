package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"krisha-pipeline/config"
	"krisha-pipeline/monitoring"
	"krisha-pipeline/pipeline"
	"krisha-pipeline/scraper"
	"krisha-pipeline/scraper/krisha"
	"krisha-pipeline/services"
	"krisha-pipeline/storage"
	"krisha-pipeline/utils"
)

const usage = `Usage: krisha-pipeline <stage> [flags]

Stages:
  collect     scrape listing pages into the raw CSV
  normalize   clean the raw CSV into the clean CSV
  persist     upsert the clean CSV into PostgreSQL
  run         all three stages in order

Run "krisha-pipeline <stage> -h" for stage flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	stage := os.Args[1]
	switch stage {
	case pipeline.StageCollect, pipeline.StageNormalize, pipeline.StagePersist, pipeline.StageRun:
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown stage %q\n\n%s", stage, usage)
		os.Exit(2)
	}

	cfg := config.Load()

	// Flags override the environment for one invocation.
	fs := flag.NewFlagSet(stage, flag.ExitOnError)
	fs.StringVar(&cfg.RawCSVPath, "raw", cfg.RawCSVPath, "Raw CSV path. Env: RAW_CSV_PATH")
	fs.StringVar(&cfg.CleanCSVPath, "clean", cfg.CleanCSVPath, "Clean CSV path. Env: CLEAN_CSV_PATH")
	fs.IntVar(&cfg.StageRetries, "retries", cfg.StageRetries, "Attempts per stage. Env: STAGE_RETRIES")
	fs.DurationVar(&cfg.StageRetryDelay, "retry-delay", cfg.StageRetryDelay, "Delay between stage attempts. Env: STAGE_RETRY_DELAY")
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Serve /metrics and /healthz on this address, e.g. :9100. Env: METRICS_ADDR")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug|info|warn|error. Env: LOG_LEVEL")
	if stage == pipeline.StageCollect || stage == pipeline.StageRun {
		fs.IntVar(&cfg.MaxPages, "pages", cfg.MaxPages, "Listing pages to visit. Env: MAX_PAGES")
		fs.BoolVar(&cfg.Headless, "headless", cfg.Headless, "Run Chrome headless. Env: HEADLESS")
	}
	if stage == pipeline.StagePersist || stage == pipeline.StageRun {
		fs.StringVar(&cfg.DBDriver, "driver", cfg.DBDriver, "database/sql driver: postgres|pgx. Env: DB_DRIVER")
		fs.StringVar(&cfg.RedisURL, "redis", cfg.RedisURL, "Redis URL for the persist lock; empty disables it. Env: REDIS_URL")
	}
	fs.Parse(os.Args[2:])

	logger := utils.NewLoggerWithLevel(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := run(ctx, stage, cfg, logger)
	stop()
	logger.Sync()
	os.Exit(code)
}

func run(ctx context.Context, stage string, cfg *config.Config, logger *utils.Logger) int {
	metrics := monitoring.NewMetrics()

	locker, closeLocker, err := newLocker(ctx, cfg, stage)
	if err != nil {
		logger.Error("Failed to connect to Redis: %v", err)
		return 1
	}
	defer closeLocker()

	runner := pipeline.NewRunner(pipeline.Options{
		RawCSVPath:   cfg.RawCSVPath,
		CleanCSVPath: cfg.CleanCSVPath,
		Collect: scraper.Options{
			MaxPages:    cfg.MaxPages,
			BaseURL:     cfg.BaseURL,
			RateLimitMs: cfg.RateLimitMs,
		},
		Dataset:         services.Dataset{Currency: cfg.Currency, City: cfg.City},
		VerifySample:    cfg.VerifySample,
		StageAttempts:   cfg.StageRetries,
		StageRetryDelay: cfg.StageRetryDelay,
	}, pipeline.Deps{
		NewFetcher: func(_ context.Context, logger *utils.Logger) (scraper.PageFetcher, error) {
			b, err := krisha.NewBrowser(cfg, logger)
			if err != nil {
				return nil, err
			}
			return b, nil
		},
		NewStore: func(ctx context.Context, logger *utils.Logger) (storage.ListingStore, error) {
			s, err := storage.NewPostgresStore(ctx, cfg.DBDriver, cfg.DSN(), storage.PostgresOptions{
				Table:        cfg.PostgresTable,
				PingAttempts: 5,
				PingDelay:    2 * time.Second,
			}, logger)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		Locker: locker,
		Report: os.Stdout,
	}, logger, metrics)

	logger.Info("=== Krisha rental pipeline: %s (run %s) ===", stage, runner.RunID())
	logger.Info("Config: pages %d | rate %dms | raw %s | clean %s | table %s",
		cfg.MaxPages, cfg.RateLimitMs, cfg.RawCSVPath, cfg.CleanCSVPath, cfg.PostgresTable)

	if cfg.MetricsAddr != "" {
		srv := monitoring.NewServer(cfg.MetricsAddr, metrics, runner)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("Metrics server stopped: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		logger.Info("Serving metrics on %s", cfg.MetricsAddr)
	}

	err = runner.RunStage(ctx, stage)

	if werr := metrics.WriteTextfile(cfg.MetricsTextfile); werr != nil {
		logger.Warn("Writing metrics textfile: %v", werr)
	}

	if err != nil {
		logger.Error("Pipeline %s failed: %v", stage, err)
		return 1
	}
	logger.Info("Pipeline %s finished", stage)
	return 0
}

// newLocker returns the Redis run lock when persist runs and REDIS_URL is set.
func newLocker(ctx context.Context, cfg *config.Config, stage string) (storage.Locker, func(), error) {
	if cfg.RedisURL == "" || (stage != pipeline.StagePersist && stage != pipeline.StageRun) {
		return storage.NoopLocker{}, func() {}, nil
	}
	lock, err := storage.NewRunLock(ctx, cfg.RedisURL, cfg.LockKey, cfg.LockTTL)
	if err != nil {
		return nil, nil, err
	}
	return lock, func() { lock.Close() }, nil
}
