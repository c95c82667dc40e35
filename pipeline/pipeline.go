package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"krisha-pipeline/models"
	"krisha-pipeline/monitoring"
	"krisha-pipeline/scraper"
	"krisha-pipeline/services"
	"krisha-pipeline/storage"
	"krisha-pipeline/utils"
)

// Stage names, also used as CLI subcommands and metric labels.
const (
	StageCollect   = "collect"
	StageNormalize = "normalize"
	StagePersist   = "persist"
	StageRun       = "run"
)

// Options configures a Runner.
type Options struct {
	RawCSVPath   string
	CleanCSVPath string

	Collect      scraper.Options
	Dataset      services.Dataset
	VerifySample int

	StageAttempts   int
	StageRetryDelay time.Duration
}

// Deps are the external pieces a Runner drives. Factories are called once per
// stage attempt so a retried stage starts from a fresh browser or connection,
// and receive the run-scoped logger.
type Deps struct {
	NewFetcher func(ctx context.Context, logger *utils.Logger) (scraper.PageFetcher, error)
	NewStore   func(ctx context.Context, logger *utils.Logger) (storage.ListingStore, error)
	// Locker serializes persist stages; nil means no locking.
	Locker storage.Locker
	// Report receives the insight summary after persist; nil skips it.
	Report io.Writer
}

// Runner sequences collect -> normalize -> persist, handing data between
// stages through the raw and clean CSV files.
type Runner struct {
	opts    Options
	deps    Deps
	logger  *utils.Logger
	metrics *monitoring.Metrics
	retry   utils.RetryConfig
	runID   string

	mu    sync.Mutex
	store storage.ListingStore
}

// NewRunner creates a Runner with a fresh run ID attached to every log line.
// metrics may be nil.
func NewRunner(opts Options, deps Deps, logger *utils.Logger, metrics *monitoring.Metrics) *Runner {
	if deps.Locker == nil {
		deps.Locker = storage.NoopLocker{}
	}
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	return &Runner{
		opts:    opts,
		deps:    deps,
		logger:  logger,
		metrics: metrics,
		runID:   runID,
		retry: utils.RetryConfig{
			MaxAttempts: opts.StageAttempts,
			BaseDelay:   opts.StageRetryDelay,
			Logger:      logger,
		},
	}
}

// RunID identifies this run in logs.
func (r *Runner) RunID() string { return r.runID }

// RunStage executes one named stage, or all of them for StageRun.
func (r *Runner) RunStage(ctx context.Context, name string) error {
	switch name {
	case StageCollect:
		return r.Collect(ctx)
	case StageNormalize:
		return r.Normalize(ctx)
	case StagePersist:
		return r.Persist(ctx)
	case StageRun:
		return r.Run(ctx)
	default:
		return fmt.Errorf("unknown stage %q", name)
	}
}

// Run executes the three stages in order and stops at the first failure.
func (r *Runner) Run(ctx context.Context) error {
	for _, stage := range []func(context.Context) error{r.Collect, r.Normalize, r.Persist} {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := stage(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Collect scrapes the configured page range and writes the raw CSV. An empty
// result still produces a header-only file.
func (r *Runner) Collect(ctx context.Context) error {
	return r.stage(ctx, StageCollect, func(ctx context.Context) error {
		fetcher, err := r.deps.NewFetcher(ctx, r.logger)
		if err != nil {
			return fmt.Errorf("start fetcher: %w", err)
		}

		collector := scraper.NewCollector(fetcher, r.opts.Collect, r.logger, r.metrics)
		listings, err := collector.Collect(ctx)
		if err != nil {
			return err
		}

		if err := storage.WriteRawFile(r.opts.RawCSVPath, listings); err != nil {
			return err
		}
		r.logger.Info("[pipeline] Wrote %d raw listings to %s", len(listings), r.opts.RawCSVPath)
		return nil
	})
}

// Normalize reads the raw CSV and writes the clean CSV. A missing input file
// fails the stage; an empty one yields a header-only output.
func (r *Runner) Normalize(ctx context.Context) error {
	return r.stage(ctx, StageNormalize, func(ctx context.Context) error {
		raw, err := storage.ReadRawFile(r.opts.RawCSVPath)
		if err != nil {
			return err
		}

		cleaner := services.NewCleaner(r.opts.Dataset, r.logger, r.metrics)
		clean, err := cleaner.Clean(raw)
		if errors.Is(err, models.ErrEmptyBatch) {
			r.logger.Warn("[pipeline] Raw dataset %s is empty, nothing to normalize", r.opts.RawCSVPath)
		} else if err != nil {
			return err
		}

		if err := storage.WriteCleanFile(r.opts.CleanCSVPath, clean); err != nil {
			return err
		}
		r.logger.Info("[pipeline] Wrote %d clean listings to %s", len(clean), r.opts.CleanCSVPath)
		return nil
	})
}

// Persist upserts the clean CSV into the store under the run lock, then
// verifies the table and prints the insight report. An empty clean file is a
// no-op that never touches the store.
func (r *Runner) Persist(ctx context.Context) error {
	return r.stage(ctx, StagePersist, func(ctx context.Context) error {
		clean, err := storage.ReadCleanFile(r.opts.CleanCSVPath)
		if err != nil {
			return err
		}
		if len(clean) == 0 {
			r.logger.Warn("[pipeline] Clean dataset %s is empty, nothing to persist", r.opts.CleanCSVPath)
			return nil
		}

		release, err := r.deps.Locker.Acquire(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				r.logger.Warn("[pipeline] Releasing run lock: %v", err)
			}
		}()

		store, err := r.deps.NewStore(ctx, r.logger)
		if err != nil {
			return err
		}
		r.setStore(store)
		defer func() {
			r.setStore(nil)
			if err := store.Close(); err != nil {
				r.logger.Warn("[pipeline] Closing store: %v", err)
			}
		}()

		if err := store.Migrate(ctx); err != nil {
			return err
		}

		n, err := store.Upsert(ctx, clean)
		if err != nil && !errors.Is(err, models.ErrEmptyBatch) {
			return err
		}
		r.metrics.AddUpserted(n)

		v, err := store.Verify(ctx, r.opts.VerifySample)
		if err != nil {
			return err
		}
		r.logger.Info("[pipeline] Store holds %d listings after upserting %d", v.Count, n)

		r.report(ctx, store)
		return nil
	})
}

// report prints the insight summary. Failures here never fail the stage.
func (r *Runner) report(ctx context.Context, store storage.ListingStore) {
	if r.deps.Report == nil {
		return
	}
	stored, err := store.FetchAll(ctx)
	if err != nil {
		r.logger.Warn("[pipeline] Fetching listings for insights: %v", err)
		return
	}
	insights := services.NewInsightService(r.logger)
	insights.Print(r.deps.Report, insights.Generate(stored), r.opts.Dataset.Currency)
}

// stage wraps fn with retry, timing and metrics.
func (r *Runner) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	r.logger.Info("[pipeline] Stage %s starting", name)
	started := time.Now()

	err := r.retry.Do(ctx, name, fn)
	r.metrics.ObserveStage(name, started, err)

	if err != nil {
		r.logger.Error("[pipeline] Stage %s failed: %v", name, err)
		return fmt.Errorf("stage %s: %w", name, err)
	}
	r.logger.Info("[pipeline] Stage %s done in %v", name, time.Since(started).Round(time.Millisecond))
	return nil
}

func (r *Runner) setStore(s storage.ListingStore) {
	r.mu.Lock()
	r.store = s
	r.mu.Unlock()
}

// Ping reports the health of the store while persist holds a connection.
// Outside persist there is nothing to check and Ping succeeds.
func (r *Runner) Ping(ctx context.Context) error {
	r.mu.Lock()
	store := r.store
	r.mu.Unlock()

	if p, ok := store.(monitoring.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
