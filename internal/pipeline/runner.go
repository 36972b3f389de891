package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"asvprep/internal/audio"
	"asvprep/internal/config"
	"asvprep/internal/download"
	"asvprep/internal/ledger"
	"asvprep/internal/logging"
)

// Runner executes preparation stages over a shared working directory,
// stopping on first failure. Stages outside the requested range produce no
// side effects and no stage-body log lines.
type Runner struct {
	cfg    *config.Config
	logger *slog.Logger
	stages []Stage
	store  *ledger.Store
	lock   *flock.Flock
	env    *Env
}

// Option configures the runner.
type Option func(*Runner)

// WithStages overrides the default stage table (primarily for tests).
func WithStages(stages []Stage) Option {
	return func(r *Runner) {
		if len(stages) > 0 {
			r.stages = stages
		}
	}
}

// WithLedger attaches a run ledger. Without one, runs are not recorded.
func WithLedger(store *ledger.Store) Option {
	return func(r *Runner) { r.store = store }
}

// WithFetcher injects a download client (primarily for tests).
func WithFetcher(client *download.Client) Option {
	return func(r *Runner) {
		if client != nil {
			r.env.Fetcher = client
		}
	}
}

// WithConcatenator injects an audio concatenator (primarily for tests).
func WithConcatenator(concat *audio.Concatenator) Option {
	return func(r *Runner) {
		if concat != nil {
			r.env.Concat = concat
		}
	}
}

// New constructs a runner with default collaborators built from config.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("runner requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	fetcher, err := download.New(cfg.Tools.Downloader)
	if err != nil {
		return nil, err
	}
	concat, err := audio.New(cfg.Tools.FFmpeg)
	if err != nil {
		return nil, err
	}

	runner := &Runner{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "runner"),
		stages: DefaultStages(),
		lock:   flock.New(filepath.Join(cfg.Paths.LogDir, "asvprep.lock")),
		env: &Env{
			Config:  cfg,
			Logger:  logger,
			Fetcher: fetcher,
			Concat:  concat,
		},
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner, nil
}

// Run executes stages first..last in ascending numeric order. The run is
// guarded by a lock file so concurrent invocations cannot interleave over
// the same directories.
func (r *Runner) Run(ctx context.Context, first, last int) error {
	ok, err := r.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return errors.New("another asvprep run is already in progress")
	}
	defer func() { _ = r.lock.Unlock() }()

	runID := uuid.NewString()
	runLogger := r.logger.With(logging.String(logging.FieldRunID, runID))
	runLogger.Info("pipeline started",
		logging.Int("first_stage", first),
		logging.Int("last_stage", last),
	)

	if r.store != nil {
		if err := r.store.BeginRun(ctx, runID, first, last); err != nil {
			return err
		}
	}

	stages := append([]Stage{}, r.stages...)
	sort.Slice(stages, func(i, j int) bool { return stages[i].Number < stages[j].Number })

	for _, stage := range stages {
		if stage.Number < first || stage.Number > last {
			continue
		}

		stageLogger := runLogger.With(logging.Int(logging.FieldStage, stage.Number))
		stageLogger.Info("stage started", logging.String("name", stage.Name))
		started := time.Now()

		if err := stage.Run(ctx, r.env); err != nil {
			elapsed := time.Since(started)
			stageLogger.Error("stage failed",
				logging.String("name", stage.Name),
				logging.Duration("elapsed", elapsed),
				logging.Error(err),
			)
			r.record(ctx, runLogger, ledger.StageResult{
				RunID: runID, Stage: stage.Number, Name: stage.Name,
				Outcome: ledger.OutcomeFailed, Duration: elapsed, Error: err.Error(),
			})
			r.finish(ctx, runLogger, runID, ledger.OutcomeFailed)
			return fmt.Errorf("stage %d (%s): %w", stage.Number, stage.Name, err)
		}

		elapsed := time.Since(started)
		stageLogger.Info("stage completed",
			logging.String("name", stage.Name),
			logging.Duration("elapsed", elapsed),
		)
		r.record(ctx, runLogger, ledger.StageResult{
			RunID: runID, Stage: stage.Number, Name: stage.Name,
			Outcome: ledger.OutcomeSucceeded, Duration: elapsed,
		})
	}

	r.finish(ctx, runLogger, runID, ledger.OutcomeSucceeded)
	runLogger.Info("pipeline complete")
	return nil
}

func (r *Runner) record(ctx context.Context, logger *slog.Logger, result ledger.StageResult) {
	if r.store == nil {
		return
	}
	if err := r.store.RecordStage(ctx, result); err != nil {
		logger.Warn("failed to record stage result", logging.Error(err))
	}
}

func (r *Runner) finish(ctx context.Context, logger *slog.Logger, runID, outcome string) {
	if r.store == nil {
		return
	}
	if err := r.store.FinishRun(ctx, runID, outcome); err != nil {
		logger.Warn("failed to finish run record", logging.Error(err))
	}
}
