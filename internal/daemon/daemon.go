// Package daemon runs the ingest process: a single scheduler loop that
// alternates scanning the watch roots and draining the enrichment queue,
// plus a small status API. One instance per host, enforced with a file lock.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"fennec/internal/clustering"
	"fennec/internal/config"
	"fennec/internal/logging"
	"fennec/internal/models"
	"fennec/internal/pipeline"
	"fennec/internal/scanner"
	"fennec/internal/store"
)

// Daemon owns the ingest scheduler and its collaborators.
type Daemon struct {
	cfg       *config.Config
	store     *store.Store
	registry  *models.Registry
	scanner   *scanner.Scanner
	pipeline  *pipeline.Pipeline
	clusterer *clustering.Runner
	logger    *slog.Logger
	lock      *flock.Flock
}

// New wires the ingest components together.
func New(cfg *config.Config, st *store.Store, registry *models.Registry, logger *slog.Logger) *Daemon {
	return &Daemon{
		cfg:       cfg,
		store:     st,
		registry:  registry,
		scanner:   scanner.New(st, logger),
		pipeline:  pipeline.New(cfg, st, registry, logger),
		clusterer: clustering.NewRunner(st, logger),
		logger:    logging.NewComponentLogger(logger, "daemon"),
		lock:      flock.New(filepath.Join(cfg.Paths.LogDir, "fennecd.lock")),
	}
}

// Run starts the scheduler and the status API, blocking until ctx ends.
func (d *Daemon) Run(ctx context.Context) error {
	locked, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return errors.New("another fennecd instance is already running")
	}
	defer func() { _ = d.lock.Unlock() }()

	if err := d.startup(ctx); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return d.serveAPI(groupCtx) })
	group.Go(func() error { return d.schedule(groupCtx) })
	err = group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// startup applies the crash-recovery and environment-sync steps that run
// once per process.
func (d *Daemon) startup(ctx context.Context) error {
	if folders := config.WatchFoldersFromEnv(); len(folders) > 0 {
		if err := d.store.SetConfig(ctx, store.KeyWatchFolders, folders); err != nil {
			return fmt.Errorf("sync watch folders from env: %w", err)
		}
		d.logger.Info("watch folders from environment", logging.Int("count", len(folders)))
	}

	// Jobs orphaned by a crash or restart go back to pending; the next
	// claim re-enters each at its first incomplete stage.
	recovered, err := d.store.ResetProcessing(ctx)
	if err != nil {
		return fmt.Errorf("reset processing jobs: %w", err)
	}
	if recovered > 0 {
		d.logger.Info("recovered stuck jobs", logging.Int64("count", recovered))
	}
	return nil
}

// schedule is the single ingest loop: scan when the poll interval elapses,
// then drain the queue while the indexer is running.
func (d *Daemon) schedule(ctx context.Context) error {
	var lastScan time.Time
	pauseCheck := time.Duration(d.cfg.Workflow.PauseCheckInterval) * time.Second

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		state, err := d.store.IndexerState(ctx)
		if err != nil {
			d.logger.Error("read indexer state failed", logging.Error(err))
			d.sleep(ctx, time.Duration(d.cfg.Workflow.ErrorRetryInterval)*time.Second)
			continue
		}
		if state == store.IndexerPaused {
			d.sleep(ctx, pauseCheck)
			continue
		}

		pollSecs, err := d.store.PollInterval(ctx)
		if err != nil {
			d.logger.Error("read poll interval failed", logging.Error(err))
			pollSecs = 3600
		}
		pollInterval := time.Duration(pollSecs) * time.Second

		if lastScan.IsZero() || time.Since(lastScan) >= pollInterval {
			if _, err := d.scanner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Error("scan failed", logging.Error(err))
			}
			lastScan = time.Now()
		}

		if drained := d.drainQueue(ctx); drained > 0 {
			// Significant ingest activity; refresh the cluster assignments.
			if err := d.clusterer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Error("clustering failed", logging.Error(err))
			}
		}

		d.sleep(ctx, time.Duration(d.cfg.Workflow.QueuePollInterval)*time.Second)
	}
}

// drainQueue processes pending jobs one at a time until the queue is idle,
// the indexer pauses, or a model host needs backoff.
func (d *Daemon) drainQueue(ctx context.Context) int {
	processed := 0
	for {
		if ctx.Err() != nil {
			return processed
		}

		state, err := d.store.IndexerState(ctx)
		if err != nil || state == store.IndexerPaused {
			return processed
		}

		outcome, err := d.pipeline.ProcessOne(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				d.logger.Error("claim failed", logging.Error(err))
				d.sleep(ctx, time.Duration(d.cfg.Workflow.ErrorRetryInterval)*time.Second)
			}
			return processed
		}

		switch outcome {
		case pipeline.OutcomeIdle:
			return processed
		case pipeline.OutcomeProcessed:
			processed++
		case pipeline.OutcomePaused:
			return processed
		case pipeline.OutcomeBackoff:
			d.logger.Warn("model host unavailable; backing off",
				logging.Duration("backoff", time.Duration(d.cfg.Workflow.ModelBackoff)*time.Second),
			)
			d.sleep(ctx, time.Duration(d.cfg.Workflow.ModelBackoff)*time.Second)
			return processed
		}
	}
}

func (d *Daemon) sleep(ctx context.Context, duration time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(duration):
	}
}
