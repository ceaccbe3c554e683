// Package pipeline drives claimed enrichment jobs through the staged
// sequence: metadata, scene detection, poster extraction, visual
// embedding, transcription, transcript embedding, face detection. Each
// stage commits its artifacts independently so a crash never loses
// completed work; retries re-enter at the first incomplete stage.
package pipeline

import (
	"context"
	"log/slog"
	"os"
	"time"

	"fennec/internal/config"
	"fennec/internal/logging"
	"fennec/internal/media/ffprobe"
	"fennec/internal/media/frames"
	"fennec/internal/models"
	"fennec/internal/scenedetect"
	"fennec/internal/services"
	"fennec/internal/store"
)

// Stage names, in pipeline order.
const (
	StageMetadata            = "metadata"
	StageSceneDetection      = "scene_detection"
	StagePosterExtraction    = "poster_extraction"
	StageVisualEmbedding     = "visual_embedding"
	StageTranscription       = "transcription"
	StageTranscriptEmbedding = "transcript_embedding"
	StageFaceDetection       = "face_detection"
)

// Pipeline claims one job at a time and runs it through the enabled stages.
type Pipeline struct {
	cfg      *config.Config
	store    *store.Store
	registry *models.Registry
	frames   *frames.Extractor
	detector *scenedetect.Detector
	logger   *slog.Logger
}

// New builds a Pipeline.
func New(cfg *config.Config, st *store.Store, registry *models.Registry, logger *slog.Logger) *Pipeline {
	extractor := frames.NewExtractor(cfg.FFmpegBinary())
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		registry: registry,
		frames:   extractor,
		detector: scenedetect.New(extractor, scenedetect.DefaultOptions()),
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
}

type stage struct {
	name string
	run  func(ctx context.Context, job *jobState) error
}

type jobState struct {
	item   *store.QueueItem
	file   *store.File
	models map[string]bool
	specs  map[string]store.ModelSpec
}

// enabledStages computes the stage list from the model toggles. Metadata,
// scene detection, and poster extraction always run.
func (p *Pipeline) enabledStages(enabled map[string]bool) []stage {
	stages := []stage{
		{StageMetadata, p.runMetadata},
		{StageSceneDetection, p.runSceneDetection},
		{StagePosterExtraction, p.runPosterExtraction},
	}
	if enabled["clip"] {
		stages = append(stages, stage{StageVisualEmbedding, p.runVisualEmbedding})
	}
	if enabled["whisper"] {
		stages = append(stages, stage{StageTranscription, p.runTranscription})
		stages = append(stages, stage{StageTranscriptEmbedding, p.runTranscriptEmbedding})
	}
	if enabled["arcface"] {
		stages = append(stages, stage{StageFaceDetection, p.runFaceDetection})
	}
	return stages
}

// Outcome reports what ProcessOne did.
type Outcome int

const (
	// OutcomeIdle means no pending job existed.
	OutcomeIdle Outcome = iota
	// OutcomeProcessed means a job ran to completion or failure.
	OutcomeProcessed
	// OutcomeBackoff means the environment (a model host) is unhealthy and
	// the caller should pause the worker loop.
	OutcomeBackoff
	// OutcomePaused means the indexer was paused mid-job; the job went
	// back to pending.
	OutcomePaused
)

// ProcessOne claims the oldest pending job and runs it through the enabled
// stages. Stage errors never propagate; they settle into the queue row.
func (p *Pipeline) ProcessOne(ctx context.Context) (Outcome, error) {
	enabled, err := p.store.EnabledModels(ctx)
	if err != nil {
		return OutcomeIdle, err
	}
	specs, err := p.store.ModelVersions(ctx)
	if err != nil {
		return OutcomeIdle, err
	}
	stages := p.enabledStages(enabled)

	item, err := p.store.ClaimNext(ctx, len(stages))
	if err != nil {
		return OutcomeIdle, err
	}
	if item == nil {
		return OutcomeIdle, nil
	}

	jobCtx := services.WithJobID(services.WithFileID(ctx, item.FileID), item.ID)
	logger := logging.WithContext(jobCtx, p.logger)

	file, err := p.store.GetFile(jobCtx, item.FileID)
	if err != nil || file == nil {
		message := "file row vanished"
		if err != nil {
			message = err.Error()
		}
		if failErr := p.store.FailJob(jobCtx, item.ID, message); failErr != nil {
			logger.Error("persist job failure failed", logging.Error(failErr))
		}
		return OutcomeProcessed, nil
	}

	if outcome, handled := p.checkSource(jobCtx, logger, item, file); handled {
		return outcome, nil
	}

	job := &jobState{item: item, file: file, models: enabled, specs: specs}
	logger.Info("job started",
		logging.String("path", file.Path),
		logging.Int("total_stages", len(stages)),
	)

	for i, st := range stages {
		if paused, pauseErr := p.paused(jobCtx); pauseErr == nil && paused {
			if err := p.store.ReturnJobPending(jobCtx, item.ID); err != nil {
				logger.Error("return job pending failed", logging.Error(err))
			}
			logger.Info("job held at stage boundary", logging.String(logging.FieldStage, st.name))
			return OutcomePaused, nil
		}

		if err := p.store.SetStage(jobCtx, item.ID, st.name, i+1); err != nil {
			logger.Error("set stage failed", logging.Error(err))
		}

		stageCtx := services.WithStage(jobCtx, st.name)
		stageLogger := logging.WithContext(stageCtx, p.logger)
		stageLogger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

		if err := st.run(stageCtx, job); err != nil {
			return p.settleFailure(stageCtx, stageLogger, item, err), nil
		}

		stageLogger.Info("stage completed", logging.String(logging.FieldEventType, "stage_complete"))
	}

	if err := p.store.CompleteJob(jobCtx, item.ID); err != nil {
		logger.Error("complete job failed", logging.Error(err))
		return OutcomeProcessed, nil
	}
	if err := p.store.SetFileIndexed(jobCtx, file.ID, time.Now()); err != nil {
		logger.Error("stamp indexed_at failed", logging.Error(err))
	}
	logger.Info("job completed", logging.String("path", file.Path))
	return OutcomeProcessed, nil
}

// checkSource validates the file is still reachable before any stage runs.
// An unmounted watch root returns the job to pending untouched; a missing
// file under a mounted root is a real failure.
func (p *Pipeline) checkSource(ctx context.Context, logger *slog.Logger, item *store.QueueItem, file *store.File) (Outcome, bool) {
	if _, err := os.Stat(file.Path); err == nil {
		return OutcomeIdle, false
	}

	folders, _ := p.store.WatchFolders(ctx)
	for _, folder := range folders {
		if len(file.Path) >= len(folder) && file.Path[:len(folder)] == folder {
			if _, err := os.Stat(folder); err != nil {
				// The whole volume is gone, not the file.
				if err := p.store.ReturnJobPending(ctx, item.ID); err != nil {
					logger.Error("return job pending failed", logging.Error(err))
				}
				logger.Warn("watch folder unmounted; job deferred", logging.String("folder", folder))
				return OutcomeBackoff, true
			}
			break
		}
	}

	wrapped := services.Wrap(services.ErrMissingFile, "", "stat", file.Path, nil)
	if err := p.store.FailJob(ctx, item.ID, services.Message(wrapped)); err != nil {
		logger.Error("persist job failure failed", logging.Error(err))
	}
	logger.Warn("file not found", logging.String("path", file.Path))
	return OutcomeProcessed, true
}

// settleFailure applies the failure taxonomy: model-load errors put the job
// back to pending and back the worker off; everything else fails the job.
func (p *Pipeline) settleFailure(ctx context.Context, logger *slog.Logger, item *store.QueueItem, stageErr error) Outcome {
	logger.Error("stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.Error(stageErr),
	)
	if services.FailureDisposition(stageErr) == services.DispositionRequeue {
		if err := p.store.ReturnJobPending(ctx, item.ID); err != nil {
			logger.Error("return job pending failed", logging.Error(err))
		}
		return OutcomeBackoff
	}
	if err := p.store.FailJob(ctx, item.ID, services.Message(stageErr)); err != nil {
		logger.Error("persist job failure failed", logging.Error(err))
	}
	return OutcomeProcessed
}

func (p *Pipeline) paused(ctx context.Context) (bool, error) {
	state, err := p.store.IndexerState(ctx)
	if err != nil {
		return false, err
	}
	return state == store.IndexerPaused, nil
}

// probe re-inspects the media container.
func (p *Pipeline) probe(ctx context.Context, path string) (ffprobe.Result, error) {
	return ffprobe.Inspect(ctx, p.cfg.FFprobeBinary(), path)
}
