package pipeline

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pgvector/pgvector-go"

	"fennec/internal/logging"
	"fennec/internal/media/frames"
	"fennec/internal/services"
	"fennec/internal/store"
)

// runMetadata re-probes the file and fills in the metadata the scan
// deferred. A file ffprobe cannot read is terminal until manual retry.
func (p *Pipeline) runMetadata(ctx context.Context, job *jobState) error {
	result, err := p.probe(ctx, job.file.Path)
	if err != nil {
		return services.Wrap(services.ErrUnreadableMedia, StageMetadata, "probe", job.file.Path, err)
	}

	duration := result.DurationSeconds()
	if math.IsNaN(duration) || duration <= 0 {
		return services.Wrap(services.ErrUnreadableMedia, StageMetadata, "probe", "no readable duration", nil)
	}

	columns := map[string]any{
		"duration_seconds": duration,
		"audio_tracks":     result.AudioStreamCount(),
	}
	if size := result.SizeBytes(); size > 0 {
		columns["file_size_bytes"] = size
	}
	if stream := result.VideoStream(); stream != nil {
		columns["width"] = stream.Width
		columns["height"] = stream.Height
		columns["codec"] = stream.CodecName
		if fps := stream.FrameRate(); fps > 0 {
			columns["fps"] = roundFPS(fps)
		}
		setIfPresent(columns, "pix_fmt", stream.PixFmt)
		setIfPresent(columns, "color_space", stream.ColorSpace)
		setIfPresent(columns, "color_transfer", stream.ColorTransfer)
		setIfPresent(columns, "color_primaries", stream.ColorPrimaries)
	}
	if err := p.store.UpdateFileColumns(ctx, job.file.ID, columns); err != nil {
		return services.Wrap(services.ErrTransient, StageMetadata, "persist", "", err)
	}

	// Refresh the in-memory copy for the stages downstream.
	refreshed, err := p.store.GetFile(ctx, job.file.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, StageMetadata, "reload", "", err)
	}
	job.file = refreshed
	return nil
}

// runSceneDetection segments the file into scenes and inserts the rows.
// On retry, existing scene rows are kept so durable artifacts from earlier
// attempts survive; a fresh run replaces everything in one transaction.
func (p *Pipeline) runSceneDetection(ctx context.Context, job *jobState) error {
	existing, err := p.store.ScenesForFile(ctx, job.file.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, StageSceneDetection, "list scenes", "", err)
	}
	if len(existing) > 0 {
		return nil
	}

	duration := 0.0
	if job.file.DurationSecs != nil {
		duration = *job.file.DurationSecs
	}
	intervals, err := p.detector.Detect(ctx, job.file.Path, duration)
	if err != nil {
		return services.Wrap(services.ErrTransient, StageSceneDetection, "detect", job.file.Path, err)
	}

	scenes := make([]store.Scene, 0, len(intervals))
	for _, interval := range intervals {
		scenes = append(scenes, store.Scene{
			StartTC: interval.Start,
			EndTC:   interval.End,
		})
	}
	if err := p.store.ReplaceScenes(ctx, job.file.ID, scenes); err != nil {
		return services.Wrap(services.ErrTransient, StageSceneDetection, "persist scenes", "", err)
	}
	return nil
}

// runPosterExtraction renders the mid-scene frame for every scene that
// does not have one yet. Poster filenames derive from scene ids and are
// never overwritten once written.
func (p *Pipeline) runPosterExtraction(ctx context.Context, job *jobState) error {
	scenes, err := p.store.ScenesForFile(ctx, job.file.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, StagePosterExtraction, "list scenes", "", err)
	}
	settings, err := p.store.PosterConfig(ctx)
	if err != nil {
		return services.Wrap(services.ErrTransient, StagePosterExtraction, "read config", "", err)
	}

	for _, scene := range scenes {
		if scene.PosterFramePath != nil {
			if _, statErr := os.Stat(*scene.PosterFramePath); statErr == nil {
				continue
			}
		}
		mid := (scene.StartTC + scene.EndTC) / 2
		name := fmt.Sprintf("scene_%d.%s", scene.ID, settings.Format)
		path := filepath.Join(p.cfg.Paths.PosterDir, name)

		err := p.frames.ExtractPoster(ctx, job.file.Path, mid, path, posterOptions(settings))
		if err != nil {
			// Posters written before the failure stay; a retry renders
			// only the scenes still missing one.
			return services.Wrap(services.ErrTransient, StagePosterExtraction, "extract poster", path, err)
		}
		if err := p.store.SetScenePoster(ctx, scene.ID, path); err != nil {
			return services.Wrap(services.ErrTransient, StagePosterExtraction, "persist poster", "", err)
		}
	}
	return nil
}

// runVisualEmbedding encodes every scene's poster, skipping scenes whose
// stored vector already matches the registered model version.
func (p *Pipeline) runVisualEmbedding(ctx context.Context, job *jobState) error {
	spec := job.specs["clip"]
	scenes, err := p.store.ScenesForFile(ctx, job.file.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, StageVisualEmbedding, "list scenes", "", err)
	}

	for _, scene := range scenes {
		if scene.PosterFramePath == nil {
			continue
		}
		current, err := p.store.EmbeddingForScene(ctx, scene.ID, "clip")
		if err != nil {
			return services.Wrap(services.ErrTransient, StageVisualEmbedding, "check existing", "", err)
		}
		if current != nil && current.ModelVersion == spec.Version {
			continue
		}

		vector, err := p.registry.Visual.EmbedImage(ctx, *scene.PosterFramePath)
		if err != nil {
			return err
		}
		if err := p.store.UpsertEmbedding(ctx, &store.Embedding{
			SceneID:      scene.ID,
			ModelName:    "clip",
			ModelVersion: spec.Version,
			Dimension:    len(vector),
			Embedding:    pgvector.NewVector(vector),
		}); err != nil {
			return services.Wrap(services.ErrTransient, StageVisualEmbedding, "persist", "", err)
		}
	}
	return nil
}

// runTranscription extracts the audio, runs speech-to-text, and writes
// each scene's overlapping text. A file with no audio tracks skips the
// stage; audio with no speech writes empty transcripts so the stage reads
// as done on retry.
func (p *Pipeline) runTranscription(ctx context.Context, job *jobState) error {
	if job.file.AudioTracks != nil && *job.file.AudioTracks == 0 {
		return nil
	}

	scenes, err := p.store.ScenesForFile(ctx, job.file.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, StageTranscription, "list scenes", "", err)
	}
	if len(scenes) == 0 {
		return nil
	}
	if allTranscribed(scenes) {
		return nil
	}

	audioFile, err := os.CreateTemp("", "fennec-audio-*.wav")
	if err != nil {
		return services.Wrap(services.ErrTransient, StageTranscription, "temp file", "", err)
	}
	audioPath := audioFile.Name()
	_ = audioFile.Close()
	defer os.Remove(audioPath)

	if err := p.frames.ExtractAudio(ctx, job.file.Path, audioPath); err != nil {
		return services.Wrap(services.ErrTransient, StageTranscription, "extract audio", "", err)
	}

	segments, err := p.registry.Speech.Transcribe(ctx, audioPath)
	if err != nil {
		return err
	}

	for _, scene := range scenes {
		var parts []string
		for _, seg := range segments {
			if seg.Start < scene.EndTC && seg.End > scene.StartTC {
				if text := strings.TrimSpace(seg.Text); text != "" {
					parts = append(parts, text)
				}
			}
		}
		if err := p.store.SetSceneTranscript(ctx, scene.ID, strings.Join(parts, " ")); err != nil {
			return services.Wrap(services.ErrTransient, StageTranscription, "persist transcript", "", err)
		}
	}
	return nil
}

// runTranscriptEmbedding encodes every non-empty transcript that lacks a
// current-version vector. Empty transcripts produce no embedding.
func (p *Pipeline) runTranscriptEmbedding(ctx context.Context, job *jobState) error {
	spec := job.specs["transcript"]
	scenes, err := p.store.ScenesForFile(ctx, job.file.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, StageTranscriptEmbedding, "list scenes", "", err)
	}

	for _, scene := range scenes {
		if scene.Transcript == nil || strings.TrimSpace(*scene.Transcript) == "" {
			continue
		}
		current, err := p.store.EmbeddingForScene(ctx, scene.ID, "transcript")
		if err != nil {
			return services.Wrap(services.ErrTransient, StageTranscriptEmbedding, "check existing", "", err)
		}
		if current != nil && current.ModelVersion == spec.Version {
			continue
		}

		vector, err := p.registry.Sentence.Embed(ctx, *scene.Transcript)
		if err != nil {
			return err
		}
		if err := p.store.UpsertEmbedding(ctx, &store.Embedding{
			SceneID:      scene.ID,
			ModelName:    "transcript",
			ModelVersion: spec.Version,
			Dimension:    len(vector),
			Embedding:    pgvector.NewVector(vector),
		}); err != nil {
			return services.Wrap(services.ErrTransient, StageTranscriptEmbedding, "persist", "", err)
		}
	}
	return nil
}

// runFaceDetection detects faces on every poster and replaces the file's
// face rows in one transaction, keeping retries idempotent.
func (p *Pipeline) runFaceDetection(ctx context.Context, job *jobState) error {
	scenes, err := p.store.ScenesForFile(ctx, job.file.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, StageFaceDetection, "list scenes", "", err)
	}

	logger := logging.WithContext(ctx, p.logger)
	var faces []store.Face
	for _, scene := range scenes {
		if scene.PosterFramePath == nil {
			continue
		}
		detections, err := p.registry.Face.Detect(ctx, *scene.PosterFramePath)
		if err != nil {
			if services.FailureDisposition(err) == services.DispositionRequeue {
				return err
			}
			logger.Warn("face detection failed for scene",
				logging.Int64("scene_id", scene.ID),
				logging.Error(err),
			)
			continue
		}
		for _, det := range detections {
			faces = append(faces, store.Face{
				SceneID:   scene.ID,
				BBoxX:     det.X,
				BBoxY:     det.Y,
				BBoxW:     det.W,
				BBoxH:     det.H,
				Embedding: pgvector.NewVector(det.Vector),
			})
		}
	}

	if err := p.store.ReplaceFacesForFile(ctx, job.file.ID, faces); err != nil {
		return services.Wrap(services.ErrTransient, StageFaceDetection, "persist faces", "", err)
	}
	return nil
}

func allTranscribed(scenes []store.Scene) bool {
	for _, scene := range scenes {
		if scene.Transcript == nil {
			return false
		}
	}
	return true
}

func setIfPresent(columns map[string]any, key, value string) {
	if strings.TrimSpace(value) != "" {
		columns[key] = value
	}
}

func roundFPS(fps float64) float64 {
	return math.Round(fps*1000) / 1000
}

func posterOptions(settings store.PosterSettings) frames.PosterOptions {
	return frames.PosterOptions{Width: settings.Width, Quality: settings.Quality}
}
