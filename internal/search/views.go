package search

import (
	"context"
	"os"
	"time"

	"fennec/internal/edl"
	"fennec/internal/services"
	"fennec/internal/store"
)

// SceneByID returns the full single-scene view: scene, faces, and a
// per-model summary of its vectors.
func (s *Service) SceneByID(ctx context.Context, id int64) (*SceneDetail, error) {
	row, err := s.store.SceneRowByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, services.Wrap(services.ErrNotFound, "scene", "get", "scene not found", nil)
	}

	views, err := s.attachFaces(ctx, rowsToViews([]store.SceneRow{*row}))
	if err != nil {
		return nil, err
	}
	detail := SceneDetail{SceneView: views[0]}

	embeddings, err := s.store.EmbeddingsForScene(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, emb := range embeddings {
		detail.Vectors = append(detail.Vectors, VectorSummary{
			Model:     emb.ModelName,
			Version:   emb.ModelVersion,
			Dimension: emb.Dimension,
		})
	}

	// Face vectors live on the faces table, not in embeddings.
	if len(detail.Faces) > 0 {
		registry, err := s.store.ModelVersions(ctx)
		if err != nil {
			return nil, err
		}
		spec := registry["arcface"]
		detail.Vectors = append(detail.Vectors, VectorSummary{
			Model:     "arcface",
			Version:   spec.Version,
			Dimension: spec.Dimension,
			Count:     len(detail.Faces),
		})
	}
	return &detail, nil
}

// Stats returns the headline index statistics.
func (s *Service) Stats(ctx context.Context) (StatsView, error) {
	totals, err := s.store.Stats(ctx)
	if err != nil {
		return StatsView{}, err
	}
	view := StatsView{Totals: totals}

	var lastScan time.Time
	if ok, err := s.store.GetConfig(ctx, store.KeyLastScanAt, &lastScan); err == nil && ok {
		view.LastScanAt = &lastScan
	}
	var durationMS int64
	if ok, err := s.store.GetConfig(ctx, store.KeyLastScanDurationMS, &durationMS); err == nil && ok {
		view.LastScanDurationMS = &durationMS
	}
	view.IndexerState, _ = s.store.IndexerState(ctx)
	view.PollIntervalSecs, _ = s.store.PollInterval(ctx)
	return view, nil
}

// VectorStats reports per-model coverage. For conditionally-present
// inputs (transcripts, faces), the gap between scanned and found is the
// "scanned but produced none" population.
func (s *Service) VectorStats(ctx context.Context) (VectorStats, error) {
	total, err := s.store.CountScenes(ctx)
	if err != nil {
		return VectorStats{}, err
	}
	scanned, err := s.store.CountScenesIndexed(ctx)
	if err != nil {
		return VectorStats{}, err
	}

	coverage, err := s.store.EmbeddingCoverage(ctx)
	if err != nil {
		return VectorStats{}, err
	}

	stats := VectorStats{TotalScenes: total}
	for _, row := range coverage {
		display, partial := "", false
		switch row.ModelName {
		case "clip":
			display = "Visual"
		case "transcript":
			display, partial = "Transcript", true
		default:
			display = row.ModelName
		}
		stats.Models = append(stats.Models, ModelStats{
			Name:            display,
			Model:           row.ModelName,
			Version:         row.ModelVersion,
			Dimension:       row.Dimension,
			Scanned:         scanned,
			Found:           row.Found,
			Coverage:        percentage(row.Found, total),
			PartialExpected: partial,
			LastUpdated:     row.LastUpdated,
		})
	}

	faceTotal, scenesWithFaces, err := s.store.CountFaces(ctx)
	if err != nil {
		return VectorStats{}, err
	}
	registry, err := s.store.ModelVersions(ctx)
	if err != nil {
		return VectorStats{}, err
	}
	spec := registry["arcface"]
	stats.Models = append(stats.Models, ModelStats{
		Name:            "Faces",
		Model:           "arcface",
		Version:         spec.Version,
		Dimension:       spec.Dimension,
		Scanned:         scanned,
		Found:           scenesWithFaces,
		Coverage:        percentage(scenesWithFaces, total),
		PartialExpected: true,
		TotalDetected:   faceTotal,
	})
	return stats, nil
}

// Queue returns status counts plus the in-flight job.
func (s *Service) Queue(ctx context.Context) (QueueView, error) {
	counts, err := s.store.QueueSnapshot(ctx)
	if err != nil {
		return QueueView{}, err
	}
	current, err := s.store.CurrentProcessing(ctx)
	if err != nil {
		return QueueView{}, err
	}
	return QueueView{QueueCounts: counts, Current: current}, nil
}

// WatchFolders lists configured roots with their mount accessibility.
// Unmounted roots stay configured; they just read as inaccessible.
func (s *Service) WatchFolders(ctx context.Context) ([]WatchFolderStatus, error) {
	folders, err := s.store.WatchFolders(ctx)
	if err != nil {
		return nil, err
	}
	statuses := make([]WatchFolderStatus, 0, len(folders))
	for _, folder := range folders {
		info, err := os.Stat(folder)
		statuses = append(statuses, WatchFolderStatus{
			Path:       folder,
			Accessible: err == nil && info.IsDir(),
		})
	}
	return statuses, nil
}

// EDLSelection is one entry of an export request.
type EDLSelection struct {
	SceneID int64   `json:"sceneId"`
	InTC    float64 `json:"inTc"`
	OutTC   float64 `json:"outTc"`
}

// ExportEDL builds a CMX 3600 EDL from the selected scenes, using each
// clip's own frame rate for timecode.
func (s *Service) ExportEDL(ctx context.Context, title string, selections []EDLSelection) (string, error) {
	if len(selections) == 0 {
		return "", services.Wrap(services.ErrBadRequest, "edl", "export", "no scenes provided", nil)
	}

	clips := make([]edl.Clip, 0, len(selections))
	for _, sel := range selections {
		row, err := s.store.SceneRowByID(ctx, sel.SceneID)
		if err != nil {
			return "", err
		}
		if row == nil {
			continue
		}
		fps := edl.DefaultFPS
		if row.FPS != nil && *row.FPS > 0 {
			fps = *row.FPS
		}
		clips = append(clips, edl.Clip{
			SceneID:  sel.SceneID,
			In:       sel.InTC,
			Out:      sel.OutTC,
			ClipName: row.Filename,
			FPS:      fps,
		})
	}
	if len(clips) == 0 {
		return "", services.Wrap(services.ErrNotFound, "edl", "export", "no matching scenes", nil)
	}
	return edl.Export(title, clips), nil
}

// FileWithScenes is the file detail response.
type FileWithScenes struct {
	store.File
	Scenes []store.Scene `json:"scenes"`
}

// Files lists indexed files.
func (s *Service) Files(ctx context.Context, onlyCompleted bool, limit, offset int) ([]store.File, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListFiles(ctx, onlyCompleted, limit, offset)
}

// FileByID returns a file with its scenes.
func (s *Service) FileByID(ctx context.Context, id int64) (*FileWithScenes, error) {
	file, err := s.store.GetFile(ctx, id)
	if err != nil {
		return nil, err
	}
	if file == nil || file.DeletedAt != nil {
		return nil, services.Wrap(services.ErrNotFound, "file", "get", "file not found", nil)
	}
	scenes, err := s.store.ScenesForFile(ctx, id)
	if err != nil {
		return nil, err
	}
	return &FileWithScenes{File: *file, Scenes: scenes}, nil
}

// FaceDetail is a face joined with its scene and file.
type FaceDetail struct {
	ID         int64      `json:"id"`
	SceneID    int64      `json:"scene_id"`
	SceneIndex int        `json:"scene_index"`
	BBox       [4]float64 `json:"bbox"`
	PosterPath *string    `json:"poster_path"`
	StartTC    float64    `json:"start_tc"`
	EndTC      float64    `json:"end_tc"`
	FileID     int64      `json:"file_id"`
	Filename   string     `json:"filename"`
	Path       string     `json:"path"`
}

// FaceByID returns a single face with its scene and file context.
func (s *Service) FaceByID(ctx context.Context, id int64) (*FaceDetail, error) {
	face, err := s.store.GetFace(ctx, id)
	if err != nil {
		return nil, err
	}
	if face == nil {
		return nil, services.Wrap(services.ErrNotFound, "face", "get", "face not found", nil)
	}
	row, err := s.store.SceneRowByID(ctx, face.SceneID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, services.Wrap(services.ErrNotFound, "face", "get", "owning scene not found", nil)
	}
	return &FaceDetail{
		ID:         face.ID,
		SceneID:    face.SceneID,
		SceneIndex: row.SceneIndex,
		BBox:       [4]float64{face.BBoxX, face.BBoxY, face.BBoxW, face.BBoxH},
		PosterPath: row.PosterFramePath,
		StartTC:    row.StartTC,
		EndTC:      row.EndTC,
		FileID:     row.FileID,
		Filename:   row.Filename,
		Path:       row.Path,
	}, nil
}

func percentage(found, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(int64(float64(found)/float64(total)*1000)) / 10
}
