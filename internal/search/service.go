// Package search implements the read-side operations the UI consumes:
// paginated browse, combined-filter search, scene detail, statistics,
// queue snapshots, config access, and admin actions.
package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"fennec/internal/logging"
	"fennec/internal/models"
	"fennec/internal/services"
	"fennec/internal/store"
)

// Service answers query-surface requests against the store, using its own
// visual and sentence encoders for query-side embedding.
type Service struct {
	store    *store.Store
	registry *models.Registry
	logger   *slog.Logger
}

// New builds a Service.
func New(st *store.Store, registry *models.Registry, logger *slog.Logger) *Service {
	return &Service{
		store:    st,
		registry: registry,
		logger:   logging.NewComponentLogger(logger, "search"),
	}
}

// Browse pages through scenes of completed files.
func (s *Service) Browse(ctx context.Context, limit, offset int) (BrowseResponse, error) {
	rows, total, err := s.store.BrowseScenes(ctx, limit, offset)
	if err != nil {
		return BrowseResponse{}, err
	}
	scenes, err := s.attachFaces(ctx, rowsToViews(rows))
	if err != nil {
		return BrowseResponse{}, err
	}
	return BrowseResponse{Scenes: scenes, Total: total}, nil
}

// Search applies the filter clauses: metadata predicates in SQL, then each
// similarity clause as an intersection on scene id. Results order by the
// first-present similarity clause's score, descending; with no similarity
// clause they keep browse order.
func (s *Service) Search(ctx context.Context, filters Filters) (SearchResponse, error) {
	if err := validateFilters(filters); err != nil {
		return SearchResponse{}, err
	}

	thresholds, err := s.store.Thresholds(ctx)
	if err != nil {
		return SearchResponse{}, err
	}

	rows, err := s.store.QueryScenes(ctx, predicates(filters))
	if err != nil {
		return SearchResponse{}, err
	}
	results := rowsToViews(rows)

	// Dialog keyword: substring match against transcript text.
	if filters.DialogKeyword != nil && strings.TrimSpace(*filters.DialogKeyword) != "" {
		matched, err := s.store.SceneTranscriptMatches(ctx, strings.TrimSpace(*filters.DialogKeyword))
		if err != nil {
			return SearchResponse{}, err
		}
		results = filterByIDSet(results, matched)
	}

	var response SearchResponse
	type simClause struct {
		name  string
		apply func([]SceneView) ([]SceneView, error)
		score func(SceneView) *float64
	}
	var clauses []simClause

	if filters.VisualText != nil && strings.TrimSpace(*filters.VisualText) != "" {
		threshold := pick(filters.VisualThresh, thresholds.Visual)
		clauses = append(clauses, simClause{
			name:  "visual",
			apply: func(in []SceneView) ([]SceneView, error) { return s.applyVisualText(ctx, in, *filters.VisualText, threshold) },
			score: func(v SceneView) *float64 { return v.Similarity },
		})
	}
	if filters.VisualMatch != nil {
		threshold := pick(filters.MatchThresh, thresholds.VisualMatch)
		clauses = append(clauses, simClause{
			name:  "visual_match",
			apply: func(in []SceneView) ([]SceneView, error) { return s.applyVisualMatch(ctx, in, *filters.VisualMatch, threshold) },
			score: func(v SceneView) *float64 { return v.Similarity },
		})
	}
	if filters.Face != nil {
		threshold := pick(filters.FaceThresh, thresholds.Face)
		clauses = append(clauses, simClause{
			name:  "face",
			apply: func(in []SceneView) ([]SceneView, error) { return s.applyFace(ctx, in, *filters.Face, threshold) },
			score: func(v SceneView) *float64 { return v.FaceSimilarity },
		})
	}
	if filters.DialogSemantic != nil && strings.TrimSpace(*filters.DialogSemantic) != "" {
		threshold := pick(filters.SemanticThresh, thresholds.Transcript)
		clauses = append(clauses, simClause{
			name: "semantic",
			apply: func(in []SceneView) ([]SceneView, error) {
				out, fellBack, err := s.applySemantic(ctx, in, *filters.DialogSemantic, threshold)
				response.SemanticFellBack = response.SemanticFellBack || fellBack
				return out, err
			},
			score: func(v SceneView) *float64 { return v.TranscriptSimilarity },
		})
	}

	for _, clause := range clauses {
		results, err = clause.apply(results)
		if err != nil {
			return SearchResponse{}, err
		}
	}

	if len(clauses) > 0 {
		primary := clauses[0].score
		sort.SliceStable(results, func(a, b int) bool {
			return deref(primary(results[a])) > deref(primary(results[b]))
		})
	}

	limit := filters.Limit
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	if len(results) > limit {
		results = results[:limit]
	}

	results, err = s.attachFaces(ctx, results)
	if err != nil {
		return SearchResponse{}, err
	}
	response.Results = results
	return response, nil
}

func (s *Service) applyVisualText(ctx context.Context, in []SceneView, query string, threshold float64) ([]SceneView, error) {
	vector, err := s.registry.Visual.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}
	registry, err := s.store.ModelVersions(ctx)
	if err != nil {
		return nil, err
	}
	matches, err := s.store.NearestScenes(ctx, "clip", registry["clip"].Dimension, vector, threshold, nnCandidateLimit(in))
	if err != nil {
		return nil, err
	}
	return intersectWithScores(in, matches, setSimilarity), nil
}

func (s *Service) applyVisualMatch(ctx context.Context, in []SceneView, sceneID int64, threshold float64) ([]SceneView, error) {
	ref, err := s.store.EmbeddingForScene(ctx, sceneID, "clip")
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, services.Wrap(services.ErrNotFound, "search", "visual_match", "scene has no visual vector", nil)
	}
	matches, err := s.store.NearestScenes(ctx, "clip", ref.Dimension, ref.Embedding.Slice(), threshold, nnCandidateLimit(in))
	if err != nil {
		return nil, err
	}
	// The reference scene always matches itself; exclude it.
	filtered := matches[:0]
	for _, m := range matches {
		if m.SceneID != sceneID {
			filtered = append(filtered, m)
		}
	}
	return intersectWithScores(in, filtered, setSimilarity), nil
}

func (s *Service) applyFace(ctx context.Context, in []SceneView, ref FaceRef, threshold float64) ([]SceneView, error) {
	face, err := s.resolveFace(ctx, ref)
	if err != nil {
		return nil, err
	}
	matches, err := s.store.NearestFaces(ctx, face.Embedding.Slice(), threshold, nnCandidateLimit(in)*4)
	if err != nil {
		return nil, err
	}
	// Project face hits onto parent scenes, keeping each scene's best score.
	best := map[int64]float64{}
	for _, m := range matches {
		if sim, ok := best[m.SceneID]; !ok || m.Similarity > sim {
			best[m.SceneID] = m.Similarity
		}
	}
	var out []SceneView
	for _, view := range in {
		if sim, ok := best[view.ID]; ok {
			view.FaceSimilarity = &sim
			out = append(out, view)
		}
	}
	return out, nil
}

func (s *Service) resolveFace(ctx context.Context, ref FaceRef) (*store.Face, error) {
	if ref.FaceID != nil {
		face, err := s.store.GetFace(ctx, *ref.FaceID)
		if err != nil {
			return nil, err
		}
		if face == nil {
			return nil, services.Wrap(services.ErrNotFound, "search", "face", "face id not found", nil)
		}
		return face, nil
	}
	if ref.SceneID != nil && ref.FaceIndex != nil {
		faces, err := s.store.FacesForScene(ctx, *ref.SceneID)
		if err != nil {
			return nil, err
		}
		if *ref.FaceIndex < 0 || *ref.FaceIndex >= len(faces) {
			return nil, services.Wrap(services.ErrNotFound, "search", "face", "face index out of range", nil)
		}
		return &faces[*ref.FaceIndex], nil
	}
	return nil, services.Wrap(services.ErrBadRequest, "search", "face", "face_id or (scene_id, face_index) required", nil)
}

// applySemantic answers a semantic dialog clause, degrading to keyword
// matching when the sentence encoder has not loaded yet.
func (s *Service) applySemantic(ctx context.Context, in []SceneView, query string, threshold float64) ([]SceneView, bool, error) {
	if !s.registry.Sentence.Ready() {
		if err := s.registry.Sentence.Load(ctx); err != nil {
			s.logger.Warn("sentence encoder unavailable; falling back to keyword", logging.Error(err))
			matched, kwErr := s.store.SceneTranscriptMatches(ctx, strings.TrimSpace(query))
			if kwErr != nil {
				return nil, true, kwErr
			}
			return filterByIDSet(in, matched), true, nil
		}
	}
	vector, err := s.registry.Sentence.Embed(ctx, query)
	if err != nil {
		return nil, false, err
	}
	registry, err := s.store.ModelVersions(ctx)
	if err != nil {
		return nil, false, err
	}
	matches, err := s.store.NearestScenes(ctx, "transcript", registry["transcript"].Dimension, vector, threshold, nnCandidateLimit(in))
	if err != nil {
		return nil, false, err
	}
	return intersectWithScores(in, matches, setTranscriptSimilarity), false, nil
}

func (s *Service) attachFaces(ctx context.Context, views []SceneView) ([]SceneView, error) {
	for i := range views {
		faces, err := s.store.FacesForScene(ctx, views[i].ID)
		if err != nil {
			return nil, err
		}
		views[i].Faces = make([]FaceView, 0, len(faces))
		for _, face := range faces {
			views[i].Faces = append(views[i].Faces, FaceView{
				ID:   face.ID,
				BBox: [4]float64{face.BBoxX, face.BBoxY, face.BBoxW, face.BBoxH},
			})
		}
	}
	return views, nil
}

func validateFilters(filters Filters) error {
	for name, t := range map[string]*float64{
		"visual_threshold":       filters.VisualThresh,
		"visual_match_threshold": filters.MatchThresh,
		"face_threshold":         filters.FaceThresh,
		"transcript_threshold":   filters.SemanticThresh,
	} {
		if t != nil && (*t < 0 || *t > 1) {
			return services.Wrap(services.ErrBadRequest, "search", name, "threshold must be in [0, 1]", nil)
		}
	}
	if filters.TCMin != nil && filters.TCMax != nil && *filters.TCMin > *filters.TCMax {
		return services.Wrap(services.ErrBadRequest, "search", "timecode", "tc_min exceeds tc_max", nil)
	}
	return nil
}

func predicates(filters Filters) store.ScenePredicates {
	pred := store.ScenePredicates{
		FPSMin:      filters.FPSMin,
		FPSMax:      filters.FPSMax,
		DurationMin: filters.DurationMin,
		DurationMax: filters.DurationMax,
		WidthMin:    filters.WidthMin,
		WidthMax:    filters.WidthMax,
		HeightMin:   filters.HeightMin,
		HeightMax:   filters.HeightMax,
		TCMin:       filters.TCMin,
		TCMax:       filters.TCMax,
	}
	if filters.Path != nil {
		pred.PathSubstring = *filters.Path
	}
	if filters.Codec != nil {
		pred.CodecSubstring = *filters.Codec
	}
	return pred
}

func rowsToViews(rows []store.SceneRow) []SceneView {
	views := make([]SceneView, len(rows))
	for i, row := range rows {
		views[i] = SceneView{
			ID:              row.ID,
			SceneIndex:      row.SceneIndex,
			StartTime:       row.StartTC,
			EndTime:         row.EndTC,
			Transcript:      row.Transcript,
			PosterFramePath: row.PosterFramePath,
			FileID:          row.FileID,
			Filename:        row.Filename,
			Path:            row.Path,
			DurationSecs:    row.DurationSecs,
			Width:           row.Width,
			Height:          row.Height,
			FPS:             row.FPS,
			Codec:           row.Codec,
			AudioTracks:     row.AudioTracks,
			SizeBytes:       row.SizeBytes,
			FileModifiedAt:  row.FileModifiedAt,
		}
	}
	return views
}

func filterByIDSet(in []SceneView, ids map[int64]struct{}) []SceneView {
	var out []SceneView
	for _, view := range in {
		if _, ok := ids[view.ID]; ok {
			out = append(out, view)
		}
	}
	return out
}

func intersectWithScores(in []SceneView, matches []store.SceneMatch, set func(*SceneView, float64)) []SceneView {
	scores := make(map[int64]float64, len(matches))
	for _, m := range matches {
		scores[m.SceneID] = m.Similarity
	}
	var out []SceneView
	for _, view := range in {
		if sim, ok := scores[view.ID]; ok {
			set(&view, sim)
			out = append(out, view)
		}
	}
	return out
}

func setSimilarity(v *SceneView, sim float64)           { v.Similarity = &sim }
func setTranscriptSimilarity(v *SceneView, sim float64) { v.TranscriptSimilarity = &sim }

// nnCandidateLimit sizes nearest-neighbour queries to the candidate set so
// intersection does not starve on large libraries.
func nnCandidateLimit(in []SceneView) int {
	limit := len(in) * 2
	if limit < 500 {
		limit = 500
	}
	return limit
}

func pick(override *float64, fallback float64) float64 {
	if override != nil {
		return *override
	}
	return fallback
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
