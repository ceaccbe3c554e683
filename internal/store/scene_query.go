package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// SceneRow is a scene joined with its owning file, the flat shape the
// query surface reads.
type SceneRow struct {
	ID              int64      `json:"id"`
	SceneIndex      int        `json:"scene_index"`
	StartTC         float64    `gorm:"column:start_tc" json:"start_tc"`
	EndTC           float64    `gorm:"column:end_tc" json:"end_tc"`
	Transcript      *string    `json:"transcript"`
	PosterFramePath *string    `json:"poster_frame_path"`
	FileID          int64      `json:"file_id"`
	Filename        string     `json:"filename"`
	Path            string     `json:"path"`
	DurationSecs    *float64   `gorm:"column:duration_seconds" json:"duration_seconds"`
	Width           *int       `json:"width"`
	Height          *int       `json:"height"`
	FPS             *float64   `gorm:"column:fps" json:"fps"`
	Codec           *string    `json:"codec"`
	AudioTracks     *int       `json:"audio_tracks"`
	SizeBytes       int64      `gorm:"column:file_size_bytes" json:"file_size_bytes"`
	FileModifiedAt  *time.Time `json:"file_modified_at"`
}

// ScenePredicates are the metadata clauses applied in SQL before any
// similarity filtering.
type ScenePredicates struct {
	PathSubstring  string
	CodecSubstring string
	FPSMin         *float64
	FPSMax         *float64
	DurationMin    *float64
	DurationMax    *float64
	WidthMin       *int
	WidthMax       *int
	HeightMin      *int
	HeightMax      *int
	TCMin          *float64
	TCMax          *float64
}

const sceneRowColumns = `
	s.id, s.scene_index, s.start_tc, s.end_tc, s.transcript, s.poster_frame_path,
	f.id AS file_id, f.filename, f.path, f.duration_seconds, f.width, f.height,
	f.fps, f.codec, f.audio_tracks, f.file_size_bytes, f.file_modified_at`

// completedFilesOnly restricts scene reads to live files whose enrichment
// finished, so readers never see half-built artifacts.
const completedFilesOnly = `
	f.deleted_at IS NULL
	AND EXISTS (
		SELECT 1 FROM enrichment_queue eq
		WHERE eq.file_id = f.id AND eq.status = 'complete'
	)`

// BrowseScenes pages through scenes of completed files, ordered by file
// then scene index.
func (s *Store) BrowseScenes(ctx context.Context, limit, offset int) ([]SceneRow, int64, error) {
	if limit <= 0 {
		limit = 40
	}

	var rows []SceneRow
	err := s.db.WithContext(ctx).Raw(`
		SELECT `+sceneRowColumns+`
		FROM scenes s
		JOIN files f ON f.id = s.file_id
		WHERE `+completedFilesOnly+`
		ORDER BY f.id, s.scene_index
		LIMIT ? OFFSET ?`,
		limit, offset,
	).Scan(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("browse scenes: %w", err)
	}

	var total int64
	err = s.db.WithContext(ctx).Raw(`
		SELECT COUNT(*)
		FROM scenes s
		JOIN files f ON f.id = s.file_id
		WHERE ` + completedFilesOnly,
	).Scan(&total).Error
	if err != nil {
		return nil, 0, fmt.Errorf("browse scenes count: %w", err)
	}
	return rows, total, nil
}

// QueryScenes returns the scenes of completed files matching the metadata
// predicates, ordered by file then scene index.
func (s *Store) QueryScenes(ctx context.Context, pred ScenePredicates) ([]SceneRow, error) {
	conditions := []string{completedFilesOnly}
	var args []any

	add := func(clause string, value any) {
		conditions = append(conditions, clause)
		args = append(args, value)
	}

	if v := strings.TrimSpace(pred.PathSubstring); v != "" {
		add("f.path ILIKE ?", "%"+v+"%")
	}
	if v := strings.TrimSpace(pred.CodecSubstring); v != "" {
		add("f.codec ILIKE ?", "%"+v+"%")
	}
	if pred.FPSMin != nil {
		add("f.fps >= ?", *pred.FPSMin)
	}
	if pred.FPSMax != nil {
		add("f.fps <= ?", *pred.FPSMax)
	}
	if pred.DurationMin != nil {
		add("f.duration_seconds >= ?", *pred.DurationMin)
	}
	if pred.DurationMax != nil {
		add("f.duration_seconds <= ?", *pred.DurationMax)
	}
	if pred.WidthMin != nil {
		add("f.width >= ?", *pred.WidthMin)
	}
	if pred.WidthMax != nil {
		add("f.width <= ?", *pred.WidthMax)
	}
	if pred.HeightMin != nil {
		add("f.height >= ?", *pred.HeightMin)
	}
	if pred.HeightMax != nil {
		add("f.height <= ?", *pred.HeightMax)
	}
	if pred.TCMin != nil {
		add("s.start_tc >= ?", *pred.TCMin)
	}
	if pred.TCMax != nil {
		add("s.end_tc <= ?", *pred.TCMax)
	}

	query := `
		SELECT ` + sceneRowColumns + `
		FROM scenes s
		JOIN files f ON f.id = s.file_id
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY f.id, s.scene_index`

	var rows []SceneRow
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query scenes: %w", err)
	}
	return rows, nil
}

// SceneRowByID fetches one scene joined with its file, without the
// completed-files restriction (detail views show in-flight files too).
func (s *Store) SceneRowByID(ctx context.Context, id int64) (*SceneRow, error) {
	var rows []SceneRow
	err := s.db.WithContext(ctx).Raw(`
		SELECT `+sceneRowColumns+`
		FROM scenes s
		JOIN files f ON f.id = s.file_id
		WHERE s.id = ? AND f.deleted_at IS NULL`,
		id,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("scene row: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// SceneTranscriptMatches returns the ids of scenes (of completed files)
// whose transcript contains the substring, case-insensitively.
func (s *Store) SceneTranscriptMatches(ctx context.Context, keyword string) (map[int64]struct{}, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Raw(`
		SELECT s.id
		FROM scenes s
		JOIN files f ON f.id = s.file_id
		WHERE `+completedFilesOnly+`
		AND s.transcript ILIKE ?`,
		"%"+keyword+"%",
	).Scan(&ids).Error
	if err != nil {
		return nil, fmt.Errorf("transcript matches: %w", err)
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}
