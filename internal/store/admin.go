package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// PurgeDeleted permanently removes soft-deleted files and, through
// cascades, their scenes, faces, and embeddings.
func (s *Store) PurgeDeleted(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("deleted_at IS NOT NULL").Delete(&File{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge deleted: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// PurgeOrphans removes files whose paths fall outside every current watch
// root. With no roots configured, nothing is purged.
func (s *Store) PurgeOrphans(ctx context.Context, roots []string) (int64, error) {
	if len(roots) == 0 {
		return 0, nil
	}
	conditions := make([]string, 0, len(roots))
	args := make([]any, 0, len(roots))
	for _, root := range roots {
		trimmed := strings.TrimSpace(root)
		if trimmed == "" {
			continue
		}
		conditions = append(conditions, "path NOT LIKE ?")
		args = append(args, trimmed+"%")
	}
	if len(conditions) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where(strings.Join(conditions, " AND "), args...).
		Delete(&File{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge orphans: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// WipeCounts reports what a wipe removed.
type WipeCounts struct {
	Files  int64 `json:"files"`
	Scenes int64 `json:"scenes"`
	Faces  int64 `json:"faces"`
}

// Wipe deletes all enrichment data — files, scenes, faces, embeddings,
// and the queue — while preserving the config table. Confirmation is the
// caller's responsibility.
func (s *Store) Wipe(ctx context.Context) (WipeCounts, error) {
	var counts WipeCounts
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&File{}).Count(&counts.Files).Error; err != nil {
			return err
		}
		if err := tx.Model(&Scene{}).Count(&counts.Scenes).Error; err != nil {
			return err
		}
		if err := tx.Model(&Face{}).Count(&counts.Faces).Error; err != nil {
			return err
		}
		return tx.Exec(
			"TRUNCATE files, scenes, faces, embeddings, enrichment_queue RESTART IDENTITY CASCADE",
		).Error
	})
	if err != nil {
		return WipeCounts{}, fmt.Errorf("wipe: %w", err)
	}
	return counts, nil
}

// Totals aggregates the headline index statistics.
type Totals struct {
	Files           int64   `json:"files"`
	Scenes          int64   `json:"scenes"`
	Faces           int64   `json:"faces"`
	TotalDuration   float64 `json:"total_duration_seconds"`
	TotalSizeBytes  int64   `json:"total_file_size_bytes"`
	ScenesWithFaces int64   `json:"scenes_with_faces"`
}

// Stats computes the headline counts. File count, total duration and total
// size cover live files; scene and face counts include the rows of
// soft-deleted files until they are purged.
func (s *Store) Stats(ctx context.Context) (Totals, error) {
	var totals Totals
	err := s.db.WithContext(ctx).Raw(`
		SELECT
			(SELECT COUNT(*) FROM files WHERE deleted_at IS NULL) AS files,
			(SELECT COUNT(*) FROM scenes) AS scenes,
			(SELECT COUNT(*) FROM faces) AS faces,
			(SELECT COALESCE(SUM(duration_seconds), 0) FROM files WHERE deleted_at IS NULL) AS total_duration,
			(SELECT COALESCE(SUM(file_size_bytes), 0) FROM files WHERE deleted_at IS NULL) AS total_size_bytes,
			(SELECT COUNT(DISTINCT scene_id) FROM faces) AS scenes_with_faces`,
	).Scan(&totals).Error
	if err != nil {
		return Totals{}, fmt.Errorf("stats: %w", err)
	}
	return totals, nil
}
