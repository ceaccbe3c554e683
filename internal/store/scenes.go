package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ReplaceScenes deletes any existing scenes for a file and inserts the new
// set in one transaction. Scene detection re-runs are idempotent through
// this call; cascades clear the old scenes' faces and embeddings.
func (s *Store) ReplaceScenes(ctx context.Context, fileID int64, scenes []Scene) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("file_id = ?", fileID).Delete(&Scene{}).Error; err != nil {
			return fmt.Errorf("clear scenes: %w", err)
		}
		for i := range scenes {
			scenes[i].FileID = fileID
			scenes[i].SceneIndex = i
		}
		if len(scenes) == 0 {
			return nil
		}
		if err := tx.Create(&scenes).Error; err != nil {
			return fmt.Errorf("insert scenes: %w", err)
		}
		return nil
	})
}

// ScenesForFile returns a file's scenes in time order.
func (s *Store) ScenesForFile(ctx context.Context, fileID int64) ([]Scene, error) {
	var scenes []Scene
	err := s.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Order("scene_index").
		Find(&scenes).Error
	if err != nil {
		return nil, fmt.Errorf("scenes for file: %w", err)
	}
	return scenes, nil
}

// GetScene fetches a scene by its global id.
func (s *Store) GetScene(ctx context.Context, id int64) (*Scene, error) {
	var scene Scene
	err := s.db.WithContext(ctx).First(&scene, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scene: %w", err)
	}
	return &scene, nil
}

// GetSceneByIndex fetches a scene by its file-scoped index.
func (s *Store) GetSceneByIndex(ctx context.Context, fileID int64, index int) (*Scene, error) {
	var scene Scene
	err := s.db.WithContext(ctx).
		Where("file_id = ? AND scene_index = ?", fileID, index).
		First(&scene).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scene by index: %w", err)
	}
	return &scene, nil
}

// SetScenePoster records the poster path on a scene row.
func (s *Store) SetScenePoster(ctx context.Context, sceneID int64, path string) error {
	err := s.db.WithContext(ctx).Model(&Scene{}).
		Where("id = ?", sceneID).
		Update("poster_frame_path", path).Error
	if err != nil {
		return fmt.Errorf("set poster: %w", err)
	}
	return nil
}

// SetSceneTranscript writes transcript text onto a scene row. Empty text is
// stored as empty, distinguishing "transcribed, nothing said" from never
// transcribed (NULL).
func (s *Store) SetSceneTranscript(ctx context.Context, sceneID int64, text string) error {
	err := s.db.WithContext(ctx).Model(&Scene{}).
		Where("id = ?", sceneID).
		Update("transcript", text).Error
	if err != nil {
		return fmt.Errorf("set transcript: %w", err)
	}
	return nil
}

// UpdateSceneCluster assigns a scene's visual cluster id and order key.
func (s *Store) UpdateSceneCluster(ctx context.Context, sceneID int64, clusterID int, order float64) error {
	err := s.db.WithContext(ctx).Model(&Scene{}).
		Where("id = ?", sceneID).
		Updates(map[string]any{"cluster_id": clusterID, "cluster_order": order}).Error
	if err != nil {
		return fmt.Errorf("update scene cluster: %w", err)
	}
	return nil
}

// CountScenes returns the total scene count.
func (s *Store) CountScenes(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Scene{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count scenes: %w", err)
	}
	return count, nil
}

// CountScenesIndexed returns the number of scenes whose owning file has
// completed enrichment.
func (s *Store) CountScenesIndexed(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Scene{}).
		Joins("JOIN files ON files.id = scenes.file_id").
		Where("files.indexed_at IS NOT NULL").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count indexed scenes: %w", err)
	}
	return count, nil
}
