package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ReplaceFacesForFile deletes all faces across a file's scenes and inserts
// the new detections in one transaction, making face-detection re-runs
// idempotent.
func (s *Store) ReplaceFacesForFile(ctx context.Context, fileID int64, faces []Face) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("scene_id IN (?)",
			tx.Model(&Scene{}).Select("id").Where("file_id = ?", fileID),
		).Delete(&Face{}).Error
		if err != nil {
			return fmt.Errorf("clear faces: %w", err)
		}
		if len(faces) == 0 {
			return nil
		}
		if err := tx.Create(&faces).Error; err != nil {
			return fmt.Errorf("insert faces: %w", err)
		}
		return nil
	})
}

// FacesForScene returns a scene's faces in detection order.
func (s *Store) FacesForScene(ctx context.Context, sceneID int64) ([]Face, error) {
	var faces []Face
	err := s.db.WithContext(ctx).
		Where("scene_id = ?", sceneID).
		Order("id").
		Find(&faces).Error
	if err != nil {
		return nil, fmt.Errorf("faces for scene: %w", err)
	}
	return faces, nil
}

// GetFace fetches a face by id.
func (s *Store) GetFace(ctx context.Context, id int64) (*Face, error) {
	var face Face
	err := s.db.WithContext(ctx).First(&face, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get face: %w", err)
	}
	return &face, nil
}

// FacesByCluster returns faces in a cluster, most representative first.
func (s *Store) FacesByCluster(ctx context.Context, clusterID int, limit int) ([]Face, error) {
	var faces []Face
	err := s.db.WithContext(ctx).
		Where("cluster_id = ?", clusterID).
		Order("cluster_order").
		Limit(limit).
		Find(&faces).Error
	if err != nil {
		return nil, fmt.Errorf("faces by cluster: %w", err)
	}
	return faces, nil
}

// UpdateFaceCluster assigns a face's cluster id and order key.
func (s *Store) UpdateFaceCluster(ctx context.Context, faceID int64, clusterID int, order float64) error {
	err := s.db.WithContext(ctx).Model(&Face{}).
		Where("id = ?", faceID).
		Updates(map[string]any{"cluster_id": clusterID, "cluster_order": order}).Error
	if err != nil {
		return fmt.Errorf("update face cluster: %w", err)
	}
	return nil
}

// AllFaceVectors returns every face id with its embedding, ordered by id.
// Used by the clustering pass.
func (s *Store) AllFaceVectors(ctx context.Context) ([]Face, error) {
	var faces []Face
	err := s.db.WithContext(ctx).
		Select("id", "scene_id", "embedding").
		Order("id").
		Find(&faces).Error
	if err != nil {
		return nil, fmt.Errorf("all face vectors: %w", err)
	}
	return faces, nil
}

// CountFaces returns the total face count and the number of distinct scenes
// with at least one face.
func (s *Store) CountFaces(ctx context.Context) (total int64, scenesWithFaces int64, err error) {
	if err = s.db.WithContext(ctx).Model(&Face{}).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("count faces: %w", err)
	}
	err = s.db.WithContext(ctx).Model(&Face{}).
		Distinct("scene_id").
		Count(&scenesWithFaces).Error
	if err != nil {
		return 0, 0, fmt.Errorf("count scenes with faces: %w", err)
	}
	return total, scenesWithFaces, nil
}
