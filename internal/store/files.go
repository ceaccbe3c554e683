package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// GetFile fetches a file by id, including soft-deleted rows.
func (s *Store) GetFile(ctx context.Context, id int64) (*File, error) {
	var file File
	err := s.db.WithContext(ctx).First(&file, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return &file, nil
}

// FindFileByPath returns the file with the given path, live or soft-deleted,
// preferring the live row.
func (s *Store) FindFileByPath(ctx context.Context, path string) (*File, error) {
	var file File
	err := s.db.WithContext(ctx).
		Where("path = ?", path).
		Order("(deleted_at IS NULL) DESC, id DESC").
		First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find file by path: %w", err)
	}
	return &file, nil
}

// InsertFile creates a new file row.
func (s *Store) InsertFile(ctx context.Context, file *File) error {
	if err := s.db.WithContext(ctx).Create(file).Error; err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

// UpdateFile persists changes to an existing file row.
func (s *Store) UpdateFile(ctx context.Context, file *File) error {
	if file == nil || file.ID == 0 {
		return errors.New("file id is required")
	}
	if err := s.db.WithContext(ctx).Save(file).Error; err != nil {
		return fmt.Errorf("update file: %w", err)
	}
	return nil
}

// UpdateFileColumns applies a partial update to a file row.
func (s *Store) UpdateFileColumns(ctx context.Context, id int64, columns map[string]any) error {
	if err := s.db.WithContext(ctx).Model(&File{}).Where("id = ?", id).Updates(columns).Error; err != nil {
		return fmt.Errorf("update file columns: %w", err)
	}
	return nil
}

// Resurrect clears the soft-delete marker on a file that reappeared on disk.
func (s *Store) Resurrect(ctx context.Context, id int64) error {
	return s.UpdateFileColumns(ctx, id, map[string]any{"deleted_at": nil})
}

// SetFileIndexed stamps the enrichment-completed time on a file.
func (s *Store) SetFileIndexed(ctx context.Context, id int64, at time.Time) error {
	return s.UpdateFileColumns(ctx, id, map[string]any{"indexed_at": at.UTC()})
}

// ClearFileIndexed removes enrichment completion and probed metadata so the
// pipeline re-probes a modified file from scratch.
func (s *Store) ClearFileIndexed(ctx context.Context, id int64) error {
	return s.UpdateFileColumns(ctx, id, map[string]any{
		"indexed_at":       nil,
		"duration_seconds": nil,
		"width":            nil,
		"height":           nil,
		"fps":              nil,
		"codec":            nil,
		"audio_tracks":     nil,
	})
}

// MarkFilesMissing soft-deletes every live file whose path was not observed
// during the current scan of the given roots. Files outside all roots are
// left alone so an unmounted volume does not wipe its index.
func (s *Store) MarkFilesMissing(ctx context.Context, roots []string, seen map[string]struct{}) (int64, error) {
	if len(roots) == 0 {
		return 0, nil
	}
	var files []File
	if err := s.db.WithContext(ctx).
		Select("id", "path").
		Where("deleted_at IS NULL").
		Find(&files).Error; err != nil {
		return 0, fmt.Errorf("list live files: %w", err)
	}

	now := time.Now().UTC()
	var marked int64
	for _, file := range files {
		if _, ok := seen[file.Path]; ok {
			continue
		}
		if !underAnyRoot(file.Path, roots) {
			continue
		}
		res := s.db.WithContext(ctx).Model(&File{}).
			Where("id = ? AND deleted_at IS NULL", file.ID).
			Updates(map[string]any{"deleted_at": now})
		if res.Error != nil {
			return marked, fmt.Errorf("mark missing: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			// A soft-deleted file leaves the work queue immediately;
			// its scenes and faces stay until purge.
			if err := s.DeleteQueueItemForFile(ctx, file.ID); err != nil {
				return marked, err
			}
			marked++
		}
	}
	return marked, nil
}

// SoftDeleteFile marks a single file deleted and clears its queue item.
func (s *Store) SoftDeleteFile(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	if err := s.UpdateFileColumns(ctx, id, map[string]any{"deleted_at": now}); err != nil {
		return err
	}
	return s.DeleteQueueItemForFile(ctx, id)
}

// ListFiles returns live files ordered by most recently enriched first.
func (s *Store) ListFiles(ctx context.Context, onlyCompleted bool, limit, offset int) ([]File, error) {
	q := s.db.WithContext(ctx).Where("deleted_at IS NULL")
	if onlyCompleted {
		q = q.Where("indexed_at IS NOT NULL")
	}
	var files []File
	err := q.Order("indexed_at DESC NULLS LAST, id").
		Limit(limit).Offset(offset).
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

// CountLiveFiles returns the number of non-soft-deleted files.
func (s *Store) CountLiveFiles(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&File{}).Where("deleted_at IS NULL").Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count files: %w", err)
	}
	return count, nil
}

func underAnyRoot(path string, roots []string) bool {
	for _, root := range roots {
		if root == "" {
			continue
		}
		if len(path) >= len(root) && path[:len(root)] == root {
			return true
		}
	}
	return false
}
