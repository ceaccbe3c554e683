package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Enqueue creates a pending job for a file, replacing any earlier job row
// so a re-queued file starts a fresh attempt.
func (s *Store) Enqueue(ctx context.Context, fileID int64) (*QueueItem, error) {
	item := QueueItem{
		FileID:   fileID,
		Status:   StatusPending,
		QueuedAt: time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "file_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":            StatusPending,
			"queued_at":         item.QueuedAt,
			"started_at":        nil,
			"completed_at":      nil,
			"error":             nil,
			"retry_count":       0,
			"current_stage":     "",
			"current_stage_num": 0,
			"total_stages":      0,
		}),
	}).Create(&item).Error
	if err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}
	return &item, nil
}

// ClaimNext atomically flips the oldest pending job to processing and
// returns it. Returns nil when the queue has no pending work. The
// row-level predicate guarantees two concurrent callers never claim the
// same row.
func (s *Store) ClaimNext(ctx context.Context, totalStages int) (*QueueItem, error) {
	now := time.Now().UTC()
	var item QueueItem
	err := s.db.WithContext(ctx).Raw(`
		UPDATE enrichment_queue
		SET status = ?, started_at = ?, error = NULL,
		    current_stage = 'starting', current_stage_num = 0, total_stages = ?
		WHERE id = (
			SELECT id FROM enrichment_queue
			WHERE status = ?
			ORDER BY queued_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *`,
		StatusProcessing, now, totalStages, StatusPending,
	).Scan(&item).Error
	if err != nil {
		return nil, fmt.Errorf("claim next: %w", err)
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

// SetStage advances a processing job's stage progress fields.
func (s *Store) SetStage(ctx context.Context, jobID int64, stage string, stageNum int) error {
	err := s.db.WithContext(ctx).Model(&QueueItem{}).
		Where("id = ? AND status = ?", jobID, StatusProcessing).
		Updates(map[string]any{
			"current_stage":     stage,
			"current_stage_num": stageNum,
		}).Error
	if err != nil {
		return fmt.Errorf("set stage: %w", err)
	}
	return nil
}

// CompleteJob marks a processing job complete.
func (s *Store) CompleteJob(ctx context.Context, jobID int64) error {
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Model(&QueueItem{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":       StatusComplete,
			"completed_at": now,
		}).Error
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// FailJob marks a processing job failed with the given message and bumps
// its retry counter.
func (s *Store) FailJob(ctx context.Context, jobID int64, message string) error {
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Model(&QueueItem{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":       StatusFailed,
			"error":        message,
			"completed_at": now,
			"retry_count":  gorm.Expr("retry_count + 1"),
		}).Error
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// ReturnJobPending puts a claimed job back to pending without recording a
// failure. Used when a model host is unavailable: the file is fine, the
// environment is not.
func (s *Store) ReturnJobPending(ctx context.Context, jobID int64) error {
	err := s.db.WithContext(ctx).Model(&QueueItem{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":     StatusPending,
			"started_at": nil,
		}).Error
	if err != nil {
		return fmt.Errorf("return job pending: %w", err)
	}
	return nil
}

// ResetFailed moves all failed jobs back to pending.
func (s *Store) ResetFailed(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&QueueItem{}).
		Where("status = ?", StatusFailed).
		Updates(map[string]any{
			"status": StatusPending,
			"error":  nil,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("reset failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ResetProcessing returns in-flight jobs to pending. Run at startup to
// reclaim rows orphaned by a crash or restart.
func (s *Store) ResetProcessing(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&QueueItem{}).
		Where("status = ?", StatusProcessing).
		Updates(map[string]any{
			"status":     StatusPending,
			"started_at": nil,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("reset processing: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteQueueItemForFile removes a file's queue row, if any.
func (s *Store) DeleteQueueItemForFile(ctx context.Context, fileID int64) error {
	if err := s.db.WithContext(ctx).Where("file_id = ?", fileID).Delete(&QueueItem{}).Error; err != nil {
		return fmt.Errorf("delete queue item: %w", err)
	}
	return nil
}

// QueueSnapshot returns counts per status.
func (s *Store) QueueSnapshot(ctx context.Context) (QueueCounts, error) {
	rows, err := s.queueStatusCounts(ctx)
	if err != nil {
		return QueueCounts{}, err
	}
	counts := QueueCounts{}
	for status, count := range rows {
		switch status {
		case StatusPending:
			counts.Pending = count
		case StatusProcessing:
			counts.Processing = count
		case StatusComplete:
			counts.Complete = count
		case StatusFailed:
			counts.Failed = count
		}
	}
	return counts, nil
}

func (s *Store) queueStatusCounts(ctx context.Context) (map[Status]int, error) {
	var rows []struct {
		Status Status
		Count  int
	}
	err := s.db.WithContext(ctx).Model(&QueueItem{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("queue counts: %w", err)
	}
	counts := make(map[Status]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// CurrentJob returns the in-flight job with its file, or nil when idle.
type CurrentJob struct {
	QueueItem
	Filename     string   `json:"filename"`
	Path         string   `json:"path"`
	DurationSecs *float64 `gorm:"column:duration_seconds" json:"duration_seconds"`
}

// CurrentProcessing returns the currently-processing job joined with its file.
func (s *Store) CurrentProcessing(ctx context.Context) (*CurrentJob, error) {
	var current CurrentJob
	err := s.db.WithContext(ctx).Raw(`
		SELECT eq.*, f.filename, f.path, f.duration_seconds
		FROM enrichment_queue eq
		JOIN files f ON f.id = eq.file_id
		WHERE eq.status = ?
		ORDER BY eq.started_at DESC
		LIMIT 1`,
		StatusProcessing,
	).Scan(&current).Error
	if err != nil {
		return nil, fmt.Errorf("current processing: %w", err)
	}
	if current.ID == 0 {
		return nil, nil
	}
	return &current, nil
}

// QueueItemForFile returns a file's queue row, or nil.
func (s *Store) QueueItemForFile(ctx context.Context, fileID int64) (*QueueItem, error) {
	var item QueueItem
	err := s.db.WithContext(ctx).Where("file_id = ?", fileID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue item for file: %w", err)
	}
	return &item, nil
}

// PendingCount returns the number of pending jobs.
func (s *Store) PendingCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&QueueItem{}).
		Where("status = ?", StatusPending).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("pending count: %w", err)
	}
	return count, nil
}
