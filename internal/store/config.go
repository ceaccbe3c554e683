package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Well-known runtime config keys.
const (
	KeyIndexerState        = "indexer_state"
	KeyPollInterval        = "poll_interval_seconds"
	KeyWatchFolders        = "watch_folders"
	KeyEnrichmentModels    = "enrichment_models"
	KeyPosterWidth         = "poster_width"
	KeyPosterQuality       = "poster_quality"
	KeyPosterFormat        = "poster_format"
	KeyThresholdVisual     = "search_threshold_visual"
	KeyThresholdMatch      = "search_threshold_visual_match"
	KeyThresholdFace       = "search_threshold_face"
	KeyThresholdTranscript = "search_threshold_transcript"
	KeyModelVersions       = "model_versions"
	KeyScanProgress        = "scan_progress"
	KeyLastScanAt          = "last_scan_at"
	KeyLastScanDurationMS  = "last_scan_duration_ms"
)

// Indexer states.
const (
	IndexerRunning = "running"
	IndexerPaused  = "paused"
)

// GetConfigRaw fetches a config value's raw JSON, or nil when unset.
func (s *Store) GetConfigRaw(ctx context.Context, key string) (json.RawMessage, error) {
	var entry ConfigEntry
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get config %s: %w", key, err)
	}
	return json.RawMessage(entry.Value), nil
}

// GetConfig unmarshals a config value into out. Returns false when the key
// is unset, leaving out untouched.
func (s *Store) GetConfig(ctx context.Context, key string, out any) (bool, error) {
	raw, err := s.GetConfigRaw(ctx, key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode config %s: %w", key, err)
	}
	return true, nil
}

// SetConfig persists a structured config value under a key.
func (s *Store) SetConfig(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode config %s: %w", key, err)
	}
	entry := ConfigEntry{Key: key, Value: raw}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("set config %s: %w", key, err)
	}
	return nil
}

// IndexerState reads the indexer run state, defaulting to running.
func (s *Store) IndexerState(ctx context.Context) (string, error) {
	state := IndexerRunning
	if _, err := s.GetConfig(ctx, KeyIndexerState, &state); err != nil {
		return IndexerRunning, err
	}
	if state != IndexerPaused {
		state = IndexerRunning
	}
	return state, nil
}

// PollInterval reads the scan poll interval in seconds, defaulting to an hour.
func (s *Store) PollInterval(ctx context.Context) (int, error) {
	interval := 3600
	if _, err := s.GetConfig(ctx, KeyPollInterval, &interval); err != nil {
		return 3600, err
	}
	if interval <= 0 {
		interval = 3600
	}
	return interval, nil
}

// WatchFolders reads the configured watch roots.
func (s *Store) WatchFolders(ctx context.Context) ([]string, error) {
	var folders []string
	if _, err := s.GetConfig(ctx, KeyWatchFolders, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

// EnabledModels reads the per-model enable flags, defaulting to all on.
func (s *Store) EnabledModels(ctx context.Context) (map[string]bool, error) {
	models := map[string]bool{
		"clip":    true,
		"whisper": true,
		"arcface": true,
	}
	if _, err := s.GetConfig(ctx, KeyEnrichmentModels, &models); err != nil {
		return models, err
	}
	return models, nil
}

// ModelVersions reads the model version/dimension registry.
func (s *Store) ModelVersions(ctx context.Context) (map[string]ModelSpec, error) {
	registry := map[string]ModelSpec{
		"clip":       {Version: "ViT-B-32/laion2b_s34b_b79k", Dimension: 512},
		"whisper":    {Version: "base", Dimension: 0},
		"transcript": {Version: "all-MiniLM-L6-v2", Dimension: 384},
		"arcface":    {Version: "buffalo_l", Dimension: 512},
	}
	if _, err := s.GetConfig(ctx, KeyModelVersions, &registry); err != nil {
		return registry, err
	}
	return registry, nil
}

// PosterSettings bundles the poster extraction knobs.
type PosterSettings struct {
	Width   int
	Quality int
	Format  string
}

// PosterConfig reads the poster settings with their defaults.
func (s *Store) PosterConfig(ctx context.Context) (PosterSettings, error) {
	settings := PosterSettings{Width: 1280, Quality: 80, Format: "webp"}
	if _, err := s.GetConfig(ctx, KeyPosterWidth, &settings.Width); err != nil {
		return settings, err
	}
	if _, err := s.GetConfig(ctx, KeyPosterQuality, &settings.Quality); err != nil {
		return settings, err
	}
	if _, err := s.GetConfig(ctx, KeyPosterFormat, &settings.Format); err != nil {
		return settings, err
	}
	return settings, nil
}

// SearchThresholds bundles per-clause similarity floors.
type SearchThresholds struct {
	Visual      float64 `json:"visual"`
	VisualMatch float64 `json:"visual_match"`
	Face        float64 `json:"face"`
	Transcript  float64 `json:"transcript"`
}

// Thresholds reads the search thresholds with their defaults.
func (s *Store) Thresholds(ctx context.Context) (SearchThresholds, error) {
	thresholds := SearchThresholds{
		Visual:      0.10,
		VisualMatch: 0.20,
		Face:        0.25,
		Transcript:  0.35,
	}
	if _, err := s.GetConfig(ctx, KeyThresholdVisual, &thresholds.Visual); err != nil {
		return thresholds, err
	}
	if _, err := s.GetConfig(ctx, KeyThresholdMatch, &thresholds.VisualMatch); err != nil {
		return thresholds, err
	}
	if _, err := s.GetConfig(ctx, KeyThresholdFace, &thresholds.Face); err != nil {
		return thresholds, err
	}
	if _, err := s.GetConfig(ctx, KeyThresholdTranscript, &thresholds.Transcript); err != nil {
		return thresholds, err
	}
	return thresholds, nil
}

// PublishScanProgress mirrors the scanner's snapshot into the config table
// so the query process can serve it.
func (s *Store) PublishScanProgress(ctx context.Context, progress ScanProgress) error {
	return s.SetConfig(ctx, KeyScanProgress, progress)
}

// ReadScanProgress fetches the last published scan snapshot.
func (s *Store) ReadScanProgress(ctx context.Context) (ScanProgress, error) {
	progress := ScanProgress{Phase: ScanPhaseIdle}
	if _, err := s.GetConfig(ctx, KeyScanProgress, &progress); err != nil {
		return progress, err
	}
	return progress, nil
}
