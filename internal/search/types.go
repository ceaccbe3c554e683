package search

import (
	"time"

	"fennec/internal/store"
)

// FaceRef selects a reference face either by its stable id (preferred) or
// by a (scene, face-index) pair.
type FaceRef struct {
	FaceID    *int64 `json:"face_id,omitempty"`
	SceneID   *int64 `json:"scene_id,omitempty"`
	FaceIndex *int   `json:"face_index,omitempty"`
}

// Filters is the typed set of search clauses. Every present clause
// restricts the result set; clauses combine by intersection on scene id.
type Filters struct {
	VisualText     *string  `json:"visual,omitempty"`
	VisualThresh   *float64 `json:"visual_threshold,omitempty"`
	DialogKeyword  *string  `json:"transcript,omitempty"`
	DialogSemantic *string  `json:"transcript_semantic,omitempty"`
	SemanticThresh *float64 `json:"transcript_threshold,omitempty"`
	Face           *FaceRef `json:"face,omitempty"`
	FaceThresh     *float64 `json:"face_threshold,omitempty"`
	VisualMatch    *int64   `json:"visual_match_scene_id,omitempty"`
	MatchThresh    *float64 `json:"visual_match_threshold,omitempty"`

	Path        *string  `json:"path,omitempty"`
	Codec       *string  `json:"codec,omitempty"`
	FPSMin      *float64 `json:"fps_min,omitempty"`
	FPSMax      *float64 `json:"fps_max,omitempty"`
	DurationMin *float64 `json:"duration_min,omitempty"`
	DurationMax *float64 `json:"duration_max,omitempty"`
	WidthMin    *int     `json:"width_min,omitempty"`
	WidthMax    *int     `json:"width_max,omitempty"`
	HeightMin   *int     `json:"height_min,omitempty"`
	HeightMax   *int     `json:"height_max,omitempty"`
	TCMin       *float64 `json:"tc_min,omitempty"`
	TCMax       *float64 `json:"tc_max,omitempty"`

	Limit int `json:"limit,omitempty"`
}

// FaceView is a face shaped for UI overlay display.
type FaceView struct {
	ID   int64      `json:"id"`
	BBox [4]float64 `json:"bbox"`
}

// SceneView is one scene row shaped for browse and search responses.
type SceneView struct {
	ID              int64      `json:"id"`
	SceneIndex      int        `json:"scene_index"`
	StartTime       float64    `json:"start_time"`
	EndTime         float64    `json:"end_time"`
	Transcript      *string    `json:"transcript"`
	PosterFramePath *string    `json:"poster_frame_path"`
	FileID          int64      `json:"file_id"`
	Filename        string     `json:"filename"`
	Path            string     `json:"path"`
	DurationSecs    *float64   `json:"duration_seconds"`
	Width           *int       `json:"width"`
	Height          *int       `json:"height"`
	FPS             *float64   `json:"fps"`
	Codec           *string    `json:"codec"`
	AudioTracks     *int       `json:"audio_tracks"`
	SizeBytes       int64      `json:"file_size_bytes"`
	FileModifiedAt  *time.Time `json:"file_modified_at"`

	Faces []FaceView `json:"faces"`

	Similarity           *float64 `json:"similarity,omitempty"`
	FaceSimilarity       *float64 `json:"face_similarity,omitempty"`
	TranscriptSimilarity *float64 `json:"transcript_similarity,omitempty"`
}

// BrowseResponse is the paginated scene listing.
type BrowseResponse struct {
	Scenes []SceneView `json:"scenes"`
	Total  int64       `json:"total"`
}

// SearchResponse is the combined search result.
type SearchResponse struct {
	Results []SceneView `json:"results"`
	// SemanticFellBack reports that a semantic dialog clause was answered
	// with keyword matching because the sentence encoder was not loaded.
	SemanticFellBack bool `json:"semantic_fell_back,omitempty"`
}

// VectorSummary describes one model's presence on a scene.
type VectorSummary struct {
	Model     string `json:"model"`
	Version   string `json:"version"`
	Dimension int    `json:"dimension"`
	Count     int    `json:"count,omitempty"`
}

// SceneDetail is the full single-scene view.
type SceneDetail struct {
	SceneView
	Vectors []VectorSummary `json:"vectors"`
}

// ModelStats is the per-model coverage entry of the vector stats report.
type ModelStats struct {
	Name            string     `json:"name"`
	Model           string     `json:"model"`
	Version         string     `json:"version"`
	Dimension       int        `json:"dimension"`
	Scanned         int64      `json:"scanned"`
	Found           int64      `json:"found"`
	Coverage        float64    `json:"coverage"`
	PartialExpected bool       `json:"partial_expected"`
	TotalDetected   int64      `json:"total_detected,omitempty"`
	LastUpdated     *time.Time `json:"last_updated"`
}

// VectorStats is the vector coverage report. For models whose input is
// conditionally present (transcripts, faces), scanned-but-produced-none is
// the difference between Scanned and Found.
type VectorStats struct {
	TotalScenes int64        `json:"total_scenes"`
	Models      []ModelStats `json:"models"`
}

// QueueView is the queue snapshot plus the in-flight job.
type QueueView struct {
	store.QueueCounts
	Current *store.CurrentJob `json:"current"`
}

// WatchFolderStatus pairs a configured root with its mount accessibility.
type WatchFolderStatus struct {
	Path       string `json:"path"`
	Accessible bool   `json:"accessible"`
}

// StatsView is the headline index statistics response.
type StatsView struct {
	store.Totals
	LastScanAt         *time.Time `json:"last_scan_at"`
	LastScanDurationMS *int64     `json:"last_scan_duration_ms"`
	IndexerState       string     `json:"indexer_state"`
	PollIntervalSecs   int        `json:"poll_interval_seconds"`
}
