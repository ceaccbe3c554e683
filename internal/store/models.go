package store

import (
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// Status represents the lifecycle of an enrichment queue job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{StatusPending, StatusProcessing, StatusComplete, StatusFailed}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// ClusterUnassigned is the cluster id used for noise points and rows that
// have not been through a clustering pass yet.
const ClusterUnassigned = -1

// File is a video on disk tracked by the index.
type File struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Path           string     `gorm:"type:text;not null;index" json:"path"`
	Filename       string     `gorm:"type:text;not null" json:"filename"`
	ParentFolder   string     `gorm:"type:text" json:"parent_folder"`
	DurationSecs   *float64   `gorm:"column:duration_seconds" json:"duration_seconds"`
	Width          *int       `json:"width"`
	Height         *int       `json:"height"`
	FPS            *float64   `gorm:"column:fps" json:"fps"`
	Codec          *string    `gorm:"type:text" json:"codec"`
	AudioTracks    *int       `json:"audio_tracks"`
	PixFmt         *string    `gorm:"type:text" json:"pix_fmt"`
	ColorSpace     *string    `gorm:"type:text" json:"color_space"`
	ColorTransfer  *string    `gorm:"type:text" json:"color_transfer"`
	ColorPrimaries *string    `gorm:"type:text" json:"color_primaries"`
	SizeBytes      int64      `gorm:"column:file_size_bytes" json:"file_size_bytes"`
	FileCreatedAt  *time.Time `json:"file_created_at"`
	FileModifiedAt *time.Time `json:"file_modified_at"`
	Tags           datatypes.JSON `gorm:"type:jsonb;default:'[]'" json:"tags"`
	CreatedAt      time.Time  `json:"created_at"`
	IndexedAt      *time.Time `gorm:"index" json:"indexed_at"`
	DeletedAt      *time.Time `gorm:"index" json:"deleted_at"`

	Scenes []Scene `gorm:"foreignKey:FileID;constraint:OnDelete:CASCADE" json:"-"`
}

func (File) TableName() string { return "files" }

// Scene is a soft cut within a file. end_tc is exclusive; scenes cover
// [0, duration) in scene_index order.
type Scene struct {
	ID              int64    `gorm:"primaryKey;autoIncrement" json:"id"`
	FileID          int64    `gorm:"not null;index;uniqueIndex:idx_scenes_file_index,priority:1" json:"file_id"`
	SceneIndex      int      `gorm:"not null;uniqueIndex:idx_scenes_file_index,priority:2" json:"scene_index"`
	StartTC         float64  `gorm:"column:start_tc;not null" json:"start_tc"`
	EndTC           float64  `gorm:"column:end_tc;not null" json:"end_tc"`
	PosterFramePath *string  `gorm:"type:text" json:"poster_frame_path"`
	Transcript      *string  `gorm:"type:text" json:"transcript"`
	ClusterID       int      `gorm:"default:-1;index" json:"cluster_id"`
	ClusterOrder    float64  `gorm:"default:999" json:"cluster_order"`

	Faces      []Face      `gorm:"foreignKey:SceneID;constraint:OnDelete:CASCADE" json:"-"`
	Embeddings []Embedding `gorm:"foreignKey:SceneID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Scene) TableName() string { return "scenes" }

// Face is a detected face within a scene's poster frame. The bounding box
// is in source-image pixels and the embedding is L2-normalized.
type Face struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	SceneID      int64           `gorm:"not null;index" json:"scene_id"`
	BBoxX        float64         `gorm:"column:bbox_x;not null" json:"bbox_x"`
	BBoxY        float64         `gorm:"column:bbox_y;not null" json:"bbox_y"`
	BBoxW        float64         `gorm:"column:bbox_w;not null" json:"bbox_w"`
	BBoxH        float64         `gorm:"column:bbox_h;not null" json:"bbox_h"`
	Embedding    pgvector.Vector `gorm:"type:vector(512)" json:"-"`
	ClusterID    int             `gorm:"default:-1;index" json:"cluster_id"`
	ClusterOrder float64         `gorm:"default:999" json:"cluster_order"`
}

func (Face) TableName() string { return "faces" }

// Embedding is a model-tagged vector attached to a scene. At most one row
// exists per (scene, model); a newer model version overwrites the older row.
type Embedding struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	SceneID      int64           `gorm:"not null;uniqueIndex:idx_embeddings_scene_model,priority:1" json:"scene_id"`
	ModelName    string          `gorm:"type:text;not null;uniqueIndex:idx_embeddings_scene_model,priority:2;index" json:"model_name"`
	ModelVersion string          `gorm:"type:text;not null" json:"model_version"`
	Dimension    int             `gorm:"not null" json:"dimension"`
	Embedding    pgvector.Vector `gorm:"type:vector" json:"-"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (Embedding) TableName() string { return "embeddings" }

// QueueItem is a unit of enrichment work. One row per file at most.
type QueueItem struct {
	ID              int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	FileID          int64      `gorm:"not null;uniqueIndex" json:"file_id"`
	Status          Status     `gorm:"type:text;not null;default:pending;index" json:"status"`
	QueuedAt        time.Time  `gorm:"not null;index" json:"queued_at"`
	StartedAt       *time.Time `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	Error           *string    `gorm:"type:text" json:"error"`
	RetryCount      int        `gorm:"default:0" json:"retry_count"`
	CurrentStage    string     `gorm:"type:text" json:"current_stage"`
	CurrentStageNum int        `gorm:"default:0" json:"current_stage_num"`
	TotalStages     int        `gorm:"default:0" json:"total_stages"`
}

func (QueueItem) TableName() string { return "enrichment_queue" }

// ConfigEntry is a persisted key/value runtime switch with a structured value.
type ConfigEntry struct {
	Key   string         `gorm:"primaryKey;type:text" json:"key"`
	Value datatypes.JSON `gorm:"type:jsonb" json:"value"`
}

func (ConfigEntry) TableName() string { return "config" }

// QueueCounts summarizes queue state per status.
type QueueCounts struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Complete   int `json:"complete"`
	Failed     int `json:"failed"`
}

// ScanProgress is the snapshot of an in-flight scan, mirrored into the
// config table so the query process can serve it.
type ScanProgress struct {
	Phase          string    `json:"phase"`
	CurrentFolder  string    `json:"current_folder,omitempty"`
	DirsScanned    int       `json:"dirs_scanned"`
	FilesFound     int       `json:"files_found"`
	FilesProcessed int       `json:"files_processed"`
	FilesNew       int       `json:"files_new"`
	FilesUpdated   int       `json:"files_updated"`
	FilesSkipped   int       `json:"files_skipped"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Scan phases, in the order they occur.
const (
	ScanPhaseIdle            = "idle"
	ScanPhaseDiscovering     = "discovering"
	ScanPhaseProcessing      = "processing"
	ScanPhaseCheckingMissing = "checking_missing"
	ScanPhaseComplete        = "complete"
)

// ModelSpec describes the registered version and dimension of an
// enrichment model.
type ModelSpec struct {
	Version   string `json:"version"`
	Dimension int    `json:"dimension"`
}
