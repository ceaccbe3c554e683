package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertEmbedding writes a scene's vector for a model, overwriting any
// existing row for the same (scene, model) pair.
func (s *Store) UpsertEmbedding(ctx context.Context, emb *Embedding) error {
	emb.CreatedAt = time.Now().UTC()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "scene_id"}, {Name: "model_name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"model_version", "dimension", "embedding", "created_at",
		}),
	}).Create(emb).Error
	if err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

// EmbeddingForScene fetches a scene's vector row for a model, or nil.
func (s *Store) EmbeddingForScene(ctx context.Context, sceneID int64, model string) (*Embedding, error) {
	var emb Embedding
	err := s.db.WithContext(ctx).
		Where("scene_id = ? AND model_name = ?", sceneID, model).
		First(&emb).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("embedding for scene: %w", err)
	}
	return &emb, nil
}

// EmbeddingsForScene returns every vector row attached to a scene.
func (s *Store) EmbeddingsForScene(ctx context.Context, sceneID int64) ([]Embedding, error) {
	var embs []Embedding
	err := s.db.WithContext(ctx).
		Where("scene_id = ?", sceneID).
		Order("model_name").
		Find(&embs).Error
	if err != nil {
		return nil, fmt.Errorf("embeddings for scene: %w", err)
	}
	return embs, nil
}

// SceneMatch is a nearest-neighbour hit: a scene id with its cosine
// similarity to the query vector.
type SceneMatch struct {
	SceneID    int64   `json:"scene_id"`
	Similarity float64 `json:"similarity"`
}

// NearestScenes runs a cosine nearest-neighbour query over one model's
// vectors. Embeddings of different models share the table but not
// dimension, so the query is restricted by model name and the stored
// vectors are cast to the model's declared dimension (matching the
// partial HNSW index expression). Results with similarity below minSim
// are excluded.
func (s *Store) NearestScenes(ctx context.Context, model string, dim int, query []float32, minSim float64, limit int) ([]SceneMatch, error) {
	if len(query) != dim {
		return nil, fmt.Errorf("query vector dimension %d does not match model %s dimension %d", len(query), model, dim)
	}
	if limit <= 0 {
		limit = 200
	}
	vec := pgvector.NewVector(query)
	cast := fmt.Sprintf("vector(%d)", dim)

	var matches []SceneMatch
	err := s.db.WithContext(ctx).Raw(fmt.Sprintf(`
		SELECT scene_id, 1 - (embedding::%s <=> ?::%s) AS similarity
		FROM embeddings
		WHERE model_name = ?
		ORDER BY embedding::%s <=> ?::%s
		LIMIT ?`, cast, cast, cast, cast),
		vec, model, vec, limit,
	).Scan(&matches).Error
	if err != nil {
		return nil, fmt.Errorf("nearest scenes: %w", err)
	}

	filtered := matches[:0]
	for _, m := range matches {
		if m.Similarity >= minSim {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}

// FaceMatch is a face nearest-neighbour hit projected to its parent scene.
type FaceMatch struct {
	FaceID     int64   `json:"face_id"`
	SceneID    int64   `json:"scene_id"`
	Similarity float64 `json:"similarity"`
}

// NearestFaces runs a cosine nearest-neighbour query over face vectors.
func (s *Store) NearestFaces(ctx context.Context, query []float32, minSim float64, limit int) ([]FaceMatch, error) {
	if limit <= 0 {
		limit = 200
	}
	vec := pgvector.NewVector(query)

	var matches []FaceMatch
	err := s.db.WithContext(ctx).Raw(`
		SELECT id AS face_id, scene_id, 1 - (embedding <=> ?) AS similarity
		FROM faces
		ORDER BY embedding <=> ?
		LIMIT ?`,
		vec, vec, limit,
	).Scan(&matches).Error
	if err != nil {
		return nil, fmt.Errorf("nearest faces: %w", err)
	}

	filtered := matches[:0]
	for _, m := range matches {
		if m.Similarity >= minSim {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}

// SceneVector pairs a scene id with its stored vector for one model.
// Used by the clustering pass.
type SceneVector struct {
	SceneID   int64
	Embedding pgvector.Vector
}

// AllSceneVectors returns every live scene's vector for a model, ordered by
// scene id. Soft-deleted files' scenes are excluded.
func (s *Store) AllSceneVectors(ctx context.Context, model string) ([]SceneVector, error) {
	var rows []SceneVector
	err := s.db.WithContext(ctx).Raw(`
		SELECT e.scene_id, e.embedding
		FROM embeddings e
		JOIN scenes s ON s.id = e.scene_id
		JOIN files f ON f.id = s.file_id
		WHERE e.model_name = ? AND f.deleted_at IS NULL
		ORDER BY e.scene_id`,
		model,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("all scene vectors: %w", err)
	}
	return rows, nil
}

// ModelCoverage summarizes how many scenes carry a vector for one model.
type ModelCoverage struct {
	ModelName    string     `json:"model_name"`
	ModelVersion string     `json:"model_version"`
	Dimension    int        `json:"dimension"`
	Found        int64      `json:"found"`
	LastUpdated  *time.Time `json:"last_updated"`
}

// EmbeddingCoverage aggregates per-model vector counts.
func (s *Store) EmbeddingCoverage(ctx context.Context) ([]ModelCoverage, error) {
	var rows []ModelCoverage
	err := s.db.WithContext(ctx).Raw(`
		SELECT model_name, model_version, dimension,
		       COUNT(*) AS found, MAX(created_at) AS last_updated
		FROM embeddings
		GROUP BY model_name, model_version, dimension
		ORDER BY model_name`,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("embedding coverage: %w", err)
	}
	return rows, nil
}
