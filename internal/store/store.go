package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fennec/internal/config"
)

// Store is the sole holder of durable state: files, scenes, faces,
// embeddings, the enrichment queue, and the runtime config table.
type Store struct {
	db *gorm.DB
}

// Open connects to Postgres, ensures the vector extension, and applies
// schema migrations.
func Open(cfg *config.Config) (*Store, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return store, nil
}

// OpenWithDB wraps an existing gorm connection. Used by tests.
func OpenWithDB(db *gorm.DB) (*Store, error) {
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate() error {
	if err := s.db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("ensure vector extension: %w", err)
	}
	if err := s.db.AutoMigrate(
		&File{}, &Scene{}, &Face{}, &Embedding{}, &QueueItem{}, &ConfigEntry{},
	); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	// Path uniqueness applies to live rows only; a soft-deleted row may
	// share a path with its resurrected successor until purge.
	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_files_path_live
		 ON files (path) WHERE deleted_at IS NULL`,
		// Cosine indexes require a uniform dimension per partition, so
		// each model gets its own partial index with an explicit cast.
		`CREATE INDEX IF NOT EXISTS idx_embeddings_clip_hnsw
		 ON embeddings USING hnsw ((embedding::vector(512)) vector_cosine_ops)
		 WHERE model_name = 'clip'`,
		`CREATE INDEX IF NOT EXISTS idx_embeddings_transcript_hnsw
		 ON embeddings USING hnsw ((embedding::vector(384)) vector_cosine_ops)
		 WHERE model_name = 'transcript'`,
		`CREATE INDEX IF NOT EXISTS idx_faces_embedding_hnsw
		 ON faces USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range indexes {
		if err := s.db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
