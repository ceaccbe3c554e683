package clustering

import (
	"context"
	"log/slog"

	"fennec/internal/logging"
	"fennec/internal/store"
)

// Runner applies a clustering pass to the store's scene and face vectors.
type Runner struct {
	store  *store.Store
	logger *slog.Logger
	opts   Options
}

// NewRunner builds a Runner with default options.
func NewRunner(st *store.Store, logger *slog.Logger) *Runner {
	return &Runner{
		store:  st,
		logger: logging.NewComponentLogger(logger, "clustering"),
		opts:   DefaultOptions(),
	}
}

// Run reclusters both populations. Prior assignments are overwritten.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.clusterScenes(ctx); err != nil {
		return err
	}
	return r.clusterFaces(ctx)
}

func (r *Runner) clusterScenes(ctx context.Context) error {
	rows, err := r.store.AllSceneVectors(ctx, "clip")
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	vectors := make([][]float32, len(rows))
	for i, row := range rows {
		vectors[i] = row.Embedding.Slice()
	}
	assignments := Cluster(vectors, r.opts)

	for i, row := range rows {
		if err := r.store.UpdateSceneCluster(ctx, row.SceneID, assignments[i].ClusterID, assignments[i].Order); err != nil {
			return err
		}
	}
	r.logger.Info("scene clustering complete",
		logging.Int("scenes", len(rows)),
		logging.Int("clusters", countClusters(assignments)),
	)
	return nil
}

func (r *Runner) clusterFaces(ctx context.Context) error {
	faces, err := r.store.AllFaceVectors(ctx)
	if err != nil {
		return err
	}
	if len(faces) == 0 {
		return nil
	}

	vectors := make([][]float32, len(faces))
	for i := range faces {
		vectors[i] = faces[i].Embedding.Slice()
	}
	assignments := Cluster(vectors, r.opts)

	for i := range faces {
		if err := r.store.UpdateFaceCluster(ctx, faces[i].ID, assignments[i].ClusterID, assignments[i].Order); err != nil {
			return err
		}
	}
	r.logger.Info("face clustering complete",
		logging.Int("faces", len(faces)),
		logging.Int("clusters", countClusters(assignments)),
	)
	return nil
}

func countClusters(assignments []Assignment) int {
	seen := map[int]struct{}{}
	for _, a := range assignments {
		if a.ClusterID != UnclusteredID {
			seen[a.ClusterID] = struct{}{}
		}
	}
	return len(seen)
}
