package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pgvector/pgvector-go"

	"fennec/internal/store"
	"fennec/internal/testsupport"
)

func insertFile(t *testing.T, st *store.Store, path string) *store.File {
	t.Helper()
	now := time.Now().UTC()
	file := &store.File{
		Path:           path,
		Filename:       path,
		SizeBytes:      100,
		FileModifiedAt: &now,
	}
	if err := st.InsertFile(context.Background(), file); err != nil {
		t.Fatalf("InsertFile failed: %v", err)
	}
	return file
}

func TestQueueFIFOClaim(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	ctx := context.Background()

	var fileIDs []int64
	for i := 0; i < 3; i++ {
		file := insertFile(t, st, fmt.Sprintf("/media/fifo-%d.mp4", i))
		if _, err := st.Enqueue(ctx, file.ID); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		fileIDs = append(fileIDs, file.ID)
		time.Sleep(5 * time.Millisecond)
	}

	for i := 0; i < 3; i++ {
		item, err := st.ClaimNext(ctx, 3)
		if err != nil {
			t.Fatalf("ClaimNext failed: %v", err)
		}
		if item == nil {
			t.Fatalf("claim %d: expected a job", i)
		}
		if item.FileID != fileIDs[i] {
			t.Fatalf("claim %d: got file %d, want %d (FIFO by queued_at)", i, item.FileID, fileIDs[i])
		}
		if item.Status != store.StatusProcessing {
			t.Fatalf("claimed job status = %s", item.Status)
		}
		if item.StartedAt == nil {
			t.Fatal("claimed job missing started_at")
		}
	}

	if item, err := st.ClaimNext(ctx, 3); err != nil || item != nil {
		t.Fatalf("empty queue should claim nil, got %v, %v", item, err)
	}
}

func TestQueueLifecycle(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	ctx := context.Background()

	file := insertFile(t, st, "/media/lifecycle.mp4")
	if _, err := st.Enqueue(ctx, file.ID); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	item, err := st.ClaimNext(ctx, 5)
	if err != nil || item == nil {
		t.Fatalf("ClaimNext failed: %v %v", item, err)
	}

	if err := st.SetStage(ctx, item.ID, "scene_detection", 2); err != nil {
		t.Fatalf("SetStage failed: %v", err)
	}
	fetched, err := st.QueueItemForFile(ctx, file.ID)
	if err != nil {
		t.Fatalf("QueueItemForFile failed: %v", err)
	}
	if fetched.CurrentStage != "scene_detection" || fetched.CurrentStageNum != 2 || fetched.TotalStages != 5 {
		t.Fatalf("stage fields = %+v", fetched)
	}

	if err := st.FailJob(ctx, item.ID, "decoder exploded"); err != nil {
		t.Fatalf("FailJob failed: %v", err)
	}
	fetched, _ = st.QueueItemForFile(ctx, file.ID)
	if fetched.Status != store.StatusFailed || fetched.RetryCount != 1 || fetched.Error == nil {
		t.Fatalf("failed job = %+v", fetched)
	}

	count, err := st.ResetFailed(ctx)
	if err != nil || count != 1 {
		t.Fatalf("ResetFailed = %d, %v", count, err)
	}
	fetched, _ = st.QueueItemForFile(ctx, file.ID)
	if fetched.Status != store.StatusPending || fetched.Error != nil {
		t.Fatalf("reset job = %+v", fetched)
	}

	item, err = st.ClaimNext(ctx, 5)
	if err != nil || item == nil {
		t.Fatalf("re-claim failed: %v %v", item, err)
	}
	if err := st.CompleteJob(ctx, item.ID); err != nil {
		t.Fatalf("CompleteJob failed: %v", err)
	}
	fetched, _ = st.QueueItemForFile(ctx, file.ID)
	if fetched.Status != store.StatusComplete || fetched.CompletedAt == nil {
		t.Fatalf("completed job = %+v", fetched)
	}
}

func TestResetProcessingLeavesNoProcessingRows(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		file := insertFile(t, st, fmt.Sprintf("/media/reset-%d.mp4", i))
		if _, err := st.Enqueue(ctx, file.ID); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		if _, err := st.ClaimNext(ctx, 3); err != nil {
			t.Fatalf("ClaimNext failed: %v", err)
		}
	}

	count, err := st.ResetProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetProcessing failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 reset, got %d", count)
	}
	counts, err := st.QueueSnapshot(ctx)
	if err != nil {
		t.Fatalf("QueueSnapshot failed: %v", err)
	}
	if counts.Processing != 0 {
		t.Fatalf("processing count = %d after reset", counts.Processing)
	}
	if counts.Pending != 2 {
		t.Fatalf("pending count = %d after reset", counts.Pending)
	}
}

func TestEnqueueReplacesExistingRow(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	ctx := context.Background()

	file := insertFile(t, st, "/media/requeue.mp4")
	if _, err := st.Enqueue(ctx, file.ID); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	item, _ := st.ClaimNext(ctx, 3)
	if err := st.FailJob(ctx, item.ID, "boom"); err != nil {
		t.Fatalf("FailJob failed: %v", err)
	}

	if _, err := st.Enqueue(ctx, file.ID); err != nil {
		t.Fatalf("re-Enqueue failed: %v", err)
	}
	fetched, _ := st.QueueItemForFile(ctx, file.ID)
	if fetched.Status != store.StatusPending || fetched.RetryCount != 0 || fetched.Error != nil {
		t.Fatalf("re-enqueued job = %+v", fetched)
	}
}

func TestEmbeddingUpsertOverwrites(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	ctx := context.Background()

	file := insertFile(t, st, "/media/emb.mp4")
	if err := st.ReplaceScenes(ctx, file.ID, []store.Scene{{StartTC: 0, EndTC: 10}}); err != nil {
		t.Fatalf("ReplaceScenes failed: %v", err)
	}
	scenes, _ := st.ScenesForFile(ctx, file.ID)
	sceneID := scenes[0].ID

	vec := make([]float32, 512)
	vec[0] = 1
	first := &store.Embedding{
		SceneID: sceneID, ModelName: "clip", ModelVersion: "v1",
		Dimension: 512, Embedding: pgvector.NewVector(vec),
	}
	if err := st.UpsertEmbedding(ctx, first); err != nil {
		t.Fatalf("UpsertEmbedding failed: %v", err)
	}

	vec2 := make([]float32, 512)
	vec2[1] = 1
	second := &store.Embedding{
		SceneID: sceneID, ModelName: "clip", ModelVersion: "v2",
		Dimension: 512, Embedding: pgvector.NewVector(vec2),
	}
	if err := st.UpsertEmbedding(ctx, second); err != nil {
		t.Fatalf("upsert with new version failed: %v", err)
	}

	rows, err := st.EmbeddingsForScene(ctx, sceneID)
	if err != nil {
		t.Fatalf("EmbeddingsForScene failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one row per (scene, model), got %d", len(rows))
	}
	if rows[0].ModelVersion != "v2" {
		t.Fatalf("version = %s, want v2", rows[0].ModelVersion)
	}
}

func TestNearestScenesRestrictedByModel(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	ctx := context.Background()

	file := insertFile(t, st, "/media/nn.mp4")
	if err := st.ReplaceScenes(ctx, file.ID, []store.Scene{
		{StartTC: 0, EndTC: 5},
		{StartTC: 5, EndTC: 10},
	}); err != nil {
		t.Fatalf("ReplaceScenes failed: %v", err)
	}
	scenes, _ := st.ScenesForFile(ctx, file.ID)

	v1 := make([]float32, 512)
	v1[0] = 1
	v2 := make([]float32, 512)
	v2[1] = 1
	for i, vec := range [][]float32{v1, v2} {
		if err := st.UpsertEmbedding(ctx, &store.Embedding{
			SceneID: scenes[i].ID, ModelName: "clip", ModelVersion: "v1",
			Dimension: 512, Embedding: pgvector.NewVector(vec),
		}); err != nil {
			t.Fatalf("UpsertEmbedding failed: %v", err)
		}
	}
	// A transcript vector of a different dimension shares the table.
	tv := make([]float32, 384)
	tv[0] = 1
	if err := st.UpsertEmbedding(ctx, &store.Embedding{
		SceneID: scenes[0].ID, ModelName: "transcript", ModelVersion: "v1",
		Dimension: 384, Embedding: pgvector.NewVector(tv),
	}); err != nil {
		t.Fatalf("UpsertEmbedding transcript failed: %v", err)
	}

	query := make([]float32, 512)
	query[0] = 0.9
	query[1] = 0.1

	matches, err := st.NearestScenes(ctx, "clip", 512, query, 0.5, 10)
	if err != nil {
		t.Fatalf("NearestScenes failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("threshold 0.5 should admit only the aligned scene, got %d", len(matches))
	}
	if matches[0].SceneID != scenes[0].ID {
		t.Fatalf("wrong scene: %+v", matches[0])
	}
	if matches[0].Similarity < 0.9 {
		t.Fatalf("similarity = %g", matches[0].Similarity)
	}

	// Threshold 0 admits every clip vector but never the transcript row.
	matches, err = st.NearestScenes(ctx, "clip", 512, query, 0, 10)
	if err != nil {
		t.Fatalf("NearestScenes failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("threshold 0 should admit all clip vectors, got %d", len(matches))
	}
}

func TestCascadeDeleteFileRemovesArtifacts(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	ctx := context.Background()

	file := insertFile(t, st, "/media/cascade.mp4")
	if err := st.ReplaceScenes(ctx, file.ID, []store.Scene{{StartTC: 0, EndTC: 3}}); err != nil {
		t.Fatalf("ReplaceScenes failed: %v", err)
	}
	scenes, _ := st.ScenesForFile(ctx, file.ID)
	vec := make([]float32, 512)
	vec[0] = 1
	if err := st.UpsertEmbedding(ctx, &store.Embedding{
		SceneID: scenes[0].ID, ModelName: "clip", ModelVersion: "v1",
		Dimension: 512, Embedding: pgvector.NewVector(vec),
	}); err != nil {
		t.Fatalf("UpsertEmbedding failed: %v", err)
	}
	if err := st.ReplaceFacesForFile(ctx, file.ID, []store.Face{{
		SceneID: scenes[0].ID, BBoxX: 1, BBoxY: 2, BBoxW: 3, BBoxH: 4,
		Embedding: pgvector.NewVector(vec),
	}}); err != nil {
		t.Fatalf("ReplaceFacesForFile failed: %v", err)
	}

	if err := st.SoftDeleteFile(ctx, file.ID); err != nil {
		t.Fatalf("SoftDeleteFile failed: %v", err)
	}
	// Soft delete keeps artifacts but clears the queue.
	if item, _ := st.QueueItemForFile(ctx, file.ID); item != nil {
		t.Fatalf("queue item should be cleared on soft delete")
	}
	if scenes, _ := st.ScenesForFile(ctx, file.ID); len(scenes) != 1 {
		t.Fatalf("scenes should survive soft delete")
	}

	count, err := st.PurgeDeleted(ctx)
	if err != nil || count != 1 {
		t.Fatalf("PurgeDeleted = %d, %v", count, err)
	}
	if scenes, _ := st.ScenesForFile(ctx, file.ID); len(scenes) != 0 {
		t.Fatalf("scenes should cascade away on purge")
	}
	totals, _ := st.Stats(ctx)
	if totals.Faces != 0 {
		t.Fatalf("faces should cascade away on purge, got %d", totals.Faces)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	ctx := context.Background()

	if err := st.SetConfig(ctx, store.KeyIndexerState, store.IndexerPaused); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	state, err := st.IndexerState(ctx)
	if err != nil || state != store.IndexerPaused {
		t.Fatalf("IndexerState = %q, %v", state, err)
	}

	if err := st.SetConfig(ctx, store.KeyWatchFolders, []string{"/mnt/a", "/mnt/b"}); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	folders, err := st.WatchFolders(ctx)
	if err != nil || len(folders) != 2 {
		t.Fatalf("WatchFolders = %v, %v", folders, err)
	}

	// Overwrite persists the new value.
	if err := st.SetConfig(ctx, store.KeyIndexerState, store.IndexerRunning); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	if state, _ := st.IndexerState(ctx); state != store.IndexerRunning {
		t.Fatalf("state = %q after overwrite", state)
	}

	thresholds, err := st.Thresholds(ctx)
	if err != nil {
		t.Fatalf("Thresholds failed: %v", err)
	}
	if thresholds.Visual != 0.10 || thresholds.Face != 0.25 {
		t.Fatalf("default thresholds = %+v", thresholds)
	}
}

func TestWipePreservesConfig(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	ctx := context.Background()

	insertFile(t, st, "/media/wipe.mp4")
	if err := st.SetConfig(ctx, store.KeyPollInterval, 1200); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}

	counts, err := st.Wipe(ctx)
	if err != nil {
		t.Fatalf("Wipe failed: %v", err)
	}
	if counts.Files != 1 {
		t.Fatalf("wipe counts = %+v", counts)
	}
	if live, _ := st.CountLiveFiles(ctx); live != 0 {
		t.Fatalf("files remain after wipe: %d", live)
	}
	interval, err := st.PollInterval(ctx)
	if err != nil || interval != 1200 {
		t.Fatalf("config should survive wipe: %d, %v", interval, err)
	}
}
