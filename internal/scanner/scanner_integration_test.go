package scanner_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fennec/internal/logging"
	"fennec/internal/scanner"
	"fennec/internal/store"
	"fennec/internal/testsupport"
)

func setupWatchRoot(t *testing.T, st *store.Store) string {
	t.Helper()
	root := t.TempDir()
	if err := st.SetConfig(context.Background(), store.KeyWatchFolders, []string{root}); err != nil {
		t.Fatalf("set watch folders: %v", err)
	}
	return root
}

func TestScanEmptyRoot(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	setupWatchRoot(t, st)

	result, err := scanner.New(st, logging.NewNop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Found != 0 || result.New != 0 {
		t.Fatalf("empty root scan = %+v", result)
	}

	progress, err := st.ReadScanProgress(context.Background())
	if err != nil {
		t.Fatalf("ReadScanProgress failed: %v", err)
	}
	if progress.Phase != store.ScanPhaseComplete {
		t.Fatalf("phase = %q, want complete", progress.Phase)
	}
}

func TestScanClassifiesNewUpdatedSkipped(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	root := setupWatchRoot(t, st)
	ctx := context.Background()
	scan := scanner.New(st, logging.NewNop())

	testsupport.WriteVideoStub(t, filepath.Join(root, "one.mp4"), 100)
	if err := os.MkdirAll(filepath.Join(root, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	testsupport.WriteVideoStub(t, filepath.Join(root, "nested", "two.MKV"), 200)
	testsupport.WriteVideoStub(t, filepath.Join(root, "ignored.txt"), 10)

	result, err := scan.Run(ctx)
	if err != nil {
		t.Fatalf("first scan failed: %v", err)
	}
	if result.Found != 2 || result.New != 2 || result.Updated != 0 || result.Skipped != 0 {
		t.Fatalf("first scan = %+v", result)
	}
	if result.Found != result.New+result.Updated+result.Skipped {
		t.Fatalf("counter arithmetic broken: %+v", result)
	}

	counts, _ := st.QueueSnapshot(ctx)
	if counts.Pending != 2 {
		t.Fatalf("expected 2 queued jobs, got %+v", counts)
	}

	// Unindexed files rescan as skipped; the queue still covers them.
	result, err = scan.Run(ctx)
	if err != nil {
		t.Fatalf("second scan failed: %v", err)
	}
	if result.New != 0 || result.Updated != 0 || result.Skipped != 2 {
		t.Fatalf("unchanged rescan = %+v", result)
	}

	// Mark a file enriched, then modify it; the next scan re-queues it.
	file, err := st.FindFileByPath(ctx, filepath.Join(root, "one.mp4"))
	if err != nil || file == nil {
		t.Fatalf("lookup failed: %v %v", file, err)
	}
	if err := st.SetFileIndexed(ctx, file.ID, time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("SetFileIndexed failed: %v", err)
	}
	testsupport.WriteVideoStub(t, filepath.Join(root, "one.mp4"), 555)

	result, err = scan.Run(ctx)
	if err != nil {
		t.Fatalf("third scan failed: %v", err)
	}
	if result.Updated != 1 || result.Skipped != 1 {
		t.Fatalf("modified rescan = %+v", result)
	}
	refetched, _ := st.GetFile(ctx, file.ID)
	if refetched.IndexedAt != nil {
		t.Fatalf("modified file should lose indexed_at")
	}
}

func TestScanSoftDeletesMissingAndResurrects(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	root := setupWatchRoot(t, st)
	ctx := context.Background()
	scan := scanner.New(st, logging.NewNop())

	path := filepath.Join(root, "gone.mp4")
	testsupport.WriteVideoStub(t, path, 100)

	if _, err := scan.Run(ctx); err != nil {
		t.Fatalf("initial scan failed: %v", err)
	}
	file, _ := st.FindFileByPath(ctx, path)
	if file == nil {
		t.Fatal("file not inserted")
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	result, err := scan.Run(ctx)
	if err != nil {
		t.Fatalf("scan after delete failed: %v", err)
	}
	if result.Missing != 1 {
		t.Fatalf("missing = %d, want 1", result.Missing)
	}
	file, _ = st.GetFile(ctx, file.ID)
	if file.DeletedAt == nil {
		t.Fatal("file should be soft-deleted")
	}
	if item, _ := st.QueueItemForFile(ctx, file.ID); item != nil {
		t.Fatal("queue item should be cleared for soft-deleted file")
	}

	// The file reappears: soft delete clears and it re-queues.
	testsupport.WriteVideoStub(t, path, 100)
	result, err = scan.Run(ctx)
	if err != nil {
		t.Fatalf("scan after restore failed: %v", err)
	}
	if result.New != 1 {
		t.Fatalf("resurrected file should count as new: %+v", result)
	}
	file, _ = st.GetFile(ctx, file.ID)
	if file.DeletedAt != nil {
		t.Fatal("file should be resurrected")
	}
}

func TestScanWithoutWatchFoldersIsIdle(t *testing.T) {
	st := testsupport.MustOpenStore(t)

	result, err := scanner.New(st, logging.NewNop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Found != 0 {
		t.Fatalf("result = %+v", result)
	}
	progress, _ := st.ReadScanProgress(context.Background())
	if progress.Phase != store.ScanPhaseIdle {
		t.Fatalf("phase = %q, want idle", progress.Phase)
	}
}
