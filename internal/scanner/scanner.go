// Package scanner reconciles the store's files table with the current
// state of the watch roots. Probing is deferred to the pipeline's metadata
// stage so scans stay fast on network mounts.
package scanner

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fennec/internal/logging"
	"fennec/internal/store"
)

// Result summarizes one completed scan.
type Result struct {
	Found       int
	New         int
	Updated     int
	Skipped     int
	Missing     int64
	DirsScanned int
	Duration    time.Duration
}

// Scanner walks the watch roots and classifies discovered files.
type Scanner struct {
	store  *store.Store
	logger *slog.Logger

	mu       sync.RWMutex
	progress store.ScanProgress
}

// New builds a Scanner.
func New(st *store.Store, logger *slog.Logger) *Scanner {
	return &Scanner{
		store:    st,
		logger:   logging.NewComponentLogger(logger, "scanner"),
		progress: store.ScanProgress{Phase: store.ScanPhaseIdle},
	}
}

// Progress returns the current in-memory scan snapshot.
func (s *Scanner) Progress() store.ScanProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

func (s *Scanner) publish(ctx context.Context, update func(*store.ScanProgress)) {
	s.mu.Lock()
	update(&s.progress)
	s.progress.UpdatedAt = time.Now().UTC()
	snapshot := s.progress
	s.mu.Unlock()

	// Mirrored into the config table so the query process can serve it.
	if err := s.store.PublishScanProgress(ctx, snapshot); err != nil {
		s.logger.Warn("publish scan progress failed", logging.Error(err))
	}
}

// Run executes one full scan of all configured watch roots.
func (s *Scanner) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	var result Result

	folders, err := s.store.WatchFolders(ctx)
	if err != nil {
		return result, err
	}
	if len(folders) == 0 {
		s.logger.Warn("no watch folders configured")
		s.publish(ctx, func(p *store.ScanProgress) { *p = store.ScanProgress{Phase: store.ScanPhaseIdle} })
		return result, nil
	}

	// Phase 1: discover video files. No probing here.
	s.publish(ctx, func(p *store.ScanProgress) {
		*p = store.ScanProgress{Phase: store.ScanPhaseDiscovering}
	})

	var discovered []string
	for _, folder := range folders {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		s.logger.Info("discovering videos", logging.String("folder", folder))
		s.publish(ctx, func(p *store.ScanProgress) { p.CurrentFolder = folder })
		discovered = append(discovered, s.walkRoot(ctx, folder, &result)...)
	}
	result.Found = len(discovered)
	s.logger.Info("discovery complete",
		logging.Int("dirs_scanned", result.DirsScanned),
		logging.Int("files_found", result.Found),
	)

	// Phase 2: classify each discovered file against the store.
	s.publish(ctx, func(p *store.ScanProgress) {
		p.Phase = store.ScanPhaseProcessing
		p.CurrentFolder = ""
		p.FilesFound = result.Found
	})

	seen := make(map[string]struct{}, len(discovered))
	for i, path := range discovered {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		seen[path] = struct{}{}

		switch s.processFile(ctx, path) {
		case classifiedNew:
			result.New++
		case classifiedUpdated:
			result.Updated++
		case classifiedSkipped:
			result.Skipped++
		}

		if (i+1)%10 == 0 || i == len(discovered)-1 {
			processed := i + 1
			s.publish(ctx, func(p *store.ScanProgress) {
				p.FilesProcessed = processed
				p.FilesNew = result.New
				p.FilesUpdated = result.Updated
				p.FilesSkipped = result.Skipped
			})
		}
	}

	// Phase 3: soft-delete rows whose paths were not observed. Only
	// mounted roots participate; an offline volume must not wipe its index.
	s.publish(ctx, func(p *store.ScanProgress) { p.Phase = store.ScanPhaseCheckingMissing })
	var accessible []string
	for _, folder := range folders {
		if info, err := os.Stat(folder); err == nil && info.IsDir() {
			accessible = append(accessible, folder)
		}
	}
	missing, err := s.store.MarkFilesMissing(ctx, accessible, seen)
	if err != nil {
		s.logger.Error("mark missing files failed", logging.Error(err))
	}
	result.Missing = missing
	if missing > 0 {
		s.logger.Info("marked missing files", logging.Int64("count", missing))
	}

	// Phase 4: record scan metadata and final counters.
	result.Duration = time.Since(start)
	if err := s.store.SetConfig(ctx, store.KeyLastScanAt, time.Now().UTC()); err != nil {
		s.logger.Warn("record last scan time failed", logging.Error(err))
	}
	if err := s.store.SetConfig(ctx, store.KeyLastScanDurationMS, result.Duration.Milliseconds()); err != nil {
		s.logger.Warn("record last scan duration failed", logging.Error(err))
	}

	s.publish(ctx, func(p *store.ScanProgress) {
		p.Phase = store.ScanPhaseComplete
		p.FilesFound = result.Found
		p.FilesProcessed = result.Found
		p.FilesNew = result.New
		p.FilesUpdated = result.Updated
		p.FilesSkipped = result.Skipped
	})

	s.logger.Info("scan complete",
		logging.Duration("elapsed", result.Duration),
		logging.Int("found", result.Found),
		logging.Int("new", result.New),
		logging.Int("updated", result.Updated),
		logging.Int("skipped", result.Skipped),
	)
	return result, nil
}

// walkRoot enumerates one watch root, counting directories and collecting
// matching files. Unreadable paths are skipped, never fatal.
func (s *Scanner) walkRoot(ctx context.Context, root string, result *Result) []string {
	if _, err := os.Stat(root); err != nil {
		s.logger.Warn("watch folder not mounted", logging.String("folder", root), logging.Error(err))
		return nil
	}

	var videos []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.logger.Debug("cannot access path", logging.String("path", path), logging.Error(err))
			return nil
		}
		if d.IsDir() {
			result.DirsScanned++
			if result.DirsScanned%100 == 0 {
				dirs, found := result.DirsScanned, len(videos)
				s.publish(ctx, func(p *store.ScanProgress) {
					p.CurrentFolder = path
					p.DirsScanned = dirs
					p.FilesFound = found
				})
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if IsVideoFile(d.Name()) {
			videos = append(videos, path)
		}
		return nil
	})
	return videos
}

type classification int

const (
	classifiedSkipped classification = iota
	classifiedNew
	classifiedUpdated
)

// processFile classifies one discovered path as new, updated, or unchanged
// and applies the matching store transition. Per-file failures degrade to
// skipped; a scan never aborts on one file.
func (s *Scanner) processFile(ctx context.Context, path string) classification {
	info, err := os.Stat(path)
	if err != nil {
		s.logger.Warn("cannot stat file", logging.String("path", path), logging.Error(err))
		return classifiedSkipped
	}
	size := info.Size()
	mtime := info.ModTime().UTC()

	existing, err := s.store.FindFileByPath(ctx, path)
	if err != nil {
		s.logger.Error("lookup failed", logging.String("path", path), logging.Error(err))
		return classifiedSkipped
	}

	if existing == nil {
		file := &store.File{
			Path:           path,
			Filename:       filepath.Base(path),
			ParentFolder:   filepath.Base(filepath.Dir(path)),
			SizeBytes:      size,
			FileModifiedAt: &mtime,
			// Creation time is not portable; mtime is the stable floor.
			FileCreatedAt: &mtime,
		}
		if err := s.store.InsertFile(ctx, file); err != nil {
			s.logger.Error("insert failed", logging.String("path", path), logging.Error(err))
			return classifiedSkipped
		}
		if _, err := s.store.Enqueue(ctx, file.ID); err != nil {
			s.logger.Error("enqueue failed", logging.Int64(logging.FieldFileID, file.ID), logging.Error(err))
		}
		s.logger.Info("new file", logging.String("path", path), logging.Int64(logging.FieldFileID, file.ID))
		return classifiedNew
	}

	if existing.DeletedAt != nil {
		// The file reappeared; clear the soft delete and re-enrich.
		if err := s.store.Resurrect(ctx, existing.ID); err != nil {
			s.logger.Error("resurrect failed", logging.Int64(logging.FieldFileID, existing.ID), logging.Error(err))
			return classifiedSkipped
		}
		if _, err := s.store.Enqueue(ctx, existing.ID); err != nil {
			s.logger.Error("enqueue failed", logging.Int64(logging.FieldFileID, existing.ID), logging.Error(err))
		}
		s.logger.Info("resurrected file", logging.String("path", path))
		return classifiedNew
	}

	if s.fileChanged(existing, size, mtime) {
		if err := s.requeueModified(ctx, existing, size, mtime); err != nil {
			s.logger.Error("requeue modified failed", logging.Int64(logging.FieldFileID, existing.ID), logging.Error(err))
			return classifiedSkipped
		}
		s.logger.Info("modified file re-queued", logging.String("path", path))
		return classifiedUpdated
	}

	return classifiedSkipped
}

// fileChanged compares the on-disk (size, mtime) against the stored row.
// A one-second mtime tolerance absorbs filesystem timestamp precision.
func (s *Scanner) fileChanged(file *store.File, size int64, mtime time.Time) bool {
	if file.IndexedAt == nil {
		// Never enriched; the queue row still covers it.
		return false
	}
	if file.SizeBytes != size {
		return true
	}
	if file.FileModifiedAt != nil && mtime.Sub(*file.FileModifiedAt) > time.Second {
		return true
	}
	return false
}

// requeueModified refreshes filesystem metadata, drops stale enrichment
// artifacts, and queues the file for a fresh pass.
func (s *Scanner) requeueModified(ctx context.Context, file *store.File, size int64, mtime time.Time) error {
	if err := s.store.UpdateFileColumns(ctx, file.ID, map[string]any{
		"file_size_bytes":  size,
		"file_modified_at": mtime,
	}); err != nil {
		return err
	}
	if err := s.store.ClearFileIndexed(ctx, file.ID); err != nil {
		return err
	}
	if err := s.store.ReplaceScenes(ctx, file.ID, nil); err != nil {
		return err
	}
	_, err := s.store.Enqueue(ctx, file.ID)
	return err
}
