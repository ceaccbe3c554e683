package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingFile marks jobs whose on-disk path vanished between
	// enumeration and processing.
	ErrMissingFile = errors.New("missing file")
	// ErrUnreadableMedia marks files the decoder rejects; terminal for
	// the file until manual retry.
	ErrUnreadableMedia = errors.New("unreadable media")
	// ErrTransient marks I/O or decoder failures worth a user-initiated retry.
	ErrTransient = errors.New("transient failure")
	// ErrModelNotReady marks inference host load failures; the job stays
	// pending and the worker backs off.
	ErrModelNotReady = errors.New("model not ready")
	// ErrConflict marks concurrent-write collisions.
	ErrConflict = errors.New("conflict")
	// ErrNotFound marks lookups for ids that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrBadRequest marks query filter values out of range or ill-typed.
	ErrBadRequest = errors.New("bad request")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later disposition classification. The marker
// should be one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Disposition describes what the pipeline should do with a job after a
// stage error.
type Disposition int

const (
	// DispositionFail moves the job to failed; reset-failed re-queues it.
	DispositionFail Disposition = iota
	// DispositionRequeue returns the job to pending and backs the worker
	// off; used for environmental failures like a model host refusing to load.
	DispositionRequeue
)

// FailureDisposition maps a stage error to the queue transition the
// pipeline should apply after the stage fails.
func FailureDisposition(err error) Disposition {
	if errors.Is(err, ErrModelNotReady) {
		return DispositionRequeue
	}
	return DispositionFail
}

// Message extracts the human-readable portion of a wrapped error for
// persistence on the queue row.
func Message(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimSpace(err.Error())
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
