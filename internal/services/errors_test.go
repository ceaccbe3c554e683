package services

import (
	"errors"
	"strings"
	"testing"
)

func TestWrapTagsMarker(t *testing.T) {
	err := Wrap(ErrUnreadableMedia, "metadata", "probe", "/tmp/x.mp4", errors.New("exit status 1"))
	if !errors.Is(err, ErrUnreadableMedia) {
		t.Fatal("expected ErrUnreadableMedia marker")
	}
	for _, fragment := range []string{"metadata", "probe", "/tmp/x.mp4", "exit status 1"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("message missing %q: %s", fragment, err)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "stage", "", "", nil)
	if !errors.Is(err, ErrTransient) {
		t.Fatal("nil marker should default to ErrTransient")
	}
}

func TestFailureDisposition(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Disposition
	}{
		{"model not ready requeues", Wrap(ErrModelNotReady, "visual", "load", "", nil), DispositionRequeue},
		{"unreadable media fails", Wrap(ErrUnreadableMedia, "metadata", "probe", "", nil), DispositionFail},
		{"transient fails", Wrap(ErrTransient, "poster", "extract", "", nil), DispositionFail},
		{"missing file fails", Wrap(ErrMissingFile, "", "stat", "", nil), DispositionFail},
		{"plain error fails", errors.New("boom"), DispositionFail},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FailureDisposition(tc.err); got != tc.want {
				t.Fatalf("FailureDisposition = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := WithStage(WithFileID(WithJobID(t.Context(), 7), 13), "metadata")

	if id, ok := JobIDFromContext(ctx); !ok || id != 7 {
		t.Fatalf("job id = %d, %v", id, ok)
	}
	if id, ok := FileIDFromContext(ctx); !ok || id != 13 {
		t.Fatalf("file id = %d, %v", id, ok)
	}
	if stage, ok := StageFromContext(ctx); !ok || stage != "metadata" {
		t.Fatalf("stage = %q, %v", stage, ok)
	}
}
