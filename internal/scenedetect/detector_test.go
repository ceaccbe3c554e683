package scenedetect

import (
	"context"
	"testing"
)

// stubSource returns canned frames regardless of path.
type stubSource struct {
	frames [][]byte
	err    error
}

func (s stubSource) GrayFrames(context.Context, string, int, int, float64) ([][]byte, error) {
	return s.frames, s.err
}

func flatFrame(size int, value byte) []byte {
	frame := make([]byte, size)
	for i := range frame {
		frame[i] = value
	}
	return frame
}

func TestDetectFindsContentCut(t *testing.T) {
	// 4 fps sampling: 8 dark frames, then 8 bright frames. The jump lands
	// at sample 8 → 2.0 seconds.
	const size = 16
	var framesList [][]byte
	for i := 0; i < 8; i++ {
		framesList = append(framesList, flatFrame(size, 10))
	}
	for i := 0; i < 8; i++ {
		framesList = append(framesList, flatFrame(size, 200))
	}

	detector := New(stubSource{frames: framesList}, Options{Threshold: 27, SampleFPS: 4, Width: 4, Height: 4})
	intervals, err := detector.Detect(context.Background(), "clip.mp4", 4.0)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if len(intervals) != 2 {
		t.Fatalf("expected 2 scenes, got %d: %v", len(intervals), intervals)
	}
	if intervals[0].Start != 0 || intervals[0].End != 2.0 {
		t.Fatalf("first scene = %+v, want [0, 2)", intervals[0])
	}
	if intervals[1].Start != 2.0 || intervals[1].End != 4.0 {
		t.Fatalf("second scene = %+v, want [2, 4)", intervals[1])
	}
}

func TestDetectNoCutsYieldsSingleScene(t *testing.T) {
	var framesList [][]byte
	for i := 0; i < 20; i++ {
		framesList = append(framesList, flatFrame(16, 42))
	}
	detector := New(stubSource{frames: framesList}, Options{Threshold: 27, SampleFPS: 4, Width: 4, Height: 4})
	intervals, err := detector.Detect(context.Background(), "flat.mp4", 5.0)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(intervals) != 1 {
		t.Fatalf("expected a single scene, got %d", len(intervals))
	}
	if intervals[0].Start != 0 || intervals[0].End != 5.0 {
		t.Fatalf("scene = %+v, want [0, 5)", intervals[0])
	}
}

func TestDetectIntervalsCoverDuration(t *testing.T) {
	// Alternate every 2 samples to produce several cuts.
	var framesList [][]byte
	for i := 0; i < 24; i++ {
		value := byte(20)
		if (i/2)%2 == 1 {
			value = 220
		}
		framesList = append(framesList, flatFrame(16, value))
	}
	detector := New(stubSource{frames: framesList}, Options{Threshold: 27, SampleFPS: 4, Width: 4, Height: 4})
	intervals, err := detector.Detect(context.Background(), "alt.mp4", 6.0)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(intervals) < 2 {
		t.Fatalf("expected multiple scenes, got %d", len(intervals))
	}

	if intervals[0].Start != 0 {
		t.Fatalf("cover must start at 0, got %g", intervals[0].Start)
	}
	for i := range intervals {
		if intervals[i].End <= intervals[i].Start {
			t.Fatalf("scene %d: end %g <= start %g", i, intervals[i].End, intervals[i].Start)
		}
		if i > 0 && intervals[i].Start != intervals[i-1].End {
			t.Fatalf("scene %d does not abut scene %d", i, i-1)
		}
	}
	if last := intervals[len(intervals)-1]; last.End != 6.0 {
		t.Fatalf("cover must end at duration, got %g", last.End)
	}
}

func TestDetectRejectsNonPositiveDuration(t *testing.T) {
	detector := New(stubSource{}, DefaultOptions())
	if _, err := detector.Detect(context.Background(), "x.mp4", 0); err == nil {
		t.Fatal("expected error for zero duration")
	}
}

func TestMinSceneSuppression(t *testing.T) {
	// A cut at 0.25s would create a scene shorter than the minimum.
	framesList := [][]byte{
		flatFrame(16, 10),
		flatFrame(16, 200),
		flatFrame(16, 200),
		flatFrame(16, 200),
	}
	detector := New(stubSource{frames: framesList}, Options{Threshold: 27, SampleFPS: 4, Width: 4, Height: 4, MinSceneSeconds: 0.5})
	intervals, err := detector.Detect(context.Background(), "short.mp4", 1.0)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(intervals) != 1 {
		t.Fatalf("expected suppressed cut to yield one scene, got %d", len(intervals))
	}
}
