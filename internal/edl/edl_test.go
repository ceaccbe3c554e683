package edl_test

import (
	"math"
	"strings"
	"testing"

	"fennec/internal/edl"
)

func TestSecondsToTimecode(t *testing.T) {
	cases := []struct {
		name    string
		seconds float64
		fps     float64
		want    string
	}{
		{"zero", 0, 24, "00:00:00:00"},
		{"one frame", 1.0 / 24.0, 24, "00:00:00:01"},
		{"whole second", 1, 24, "00:00:01:00"},
		{"minute boundary", 60, 25, "00:01:00:00"},
		{"hour boundary", 3600, 30, "01:00:00:00"},
		{"ntsc", 10, 29.97, "00:00:10:00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := edl.SecondsToTimecode(tc.seconds, tc.fps)
			if got != tc.want {
				t.Fatalf("SecondsToTimecode(%v, %v) = %q, want %q", tc.seconds, tc.fps, got, tc.want)
			}
		})
	}
}

func TestTimecodeRoundTrip(t *testing.T) {
	for _, fps := range []float64{23.976, 24, 25, 29.97, 30, 60} {
		for _, seconds := range []float64{0, 0.5, 1, 59.96, 61.2, 3599.9, 7200.04} {
			tc := edl.SecondsToTimecode(seconds, fps)
			back, err := edl.TimecodeToSeconds(tc, fps)
			if err != nil {
				t.Fatalf("parse %q at %g fps: %v", tc, fps, err)
			}
			if math.Abs(back-seconds) > 1.0/fps {
				t.Fatalf("round trip at %g fps: %g -> %q -> %g exceeds one frame", fps, seconds, tc, back)
			}
		}
	}
}

func TestExportParseRoundTrip(t *testing.T) {
	clips := []edl.Clip{
		{SceneID: 11, In: 1.5, Out: 4.25, ClipName: "alpha.mp4", FPS: 24},
		{SceneID: 12, In: 0, Out: 10, ClipName: "beta.mov", FPS: 29.97},
		{SceneID: 13, In: 30.2, Out: 31.0, ClipName: "gamma.mkv", FPS: 25},
	}

	content := edl.Export("Test Cut", clips)

	if !strings.HasPrefix(content, "TITLE: Test Cut\n") {
		t.Fatalf("missing title header:\n%s", content)
	}
	if !strings.Contains(content, "FCM: NON-DROP FRAME") {
		t.Fatalf("missing FCM line:\n%s", content)
	}

	events, err := edl.Parse(content)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(events) != len(clips) {
		t.Fatalf("expected %d events, got %d", len(clips), len(events))
	}

	for i, event := range events {
		clip := clips[i]
		if event.Number != i+1 {
			t.Fatalf("event %d: number = %d", i, event.Number)
		}
		if event.ClipName != clip.ClipName {
			t.Fatalf("event %d: clip name %q, want %q", i, event.ClipName, clip.ClipName)
		}
		srcIn, err := edl.TimecodeToSeconds(event.SrcIn, clip.FPS)
		if err != nil {
			t.Fatalf("event %d: parse src in: %v", i, err)
		}
		srcOut, err := edl.TimecodeToSeconds(event.SrcOut, clip.FPS)
		if err != nil {
			t.Fatalf("event %d: parse src out: %v", i, err)
		}
		frame := 1.0 / clip.FPS
		if math.Abs(srcIn-clip.In) > frame {
			t.Fatalf("event %d: src in %g, want %g within one frame", i, srcIn, clip.In)
		}
		if math.Abs(srcOut-clip.Out) > frame {
			t.Fatalf("event %d: src out %g, want %g within one frame", i, srcOut, clip.Out)
		}
	}
}

func TestExportRecordPositionsRunContinuously(t *testing.T) {
	clips := []edl.Clip{
		{SceneID: 1, In: 10, Out: 12, ClipName: "a.mp4", FPS: 25},
		{SceneID: 2, In: 5, Out: 8, ClipName: "b.mp4", FPS: 25},
	}
	events, err := edl.Parse(edl.Export("seq", clips))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	recOut0, _ := edl.TimecodeToSeconds(events[0].RecOut, 25)
	recIn1, _ := edl.TimecodeToSeconds(events[1].RecIn, 25)
	if recOut0 != recIn1 {
		t.Fatalf("record positions not continuous: %g vs %g", recOut0, recIn1)
	}
	recIn0, _ := edl.TimecodeToSeconds(events[0].RecIn, 25)
	if recIn0 != 0 {
		t.Fatalf("first record in should be zero, got %g", recIn0)
	}
}

func TestParseRejectsMalformedEvent(t *testing.T) {
	if _, err := edl.Parse("001 AX V C broken line"); err == nil {
		t.Fatal("expected error for malformed event line")
	}
}
