package ffprobe

import (
	"math"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", CodecName: "h264", Width: 1920, Height: 1080, RFrameRate: "30000/1001"},
			{CodecType: "audio"},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
		},
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}

	stream := result.VideoStream()
	if stream == nil || stream.CodecName != "h264" {
		t.Fatalf("unexpected video stream: %+v", stream)
	}
	if fps := stream.FrameRate(); math.Abs(fps-29.97) > 0.001 {
		t.Fatalf("frame rate = %v", fps)
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.VideoStream() != nil {
		t.Fatal("expected no video stream")
	}
}

func TestFrameRateForms(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{"24/1", 24},
		{"25", 25},
		{"30000/1001", 29.97},
		{"0/0", 0},
		{"", 0},
		{"garbage", 0},
	}
	for _, tc := range cases {
		stream := Stream{RFrameRate: tc.raw}
		if got := stream.FrameRate(); math.Abs(got-tc.want) > 0.001 {
			t.Errorf("FrameRate(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
