package scanner

import "testing"

func TestIsVideoFile(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"movie.mp4", true},
		{"movie.MP4", true},
		{"clip.MkV", true},
		{"broadcast.mxf", true},
		{"stream.m2ts", true},
		{"old.rmvb", true},
		{"game.bk2", true},
		{"notes.txt", false},
		{"image.jpg", false},
		{"archive.mp4.zip", false},
		{"noext", false},
		{"raw.r3d", false},
		{"raw.braw", false},
	}
	for _, tc := range cases {
		if got := IsVideoFile(tc.path); got != tc.want {
			t.Errorf("IsVideoFile(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestExtensionCount(t *testing.T) {
	// The recognized set is contractual; additions need decoder support.
	if len(videoExtensions) != 26 {
		t.Fatalf("expected 26 recognized extensions, got %d", len(videoExtensions))
	}
}
