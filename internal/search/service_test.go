package search

import (
	"errors"
	"testing"

	"fennec/internal/services"
	"fennec/internal/store"
)

func floatPtr(f float64) *float64 { return &f }

func TestValidateFiltersRejectsBadThresholds(t *testing.T) {
	cases := []struct {
		name    string
		filters Filters
	}{
		{"visual above one", Filters{VisualThresh: floatPtr(1.5)}},
		{"face below zero", Filters{FaceThresh: floatPtr(-0.1)}},
		{"match above one", Filters{MatchThresh: floatPtr(2)}},
		{"semantic below zero", Filters{SemanticThresh: floatPtr(-1)}},
		{"inverted timecodes", Filters{TCMin: floatPtr(10), TCMax: floatPtr(5)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateFilters(tc.filters)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, services.ErrBadRequest) {
				t.Fatalf("expected ErrBadRequest, got %v", err)
			}
		})
	}
}

func TestValidateFiltersAcceptsBoundaries(t *testing.T) {
	// Threshold 0 admits everything with a vector; 1 admits exact matches.
	filters := Filters{
		VisualThresh:   floatPtr(0),
		FaceThresh:     floatPtr(1),
		MatchThresh:    floatPtr(0.5),
		SemanticThresh: floatPtr(1),
	}
	if err := validateFilters(filters); err != nil {
		t.Fatalf("boundary thresholds should validate: %v", err)
	}
}

func TestIntersectWithScores(t *testing.T) {
	in := []SceneView{{ID: 1}, {ID: 2}, {ID: 3}}
	matches := []store.SceneMatch{
		{SceneID: 1, Similarity: 0.9},
		{SceneID: 3, Similarity: 0.6},
		{SceneID: 99, Similarity: 0.8},
	}

	out := intersectWithScores(in, matches, setSimilarity)
	if len(out) != 2 {
		t.Fatalf("expected intersection of 2, got %d", len(out))
	}
	if out[0].ID != 1 || *out[0].Similarity != 0.9 {
		t.Fatalf("first result = %+v", out[0])
	}
	if out[1].ID != 3 || *out[1].Similarity != 0.6 {
		t.Fatalf("second result = %+v", out[1])
	}
}

func TestFilterByIDSet(t *testing.T) {
	in := []SceneView{{ID: 1}, {ID: 2}}
	out := filterByIDSet(in, map[int64]struct{}{2: {}})
	if len(out) != 1 || out[0].ID != 2 {
		t.Fatalf("filterByIDSet = %+v", out)
	}
}

func TestPredicatesMapping(t *testing.T) {
	path := "/mnt/media"
	codec := "h264"
	filters := Filters{
		Path:        &path,
		Codec:       &codec,
		FPSMin:      floatPtr(23),
		DurationMax: floatPtr(600),
		TCMin:       floatPtr(5),
	}
	pred := predicates(filters)
	if pred.PathSubstring != path || pred.CodecSubstring != codec {
		t.Fatalf("predicates = %+v", pred)
	}
	if pred.FPSMin == nil || *pred.FPSMin != 23 {
		t.Fatalf("fps min not mapped: %+v", pred)
	}
	if pred.DurationMax == nil || *pred.DurationMax != 600 {
		t.Fatalf("duration max not mapped: %+v", pred)
	}
	if pred.TCMin == nil || *pred.TCMin != 5 {
		t.Fatalf("tc min not mapped: %+v", pred)
	}
}

func TestRowsToViewsPreservesOrderAndFields(t *testing.T) {
	transcript := "dialog"
	rows := []store.SceneRow{
		{ID: 10, SceneIndex: 0, StartTC: 0, EndTC: 2.5, FileID: 7, Filename: "a.mp4", Transcript: &transcript},
		{ID: 11, SceneIndex: 1, StartTC: 2.5, EndTC: 4, FileID: 7, Filename: "a.mp4"},
	}
	views := rowsToViews(rows)
	if len(views) != 2 {
		t.Fatalf("views = %d", len(views))
	}
	if views[0].ID != 10 || views[0].EndTime != 2.5 || *views[0].Transcript != "dialog" {
		t.Fatalf("first view = %+v", views[0])
	}
	if views[1].StartTime != 2.5 {
		t.Fatalf("second view = %+v", views[1])
	}
}

func TestPickPrefersOverride(t *testing.T) {
	if got := pick(floatPtr(0.7), 0.1); got != 0.7 {
		t.Fatalf("pick = %g", got)
	}
	if got := pick(nil, 0.1); got != 0.1 {
		t.Fatalf("pick fallback = %g", got)
	}
}
