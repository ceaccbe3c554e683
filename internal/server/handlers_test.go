package server

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func testContext(t *testing.T, rawQuery string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/api/search?"+rawQuery, nil)
	return c
}

func TestFiltersFromQueryFullSet(t *testing.T) {
	c := testContext(t, "visual=red+car&visual_threshold=0.4&transcript=hello"+
		"&transcript_semantic=greeting&face_id=9&visual_match_scene_id=17"+
		"&path=%2Fmnt&codec=h264&fps_min=23&fps_max=30&duration_min=1&duration_max=600"+
		"&width_min=1280&height_min=720&tc_min=0&tc_max=90&limit=50")

	filters, err := filtersFromQuery(c)
	if err != nil {
		t.Fatalf("filtersFromQuery failed: %v", err)
	}
	if filters.VisualText == nil || *filters.VisualText != "red car" {
		t.Fatalf("visual = %v", filters.VisualText)
	}
	if filters.VisualThresh == nil || *filters.VisualThresh != 0.4 {
		t.Fatalf("visual threshold = %v", filters.VisualThresh)
	}
	if filters.DialogKeyword == nil || *filters.DialogKeyword != "hello" {
		t.Fatalf("keyword = %v", filters.DialogKeyword)
	}
	if filters.Face == nil || filters.Face.FaceID == nil || *filters.Face.FaceID != 9 {
		t.Fatalf("face = %+v", filters.Face)
	}
	if filters.VisualMatch == nil || *filters.VisualMatch != 17 {
		t.Fatalf("visual match = %v", filters.VisualMatch)
	}
	if filters.WidthMin == nil || *filters.WidthMin != 1280 {
		t.Fatalf("width min = %v", filters.WidthMin)
	}
	if filters.Limit != 50 {
		t.Fatalf("limit = %d", filters.Limit)
	}
}

func TestFiltersFromQueryFaceBySceneIndex(t *testing.T) {
	c := testContext(t, "face_scene_id=3&face_index=1")
	filters, err := filtersFromQuery(c)
	if err != nil {
		t.Fatalf("filtersFromQuery failed: %v", err)
	}
	if filters.Face == nil || filters.Face.SceneID == nil || *filters.Face.SceneID != 3 {
		t.Fatalf("face = %+v", filters.Face)
	}
	if filters.Face.FaceIndex == nil || *filters.Face.FaceIndex != 1 {
		t.Fatalf("face index = %+v", filters.Face)
	}
}

func TestFiltersFromQueryRejectsBadNumbers(t *testing.T) {
	for _, query := range []string{
		"visual_threshold=high",
		"fps_min=fast",
		"width_min=wide",
		"visual_match_scene_id=abc",
	} {
		c := testContext(t, query)
		if _, err := filtersFromQuery(c); err == nil {
			t.Errorf("expected error for query %q", query)
		}
	}
}

func TestFiltersFromQueryEmptyIsValid(t *testing.T) {
	c := testContext(t, "")
	filters, err := filtersFromQuery(c)
	if err != nil {
		t.Fatalf("filtersFromQuery failed: %v", err)
	}
	if filters.VisualText != nil || filters.Face != nil || filters.VisualMatch != nil {
		t.Fatalf("expected empty filters, got %+v", filters)
	}
	if filters.Limit != 200 {
		t.Fatalf("default limit = %d", filters.Limit)
	}
}

func TestIntQueryClamping(t *testing.T) {
	c := testContext(t, "limit=9999")
	if got := intQuery(c, "limit", 40, 200); got != 200 {
		t.Fatalf("intQuery clamp = %d", got)
	}
	c = testContext(t, "limit=-5")
	if got := intQuery(c, "limit", 40, 200); got != 40 {
		t.Fatalf("intQuery negative fallback = %d", got)
	}
	c = testContext(t, "")
	if got := intQuery(c, "limit", 40, 200); got != 40 {
		t.Fatalf("intQuery default = %d", got)
	}
}
