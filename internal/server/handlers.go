package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"fennec/internal/search"
)

func (s *Server) handleReady(c *gin.Context) {
	state, _ := s.store.IndexerState(c.Request.Context())
	readiness := s.registry.Readiness()
	c.JSON(http.StatusOK, gin.H{
		"models_ready":    readiness.ModelsReady,
		"clip_loaded":     readiness.VisualLoaded,
		"sentence_loaded": readiness.SentenceLoaded,
		"indexer_state":   state,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": "connected"})
}

func (s *Server) handleBrowse(c *gin.Context) {
	limit := intQuery(c, "limit", 40, 200)
	offset := intQuery(c, "offset", 0, 1<<30)
	response, err := s.service.Browse(c.Request.Context(), limit, offset)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) handleScene(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scene id"})
		return
	}
	detail, err := s.service.SceneByID(c.Request.Context(), id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) handleSearch(c *gin.Context) {
	filters, err := filtersFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	response, err := s.service.Search(c.Request.Context(), filters)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) handleThumbnail(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scene id"})
		return
	}
	scene, err := s.store.GetScene(c.Request.Context(), id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if scene == nil || scene.PosterFramePath == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "thumbnail not found"})
		return
	}
	path := *scene.PosterFramePath
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.cfg.Paths.PosterDir, path)
	}
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "thumbnail file not found"})
		return
	}
	// Poster files are written once and never change; cache hard.
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.File(path)
}

func (s *Server) handleVideo(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return
	}
	file, err := s.store.GetFile(c.Request.Context(), id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if file == nil || file.DeletedAt != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
		return
	}
	if _, err := os.Stat(file.Path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "video file not found on disk"})
		return
	}
	// http.ServeFile handles range requests for scrubbing playback.
	http.ServeFile(c.Writer, c.Request, file.Path)
}

func (s *Server) handleFiles(c *gin.Context) {
	limit := intQuery(c, "limit", 50, 500)
	offset := intQuery(c, "offset", 0, 1<<30)
	completed := c.DefaultQuery("completed", "true") != "false"
	files, err := s.service.Files(c.Request.Context(), completed, limit, offset)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

func (s *Server) handleFile(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return
	}
	detail, err := s.service.FileByID(c.Request.Context(), id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) handleFace(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid face id"})
		return
	}
	detail, err := s.service.FaceByID(c.Request.Context(), id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.service.Stats(c.Request.Context())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleVectorStats(c *gin.Context) {
	stats, err := s.service.VectorStats(c.Request.Context())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleQueue(c *gin.Context) {
	view, err := s.service.Queue(c.Request.Context())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleScanProgress(c *gin.Context) {
	progress, err := s.store.ReadScanProgress(c.Request.Context())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (s *Server) handleWatchFolders(c *gin.Context) {
	statuses, err := s.service.WatchFolders(c.Request.Context())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"folders": statuses})
}

func (s *Server) handleConfigGet(c *gin.Context) {
	raw, err := s.store.GetConfigRaw(c.Request.Context(), c.Param("key"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if raw == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "config key not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": raw})
}

func (s *Server) handleConfigSet(c *gin.Context) {
	var body struct {
		Value any `json:"value"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	key := c.Param("key")
	if err := s.store.SetConfig(c.Request.Context(), key, body.Value); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "key": key, "value": body.Value})
}

func (s *Server) handleExportEDL(c *gin.Context) {
	var body struct {
		Scenes []search.EDLSelection `json:"scenes"`
		Title  string                `json:"title"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if body.Title == "" {
		body.Title = "Fennec Export"
	}
	content, err := s.service.ExportEDL(c.Request.Context(), body.Title, body.Scenes)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+body.Title+`.edl"`)
	c.Data(http.StatusOK, "text/plain", []byte(content))
}

func (s *Server) handleAdminStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"demo_mode":     s.demoMode,
		"admin_enabled": !s.demoMode,
	})
}

func (s *Server) handleResetFailed(c *gin.Context) {
	count, err := s.store.ResetFailed(c.Request.Context())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reset_count": count})
}

func (s *Server) handleResetProcessing(c *gin.Context) {
	count, err := s.store.ResetProcessing(c.Request.Context())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reset_count": count})
}

func (s *Server) handlePurgeDeleted(c *gin.Context) {
	count, err := s.store.PurgeDeleted(c.Request.Context())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "purged_count": count})
}

func (s *Server) handlePurgeOrphans(c *gin.Context) {
	folders, err := s.store.WatchFolders(c.Request.Context())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if len(folders) == 0 {
		c.JSON(http.StatusOK, gin.H{"success": true, "purged_count": 0, "message": "no watch folders configured"})
		return
	}
	count, err := s.store.PurgeOrphans(c.Request.Context(), folders)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "purged_count": count})
}

func (s *Server) handleWipe(c *gin.Context) {
	counts, err := s.store.Wipe(c.Request.Context())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "wiped": counts})
}

func (s *Server) handleRestart(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "server restarting"})
	if s.restart != nil {
		go s.restart()
	}
}

func intQuery(c *gin.Context, name string, fallback, max int) int {
	value, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(fallback)))
	if err != nil || value < 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

// filtersFromQuery translates the flat query-string parameters into the
// typed filter set.
func filtersFromQuery(c *gin.Context) (search.Filters, error) {
	var filters search.Filters

	strParam := func(name string) *string {
		if value, ok := c.GetQuery(name); ok && strings.TrimSpace(value) != "" {
			trimmed := strings.TrimSpace(value)
			return &trimmed
		}
		return nil
	}
	floatParam := func(name string) (*float64, error) {
		value, ok := c.GetQuery(name)
		if !ok || value == "" {
			return nil, nil
		}
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, errParam(name)
		}
		return &parsed, nil
	}
	intParam := func(name string) (*int, error) {
		value, ok := c.GetQuery(name)
		if !ok || value == "" {
			return nil, nil
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return nil, errParam(name)
		}
		return &parsed, nil
	}
	int64Param := func(name string) (*int64, error) {
		value, ok := c.GetQuery(name)
		if !ok || value == "" {
			return nil, nil
		}
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, errParam(name)
		}
		return &parsed, nil
	}

	var err error
	filters.VisualText = strParam("visual")
	filters.DialogKeyword = strParam("transcript")
	filters.DialogSemantic = strParam("transcript_semantic")
	filters.Path = strParam("path")
	filters.Codec = strParam("codec")

	if filters.VisualThresh, err = floatParam("visual_threshold"); err != nil {
		return filters, err
	}
	if filters.SemanticThresh, err = floatParam("transcript_threshold"); err != nil {
		return filters, err
	}
	if filters.FaceThresh, err = floatParam("face_threshold"); err != nil {
		return filters, err
	}
	if filters.MatchThresh, err = floatParam("visual_match_threshold"); err != nil {
		return filters, err
	}
	if filters.VisualMatch, err = int64Param("visual_match_scene_id"); err != nil {
		return filters, err
	}

	faceID, err := int64Param("face_id")
	if err != nil {
		return filters, err
	}
	faceScene, err := int64Param("face_scene_id")
	if err != nil {
		return filters, err
	}
	faceIndex, err := intParam("face_index")
	if err != nil {
		return filters, err
	}
	if faceID != nil || (faceScene != nil && faceIndex != nil) {
		filters.Face = &search.FaceRef{FaceID: faceID, SceneID: faceScene, FaceIndex: faceIndex}
	}

	if filters.TCMin, err = floatParam("tc_min"); err != nil {
		return filters, err
	}
	if filters.TCMax, err = floatParam("tc_max"); err != nil {
		return filters, err
	}
	if filters.DurationMin, err = floatParam("duration_min"); err != nil {
		return filters, err
	}
	if filters.DurationMax, err = floatParam("duration_max"); err != nil {
		return filters, err
	}
	if filters.FPSMin, err = floatParam("fps_min"); err != nil {
		return filters, err
	}
	if filters.FPSMax, err = floatParam("fps_max"); err != nil {
		return filters, err
	}
	if filters.WidthMin, err = intParam("width_min"); err != nil {
		return filters, err
	}
	if filters.WidthMax, err = intParam("width_max"); err != nil {
		return filters, err
	}
	if filters.HeightMin, err = intParam("height_min"); err != nil {
		return filters, err
	}
	if filters.HeightMax, err = intParam("height_max"); err != nil {
		return filters, err
	}

	filters.Limit = intQuery(c, "limit", 200, 500)
	return filters, nil
}

type paramError struct{ name string }

func (e paramError) Error() string { return "invalid value for parameter " + e.name }

func errParam(name string) error { return paramError{name: name} }
