// Package server is the HTTP layer of the read-oriented query service.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fennec/internal/config"
	"fennec/internal/logging"
	"fennec/internal/models"
	"fennec/internal/search"
	"fennec/internal/services"
	"fennec/internal/store"
)

// Server hosts the query API.
type Server struct {
	cfg      *config.Config
	store    *store.Store
	service  *search.Service
	registry *models.Registry
	logger   *slog.Logger
	demoMode bool
	restart  func()
}

// Options configures optional server behavior.
type Options struct {
	// Restart is invoked by the admin restart action; the process exit and
	// supervisor restart live with the caller.
	Restart func()
}

// New builds a Server.
func New(cfg *config.Config, st *store.Store, registry *models.Registry, logger *slog.Logger, opts Options) *Server {
	return &Server{
		cfg:      cfg,
		store:    st,
		service:  search.New(st, registry, logger),
		registry: registry,
		logger:   logging.NewComponentLogger(logger, "server"),
		demoMode: strings.EqualFold(os.Getenv("DEMO_MODE"), "true"),
		restart:  opts.Restart,
	}
}

// Router assembles the gin engine with every query-surface route.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	api := router.Group("/api")
	{
		api.GET("/ready", s.handleReady)
		api.GET("/health", s.handleHealth)

		api.GET("/scenes", s.handleBrowse)
		api.GET("/scene/:id", s.handleScene)
		api.GET("/search", s.handleSearch)
		api.GET("/thumbnail/:id", s.handleThumbnail)
		api.GET("/video/:id", s.handleVideo)

		api.GET("/files", s.handleFiles)
		api.GET("/files/:id", s.handleFile)
		api.GET("/faces/:id", s.handleFace)

		api.GET("/stats", s.handleStats)
		api.GET("/stats/vectors", s.handleVectorStats)
		api.GET("/queue", s.handleQueue)
		api.GET("/scan/progress", s.handleScanProgress)
		api.GET("/watch-folders", s.handleWatchFolders)

		api.GET("/config/:key", s.handleConfigGet)
		api.PUT("/config/:key", s.handleConfigSet)

		api.POST("/export/edl", s.handleExportEDL)

		admin := api.Group("/admin")
		{
			admin.GET("/status", s.handleAdminStatus)
			admin.POST("/reset-failed-jobs", s.adminGate(s.handleResetFailed))
			admin.POST("/reset-processing-jobs", s.adminGate(s.handleResetProcessing))
			admin.POST("/purge-deleted", s.adminGate(s.handlePurgeDeleted))
			admin.POST("/purge-orphans", s.adminGate(s.handlePurgeOrphans))
			admin.DELETE("/database", s.adminGate(s.handleWipe))
			admin.POST("/restart-server", s.adminGate(s.handleRestart))
		}
	}
	return router
}

// Serve runs the API on the configured bind address.
func (s *Server) Serve() error {
	s.logger.Info("query api listening", logging.String("address", s.cfg.Paths.APIBind))
	return s.Router().Run(s.cfg.Paths.APIBind)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		c.Header("X-Request-ID", requestID)
		c.Next()
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Error("request failed",
				logging.String("request_id", requestID),
				logging.String("path", c.Request.URL.Path),
				logging.Int("status", c.Writer.Status()),
			)
		}
	}
}

// adminGate refuses mutating admin actions in demo mode.
func (s *Server) adminGate(handler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.demoMode {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin actions disabled in demo mode"})
			return
		}
		handler(c)
	}
}

// abortWithError maps the service error taxonomy onto HTTP statuses.
func (s *Server) abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, services.ErrModelNotReady):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
