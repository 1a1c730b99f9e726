/**
 * Health and stats HTTP server for the OCRR Worker
 *
 * GET /health        store connectivity
 * GET /stats         queue and store counters
 * GET /jobs/:taskId  recorded task outcome
 */

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adverant/nexus/ocrr-worker/internal/logging"
	"github.com/adverant/nexus/ocrr-worker/internal/storage"
)

const requestTimeout = 5 * time.Second

// Stores is what the server reads from the storage layer
type Stores interface {
	Ping(ctx context.Context) map[string]error
	GetStats(ctx context.Context) (map[string]interface{}, error)
	GetJobByID(ctx context.Context, taskID string) (*storage.Job, error)
}

// QueueStats reports queue counters
type QueueStats interface {
	GetStats(ctx context.Context) (map[string]int64, error)
}

// Config holds server configuration
type Config struct {
	Addr   string
	Stores Stores
	Queue  QueueStats
	Info   map[string]string // static details shown on /health, e.g. mode and backend
}

// Server serves the worker's HTTP endpoints
type Server struct {
	config *Config
	engine *gin.Engine
	http   *http.Server
	logger *logging.Logger
}

// New creates a server with its routes registered
func New(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config: cfg,
		engine: gin.New(),
		logger: logging.NewLogger("http"),
	}
	s.engine.Use(gin.Recovery())
	s.registerRoutes()

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.healthHandler)
	s.engine.GET("/stats", s.statsHandler)
	s.engine.GET("/jobs/:taskId", s.jobHandler)
}

// Handler exposes the router
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves in the background; a listener failure is logged
func (s *Server) Start() {
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.config.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", "error", err.Error())
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	checks := gin.H{}
	healthy := true
	if s.config.Stores != nil {
		for name, err := range s.config.Stores.Ping(ctx) {
			if err != nil {
				healthy = false
				checks[name] = err.Error()
				continue
			}
			checks[name] = "ok"
		}
	}

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	body := gin.H{"status": status, "checks": checks}
	for k, v := range s.config.Info {
		body[k] = v
	}
	c.JSON(code, body)
}

func (s *Server) statsHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	body := gin.H{}
	if s.config.Queue != nil {
		queueStats, err := s.config.Queue.GetStats(ctx)
		if err != nil {
			s.logger.Warn("Failed to read queue stats", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read queue stats"})
			return
		}
		body["queue"] = queueStats
	}
	if s.config.Stores != nil {
		storeStats, err := s.config.Stores.GetStats(ctx)
		if err != nil {
			s.logger.Warn("Failed to read storage stats", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read storage stats"})
			return
		}
		body["storage"] = storeStats
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) jobHandler(c *gin.Context) {
	if s.config.Stores == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	job, err := s.config.Stores.GetJobByID(ctx, c.Param("taskId"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	if err != nil {
		s.logger.Warn("Failed to read task", "taskId", c.Param("taskId"), "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read task"})
		return
	}
	c.JSON(http.StatusOK, job)
}
