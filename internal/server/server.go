package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jaki95/video-clip-tagger/config"
	"github.com/jaki95/video-clip-tagger/internal/job"
	"github.com/jaki95/video-clip-tagger/internal/pipeline"
	"github.com/jaki95/video-clip-tagger/internal/progress"
	"github.com/jaki95/video-clip-tagger/internal/storage"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Runner executes one conversion run
type Runner interface {
	Run(ctx context.Context, req pipeline.Request, tracker *progress.Tracker) (*pipeline.Result, error)
}

// Server handles HTTP requests for the clip tagger
type Server struct {
	cfg        *config.Config
	router     *gin.Engine
	runner     Runner
	store      storage.Storage
	jobManager *job.Manager
	httpServer *http.Server
}

// New creates a new HTTP server instance
func New(cfg *config.Config, runner Runner, store storage.Storage) *Server {
	router := gin.Default()
	router.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	server := &Server{
		cfg:        cfg,
		router:     router,
		runner:     runner,
		store:      store,
		jobManager: job.NewManager(),
	}

	server.setupRoutes(router)
	return server
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes(router *gin.Engine) {
	router.GET("/", s.index)
	router.GET("/health", s.health)
	router.POST("/upload", s.limitBody(), s.upload)

	api := router.Group("/api")
	{
		api.POST("/jobs", s.limitBody(), s.createJob)
		api.GET("/jobs", s.listJobs)
		api.GET("/jobs/:id", s.getJobStatus)
		api.POST("/jobs/:id/cancel", s.cancelJob)
		api.GET("/jobs/:id/download", s.downloadArchive)
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              ":" + s.cfg.Server.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// no run is active yet, so every leftover intermediate belongs to a
	// process that died mid-run
	if swept := pipeline.SweepWorkDirs(s.cfg.Server.OutputDir, time.Now()); swept > 0 {
		slog.Info("Removed intermediates of interrupted runs", "count", swept)
	}
	s.StartCleanupWorker(ctx)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", s.cfg.Server.Port)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server")
	s.jobManager.CancelAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return s.store.Close()
}

// limitBody caps the request body at the configured upload size
func (s *Server) limitBody() gin.HandlerFunc {
	maxBytes := s.cfg.Server.MaxUploadMB << 20
	return func(c *gin.Context) {
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
