package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jaki95/video-clip-tagger/internal/archive"
	"github.com/jaki95/video-clip-tagger/internal/pipeline"
)

// index godoc
// @Summary Upload form
// @Tags Utility
// @Produce html
// @Success 200 {string} string "HTML page"
// @Router / [get]
func (s *Server) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"ClipSeconds": s.cfg.Clip.Seconds,
		"Artist":      s.cfg.Clip.Artist,
		"MaxUploadMB": s.cfg.Server.MaxUploadMB,
	})
}

// health godoc
// @Summary Health check
// @Tags Utility
// @Produce json
// @Success 200 {object} MessageResponse
// @Router /health [get]
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// upload godoc
// @Summary Convert a video and download the tagged clips
// @Description Splits the uploaded video into clips, tags each one with a still frame as cover art and responds with a ZIP of the results.
// @Tags Clips
// @Accept multipart/form-data
// @Produce application/zip
// @Param file formData file true "Video file"
// @Param album formData string false "Album name, defaults to the file name"
// @Param artist formData string false "Artist name"
// @Param clip_seconds formData int false "Clip length in seconds"
// @Success 200 {file} application/zip
// @Failure 400 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /upload [post]
func (s *Server) upload(c *gin.Context) {
	inputPath, form, ok := s.receiveUpload(c)
	if !ok {
		return
	}
	defer os.RemoveAll(filepath.Dir(inputPath))

	req := s.pipelineRequest(inputPath, form)
	slog.Info("Processing upload", "file", filepath.Base(inputPath), "album", req.Album, "clipSeconds", req.ClipSeconds)

	result, err := s.runner.Run(c.Request.Context(), req, nil)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		slog.Error("Upload processing failed", "file", filepath.Base(inputPath), "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}

	zipPath := filepath.Join(s.cfg.Server.OutputDir, archive.Name(fmt.Sprintf("%s-%s", filepath.Base(result.RunDir), uuid.NewString())))
	defer os.Remove(zipPath)
	err = archive.WriteFile(zipPath, result.Outputs)
	if rmErr := os.RemoveAll(result.RunDir); rmErr != nil {
		slog.Warn("Failed to remove run directory", "dir", result.RunDir, "error", rmErr)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: fmt.Sprintf("failed to create archive: %v", err)})
		return
	}

	slog.Info("Upload processed", "archive", zipPath, "clips", len(result.Outputs))
	c.FileAttachment(zipPath, archive.Name(pipeline.Stem(inputPath)))
}
