package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jaki95/video-clip-tagger/internal/pipeline"
	"github.com/jaki95/video-clip-tagger/internal/storage"
)

const (
	// Upper bound for the cleanup interval
	maxCleanupInterval = time.Hour

	// Lower bound so a tiny TTL does not spin the ticker
	minCleanupInterval = time.Minute
)

// StartCleanupWorker starts a background worker that removes archives,
// uploads and job records older than the configured TTL
func (s *Server) StartCleanupWorker(ctx context.Context) {
	interval := cleanupInterval(s.cfg.Server.FileTTL)
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.cleanupOldFiles(now)
			}
		}
	}()
	slog.Info("File cleanup worker started", "interval", interval, "ttl", s.cfg.Server.FileTTL)
}

func cleanupInterval(ttl time.Duration) time.Duration {
	interval := ttl / 2
	if interval > maxCleanupInterval {
		interval = maxCleanupInterval
	}
	if interval < minCleanupInterval {
		interval = minCleanupInterval
	}
	return interval
}

// cleanupOldFiles removes everything that expired before now-TTL and
// returns the number of removed entries
func (s *Server) cleanupOldFiles(now time.Time) int {
	cutoff := now.Add(-s.cfg.Server.FileTTL)
	slog.Debug("Starting cleanup of old files", "cutoff", cutoff)

	cleaned := 0
	for _, expired := range s.jobManager.RemoveExpired(cutoff) {
		if expired.Archive == "" || storage.IsRemote(expired.Archive) {
			continue
		}
		if err := os.Remove(expired.Archive); err == nil {
			cleaned++
		} else if !os.IsNotExist(err) {
			slog.Error("Failed to remove job archive", "jobId", expired.ID, "path", expired.Archive, "error", err)
		}
	}

	cleaned += pipeline.SweepWorkDirs(s.cfg.Server.OutputDir, cutoff)

	for _, dir := range []string{s.cfg.Server.OutputDir, s.cfg.Server.UploadDir} {
		cleaned += removeOlderThan(dir, cutoff)
	}

	if cleaned > 0 {
		slog.Info("Cleanup completed", "entries_cleaned", cleaned)
	}
	return cleaned
}

func removeOlderThan(dir string, cutoff time.Time) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("Failed to read directory", "dir", dir, "error", err)
		}
		return 0
	}

	cleaned := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			slog.Error("Failed to remove old entry", "path", path, "error", err)
			continue
		}
		slog.Debug("Cleaned up old entry", "path", path, "age", time.Since(info.ModTime()))
		cleaned++
	}
	return cleaned
}

// SanitizeFilename sanitizes a filename by removing invalid characters
func SanitizeFilename(name string) string {
	// Replace invalid characters with underscores
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", "\n", "\r", "\t"}
	result := name
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}

	// Remove leading and trailing spaces and dots
	result = strings.Trim(result, " .")

	// Ensure the filename is not empty
	if result == "" {
		result = "untitled"
	}

	return result
}

// formFile returns the uploaded video part of a multipart request
func formFile(c *gin.Context) (*multipart.FileHeader, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			return nil, ErrUploadTooLarge
		}
		return nil, ErrMissingFile
	}
	if fileHeader.Filename == "" {
		return nil, ErrMissingFile
	}
	return fileHeader, nil
}

// saveUpload stores the upload in its own directory below the upload root,
// keeping the sanitized client file name so the run is named after it
func (s *Server) saveUpload(c *gin.Context, fileHeader *multipart.FileHeader) (string, error) {
	dir := filepath.Join(s.cfg.Server.UploadDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	dst := filepath.Join(dir, SanitizeFilename(filepath.Base(fileHeader.Filename)))
	if err := c.SaveUploadedFile(fileHeader, dst); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	return dst, nil
}

// checkVideo sniffs the file content; the client's Content-Type is not
// trusted
func checkVideo(path string) error {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("failed to detect file type: %w", err)
	}

	for m := mtype; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "video/") {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotVideo, mtype.String())
}

// pipelineRequest fills the gaps in the form with configured defaults
func (s *Server) pipelineRequest(inputPath string, form UploadForm) pipeline.Request {
	req := pipeline.Request{
		InputPath:   inputPath,
		OutputRoot:  s.cfg.Server.OutputDir,
		ClipSeconds: form.ClipSeconds,
		Album:       strings.TrimSpace(form.Album),
		Artist:      strings.TrimSpace(form.Artist),
	}
	if req.ClipSeconds == 0 {
		req.ClipSeconds = s.cfg.Clip.Seconds
	}
	if req.Artist == "" {
		req.Artist = s.cfg.Clip.Artist
	}
	return req
}

// uploadError maps upload validation failures to a status code
func uploadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUploadTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrMissingFile), errors.Is(err, ErrNotVideo):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

// receiveUpload validates and stores the uploaded video. On success the
// caller owns the returned path and must remove its directory.
func (s *Server) receiveUpload(c *gin.Context) (string, UploadForm, bool) {
	var form UploadForm

	fileHeader, err := formFile(c)
	if err != nil {
		uploadError(c, err)
		return "", form, false
	}

	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid form: %v", err)})
		return "", form, false
	}

	inputPath, err := s.saveUpload(c, fileHeader)
	if err != nil {
		uploadError(c, err)
		return "", form, false
	}

	if err := checkVideo(inputPath); err != nil {
		os.RemoveAll(filepath.Dir(inputPath))
		uploadError(c, err)
		return "", form, false
	}

	return inputPath, form, true
}
