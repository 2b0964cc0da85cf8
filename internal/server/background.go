package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jaki95/video-clip-tagger/internal/archive"
	"github.com/jaki95/video-clip-tagger/internal/pipeline"
	"github.com/jaki95/video-clip-tagger/internal/progress"
)

// jobTimeout bounds a background run so a wedged ffmpeg cannot hold a job
// forever
const jobTimeout = 2 * time.Hour

// processJob runs the pipeline for a queued job, packages the outputs and
// publishes the archive
func (s *Server) processJob(ctx context.Context, jobID string, req pipeline.Request) {
	slog.Info("Starting background processing", "jobId", jobID, "file", filepath.Base(req.InputPath))

	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	if err := s.jobManager.StartJob(jobID); err != nil {
		slog.Warn("Job not started", "jobId", jobID, "error", err)
		return
	}

	tracker := progress.NewTracker()
	tracker.AddListener(func(event progress.Event) {
		if err := s.jobManager.RecordEvent(jobID, event); err != nil {
			slog.Error("Failed to record progress", "jobId", jobID, "error", err)
			return
		}
		slog.Debug("Job progress update", "jobId", jobID, "stage", event.Stage, "progress", event.Progress, "message", event.Message)
	})

	result, err := s.runner.Run(ctx, req, tracker)
	if err != nil {
		s.failJob(ctx, jobID, err)
		return
	}

	tracker.UpdateProgress(progress.StagePackaging, progress.ProgressPackageStart, "Packaging clips...")

	// the run directory is gone once zipped, so its name may be reused by the
	// next upload of the same file; the job ID keeps archives apart
	zipName := archive.Name(fmt.Sprintf("%s-%s", pipeline.Stem(req.InputPath), jobID))
	zipPath := filepath.Join(s.cfg.Server.OutputDir, zipName)
	err = archive.WriteFile(zipPath, result.Outputs)
	if rmErr := os.RemoveAll(result.RunDir); rmErr != nil {
		slog.Warn("Failed to remove run directory", "jobId", jobID, "dir", result.RunDir, "error", rmErr)
	}
	if err != nil {
		s.failJob(ctx, jobID, fmt.Errorf("failed to create archive: %w", err))
		return
	}

	location, err := s.store.Publish(ctx, zipPath, zipName)
	if err != nil {
		os.Remove(zipPath)
		s.failJob(ctx, jobID, fmt.Errorf("failed to publish archive: %w", err))
		return
	}
	if location != zipPath {
		// Publish uploaded or moved it; drop whatever is left locally
		os.Remove(zipPath)
	}

	results := make([]string, 0, len(result.Outputs))
	for _, out := range result.Outputs {
		results = append(results, filepath.Base(out))
	}

	downloadURL := fmt.Sprintf("/api/jobs/%s/download", jobID)
	if err := s.jobManager.CompleteJob(jobID, results, location, downloadURL); err != nil {
		slog.Warn("Job finished after cancellation", "jobId", jobID, "error", err)
		return
	}
	slog.Info("Job completed successfully", "jobId", jobID, "clips", len(results), "archive", location)
}

func (s *Server) failJob(ctx context.Context, jobID string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		// FailJob leaves a cancelled job untouched
		slog.Warn("Job cancelled", "jobId", jobID)
	} else {
		slog.Error("Job failed", "jobId", jobID, "error", err)
	}

	if updateErr := s.jobManager.FailJob(jobID, err); updateErr != nil {
		slog.Error("Failed to update job", "jobId", jobID, "error", updateErr)
	}
}
