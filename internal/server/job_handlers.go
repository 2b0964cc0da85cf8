package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jaki95/video-clip-tagger/internal/job"
)

// createJob godoc
// @Summary Queue a video for conversion
// @Description Accepts the same form as /upload but processes it in the background. Poll the job and download the archive when it completes.
// @Tags Jobs
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Video file"
// @Param album formData string false "Album name, defaults to the file name"
// @Param artist formData string false "Artist name"
// @Param clip_seconds formData int false "Clip length in seconds"
// @Success 202 {object} JobAcceptedResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/jobs [post]
func (s *Server) createJob(c *gin.Context) {
	inputPath, form, ok := s.receiveUpload(c)
	if !ok {
		return
	}

	req := s.pipelineRequest(inputPath, form)
	jobStatus, ctx := s.jobManager.CreateJob(job.Request{
		Filename:    filepath.Base(inputPath),
		Album:       req.Album,
		Artist:      req.Artist,
		ClipSeconds: req.ClipSeconds,
	})

	go func() {
		defer os.RemoveAll(filepath.Dir(inputPath))
		s.processJob(ctx, jobStatus.ID, req)
	}()

	c.JSON(http.StatusAccepted, JobAcceptedResponse{
		JobID:   jobStatus.ID,
		Status:  "accepted",
		Message: "Processing started",
	})
}

// getJobStatus godoc
// @Summary Get job status
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} job.Status
// @Failure 404 {object} ErrorResponse
// @Router /api/jobs/{id} [get]
func (s *Server) getJobStatus(c *gin.Context) {
	jobID := c.Param("id")

	jobStatus, err := s.jobManager.GetJob(jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("%v: %s", job.ErrNotFound, jobID)})
		return
	}

	c.JSON(http.StatusOK, jobStatus)
}

// cancelJob godoc
// @Summary Cancel a job
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/jobs/{id}/cancel [post]
func (s *Server) cancelJob(c *gin.Context) {
	jobID := c.Param("id")

	if err := s.jobManager.CancelJob(jobID); err != nil {
		switch {
		case errors.Is(err, job.ErrNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("%v: %s", job.ErrNotFound, jobID)})
		case errors.Is(err, job.ErrInvalidState):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Job cancelled"})
}

// listJobs godoc
// @Summary List jobs
// @Tags Jobs
// @Produce json
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} job.Response
// @Router /api/jobs [get]
func (s *Server) listJobs(c *gin.Context) {
	page := 1
	pageSize := job.DefaultPageSize

	if p := c.Query("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}

	if ps := c.Query("pageSize"); ps != "" {
		if parsed, err := strconv.Atoi(ps); err == nil && parsed > 0 && parsed <= job.MaxPageSize {
			pageSize = parsed
		}
	}

	response := s.jobManager.ListJobs(page, pageSize)
	c.JSON(http.StatusOK, response)
}
