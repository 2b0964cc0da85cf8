package server

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/jaki95/video-clip-tagger/internal/archive"
	"github.com/jaki95/video-clip-tagger/internal/job"
	"github.com/jaki95/video-clip-tagger/internal/pipeline"
	"github.com/jaki95/video-clip-tagger/internal/storage"
)

// downloadArchive godoc
// @Summary Download the clips of a job
// @Description Streams the ZIP archive of a completed job, or redirects to it when archives are published to object storage.
// @Tags Downloads
// @Produce application/zip
// @Param id path string true "Job ID"
// @Success 200 {file} application/zip "ZIP file containing all clips"
// @Success 302 "Redirect to the published archive"
// @Failure 400 {object} ErrorResponse "Job is not completed yet"
// @Failure 404 {object} ErrorResponse "Job or archive not found"
// @Router /api/jobs/{id}/download [get]
func (s *Server) downloadArchive(c *gin.Context) {
	jobID := c.Param("id")

	jobStatus, err := s.jobManager.GetJob(jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("%v: %s", job.ErrNotFound, jobID)})
		return
	}

	if jobStatus.Status != job.StatusCompleted {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: ErrJobNotCompleted.Error()})
		return
	}

	if storage.IsRemote(jobStatus.Archive) {
		c.Redirect(http.StatusFound, jobStatus.Archive)
		return
	}

	if _, err := os.Stat(jobStatus.Archive); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Archive not found"})
		return
	}

	fileName := archive.Name(SanitizeFilename(pipeline.Stem(jobStatus.Request.Filename)))
	c.FileAttachment(jobStatus.Archive, fileName)
}
