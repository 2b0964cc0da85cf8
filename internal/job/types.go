package job

import (
	"context"
	"time"

	"github.com/jaki95/video-clip-tagger/internal/progress"
)

// Status represents the current state of a processing job
type Status struct {
	ID          string           `json:"id"`
	Status      string           `json:"status"`
	Progress    float64          `json:"progress"`
	Message     string           `json:"message"`
	Error       string           `json:"error,omitempty"`
	Request     Request          `json:"request"`
	Results     []string         `json:"results,omitempty"`
	Events      []progress.Event `json:"events"`
	StartTime   time.Time        `json:"startTime"`
	EndTime     *time.Time       `json:"endTime,omitempty"`
	DownloadURL string           `json:"downloadUrl,omitempty"`

	// Archive is the published location of the ZIP: a local path or a URL
	Archive    string `json:"-"`
	cancelFunc context.CancelFunc
}

// Request holds the form values a job was submitted with
type Request struct {
	Filename    string `json:"filename"`
	Album       string `json:"album"`
	Artist      string `json:"artist,omitempty"`
	ClipSeconds int    `json:"clipSeconds"`
}

// Response represents the response for job status
type Response struct {
	Jobs       []*Status `json:"jobs"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalJobs  int       `json:"totalJobs"`
	TotalPages int       `json:"totalPages"`
}

// Constants for job status
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// Constants for pagination
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// maxEvents caps the history kept per job; a long video produces two
// window events per clip.
const maxEvents = 200

// Finished reports whether the job reached a terminal state
func (s *Status) Finished() bool {
	switch s.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// snapshot copies the status so callers can read it without holding the
// manager lock
func (s *Status) snapshot() *Status {
	c := *s
	c.Results = append([]string(nil), s.Results...)
	c.Events = append([]progress.Event{}, s.Events...)
	if s.EndTime != nil {
		end := *s.EndTime
		c.EndTime = &end
	}
	c.cancelFunc = nil
	return &c
}
