package job

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jaki95/video-clip-tagger/internal/progress"
)

// Manager handles job management
type Manager struct {
	mu   sync.RWMutex
	jobs map[string]*Status
}

// NewManager creates a new job manager
func NewManager() *Manager {
	return &Manager{
		jobs: make(map[string]*Status),
	}
}

// CreateJob creates a new job. The returned context is cancelled as soon
// as the job finishes, including by CancelJob.
func (m *Manager) CreateJob(req Request) (*Status, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())

	job := &Status{
		ID:         uuid.NewString(),
		Status:     StatusPending,
		Progress:   0,
		Message:    "Job created",
		Request:    req,
		Events:     []progress.Event{},
		StartTime:  time.Now(),
		cancelFunc: cancel,
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	return job.snapshot(), ctx
}

// GetJob retrieves a copy of a job by ID
func (m *Manager) GetJob(jobID string) (*Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return job.snapshot(), nil
}

// StartJob marks a pending job as processing
func (m *Manager) StartJob(jobID string) error {
	return m.update(jobID, func(job *Status) error {
		if job.Status != StatusPending {
			return fmt.Errorf("%w: %s", ErrInvalidState, job.Status)
		}
		job.Status = StatusProcessing
		job.Message = "Processing started"
		return nil
	})
}

// RecordEvent stores a progress event on a running job
func (m *Manager) RecordEvent(jobID string, event progress.Event) error {
	return m.update(jobID, func(job *Status) error {
		if job.Finished() {
			return nil
		}
		if event.Stage != progress.StageError {
			job.Progress = event.Progress
			job.Message = event.Message
		}
		job.Events = append(job.Events, event)
		if len(job.Events) > maxEvents {
			job.Events = job.Events[len(job.Events)-maxEvents:]
		}
		return nil
	})
}

// CompleteJob marks a job as completed. A job cancelled in the meantime
// stays cancelled.
func (m *Manager) CompleteJob(jobID string, results []string, archive, downloadURL string) error {
	return m.update(jobID, func(job *Status) error {
		if job.Status == StatusCancelled {
			return fmt.Errorf("%w: %s", ErrInvalidState, job.Status)
		}
		job.Status = StatusCompleted
		job.Progress = progress.ProgressComplete
		job.Message = "Processing completed successfully"
		job.Results = results
		job.Archive = archive
		job.DownloadURL = downloadURL
		job.finish()
		return nil
	})
}

// FailJob marks a job as failed
func (m *Manager) FailJob(jobID string, err error) error {
	return m.update(jobID, func(job *Status) error {
		if job.Status == StatusCancelled {
			return nil
		}
		job.Status = StatusFailed
		job.Error = err.Error()
		job.Message = "Processing failed"
		job.finish()
		return nil
	})
}

// CancelJob cancels a job
func (m *Manager) CancelJob(jobID string) error {
	return m.update(jobID, func(job *Status) error {
		if job.Status != StatusProcessing && job.Status != StatusPending {
			return fmt.Errorf("%w: %s", ErrInvalidState, job.Status)
		}

		job.Status = StatusCancelled
		job.Message = "Job cancelled by user"
		job.finish()
		return nil
	})
}

// RemoveExpired drops finished jobs that ended before cutoff and returns
// them so the caller can delete their files
func (m *Manager) RemoveExpired(cutoff time.Time) []*Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []*Status
	for id, job := range m.jobs {
		if job.EndTime == nil || !job.EndTime.Before(cutoff) {
			continue
		}
		removed = append(removed, job.snapshot())
		delete(m.jobs, id)
	}
	return removed
}

// ListJobs lists all jobs with pagination, newest first
func (m *Manager) ListJobs(page, pageSize int) *Response {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}

	m.mu.RLock()
	jobs := make([]*Status, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job.snapshot())
	}
	m.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartTime.After(jobs[j].StartTime)
	})

	totalPages := (len(jobs) + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	end := start + pageSize

	if start >= len(jobs) {
		return &Response{
			Jobs:       []*Status{},
			Page:       page,
			PageSize:   pageSize,
			TotalJobs:  len(jobs),
			TotalPages: totalPages,
		}
	}

	if end > len(jobs) {
		end = len(jobs)
	}

	return &Response{
		Jobs:       jobs[start:end],
		Page:       page,
		PageSize:   pageSize,
		TotalJobs:  len(jobs),
		TotalPages: totalPages,
	}
}

// CancelAll cancels every job that has not finished, used on shutdown
func (m *Manager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.jobs {
		if job.Finished() {
			continue
		}
		job.Status = StatusCancelled
		job.Message = "Server shutting down"
		job.finish()
	}
}

func (m *Manager) update(jobID string, fn func(*Status) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return fn(job)
}

// finish stamps the end time and releases the job's context, whichever way
// the job ended
func (s *Status) finish() {
	endTime := time.Now()
	s.EndTime = &endTime
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
}
