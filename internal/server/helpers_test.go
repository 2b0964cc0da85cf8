package server

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaki95/video-clip-tagger/internal/job"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"holiday.mp4", "holiday.mp4"},
		{"Track/With\\Slash.mov", "Track_With_Slash.mov"},
		{"clip:with*special?chars.mkv", "clip_with_special_chars.mkv"},
		{"  spaced clip.mp4  ", "spaced clip.mp4"},
		{"pipes<>and|more.webm", "pipes__and_more.webm"},
		{"...", "untitled"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFilename(tt.input))
		})
	}
}

func TestCleanupInterval(t *testing.T) {
	assert.Equal(t, time.Hour, cleanupInterval(24*time.Hour))
	assert.Equal(t, 15*time.Minute, cleanupInterval(30*time.Minute))
	assert.Equal(t, time.Minute, cleanupInterval(10*time.Second))
}

func TestCheckVideo(t *testing.T) {
	dir := t.TempDir()

	video := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(video, mp4Header, 0644))
	assert.NoError(t, checkVideo(video))

	text := filepath.Join(dir, "clip.txt")
	require.NoError(t, os.WriteFile(text, []byte("hello"), 0644))
	assert.ErrorIs(t, checkVideo(text), ErrNotVideo)

	assert.Error(t, checkVideo(filepath.Join(dir, "missing.mp4")))
}

func TestPipelineRequestDefaults(t *testing.T) {
	s := newTestServer(t, &mockRunner{}, nil)
	s.cfg.Clip.Artist = "Default Artist"

	req := s.pipelineRequest("/tmp/in/holiday.mp4", UploadForm{Album: "  Summer "})
	assert.Equal(t, "/tmp/in/holiday.mp4", req.InputPath)
	assert.Equal(t, s.cfg.Server.OutputDir, req.OutputRoot)
	assert.Equal(t, 2, req.ClipSeconds)
	assert.Equal(t, "Summer", req.Album)
	assert.Equal(t, "Default Artist", req.Artist)

	req = s.pipelineRequest("/tmp/in/holiday.mp4", UploadForm{Artist: "Band", ClipSeconds: 5})
	assert.Equal(t, 5, req.ClipSeconds)
	assert.Equal(t, "Band", req.Artist)
	assert.Empty(t, req.Album)
}

func TestCleanupOldFiles(t *testing.T) {
	s := newTestServer(t, &mockRunner{}, nil)
	now := time.Now()
	old := now.Add(-48 * time.Hour)

	for _, dir := range []string{s.cfg.Server.OutputDir, s.cfg.Server.UploadDir} {
		require.NoError(t, os.MkdirAll(dir, 0755))
	}

	oldArchive := filepath.Join(s.cfg.Server.OutputDir, "old.zip")
	freshArchive := filepath.Join(s.cfg.Server.OutputDir, "fresh.zip")
	oldUpload := filepath.Join(s.cfg.Server.UploadDir, "abandoned")
	require.NoError(t, os.WriteFile(oldArchive, []byte("zip"), 0644))
	require.NoError(t, os.WriteFile(freshArchive, []byte("zip"), 0644))
	require.NoError(t, os.MkdirAll(oldUpload, 0755))
	require.NoError(t, os.Chtimes(oldArchive, old, old))
	require.NoError(t, os.Chtimes(oldUpload, old, old))

	assert.Equal(t, 2, s.cleanupOldFiles(now))

	assert.NoFileExists(t, oldArchive)
	assert.NoDirExists(t, oldUpload)
	assert.FileExists(t, freshArchive)
}

func TestCleanupSweepsCrashedRunIntermediates(t *testing.T) {
	s := newTestServer(t, &mockRunner{}, nil)
	now := time.Now()
	old := now.Add(-48 * time.Hour)

	// a run killed mid-way leaves its work directory behind
	crashedWork := filepath.Join(s.cfg.Server.OutputDir, "holiday", ".work")
	require.NoError(t, os.MkdirAll(crashedWork, 0755))
	staleClip := filepath.Join(crashedWork, "clip_1.mp3")
	staleShot := filepath.Join(crashedWork, "screenshot_1.jpg")
	output := filepath.Join(s.cfg.Server.OutputDir, "holiday", "holiday_1.mp3")
	for _, path := range []string{staleClip, staleShot, output} {
		require.NoError(t, os.WriteFile(path, []byte("data"), 0644))
	}
	require.NoError(t, os.Chtimes(staleClip, old, old))
	require.NoError(t, os.Chtimes(staleShot, old, old))

	// a run still in progress keeps its fresh intermediates
	activeWork := filepath.Join(s.cfg.Server.OutputDir, "beach", ".work")
	require.NoError(t, os.MkdirAll(activeWork, 0755))
	activeClip := filepath.Join(activeWork, "clip_1.mp3")
	require.NoError(t, os.WriteFile(activeClip, []byte("data"), 0644))

	assert.Equal(t, 2, s.cleanupOldFiles(now))

	assert.NoFileExists(t, staleClip)
	assert.NoFileExists(t, staleShot)
	assert.NoDirExists(t, crashedWork)
	assert.FileExists(t, output)
	assert.FileExists(t, activeClip)
}

func TestCleanupExpiredJobs(t *testing.T) {
	s := newTestServer(t, &mockRunner{}, nil)

	archivePath := filepath.Join(t.TempDir(), "holiday.zip")
	require.NoError(t, os.WriteFile(archivePath, []byte("zip"), 0644))

	done, _ := s.jobManager.CreateJob(job.Request{Filename: "holiday.mp4"})
	require.NoError(t, s.jobManager.CompleteJob(done.ID, []string{"holiday_1.mp3"}, archivePath, ""))
	remote, _ := s.jobManager.CreateJob(job.Request{Filename: "remote.mp4"})
	require.NoError(t, s.jobManager.CompleteJob(remote.ID, nil, "https://cdn.example.com/remote.zip", ""))
	failed, _ := s.jobManager.CreateJob(job.Request{Filename: "broken.mp4"})
	require.NoError(t, s.jobManager.FailJob(failed.ID, errors.New("boom")))
	running, _ := s.jobManager.CreateJob(job.Request{Filename: "running.mp4"})

	// nothing has expired yet
	assert.Zero(t, s.cleanupOldFiles(time.Now()))
	assert.FileExists(t, archivePath)

	assert.Equal(t, 1, s.cleanupOldFiles(time.Now().Add(s.cfg.Server.FileTTL+time.Minute)))
	assert.NoFileExists(t, archivePath)

	for _, id := range []string{done.ID, remote.ID, failed.ID} {
		_, err := s.jobManager.GetJob(id)
		assert.ErrorIs(t, err, job.ErrNotFound)
	}
	_, err := s.jobManager.GetJob(running.ID)
	assert.NoError(t, err)
}
