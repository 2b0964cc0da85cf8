package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaki95/video-clip-tagger/config"
	"github.com/jaki95/video-clip-tagger/internal/pipeline"
	"github.com/jaki95/video-clip-tagger/internal/progress"
)

type fakeRunner struct {
	requests []pipeline.Request
	clips    int
	err      error
}

func (f *fakeRunner) Run(ctx context.Context, req pipeline.Request, tracker *progress.Tracker) (*pipeline.Result, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		tracker.SetError(f.err)
		return nil, f.err
	}

	runDir := filepath.Join(req.OutputRoot, pipeline.Stem(req.InputPath))
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, err
	}

	result := &pipeline.Result{RunDir: runDir}
	for i := 1; i <= f.clips; i++ {
		out := filepath.Join(runDir, fmt.Sprintf("%s_%d.mp3", pipeline.Stem(req.InputPath), i))
		if err := os.WriteFile(out, []byte("tagged"), 0644); err != nil {
			return nil, err
		}
		result.Outputs = append(result.Outputs, out)
		tracker.UpdateProgress(progress.StageTagging, progress.Scale(progress.ProgressTagStart, progress.ProgressPackageStart, i, f.clips), "Tagged")
	}
	tracker.UpdateProgress(progress.StageComplete, progress.ProgressComplete, "Done")
	return result, nil
}

func execute(t *testing.T, runner *fakeRunner, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newCommand(&app{
		in:          strings.NewReader(stdin),
		out:         &out,
		progressOut: io.Discard,
		newRunner:   func(cfg *config.Config) Runner { return runner },
	})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestFlagsSkipPrompts(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{clips: 3}

	out, err := execute(t, runner, "",
		"-i", "holiday.mp4", "-s", "3", "-a", "Summer", "-r", "Band", "-o", dir, "--frames", "--keep-partial")
	require.NoError(t, err)

	require.Len(t, runner.requests, 1)
	assert.Equal(t, pipeline.Request{
		InputPath:   "holiday.mp4",
		OutputRoot:  dir,
		ClipSeconds: 3,
		Album:       "Summer",
		Artist:      "Band",
		CountFrames: true,
		KeepPartial: true,
	}, runner.requests[0])
	assert.NotContains(t, out, "Enter Album")
	assert.Contains(t, out, "Created 3 tagged clips in "+filepath.Join(dir, "holiday"))
}

func TestDefaultsFromConfig(t *testing.T) {
	runner := &fakeRunner{clips: 1}

	_, err := execute(t, runner, "", "--input", "holiday.mp4", "--output", t.TempDir())
	require.NoError(t, err)

	require.Len(t, runner.requests, 1)
	assert.Equal(t, 2, runner.requests[0].ClipSeconds)
	assert.Empty(t, runner.requests[0].Album)
}

func TestPromptsForMissingValues(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{clips: 2}

	out, err := execute(t, runner, "Summer\n\nholiday.mp4\nabc\n4\n", "--output", dir)
	require.NoError(t, err)

	require.Len(t, runner.requests, 1)
	req := runner.requests[0]
	assert.Equal(t, "Summer", req.Album)
	assert.Equal(t, "holiday.mp4", req.InputPath)
	assert.Equal(t, 4, req.ClipSeconds)

	assert.Contains(t, out, "Enter Album")
	assert.Contains(t, out, `"abc" is not a positive number of seconds`)
}

func TestPromptSkipsValuesGivenAsFlags(t *testing.T) {
	runner := &fakeRunner{clips: 1}

	out, err := execute(t, runner, "holiday.mp4\n", "-a", "Summer", "-s", "5", "-o", t.TempDir())
	require.NoError(t, err)

	require.Len(t, runner.requests, 1)
	assert.Equal(t, "Summer", runner.requests[0].Album)
	assert.Equal(t, 5, runner.requests[0].ClipSeconds)
	assert.NotContains(t, out, "Enter Album")
	assert.NotContains(t, out, "Seconds per clip")
}

func TestMissingInputFails(t *testing.T) {
	runner := &fakeRunner{}

	_, err := execute(t, runner, "Summer\n", "-o", t.TempDir())
	assert.ErrorIs(t, err, ErrNoInput)
	assert.Empty(t, runner.requests)
}

func TestRunErrorIsReturned(t *testing.T) {
	runner := &fakeRunner{err: errors.New("failed to probe holiday.mp4: exit status 1")}

	_, err := execute(t, runner, "", "-i", "holiday.mp4", "-o", t.TempDir())
	assert.EqualError(t, err, "failed to probe holiday.mp4: exit status 1")
}

func TestZipReplacesRunDirectory(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{clips: 2}

	out, err := execute(t, runner, "", "-i", "holiday.mp4", "-o", dir, "--zip")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "holiday.zip"))
	assert.NoDirExists(t, filepath.Join(dir, "holiday"))
	assert.Contains(t, out, "with 2 tagged clips")
}

func TestUnknownConfigFile(t *testing.T) {
	runner := &fakeRunner{}

	_, err := execute(t, runner, "", "-i", "holiday.mp4", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to load config")
	assert.Empty(t, runner.requests)
}

func TestPrompterSeconds(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"blank keeps default", "\n", 2},
		{"eof keeps default", "", 2},
		{"valid", "7\n", 7},
		{"retries until valid", "0\n-3\nten\n9\n", 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPrompter(strings.NewReader(tt.input), io.Discard)
			got, err := p.seconds(2)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestPrompterInputSkipsBlankLines(t *testing.T) {
	p := newPrompter(strings.NewReader("\n  \n clip.mov \n"), io.Discard)
	got, err := p.input()
	require.NoError(t, err)
	assert.Equal(t, "clip.mov", got)
}
