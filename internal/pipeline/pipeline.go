// Package pipeline runs one conversion: probe the source, plan the windows,
// extract an audio clip and a still for every window, then tag each clip
// with its still as cover art.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gobwas/glob"
	"github.com/google/uuid"

	"github.com/jaki95/video-clip-tagger/internal/domain"
	"github.com/jaki95/video-clip-tagger/internal/media"
	"github.com/jaki95/video-clip-tagger/internal/planner"
	"github.com/jaki95/video-clip-tagger/internal/progress"
)

const (
	workDirName    = ".work"
	defaultStem    = "clips"
	maxDirAttempts = 5
)

var ErrInvalidRequest = errors.New("invalid request")

// intermediates matches every file the extraction phase writes.
var intermediates = glob.MustCompile("*.{mp3,jpg}")

// Request describes a single run.
type Request struct {
	InputPath   string `validate:"required"`
	OutputRoot  string `validate:"required"`
	ClipSeconds int    `validate:"min=1,max=86400"`
	Album       string `validate:"max=256"`
	Artist      string `validate:"max=256"`
	// CountFrames decodes the whole video to count frames exactly instead of
	// trusting the container metadata.
	CountFrames bool
	// KeepPartial keeps tagged outputs of a failed run on disk.
	KeepPartial bool
}

// Result is what a successful run produced.
type Result struct {
	RunDir  string           `json:"run_dir"`
	Outputs []string         `json:"outputs"`
	Source  media.SourceInfo `json:"source"`
	Windows []domain.Window  `json:"windows"`
}

// Pipeline drives a media.Tool through a run.
type Pipeline struct {
	tool     media.Tool
	validate *validator.Validate
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithValidator shares a validator instance, so cached struct metadata is
// reused across the server and the pipeline.
func WithValidator(v *validator.Validate) Option {
	return func(p *Pipeline) {
		p.validate = v
	}
}

// New creates a pipeline around tool.
func New(tool media.Tool, opts ...Option) *Pipeline {
	p := &Pipeline{
		tool:     tool,
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run holds the mutable state of one Run call.
type run struct {
	req        Request
	stem       string
	runDir     string
	workDir    string
	createdDir bool
	clips      []domain.Clip
	outputs    []string
	tracker    *progress.Tracker
}

// Run executes req. tracker may be nil.
func (p *Pipeline) Run(ctx context.Context, req Request, tracker *progress.Tracker) (*Result, error) {
	if tracker == nil {
		tracker = progress.NewTracker()
	}

	if err := p.validate.Struct(req); err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		tracker.SetError(err)
		return nil, err
	}

	r := &run{
		req:     req,
		stem:    Stem(req.InputPath),
		tracker: tracker,
	}
	if r.req.Album == "" {
		r.req.Album = r.stem
	}

	result, err := p.execute(ctx, r)
	if err != nil {
		r.rollback()
		tracker.SetError(err)
		return nil, err
	}

	tracker.UpdateProgress(progress.StageComplete, progress.ProgressComplete, fmt.Sprintf("Created %d tagged clips", len(result.Outputs)))
	return result, nil
}

func (p *Pipeline) execute(ctx context.Context, r *run) (*Result, error) {
	r.tracker.UpdateProgress(progress.StageProbing, progress.ProgressProbeStart, "Probing source video...")

	info, err := p.tool.Probe(ctx, r.req.InputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", r.req.InputPath, err)
	}

	if r.req.CountFrames {
		if counter, ok := p.tool.(media.FrameCounter); ok {
			frames, err := counter.CountFrames(ctx, r.req.InputPath)
			if err != nil {
				return nil, fmt.Errorf("failed to count frames: %w", err)
			}
			info.Frames = frames
		}
	}

	windows, err := planner.Plan(info.Duration, r.req.ClipSeconds)
	if err != nil {
		return nil, fmt.Errorf("failed to plan windows: %w", err)
	}

	slog.Info("Planned run",
		"input", r.req.InputPath,
		"duration", info.Duration,
		"frames", info.Frames,
		"clips", len(windows),
		"clip_seconds", r.req.ClipSeconds,
	)

	if err := r.prepareDirs(); err != nil {
		return nil, err
	}

	if err := p.extract(ctx, r, windows); err != nil {
		return nil, err
	}

	if err := p.tag(ctx, r); err != nil {
		return nil, err
	}

	if err := os.RemoveAll(r.workDir); err != nil {
		slog.Warn("Failed to remove work directory", "dir", r.workDir, "error", err)
	}

	return &Result{
		RunDir:  r.runDir,
		Outputs: r.outputs,
		Source:  info,
		Windows: windows,
	}, nil
}

// prepareDirs claims a run directory nobody else owns. os.Mkdir fails on an
// existing directory, so two runs of the same stem never share one.
func (r *run) prepareDirs() error {
	if err := os.MkdirAll(r.req.OutputRoot, 0755); err != nil {
		return fmt.Errorf("failed to create output root: %w", err)
	}

	base := filepath.Join(r.req.OutputRoot, r.stem)
	dir := base
	for attempt := 1; ; attempt++ {
		err := os.Mkdir(dir, 0755)
		if err == nil {
			break
		}
		if !os.IsExist(err) || attempt >= maxDirAttempts {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		dir = fmt.Sprintf("%s-%s", base, uuid.NewString()[:8])
	}
	r.runDir = dir
	r.createdDir = true

	r.workDir = filepath.Join(r.runDir, workDirName)
	if err := os.MkdirAll(r.workDir, 0755); err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	return nil
}

// extract writes the raw clip and still for every window. Any failure
// aborts the run.
func (p *Pipeline) extract(ctx context.Context, r *run, windows []domain.Window) error {
	total := len(windows)
	r.tracker.UpdateProgress(progress.StageExtracting, progress.ProgressExtractStart, fmt.Sprintf("Extracting %d clips...", total))

	for i, w := range windows {
		if err := ctx.Err(); err != nil {
			return err
		}

		clip := domain.Clip{
			Window:     w,
			AudioPath:  filepath.Join(r.workDir, fmt.Sprintf("clip_%s.mp3", w.Label)),
			StillPath:  filepath.Join(r.workDir, fmt.Sprintf("screenshot_%s.jpg", w.Label)),
			OutputPath: filepath.Join(r.runDir, fmt.Sprintf("%s_%s.mp3", r.stem, w.Label)),
		}

		if err := p.tool.ExtractAudio(ctx, r.req.InputPath, w.Start, w.Length, clip.AudioPath); err != nil {
			return fmt.Errorf("failed to extract audio for clip %d/%d: %w", w.Index, total, err)
		}
		if err := p.tool.ExtractStill(ctx, r.req.InputPath, w.Start, clip.StillPath); err != nil {
			return fmt.Errorf("failed to extract still for clip %d/%d: %w", w.Index, total, err)
		}
		r.clips = append(r.clips, clip)

		r.tracker.UpdateWindowProgress(
			progress.StageExtracting,
			progress.Scale(progress.ProgressExtractStart, progress.ProgressTagStart, i+1, total),
			fmt.Sprintf("Extracted clip %d/%d", w.Index, total),
			progress.WindowDetails{Index: w.Index, Label: w.Label, Total: total, Processed: i + 1},
		)
	}

	return nil
}

// tag muxes every extracted clip with its still and removes both
// intermediates once the tagged output exists.
func (p *Pipeline) tag(ctx context.Context, r *run) error {
	total := len(r.clips)
	r.tracker.UpdateProgress(progress.StageTagging, progress.ProgressTagStart, fmt.Sprintf("Tagging %d clips...", total))

	for i, clip := range r.clips {
		if err := ctx.Err(); err != nil {
			return err
		}

		tags := domain.Tags{
			Album:  r.req.Album,
			Artist: r.req.Artist,
			Title:  fmt.Sprintf("%s %s", r.req.Album, clip.Window.Label),
			Track:  planner.TrackTag(clip.Window, total),
		}

		if err := p.tool.Tag(ctx, clip.AudioPath, clip.StillPath, clip.OutputPath, tags); err != nil {
			return fmt.Errorf("failed to tag clip %d/%d: %w", clip.Window.Index, total, err)
		}
		r.outputs = append(r.outputs, clip.OutputPath)

		for _, path := range []string{clip.AudioPath, clip.StillPath} {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				slog.Warn("Failed to remove intermediate file", "path", path, "error", err)
			}
		}

		r.tracker.UpdateWindowProgress(
			progress.StageTagging,
			progress.Scale(progress.ProgressTagStart, progress.ProgressPackageStart, i+1, total),
			fmt.Sprintf("Tagged clip %d/%d", clip.Window.Index, total),
			progress.WindowDetails{Index: clip.Window.Index, Label: clip.Window.Label, Total: total, Processed: i + 1},
		)
	}

	return nil
}

// rollback removes what a failed run left behind.
func (r *run) rollback() {
	if r.workDir != "" {
		if err := os.RemoveAll(r.workDir); err != nil {
			slog.Warn("Failed to remove work directory", "dir", r.workDir, "error", err)
		}
	}

	if r.req.KeepPartial && len(r.outputs) > 0 {
		slog.Info("Keeping partial outputs", "dir", r.runDir, "count", len(r.outputs))
		return
	}

	for _, out := range r.outputs {
		if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove partial output", "path", out, "error", err)
		}
	}
	r.outputs = nil

	if r.createdDir {
		if err := os.RemoveAll(r.runDir); err != nil {
			slog.Warn("Failed to remove run directory", "dir", r.runDir, "error", err)
		}
	}
}

// SweepIntermediates deletes extraction leftovers directly inside dir that
// were last modified before cutoff and returns how many files were removed.
func SweepIntermediates(dir string, cutoff time.Time) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !intermediates.Match(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed
}

// SweepWorkDirs cleans the work directories of runs below root that a killed
// process never rolled back. Intermediates older than cutoff are removed,
// then the work directory itself once it is empty. Tagged outputs are left
// alone.
func SweepWorkDirs(root string, cutoff time.Time) int {
	runs, err := os.ReadDir(root)
	if err != nil {
		return 0
	}

	removed := 0
	for _, run := range runs {
		if !run.IsDir() {
			continue
		}
		workDir := filepath.Join(root, run.Name(), workDirName)
		n := SweepIntermediates(workDir, cutoff)
		if n == 0 {
			continue
		}
		slog.Info("Removed stale intermediates", "dir", workDir, "count", n)
		removed += n
		// only succeeds when nothing else is left inside
		os.Remove(workDir)
	}
	return removed
}

// Stem is the input file name without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		return defaultStem
	}
	return stem
}
