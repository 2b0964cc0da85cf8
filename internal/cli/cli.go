// Package cli is the command-line surface of the clip tagger.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/jaki95/video-clip-tagger/config"
	"github.com/jaki95/video-clip-tagger/internal/archive"
	"github.com/jaki95/video-clip-tagger/internal/media"
	"github.com/jaki95/video-clip-tagger/internal/pipeline"
	"github.com/jaki95/video-clip-tagger/internal/progress"
)

// Runner executes one conversion run
type Runner interface {
	Run(ctx context.Context, req pipeline.Request, tracker *progress.Tracker) (*pipeline.Result, error)
}

type options struct {
	configPath  string
	input       string
	album       string
	artist      string
	output      string
	seconds     int
	countFrames bool
	keepPartial bool
	zip         bool
}

type app struct {
	in          io.Reader
	out         io.Writer
	progressOut io.Writer
	newRunner   func(cfg *config.Config) Runner
}

// NewCommand returns the clipper command wired to the terminal and ffmpeg.
func NewCommand() *cobra.Command {
	return newCommand(&app{
		in:          os.Stdin,
		out:         os.Stdout,
		progressOut: ansi.NewAnsiStdout(),
		newRunner: func(cfg *config.Config) Runner {
			return pipeline.New(media.NewFFmpeg(media.Config{
				FFmpegPath:   cfg.FFmpeg.FFmpegPath,
				FFprobePath:  cfg.FFmpeg.FFprobePath,
				AudioBitrate: cfg.FFmpeg.AudioBitrate,
			}))
		},
	})
}

func newCommand(a *app) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "clipper",
		Short: "Split a video into tagged MP3 clips",
		Long: `Split a video into fixed-length clips, extract each clip's audio as MP3
and embed a still frame from the clip as cover art, with album, artist and
track number tags.

Run without --input to be prompted for the album, the video and the clip
length.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.input, "input", "i", "", "video file to split")
	flags.IntVarP(&opts.seconds, "seconds", "s", 0, "length of each clip in seconds (default from config)")
	flags.StringVarP(&opts.album, "album", "a", "", "album tag (defaults to the file name)")
	flags.StringVarP(&opts.artist, "artist", "r", "", "artist tag")
	flags.StringVarP(&opts.output, "output", "o", ".", "folder the run directory is created in")
	flags.BoolVar(&opts.countFrames, "frames", false, "count video frames exactly instead of trusting metadata")
	flags.BoolVar(&opts.keepPartial, "keep-partial", false, "keep tagged clips when a run fails")
	flags.BoolVar(&opts.zip, "zip", false, "replace the run directory with a ZIP archive")
	flags.StringVar(&opts.configPath, "config", "", "YAML config file")

	return cmd
}

func (a *app) run(cmd *cobra.Command, opts *options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	slog.SetDefault(cfg.NewLogger(false))

	req, err := a.request(cmd, opts, cfg)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(
		progress.ProgressComplete,
		progressbar.OptionSetWriter(a.progressOut),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetDescription("[cyan][1/2][reset] Probing..."),
	)

	tracker := progress.NewTracker()
	tracker.AddListener(func(event progress.Event) {
		switch event.Stage {
		case progress.StageError:
			return
		case progress.StageTagging, progress.StageComplete:
			bar.Describe(fmt.Sprintf("[cyan][2/2][reset] %s", event.Message))
		default:
			bar.Describe(fmt.Sprintf("[cyan][1/2][reset] %s", event.Message))
		}
		_ = bar.Set(int(event.Progress))
	})

	result, err := a.newRunner(cfg).Run(cmd.Context(), req, tracker)
	_ = bar.Finish()
	fmt.Fprintln(a.progressOut)
	if err != nil {
		return err
	}

	if !opts.zip {
		fmt.Fprintf(a.out, "Created %d tagged clips in %s\n", len(result.Outputs), result.RunDir)
		return nil
	}

	zipPath := filepath.Join(filepath.Dir(result.RunDir), archive.Name(filepath.Base(result.RunDir)))
	if err := archive.WriteFile(zipPath, result.Outputs); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	if err := os.RemoveAll(result.RunDir); err != nil {
		slog.Warn("Failed to remove run directory", "dir", result.RunDir, "error", err)
	}
	fmt.Fprintf(a.out, "Created %s with %d tagged clips\n", zipPath, len(result.Outputs))
	return nil
}

// request merges flags, prompts and config defaults. Prompts are only
// shown when no input video was given on the command line.
func (a *app) request(cmd *cobra.Command, opts *options, cfg *config.Config) (pipeline.Request, error) {
	req := pipeline.Request{
		InputPath:   opts.input,
		OutputRoot:  opts.output,
		ClipSeconds: opts.seconds,
		Album:       opts.album,
		Artist:      opts.artist,
		CountFrames: opts.countFrames,
		KeepPartial: opts.keepPartial,
	}
	if req.Artist == "" {
		req.Artist = cfg.Clip.Artist
	}

	flags := cmd.Flags()
	if req.InputPath == "" {
		p := newPrompter(a.in, a.out)

		var err error
		if !flags.Changed("album") {
			if req.Album, err = p.album(); err != nil {
				return req, err
			}
		}
		if req.InputPath, err = p.input(); err != nil {
			return req, err
		}
		if !flags.Changed("seconds") {
			if req.ClipSeconds, err = p.seconds(cfg.Clip.Seconds); err != nil {
				return req, err
			}
		}
	}

	if !flags.Changed("seconds") && req.ClipSeconds == 0 {
		req.ClipSeconds = cfg.Clip.Seconds
	}
	return req, nil
}
