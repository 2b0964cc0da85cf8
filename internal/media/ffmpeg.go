package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	ffmpeggo "github.com/u2takey/ffmpeg-go"

	"github.com/jaki95/video-clip-tagger/internal/domain"
)

// Default tool settings
const (
	defaultFFmpegPath   = "ffmpeg"
	defaultFFprobePath  = "ffprobe"
	defaultAudioBitrate = "192k"
	defaultID3Version   = "3"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrFileEmpty    = errors.New("file is empty")
	ErrInvalidPath  = errors.New("invalid path")
	ErrInvalidRange = errors.New("invalid time range")
)

// Error wraps a failed ffmpeg/ffprobe invocation with the command line and
// whatever the process printed.
type Error struct {
	Cmd    string
	Output string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ffmpeg error: %s\nCommand: %s\nOutput: %s", e.Err, e.Cmd, e.Output)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError creates an Error with a truncated command line.
func newError(cmd *exec.Cmd, output []byte, err error) error {
	cmdStr := cmd.String()
	if len(cmdStr) > 200 {
		cmdStr = cmdStr[:200] + "..."
	}
	return &Error{
		Cmd:    cmdStr,
		Output: string(output),
		Err:    err,
	}
}

// Config selects the binaries and encoder settings used by FFmpeg.
type Config struct {
	FFmpegPath   string
	FFprobePath  string
	AudioBitrate string
}

// FFmpeg implements Tool by shelling out to ffmpeg.
type FFmpeg struct {
	ffmpegPath   string
	ffprobePath  string
	audioBitrate string

	// probe returns ffprobe's JSON report for a file.
	probe func(ctx context.Context, path string) ([]byte, error)
}

// NewFFmpeg creates an FFmpeg tool. Empty config fields fall back to the
// binaries found on PATH and a 192k MP3 bitrate.
func NewFFmpeg(cfg Config) *FFmpeg {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = defaultFFmpegPath
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = defaultFFprobePath
	}
	if cfg.AudioBitrate == "" {
		cfg.AudioBitrate = defaultAudioBitrate
	}
	f := &FFmpeg{
		ffmpegPath:   cfg.FFmpegPath,
		ffprobePath:  cfg.FFprobePath,
		audioBitrate: cfg.AudioBitrate,
	}
	f.probe = f.ffprobe
	return f
}

func validateFile(path string) error {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("unable to access file: %s: %w", path, err)
	}

	if fileInfo.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInvalidPath, path)
	}

	if fileInfo.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrFileEmpty, path)
	}

	return nil
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// Probe reads the duration and, when the container reports it, the frame
// count of the first video stream.
func (f *FFmpeg) Probe(ctx context.Context, path string) (SourceInfo, error) {
	slog.Debug("Probing source", "input", path)

	if err := validateFile(path); err != nil {
		return SourceInfo{}, fmt.Errorf("probe failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return SourceInfo{}, err
	}

	report, err := f.probe(ctx, path)
	if err != nil {
		return SourceInfo{}, fmt.Errorf("ffprobe %q: %w", path, err)
	}

	return ParseProbe(report)
}

// ffprobe returns the JSON format and stream report for path.
func (f *FFmpeg) ffprobe(ctx context.Context, path string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, f.ffprobePath,
		"-v", "error",
		"-show_format",
		"-show_streams",
		"-of", "json",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var stderr []byte
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr = exitErr.Stderr
		}
		return nil, newError(cmd, stderr, err)
	}
	return output, nil
}

// CountFrames decodes the first video stream and counts its packets.
func (f *FFmpeg) CountFrames(ctx context.Context, path string) (int, error) {
	if err := validateFile(path); err != nil {
		return 0, fmt.Errorf("frame count failed: %w", err)
	}

	cmd := exec.CommandContext(ctx, f.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=nb_read_packets",
		"-of", "csv=p=0",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		var stderr []byte
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr = exitErr.Stderr
		}
		return 0, newError(cmd, stderr, err)
	}

	frames, err := strconv.Atoi(strings.TrimSpace(string(output)))
	if err != nil {
		return 0, fmt.Errorf("invalid frame count %q: %w", strings.TrimSpace(string(output)), err)
	}
	return frames, nil
}

// ExtractAudio cuts [start, start+length) out of input into an MP3 file.
func (f *FFmpeg) ExtractAudio(ctx context.Context, input string, start, length float64, output string) error {
	slog.Debug("Extracting audio segment",
		"input", input,
		"output", output,
		"start", formatSeconds(start),
		"duration", formatSeconds(length),
	)

	if err := validateFile(input); err != nil {
		return fmt.Errorf("audio extraction failed: %w", err)
	}
	if start < 0 || length <= 0 {
		return fmt.Errorf("%w: start=%s length=%s", ErrInvalidRange, formatSeconds(start), formatSeconds(length))
	}
	if err := ensureDir(output); err != nil {
		return err
	}

	return f.run(ctx, f.audioArgs(input, start, length, output))
}

// ExtractStill captures exactly one frame at the given offset.
func (f *FFmpeg) ExtractStill(ctx context.Context, input string, at float64, output string) error {
	slog.Debug("Extracting still frame", "input", input, "output", output, "at", formatSeconds(at))

	if err := validateFile(input); err != nil {
		return fmt.Errorf("still extraction failed: %w", err)
	}
	if at < 0 {
		return fmt.Errorf("%w: at=%s", ErrInvalidRange, formatSeconds(at))
	}
	if err := ensureDir(output); err != nil {
		return err
	}

	return f.run(ctx, f.stillArgs(input, at, output))
}

// Tag remuxes audio with still attached as the front cover and writes the
// album/artist/title/track tags.
func (f *FFmpeg) Tag(ctx context.Context, audio, still, output string, tags domain.Tags) error {
	slog.Debug("Adding metadata and cover art",
		"audio", audio,
		"still", still,
		"output", output,
		"track", tags.Track,
	)

	if err := validateFile(audio); err != nil {
		return fmt.Errorf("tagging failed: %w", err)
	}
	if err := validateFile(still); err != nil {
		return fmt.Errorf("cover art validation failed: %w", err)
	}
	if err := ensureDir(output); err != nil {
		return err
	}

	return f.run(ctx, tagArgs(audio, still, output, tags))
}

func (f *FFmpeg) audioArgs(input string, start, length float64, output string) []string {
	return ffmpeggo.Input(input, ffmpeggo.KwArgs{
		"ss": formatSeconds(start),
		"t":  formatSeconds(length),
	}).Output(output, ffmpeggo.KwArgs{
		"map": "0:a:0",
		"c:a": "libmp3lame",
		"b:a": f.audioBitrate,
		"f":   "mp3",
	}).OverWriteOutput().GetArgs()
}

func (f *FFmpeg) stillArgs(input string, at float64, output string) []string {
	return ffmpeggo.Input(input, ffmpeggo.KwArgs{
		"ss": formatSeconds(at),
	}).Output(output, ffmpeggo.KwArgs{
		"frames:v": "1",
		"q:v":      "2",
		"f":        "image2",
	}).OverWriteOutput().GetArgs()
}

// tagArgs builds the remux command. Stream copy keeps the MP3 bit-exact and
// the JPEG is stored as-is in an APIC frame.
func tagArgs(audio, still, output string, tags domain.Tags) []string {
	args := []string{
		"-y",
		"-i", audio,
		"-i", still,
		"-map", "0:0",
		"-map", "1:0",
		"-c", "copy",
		"-id3v2_version", defaultID3Version,
		"-disposition:v:0", "attached_pic",
		"-metadata:s:v", "title=Album cover",
		"-metadata:s:v", "comment=Cover (front)",
	}

	metadata := []struct{ key, value string }{
		{"album", tags.Album},
		{"artist", tags.Artist},
		{"album_artist", tags.Artist},
		{"title", tags.Title},
		{"track", tags.Track},
	}
	for _, m := range metadata {
		if m.value == "" {
			continue
		}
		args = append(args, "-metadata", fmt.Sprintf("%s=%s", m.key, m.value))
	}

	return append(args, output)
}

func (f *FFmpeg) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return newError(cmd, output, err)
	}
	return nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
