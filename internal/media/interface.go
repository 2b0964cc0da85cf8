// Package media wraps the external ffmpeg/ffprobe binaries. It probes source
// videos, cuts audio sub-ranges, captures still frames and muxes a still into
// an MP3 as ID3 cover art.
package media

import (
	"context"

	"github.com/jaki95/video-clip-tagger/internal/domain"
)

// SourceInfo describes a probed source video.
type SourceInfo struct {
	Duration float64 `json:"duration"`
	Frames   int     `json:"frames,omitempty"`
}

// Tool is the contract with the external multimedia binary: given these
// arguments, produce this output file or fail.
type Tool interface {
	Probe(ctx context.Context, path string) (SourceInfo, error)
	ExtractAudio(ctx context.Context, input string, start, length float64, output string) error
	ExtractStill(ctx context.Context, input string, at float64, output string) error
	Tag(ctx context.Context, audio, still, output string, tags domain.Tags) error
}

// FrameCounter is implemented by tools that can count frames exactly by
// decoding the video stream. It is much slower than Probe.
type FrameCounter interface {
	CountFrames(ctx context.Context, path string) (int, error)
}
