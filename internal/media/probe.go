package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrNoDuration = errors.New("probe report has no usable duration")

type probeReport struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeStream struct {
	CodecType    string         `json:"codec_type"`
	Duration     string         `json:"duration"`
	NbFrames     string         `json:"nb_frames"`
	AvgFrameRate string         `json:"avg_frame_rate"`
	Disposition  map[string]int `json:"disposition"`
}

// ParseProbe converts ffprobe's JSON report into a SourceInfo. The container
// duration wins; the first video stream's duration is the fallback.
func ParseProbe(data []byte) (SourceInfo, error) {
	var report probeReport
	if err := json.Unmarshal(data, &report); err != nil {
		return SourceInfo{}, fmt.Errorf("parse ffprobe JSON: %w", err)
	}

	video := report.primaryVideo()

	duration := parseFloat(report.Format.Duration)
	if duration <= 0 && video != nil {
		duration = parseFloat(video.Duration)
	}
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return SourceInfo{}, ErrNoDuration
	}

	info := SourceInfo{Duration: duration}
	if video != nil {
		if frames, err := strconv.Atoi(video.NbFrames); err == nil && frames > 0 {
			info.Frames = frames
		} else if fps := parseRate(video.AvgFrameRate); fps > 0 {
			info.Frames = int(math.Round(fps * duration))
		}
	}

	return info, nil
}

// primaryVideo skips embedded cover art, which ffprobe also lists as video.
func (r *probeReport) primaryVideo() *probeStream {
	for i := range r.Streams {
		s := &r.Streams[i]
		if s.CodecType == "video" && s.Disposition["attached_pic"] == 0 {
			return s
		}
	}
	return nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// parseRate parses ffprobe rationals such as "30000/1001".
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return parseFloat(s)
	}
	n, d := parseFloat(num), parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}
