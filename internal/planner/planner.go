// Package planner turns a source duration into the ordered list of windows
// a run extracts, labelled so that the outputs sort lexically.
package planner

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/jaki95/video-clip-tagger/internal/domain"
)

var (
	ErrInvalidWindow   = errors.New("window length must be a positive number of seconds")
	ErrInvalidDuration = errors.New("duration must be a positive, finite number of seconds")
)

// remainderEpsilon absorbs float noise in probed durations: 9.0000001s with a
// 3s window is three windows, not four.
const remainderEpsilon = 0.001

// Plan splits duration into windows of windowSeconds. A trailing remainder is
// kept as a shorter final window.
func Plan(duration float64, windowSeconds int) ([]domain.Window, error) {
	if windowSeconds <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, windowSeconds)
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDuration, duration)
	}

	count := Count(duration, windowSeconds)
	width := LabelWidth(count)
	step := float64(windowSeconds)

	windows := make([]domain.Window, 0, count)
	for i := 0; i < count; i++ {
		start := float64(i) * step
		length := step
		if i == count-1 {
			length = duration - start
		}
		windows = append(windows, domain.Window{
			Index:  i + 1,
			Label:  Label(i+1, width),
			Start:  start,
			Length: length,
		})
	}

	return windows, nil
}

// Count returns ceil(duration / windowSeconds).
func Count(duration float64, windowSeconds int) int {
	step := float64(windowSeconds)
	full := math.Floor(duration / step)
	if duration-full*step > remainderEpsilon {
		return int(full) + 1
	}
	if full < 1 {
		return 1
	}
	return int(full)
}

// LabelWidth is the number of decimal digits in count.
func LabelWidth(count int) int {
	if count < 1 {
		return 1
	}
	return len(strconv.Itoa(count))
}

// Label zero-pads index to width digits.
func Label(index, width int) string {
	return fmt.Sprintf("%0*d", width, index)
}

// TrackTag formats the ID3 track number for window w in a run of total windows.
func TrackTag(w domain.Window, total int) string {
	return fmt.Sprintf("%d/%d", w.Index, total)
}
