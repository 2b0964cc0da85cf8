package domain

// Window represents a fixed-length time range of the source video.
// The last window of a run may be shorter than the others.
type Window struct {
	Index  int     `json:"index"`
	Label  string  `json:"label"`
	Start  float64 `json:"start"`
	Length float64 `json:"length"`
}

// Clip ties a window to the files produced for it.
type Clip struct {
	Window     Window `json:"window"`
	AudioPath  string `json:"-"`
	StillPath  string `json:"-"`
	OutputPath string `json:"output_path"`
}

// Tags holds the metadata written onto a tagged output.
type Tags struct {
	Album  string `json:"album"`
	Artist string `json:"artist,omitempty"`
	Title  string `json:"title,omitempty"`
	Track  string `json:"track"`
}
