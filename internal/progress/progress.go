package progress

import (
	"encoding/json"
	"reflect"
	"sync"
	"time"
)

// Stage represents the current stage of a run
type Stage string

const (
	StageInitializing Stage = "initializing"
	StageProbing      Stage = "probing"
	StageExtracting   Stage = "extracting"
	StageTagging      Stage = "tagging"
	StagePackaging    Stage = "packaging"
	StageComplete     Stage = "complete"
	StageError        Stage = "error"
)

// Percentages at which each stage starts
const (
	ProgressProbeStart   = 0
	ProgressExtractStart = 5
	ProgressTagStart     = 50
	ProgressPackageStart = 95
	ProgressComplete     = 100
)

// Event represents a progress event
type Event struct {
	Stage     Stage          `json:"stage"`
	Progress  float64        `json:"progress"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Window    *WindowDetails `json:"window,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// WindowDetails describes the window that was just processed
type WindowDetails struct {
	Index     int    `json:"index"`
	Label     string `json:"label"`
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
}

// Tracker fans progress updates out to its listeners
type Tracker struct {
	mu        sync.RWMutex
	stage     Stage
	progress  float64
	message   string
	window    *WindowDetails
	err       error
	listeners []func(Event)
}

// NewTracker creates a new Tracker instance
func NewTracker() *Tracker {
	return &Tracker{
		stage:     StageInitializing,
		listeners: make([]func(Event), 0),
	}
}

// AddListener adds a new progress event listener
func (t *Tracker) AddListener(listener func(Event)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, listener)
}

// RemoveListener removes a progress event listener
func (t *Tracker) RemoveListener(listener func(Event)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	listenerPtr := reflect.ValueOf(listener).Pointer()
	for i := range t.listeners {
		if reflect.ValueOf(t.listeners[i]).Pointer() == listenerPtr {
			t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
			break
		}
	}
}

// UpdateProgress updates the progress and notifies all listeners
func (t *Tracker) UpdateProgress(stage Stage, progress float64, message string) {
	t.mu.Lock()
	t.stage = stage
	t.progress = progress
	t.message = message
	t.window = nil
	t.mu.Unlock()

	t.notifyListeners(Event{
		Stage:     stage,
		Progress:  progress,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// UpdateWindowProgress records that a window finished the current stage
func (t *Tracker) UpdateWindowProgress(stage Stage, progress float64, message string, window WindowDetails) {
	t.mu.Lock()
	t.stage = stage
	t.progress = progress
	t.message = message
	t.window = &window
	t.mu.Unlock()

	t.notifyListeners(Event{
		Stage:     stage,
		Progress:  progress,
		Message:   message,
		Timestamp: time.Now(),
		Window:    &window,
	})
}

// SetError sets an error state and notifies all listeners
func (t *Tracker) SetError(err error) {
	t.mu.Lock()
	t.stage = StageError
	t.err = err
	progress := t.progress
	t.mu.Unlock()

	t.notifyListeners(Event{
		Stage:     StageError,
		Progress:  progress,
		Message:   err.Error(),
		Timestamp: time.Now(),
		Error:     err.Error(),
	})
}

// notifyListeners sends an event to all registered listeners
func (t *Tracker) notifyListeners(event Event) {
	t.mu.RLock()
	listeners := make([]func(Event), len(t.listeners))
	copy(listeners, t.listeners)
	t.mu.RUnlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// CurrentState returns the current progress state
func (t *Tracker) CurrentState() Event {
	t.mu.RLock()
	defer t.mu.RUnlock()

	event := Event{
		Stage:     t.stage,
		Progress:  t.progress,
		Message:   t.message,
		Timestamp: time.Now(),
		Window:    t.window,
	}
	if t.err != nil {
		event.Error = t.err.Error()
	}
	return event
}

// Scale maps done/total onto the [from, to) percentage range of a stage.
func Scale(from, to, done, total int) float64 {
	if total <= 0 {
		return float64(to)
	}
	return float64(from) + float64(done)/float64(total)*float64(to-from)
}

// MarshalJSON implements json.Marshaler for Event
func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	return json.Marshal(&struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Timestamp: e.Timestamp.Format(time.RFC3339),
		Alias:     (*Alias)(&e),
	})
}

// UnmarshalJSON implements json.Unmarshaler for Event
func (e *Event) UnmarshalJSON(data []byte) error {
	type Alias Event
	aux := &struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t, err := time.Parse(time.RFC3339, aux.Timestamp)
	if err != nil {
		return err
	}
	e.Timestamp = t
	return nil
}
