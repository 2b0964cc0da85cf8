package progress

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker(t *testing.T) {
	tracker := NewTracker()

	var receivedEvents []Event
	tracker.AddListener(func(event Event) {
		receivedEvents = append(receivedEvents, event)
	})

	tracker.UpdateProgress(StageProbing, 0, "Probing...")
	tracker.UpdateProgress(StageExtracting, 5, "Extracting...")

	require.Len(t, receivedEvents, 2)
	assert.Equal(t, StageProbing, receivedEvents[0].Stage)
	assert.Equal(t, 5.0, receivedEvents[1].Progress)

	tracker.SetError(context.Canceled)

	state := tracker.CurrentState()
	assert.Equal(t, StageError, state.Stage)
	assert.Equal(t, context.Canceled.Error(), state.Error)
	assert.Equal(t, 5.0, state.Progress)
	require.Len(t, receivedEvents, 3)
	assert.Equal(t, context.Canceled.Error(), receivedEvents[2].Error)
}

func TestCurrentStateWithoutError(t *testing.T) {
	tracker := NewTracker()
	state := tracker.CurrentState()

	assert.Equal(t, StageInitializing, state.Stage)
	assert.Empty(t, state.Error)
}

func TestWindowProgress(t *testing.T) {
	tracker := NewTracker()

	var receivedEvents []Event
	tracker.AddListener(func(event Event) {
		receivedEvents = append(receivedEvents, event)
	})

	tracker.UpdateWindowProgress(StageExtracting, 20, "Extracted 1/3", WindowDetails{Index: 1, Label: "1", Total: 3, Processed: 1})
	tracker.UpdateWindowProgress(StageExtracting, 35, "Extracted 2/3", WindowDetails{Index: 2, Label: "2", Total: 3, Processed: 2})

	require.Len(t, receivedEvents, 2)
	for i, event := range receivedEvents {
		require.NotNil(t, event.Window)
		assert.Equal(t, i+1, event.Window.Index)
		assert.Equal(t, 3, event.Window.Total)
	}

	state := tracker.CurrentState()
	require.NotNil(t, state.Window)
	assert.Equal(t, 2, state.Window.Processed)

	tracker.UpdateProgress(StageTagging, 50, "Tagging")
	assert.Nil(t, tracker.CurrentState().Window)
}

func TestEventJSON(t *testing.T) {
	event := Event{
		Stage:     StageTagging,
		Progress:  50.0,
		Message:   "Tagging...",
		Timestamp: time.Now(),
		Window:    &WindowDetails{Index: 2, Label: "02", Total: 10, Processed: 2},
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"label":"02"`)

	var unmarshaled Event
	require.NoError(t, json.Unmarshal(data, &unmarshaled))

	assert.Equal(t, event.Stage, unmarshaled.Stage)
	assert.Equal(t, event.Progress, unmarshaled.Progress)
	assert.Equal(t, event.Message, unmarshaled.Message)
	assert.Equal(t, event.Timestamp.Unix(), unmarshaled.Timestamp.Unix())
	assert.Equal(t, event.Window, unmarshaled.Window)
}

func TestListenerManagement(t *testing.T) {
	tracker := NewTracker()

	var receivedEvents []Event
	listener := func(event Event) {
		receivedEvents = append(receivedEvents, event)
	}
	tracker.AddListener(listener)

	tracker.UpdateProgress(StageExtracting, 50, "Test")
	assert.Len(t, receivedEvents, 1)

	tracker.RemoveListener(listener)

	tracker.UpdateProgress(StageExtracting, 75, "Test 2")
	assert.Len(t, receivedEvents, 1)
}

func TestScale(t *testing.T) {
	assert.Equal(t, 5.0, Scale(ProgressExtractStart, ProgressTagStart, 0, 3))
	assert.Equal(t, 20.0, Scale(ProgressExtractStart, ProgressTagStart, 1, 3))
	assert.Equal(t, 50.0, Scale(ProgressExtractStart, ProgressTagStart, 3, 3))
	assert.Equal(t, 95.0, Scale(ProgressTagStart, ProgressPackageStart, 0, 0))
}
