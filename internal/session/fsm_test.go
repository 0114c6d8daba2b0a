package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/windfall/fgl_practice/internal/errors"
)

func TestTransitionHappyPath(t *testing.T) {
	s := StateIdle

	next, err := Transition(s, EventRecord)
	require.NoError(t, err)
	require.Equal(t, StateRecording, next)

	next, err = Transition(next, EventStop)
	require.NoError(t, err)
	require.Equal(t, StateReviewing, next)

	next, err = Transition(next, EventSave)
	require.NoError(t, err)
	require.Equal(t, StateUploading, next)

	next, err = Transition(next, EventUploadOK)
	require.NoError(t, err)
	require.Equal(t, StateSaved, next)

	next, err = Transition(next, EventRate)
	require.NoError(t, err)
	require.Equal(t, StateRating, next)

	next, err = Transition(next, EventRateOK)
	require.NoError(t, err)
	require.Equal(t, StateRated, next)

	// Re-recording from Rated is allowed.
	next, err = Transition(next, EventRecord)
	require.NoError(t, err)
	require.Equal(t, StateRecording, next)
}

func TestTransitionFailurePaths(t *testing.T) {
	next, err := Transition(StateUploading, EventUploadFail)
	require.NoError(t, err)
	require.Equal(t, StateReviewing, next)

	next, err = Transition(StateRating, EventRateFail)
	require.NoError(t, err)
	require.Equal(t, StateSaved, next)
}

func TestTransitionDiscardWindow(t *testing.T) {
	for _, state := range []State{StateRecording, StateReviewing, StateUploading} {
		next, err := Transition(state, EventDiscard)
		require.NoError(t, err, "discard from %s", state)
		require.Equal(t, StateIdle, next)
	}

	// Once saved, discard is no longer offered.
	for _, state := range []State{StateIdle, StateSaved, StateRating, StateRated} {
		_, err := Transition(state, EventDiscard)
		require.Error(t, err, "discard from %s", state)
		require.True(t, errors.Is(err, errors.ErrInvalidTransition))
	}
}

func TestTransitionInvalidEvents(t *testing.T) {
	tests := []struct {
		state State
		event Event
	}{
		{StateIdle, EventStop},
		{StateIdle, EventRate},
		{StateRecording, EventRecord},
		{StateRecording, EventRate},
		{StateReviewing, EventRecord},
		{StateUploading, EventRecord},
		{StateSaved, EventStop},
		{StateSaved, EventSave},
		{StateRated, EventRate},
	}
	for _, tt := range tests {
		next, err := Transition(tt.state, tt.event)
		require.Error(t, err, "%s --%s-->", tt.state, tt.event)
		require.True(t, errors.Is(err, errors.ErrInvalidTransition))
		require.Equal(t, tt.state, next)
	}
}
