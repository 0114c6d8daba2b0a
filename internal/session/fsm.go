package session

import (
	"fmt"

	"github.com/windfall/fgl_practice/internal/errors"
)

// State is one position in the per-slot recording lifecycle.
type State string

// Event is one stimulus applied to a slot.
type Event string

const (
	// StateIdle has no local recording; a prior saved recording may
	// still exist server-side.
	StateIdle      State = "idle"
	StateRecording State = "recording"
	// StateReviewing holds a finalized artifact that has not reached
	// the server yet. Upload is triggered automatically, so this state
	// is normally transient; it persists only after an upload failure.
	StateReviewing State = "reviewing"
	StateUploading State = "uploading"
	StateSaved     State = "saved"
	StateRating    State = "rating"
	StateRated     State = "rated"
)

const (
	EventRecord     Event = "record"
	EventStop       Event = "stop"
	EventDiscard    Event = "discard"
	EventSave       Event = "save"
	EventUploadOK   Event = "upload_ok"
	EventUploadFail Event = "upload_fail"
	EventRate       Event = "rate"
	EventRateOK     Event = "rate_ok"
	EventRateFail   Event = "rate_fail"
)

// Transition applies one event to a slot state and returns the next
// state. It performs no side effects; the controller schedules those.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		switch event {
		case EventRecord:
			return StateRecording, nil
		}
	case StateRecording:
		switch event {
		case EventStop:
			return StateReviewing, nil
		case EventDiscard:
			return StateIdle, nil
		}
	case StateReviewing:
		switch event {
		case EventSave:
			return StateUploading, nil
		case EventDiscard:
			return StateIdle, nil
		}
	case StateUploading:
		switch event {
		case EventUploadOK:
			return StateSaved, nil
		case EventUploadFail:
			return StateReviewing, nil
		case EventDiscard:
			// The discard race: allowed until the upload result lands.
			return StateIdle, nil
		}
	case StateSaved:
		switch event {
		case EventRecord:
			return StateRecording, nil
		case EventRate:
			return StateRating, nil
		}
	case StateRating:
		switch event {
		case EventRateOK:
			return StateRated, nil
		case EventRateFail:
			return StateSaved, nil
		case EventRecord:
			// Re-recording while a rating call is in flight is allowed;
			// the stale response guard drops the late result.
			return StateRecording, nil
		}
	case StateRated:
		switch event {
		case EventRecord:
			return StateRecording, nil
		}
	default:
		return current, errors.Internal(fmt.Sprintf("unknown state %q", current))
	}
	return current, invalidTransition(current, event)
}

func invalidTransition(state State, event Event) *errors.AppError {
	return errors.New(errors.ErrInvalidTransition,
		fmt.Sprintf("cannot %s from state %s", event, state))
}
