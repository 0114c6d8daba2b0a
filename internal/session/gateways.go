package session

import (
	"context"

	"github.com/windfall/fgl_practice/internal/capture"
)

// ContentQuery selects the slots for one card or page of passages.
// Offset/Limit page the shadowing reader; flashcards ignore them.
type ContentQuery struct {
	Meta   Meta
	Offset int
	Limit  int
}

// ContentProvider supplies slot definitions for the active content.
// Repeated calls with increasing offsets return additional slots to
// append, not replace.
type ContentProvider interface {
	GetSlots(ctx context.Context, q ContentQuery) ([]Slot, error)
}

// UploadGateway persists a finalized recording server-side and returns
// a stable reference path.
type UploadGateway interface {
	Save(ctx context.Context, slotID string, artifact capture.Artifact, meta Meta) (UploadedRecording, error)
}

// ScoringGateway grades a stored recording against reference text.
type ScoringGateway interface {
	Rate(ctx context.Context, recordingRef, referenceText string, meta Meta) (Rating, error)
}

// TranscriptionGateway recognizes a stored recording without scoring.
type TranscriptionGateway interface {
	Transcribe(ctx context.Context, recordingRef string, meta Meta) (string, error)
}

// TtsGateway generates reference audio for a passage that has none.
// Repeated calls for an already-synthesized passage return the existing
// reference.
type TtsGateway interface {
	Synthesize(ctx context.Context, slotID string, meta Meta) (string, error)
}

// Notifier receives slot snapshots on every visible change.
type Notifier interface {
	SlotChanged(snapshot SlotSnapshot)
}

type noopNotifier struct{}

func (noopNotifier) SlotChanged(SlotSnapshot) {}
