package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/windfall/fgl_practice/internal/capture"
	"github.com/windfall/fgl_practice/internal/errors"
	"github.com/windfall/fgl_practice/internal/logger"
)

type fakeContent struct {
	mu       sync.Mutex
	slots    []Slot
	pageSize int
	queries  []ContentQuery
}

func (f *fakeContent) GetSlots(_ context.Context, q ContentQuery) ([]Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)

	page := len(f.slots)
	if f.pageSize > 0 {
		page = f.pageSize
	}
	if q.Offset >= len(f.slots) {
		return nil, nil
	}
	end := q.Offset + page
	if end > len(f.slots) {
		end = len(f.slots)
	}
	out := make([]Slot, end-q.Offset)
	copy(out, f.slots[q.Offset:end])
	return out, nil
}

type fakeUploads struct {
	mu    sync.Mutex
	refs  []string
	err   error
	block chan struct{}
	calls int

	// stable makes refs deterministic per slot, matching the real
	// upload key layout where a re-recording overwrites the same object.
	stable bool
}

func (f *fakeUploads) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeUploads) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeUploads) Save(_ context.Context, slotID string, artifact capture.Artifact, _ Meta) (UploadedRecording, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return UploadedRecording{}, f.err
	}
	ref := fmt.Sprintf("audios_user/%s_%d.wav", slotID, f.calls)
	if f.stable {
		ref = fmt.Sprintf("audios_user/%s_user.wav", slotID)
	}
	if len(f.refs) > 0 {
		ref = f.refs[0]
		f.refs = f.refs[1:]
	}
	return UploadedRecording{Ref: ref, MimeType: artifact.MimeType, SavedAt: time.Now()}, nil
}

type fakeScoring struct {
	mu     sync.Mutex
	rating Rating
	err    error
	block  chan struct{}
	rated  []string
}

func (f *fakeScoring) Rate(_ context.Context, ref, _ string, _ Meta) (Rating, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rated = append(f.rated, ref)
	if f.err != nil {
		return Rating{}, f.err
	}
	return f.rating, nil
}

type fakeStt struct {
	mu    sync.Mutex
	text  string
	calls int
	block chan struct{}
}

func (f *fakeStt) Transcribe(_ context.Context, _ string, _ Meta) (string, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.text, nil
}

func (f *fakeStt) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTts struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeTts) Synthesize(_ context.Context, slotID string, _ Meta) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return "audios/audio_book_tts/chunk_" + slotID + "_tts.mp3", nil
}

func (f *fakeTts) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixture struct {
	ctrl       *Controller
	captureCtx *capture.FakeContext
	content    *fakeContent
	uploads    *fakeUploads
	scoring    *fakeScoring
	stt        *fakeStt
	tts        *fakeTts
}

func cardSlots() []Slot {
	return []Slot{
		{ID: "formal", ReferenceText: "She approached the problem methodically."},
		{ID: "informal", ReferenceText: "She just went at it step by step."},
	}
}

func newFixture(t *testing.T, slots []Slot) *fixture {
	t.Helper()
	f := &fixture{
		captureCtx: capture.NewFakeContext([]byte{1, 2, 3, 4, 5, 6, 7, 8}, 4),
		content:    &fakeContent{slots: slots},
		uploads:    &fakeUploads{},
		scoring:    &fakeScoring{},
		stt:        &fakeStt{text: "she approached the problem methodically"},
		tts:        &fakeTts{},
	}
	recorder := capture.NewRecorder(f.captureCtx, capture.Config{})
	f.ctrl = NewController(logger.NewNop(), recorder, f.content, f.uploads, f.scoring, f.stt, f.tts, nil)
	return f
}

func (f *fixture) load(t *testing.T) {
	t.Helper()
	_, err := f.ctrl.LoadContent(context.Background(), Meta{
		Username: "lea",
		Source:   SourceFlashcard,
		Word:     "methodical", Pos: "adjective", Level: "c1",
	})
	require.NoError(t, err)
}

func waitState(t *testing.T, c *Controller, slotID string, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		snap, err := c.Snapshot(slotID)
		return err == nil && snap.State == want
	}, 2*time.Second, 5*time.Millisecond, "slot %s never reached %s", slotID, want)
}

func TestRecordStopAutoSavesThenManualRate(t *testing.T) {
	f := newFixture(t, cardSlots())
	f.load(t)
	f.uploads.refs = []string{"audios_user/r1.webm"}
	f.scoring.rating = Rating{
		PronunciationScore: 88.0,
		AccuracyScore:      91.2,
		FluencyScore:       85.4,
		ProsodyScore:       84.9,
		TotalScore:         87.5,
		RecognizedText:     "she approached the problem methodically",
		Mispronunciations: []Mispronunciation{
			{Word: "methodically", Accuracy: 58.3, Error: "Mispronunciation"},
		},
	}

	require.NoError(t, f.ctrl.Record("formal"))
	snap, err := f.ctrl.Snapshot("formal")
	require.NoError(t, err)
	require.Equal(t, StateRecording, snap.State)

	// Stop finalizes the artifact and auto-triggers the upload; there
	// is no manual confirm step.
	require.NoError(t, f.ctrl.Stop("formal"))
	waitState(t, f.ctrl, "formal", StateSaved)

	snap, err = f.ctrl.Snapshot("formal")
	require.NoError(t, err)
	require.Equal(t, "audios_user/r1.webm", snap.RecordingRef)
	require.True(t, snap.HasArtifact, "local copy retained for playback")
	require.Nil(t, snap.Rating)

	// Rating is manual, never chained to the upload.
	require.Equal(t, 0, len(f.scoring.rated))

	require.NoError(t, f.ctrl.RateSlot("formal"))
	waitState(t, f.ctrl, "formal", StateRated)

	snap, err = f.ctrl.Snapshot("formal")
	require.NoError(t, err)
	require.NotNil(t, snap.Rating)
	require.Equal(t, 87.5, snap.Rating.TotalScore)
	require.Equal(t, f.scoring.rating, *snap.Rating)
	require.Equal(t, "she approached the problem methodically", snap.RecognizedText)
}

func TestSecondRecordFailsWithAlreadyRecording(t *testing.T) {
	f := newFixture(t, cardSlots())
	f.load(t)

	require.NoError(t, f.ctrl.Record("informal"))

	err := f.ctrl.Record("formal")
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrAlreadyRecording))

	// Slot A stays Idle, slot B's capture is unaffected.
	snap, _ := f.ctrl.Snapshot("formal")
	require.Equal(t, StateIdle, snap.State)
	snap, _ = f.ctrl.Snapshot("informal")
	require.Equal(t, StateRecording, snap.State)

	require.NoError(t, f.ctrl.Stop("informal"))
	waitState(t, f.ctrl, "informal", StateSaved)
}

func TestUploadFailureKeepsArtifactForRetry(t *testing.T) {
	f := newFixture(t, cardSlots())
	f.load(t)
	f.uploads.setErr(errors.Wrap(errors.ErrUpload, "failed to store recording", fmt.Errorf("connection refused")))

	require.NoError(t, f.ctrl.Record("formal"))
	require.NoError(t, f.ctrl.Stop("formal"))
	waitState(t, f.ctrl, "formal", StateReviewing)

	snap, _ := f.ctrl.Snapshot("formal")
	require.True(t, snap.HasArtifact)
	require.Empty(t, snap.RecordingRef)
	require.Contains(t, snap.Status, "Save failed")

	// Retrying save with the same artifact succeeds without
	// re-recording.
	f.uploads.setErr(nil)
	require.NoError(t, f.ctrl.Save("formal"))
	waitState(t, f.ctrl, "formal", StateSaved)
	require.Equal(t, 2, f.uploads.callCount())
	require.Equal(t, 1, f.captureCtx.OpenCount())
}

func TestStaleRatingResponseIsDiscarded(t *testing.T) {
	f := newFixture(t, cardSlots())
	f.load(t)
	f.scoring.block = make(chan struct{})
	f.scoring.rating = Rating{TotalScore: 42.0, RecognizedText: "old attempt"}

	require.NoError(t, f.ctrl.Record("formal"))
	require.NoError(t, f.ctrl.Stop("formal"))
	waitState(t, f.ctrl, "formal", StateSaved)

	require.NoError(t, f.ctrl.RateSlot("formal"))
	snap, _ := f.ctrl.Snapshot("formal")
	require.Equal(t, StateRating, snap.State)

	// Replace the recording while the rating call is in flight.
	require.NoError(t, f.ctrl.Record("formal"))
	require.NoError(t, f.ctrl.Stop("formal"))
	waitState(t, f.ctrl, "formal", StateSaved)

	snap, _ = f.ctrl.Snapshot("formal")
	newRef := snap.RecordingRef
	require.NotEmpty(t, newRef)

	// Release the stale response; it must not overwrite the newer state.
	close(f.scoring.block)
	time.Sleep(100 * time.Millisecond)

	snap, _ = f.ctrl.Snapshot("formal")
	require.Equal(t, StateSaved, snap.State)
	require.Nil(t, snap.Rating)
	require.Equal(t, newRef, snap.RecordingRef)
}

func TestStaleRatingDroppedWhileReRecording(t *testing.T) {
	f := newFixture(t, cardSlots())
	f.load(t)
	f.uploads.stable = true
	f.scoring.block = make(chan struct{})
	f.scoring.rating = Rating{TotalScore: 42.0, RecognizedText: "old attempt"}

	require.NoError(t, f.ctrl.Record("formal"))
	require.NoError(t, f.ctrl.Stop("formal"))
	waitState(t, f.ctrl, "formal", StateSaved)

	require.NoError(t, f.ctrl.RateSlot("formal"))

	// Re-recording starts while the rating call is still in flight.
	require.NoError(t, f.ctrl.Record("formal"))
	close(f.scoring.block)
	time.Sleep(100 * time.Millisecond)

	// The late result lands mid-recording and must not move the slot.
	snap, _ := f.ctrl.Snapshot("formal")
	require.Equal(t, StateRecording, snap.State)
	require.Nil(t, snap.Rating)

	// The capture is still stoppable and the device is released.
	require.NoError(t, f.ctrl.Stop("formal"))
	waitState(t, f.ctrl, "formal", StateSaved)
	require.True(t, f.captureCtx.AllReleased())
	snap, _ = f.ctrl.Snapshot("formal")
	require.Nil(t, snap.Rating)
}

func TestStaleRatingDroppedWhenReuploadReusesRef(t *testing.T) {
	f := newFixture(t, cardSlots())
	f.load(t)
	f.uploads.stable = true
	f.scoring.block = make(chan struct{})
	f.scoring.rating = Rating{TotalScore: 42.0, RecognizedText: "old attempt"}

	require.NoError(t, f.ctrl.Record("formal"))
	require.NoError(t, f.ctrl.Stop("formal"))
	waitState(t, f.ctrl, "formal", StateSaved)
	firstRef := mustSnapshot(t, f.ctrl, "formal").RecordingRef

	require.NoError(t, f.ctrl.RateSlot("formal"))

	// The replacement take saves under the very same ref.
	require.NoError(t, f.ctrl.Record("formal"))
	require.NoError(t, f.ctrl.Stop("formal"))
	waitState(t, f.ctrl, "formal", StateSaved)
	require.Equal(t, firstRef, mustSnapshot(t, f.ctrl, "formal").RecordingRef)

	close(f.scoring.block)
	time.Sleep(100 * time.Millisecond)

	// Ref equality alone cannot identify the take; the old take's
	// rating must not attach to the new recording.
	snap, _ := f.ctrl.Snapshot("formal")
	require.Equal(t, StateSaved, snap.State)
	require.Nil(t, snap.Rating)
	require.Empty(t, snap.RecognizedText)
}

func TestStaleTranscriptionDroppedWhenReuploadReusesRef(t *testing.T) {
	f := newFixture(t, cardSlots())
	f.load(t)
	f.uploads.stable = true
	f.stt.block = make(chan struct{})

	require.NoError(t, f.ctrl.Record("formal"))
	require.NoError(t, f.ctrl.Stop("formal"))
	waitState(t, f.ctrl, "formal", StateSaved)

	require.NoError(t, f.ctrl.Transcribe("formal"))

	require.NoError(t, f.ctrl.Record("formal"))
	require.NoError(t, f.ctrl.Stop("formal"))
	waitState(t, f.ctrl, "formal", StateSaved)

	close(f.stt.block)
	time.Sleep(100 * time.Millisecond)

	snap, _ := f.ctrl.Snapshot("formal")
	require.Equal(t, StateSaved, snap.State)
	require.Empty(t, snap.RecognizedText, "old take's text never shown for the new recording")
}

func mustSnapshot(t *testing.T, c *Controller, slotID string) SlotSnapshot {
	t.Helper()
	snap, err := c.Snapshot(slotID)
	require.NoError(t, err)
	return snap
}

func TestDiscardDuringUploadRace(t *testing.T) {
	f := newFixture(t, cardSlots())
	f.load(t)
	f.uploads.block = make(chan struct{})

	require.NoError(t, f.ctrl.Record("formal"))
	require.NoError(t, f.ctrl.Stop("formal"))

	snap, _ := f.ctrl.Snapshot("formal")
	require.Equal(t, StateUploading, snap.State)

	require.NoError(t, f.ctrl.Discard("formal"))
	snap, _ = f.ctrl.Snapshot("formal")
	require.Equal(t, StateIdle, snap.State)
	require.False(t, snap.HasArtifact, "no artifact survives a discard")

	// The late upload success lands on a superseded artifact and is
	// dropped.
	close(f.uploads.block)
	time.Sleep(100 * time.Millisecond)

	snap, _ = f.ctrl.Snapshot("formal")
	require.Equal(t, StateIdle, snap.State)
	require.Empty(t, snap.RecordingRef)
}

func TestDiscardWhileRecordingReleasesMicrophone(t *testing.T) {
	f := newFixture(t, cardSlots())
	f.load(t)

	require.NoError(t, f.ctrl.Record("formal"))
	require.NoError(t, f.ctrl.Discard("formal"))

	snap, _ := f.ctrl.Snapshot("formal")
	require.Equal(t, StateIdle, snap.State)
	require.False(t, snap.HasArtifact)
	require.True(t, f.captureCtx.AllReleased())

	// The microphone is immediately available again.
	require.NoError(t, f.ctrl.Record("informal"))
}

func TestLoadContentTearsDownPreviousSlots(t *testing.T) {
	f := newFixture(t, cardSlots())
	f.load(t)
	f.uploads.block = make(chan struct{})

	require.NoError(t, f.ctrl.Record("formal"))
	require.NoError(t, f.ctrl.Stop("formal"))

	// Switching content invalidates everything in flight and releases
	// the device.
	_, err := f.ctrl.LoadContent(context.Background(), Meta{
		Username: "lea", Source: SourceFlashcard, Word: "tenacious", Pos: "adjective", Level: "c1",
	})
	require.NoError(t, err)
	require.True(t, f.captureCtx.AllReleased())

	close(f.uploads.block)
	time.Sleep(100 * time.Millisecond)

	snap, _ := f.ctrl.Snapshot("formal")
	require.Equal(t, StateIdle, snap.State)
	require.Empty(t, snap.RecordingRef)
}

func TestLoadContentRebuildsFromExistingRecordings(t *testing.T) {
	slots := cardSlots()
	slots[0].ExistingRecordingRef = "audios_user/0001_formal_user.wav"
	f := newFixture(t, slots)
	f.load(t)

	snap, err := f.ctrl.Snapshot("formal")
	require.NoError(t, err)
	require.Equal(t, StateSaved, snap.State)
	require.Equal(t, "audios_user/0001_formal_user.wav", snap.RecordingRef)
	require.Nil(t, snap.Rating)

	snap, err = f.ctrl.Snapshot("informal")
	require.NoError(t, err)
	require.Equal(t, StateIdle, snap.State)
}

func TestRecordFromRatedClearsRatingAndTranscription(t *testing.T) {
	f := newFixture(t, cardSlots())
	f.load(t)
	f.scoring.rating = Rating{TotalScore: 91.0, RecognizedText: "first take"}

	require.NoError(t, f.ctrl.Record("formal"))
	require.NoError(t, f.ctrl.Stop("formal"))
	waitState(t, f.ctrl, "formal", StateSaved)
	require.NoError(t, f.ctrl.RateSlot("formal"))
	waitState(t, f.ctrl, "formal", StateRated)

	require.NoError(t, f.ctrl.Record("formal"))

	snap, _ := f.ctrl.Snapshot("formal")
	require.Equal(t, StateRecording, snap.State)
	require.Nil(t, snap.Rating, "stale rating never shown against a new recording")
	require.Empty(t, snap.RecognizedText)

	require.NoError(t, f.ctrl.Stop("formal"))
	waitState(t, f.ctrl, "formal", StateSaved)
	snap, _ = f.ctrl.Snapshot("formal")
	require.Nil(t, snap.Rating)
}

func TestRateWithoutReferenceTextRefused(t *testing.T) {
	slots := []Slot{{ID: "12", ExistingRecordingRef: "audios_user/shadowing_12_user.wav"}}
	f := newFixture(t, slots)
	_, err := f.ctrl.LoadContent(context.Background(), Meta{Source: SourceShadowing, Book: "walden"})
	require.NoError(t, err)

	err = f.ctrl.RateSlot("12")
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrMissingReferenceText))

	// No partial state change.
	snap, _ := f.ctrl.Snapshot("12")
	require.Equal(t, StateSaved, snap.State)
}

func TestDeviceUnavailableLeavesSlotIdle(t *testing.T) {
	f := newFixture(t, cardSlots())
	f.load(t)
	f.captureCtx.FailOpen(fmt.Errorf("permission denied"))

	err := f.ctrl.Record("formal")
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrDeviceUnavailable))

	snap, _ := f.ctrl.Snapshot("formal")
	require.Equal(t, StateIdle, snap.State)
}

func TestTranscribeAttachesTextWithoutStateChange(t *testing.T) {
	f := newFixture(t, cardSlots())
	f.load(t)

	require.NoError(t, f.ctrl.Record("formal"))
	require.NoError(t, f.ctrl.Stop("formal"))
	waitState(t, f.ctrl, "formal", StateSaved)

	require.NoError(t, f.ctrl.Transcribe("formal"))
	require.Eventually(t, func() bool {
		snap, _ := f.ctrl.Snapshot("formal")
		return snap.RecognizedText == f.stt.text
	}, 2*time.Second, 5*time.Millisecond)

	snap, _ := f.ctrl.Snapshot("formal")
	require.Equal(t, StateSaved, snap.State)

	// Repeatable.
	require.NoError(t, f.ctrl.Transcribe("formal"))
	require.Eventually(t, func() bool { return f.stt.callCount() == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestTranscribeWithoutRecordingRefused(t *testing.T) {
	f := newFixture(t, cardSlots())
	f.load(t)

	err := f.ctrl.Transcribe("formal")
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func passageSlots(n int) []Slot {
	out := make([]Slot, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, Slot{
			ID:            fmt.Sprintf("%d", i),
			ReferenceText: fmt.Sprintf("passage %d", i),
		})
	}
	return out
}

func TestAppendContentPaginatesWithoutOverlap(t *testing.T) {
	f := newFixture(t, passageSlots(6))
	f.content.pageSize = 3

	first, err := f.ctrl.LoadContent(context.Background(), Meta{Source: SourceShadowing, Book: "walden", Chapter: "Economy"})
	require.NoError(t, err)
	require.Len(t, first, 3)

	added, err := f.ctrl.AppendContent(context.Background(), 3, 3)
	require.NoError(t, err)
	require.Len(t, added, 3)

	// Disjoint sets that preserve ordering when concatenated.
	all := f.ctrl.Snapshots()
	require.Len(t, all, 6)
	for i, snap := range all {
		require.Equal(t, fmt.Sprintf("%d", i+1), snap.ID)
	}

	// Overlapping offsets append only the unseen slots.
	added, err = f.ctrl.AppendContent(context.Background(), 3, 3)
	require.NoError(t, err)
	require.Empty(t, added)
	require.Len(t, f.ctrl.Snapshots(), 6)
}

func TestSynthesizeReferenceIsIdempotent(t *testing.T) {
	f := newFixture(t, passageSlots(2))
	_, err := f.ctrl.LoadContent(context.Background(), Meta{Source: SourceShadowing, Book: "walden"})
	require.NoError(t, err)

	ref, err := f.ctrl.SynthesizeReference(context.Background(), "1")
	require.NoError(t, err)
	require.Equal(t, "audios/audio_book_tts/chunk_1_tts.mp3", ref)
	require.Equal(t, 1, f.tts.callCount())

	// Second call returns the existing reference without another call.
	again, err := f.ctrl.SynthesizeReference(context.Background(), "1")
	require.NoError(t, err)
	require.Equal(t, ref, again)
	require.Equal(t, 1, f.tts.callCount())
}

func TestSingleActiveCaptureInvariantAcrossEventSequences(t *testing.T) {
	f := newFixture(t, passageSlots(4))
	_, err := f.ctrl.LoadContent(context.Background(), Meta{Source: SourceShadowing, Book: "walden"})
	require.NoError(t, err)

	recordingCount := func() int {
		n := 0
		for _, snap := range f.ctrl.Snapshots() {
			if snap.State == StateRecording {
				n++
			}
		}
		return n
	}

	for _, step := range []struct {
		action string
		slot   string
	}{
		{"record", "1"},
		{"record", "2"}, // rejected
		{"stop", "1"},
		{"record", "2"},
		{"record", "3"}, // rejected
		{"stop", "2"},
		{"record", "3"},
		{"discard", "3"},
		{"record", "4"},
	} {
		switch step.action {
		case "record":
			_ = f.ctrl.Record(step.slot)
		case "stop":
			_ = f.ctrl.Stop(step.slot)
		case "discard":
			_ = f.ctrl.Discard(step.slot)
		}
		require.LessOrEqual(t, recordingCount(), 1, "after %s %s", step.action, step.slot)
	}
}
