// Package session implements the recording-review-rate workflow: a
// per-slot state machine plus a controller that owns the microphone,
// schedules gateway calls, and applies their results.
package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/windfall/fgl_practice/internal/capture"
	"github.com/windfall/fgl_practice/internal/errors"
)

// DefaultPageLimit is the passage page size used when a content query
// does not specify one.
const DefaultPageLimit = 100

// slotState is the controller-private record for one slot.
type slotState struct {
	slot   Slot
	state  State
	status string

	// artifact is the local recording, kept after save for instant
	// playback until the content changes or it is replaced.
	artifact *capture.Artifact

	// pendingArtifact identifies the artifact an in-flight upload
	// belongs to; results for any other artifact are dropped.
	pendingArtifact string

	// pendingRating and pendingTranscription identify the take an
	// in-flight gateway call was issued for. Upload refs are stable per
	// slot, so ref equality cannot tell takes apart; these tokens can.
	pendingRating        string
	pendingTranscription string

	recording  *UploadedRecording
	rating     *Rating
	recognized string
}

// Controller owns the set of active slots for the current card or
// page, enforces the single-active-capture invariant, and drives the
// gateway calls. All state mutation happens under one mutex; gateway
// calls run in goroutines and re-enter through apply methods that
// re-check what they are about to overwrite.
type Controller struct {
	log      zerolog.Logger
	content  ContentProvider
	uploads  UploadGateway
	scoring  ScoringGateway
	stt      TranscriptionGateway
	tts      TtsGateway
	notifier Notifier
	recorder *capture.Recorder

	mu         sync.Mutex
	meta       Meta
	generation int
	slots      map[string]*slotState
	order      []string
	activeSlot string
}

// NewController creates a session controller.
func NewController(
	log zerolog.Logger,
	recorder *capture.Recorder,
	content ContentProvider,
	uploads UploadGateway,
	scoring ScoringGateway,
	stt TranscriptionGateway,
	tts TtsGateway,
	notifier Notifier,
) *Controller {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Controller{
		log:      log,
		recorder: recorder,
		content:  content,
		uploads:  uploads,
		scoring:  scoring,
		stt:      stt,
		tts:      tts,
		notifier: notifier,
		slots:    make(map[string]*slotState),
	}
}

// Meta returns the active content context.
func (c *Controller) Meta() Meta {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta
}

// LoadContent tears down all slots for the previous content and builds
// the new set from the content provider. Any in-progress capture is
// released before the new slots are constructed.
func (c *Controller) LoadContent(ctx context.Context, meta Meta) ([]SlotSnapshot, error) {
	q := ContentQuery{Meta: meta, Offset: 0, Limit: DefaultPageLimit}
	slots, err := c.content.GetSlots(ctx, q)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.activeSlot != "" {
		c.recorder.Abort()
		c.activeSlot = ""
	}

	// Invalidate every in-flight completion for the old content.
	c.generation++
	c.meta = meta
	c.slots = make(map[string]*slotState, len(slots))
	c.order = c.order[:0]

	for _, s := range slots {
		c.addSlotLocked(s)
	}
	return c.snapshotsLocked(), nil
}

// AppendContent fetches additional passage slots for the active content
// and appends them; already-known slots are left untouched.
func (c *Controller) AppendContent(ctx context.Context, offset, limit int) ([]SlotSnapshot, error) {
	c.mu.Lock()
	meta := c.meta
	gen := c.generation
	c.mu.Unlock()

	if limit <= 0 {
		limit = DefaultPageLimit
	}
	slots, err := c.content.GetSlots(ctx, ContentQuery{Meta: meta, Offset: offset, Limit: limit})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return nil, errors.New(errors.ErrStaleResponse, "content changed while paginating")
	}
	var added []SlotSnapshot
	for _, s := range slots {
		if _, ok := c.slots[s.ID]; ok {
			continue
		}
		st := c.addSlotLocked(s)
		added = append(added, c.snapshotLocked(st))
	}
	return added, nil
}

func (c *Controller) addSlotLocked(s Slot) *slotState {
	st := &slotState{slot: s, state: StateIdle}
	if s.ExistingRecordingRef != "" {
		st.state = StateSaved
		st.recording = &UploadedRecording{Ref: s.ExistingRecordingRef}
	}
	c.slots[s.ID] = st
	c.order = append(c.order, s.ID)
	return st
}

// Record starts capturing for slotID. Exactly one slot may record at a
// time across the whole session; starting over a saved or rated slot
// discards the outgoing rating and recognized text first.
func (c *Controller) Record(slotID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.slotLocked(slotID)
	if err != nil {
		return err
	}
	if c.activeSlot != "" {
		return errors.AlreadyRecording(c.activeSlot)
	}
	next, err := Transition(st.state, EventRecord)
	if err != nil {
		return err
	}
	if err := c.recorder.Start(slotID); err != nil {
		// Slot state unchanged; the failure is surfaced to the user.
		st.status = "Could not access microphone"
		c.emitLocked(st)
		return err
	}

	st.state = next
	st.rating = nil
	st.recognized = ""
	st.artifact = nil
	st.pendingArtifact = ""
	st.pendingRating = ""
	st.pendingTranscription = ""
	st.status = "Recording..."
	c.activeSlot = slotID
	c.emitLocked(st)
	return nil
}

// Stop finalizes the capture for slotID into an artifact, releases the
// microphone, and immediately schedules the upload. Review is advisory:
// there is no confirm step, only the discard race.
func (c *Controller) Stop(slotID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.slotLocked(slotID)
	if err != nil {
		return err
	}
	if c.activeSlot != slotID {
		return invalidTransition(st.state, EventStop)
	}
	if _, err := Transition(st.state, EventStop); err != nil {
		return err
	}

	artifact, err := c.recorder.Stop()
	c.activeSlot = ""
	if err != nil {
		st.state = StateIdle
		st.status = "Recording failed"
		c.emitLocked(st)
		return errors.Wrap(errors.ErrDeviceUnavailable, "failed to finalize recording", err)
	}

	st.state = StateReviewing
	st.artifact = &artifact
	st.pendingArtifact = uuid.New().String()
	c.emitLocked(st)

	c.startUploadLocked(st)
	return nil
}

// Save retries the upload of a retained artifact after a failure.
func (c *Controller) Save(slotID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.slotLocked(slotID)
	if err != nil {
		return err
	}
	if st.state != StateReviewing || st.artifact == nil {
		return invalidTransition(st.state, EventSave)
	}
	c.startUploadLocked(st)
	return nil
}

// startUploadLocked moves a reviewing slot into Uploading and schedules
// the gateway call.
func (c *Controller) startUploadLocked(st *slotState) {
	st.state = StateUploading
	st.status = "Saving..."
	c.emitLocked(st)

	gen := c.generation
	slotID := st.slot.ID
	artifactID := st.pendingArtifact
	artifact := *st.artifact
	meta := c.meta

	go func() {
		rec, err := c.uploads.Save(context.Background(), slotID, artifact, meta)
		c.applyUpload(gen, slotID, artifactID, rec, err)
	}()
}

func (c *Controller) applyUpload(gen int, slotID, artifactID string, rec UploadedRecording, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.staleGuardLocked(gen, slotID)
	if !ok || st.pendingArtifact != artifactID {
		c.log.Debug().Str("slot_id", slotID).Msg("Dropping stale upload result")
		return
	}

	if err != nil {
		// Artifact retained; the user may retry save or discard.
		st.state = StateReviewing
		st.status = "Save failed: " + err.Error()
		c.log.Error().Err(err).Str("slot_id", slotID).Msg("Upload failed")
		c.emitLocked(st)
		return
	}

	st.state = StateSaved
	st.recording = &rec
	st.pendingArtifact = ""
	st.status = "Saved"
	c.log.Info().Str("slot_id", slotID).Str("ref", rec.Ref).Msg("Recording saved")
	c.emitLocked(st)
}

// Discard drops the local recording and returns the slot to Idle. It
// is honored while recording, reviewing, or during the auto-upload
// race; once the slot is Saved, replacing requires re-recording.
func (c *Controller) Discard(slotID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.slotLocked(slotID)
	if err != nil {
		return err
	}
	next, err := Transition(st.state, EventDiscard)
	if err != nil {
		return err
	}
	if c.activeSlot == slotID {
		c.recorder.Abort()
		c.activeSlot = ""
	}

	st.state = next
	st.artifact = nil
	st.pendingArtifact = ""
	st.pendingRating = ""
	st.pendingTranscription = ""
	st.status = "Recording discarded"
	c.emitLocked(st)
	return nil
}

// RateSlot requests a pronunciation assessment for the slot's current
// recording. Rating is always manual; it is never chained to an upload.
func (c *Controller) RateSlot(slotID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.slotLocked(slotID)
	if err != nil {
		return err
	}
	next, err := Transition(st.state, EventRate)
	if err != nil {
		return err
	}
	if st.recording == nil {
		return errors.New(errors.ErrNotFound, "no recording found to rate")
	}
	if st.slot.ReferenceText == "" {
		return errors.MissingReferenceText(slotID)
	}

	st.state = next
	st.status = "Rating..."
	token := uuid.New().String()
	st.pendingRating = token
	c.emitLocked(st)

	gen := c.generation
	ref := st.recording.Ref
	refText := st.slot.ReferenceText
	meta := c.meta

	go func() {
		rating, err := c.scoring.Rate(context.Background(), ref, refText, meta)
		c.applyRating(gen, slotID, token, rating, err)
	}()
	return nil
}

func (c *Controller) applyRating(gen int, slotID, token string, rating Rating, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.staleGuardLocked(gen, slotID)
	if !ok || st.pendingRating != token || st.state != StateRating {
		// The take was replaced while the call was in flight. Refs are
		// stable per slot, so only the token identifies the take.
		c.log.Debug().Str("slot_id", slotID).Msg("Dropping stale rating result")
		return
	}
	st.pendingRating = ""

	if err != nil {
		st.state = StateSaved
		st.rating = nil
		st.status = "Rating failed: " + err.Error()
		c.log.Error().Err(err).Str("slot_id", slotID).Msg("Rating failed")
		c.emitLocked(st)
		return
	}

	st.state = StateRated
	st.rating = &rating
	st.recognized = rating.RecognizedText
	st.status = "Rated"
	c.log.Info().
		Str("slot_id", slotID).
		Float64("total_score", rating.TotalScore).
		Msg("Recording rated")
	c.emitLocked(st)
}

// Transcribe requests recognition of the slot's current recording
// without scoring it. It never changes the slot state, only the
// displayed recognized text, and may be invoked repeatedly.
func (c *Controller) Transcribe(slotID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.slotLocked(slotID)
	if err != nil {
		return err
	}
	if st.recording == nil {
		return errors.New(errors.ErrNotFound, "no recording found to transcribe")
	}

	st.status = "Transcribing..."
	token := uuid.New().String()
	st.pendingTranscription = token
	c.emitLocked(st)

	gen := c.generation
	ref := st.recording.Ref
	meta := c.meta

	go func() {
		text, err := c.stt.Transcribe(context.Background(), ref, meta)
		c.applyTranscription(gen, slotID, token, text, err)
	}()
	return nil
}

func (c *Controller) applyTranscription(gen int, slotID, token, text string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.staleGuardLocked(gen, slotID)
	if !ok || st.pendingTranscription != token {
		c.log.Debug().Str("slot_id", slotID).Msg("Dropping stale transcription result")
		return
	}
	st.pendingTranscription = ""

	if err != nil {
		st.status = "Transcription failed: " + err.Error()
		c.log.Error().Err(err).Str("slot_id", slotID).Msg("Transcription failed")
		c.emitLocked(st)
		return
	}

	st.recognized = text
	st.status = "Transcribed"
	c.emitLocked(st)
}

// SynthesizeReference generates reference audio for a passage slot that
// has none. Already-synthesized passages return the existing reference.
func (c *Controller) SynthesizeReference(ctx context.Context, slotID string) (string, error) {
	c.mu.Lock()
	st, err := c.slotLocked(slotID)
	if err != nil {
		c.mu.Unlock()
		return "", err
	}
	if existing := st.slot.TtsAudioRef; existing != "" {
		c.mu.Unlock()
		return existing, nil
	}
	gen := c.generation
	meta := c.meta
	c.mu.Unlock()

	ref, err := c.tts.Synthesize(ctx, slotID, meta)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.staleGuardLocked(gen, slotID); ok {
		st.slot.TtsAudioRef = ref
		c.emitLocked(st)
	}
	return ref, nil
}

// Artifact returns the local artifact of a slot for instant playback.
func (c *Controller) Artifact(slotID string) (capture.Artifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.slots[slotID]
	if !ok || st.artifact == nil {
		return capture.Artifact{}, false
	}
	return *st.artifact, true
}

// Snapshot returns the render-ready view of one slot.
func (c *Controller) Snapshot(slotID string) (SlotSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, err := c.slotLocked(slotID)
	if err != nil {
		return SlotSnapshot{}, err
	}
	return c.snapshotLocked(st), nil
}

// Snapshots returns all slots in content order.
func (c *Controller) Snapshots() []SlotSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotsLocked()
}

func (c *Controller) slotLocked(slotID string) (*slotState, error) {
	st, ok := c.slots[slotID]
	if !ok {
		return nil, errors.NotFound("slot " + slotID)
	}
	return st, nil
}

// staleGuardLocked checks a completion against the current generation
// and slot set. Content switches invalidate everything in flight.
func (c *Controller) staleGuardLocked(gen int, slotID string) (*slotState, bool) {
	if gen != c.generation {
		return nil, false
	}
	st, ok := c.slots[slotID]
	return st, ok
}

func (c *Controller) snapshotsLocked() []SlotSnapshot {
	out := make([]SlotSnapshot, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.snapshotLocked(c.slots[id]))
	}
	return out
}

func (c *Controller) snapshotLocked(st *slotState) SlotSnapshot {
	snap := SlotSnapshot{
		ID:                st.slot.ID,
		State:             st.state,
		Status:            st.status,
		ReferenceText:     st.slot.ReferenceText,
		ReferenceAudioRef: st.slot.ReferenceAudioRef,
		TtsAudioRef:       st.slot.TtsAudioRef,
		RecognizedText:    st.recognized,
		Rating:            st.rating,
		HasArtifact:       st.artifact != nil,
	}
	if st.recording != nil {
		snap.RecordingRef = st.recording.Ref
	}
	return snap
}

func (c *Controller) emitLocked(st *slotState) {
	c.notifier.SlotChanged(c.snapshotLocked(st))
}
