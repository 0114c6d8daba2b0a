package session

import "time"

// Slot identifies one recordable unit of content: a flashcard sentence
// variant ("formal"/"informal") or a numbered shadowing passage.
type Slot struct {
	ID            string `json:"slot_id"`
	ReferenceText string `json:"reference_text,omitempty"`

	// ExistingRecordingRef is a server-side path saved in an earlier
	// session, if the slot was already recorded.
	ExistingRecordingRef string `json:"existing_recording_ref,omitempty"`

	// ReferenceAudioRef points at the author/book audio for a passage.
	ReferenceAudioRef string `json:"reference_audio_ref,omitempty"`

	// TtsAudioRef points at generated reference audio, when present.
	TtsAudioRef string `json:"tts_audio_ref,omitempty"`
}

// UploadedRecording is the stable server-side reference to a slot's
// current recording. Exactly one is current per slot at any time.
type UploadedRecording struct {
	Ref      string    `json:"ref"`
	MimeType string    `json:"mime_type,omitempty"`
	SavedAt  time.Time `json:"saved_at"`
}

// Mispronunciation is one flagged word in a rating.
type Mispronunciation struct {
	Word     string  `json:"word"`
	Accuracy float64 `json:"accuracy"`
	Error    string  `json:"error,omitempty"`
}

// Rating is a pronunciation assessment result tied to one uploaded
// recording. It is cleared whenever that recording is replaced.
type Rating struct {
	PronunciationScore float64            `json:"pronunciation_score"`
	AccuracyScore      float64            `json:"accuracy_score"`
	FluencyScore       float64            `json:"fluency_score"`
	ProsodyScore       float64            `json:"prosody_score"`
	TotalScore         float64            `json:"total_score"`
	RecognizedText     string             `json:"recognized_text"`
	Mispronunciations  []Mispronunciation `json:"mispronunciations"`
}

// Meta is the content context that travels with every gateway call.
type Meta struct {
	Username string `json:"username,omitempty"`
	Source   string `json:"source,omitempty"` // "flashcard" or "shadowing"

	// Flashcard identity
	Word  string `json:"word,omitempty"`
	Pos   string `json:"pos,omitempty"`
	Level string `json:"level,omitempty"`

	// Shadowing identity
	Book     string `json:"book,omitempty"`
	Chapter  string `json:"chapter,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
}

// SourceFlashcard and SourceShadowing are the two content sources.
const (
	SourceFlashcard = "flashcard"
	SourceShadowing = "shadowing"
)

// SlotSnapshot is the render-ready view of one slot.
type SlotSnapshot struct {
	ID                string  `json:"slot_id"`
	State             State   `json:"state"`
	Status            string  `json:"status,omitempty"`
	ReferenceText     string  `json:"reference_text,omitempty"`
	ReferenceAudioRef string  `json:"reference_audio_ref,omitempty"`
	TtsAudioRef       string  `json:"tts_audio_ref,omitempty"`
	RecordingRef      string  `json:"recording_ref,omitempty"`
	RecognizedText    string  `json:"recognized_text,omitempty"`
	Rating            *Rating `json:"rating,omitempty"`
	HasArtifact       bool    `json:"has_artifact"`
}
