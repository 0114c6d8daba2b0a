package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/windfall/fgl_practice/internal/client"
	"github.com/windfall/fgl_practice/internal/errors"
	"github.com/windfall/fgl_practice/internal/repository"
	"github.com/windfall/fgl_practice/internal/session"
)

// TranscriptionService recognizes stored recordings without scoring
// them, and remembers the text for flashcard recordings.
type TranscriptionService struct {
	foundry *client.FoundryClient
	store   ObjectStore
	words   repository.WordRepository
	log     zerolog.Logger
}

// NewTranscriptionService creates a new transcription service.
func NewTranscriptionService(
	foundry *client.FoundryClient,
	store ObjectStore,
	words repository.WordRepository,
	log zerolog.Logger,
) *TranscriptionService {
	return &TranscriptionService{
		foundry: foundry,
		store:   store,
		words:   words,
		log:     log,
	}
}

// Transcribe downloads the recording and returns the recognized text.
// Flashcard transcriptions are persisted per register; shadowing has no
// transcription column, its text is session-only.
func (s *TranscriptionService) Transcribe(ctx context.Context, recordingRef string, meta session.Meta) (string, error) {
	if s.foundry == nil {
		return "", errors.New(errors.ErrTranscription, "transcription client not configured")
	}
	if s.store == nil {
		return "", errors.New(errors.ErrTranscription, "object store not configured")
	}

	audioData, err := s.store.Download(ctx, recordingRef)
	if err != nil {
		return "", errors.Wrap(errors.ErrStorage, "failed to fetch recording", err)
	}

	text, err := s.foundry.Transcribe(ctx, audioData)
	if err != nil {
		return "", err
	}

	if meta.Source == session.SourceFlashcard && s.words != nil {
		if register := registerFromRef(recordingRef); register != "" {
			if err := s.words.SetTranscription(ctx, meta.Username, meta.Word, meta.Pos, meta.Level, register, text); err != nil {
				s.log.Error().Err(err).Str("ref", recordingRef).Msg("Failed to persist transcription")
			}
		}
	}

	s.log.Info().Str("ref", recordingRef).Msg("Recording transcribed")
	return text, nil
}
