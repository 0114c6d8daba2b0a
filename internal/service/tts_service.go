package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/windfall/fgl_practice/internal/client"
	"github.com/windfall/fgl_practice/internal/errors"
	"github.com/windfall/fgl_practice/internal/repository"
	"github.com/windfall/fgl_practice/internal/session"
)

// TtsService generates reference audio for shadowing passages that
// have neither author audio nor a previous synthesis.
type TtsService struct {
	foundry    *client.FoundryClient
	store      ObjectStore
	paragraphs repository.ParagraphRepository
	log        zerolog.Logger
}

// NewTtsService creates a new TTS service.
func NewTtsService(
	foundry *client.FoundryClient,
	store ObjectStore,
	paragraphs repository.ParagraphRepository,
	log zerolog.Logger,
) *TtsService {
	return &TtsService{
		foundry:    foundry,
		store:      store,
		paragraphs: paragraphs,
		log:        log,
	}
}

// Synthesize renders a paragraph's text as MP3, stores it and records
// the ref. Calling it again for an already-synthesized paragraph
// returns the existing ref without another synthesis.
func (s *TtsService) Synthesize(ctx context.Context, slotID string, meta session.Meta) (string, error) {
	if s.foundry == nil {
		return "", errors.New(errors.ErrTts, "tts client not configured")
	}
	if s.store == nil {
		return "", errors.New(errors.ErrTts, "object store not configured")
	}

	id, err := strconv.ParseInt(slotID, 10, 64)
	if err != nil {
		return "", errors.Validation(fmt.Sprintf("invalid paragraph id %q", slotID))
	}

	paragraph, err := s.paragraphs.GetByID(ctx, id)
	if err != nil {
		return "", errors.Wrap(errors.ErrNotFound, "paragraph not found", err)
	}
	if existing := paragraph.TtsAudioPath; existing != nil && *existing != "" {
		return *existing, nil
	}
	if strings.TrimSpace(paragraph.Content) == "" {
		return "", errors.Validation("paragraph has no text to synthesize")
	}

	audioData, err := s.foundry.Synthesize(ctx, paragraph.Content)
	if err != nil {
		return "", err
	}

	ref := fmt.Sprintf("%s/chunk_%d_tts.mp3", ttsAudioPrefix, id)
	if err := s.store.Upload(ctx, ref, audioData, "audio/mpeg"); err != nil {
		return "", errors.Wrap(errors.ErrStorage, "failed to store tts audio", err)
	}
	if err := s.paragraphs.SetTtsAudioPath(ctx, id, ref); err != nil {
		return "", errors.Wrap(errors.ErrDatabase, "failed to record tts ref", err)
	}

	s.log.Info().Int64("paragraph_id", id).Str("ref", ref).Msg("Reference audio synthesized")
	return ref, nil
}
