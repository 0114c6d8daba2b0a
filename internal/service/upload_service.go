package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/windfall/fgl_practice/internal/capture"
	"github.com/windfall/fgl_practice/internal/errors"
	"github.com/windfall/fgl_practice/internal/repository"
	"github.com/windfall/fgl_practice/internal/session"
)

// Recording refs follow the layout the rest of the audio library uses.
const (
	userAudioPrefix = "audios/audios_user"
	ttsAudioPrefix  = "audios/audio_book_tts"
)

// ObjectStore is the storage backend recordings and generated audio
// live in. Both the R2 and GCS clients satisfy it.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
}

// UploadService stores finalized recordings and persists their refs so
// a later session can resume from them.
type UploadService struct {
	store      ObjectStore
	words      repository.WordRepository
	paragraphs repository.ParagraphRepository
	cache      RatingCache
	log        zerolog.Logger
}

// NewUploadService creates a new upload service. cache may be nil.
func NewUploadService(
	store ObjectStore,
	words repository.WordRepository,
	paragraphs repository.ParagraphRepository,
	cache RatingCache,
	log zerolog.Logger,
) *UploadService {
	return &UploadService{
		store:      store,
		words:      words,
		paragraphs: paragraphs,
		cache:      cache,
		log:        log,
	}
}

// Save uploads the artifact and records its ref against the word or
// paragraph, replacing any previous recording for the slot.
func (s *UploadService) Save(ctx context.Context, slotID string, artifact capture.Artifact, meta session.Meta) (session.UploadedRecording, error) {
	if s.store == nil {
		return session.UploadedRecording{}, errors.New(errors.ErrStorage, "object store not configured")
	}

	key, err := s.keyForSlot(ctx, slotID, meta)
	if err != nil {
		return session.UploadedRecording{}, err
	}

	if err := s.store.Upload(ctx, key, artifact.Data, artifact.MimeType); err != nil {
		return session.UploadedRecording{}, errors.Wrap(errors.ErrUpload, "failed to store recording", err)
	}

	if err := s.persistRef(ctx, slotID, key, meta); err != nil {
		// The object is in storage; a ref we cannot persist is a failed
		// save, the artifact stays client-side for retry.
		return session.UploadedRecording{}, errors.Wrap(errors.ErrUpload, "failed to record upload", err)
	}

	// Refs are stable per slot, so the new audio invalidates any rating
	// cached for the previous take.
	if s.cache != nil {
		if err := s.cache.Delete(ctx, ratingCacheKeyPrefix+key); err != nil {
			s.log.Warn().Err(err).Str("ref", key).Msg("Failed to evict cached rating")
		}
	}

	s.log.Info().
		Str("slot_id", slotID).
		Str("ref", key).
		Int("bytes", artifact.Size()).
		Msg("Recording uploaded")

	return session.UploadedRecording{
		Ref:      key,
		MimeType: artifact.MimeType,
		SavedAt:  time.Now(),
	}, nil
}

func (s *UploadService) keyForSlot(ctx context.Context, slotID string, meta session.Meta) (string, error) {
	switch meta.Source {
	case session.SourceShadowing:
		return fmt.Sprintf("%s/shadowing_%s_user.wav", userAudioPrefix, slotID), nil
	case session.SourceFlashcard:
		card, err := s.words.GetCard(ctx, meta.Username, meta.Word, meta.Pos, meta.Level)
		if err != nil {
			return "", errors.Wrap(errors.ErrNotFound, "card not found for upload", err)
		}
		return fmt.Sprintf("%s/%04d_%s_user.wav", userAudioPrefix, card.ID, slotID), nil
	default:
		return "", errors.Validation(fmt.Sprintf("unknown content source %q", meta.Source))
	}
}

func (s *UploadService) persistRef(ctx context.Context, slotID, ref string, meta session.Meta) error {
	switch meta.Source {
	case session.SourceShadowing:
		id, err := strconv.ParseInt(slotID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid paragraph id %q: %w", slotID, err)
		}
		return s.paragraphs.SetUserAudioPath(ctx, id, ref)
	case session.SourceFlashcard:
		return s.words.SetUserAudio(ctx, meta.Username, meta.Word, meta.Pos, meta.Level, slotID, ref)
	default:
		return fmt.Errorf("unknown content source %q", meta.Source)
	}
}

// registerFromRef recovers the flashcard register from a recording ref,
// e.g. "audios/audios_user/0012_formal_user.wav".
func registerFromRef(ref string) string {
	if strings.HasSuffix(ref, "_"+SlotInformal+"_user.wav") {
		return SlotInformal
	}
	if strings.HasSuffix(ref, "_"+SlotFormal+"_user.wav") {
		return SlotFormal
	}
	return ""
}
