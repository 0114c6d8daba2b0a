package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/windfall/fgl_practice/internal/errors"
	"github.com/windfall/fgl_practice/internal/repository"
	"github.com/windfall/fgl_practice/internal/session"
)

// Flashcard slot IDs double as the register of the example sentence.
const (
	SlotFormal   = "formal"
	SlotInformal = "informal"
)

// ContentService resolves practice content into recordable slots and
// serves the browsing APIs (levels, cards, books, chapter structure).
type ContentService struct {
	words      repository.WordRepository
	paragraphs repository.ParagraphRepository
	log        zerolog.Logger
}

// NewContentService creates a new content service.
func NewContentService(
	words repository.WordRepository,
	paragraphs repository.ParagraphRepository,
	log zerolog.Logger,
) *ContentService {
	return &ContentService{
		words:      words,
		paragraphs: paragraphs,
		log:        log,
	}
}

// Levels returns the CEFR levels available for flashcards.
func (s *ContentService) Levels(ctx context.Context) ([]string, error) {
	return s.words.Levels(ctx)
}

// RandomCard draws the next unknown word for the user.
func (s *ContentService) RandomCard(ctx context.Context, username, level string) (*repository.Card, error) {
	card, err := s.words.RandomCard(ctx, username, level)
	if err != nil {
		return nil, errors.Wrap(errors.ErrNotFound, "no cards found", err)
	}
	return card, nil
}

// MarkKnown flags a word as known so it stops appearing for the user.
func (s *ContentService) MarkKnown(ctx context.Context, username, word, pos, level string) error {
	if word == "" {
		return errors.Validation("missing word")
	}
	return s.words.MarkKnown(ctx, username, word, pos, level)
}

// Books returns the books available for shadowing.
func (s *ContentService) Books(ctx context.Context) ([]string, error) {
	return s.paragraphs.Books(ctx)
}

// Structure returns a book's chapters and subtitles in reading order.
func (s *ContentService) Structure(ctx context.Context, book string) ([]repository.ChapterGroup, error) {
	return s.paragraphs.Structure(ctx, book)
}

// GetSlots resolves a content query into slots. Flashcards produce up
// to two register slots; shadowing produces one slot per paragraph of
// the requested page.
func (s *ContentService) GetSlots(ctx context.Context, q session.ContentQuery) ([]session.Slot, error) {
	switch q.Meta.Source {
	case session.SourceFlashcard:
		return s.cardSlots(ctx, q.Meta)
	case session.SourceShadowing:
		return s.paragraphSlots(ctx, q)
	default:
		return nil, errors.Validation(fmt.Sprintf("unknown content source %q", q.Meta.Source))
	}
}

func (s *ContentService) cardSlots(ctx context.Context, meta session.Meta) ([]session.Slot, error) {
	card, err := s.words.GetCard(ctx, meta.Username, meta.Word, meta.Pos, meta.Level)
	if err != nil {
		return nil, errors.Wrap(errors.ErrNotFound, "card not found", err)
	}

	// A register without an example sentence is still recordable; the
	// missing reference text only blocks rating.
	slots := []session.Slot{
		{
			ID:                   SlotFormal,
			ReferenceText:        deref(card.SentenceFormal),
			ReferenceAudioRef:    deref(card.AudioFormalPath),
			ExistingRecordingRef: deref(card.Progress.UserAudioFormalPath),
		},
		{
			ID:                   SlotInformal,
			ReferenceText:        deref(card.SentenceInformal),
			ReferenceAudioRef:    deref(card.AudioInformalPath),
			ExistingRecordingRef: deref(card.Progress.UserAudioInformalPath),
		},
	}
	return slots, nil
}

func (s *ContentService) paragraphSlots(ctx context.Context, q session.ContentQuery) ([]session.Slot, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = session.DefaultPageLimit
	}
	filter := repository.ParagraphFilter{
		Book:     q.Meta.Book,
		Chapter:  q.Meta.Chapter,
		Subtitle: q.Meta.Subtitle,
	}

	paragraphs, err := s.paragraphs.List(ctx, filter, limit, q.Offset)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to load paragraphs", err)
	}

	slots := make([]session.Slot, 0, len(paragraphs))
	for _, p := range paragraphs {
		slots = append(slots, session.Slot{
			ID:                   strconv.FormatInt(p.ID, 10),
			ReferenceText:        p.Content,
			ReferenceAudioRef:    deref(p.AudioPath),
			TtsAudioRef:          deref(p.TtsAudioPath),
			ExistingRecordingRef: deref(p.UserAudioPath),
		})
	}
	return slots, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
