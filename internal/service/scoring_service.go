package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/windfall/fgl_practice/internal/client"
	"github.com/windfall/fgl_practice/internal/errors"
	"github.com/windfall/fgl_practice/internal/repository"
	"github.com/windfall/fgl_practice/internal/session"
)

const (
	// Redis key prefix for cached assessments
	ratingCacheKeyPrefix = "rating:"
	// TTL for cached assessments
	ratingCacheTTL = time.Hour

	// Words below this accuracy count as mispronounced even when the
	// service labels them "None".
	mispronunciationFloor = 60.0
)

// RatingCache holds recent assessments keyed by recording ref. The
// Redis client satisfies it; UploadService evicts an entry whenever the
// recording under that ref is replaced.
type RatingCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// ScoringService grades stored recordings with the Azure Speech
// pronunciation assessment and persists each result as a report.
type ScoringService struct {
	speech  *client.AzureSpeechClient
	store   ObjectStore
	reports repository.ReportRepository
	cache   RatingCache
	log     zerolog.Logger
}

// NewScoringService creates a new scoring service. cache may be nil.
func NewScoringService(
	speech *client.AzureSpeechClient,
	store ObjectStore,
	reports repository.ReportRepository,
	cache RatingCache,
	log zerolog.Logger,
) *ScoringService {
	return &ScoringService{
		speech:  speech,
		store:   store,
		reports: reports,
		cache:   cache,
		log:     log,
	}
}

// Rate downloads the recording, runs the assessment against the
// reference text and returns the aggregated scores. Identical requests
// within the cache TTL are served from Redis; saving a new recording
// under a ref evicts that ref's cache entry, so a cached rating always
// matches the stored audio.
func (s *ScoringService) Rate(ctx context.Context, recordingRef, referenceText string, meta session.Meta) (session.Rating, error) {
	if s.speech == nil {
		return session.Rating{}, errors.New(errors.ErrScoring, "speech client not configured")
	}
	if s.store == nil {
		return session.Rating{}, errors.New(errors.ErrScoring, "object store not configured")
	}

	cacheKey := ratingCacheKeyPrefix + recordingRef
	if s.cache != nil {
		var cached session.Rating
		if ok, err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil && ok {
			s.log.Debug().Str("ref", recordingRef).Msg("Rating served from cache")
			return cached, nil
		}
	}

	audioData, err := s.store.Download(ctx, recordingRef)
	if err != nil {
		return session.Rating{}, errors.Wrap(errors.ErrStorage, "failed to fetch recording", err)
	}

	assessment, err := s.speech.Assess(ctx, audioData, referenceText)
	if err != nil {
		return session.Rating{}, err
	}

	rating, err := BuildRating(assessment)
	if err != nil {
		return session.Rating{}, err
	}

	s.persistReport(ctx, recordingRef, rating, meta)

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, cacheKey, rating, ratingCacheTTL); err != nil {
			s.log.Warn().Err(err).Str("ref", recordingRef).Msg("Failed to cache rating")
		}
	}
	return rating, nil
}

// BuildRating aggregates a speech assessment into the scores shown to
// the user. The total is the sum of the four component scores.
func BuildRating(assessment *client.SpeechAssessment) (session.Rating, error) {
	best, ok := assessment.Best()
	if !ok || assessment.RecognitionStatus != "Success" {
		return session.Rating{}, errors.New(errors.ErrScoring, "no speech recognized")
	}
	if len(best.Words) == 0 {
		return session.Rating{}, errors.New(errors.ErrScoring, "no words detected in speech")
	}

	scores := best.PronunciationAssessment
	rating := session.Rating{
		PronunciationScore: scores.PronScore,
		AccuracyScore:      scores.AccuracyScore,
		FluencyScore:       scores.FluencyScore,
		ProsodyScore:       scores.ProsodyScore,
		TotalScore:         scores.PronScore + scores.AccuracyScore + scores.FluencyScore + scores.ProsodyScore,
		RecognizedText:     assessment.DisplayText,
	}
	if rating.RecognizedText == "" {
		rating.RecognizedText = best.Display
	}

	for _, w := range best.Words {
		wa := w.PronunciationAssessment
		if wa.ErrorType == "Mispronunciation" || wa.AccuracyScore < mispronunciationFloor {
			rating.Mispronunciations = append(rating.Mispronunciations, session.Mispronunciation{
				Word:     w.Word,
				Accuracy: wa.AccuracyScore,
				Error:    wa.ErrorType,
			})
		}
	}
	return rating, nil
}

// persistReport writes the assessment to pronunciation_reports. Report
// persistence is best-effort: a failed insert never fails the rating.
func (s *ScoringService) persistReport(ctx context.Context, recordingRef string, rating session.Rating, meta session.Meta) {
	if s.reports == nil {
		return
	}

	misJSON, err := json.Marshal(rating.Mispronunciations)
	if err != nil {
		misJSON = []byte("[]")
	}

	speechType := meta.Source
	if register := registerFromRef(recordingRef); register != "" {
		speechType = register
	}

	report := &repository.Report{
		AudioID:            recordingRef,
		Username:           meta.Username,
		PronunciationScore: rating.PronunciationScore,
		AccuracyScore:      rating.AccuracyScore,
		FluencyScore:       rating.FluencyScore,
		ProsodyScore:       rating.ProsodyScore,
		TotalScore:         rating.TotalScore,
		RecognizedText:     rating.RecognizedText,
		Mispronunciations:  misJSON,
		SpeechType:         speechType,
		Source:             meta.Source,
	}
	if err := s.reports.Create(ctx, report); err != nil {
		s.log.Error().Err(err).Str("ref", recordingRef).Msg("Failed to persist pronunciation report")
	}
}

// History returns the user's recent reports for one recording target.
func (s *ScoringService) History(ctx context.Context, username, source, audioID string, limit int) ([]*repository.Report, error) {
	if s.reports == nil {
		return nil, errors.New(errors.ErrDatabase, "report repository not configured")
	}
	return s.reports.ListByAudio(ctx, username, source, audioID, limit)
}
