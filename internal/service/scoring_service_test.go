package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/windfall/fgl_practice/internal/client"
)

func assessment(status string, scores client.ScoreBlock, words ...client.AssessedWord) *client.SpeechAssessment {
	return &client.SpeechAssessment{
		RecognitionStatus: status,
		DisplayText:       "the quick brown fox",
		NBest: []client.NBestEntry{{
			Display:                 "the quick brown fox",
			PronunciationAssessment: scores,
			Words:                   words,
		}},
	}
}

func assessed(w, errType string, accuracy float64) client.AssessedWord {
	return client.AssessedWord{
		Word: w,
		PronunciationAssessment: client.WordScore{
			AccuracyScore: accuracy,
			ErrorType:     errType,
		},
	}
}

func TestBuildRatingSumsComponentScores(t *testing.T) {
	a := assessment("Success", client.ScoreBlock{
		PronScore:     80,
		AccuracyScore: 85,
		FluencyScore:  90,
		ProsodyScore:  75,
	}, assessed("fox", "None", 95))

	rating, err := BuildRating(a)

	require.NoError(t, err)
	require.Equal(t, 80.0, rating.PronunciationScore)
	require.Equal(t, 85.0, rating.AccuracyScore)
	require.Equal(t, 90.0, rating.FluencyScore)
	require.Equal(t, 75.0, rating.ProsodyScore)
	require.Equal(t, 330.0, rating.TotalScore)
	require.Equal(t, "the quick brown fox", rating.RecognizedText)
	require.Empty(t, rating.Mispronunciations)
}

func TestBuildRatingFlagsMispronouncedWords(t *testing.T) {
	a := assessment("Success", client.ScoreBlock{PronScore: 70},
		assessed("the", "None", 95),
		assessed("quick", "Mispronunciation", 82),
		assessed("brown", "None", 45),
	)

	rating, err := BuildRating(a)

	require.NoError(t, err)
	require.Len(t, rating.Mispronunciations, 2)
	require.Equal(t, "quick", rating.Mispronunciations[0].Word)
	require.Equal(t, "Mispronunciation", rating.Mispronunciations[0].Error)
	// Below the accuracy floor even though the service labeled it "None".
	require.Equal(t, "brown", rating.Mispronunciations[1].Word)
	require.Equal(t, 45.0, rating.Mispronunciations[1].Accuracy)
}

func TestBuildRatingRejectsFailedRecognition(t *testing.T) {
	a := assessment("InitialSilenceTimeout", client.ScoreBlock{})

	_, err := BuildRating(a)

	require.EqualError(t, err, "SCORING_ERROR: no speech recognized")
}

func TestBuildRatingRejectsEmptyHypothesisList(t *testing.T) {
	a := &client.SpeechAssessment{RecognitionStatus: "Success"}

	_, err := BuildRating(a)

	require.EqualError(t, err, "SCORING_ERROR: no speech recognized")
}

func TestBuildRatingRejectsWordlessResult(t *testing.T) {
	a := assessment("Success", client.ScoreBlock{PronScore: 100})

	_, err := BuildRating(a)

	require.EqualError(t, err, "SCORING_ERROR: no words detected in speech")
}

func TestBuildRatingFallsBackToHypothesisDisplay(t *testing.T) {
	a := assessment("Success", client.ScoreBlock{}, assessed("fox", "None", 90))
	a.DisplayText = ""

	rating, err := BuildRating(a)

	require.NoError(t, err)
	require.Equal(t, "the quick brown fox", rating.RecognizedText)
}
