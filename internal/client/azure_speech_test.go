package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/windfall/fgl_practice/internal/errors"
)

func word(w, errType string, accuracy float64) AssessedWord {
	return AssessedWord{
		Word: w,
		PronunciationAssessment: WordScore{
			AccuracyScore: accuracy,
			ErrorType:     errType,
		},
	}
}

func TestDeduplicateWordsKeepsInsertionWithGroupAverage(t *testing.T) {
	words := []AssessedWord{
		word("hello", "None", 90),
		word("world", "Insertion", 40),
		word("world", "Omission", 80),
	}

	out := DeduplicateWords(words)

	require.Len(t, out, 2)
	require.Equal(t, "hello", out[0].Word)
	require.Equal(t, "world", out[1].Word)
	require.Equal(t, "Insertion", out[1].PronunciationAssessment.ErrorType)
	require.InDelta(t, 60.0, out[1].PronunciationAssessment.AccuracyScore, 0.001)
}

func TestDeduplicateWordsLeavesUniqueWordsAlone(t *testing.T) {
	words := []AssessedWord{
		word("one", "None", 95),
		word("two", "Mispronunciation", 50),
	}

	out := DeduplicateWords(words)

	require.Equal(t, words, out)
}

func TestDeduplicateWordsIgnoresDuplicatesWithoutInsertion(t *testing.T) {
	// Repeated words in the reference text legitimately appear twice.
	words := []AssessedWord{
		word("very", "None", 90),
		word("very", "None", 85),
	}

	out := DeduplicateWords(words)

	require.Len(t, out, 2)
	require.Equal(t, 90.0, out[0].PronunciationAssessment.AccuracyScore)
	require.Equal(t, 85.0, out[1].PronunciationAssessment.AccuracyScore)
}

func TestBestReturnsPrimaryHypothesis(t *testing.T) {
	a := &SpeechAssessment{}
	_, ok := a.Best()
	require.False(t, ok)

	a.NBest = []NBestEntry{{Display: "first"}, {Display: "second"}}
	best, ok := a.Best()
	require.True(t, ok)
	require.Equal(t, "first", best.Display)
}

func TestAssessRequiresCredentials(t *testing.T) {
	c := NewAzureSpeechClient("", "", "en-US")

	_, err := c.Assess(context.Background(), []byte{1, 2, 3}, "hello")

	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrScoring))
}
