package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/windfall/fgl_practice/internal/errors"
)

// AzureSpeechClient wraps the Azure AI Speech short-audio REST API with
// pronunciation assessment enabled.
type AzureSpeechClient struct {
	apiKey   string
	region   string
	language string
	client   *http.Client
}

// NewAzureSpeechClient creates a new Azure Speech client.
func NewAzureSpeechClient(apiKey, region, language string) *AzureSpeechClient {
	if language == "" {
		language = "en-US"
	}
	return &AzureSpeechClient{
		apiKey:   apiKey,
		region:   region,
		language: language,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SpeechAssessment is the detailed-format recognition result.
type SpeechAssessment struct {
	RecognitionStatus string       `json:"RecognitionStatus"`
	DisplayText       string       `json:"DisplayText"`
	NBest             []NBestEntry `json:"NBest"`
}

// NBestEntry is one recognition hypothesis with its assessment scores.
type NBestEntry struct {
	Display                 string         `json:"Display"`
	PronunciationAssessment ScoreBlock     `json:"PronunciationAssessment"`
	Words                   []AssessedWord `json:"Words"`
}

// ScoreBlock carries the utterance-level scores on the HundredMark scale.
type ScoreBlock struct {
	AccuracyScore     float64 `json:"AccuracyScore"`
	FluencyScore      float64 `json:"FluencyScore"`
	CompletenessScore float64 `json:"CompletenessScore"`
	ProsodyScore      float64 `json:"ProsodyScore"`
	PronScore         float64 `json:"PronScore"`
}

// AssessedWord is one recognized word with its per-word assessment.
type AssessedWord struct {
	Word                    string    `json:"Word"`
	PronunciationAssessment WordScore `json:"PronunciationAssessment"`
}

// WordScore carries the per-word accuracy and miscue classification.
// ErrorType is "None", "Mispronunciation", "Omission" or "Insertion".
type WordScore struct {
	AccuracyScore float64 `json:"AccuracyScore"`
	ErrorType     string  `json:"ErrorType"`
}

// Best returns the primary hypothesis.
func (a *SpeechAssessment) Best() (NBestEntry, bool) {
	if len(a.NBest) == 0 {
		return NBestEntry{}, false
	}
	return a.NBest[0], true
}

// Assess sends WAV audio to the short-audio endpoint and grades it
// against referenceText. Miscue detection (Insertion, Omission,
// Substitution) and prosody scoring are always enabled; miscue is only
// fully supported for en-US in the REST API.
func (c *AzureSpeechClient) Assess(ctx context.Context, audioData []byte, referenceText string) (*SpeechAssessment, error) {
	if c.apiKey == "" || c.region == "" {
		return nil, errors.New(errors.ErrScoring, "Azure Speech credentials not configured")
	}

	// Short Audio API (REST)
	// Docs: https://learn.microsoft.com/en-us/azure/ai-services/speech-service/rest-speech-to-text-short
	u := url.URL{
		Scheme: "https",
		Host:   fmt.Sprintf("%s.stt.speech.microsoft.com", c.region),
		Path:   "/speech/recognition/conversation/cognitiveservices/v1",
	}
	q := u.Query()
	q.Set("language", c.language)
	q.Set("format", "detailed")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "POST", u.String(), bytes.NewReader(audioData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	pronAssessmentParams := map[string]interface{}{
		"ReferenceText":           referenceText,
		"GradingSystem":           "HundredMark",
		"Granularity":             "Phoneme",
		"Dimension":               "Comprehensive",
		"EnableMiscue":            true,
		"EnableProsodyAssessment": true,
	}
	jsonBytes, err := json.Marshal(pronAssessmentParams)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	// The assessment config travels base64-encoded in a header.
	req.Header.Set("Pronunciation-Assessment", base64.StdEncoding.EncodeToString(jsonBytes))
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)
	req.Header.Set("Content-Type", "audio/wav; codecs=audio/pcm; samplerate=16000")
	req.Header.Set("Accept", "application/json;text/xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrScoring, "failed to reach speech service", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, errors.New(errors.ErrScoring,
			fmt.Sprintf("azure speech api error %d: %s", resp.StatusCode, string(body)))
	}

	var result SpeechAssessment
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.NBest) > 0 {
		result.NBest[0].Words = DeduplicateWords(result.NBest[0].Words)
	}
	return &result, nil
}

// DeduplicateWords handles words the service returns more than once.
// When the same word appears with an "Insertion" miscue and again with
// another error type, only the Insertion entry is kept, carrying the
// average AccuracyScore of the group.
func DeduplicateWords(words []AssessedWord) []AssessedWord {
	groups := make(map[string][]int)
	for i, w := range words {
		groups[w.Word] = append(groups[w.Word], i)
	}

	remove := make(map[int]bool)
	for _, indices := range groups {
		if len(indices) <= 1 {
			continue
		}

		insertionIndex := -1
		total := 0.0
		for _, idx := range indices {
			if words[idx].PronunciationAssessment.ErrorType == "Insertion" {
				insertionIndex = idx
			}
			total += words[idx].PronunciationAssessment.AccuracyScore
		}
		if insertionIndex == -1 {
			continue
		}

		words[insertionIndex].PronunciationAssessment.AccuracyScore = total / float64(len(indices))
		for _, idx := range indices {
			if idx != insertionIndex {
				remove[idx] = true
			}
		}
	}

	if len(remove) == 0 {
		return words
	}
	out := make([]AssessedWord, 0, len(words)-len(remove))
	for i, w := range words {
		if !remove[i] {
			out = append(out, w)
		}
	}
	return out
}
