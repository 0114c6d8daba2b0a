package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/windfall/fgl_practice/internal/errors"
)

// FoundryClient wraps an Azure AI Foundry project's OpenAI deployments:
// one transcription model and one text-to-speech model.
type FoundryClient struct {
	client     *openai.Client
	model      string
	endpoint   string
	apiKey     string
	ttsModel   string
	ttsVoice   string
	apiVersion string
	httpClient *http.Client
}

// NewFoundryClient creates a client for the given Foundry project
// endpoint. model is the transcription deployment, ttsModel and
// ttsVoice drive speech synthesis.
func NewFoundryClient(endpoint, apiKey, model, ttsModel, ttsVoice, apiVersion string) *FoundryClient {
	cfg := openai.DefaultAzureConfig(apiKey, endpoint)
	if apiVersion != "" {
		cfg.APIVersion = apiVersion
	}

	return &FoundryClient{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		ttsModel:   ttsModel,
		ttsVoice:   ttsVoice,
		apiVersion: cfg.APIVersion,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Transcribe sends WAV audio to the transcription deployment and
// returns the recognized text.
func (c *FoundryClient) Transcribe(ctx context.Context, audioData []byte) (string, error) {
	if c.apiKey == "" || c.endpoint == "" {
		return "", errors.New(errors.ErrTranscription, "Foundry credentials not configured")
	}

	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		Reader:   bytes.NewReader(audioData),
		FilePath: "recording.wav",
	})
	if err != nil {
		return "", errors.Wrap(errors.ErrTranscription, "transcription request failed", err)
	}
	return resp.Text, nil
}

// Synthesize renders text as MP3 audio through the TTS deployment.
// go-openai has no Azure speech route, so this one call goes over REST.
func (c *FoundryClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if c.apiKey == "" || c.endpoint == "" {
		return nil, errors.New(errors.ErrTts, "Foundry credentials not configured")
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/audio/speech?api-version=%s",
		c.endpoint, c.ttsModel, c.apiVersion)

	payload, err := json.Marshal(map[string]string{
		"model":           c.ttsModel,
		"input":           text,
		"voice":           c.ttsVoice,
		"response_format": "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrTts, "speech request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, errors.New(errors.ErrTts,
			fmt.Sprintf("foundry tts api error %d: %s", resp.StatusCode, string(body)))
	}

	return io.ReadAll(resp.Body)
}
