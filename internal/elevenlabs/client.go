// Package elevenlabs provides an HTTP client for the ElevenLabs
// text-to-speech and speech-to-speech dubbing APIs.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/awarelab/scenario-api/internal/provider"
)

// Static errors for ElevenLabs client operations.
var (
	// ErrAPIKeyRequired is returned when no API key is provided.
	ErrAPIKeyRequired = errors.New("elevenlabs: API key is required")
	// ErrVoiceIDRequired is returned when the voice ID is not provided.
	ErrVoiceIDRequired = errors.New("elevenlabs: voice ID is required")
	// ErrNoDubbingID is returned when the dubbing response contains no ID.
	ErrNoDubbingID = errors.New("elevenlabs: dubbing response contained no dubbing ID")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("elevenlabs: server error")
	// ErrRequestFailed is returned when a request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("elevenlabs: request failed")
)

// modelID is the multilingual model used for Korean narration and scripts.
const modelID = "eleven_multilingual_v2"

// Client is an HTTP client for the ElevenLabs API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// NewClient creates a new ElevenLabs client.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}

	c := &Client{
		apiKey:     apiKey,
		baseURL:    "https://api.elevenlabs.io",
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// ttsRequest is the body for the text-to-speech endpoint.
type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed"`
}

// dubResponse is the response from the dubbing create endpoint.
type dubResponse struct {
	DubbingID           string  `json:"dubbing_id"`
	ExpectedDurationSec float64 `json:"expected_duration_sec,omitempty"`
}

// dubStatusResponse is the response from the dubbing status endpoint.
type dubStatusResponse struct {
	DubbingID string `json:"dubbing_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// Synthesize renders text as speech in the given cloned voice and returns
// the MP3 bytes.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string, settings provider.VoiceSettings) ([]byte, error) {
	if voiceID == "" {
		return nil, ErrVoiceIDRequired
	}

	reqBody := ttsRequest{
		Text:    text,
		ModelID: modelID,
		VoiceSettings: voiceSettings{
			Stability:       settings.Stability,
			SimilarityBoost: settings.SimilarityBoost,
			Speed:           settings.Speed,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doBinary(req)
}

// CreateDub starts a speech-to-speech dubbing job for the given audio file
// and returns the dubbing ID to poll. Source and target language are both
// Korean; the dubbing endpoint accepts no voice ID, so the output voice is
// chosen by the service, not the caller.
func (c *Client) CreateDub(ctx context.Context, filename string, audio []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: create form file: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return "", fmt.Errorf("elevenlabs: write form file: %w", err)
	}

	fields := map[string]string{
		"target_lang":           "ko",
		"source_lang":           "ko",
		"num_speakers":          strconv.Itoa(1),
		"watermark":             "false",
		"drop_background_audio": "true",
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return "", fmt.Errorf("elevenlabs: write form field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("elevenlabs: close form: %w", err)
	}

	url := c.baseURL + "/v1/dubbing"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	body, err := c.doBinary(req)
	if err != nil {
		return "", err
	}

	var resp dubResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("elevenlabs: unmarshal response: %w", err)
	}
	if resp.DubbingID == "" {
		return "", ErrNoDubbingID
	}

	return resp.DubbingID, nil
}

// DubStatus checks a dubbing job and maps its state to the common provider
// statuses ("dubbed" is the provider's completed state).
func (c *Client) DubStatus(ctx context.Context, dubbingID string) (provider.PollResult, error) {
	url := fmt.Sprintf("%s/v1/dubbing/%s", c.baseURL, dubbingID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return provider.PollResult{}, fmt.Errorf("elevenlabs: create request: %w", err)
	}

	body, err := c.doBinary(req)
	if err != nil {
		return provider.PollResult{}, err
	}

	var resp dubStatusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return provider.PollResult{}, fmt.Errorf("elevenlabs: unmarshal response: %w", err)
	}

	switch resp.Status {
	case "dubbed":
		return provider.PollResult{Status: provider.StatusCompleted}, nil
	case "failed":
		return provider.PollResult{Status: provider.StatusFailed, Reason: resp.Error}, nil
	case "dubbing":
		return provider.PollResult{Status: provider.StatusProcessing}, nil
	default:
		return provider.PollResult{Status: provider.StatusQueued}, nil
	}
}

// DubAudio retrieves the dubbed audio for the given language.
func (c *Client) DubAudio(ctx context.Context, dubbingID, lang string) ([]byte, error) {
	url := fmt.Sprintf("%s/v1/dubbing/%s/audio/%s", c.baseURL, dubbingID, lang)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: create request: %w", err)
	}

	return c.doBinary(req)
}

// doBinary executes req with authentication and returns the raw response body.
func (c *Client) doBinary(req *http.Request) ([]byte, error) {
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(body))
	}

	return body, nil
}
