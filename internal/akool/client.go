package akool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/awarelab/scenario-api/internal/provider"
)

// Static errors for Akool client operations.
var (
	// ErrCredentialsNotConfigured is returned when neither a direct API key
	// nor a clientId/clientSecret pair is available.
	ErrCredentialsNotConfigured = errors.New("akool: credentials not configured")
	// ErrTokenRejected is returned when the getToken endpoint rejects the
	// configured credentials.
	ErrTokenRejected = errors.New("akool: token request rejected")
	// ErrBusinessCode is returned when the provider answers HTTP 200 with a
	// non-success business code.
	ErrBusinessCode = errors.New("akool: non-success business code")
	// ErrNoFaceDetected is returned when the detect endpoint finds no face
	// in the supplied image.
	ErrNoFaceDetected = errors.New("akool: no face detected in image")
	// ErrNoTaskID is returned when a submit response carries neither a
	// result nor a task ID to poll.
	ErrNoTaskID = errors.New("akool: submit response contained no task ID")
	// ErrServerError is returned when the provider returns a 5xx status code.
	ErrServerError = errors.New("akool: server error")
	// ErrRequestFailed is returned when a request fails with a non-2xx
	// status code.
	ErrRequestFailed = errors.New("akool: request failed")
)

// Client is an HTTP client for the Akool open API. It serves both face-swap
// and talking-photo operations behind the provider ports.
type Client struct {
	clientID     string
	clientSecret string
	apiKey       string
	baseURL      string
	detectURL    string
	httpClient   *http.Client
	tokens       *TokenCache
	now          func() time.Time
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithAPIKey sets a direct API key, bypassing the token exchange.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL for the open API.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithDetectURL sets a custom URL for the face-detect service, which lives
// on a separate host from the open API.
func WithDetectURL(url string) Option {
	return func(c *Client) {
		c.detectURL = url
	}
}

// WithClock sets the time source used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new Akool client authenticating with the given
// clientId/clientSecret pair. A direct API key may be supplied via
// WithAPIKey instead, in which case the pair may be empty.
func NewClient(clientID, clientSecret string, opts ...Option) (*Client, error) {
	c := &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      "https://openapi.akool.com",
		detectURL:    "https://sg3.akool.com/detect",
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		tokens:       &TokenCache{},
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" && (c.clientID == "" || c.clientSecret == "") {
		return nil, ErrCredentialsNotConfigured
	}

	return c, nil
}

// DetectFace returns the facial-landmark descriptor for the face in imageURL.
func (c *Client) DetectFace(ctx context.Context, imageURL string) (provider.FaceDescriptor, error) {
	var resp detectResponse
	if err := c.doJSON(ctx, http.MethodPost, c.detectURL, "", detectRequest{ImageURL: imageURL}, &resp); err != nil {
		return "", fmt.Errorf("akool: detect face: %w", err)
	}

	if resp.LandmarksStr == "" {
		if resp.ErrorMsg != "" {
			return "", fmt.Errorf("%w: %s", ErrNoFaceDetected, resp.ErrorMsg)
		}
		return "", ErrNoFaceDetected
	}

	return provider.FaceDescriptor(resp.LandmarksStr), nil
}

// SubmitSwap submits a high-quality face-swap job. The target is the base
// template image being modified; the source carries the replacement face.
func (c *Client) SubmitSwap(ctx context.Context, target, source provider.FaceImage) (provider.SwapSubmission, error) {
	token, err := c.getValidToken(ctx)
	if err != nil {
		return provider.SwapSubmission{}, err
	}

	req := faceSwapRequest{
		TargetImage: []swapImage{{Path: target.URL, Opts: string(target.Descriptor)}},
		SourceImage: []swapImage{{Path: source.URL, Opts: string(source.Descriptor)}},
		FaceEnhance: 1,
		ModifyImage: target.URL,
	}

	var resp faceSwapResponse
	url := c.baseURL + "/api/open/v3/faceswap/highquality/specifyimage"
	if err := c.doJSON(ctx, http.MethodPost, url, token, req, &resp); err != nil {
		return provider.SwapSubmission{}, fmt.Errorf("akool: submit face swap: %w", err)
	}

	if resp.Code != codeOK {
		return provider.SwapSubmission{}, fmt.Errorf("%w: code %d: %s", ErrBusinessCode, resp.Code, resp.Msg)
	}

	if resp.Data.URL != "" {
		return provider.SwapSubmission{ResultURL: resp.Data.URL}, nil
	}
	if resp.Data.TaskID == "" {
		return provider.SwapSubmission{}, ErrNoTaskID
	}

	return provider.SwapSubmission{TaskID: resp.Data.TaskID}, nil
}

// SwapStatus checks a face-swap job. Transport failures and non-success
// business codes surface as errors so the polling engine treats them as
// transient; only an explicit "failed" status maps to StatusFailed.
func (c *Client) SwapStatus(ctx context.Context, taskID string) (provider.PollResult, error) {
	token, err := c.getValidToken(ctx)
	if err != nil {
		return provider.PollResult{}, err
	}

	var resp faceSwapStatusResponse
	url := fmt.Sprintf("%s/api/open/v3/faceswap/highquality/specifyimage/status?task_id=%s", c.baseURL, taskID)
	if err := c.doJSON(ctx, http.MethodGet, url, token, nil, &resp); err != nil {
		return provider.PollResult{}, fmt.Errorf("akool: face swap status: %w", err)
	}

	if resp.Code != codeOK {
		return provider.PollResult{}, fmt.Errorf("%w: code %d: %s", ErrBusinessCode, resp.Code, resp.Msg)
	}

	switch resp.Data.Status {
	case "completed":
		url := resp.Data.URL
		if url == "" {
			url = resp.Data.ResultURL
		}
		return provider.PollResult{Status: provider.StatusCompleted, URL: url}, nil
	case "failed":
		return provider.PollResult{Status: provider.StatusFailed, Reason: resp.Data.ErrorMsg}, nil
	case "processing":
		return provider.PollResult{Status: provider.StatusProcessing}, nil
	default:
		return provider.PollResult{Status: provider.StatusQueued}, nil
	}
}

// SubmitTalkingPhoto submits a lip-sync video job for the given still image
// and audio track and returns the task ID to poll.
func (c *Client) SubmitTalkingPhoto(ctx context.Context, visualURL, audioURL string) (string, error) {
	token, err := c.getValidToken(ctx)
	if err != nil {
		return "", err
	}

	req := talkingPhotoRequest{TalkingPhotoURL: visualURL, AudioURL: audioURL}

	var resp talkingPhotoResponse
	url := c.baseURL + "/api/open/v3/content/video/createbytalkingphoto"
	if err := c.doJSON(ctx, http.MethodPost, url, token, req, &resp); err != nil {
		return "", fmt.Errorf("akool: submit talking photo: %w", err)
	}

	if resp.Code != codeOK {
		return "", fmt.Errorf("%w: code %d: %s", ErrBusinessCode, resp.Code, resp.Msg)
	}

	taskID := resp.Data.TaskID
	if taskID == "" {
		taskID = resp.Data.VideoID
	}
	if taskID == "" {
		return "", ErrNoTaskID
	}

	return taskID, nil
}

// TalkingPhotoStatus checks a talking-photo job. A non-success business code
// in a 200 response does not necessarily mean the job died, so it is
// surfaced as a transient error rather than a terminal failure.
func (c *Client) TalkingPhotoStatus(ctx context.Context, taskID string) (provider.PollResult, error) {
	token, err := c.getValidToken(ctx)
	if err != nil {
		return provider.PollResult{}, err
	}

	var resp talkingPhotoStatusResponse
	url := fmt.Sprintf("%s/api/open/v3/content/video/infobymodelid?video_model_id=%s", c.baseURL, taskID)
	if err := c.doJSON(ctx, http.MethodGet, url, token, nil, &resp); err != nil {
		return provider.PollResult{}, fmt.Errorf("akool: talking photo status: %w", err)
	}

	if resp.Code != codeOK {
		return provider.PollResult{}, fmt.Errorf("%w: code %d: %s", ErrBusinessCode, resp.Code, resp.Msg)
	}

	switch resp.Data.VideoStatus {
	case videoStatusCompleted:
		return provider.PollResult{Status: provider.StatusCompleted, URL: resp.Data.Video}, nil
	case videoStatusFailed:
		return provider.PollResult{Status: provider.StatusFailed, Reason: resp.Data.ErrorMsg}, nil
	case videoStatusProcessing:
		return provider.PollResult{Status: provider.StatusProcessing}, nil
	default:
		return provider.PollResult{Status: provider.StatusQueued}, nil
	}
}

// Download fetches a provider-hosted artifact (typically the finished video)
// so the caller can persist it to its own storage.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("akool: create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("akool: download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w with status %d", ErrRequestFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("akool: read download: %w", err)
	}
	return data, nil
}

// Compile-time checks that the Akool client implements the provider ports.
var (
	_ provider.FaceSwapper             = (*Client)(nil)
	_ provider.TalkingPhotoSynthesizer = (*Client)(nil)
	_ provider.Downloader              = (*Client)(nil)
)

// doJSON performs a JSON request and decodes the response into result.
func (c *Client) doJSON(ctx context.Context, method, url, token string, body, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("akool: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("akool: create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("akool: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("akool: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))
		}
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("akool: unmarshal response: %w", err)
		}
	}

	return nil
}
