package elevenlabs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/awarelab/scenario-api/internal/poll"
	"github.com/awarelab/scenario-api/internal/provider"
)

// Converter adapts the dubbing API to the provider.SpeechConverter port.
// A conversion downloads the fixed source audio, submits a dubbing job,
// polls it to completion, and retrieves the dubbed track.
type Converter struct {
	client     *Client
	httpClient *http.Client
	schedule   poll.Schedule
}

// ConverterOption is a function that configures a Converter.
type ConverterOption func(*Converter)

// WithSchedule overrides the dub polling schedule.
func WithSchedule(s poll.Schedule) ConverterOption {
	return func(c *Converter) {
		c.schedule = s
	}
}

// WithDownloadClient sets the HTTP client used to fetch source audio.
func WithDownloadClient(hc *http.Client) ConverterOption {
	return func(c *Converter) {
		c.httpClient = hc
	}
}

// NewConverter creates a speech-to-speech converter around an ElevenLabs
// client. Dub jobs are polled every 5 seconds for up to 5 minutes.
func NewConverter(client *Client, opts ...ConverterOption) *Converter {
	c := &Converter{
		client:     client,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		schedule:   poll.Fixed(5*time.Second, 59),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert downloads sourceAudioURL, dubs it, and returns the dubbed audio
// bytes. targetVoiceID is accepted for the port but unused: the dubbing API
// has no per-request voice selection.
func (c *Converter) Convert(ctx context.Context, sourceAudioURL, _ string) ([]byte, error) {
	source, err := c.download(ctx, sourceAudioURL)
	if err != nil {
		return nil, err
	}

	filename := path.Base(sourceAudioURL)
	if filename == "" || filename == "." || filename == "/" {
		filename = "source.mp3"
	}

	dubbingID, err := c.client.CreateDub(ctx, filename, source)
	if err != nil {
		return nil, err
	}

	if _, err := poll.Run(ctx, c.schedule, func(ctx context.Context) (provider.PollResult, error) {
		return c.client.DubStatus(ctx, dubbingID)
	}); err != nil {
		return nil, fmt.Errorf("elevenlabs: dub %s: %w", dubbingID, err)
	}

	return c.client.DubAudio(ctx, dubbingID, "ko")
}

// download fetches the source audio track.
func (c *Converter) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: download source audio: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w with status %d", ErrRequestFailed, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// Compile-time checks that the ElevenLabs types implement the provider ports.
var (
	_ provider.SpeechSynthesizer = (*Client)(nil)
	_ provider.SpeechConverter   = (*Converter)(nil)
)
