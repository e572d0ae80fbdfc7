// Package provider defines the common ports for the external AI media
// providers consumed by the scenario pipeline: face swapping, talking-photo
// video synthesis, text-to-speech, and speech-to-speech dubbing.
// Concrete vendor clients are adapted to these interfaces.
package provider

import "context"

// Status represents the status of an asynchronous provider job.
type Status string

// Common job statuses across providers.
const (
	StatusQueued     Status = "QUEUED"     // Job accepted but not yet running
	StatusProcessing Status = "PROCESSING" // Job is currently running
	StatusCompleted  Status = "COMPLETED"  // Job finished successfully
	StatusFailed     Status = "FAILED"     // Provider reported a terminal failure
)

// IsTerminal returns true if the status represents a final state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// PollResult contains the result of polling a provider job's status.
type PollResult struct {
	Status Status // Current job status
	URL    string // Result URL (only set when Status is StatusCompleted)
	Reason string // Failure reason (only set when Status is StatusFailed)
}

// FaceDescriptor is an opaque facial-landmark descriptor string as produced
// by the provider's detect endpoint. It must accompany each image in a
// face-swap submission.
type FaceDescriptor string

// FaceImage pairs an image URL with its landmark descriptor.
type FaceImage struct {
	URL        string
	Descriptor FaceDescriptor
}

// SwapSubmission is the outcome of submitting a face-swap job. Either
// ResultURL is set (the provider finished synchronously) or TaskID is set
// and the job must be polled.
type SwapSubmission struct {
	ResultURL string
	TaskID    string
}

// Immediate returns true if the swap finished without requiring polling.
func (s SwapSubmission) Immediate() bool {
	return s.ResultURL != ""
}

// FaceSwapper is the port for face-swap generation.
type FaceSwapper interface {
	// DetectFace returns the landmark descriptor for the face in imageURL.
	DetectFace(ctx context.Context, imageURL string) (FaceDescriptor, error)

	// SubmitSwap submits a face-swap job replacing the face of target with
	// the face of source.
	SubmitSwap(ctx context.Context, target, source FaceImage) (SwapSubmission, error)

	// SwapStatus checks the status of a previously submitted swap job.
	SwapStatus(ctx context.Context, taskID string) (PollResult, error)
}

// TalkingPhotoSynthesizer is the port for lip-sync video synthesis from a
// still image and an audio track.
type TalkingPhotoSynthesizer interface {
	// SubmitTalkingPhoto submits a video-synthesis job and returns its task ID.
	SubmitTalkingPhoto(ctx context.Context, visualURL, audioURL string) (taskID string, err error)

	// TalkingPhotoStatus checks the status of a previously submitted job.
	TalkingPhotoStatus(ctx context.Context, taskID string) (PollResult, error)
}

// VoiceSettings tunes speech synthesis for a cloned voice.
type VoiceSettings struct {
	Stability       float64
	SimilarityBoost float64
	Speed           float64
}

// DefaultVoiceSettings returns the settings used for narration and scenario
// scripts.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.8,
		Speed:           1.1,
	}
}

// SpeechSynthesizer is the port for text-to-speech with a cloned voice.
type SpeechSynthesizer interface {
	// Synthesize renders text as speech in the given voice and returns the
	// encoded audio bytes.
	Synthesize(ctx context.Context, text, voiceID string, settings VoiceSettings) ([]byte, error)
}

// SpeechConverter is the port for speech-to-speech conversion: an existing
// spoken audio track re-rendered in the target voice.
type SpeechConverter interface {
	// Convert downloads the source audio, dubs it into the target voice, and
	// returns the dubbed audio bytes.
	Convert(ctx context.Context, sourceAudioURL, targetVoiceID string) ([]byte, error)
}

// Downloader fetches a provider-hosted artifact so it can be re-uploaded to
// the system's own blob store.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}
