package scenario

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/awarelab/scenario-api/internal/job"
	"github.com/awarelab/scenario-api/internal/poll"
	"github.com/awarelab/scenario-api/internal/provider"
	"github.com/awarelab/scenario-api/internal/storage"
	"github.com/awarelab/scenario-api/internal/user"
)

// ErrMissingInput is returned when a run is requested without the image,
// voice, or gender it needs. No state is mutated in that case.
var ErrMissingInput = errors.New("scenario: image URL, voice ID and gender are required")

// Per-task deadlines. Each fan-out task is abandoned when its deadline
// expires; the provider-side job is not cancelled.
const (
	faceSwapTimeout     = 6 * time.Minute
	talkingPhotoTimeout = 13 * time.Minute
	voiceDubTimeout     = 6 * time.Minute

	// maxErrorReasons bounds the persisted error summary.
	maxErrorReasons = 3
)

// Input identifies the user and the source material for one run.
type Input struct {
	UserID   string
	ImageURL string
	VoiceID  string
	Gender   user.Gender
}

// Deps collects the collaborators the orchestrator drives.
type Deps struct {
	Users         user.Store
	Jobs          job.Repository
	FaceSwapper   provider.FaceSwapper
	TalkingPhotos provider.TalkingPhotoSynthesizer
	Speech        provider.SpeechSynthesizer
	Converter     provider.SpeechConverter
	Downloader    provider.Downloader
	Storage       storage.Storage
	Logger        *slog.Logger
}

// Orchestrator runs the two-stage generation pipeline for one user and
// persists each asset the moment it is ready.
type Orchestrator struct {
	catalog Catalog
	deps    Deps

	standardSchedule poll.Schedule
	extendedSchedule poll.Schedule

	swapTimeout  time.Duration
	videoTimeout time.Duration
	dubTimeout   time.Duration

	// descriptors caches face-landmark descriptors by image URL so repeat
	// runs on the same image skip the detect call.
	descriptors *gocache.Cache
}

// OrchestratorOption is a function that configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithSchedules overrides the polling schedules, mainly for tests.
func WithSchedules(standard, extended poll.Schedule) OrchestratorOption {
	return func(o *Orchestrator) {
		o.standardSchedule = standard
		o.extendedSchedule = extended
	}
}

// WithTimeouts overrides the per-task deadlines, mainly for tests.
func WithTimeouts(swap, video, dub time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.swapTimeout = swap
		o.videoTimeout = video
		o.dubTimeout = dub
	}
}

// NewOrchestrator creates an orchestrator over the given catalog and
// collaborators. The catalog must have been validated at startup.
func NewOrchestrator(catalog Catalog, deps Deps, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		catalog:          catalog,
		deps:             deps,
		standardSchedule: poll.Standard(),
		extendedSchedule: poll.Extended(),
		swapTimeout:      faceSwapTimeout,
		videoTimeout:     talkingPhotoTimeout,
		dubTimeout:       voiceDubTimeout,
		descriptors:      gocache.New(24*time.Hour, time.Hour),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the full pipeline for one user: face-swap fan-out, then
// talking-photo and voice-dub fan-out, then finalization. It returns the
// aggregate status it persisted. Individual task failures never abort
// sibling tasks.
func (o *Orchestrator) Run(ctx context.Context, in Input) (status user.Status, err error) {
	if in.UserID == "" || in.ImageURL == "" || in.VoiceID == "" || !in.Gender.IsValid() {
		return "", ErrMissingInput
	}

	log := o.deps.Logger.With("user_id", in.UserID)

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("pipeline panic: %v", r)
			log.Error("pre-generation run panicked", "panic", r)
			o.patch(ctx, log, in.UserID, user.Patch{
				user.ColPreGenerationStatus:    user.StatusFailed,
				user.ColPreGenerationCompleted: time.Now().UTC(),
				user.ColPreGenerationError:     msg,
			})
			status = user.StatusFailed
			err = nil
		}
	}()

	// Best-effort status bookkeeping; the run proceeds even if it fails.
	o.patch(ctx, log, in.UserID, user.Patch{
		user.ColPreGenerationStatus:  user.StatusInProgress,
		user.ColPreGenerationStarted: time.Now().UTC(),
	})

	// The user photo descriptor is shared by every swap in this run; resolve
	// it once before the fan-out so concurrent tasks never race a cold cache
	// into duplicate paid detect calls.
	userDesc, userDescErr := o.userDescriptor(ctx, log, in)

	// Stage 1: face-swap fan-out.
	swapURLs := make(map[Key]string)
	var (
		mu       sync.Mutex
		outcomes []Outcome
	)
	record := func(out Outcome) {
		mu.Lock()
		defer mu.Unlock()
		outcomes = append(outcomes, out)
	}

	var g errgroup.Group
	for _, key := range o.catalog.SwapVideoKeys() {
		def := o.catalog[key]
		g.Go(func() error {
			out := o.protect(log, def.Key, job.TypeFaceSwap, func() Outcome {
				return o.runFaceSwap(ctx, log, in, def, userDesc, userDescErr)
			})
			if out.State == StateSuccess {
				mu.Lock()
				swapURLs[def.Key] = out.URL
				mu.Unlock()
			}
			record(out)
			return nil
		})
	}
	_ = g.Wait()

	// Stage 2: talking photos for successful swaps, voice dubs always.
	var g2 errgroup.Group
	for _, key := range o.catalog.SwapVideoKeys() {
		def := o.catalog[key]
		swapURL, ok := swapURLs[key]
		if !ok {
			record(Failure(key, job.TypeTalkingPhoto, "face swap did not produce an image"))
			continue
		}
		g2.Go(func() error {
			record(o.protect(log, def.Key, job.TypeTalkingPhoto, func() Outcome {
				return o.runTalkingPhoto(ctx, log, in, def, swapURL)
			}))
			return nil
		})
	}
	for _, key := range o.catalog.VoiceDubKeys() {
		def := o.catalog[key]
		g2.Go(func() error {
			record(o.protect(log, def.Key, job.TypeVoiceDub, func() Outcome {
				return o.runVoiceDub(ctx, log, in, def)
			}))
			return nil
		})
	}
	_ = g2.Wait()

	return o.finalize(ctx, log, in.UserID, outcomes), nil
}

// runFaceSwap swaps the user's face into one scenario template and persists
// the result URL the moment the provider reports it.
func (o *Orchestrator) runFaceSwap(ctx context.Context, log *slog.Logger, in Input, def Definition, userDesc provider.FaceDescriptor, userDescErr error) Outcome {
	ctx, cancel := context.WithTimeout(ctx, o.swapTimeout)
	defer cancel()

	j := o.startJob(ctx, log, in.UserID, job.TypeFaceSwap, def.Key, "")

	if userDescErr != nil {
		return o.failJob(ctx, log, j, def.Key, job.TypeFaceSwap, fmt.Sprintf("detect user face: %v", userDescErr))
	}

	baseImage := def.BaseImageURL(in.Gender)

	baseDesc, err := o.resolveDescriptor(ctx, baseImage)
	if err != nil {
		return o.failJob(ctx, log, j, def.Key, job.TypeFaceSwap, fmt.Sprintf("detect base face: %v", err))
	}

	sub, err := o.deps.FaceSwapper.SubmitSwap(ctx,
		provider.FaceImage{URL: baseImage, Descriptor: baseDesc},
		provider.FaceImage{URL: in.ImageURL, Descriptor: userDesc})
	if err != nil {
		return o.failJob(ctx, log, j, def.Key, job.TypeFaceSwap, fmt.Sprintf("submit face swap: %v", err))
	}

	resultURL := sub.ResultURL
	if !sub.Immediate() {
		polled, err := poll.Run(ctx, o.standardSchedule, func(ctx context.Context) (provider.PollResult, error) {
			return o.deps.FaceSwapper.SwapStatus(ctx, sub.TaskID)
		})
		if err != nil {
			return o.failJob(ctx, log, j, def.Key, job.TypeFaceSwap, fmt.Sprintf("face swap polling: %v", err))
		}
		resultURL = polled
	}

	o.patch(ctx, log, in.UserID, user.Patch{def.SwapColumn: resultURL})
	o.completeJob(ctx, log, j, resultURL)
	log.Info("face swap completed", "scenario", def.Key, "url", resultURL)
	return Success(def.Key, job.TypeFaceSwap, resultURL)
}

// runTalkingPhoto synthesizes the narration, renders the lip-sync video from
// the swapped image, and persists the result. Any failure along the chain
// substitutes the scenario's pre-recorded sample video; the sample never
// fills the user's asset slot.
func (o *Orchestrator) runTalkingPhoto(ctx context.Context, log *slog.Logger, in Input, def Definition, swapURL string) Outcome {
	ctx, cancel := context.WithTimeout(ctx, o.videoTimeout)
	defer cancel()

	j := o.startJob(ctx, log, in.UserID, job.TypeTalkingPhoto, def.Key, string(def.Key))

	videoURL, err := o.synthesizeVideo(ctx, log, in, def, swapURL)
	if err != nil {
		reason := err.Error()
		log.Warn("talking photo fell back to sample video",
			"scenario", def.Key, "sample", def.SampleVideoURL, "reason", reason)
		if j != nil {
			if err := j.CompleteWithFallback(def.SampleVideoURL, reason); err == nil {
				o.saveJob(ctx, log, j)
			}
		}
		return Fallback(def.Key, job.TypeTalkingPhoto, def.SampleVideoURL, reason)
	}

	o.patch(ctx, log, in.UserID, user.Patch{def.VideoColumn: videoURL})
	o.completeJob(ctx, log, j, videoURL)
	log.Info("talking photo completed", "scenario", def.Key, "url", videoURL)
	return Success(def.Key, job.TypeTalkingPhoto, videoURL)
}

// synthesizeVideo runs the talking-photo chain: narration TTS, audio upload,
// submit, extended polling, then download and re-upload of the finished
// video. A failed re-upload falls back to the provider-hosted URL.
func (o *Orchestrator) synthesizeVideo(ctx context.Context, log *slog.Logger, in Input, def Definition, swapURL string) (string, error) {
	audio, err := o.deps.Speech.Synthesize(ctx, def.Script, in.VoiceID, provider.DefaultVoiceSettings())
	if err != nil {
		return "", fmt.Errorf("synthesize narration: %w", err)
	}

	audioKey := fmt.Sprintf("scenario-assets/%s/%s_narration.mp3", in.UserID, def.Key)
	audioURL, err := o.deps.Storage.Upload(ctx, audioKey, "audio/mpeg", bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("upload narration audio: %w", err)
	}

	taskID, err := o.deps.TalkingPhotos.SubmitTalkingPhoto(ctx, swapURL, audioURL)
	if err != nil {
		return "", fmt.Errorf("submit talking photo: %w", err)
	}

	providerURL, err := poll.Run(ctx, o.extendedSchedule, func(ctx context.Context) (provider.PollResult, error) {
		return o.deps.TalkingPhotos.TalkingPhotoStatus(ctx, taskID)
	})
	if err != nil {
		return "", fmt.Errorf("talking photo polling: %w", err)
	}

	// Re-host the video on our own storage for durability; keep the
	// provider URL when that fails.
	videoKey := fmt.Sprintf("scenario-assets/%s/%s_video.mp4", in.UserID, def.Key)
	data, err := o.deps.Downloader.Download(ctx, providerURL)
	if err != nil {
		log.Warn("video download failed, keeping provider URL", "scenario", def.Key, "error", err)
		return providerURL, nil
	}
	hosted, err := o.deps.Storage.Upload(ctx, videoKey, "video/mp4", bytes.NewReader(data))
	if err != nil {
		log.Warn("video re-upload failed, keeping provider URL", "scenario", def.Key, "error", err)
		return providerURL, nil
	}
	return hosted, nil
}

// runVoiceDub converts one fixed call recording into the user's cloned voice
// and persists the dubbed audio. An upload failure degrades to an inline
// data URL rather than losing the dub.
func (o *Orchestrator) runVoiceDub(ctx context.Context, log *slog.Logger, in Input, def Definition) Outcome {
	ctx, cancel := context.WithTimeout(ctx, o.dubTimeout)
	defer cancel()

	j := o.startJob(ctx, log, in.UserID, job.TypeVoiceDub, def.Key, "")

	audio, err := o.deps.Converter.Convert(ctx, def.SourceAudioURL, in.VoiceID)
	if err != nil {
		return o.failJob(ctx, log, j, def.Key, job.TypeVoiceDub, fmt.Sprintf("voice conversion: %v", err))
	}

	key := fmt.Sprintf("scenario-assets/%s/%s.mp3", in.UserID, def.Key)
	audioURL, err := o.deps.Storage.Upload(ctx, key, "audio/mpeg", bytes.NewReader(audio))
	if err != nil {
		log.Warn("dub upload failed, inlining as data URL", "scenario", def.Key, "error", err)
		audioURL = "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString(audio)
	}

	o.patch(ctx, log, in.UserID, user.Patch{def.AudioColumn: audioURL})
	o.completeJob(ctx, log, j, audioURL)
	log.Info("voice dub completed", "scenario", def.Key)
	return Success(def.Key, job.TypeVoiceDub, audioURL)
}

// finalize counts the filled asset slots and persists the aggregate status.
// Fallback outcomes do not count: only a user-specific asset in the record
// marks a scenario as done.
func (o *Orchestrator) finalize(ctx context.Context, log *slog.Logger, userID string, outcomes []Outcome) user.Status {
	completed := o.countCompletedAssets(ctx, userID, outcomes)
	total := len(user.AssetColumns)

	var status user.Status
	switch {
	case completed == total:
		status = user.StatusCompleted
	case completed > 0:
		status = user.StatusPartialSuccess
	default:
		status = user.StatusFailed
	}

	patch := user.Patch{
		user.ColPreGenerationStatus:    status,
		user.ColPreGenerationCompleted: time.Now().UTC(),
	}
	if summary := errorSummary(outcomes); summary != "" && status != user.StatusCompleted {
		patch[user.ColPreGenerationError] = summary
	}

	// The finalization write is attempted even when earlier writes failed;
	// an error here still terminates the run.
	o.patch(ctx, log, userID, patch)
	log.Info("pre-generation run finished", "status", status, "completed_assets", completed, "total_assets", total)
	return status
}

// countCompletedAssets reads the record back so the tally reflects what was
// actually persisted. If the read fails, successful outcomes stand in.
func (o *Orchestrator) countCompletedAssets(ctx context.Context, userID string, outcomes []Outcome) int {
	rec, err := o.deps.Users.Get(ctx, userID)
	if err == nil {
		return rec.CompletedAssets()
	}
	n := 0
	for _, out := range outcomes {
		if out.State == StateSuccess {
			n++
		}
	}
	return n
}

// errorSummary joins the first few failure reasons for the record's error
// column.
func errorSummary(outcomes []Outcome) string {
	var reasons []string
	for _, out := range outcomes {
		if out.State != StateSuccess && out.Reason != "" {
			reasons = append(reasons, fmt.Sprintf("%s: %s", out.Key, out.Reason))
		}
	}
	if len(reasons) == 0 {
		return ""
	}
	extra := len(reasons) - maxErrorReasons
	if extra > 0 {
		reasons = reasons[:maxErrorReasons]
	}
	summary := strings.Join(reasons, "; ")
	if extra > 0 {
		summary = fmt.Sprintf("%s (+%d more)", summary, extra)
	}
	return summary
}

// resolveDescriptor returns the face-landmark descriptor for imageURL,
// preferring the in-process cache over a fresh detect call. Template images
// are shared between users, so the cache spares a detect per template once
// the first run has seen it.
func (o *Orchestrator) resolveDescriptor(ctx context.Context, imageURL string) (provider.FaceDescriptor, error) {
	if cached, ok := o.descriptors.Get(imageURL); ok {
		return cached.(provider.FaceDescriptor), nil
	}

	desc, err := o.deps.FaceSwapper.DetectFace(ctx, imageURL)
	if err != nil {
		return "", err
	}
	o.descriptors.Set(imageURL, desc, gocache.DefaultExpiration)
	return desc, nil
}

// userDescriptor resolves the descriptor for the user's uploaded photo. The
// persisted copy on the record survives restarts; a freshly detected one is
// written back so the next run skips the call.
func (o *Orchestrator) userDescriptor(ctx context.Context, log *slog.Logger, in Input) (provider.FaceDescriptor, error) {
	if rec, err := o.deps.Users.Get(ctx, in.UserID); err == nil && rec.FaceOpts != "" {
		return provider.FaceDescriptor(rec.FaceOpts), nil
	}
	if cached, ok := o.descriptors.Get(in.ImageURL); ok {
		return cached.(provider.FaceDescriptor), nil
	}

	dctx, cancel := context.WithTimeout(ctx, o.swapTimeout)
	defer cancel()

	desc, err := o.deps.FaceSwapper.DetectFace(dctx, in.ImageURL)
	if err != nil {
		return "", err
	}
	o.descriptors.Set(in.ImageURL, desc, gocache.DefaultExpiration)
	o.patch(ctx, log, in.UserID, user.Patch{user.ColFaceOpts: string(desc)})
	return desc, nil
}

// protect converts a panic inside one generation task into a failure outcome
// so a crashing task can neither take its siblings down nor escape the run.
func (o *Orchestrator) protect(log *slog.Logger, key Key, jobType job.Type, fn func() Outcome) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("generation task panicked", "scenario", key, "type", jobType, "panic", r)
			out = Failure(key, jobType, fmt.Sprintf("task panic: %v", r))
		}
	}()
	return fn()
}

// patch applies a partial record update, logging instead of failing: status
// bookkeeping must never abort generation work.
func (o *Orchestrator) patch(ctx context.Context, log *slog.Logger, userID string, patch user.Patch) {
	if err := o.deps.Users.Patch(ctx, userID, patch); err != nil {
		log.Error("record patch failed", "error", err)
	}
}

// startJob creates and starts a job row for one generation task.
func (o *Orchestrator) startJob(ctx context.Context, log *slog.Logger, userID string, jobType job.Type, key Key, dependsOn string) *job.Job {
	j := job.New(userID, jobType, string(key))
	j.DependsOn = dependsOn
	if err := j.Start(); err != nil {
		return nil
	}
	o.saveJob(ctx, log, j)
	return j
}

// completeJob marks a job completed and saves it.
func (o *Orchestrator) completeJob(ctx context.Context, log *slog.Logger, j *job.Job, resultURL string) {
	if j == nil {
		return
	}
	if err := j.Complete(resultURL); err != nil {
		return
	}
	o.saveJob(ctx, log, j)
}

// failJob marks a job failed, saves it, and builds the failure outcome.
func (o *Orchestrator) failJob(ctx context.Context, log *slog.Logger, j *job.Job, key Key, jobType job.Type, reason string) Outcome {
	log.Warn("generation task failed", "scenario", key, "type", jobType, "reason", reason)
	if j != nil {
		if err := j.Fail(reason); err == nil {
			o.saveJob(ctx, log, j)
		}
	}
	return Failure(key, jobType, reason)
}

func (o *Orchestrator) saveJob(ctx context.Context, log *slog.Logger, j *job.Job) {
	if err := o.deps.Jobs.Save(ctx, j); err != nil {
		log.Error("job save failed", "job_id", j.ID, "error", err)
	}
}
