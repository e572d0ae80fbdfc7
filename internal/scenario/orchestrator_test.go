package scenario

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awarelab/scenario-api/internal/job"
	"github.com/awarelab/scenario-api/internal/poll"
	"github.com/awarelab/scenario-api/internal/provider"
	"github.com/awarelab/scenario-api/internal/user"
)

type stubSwapper struct {
	mu          sync.Mutex
	detectCalls int
	statusCalls int
	detect      func(imageURL string) (provider.FaceDescriptor, error)
	submit      func(target, source provider.FaceImage) (provider.SwapSubmission, error)
	status      func(taskID string) (provider.PollResult, error)
}

func (s *stubSwapper) DetectFace(_ context.Context, imageURL string) (provider.FaceDescriptor, error) {
	s.mu.Lock()
	s.detectCalls++
	s.mu.Unlock()
	return s.detect(imageURL)
}

func (s *stubSwapper) SubmitSwap(_ context.Context, target, source provider.FaceImage) (provider.SwapSubmission, error) {
	return s.submit(target, source)
}

func (s *stubSwapper) SwapStatus(_ context.Context, taskID string) (provider.PollResult, error) {
	s.mu.Lock()
	s.statusCalls++
	s.mu.Unlock()
	return s.status(taskID)
}

type stubTalker struct {
	submit func(visualURL, audioURL string) (string, error)
	status func(taskID string) (provider.PollResult, error)
}

func (s *stubTalker) SubmitTalkingPhoto(_ context.Context, visualURL, audioURL string) (string, error) {
	return s.submit(visualURL, audioURL)
}

func (s *stubTalker) TalkingPhotoStatus(_ context.Context, taskID string) (provider.PollResult, error) {
	return s.status(taskID)
}

type stubSpeech struct {
	synthesize func(text, voiceID string) ([]byte, error)
}

func (s *stubSpeech) Synthesize(_ context.Context, text, voiceID string, _ provider.VoiceSettings) ([]byte, error) {
	return s.synthesize(text, voiceID)
}

type stubConverter struct {
	convert func(sourceURL, voiceID string) ([]byte, error)
}

func (s *stubConverter) Convert(_ context.Context, sourceURL, voiceID string) ([]byte, error) {
	return s.convert(sourceURL, voiceID)
}

type stubDownloader struct {
	download func(url string) ([]byte, error)
}

func (s *stubDownloader) Download(_ context.Context, url string) ([]byte, error) {
	return s.download(url)
}

type stubStorage struct {
	mu      sync.Mutex
	uploads map[string]string
	fail    func(key string) error
}

func (s *stubStorage) Upload(_ context.Context, key, contentType string, data io.Reader) (string, error) {
	if s.fail != nil {
		if err := s.fail(key); err != nil {
			return "", err
		}
	}
	if _, err := io.Copy(io.Discard, data); err != nil {
		return "", err
	}
	url := "https://cdn.test/" + key
	s.mu.Lock()
	s.uploads[key] = contentType
	s.mu.Unlock()
	return url, nil
}

type orchEnv struct {
	store      *user.MemoryStore
	jobs       *job.MemoryRepository
	swapper    *stubSwapper
	talker     *stubTalker
	speech     *stubSpeech
	converter  *stubConverter
	downloader *stubDownloader
	storage    *stubStorage
	orch       *Orchestrator
	rec        *user.Record
}

func (e *orchEnv) input() Input {
	return Input{
		UserID:   e.rec.ID,
		ImageURL: e.rec.ImageURL,
		VoiceID:  e.rec.VoiceID,
		Gender:   e.rec.Gender,
	}
}

func newOrchEnv(t *testing.T) *orchEnv {
	t.Helper()

	rec, err := user.New("tester", "https://cdn.example.com/face.jpg", "voice-1", user.GenderFemale)
	require.NoError(t, err)

	store := user.NewMemoryStore()
	require.NoError(t, store.Create(context.Background(), rec))

	env := &orchEnv{
		store: store,
		jobs:  job.NewMemoryRepository(),
		rec:   rec,
		swapper: &stubSwapper{
			detect: func(imageURL string) (provider.FaceDescriptor, error) {
				return provider.FaceDescriptor("landmarks:" + imageURL), nil
			},
			submit: func(target, _ provider.FaceImage) (provider.SwapSubmission, error) {
				return provider.SwapSubmission{ResultURL: "https://provider.test/swapped/" + path.Base(target.URL)}, nil
			},
			status: func(string) (provider.PollResult, error) {
				return provider.PollResult{Status: provider.StatusCompleted, URL: "https://provider.test/swapped.png"}, nil
			},
		},
		talker: &stubTalker{
			submit: func(_, _ string) (string, error) { return "tp-1", nil },
			status: func(string) (provider.PollResult, error) {
				return provider.PollResult{Status: provider.StatusCompleted, URL: "https://provider.test/video.mp4"}, nil
			},
		},
		speech: &stubSpeech{
			synthesize: func(_, _ string) ([]byte, error) { return []byte("tts-audio"), nil },
		},
		converter: &stubConverter{
			convert: func(_, _ string) ([]byte, error) { return []byte("dubbed-audio"), nil },
		},
		downloader: &stubDownloader{
			download: func(string) ([]byte, error) { return []byte("video-bytes"), nil },
		},
		storage: &stubStorage{uploads: make(map[string]string)},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.orch = NewOrchestrator(DefaultCatalog(testAssetBase), Deps{
		Users:         env.store,
		Jobs:          env.jobs,
		FaceSwapper:   env.swapper,
		TalkingPhotos: env.talker,
		Speech:        env.speech,
		Converter:     env.converter,
		Downloader:    env.downloader,
		Storage:       env.storage,
		Logger:        logger,
	},
		WithSchedules(poll.Fixed(time.Millisecond, 2), poll.Fixed(time.Millisecond, 2)),
		WithTimeouts(time.Second, time.Second, time.Second),
	)
	return env
}

func TestOrchestrator_Run_AllSucceed(t *testing.T) {
	env := newOrchEnv(t)

	status, err := env.orch.Run(context.Background(), env.input())
	require.NoError(t, err)
	assert.Equal(t, user.StatusCompleted, status)

	rec, err := env.store.Get(context.Background(), env.rec.ID)
	require.NoError(t, err)
	assert.Equal(t, user.StatusCompleted, rec.PreGenerationStatus)
	assert.Equal(t, 6, rec.CompletedAssets())
	assert.Empty(t, rec.PreGenerationError)
	require.NotNil(t, rec.PreGenerationCompletedAt)

	// Videos were re-hosted on our storage, dubs uploaded as audio.
	assert.Contains(t, rec.LotteryVideoURL, "https://cdn.test/")
	assert.Contains(t, rec.InvestmentCallAudioURL, "https://cdn.test/")

	// One detect per distinct image: two base templates plus the user photo.
	assert.Equal(t, 3, env.swapper.detectCalls)
	// Immediate swap results mean the status endpoint was never polled.
	assert.Equal(t, 0, env.swapper.statusCalls)

	jobs, err := env.jobs.ListByUser(context.Background(), env.rec.ID)
	require.NoError(t, err)
	assert.Len(t, jobs, 6)
	for _, j := range jobs {
		assert.Equal(t, job.StatusCompleted, j.Status, "job %s/%s", j.Type, j.Key)
	}
}

func TestOrchestrator_Run_PolledSwap(t *testing.T) {
	env := newOrchEnv(t)
	env.swapper.submit = func(_, _ provider.FaceImage) (provider.SwapSubmission, error) {
		return provider.SwapSubmission{TaskID: "swap-task"}, nil
	}

	status, err := env.orch.Run(context.Background(), env.input())
	require.NoError(t, err)
	assert.Equal(t, user.StatusCompleted, status)
	assert.Greater(t, env.swapper.statusCalls, 0)

	rec, _ := env.store.Get(context.Background(), env.rec.ID)
	assert.Equal(t, "https://provider.test/swapped.png", rec.LotteryFaceSwapURL)
}

func TestOrchestrator_Run_TalkingPhotoTimeoutFallsBack(t *testing.T) {
	env := newOrchEnv(t)
	env.talker.status = func(string) (provider.PollResult, error) {
		return provider.PollResult{Status: provider.StatusProcessing}, nil
	}

	status, err := env.orch.Run(context.Background(), env.input())
	require.NoError(t, err)
	assert.Equal(t, user.StatusPartialSuccess, status)

	rec, err := env.store.Get(context.Background(), env.rec.ID)
	require.NoError(t, err)

	// The sample substitute never fills the user's video slots.
	assert.Empty(t, rec.LotteryVideoURL)
	assert.Empty(t, rec.CrimeVideoURL)
	assert.Equal(t, 4, rec.CompletedAssets())
	assert.NotEmpty(t, rec.PreGenerationError)

	jobs, err := env.jobs.ListByUser(context.Background(), env.rec.ID)
	require.NoError(t, err)
	fallbacks := 0
	for _, j := range jobs {
		if j.Status == job.StatusCompletedWithFallback {
			fallbacks++
			assert.Contains(t, j.ResultURL, "scenario1_sample.mp4")
			assert.NotEmpty(t, j.Error)
		}
	}
	assert.Equal(t, 2, fallbacks)
}

func TestOrchestrator_Run_SwapFailureDoesNotStopSiblings(t *testing.T) {
	env := newOrchEnv(t)
	env.swapper.submit = func(target, source provider.FaceImage) (provider.SwapSubmission, error) {
		if strings.Contains(target.URL, "case1") {
			return provider.SwapSubmission{}, errors.New("provider rejected image")
		}
		return provider.SwapSubmission{ResultURL: "https://provider.test/crime-swap.png"}, nil
	}

	status, err := env.orch.Run(context.Background(), env.input())
	require.NoError(t, err)
	assert.Equal(t, user.StatusPartialSuccess, status)

	rec, err := env.store.Get(context.Background(), env.rec.ID)
	require.NoError(t, err)

	// Lottery swap and its dependent video are missing; everything else ran.
	assert.Empty(t, rec.LotteryFaceSwapURL)
	assert.Empty(t, rec.LotteryVideoURL)
	assert.NotEmpty(t, rec.CrimeFaceSwapURL)
	assert.NotEmpty(t, rec.CrimeVideoURL)
	assert.NotEmpty(t, rec.InvestmentCallAudioURL)
	assert.NotEmpty(t, rec.AccidentCallAudioURL)
	assert.Equal(t, 4, rec.CompletedAssets())
	assert.Contains(t, rec.PreGenerationError, "lottery")
}

func TestOrchestrator_Run_AllFail(t *testing.T) {
	env := newOrchEnv(t)
	env.swapper.detect = func(string) (provider.FaceDescriptor, error) {
		return "", errors.New("no face detected")
	}
	env.converter.convert = func(_, _ string) ([]byte, error) {
		return nil, errors.New("conversion unavailable")
	}

	status, err := env.orch.Run(context.Background(), env.input())
	require.NoError(t, err)
	assert.Equal(t, user.StatusFailed, status)

	rec, err := env.store.Get(context.Background(), env.rec.ID)
	require.NoError(t, err)
	assert.Equal(t, user.StatusFailed, rec.PreGenerationStatus)
	assert.Equal(t, 0, rec.CompletedAssets())
	// The persisted summary is truncated to the first few reasons.
	assert.Contains(t, rec.PreGenerationError, "+")
}

func TestOrchestrator_Run_DubUploadFallsBackToDataURL(t *testing.T) {
	env := newOrchEnv(t)
	env.storage.fail = func(key string) error {
		if strings.HasSuffix(key, ".mp3") && !strings.Contains(key, "narration") {
			return errors.New("bucket unavailable")
		}
		return nil
	}

	status, err := env.orch.Run(context.Background(), env.input())
	require.NoError(t, err)
	assert.Equal(t, user.StatusCompleted, status)

	rec, err := env.store.Get(context.Background(), env.rec.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rec.InvestmentCallAudioURL, "data:audio/mpeg;base64,"),
		"got %q", rec.InvestmentCallAudioURL)
}

func TestOrchestrator_Run_VideoReuploadFallsBackToProviderURL(t *testing.T) {
	env := newOrchEnv(t)
	env.downloader.download = func(string) ([]byte, error) {
		return nil, errors.New("provider cdn unreachable")
	}

	status, err := env.orch.Run(context.Background(), env.input())
	require.NoError(t, err)
	assert.Equal(t, user.StatusCompleted, status)

	rec, err := env.store.Get(context.Background(), env.rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://provider.test/video.mp4", rec.LotteryVideoURL)
}

func TestOrchestrator_Run_MissingInput(t *testing.T) {
	env := newOrchEnv(t)

	in := env.input()
	in.VoiceID = ""

	_, err := env.orch.Run(context.Background(), in)
	assert.ErrorIs(t, err, ErrMissingInput)

	// No state was mutated.
	rec, err := env.store.Get(context.Background(), env.rec.ID)
	require.NoError(t, err)
	assert.Equal(t, user.StatusPending, rec.PreGenerationStatus)
	assert.Nil(t, rec.PreGenerationStartedAt)
}

func TestOrchestrator_Run_TaskPanicIsContained(t *testing.T) {
	env := newOrchEnv(t)
	env.speech.synthesize = func(_, _ string) ([]byte, error) {
		panic("tts client broke")
	}

	// The panicking talking-photo tasks become failures; their siblings
	// keep running to completion.
	status, err := env.orch.Run(context.Background(), env.input())
	require.NoError(t, err)
	assert.Equal(t, user.StatusPartialSuccess, status)

	rec, err := env.store.Get(context.Background(), env.rec.ID)
	require.NoError(t, err)
	assert.Empty(t, rec.LotteryVideoURL)
	assert.Empty(t, rec.CrimeVideoURL)
	assert.Equal(t, 4, rec.CompletedAssets())
	assert.Contains(t, rec.PreGenerationError, "panic")
}

// panicStore delegates to a MemoryStore but panics on every Get.
type panicStore struct {
	*user.MemoryStore
}

func (s *panicStore) Get(context.Context, string) (*user.Record, error) {
	panic("store connection lost")
}

func TestOrchestrator_Run_PanicOutsideTasksForcesFailed(t *testing.T) {
	env := newOrchEnv(t)
	env.orch.deps.Users = &panicStore{MemoryStore: env.store}

	status, err := env.orch.Run(context.Background(), env.input())
	require.NoError(t, err)
	assert.Equal(t, user.StatusFailed, status)

	rec, err := env.store.Get(context.Background(), env.rec.ID)
	require.NoError(t, err)
	assert.Equal(t, user.StatusFailed, rec.PreGenerationStatus)
	assert.Contains(t, rec.PreGenerationError, "panic")
}

func TestOrchestrator_Run_ReusesPersistedDescriptors(t *testing.T) {
	env := newOrchEnv(t)

	_, err := env.orch.Run(context.Background(), env.input())
	require.NoError(t, err)
	assert.Equal(t, 3, env.swapper.detectCalls)

	rec, err := env.store.Get(context.Background(), env.rec.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.FaceOpts)

	// A retry finds the user photo descriptor on the record and the template
	// descriptors in the in-process cache.
	_, err = env.orch.Run(context.Background(), env.input())
	require.NoError(t, err)
	assert.Equal(t, 3, env.swapper.detectCalls)
}

func TestOrchestrator_Run_SharesTemplateDescriptorsAcrossUsers(t *testing.T) {
	env := newOrchEnv(t)

	_, err := env.orch.Run(context.Background(), env.input())
	require.NoError(t, err)
	assert.Equal(t, 3, env.swapper.detectCalls)

	// A second user on the same process only pays for their own photo; the
	// shared template descriptors are already cached.
	other, err := user.New("second", "https://cdn.example.com/face2.jpg", "voice-2", user.GenderFemale)
	require.NoError(t, err)
	require.NoError(t, env.store.Create(context.Background(), other))

	_, err = env.orch.Run(context.Background(), Input{
		UserID:   other.ID,
		ImageURL: other.ImageURL,
		VoiceID:  other.VoiceID,
		Gender:   other.Gender,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, env.swapper.detectCalls)
}

func TestOrchestrator_Run_UserPhotoDetectedOnceDespiteLatency(t *testing.T) {
	env := newOrchEnv(t)
	detect := env.swapper.detect
	env.swapper.detect = func(imageURL string) (provider.FaceDescriptor, error) {
		time.Sleep(20 * time.Millisecond)
		return detect(imageURL)
	}

	status, err := env.orch.Run(context.Background(), env.input())
	require.NoError(t, err)
	assert.Equal(t, user.StatusCompleted, status)

	// Slow detect responses must not let concurrent swaps duplicate the
	// paid call for the shared user photo.
	assert.Equal(t, 3, env.swapper.detectCalls)
}
