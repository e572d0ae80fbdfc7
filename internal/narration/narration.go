// Package narration serves per-step narration audio with a cache-aside
// layer, so repeating a step replays the already-synthesized clip instead
// of paying for another TTS call.
package narration

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/awarelab/scenario-api/internal/provider"
	"github.com/awarelab/scenario-api/internal/storage"
	"github.com/awarelab/scenario-api/internal/task"
)

// ErrEmptyScript is returned when narration is requested without a script.
var ErrEmptyScript = errors.New("narration: script is required")

// cacheTTL is how long a synthesized clip stays addressable. The script
// hash is part of the key, so edited scripts never hit stale audio.
const cacheTTL = 24 * time.Hour

// entry is one cached narration clip.
type entry struct {
	url      string
	accesses atomic.Int64
}

// Result is the narration returned to the caller.
type Result struct {
	// URL is the public audio URL.
	URL string
	// Cached is true when the clip was served from cache.
	Cached bool
	// Accesses counts how often this clip has been served.
	Accesses int64
}

// Service synthesizes and caches narration clips.
type Service struct {
	speech provider.SpeechSynthesizer
	store  storage.Storage
	logger *slog.Logger
	cache  *gocache.Cache
}

// NewService creates a narration service.
func NewService(speech provider.SpeechSynthesizer, store storage.Storage, logger *slog.Logger) *Service {
	return &Service{
		speech: speech,
		store:  store,
		logger: logger,
		cache:  gocache.New(cacheTTL, time.Hour),
	}
}

// Narrate returns the audio URL for one step's script, synthesizing it on a
// cache miss. Optionally preloads the next step's script in the background.
func (s *Service) Narrate(ctx context.Context, userID, stepID, script, voiceID string) (Result, error) {
	if script == "" {
		return Result{}, ErrEmptyScript
	}

	key := cacheKey(userID, stepID, script)
	if cached, ok := s.cache.Get(key); ok {
		e := cached.(*entry)
		n := e.accesses.Add(1)
		return Result{URL: e.url, Cached: true, Accesses: n}, nil
	}

	url, err := s.synthesize(ctx, userID, stepID, script, voiceID)
	if err != nil {
		return Result{}, err
	}

	e := &entry{url: url}
	e.accesses.Add(1)
	s.cache.Set(key, e, gocache.DefaultExpiration)
	return Result{URL: url, Accesses: 1}, nil
}

// Preload synthesizes the next step's narration in the background so the
// clip is ready before the user reaches it. The returned handle is mainly
// for tests.
func (s *Service) Preload(ctx context.Context, userID, stepID, script, voiceID string) *task.Handle {
	return task.Go(ctx, s.logger, "narration-preload:"+stepID, func(bgCtx context.Context) error {
		key := cacheKey(userID, stepID, script)
		if _, ok := s.cache.Get(key); ok {
			return nil
		}
		url, err := s.synthesize(bgCtx, userID, stepID, script, voiceID)
		if err != nil {
			return err
		}
		s.cache.Set(key, &entry{url: url}, gocache.DefaultExpiration)
		return nil
	})
}

// Sweep evicts expired clips. Exposed as an explicit operation in addition
// to the cache's own janitor.
func (s *Service) Sweep() {
	s.cache.DeleteExpired()
}

// synthesize renders the script and uploads the clip.
func (s *Service) synthesize(ctx context.Context, userID, stepID, script, voiceID string) (string, error) {
	audio, err := s.speech.Synthesize(ctx, script, voiceID, provider.DefaultVoiceSettings())
	if err != nil {
		return "", fmt.Errorf("narration: synthesize: %w", err)
	}

	key := fmt.Sprintf("narration/%s/%s_%s.mp3", userID, stepID, scriptHash(script)[:12])
	url, err := s.store.Upload(ctx, key, "audio/mpeg", bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("narration: upload: %w", err)
	}
	return url, nil
}

func cacheKey(userID, stepID, script string) string {
	return fmt.Sprintf("%s:%s:%s", userID, stepID, scriptHash(script))
}

func scriptHash(script string) string {
	sum := sha256.Sum256([]byte(script))
	return hex.EncodeToString(sum[:])
}
