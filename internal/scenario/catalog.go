// Package scenario implements the pre-generation pipeline that turns a
// user's face photo and cloned voice into the six deepfake demonstration
// assets: two face-swapped images, two talking-photo videos, and two
// dubbed scam calls.
package scenario

import (
	"errors"
	"fmt"
	"strings"

	"github.com/awarelab/scenario-api/internal/user"
)

// Static errors for catalog validation.
var (
	// ErrUnknownScenario is returned when a key is not in the catalog.
	ErrUnknownScenario = errors.New("scenario: unknown scenario key")
	// ErrInvalidCatalog is returned when a catalog entry is incomplete.
	ErrInvalidCatalog = errors.New("scenario: invalid catalog entry")
)

// Key identifies a scenario in the catalog.
type Key string

const (
	// KeyLottery is the fake "lottery winner" news clip.
	KeyLottery Key = "lottery"
	// KeyCrime is the fake "crime suspect" news clip.
	KeyCrime Key = "crime"
	// KeyInvestmentCall is the investment-scam phone call.
	KeyInvestmentCall Key = "investment_call_audio"
	// KeyAccidentCall is the accident-scam phone call.
	KeyAccidentCall Key = "accident_call_audio"
)

// Kind distinguishes face-swap video scenarios from voice-dub scenarios.
type Kind string

const (
	// KindSwapVideo runs face swap then talking photo.
	KindSwapVideo Kind = "swap_video"
	// KindVoiceDub runs a speech-to-speech dub of fixed source audio.
	KindVoiceDub Kind = "voice_dub"
)

// Definition is the static configuration of one scenario.
type Definition struct {
	// Key is the catalog key.
	Key Key
	// Kind selects the pipeline stages this scenario goes through.
	Kind Kind

	// BaseImageTemplate is the gender-parameterized template image URL for
	// swap-video scenarios; %s is replaced with male or female.
	BaseImageTemplate string
	// Script is the literal Korean line spoken in the talking-photo video.
	Script string
	// SampleVideoURL is the pre-recorded substitute shown when video
	// synthesis fails or times out.
	SampleVideoURL string

	// SourceAudioURL is the fixed call recording for voice-dub scenarios.
	SourceAudioURL string

	// SwapColumn receives the face-swap result for swap-video scenarios.
	SwapColumn user.Column
	// VideoColumn receives the talking-photo result.
	VideoColumn user.Column
	// AudioColumn receives the dubbed call for voice-dub scenarios.
	AudioColumn user.Column
}

// BaseImageURL resolves the gender-parameterized template image.
func (d Definition) BaseImageURL(gender user.Gender) string {
	return fmt.Sprintf(d.BaseImageTemplate, gender)
}

// Catalog maps scenario keys to their static definitions.
type Catalog map[Key]Definition

// DefaultCatalog builds the production scenario set served from the asset
// CDN at assetBaseURL (e.g. https://dxxxx.cloudfront.net/video-url).
func DefaultCatalog(assetBaseURL string) Catalog {
	base := strings.TrimSuffix(assetBaseURL, "/")
	return Catalog{
		KeyLottery: {
			Key:               KeyLottery,
			Kind:              KindSwapVideo,
			BaseImageTemplate: base + "/fakenews-case1-%s.png",
			Script:            "1등 당첨돼서 정말 기뻐요! 감사합니다!",
			SampleVideoURL:    base + "/scenario1_sample.mp4",
			SwapColumn:        user.ColLotteryFaceSwap,
			VideoColumn:       user.ColLotteryVideo,
		},
		KeyCrime: {
			Key:               KeyCrime,
			Kind:              KindSwapVideo,
			BaseImageTemplate: base + "/fakenews-case2-%s.png",
			Script:            "제가 한 거 아니에요... 찍지 마세요. 죄송합니다…",
			SampleVideoURL:    base + "/scenario1_sample.mp4",
			SwapColumn:        user.ColCrimeFaceSwap,
			VideoColumn:       user.ColCrimeVideo,
		},
		KeyInvestmentCall: {
			Key:            KeyInvestmentCall,
			Kind:           KindVoiceDub,
			SourceAudioURL: base + "/voice1.mp3",
			AudioColumn:    user.ColInvestmentCallAudio,
		},
		KeyAccidentCall: {
			Key:            KeyAccidentCall,
			Kind:           KindVoiceDub,
			SourceAudioURL: base + "/voice2.mp3",
			AudioColumn:    user.ColAccidentCallAudio,
		},
	}
}

// SwapVideoKeys returns the swap-video scenario keys in stable order.
func (c Catalog) SwapVideoKeys() []Key {
	return c.keysOfKind(KindSwapVideo)
}

// VoiceDubKeys returns the voice-dub scenario keys in stable order.
func (c Catalog) VoiceDubKeys() []Key {
	return c.keysOfKind(KindVoiceDub)
}

func (c Catalog) keysOfKind(kind Kind) []Key {
	order := []Key{KeyLottery, KeyCrime, KeyInvestmentCall, KeyAccidentCall}
	keys := make([]Key, 0, len(c))
	for _, k := range order {
		if def, ok := c[k]; ok && def.Kind == kind {
			keys = append(keys, k)
		}
	}
	for k, def := range c {
		if def.Kind == kind && !containsKey(keys, k) && !containsKey(order, k) {
			keys = append(keys, k)
		}
	}
	return keys
}

func containsKey(keys []Key, k Key) bool {
	for _, key := range keys {
		if key == k {
			return true
		}
	}
	return false
}

// Get returns the definition for key or ErrUnknownScenario.
func (c Catalog) Get(key Key) (Definition, error) {
	def, ok := c[key]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownScenario, key)
	}
	return def, nil
}

// Validate checks every entry carries the fields its kind requires.
// Called once at startup so a broken catalog fails fast.
func (c Catalog) Validate() error {
	for key, def := range c {
		if def.Key != key {
			return fmt.Errorf("%w: %s: key mismatch", ErrInvalidCatalog, key)
		}
		switch def.Kind {
		case KindSwapVideo:
			if def.BaseImageTemplate == "" || !strings.Contains(def.BaseImageTemplate, "%s") {
				return fmt.Errorf("%w: %s: base image template must be gender-parameterized", ErrInvalidCatalog, key)
			}
			if def.Script == "" {
				return fmt.Errorf("%w: %s: missing script", ErrInvalidCatalog, key)
			}
			if def.SampleVideoURL == "" {
				return fmt.Errorf("%w: %s: missing sample video", ErrInvalidCatalog, key)
			}
			if def.SwapColumn == "" || def.VideoColumn == "" {
				return fmt.Errorf("%w: %s: missing output columns", ErrInvalidCatalog, key)
			}
		case KindVoiceDub:
			if def.SourceAudioURL == "" {
				return fmt.Errorf("%w: %s: missing source audio", ErrInvalidCatalog, key)
			}
			if def.AudioColumn == "" {
				return fmt.Errorf("%w: %s: missing output column", ErrInvalidCatalog, key)
			}
		default:
			return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidCatalog, key, def.Kind)
		}
	}
	return nil
}
