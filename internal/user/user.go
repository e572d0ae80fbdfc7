// Package user provides the user aggregate for the deepfake-awareness
// experience: the uploaded face image, the cloned voice, and the six
// pre-generated scenario asset slots with their aggregate status.
package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Static errors for user persistence.
var (
	// ErrNotFound is returned when a user cannot be found.
	ErrNotFound = errors.New("user: not found")
	// ErrUnknownColumn is returned when a patch references a column that is
	// not part of the asset schema.
	ErrUnknownColumn = errors.New("user: unknown column")
	// ErrInvalidGender is returned when the gender is not male or female.
	ErrInvalidGender = errors.New("user: gender must be male or female")
)

// Gender selects which base template images a user's scenarios are built on.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// IsValid returns true if the gender is one of the supported values.
func (g Gender) IsValid() bool {
	return g == GenderMale || g == GenderFemale
}

// Status is the aggregate pre-generation status for a user.
type Status string

const (
	// StatusPending means pre-generation has not started.
	StatusPending Status = "pending"
	// StatusInProgress means a pre-generation run is active.
	StatusInProgress Status = "in_progress"
	// StatusCompleted means all six assets were produced.
	StatusCompleted Status = "completed"
	// StatusPartialSuccess means between one and five assets were produced.
	StatusPartialSuccess Status = "partial_success"
	// StatusFailed means no asset was produced.
	StatusFailed Status = "failed"
)

// IsTerminal returns true if the status describes a finished run.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusPartialSuccess || s == StatusFailed
}

// Column names a patchable field on the user record. The orchestrator
// persists each asset the moment it is ready, one column at a time.
type Column string

const (
	ColLotteryFaceSwap        Column = "lottery_faceswap_url"
	ColCrimeFaceSwap          Column = "crime_faceswap_url"
	ColLotteryVideo           Column = "lottery_video_url"
	ColCrimeVideo             Column = "crime_video_url"
	ColInvestmentCallAudio    Column = "investment_call_audio_url"
	ColAccidentCallAudio      Column = "accident_call_audio_url"
	ColFaceOpts               Column = "face_opts"
	ColPreGenerationStatus    Column = "pre_generation_status"
	ColPreGenerationStarted   Column = "pre_generation_started_at"
	ColPreGenerationCompleted Column = "pre_generation_completed_at"
	ColPreGenerationError     Column = "pre_generation_error"
	ColCurrentPage            Column = "current_page"
	ColCurrentStep            Column = "current_step"
	ColCompletedModules       Column = "completed_modules"
)

// AssetColumns are the six deliverable slots, in presentation order.
var AssetColumns = []Column{
	ColLotteryFaceSwap,
	ColCrimeFaceSwap,
	ColLotteryVideo,
	ColCrimeVideo,
	ColInvestmentCallAudio,
	ColAccidentCallAudio,
}

// patchable is the set of columns Patch accepts.
var patchable = map[Column]struct{}{
	ColLotteryFaceSwap:        {},
	ColCrimeFaceSwap:          {},
	ColLotteryVideo:           {},
	ColCrimeVideo:             {},
	ColInvestmentCallAudio:    {},
	ColAccidentCallAudio:      {},
	ColFaceOpts:               {},
	ColPreGenerationStatus:    {},
	ColPreGenerationStarted:   {},
	ColPreGenerationCompleted: {},
	ColPreGenerationError:     {},
	ColCurrentPage:            {},
	ColCurrentStep:            {},
	ColCompletedModules:       {},
}

// Patch is a partial update keyed by column. Values are string, int,
// []string, time.Time, or nil (to clear a column).
type Patch map[Column]any

// Validate returns an error if the patch references an unknown column.
func (p Patch) Validate() error {
	for col := range p {
		if _, ok := patchable[col]; !ok {
			return errors.Join(ErrUnknownColumn, errors.New(string(col)))
		}
	}
	return nil
}

// Record is a participant in the awareness experience.
type Record struct {
	// ID is the unique identifier for this user.
	ID string
	// Name is the display name, if given.
	Name string
	// ImageURL is the uploaded face photo.
	ImageURL string
	// VoiceID is the cloned voice identifier at the speech provider.
	VoiceID string
	// Gender selects the base template images.
	Gender Gender

	// LotteryFaceSwapURL is the face-swapped lottery scene.
	LotteryFaceSwapURL string
	// CrimeFaceSwapURL is the face-swapped crime scene.
	CrimeFaceSwapURL string
	// LotteryVideoURL is the talking-photo video for the lottery scene.
	LotteryVideoURL string
	// CrimeVideoURL is the talking-photo video for the crime scene.
	CrimeVideoURL string
	// InvestmentCallAudioURL is the dubbed investment-scam call.
	InvestmentCallAudioURL string
	// AccidentCallAudioURL is the dubbed accident-scam call.
	AccidentCallAudioURL string

	// FaceOpts caches the landmark descriptor for the uploaded face photo
	// so repeat runs skip the detect call.
	FaceOpts string

	// CurrentPage is the frontend page the user last reached.
	CurrentPage string
	// CurrentStep is the step index within the experience.
	CurrentStep int
	// CompletedModules lists the education modules the user has finished.
	CompletedModules []string

	// PreGenerationStatus is the aggregate run status.
	PreGenerationStatus Status
	// PreGenerationStartedAt is when the active run began.
	PreGenerationStartedAt *time.Time
	// PreGenerationCompletedAt is when the last run finished.
	PreGenerationCompletedAt *time.Time
	// PreGenerationError summarizes failures from the last run.
	PreGenerationError string

	// CreatedAt is when the user was created.
	CreatedAt time.Time
	// UpdatedAt is when the user was last updated.
	UpdatedAt time.Time
}

// New creates a user record with a generated ID and pending status.
func New(name, imageURL, voiceID string, gender Gender) (*Record, error) {
	if !gender.IsValid() {
		return nil, ErrInvalidGender
	}
	now := time.Now().UTC()
	return &Record{
		ID:                  uuid.NewString(),
		Name:                name,
		ImageURL:            imageURL,
		VoiceID:             voiceID,
		Gender:              gender,
		PreGenerationStatus: StatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// AssetURL returns the value stored in one of the six deliverable slots.
func (r *Record) AssetURL(col Column) string {
	switch col {
	case ColLotteryFaceSwap:
		return r.LotteryFaceSwapURL
	case ColCrimeFaceSwap:
		return r.CrimeFaceSwapURL
	case ColLotteryVideo:
		return r.LotteryVideoURL
	case ColCrimeVideo:
		return r.CrimeVideoURL
	case ColInvestmentCallAudio:
		return r.InvestmentCallAudioURL
	case ColAccidentCallAudio:
		return r.AccidentCallAudioURL
	default:
		return ""
	}
}

// CompletedAssets counts how many of the six deliverable slots are filled.
func (r *Record) CompletedAssets() int {
	n := 0
	for _, col := range AssetColumns {
		if r.AssetURL(col) != "" {
			n++
		}
	}
	return n
}

// Clone creates a deep copy of the record for safe reads.
func (r *Record) Clone() *Record {
	out := *r
	if r.CompletedModules != nil {
		out.CompletedModules = append([]string(nil), r.CompletedModules...)
	}
	if r.PreGenerationStartedAt != nil {
		t := *r.PreGenerationStartedAt
		out.PreGenerationStartedAt = &t
	}
	if r.PreGenerationCompletedAt != nil {
		t := *r.PreGenerationCompletedAt
		out.PreGenerationCompletedAt = &t
	}
	return &out
}

// Store defines the persistence port for user records.
type Store interface {
	// Create persists a new user.
	Create(ctx context.Context, rec *Record) error

	// Get retrieves a user by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*Record, error)

	// GetByVoiceID retrieves a user by cloned voice ID.
	// Returns ErrNotFound if absent.
	GetByVoiceID(ctx context.Context, voiceID string) (*Record, error)

	// Patch applies a partial update to the named columns.
	// Returns ErrNotFound if the user does not exist.
	Patch(ctx context.Context, id string, patch Patch) error

	// MarkInProgress atomically claims the user for a new pre-generation
	// run. It succeeds only if no other run is active, or if the active
	// run started before cutoff and is therefore considered stuck.
	// Returns false without error when another run holds the claim.
	MarkInProgress(ctx context.Context, id string, startedAt, cutoff time.Time) (bool, error)
}
