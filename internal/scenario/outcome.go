package scenario

import "github.com/awarelab/scenario-api/internal/job"

// State classifies how one generation task finished.
type State string

const (
	// StateSuccess means a user-specific asset was produced and persisted.
	StateSuccess State = "success"
	// StateFallback means a pre-recorded sample was substituted. The
	// user's asset slot stays empty and the outcome does not count toward
	// the aggregate completion tally.
	StateFallback State = "fallback"
	// StateFailure means no asset was produced.
	StateFailure State = "failure"
)

// Outcome records the result of one generation task within a run.
type Outcome struct {
	// Key is the scenario the task belonged to.
	Key Key
	// Type is the kind of work performed.
	Type job.Type
	// State is the terminal classification.
	State State
	// URL is the produced asset, or the sample URL for fallbacks.
	URL string
	// Reason explains failures and fallbacks.
	Reason string
}

// Success builds a success outcome.
func Success(key Key, jobType job.Type, url string) Outcome {
	return Outcome{Key: key, Type: jobType, State: StateSuccess, URL: url}
}

// Fallback builds a fallback outcome carrying the substituted sample URL.
func Fallback(key Key, jobType job.Type, sampleURL, reason string) Outcome {
	return Outcome{Key: key, Type: jobType, State: StateFallback, URL: sampleURL, Reason: reason}
}

// Failure builds a failure outcome.
func Failure(key Key, jobType job.Type, reason string) Outcome {
	return Outcome{Key: key, Type: jobType, State: StateFailure, Reason: reason}
}
