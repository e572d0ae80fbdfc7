// Package server provides the HTTP surface of the scenario API.
// It includes handlers, middleware, routes, and DTOs separated from
// domain types.
package server

import "time"

// CreateUserRequest is the HTTP request body for onboarding a user.
type CreateUserRequest struct {
	// Name is the display name.
	Name string `json:"name"`
	// ImageURL is the uploaded face photo.
	ImageURL string `json:"image_url" validate:"required,url"`
	// VoiceID is the cloned voice identifier.
	VoiceID string `json:"voice_id" validate:"required"`
	// Gender selects the base template images.
	Gender string `json:"gender" validate:"required,oneof=male female"`
}

// UserResponse is the HTTP representation of a user record.
type UserResponse struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name,omitempty"`
	ImageURL            string            `json:"image_url"`
	VoiceID             string            `json:"voice_id"`
	Gender              string            `json:"gender"`
	PreGenerationStatus string            `json:"pre_generation_status"`
	Assets              map[string]string `json:"assets"`
	CurrentPage         string            `json:"current_page,omitempty"`
	CurrentStep         int               `json:"current_step"`
	CompletedModules    []string          `json:"completed_modules"`
	CreatedAt           time.Time         `json:"created_at"`
}

// ProgressUpdateRequest advances a user through the experience. Absent
// fields are left untouched.
type ProgressUpdateRequest struct {
	CurrentPage      *string  `json:"current_page"`
	CurrentStep      *int     `json:"current_step"`
	CompletedModules []string `json:"completed_modules"`
}

// QuizAnswerRequest records the answers for one module's quiz.
type QuizAnswerRequest struct {
	UserID  string         `json:"user_id" validate:"required"`
	Module  string         `json:"module" validate:"required"`
	Answers map[string]any `json:"answers" validate:"required"`
}

// QuizAnswerResponse is the HTTP representation of a quiz submission.
type QuizAnswerResponse struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Module    string         `json:"module"`
	Answers   map[string]any `json:"answers"`
	CreatedAt time.Time      `json:"created_at"`
}

// StartGenerationRequest triggers a pre-generation run. Image, voice and
// gender default to the stored user record when omitted.
type StartGenerationRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	ImageURL string `json:"image_url" validate:"omitempty,url"`
	VoiceID  string `json:"voice_id"`
	Gender   string `json:"gender" validate:"omitempty,oneof=male female"`
}

// StartGenerationResponse acknowledges a trigger.
type StartGenerationResponse struct {
	// Status is one of skipped, already_completed, already_in_progress,
	// rate_limited, started.
	Status string `json:"status"`
	// Message carries caller-facing detail for denied triggers.
	Message string `json:"message,omitempty"`
}

// GenerationStatusResponse is the read-through view of a run.
type GenerationStatusResponse struct {
	Status      string            `json:"status"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Error       string            `json:"error,omitempty"`
	Assets      map[string]string `json:"assets"`
	Jobs        []JobStatus       `json:"jobs"`
}

// JobStatus is one generation task within a run.
type JobStatus struct {
	Type      string `json:"type"`
	Key       string `json:"key"`
	Status    string `json:"status"`
	ResultURL string `json:"result_url,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NarrationRequest asks for one step's narration audio.
type NarrationRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	StepID  string `json:"step_id" validate:"required"`
	Script  string `json:"script" validate:"required"`
	VoiceID string `json:"voice_id" validate:"required"`
	// NextStepID and NextScript optionally preload the following step.
	NextStepID string `json:"next_step_id"`
	NextScript string `json:"next_script"`
}

// NarrationResponse carries the narration audio URL.
type NarrationResponse struct {
	AudioURL string `json:"audio_url"`
	Cached   bool   `json:"cached"`
	Accesses int64  `json:"accesses"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
