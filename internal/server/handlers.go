package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/awarelab/scenario-api/internal/narration"
	"github.com/awarelab/scenario-api/internal/quiz"
	"github.com/awarelab/scenario-api/internal/scenario"
	"github.com/awarelab/scenario-api/internal/user"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	users      user.Store
	quizzes    quiz.Repository
	scenarios  *scenario.Service
	narrations *narration.Service
	validator  *validator.Validate
	logger     *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(users user.Store, quizzes quiz.Repository, scenarios *scenario.Service, narrations *narration.Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		users:      users,
		quizzes:    quizzes,
		scenarios:  scenarios,
		narrations: narrations,
		validator:  validator.New(),
		logger:     logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

/// CreateUser handles POST /api/users requests: it registers a participant
// with their face photo and cloned voice, starting in pending status.
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	rec, err := user.New(req.Name, req.ImageURL, req.VoiceID, user.Gender(req.Gender))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_USER")
		return
	}

	if err := h.users.Create(r.Context(), rec); err != nil {
		h.logger.Error("failed to create user", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create user", "USER_CREATION_FAILED")
		return
	}

	h.logger.Info("user created", slog.String("user_id", rec.ID))
	writeJSON(w, http.StatusCreated, userResponse(rec))
}

// GetUser handles GET /api/users/{id} requests.
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadUser(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, userResponse(rec))
}

// UpdateProgress handles PUT /api/users/{id}/progress requests. Only the
// fields present in the body are written.
func (h *Handlers) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadUser(w, r, r.PathValue("id"))
	if !ok {
		return
	}

	var req ProgressUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	patch := user.Patch{}
	if req.CurrentPage != nil {
		patch[user.ColCurrentPage] = *req.CurrentPage
	}
	if req.CurrentStep != nil {
		patch[user.ColCurrentStep] = *req.CurrentStep
	}
	if req.CompletedModules != nil {
		patch[user.ColCompletedModules] = req.CompletedModules
	}

	if len(patch) > 0 {
		if err := h.users.Patch(r.Context(), rec.ID, patch); err != nil {
			h.logger.Error("failed to update progress",
				slog.String("user_id", rec.ID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to update progress", "PROGRESS_UPDATE_FAILED")
			return
		}
	}

	updated, ok := h.loadUser(w, r, rec.ID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, userResponse(updated))
}

// SaveQuizAnswer handles POST /api/quiz-answers requests.
func (h *Handlers) SaveQuizAnswer(w http.ResponseWriter, r *http.Request) {
	var req QuizAnswerRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if _, ok := h.loadUser(w, r, req.UserID); !ok {
		return
	}

	answer, err := quiz.New(req.UserID, req.Module, req.Answers)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_QUIZ_ANSWER")
		return
	}

	if err := h.quizzes.Save(r.Context(), answer); err != nil {
		h.logger.Error("failed to save quiz answer",
			slog.String("user_id", req.UserID),
			slog.String("module", req.Module),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to save quiz answer", "QUIZ_SAVE_FAILED")
		return
	}

	writeJSON(w, http.StatusCreated, quizAnswerResponse(answer))
}

// ListQuizAnswers handles GET /api/users/{id}/quiz-answers requests. An
// optional module query parameter restricts the list.
func (h *Handlers) ListQuizAnswers(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadUser(w, r, r.PathValue("id"))
	if !ok {
		return
	}

	answers, err := h.quizzes.ListByUser(r.Context(), rec.ID, r.URL.Query().Get("module"))
	if err != nil {
		h.logger.Error("failed to list quiz answers",
			slog.String("user_id", rec.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list quiz answers", "QUIZ_LIST_FAILED")
		return
	}

	out := make([]QuizAnswerResponse, 0, len(answers))
	for _, a := range answers {
		out = append(out, quizAnswerResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

// StartGeneration handles POST /api/scenario-generation/start requests.
// The guard check runs synchronously; the pipeline itself is detached, so
// this always returns quickly.
func (h *Handlers) StartGeneration(w http.ResponseWriter, r *http.Request) {
	var req StartGenerationRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	rec, ok := h.loadUser(w, r, req.UserID)
	if !ok {
		return
	}

	// Omitted inputs default to what onboarding stored.
	imageURL := req.ImageURL
	if imageURL == "" {
		imageURL = rec.ImageURL
	}
	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = rec.VoiceID
	}
	gender := user.Gender(req.Gender)
	if req.Gender == "" {
		gender = rec.Gender
	}

	result, _, err := h.scenarios.StartPreGeneration(r.Context(), req.UserID, imageURL, voiceID, gender)
	if err != nil {
		if errors.Is(err, scenario.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found", "USER_NOT_FOUND")
			return
		}
		h.logger.Error("failed to start pre-generation",
			slog.String("user_id", req.UserID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to start generation", "GENERATION_START_FAILED")
		return
	}

	writeJSON(w, http.StatusAccepted, StartGenerationResponse{
		Status:  string(result.Status),
		Message: result.Message,
	})
}

// GenerationStatus handles GET /api/users/{id}/pregeneration-status
// requests. Pure read-through; no orchestration logic.
func (h *Handlers) GenerationStatus(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user ID is required", "MISSING_USER_ID")
		return
	}

	report, err := h.scenarios.Status(r.Context(), userID)
	if err != nil {
		if errors.Is(err, scenario.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found", "USER_NOT_FOUND")
			return
		}
		h.logger.Error("failed to read generation status",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read status", "STATUS_FETCH_FAILED")
		return
	}

	resp := GenerationStatusResponse{
		Status:      string(report.Status),
		StartedAt:   report.StartedAt,
		CompletedAt: report.CompletedAt,
		Error:       report.Error,
		Assets:      make(map[string]string, len(report.Assets)),
		Jobs:        make([]JobStatus, 0, len(report.Jobs)),
	}
	for col, url := range report.Assets {
		resp.Assets[string(col)] = url
	}
	for _, j := range report.Jobs {
		resp.Jobs = append(resp.Jobs, JobStatus{
			Type:      string(j.Type),
			Key:       j.Key,
			Status:    string(j.Status),
			ResultURL: j.ResultURL,
			Error:     j.Error,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// Narrate handles POST /api/narration requests.
func (h *Handlers) Narrate(w http.ResponseWriter, r *http.Request) {
	var req NarrationRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.narrations.Narrate(r.Context(), req.UserID, req.StepID, req.Script, req.VoiceID)
	if err != nil {
		if errors.Is(err, narration.ErrEmptyScript) {
			writeError(w, http.StatusBadRequest, err.Error(), "EMPTY_SCRIPT")
			return
		}
		h.logger.Error("narration failed",
			slog.String("user_id", req.UserID),
			slog.String("step_id", req.StepID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "narration synthesis failed", "NARRATION_FAILED")
		return
	}

	// Warm the next step while the user listens to this one.
	if req.NextStepID != "" && req.NextScript != "" {
		h.narrations.Preload(r.Context(), req.UserID, req.NextStepID, req.NextScript, req.VoiceID)
	}

	writeJSON(w, http.StatusOK, NarrationResponse{
		AudioURL: result.URL,
		Cached:   result.Cached,
		Accesses: result.Accesses,
	})
}

// SweepNarration handles POST /api/narration/sweep requests.
func (h *Handlers) SweepNarration(w http.ResponseWriter, r *http.Request) {
	h.narrations.Sweep()
	w.WriteHeader(http.StatusNoContent)
}

// decodeAndValidate decodes the JSON body into req and validates it,
// writing the error response itself on failure.
func (h *Handlers) decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		h.logger.Warn("failed to decode request body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

// loadUser fetches a user record, writing the error response on failure.
func (h *Handlers) loadUser(w http.ResponseWriter, r *http.Request, userID string) (*user.Record, bool) {
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user ID is required", "MISSING_USER_ID")
		return nil, false
	}
	rec, err := h.users.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found", "USER_NOT_FOUND")
			return nil, false
		}
		h.logger.Error("failed to get user",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get user", "USER_FETCH_FAILED")
		return nil, false
	}
	return rec, true
}

// userResponse maps a record to its HTTP representation.
func userResponse(rec *user.Record) UserResponse {
	assets := make(map[string]string, len(user.AssetColumns))
	for _, col := range user.AssetColumns {
		assets[string(col)] = rec.AssetURL(col)
	}
	modules := rec.CompletedModules
	if modules == nil {
		modules = []string{}
	}
	return UserResponse{
		ID:                  rec.ID,
		Name:                rec.Name,
		ImageURL:            rec.ImageURL,
		VoiceID:             rec.VoiceID,
		Gender:              string(rec.Gender),
		PreGenerationStatus: string(rec.PreGenerationStatus),
		Assets:              assets,
		CurrentPage:         rec.CurrentPage,
		CurrentStep:         rec.CurrentStep,
		CompletedModules:    modules,
		CreatedAt:           rec.CreatedAt,
	}
}

// quizAnswerResponse maps a submission to its HTTP representation.
func quizAnswerResponse(a *quiz.Answer) QuizAnswerResponse {
	return QuizAnswerResponse{
		ID:        a.ID,
		UserID:    a.UserID,
		Module:    a.Module,
		Answers:   a.Answers,
		CreatedAt: a.CreatedAt,
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
