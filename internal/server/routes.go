package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /api/users", h.CreateUser)
	mux.HandleFunc("GET /api/users/{id}", h.GetUser)
	mux.HandleFunc("PUT /api/users/{id}/progress", h.UpdateProgress)
	mux.HandleFunc("GET /api/users/{id}/quiz-answers", h.ListQuizAnswers)
	mux.HandleFunc("GET /api/users/{id}/pregeneration-status", h.GenerationStatus)
	mux.HandleFunc("POST /api/quiz-answers", h.SaveQuizAnswer)
	mux.HandleFunc("POST /api/scenario-generation/start", h.StartGeneration)
	mux.HandleFunc("POST /api/narration", h.Narrate)
	mux.HandleFunc("POST /api/narration/sweep", h.SweepNarration)

	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
