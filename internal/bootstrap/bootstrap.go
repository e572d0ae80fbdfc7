// Package bootstrap provides dependency initialization for the scenario API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/awarelab/scenario-api/internal/akool"
	"github.com/awarelab/scenario-api/internal/config"
	"github.com/awarelab/scenario-api/internal/elevenlabs"
	"github.com/awarelab/scenario-api/internal/job"
	"github.com/awarelab/scenario-api/internal/narration"
	"github.com/awarelab/scenario-api/internal/quiz"
	"github.com/awarelab/scenario-api/internal/scenario"
	"github.com/awarelab/scenario-api/internal/server"
	"github.com/awarelab/scenario-api/internal/storage"
	"github.com/awarelab/scenario-api/internal/user"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Handlers *server.Handlers

	closers []func()
}

// Close releases held resources such as database pools.
func (d *Dependencies) Close() {
	for _, fn := range d.closers {
		fn()
	}
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	users, err := initUserStore(ctx, cfg, logger, deps)
	if err != nil {
		return nil, err
	}

	quizzes, err := initQuizRepository(ctx, cfg, logger, deps)
	if err != nil {
		return nil, err
	}

	akoolClient, err := akool.NewClient(
		cfg.AkoolClientID,
		cfg.AkoolClientSecret,
		akool.WithAPIKey(cfg.AkoolAPIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("create Akool client: %w", err)
	}

	elevenClient, err := elevenlabs.NewClient(cfg.ElevenLabsAPIKey)
	if err != nil {
		return nil, fmt.Errorf("create ElevenLabs client: %w", err)
	}
	converter := elevenlabs.NewConverter(elevenClient)

	catalog := scenario.DefaultCatalog(cfg.AssetBaseURL)
	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("scenario catalog: %w", err)
	}

	jobs := job.NewMemoryRepository()

	orchestrator := scenario.NewOrchestrator(catalog, scenario.Deps{
		Users:         users,
		Jobs:          jobs,
		FaceSwapper:   akoolClient,
		TalkingPhotos: akoolClient,
		Speech:        elevenClient,
		Converter:     converter,
		Downloader:    akoolClient,
		Storage:       store,
		Logger:        logger,
	})

	scenarios := scenario.NewService(users, jobs, orchestrator, logger)
	narrations := narration.NewService(elevenClient, store, logger)

	deps.Handlers = server.NewHandlers(users, quizzes, scenarios, narrations, logger)
	return deps, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			CloudFrontURL:   cfg.CloudFrontDomain,
		}
		s3Store, err := storage.NewS3Storage(s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("base_dir", localStore.BaseDir()),
	)
	return localStore, nil
}

// initUserStore creates the Postgres-backed user store, or an in-memory one
// when no database is configured.
func initUserStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps *Dependencies) (user.Store, error) {
	if cfg.DatabaseEnabled() {
		pg, err := user.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("create postgres user store: %w", err)
		}
		deps.closers = append(deps.closers, pg.Close)
		logger.Info("postgres user store configured")
		return pg, nil
	}

	logger.Warn("no DATABASE_URL set, using in-memory user store")
	return user.NewMemoryStore(), nil
}

// initQuizRepository creates the Postgres-backed quiz answer repository, or an
// in-memory one when no database is configured.
func initQuizRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps *Dependencies) (quiz.Repository, error) {
	if cfg.DatabaseEnabled() {
		pg, err := quiz.NewPostgresRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("create postgres quiz repository: %w", err)
		}
		deps.closers = append(deps.closers, pg.Close)
		logger.Info("postgres quiz repository configured")
		return pg, nil
	}

	return quiz.NewMemoryRepository(), nil
}
