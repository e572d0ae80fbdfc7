// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrAkoolCredentialsRequired is returned when neither AKOOL_API_KEY nor
	// the AKOOL_CLIENT_ID/AKOOL_CLIENT_SECRET pair is set.
	ErrAkoolCredentialsRequired = errors.New("config: akool credentials are required (AKOOL_API_KEY or AKOOL_CLIENT_ID + AKOOL_CLIENT_SECRET)")
	// ErrElevenLabsAPIKeyRequired is returned when ELEVENLABS_API_KEY is not set.
	ErrElevenLabsAPIKeyRequired = errors.New("config: ELEVENLABS_API_KEY is required")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Akool settings (face swap + talking photo provider)
	AkoolClientID     string `env:"AKOOL_CLIENT_ID" json:"akool_client_id,omitempty"`
	AkoolClientSecret string `env:"AKOOL_CLIENT_SECRET" json:"-"` // Masked in JSON
	AkoolAPIKey       string `env:"AKOOL_API_KEY" json:"-"`       // Masked in JSON

	// ElevenLabs settings (TTS + speech-to-speech dubbing provider)
	ElevenLabsAPIKey string `env:"ELEVENLABS_API_KEY" json:"-"` // Masked in JSON

	// Database settings. When DATABASE_URL is empty the service falls back to
	// an in-memory user store (development only).
	DatabaseURL string `env:"DATABASE_URL" json:"-"` // Masked in JSON

	// Storage settings
	TempDir            string `env:"TEMP_DIR, default=/tmp/scenario-api" json:"temp_dir"`
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON
	CloudFrontDomain   string `env:"CLOUDFRONT_DOMAIN" json:"cloudfront_domain,omitempty"`

	// AssetBaseURL is the CDN prefix for static scenario assets
	// (gender-parameterized base images, fixed dub sources, sample videos).
	AssetBaseURL string `env:"ASSET_BASE_URL, default=https://d3srmxrzq4dz1v.cloudfront.net/video-url" json:"asset_base_url"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// DatabaseEnabled returns true if a Postgres connection string is provided.
func (c *Config) DatabaseEnabled() bool {
	return c.DatabaseURL != ""
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.AkoolAPIKey == "" && (c.AkoolClientID == "" || c.AkoolClientSecret == "") {
		return ErrAkoolCredentialsRequired
	}
	if c.ElevenLabsAPIKey == "" {
		return ErrElevenLabsAPIKeyRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, AkoolClientID: %s, DatabaseEnabled: %t, TempDir: %s, S3Bucket: %s, S3Region: %s, CloudFrontDomain: %s, AssetBaseURL: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.AkoolClientID,
		c.DatabaseEnabled(),
		c.TempDir,
		c.S3Bucket,
		c.S3Region,
		c.CloudFrontDomain,
		c.AssetBaseURL,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
