package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgallion1/docx2dita/internal/images"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Conversion defaults
	PreferencesPath string
	ImageDir        string
	DetectShortDesc bool
	DetectNotes     bool
	ConfirmNotes    bool
	ImagePlacement  string

	// Claude-backed decisions
	AnthropicAPIKey string
	AnthropicModel  string
	DecisionTimeout time.Duration

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("DOCX2DITA_API_KEY"),

		PreferencesPath: envOr("PREFERENCES_PATH", "preferences.yaml"),
		ImageDir:        envOr("IMAGE_DIR", "images"),
		DetectShortDesc: envBool("DETECT_SHORTDESC", false),
		DetectNotes:     envBool("DETECT_NOTES", true),
		ConfirmNotes:    envBool("CONFIRM_NOTES", false),
		ImagePlacement:  envOr("IMAGE_PLACEMENT", "last"),

		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		DecisionTimeout: envDuration("DECISION_TIMEOUT", 20*time.Second),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.DecisionTimeout <= 0 {
		cfg.DecisionTimeout = 20 * time.Second
	}

	return cfg
}

// Validate checks settings shared by every entry point.
func (c Config) Validate() error {
	if _, err := images.ParsePlacement(c.ImagePlacement); err != nil {
		return fmt.Errorf("IMAGE_PLACEMENT: %w", err)
	}
	return nil
}

// ValidateServer also requires the settings the HTTP service cannot run without.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("DOCX2DITA_API_KEY is required")
	}
	return nil
}

// Placement returns the parsed image placement, defaulting to last step.
func (c Config) Placement() images.Placement {
	p, _ := images.ParsePlacement(c.ImagePlacement)
	return p
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
