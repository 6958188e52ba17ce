package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	APIPort   string `validate:"required,numeric"`
	LogLevel  slog.Level
	LogFormat string `validate:"oneof=text json"`
	LogFile   string

	LLMProvider  string `validate:"oneof=openai gemini"`
	LLMBaseURL   string `validate:"omitempty,url"`
	LLMAPIKey    string
	LLMModelName string `validate:"required"`
	// LLMFastModelName is used for query understanding and reranking.
	LLMFastModelName string  `validate:"required"`
	LLMRateLimit     float64 `validate:"gt=0"`
	LLMRateBurst     int     `validate:"gt=0"`
	GeminiAPIKey     string

	EmbeddingProvider  string `validate:"oneof=openai gemini"`
	EmbeddingBaseURL   string `validate:"omitempty,url"`
	EmbeddingModelName string `validate:"required"`
	EmbeddingCacheSize int    `validate:"gt=0"`
	EmbeddingCacheTTL  time.Duration

	DBPath string `validate:"required"`

	DenseBackend     string `validate:"oneof=memory qdrant"`
	QdrantURL        string `validate:"omitempty,url"`
	QdrantCollection string `validate:"required"`

	TTSBaseURL   string
	TTSAPIKey    string
	TTSModelName string
	TTSVoice     string `validate:"required"`
	AudioWorkers int    `validate:"gt=0"`
	AudioTTL     time.Duration
	AudioWait    time.Duration

	RequestTimeout time.Duration `validate:"gt=0"`
	TuningFile     string

	OTelEnabled  bool
	OTelEndpoint string
}

// AudioEnabled reports whether a speech-synthesis endpoint is configured.
func (c *Config) AudioEnabled() bool {
	return c.TTSBaseURL != ""
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "9000"),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		LogFile:            getEnv("LOG_FILE", ""),
		LLMProvider:        strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:8080"),
		LLMAPIKey:          getEnv("LLM_API_KEY", "dummy-key"),
		LLMModelName:       getEnv("LLM_MODEL", "llama-3.3-70b-versatile"),
		LLMFastModelName:   getEnv("LLM_FAST_MODEL", "llama-3.1-8b-instant"),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		EmbeddingProvider:  strings.ToLower(getEnv("EMBEDDING_PROVIDER", "openai")),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "bge-small-en-v1.5"),
		DBPath:             getEnv("DB_PATH", "./data/corpus.db"),
		DenseBackend:       strings.ToLower(getEnv("DENSE_BACKEND", "memory")),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "passages"),
		TTSBaseURL:         getEnv("TTS_BASE_URL", ""),
		TTSAPIKey:          getEnv("TTS_API_KEY", "dummy-key"),
		TTSModelName:       getEnv("TTS_MODEL", "tts-1"),
		TTSVoice:           getEnv("TTS_VOICE", "hi-IN-MadhurNeural"),
		TuningFile:         getEnv("TUNING_FILE", ""),
		OTelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
	}

	var err error
	if err = cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}
	if cfg.LLMRateLimit, err = getEnvFloat("LLM_RATE_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.LLMRateBurst, err = getEnvInt("LLM_RATE_BURST", 10); err != nil {
		return nil, err
	}
	if cfg.EmbeddingCacheSize, err = getEnvInt("EMBEDDING_CACHE_SIZE", 512); err != nil {
		return nil, err
	}
	if cfg.EmbeddingCacheTTL, err = getEnvDuration("EMBEDDING_CACHE_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.AudioWorkers, err = getEnvInt("AUDIO_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.AudioTTL, err = getEnvDuration("AUDIO_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.AudioWait, err = getEnvDuration("AUDIO_WAIT", 20*time.Second); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getEnvDuration("REQUEST_TIMEOUT", 25*time.Second); err != nil {
		return nil, err
	}
	cfg.OTelEnabled = getEnv("OTEL_ENABLED", "false") == "true"

	if err := validate(cfg); err != nil {
		return nil, err
	}

	// Create ./data directory if it doesn't exist
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
			fe := validationErrs[0]
			return fmt.Errorf("invalid configuration: %s failed %q check", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if (cfg.LLMProvider == "gemini" || cfg.EmbeddingProvider == "gemini") && cfg.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when a gemini provider is selected")
	}
	if cfg.DenseBackend == "qdrant" && cfg.QdrantURL == "" {
		return fmt.Errorf("QDRANT_URL is required when DENSE_BACKEND is qdrant")
	}
	return nil
}

// loadDotEnv loads a .env file from the current directory or the nearest parent.
func loadDotEnv() {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err != nil {
		return
	}
	dir := wd
	for i := 0; i < 5; i++ { // Limit search depth
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return // Reached filesystem root
		}
		dir = parent
	}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return v, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	return v, nil
}
