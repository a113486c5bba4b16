package config

import (
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Storage    StorageConfig
	Transcribe TranscribeConfig
	AI         AIConfig
	Pipeline   PipelineConfig
	Encryption EncryptionConfig
	PII        PIIConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	Environment     string
	AllowedOrigins  []string
	ShutdownTimeout int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	Name        string
	SSLMode     string
	MaxConns    int
	MinConns    int
	AutoMigrate bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int

	// DedupWindow bounds how long an identical upload is rejected as duplicate
	DedupWindow time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	UseSSL          bool
}

// TranscribeConfig holds speech-to-text configuration
type TranscribeConfig struct {
	APIKey       string
	LanguageCode string
	PollInterval time.Duration
	Timeout      time.Duration
}

// AIConfig holds text-generation configuration for masking and analysis
type AIConfig struct {
	APIKey  string
	BaseURL string

	// Models are candidate model ids tried in order; the first one returning
	// a usable result wins. Each candidate is tried at most once per request.
	Models  []string
	Timeout time.Duration
}

// PipelineConfig bounds whole-call processing.
// Timeout covers the full per-call chain (transcription, masking,
// analysis, persistence) and must leave headroom beyond the
// transcription timeout so a slow transcription cannot starve the
// later stages.
type PipelineConfig struct {
	Timeout time.Duration
}

// EncryptionConfig holds the at-rest encryption key material.
// Key is base64 of 32 raw bytes. Empty means encryption is disabled and
// transcription/analysis payloads are stored in plaintext shape.
type EncryptionConfig struct {
	Key []byte
}

// PIIConfig holds locale settings for masking placeholder tokens
type PIIConfig struct {
	Locale string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables or defaults")
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Host:            getEnv("HOST", "0.0.0.0"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			AllowedOrigins:  []string{getEnv("ALLOWED_ORIGINS", "http://localhost:3000")},
			ShutdownTimeout: getEnvAsInt("SHUTDOWN_TIMEOUT", 10),
		},
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnv("DB_PORT", "5432"),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "postgres"),
			Name:        getEnv("DB_NAME", "voxanalyze"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			MaxConns:    getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:    getEnvAsInt("DB_MIN_CONNS", 5),
			AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			Host:        getEnv("REDIS_HOST", "localhost"),
			Port:        getEnv("REDIS_PORT", "6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvAsInt("REDIS_DB", 0),
			DedupWindow: getEnvAsDuration("UPLOAD_DEDUP_WINDOW", "10m"),
		},
		JWT: JWTConfig{
			AccessSecret:  getEnv("JWT_ACCESS_SECRET", "your-access-secret-change-in-production"),
			RefreshSecret: getEnv("JWT_REFRESH_SECRET", "your-refresh-secret-change-in-production"),
			AccessExpiry:  getEnvAsDuration("JWT_ACCESS_EXPIRY", "15m"),
			RefreshExpiry: getEnvAsDuration("JWT_REFRESH_EXPIRY", "168h"),
		},
		Storage: StorageConfig{
			Endpoint:        getEnv("STORAGE_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
			SecretAccessKey: getEnv("STORAGE_SECRET_KEY", "minioadmin"),
			BucketName:      getEnv("STORAGE_BUCKET", "voxanalyze-recordings"),
			UseSSL:          getEnvAsBool("STORAGE_USE_SSL", false),
		},
		Transcribe: TranscribeConfig{
			APIKey:       getEnv("ASSEMBLYAI_API_KEY", ""),
			LanguageCode: getEnv("TRANSCRIBE_LANGUAGE", "lt"),
			PollInterval: getEnvAsDuration("TRANSCRIBE_POLL_INTERVAL", "3s"),
			Timeout:      getEnvAsDuration("TRANSCRIBE_TIMEOUT", "10m"),
		},
		AI: AIConfig{
			APIKey:  getEnv("AI_API_KEY", ""),
			BaseURL: getEnv("AI_API_URL", "https://api.groq.com"),
			Models:  getEnvAsList("AI_MODELS", "llama-3.3-70b-versatile,llama-3.1-8b-instant"),
			Timeout: getEnvAsDuration("AI_TIMEOUT", "90s"),
		},
		Pipeline: PipelineConfig{
			Timeout: getEnvAsDuration("PIPELINE_TIMEOUT", "30m"),
		},
		PII: PIIConfig{
			Locale: getEnv("PII_LOCALE", "lt"),
		},
	}

	key, err := loadEncryptionKey()
	if err != nil {
		return nil, err
	}
	config.Encryption.Key = key

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// loadEncryptionKey decodes ENCRYPTION_KEY (base64, 32 bytes).
// An absent key disables at-rest encryption; a malformed key is a hard
// startup error, never a silent fallback to plaintext.
func loadEncryptionKey() ([]byte, error) {
	raw := getEnv("ENCRYPTION_KEY", "")
	if raw == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.JWT.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if len(c.AI.Models) == 0 {
		return fmt.Errorf("AI_MODELS must list at least one candidate model")
	}
	if c.Pipeline.Timeout <= c.Transcribe.Timeout {
		return fmt.Errorf("PIPELINE_TIMEOUT (%v) must exceed TRANSCRIBE_TIMEOUT (%v) to leave room for masking and analysis", c.Pipeline.Timeout, c.Transcribe.Timeout)
	}
	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// EncryptionEnabled reports whether an at-rest encryption key is configured
func (c *Config) EncryptionEnabled() bool {
	return len(c.Encryption.Key) > 0
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}

func getEnvAsList(key string, defaultValue string) []string {
	valueStr := getEnv(key, defaultValue)
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
