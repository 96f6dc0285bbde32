package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var defaultAllowedContentTypes = []string{
	"image/png",
	"image/jpeg",
	"application/pdf",
	"text/plain",
	"application/octet-stream",
}

type Config struct {
	// Server
	Port           string
	Environment    string
	BaseURL        string
	FrontendOrigin string
	LogLevel       string

	// Database
	DatabaseURL   string
	RunMigrations bool

	// Auth
	SecretKey           string
	AccessTokenTTL      time.Duration
	SessionCookieMaxAge time.Duration
	GoogleClientID      string
	GoogleClientSecret  string
	GoogleRedirectURL   string

	// OpenAI
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	OutcomeTimeout    time.Duration
	OutcomeRetries    int
	OutcomeRetryDelay time.Duration

	// AWS
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string

	// S3
	S3Bucket              string
	S3Endpoint            string
	S3PublicBaseURL       string
	S3KeyPrefix           string
	S3PresignExpires      time.Duration
	S3MaxBytes            int64
	S3AllowedContentTypes []string
	S3SSEAlgorithm        string
	S3KMSKeyID            string

	// SQS
	SQSUploadsQueueURL string

	// Blocking calls (object store HEAD, model provider) run on a bounded pool.
	BlockingCallConcurrency int
}

// Load reads .env (or the file named by ENV_FILE) when present and then
// resolves every setting from the environment with defaults applied.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	allowed, err := ParseContentTypes(v.GetString("S3_ALLOWED_CONTENT_TYPES"))
	if err != nil {
		return nil, fmt.Errorf("invalid S3_ALLOWED_CONTENT_TYPES: %w", err)
	}
	if len(allowed) == 0 {
		allowed = append([]string(nil), defaultAllowedContentTypes...)
	}

	cfg := &Config{
		Port:           v.GetString("PORT"),
		Environment:    v.GetString("ENV"),
		BaseURL:        v.GetString("BASE_URL"),
		FrontendOrigin: v.GetString("FRONTEND_ORIGIN"),
		LogLevel:       v.GetString("LOG_LEVEL"),

		DatabaseURL:   v.GetString("DATABASE_URL"),
		RunMigrations: v.GetBool("RUN_MIGRATIONS"),

		SecretKey:           v.GetString("SECRET_KEY"),
		AccessTokenTTL:      v.GetDuration("ACCESS_TOKEN_TTL"),
		SessionCookieMaxAge: v.GetDuration("SESSION_COOKIE_MAX_AGE"),
		GoogleClientID:      v.GetString("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:  v.GetString("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:   v.GetString("GOOGLE_REDIRECT_URL"),

		OpenAIAPIKey:      v.GetString("OPENAI_API_KEY"),
		OpenAIBaseURL:     v.GetString("OPENAI_BASE_URL"),
		OpenAIModel:       v.GetString("OPENAI_MODEL"),
		OutcomeTimeout:    v.GetDuration("OUTCOME_TIMEOUT"),
		OutcomeRetries:    v.GetInt("OUTCOME_RETRIES"),
		OutcomeRetryDelay: v.GetDuration("OUTCOME_RETRY_DELAY"),

		AWSRegion:          v.GetString("AWS_REGION"),
		AWSAccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
		AWSSessionToken:    v.GetString("AWS_SESSION_TOKEN"),

		S3Bucket:              v.GetString("S3_BUCKET"),
		S3Endpoint:            v.GetString("S3_ENDPOINT"),
		S3PublicBaseURL:       v.GetString("S3_PUBLIC_BASE_URL"),
		S3KeyPrefix:           strings.Trim(v.GetString("S3_KEY_PREFIX"), "/"),
		S3PresignExpires:      time.Duration(v.GetInt64("S3_PRESIGN_EXPIRES")) * time.Second,
		S3MaxBytes:            v.GetInt64("S3_MAX_BYTES"),
		S3AllowedContentTypes: allowed,
		S3SSEAlgorithm:        v.GetString("S3_SSE_ALGORITHM"),
		S3KMSKeyID:            v.GetString("S3_KMS_KEY_ID"),

		SQSUploadsQueueURL: v.GetString("SQS_UPLOADS_QUEUE_URL"),

		BlockingCallConcurrency: v.GetInt("BLOCKING_CALL_CONCURRENCY"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY is required")
	}
	if c.S3Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required")
	}
	if c.S3KeyPrefix == "" {
		return fmt.Errorf("S3_KEY_PREFIX must not be empty")
	}
	if c.S3MaxBytes < 1 {
		return fmt.Errorf("S3_MAX_BYTES must be positive, got %d", c.S3MaxBytes)
	}
	if c.S3PresignExpires <= 0 {
		return fmt.Errorf("S3_PRESIGN_EXPIRES must be positive")
	}
	if c.OutcomeTimeout <= 0 {
		return fmt.Errorf("OUTCOME_TIMEOUT must be positive")
	}
	if c.OutcomeRetries < 0 {
		return fmt.Errorf("OUTCOME_RETRIES must not be negative")
	}
	if c.BlockingCallConcurrency < 1 {
		return fmt.Errorf("BLOCKING_CALL_CONCURRENCY must be at least 1")
	}
	return nil
}

// IsProduction reports whether cookies should be marked Secure and gin run in release mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "prod" || c.Environment == "production"
}

// GoogleOAuthEnabled reports whether the Google login routes should be mounted.
func (c *Config) GoogleOAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

// ParseContentTypes accepts either a JSON array or a comma separated list.
func ParseContentTypes(raw string) ([]string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}

	if strings.HasPrefix(s, "[") {
		var list []string
		if err := json.Unmarshal([]byte(s), &list); err != nil {
			return nil, err
		}
		return normalize(list), nil
	}

	return normalize(strings.Split(s, ",")), nil
}

func normalize(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "dev")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("FRONTEND_ORIGIN", "http://localhost:5173")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("RUN_MIGRATIONS", true)

	v.SetDefault("ACCESS_TOKEN_TTL", "60m")
	v.SetDefault("SESSION_COOKIE_MAX_AGE", "15m")

	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("OPENAI_MODEL", "gpt-5-mini")
	v.SetDefault("OUTCOME_TIMEOUT", "8s")
	v.SetDefault("OUTCOME_RETRIES", 1)
	v.SetDefault("OUTCOME_RETRY_DELAY", "200ms")

	v.SetDefault("AWS_REGION", "us-east-2")
	v.SetDefault("S3_KEY_PREFIX", "uploads")
	v.SetDefault("S3_PRESIGN_EXPIRES", 600)
	v.SetDefault("S3_MAX_BYTES", int64(1_000_000_000))
	v.SetDefault("S3_ALLOWED_CONTENT_TYPES", "")
	v.SetDefault("S3_SSE_ALGORITHM", "AES256")

	v.SetDefault("BLOCKING_CALL_CONCURRENCY", 32)

	// Optional keys still need registering so AutomaticEnv resolves them.
	for _, key := range []string{
		"DATABASE_URL", "SECRET_KEY",
		"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_REDIRECT_URL",
		"OPENAI_API_KEY",
		"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_SESSION_TOKEN",
		"S3_BUCKET", "S3_ENDPOINT", "S3_PUBLIC_BASE_URL", "S3_KMS_KEY_ID",
		"SQS_UPLOADS_QUEUE_URL",
	} {
		v.SetDefault(key, "")
	}
}

func loadDotEnv() error {
	path := os.Getenv("ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
