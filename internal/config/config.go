// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultMaxUploadBytes is the largest file accepted by POST /api/upload.
const DefaultMaxUploadBytes int64 = 10 << 20

// Config holds all runtime configuration for the service.
type Config struct {
	Port   string
	AppEnv string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string

	Upload  UploadConfig
	Storage StorageConfig
	Log     LogConfig
	Cleanup CleanupConfig
}

// UploadConfig controls validation of incoming files.
type UploadConfig struct {
	MaxBytes int64
	// AllowedContentTypes is matched exactly against the part's Content-Type.
	// An empty list accepts any type.
	AllowedContentTypes []string
	TempDir             string
	// JWTSecret enables bearer-token auth on the upload route when set.
	JWTSecret string
}

// StorageConfig describes the object-storage provider.
// Driver is one of "minio", "s3" or "memory".
type StorageConfig struct {
	Driver     string
	Endpoint   string
	Region     string
	AccessKey  string
	SecretKey  string
	Bucket     string
	PublicBase string // browser-accessible base URL, e.g. "https://cdn.example.com/artwork"
	UseSSL     bool
	PathStyle  bool
	// ObjectACL sends a canned ACL with every put. Buckets that only support
	// bucket policies (MinIO, R2) must leave it off.
	ObjectACL bool
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
	File   string // rotated log file; empty logs to stdout only
}

// CleanupConfig controls the stale temp file sweeper.
type CleanupConfig struct {
	Enabled  bool
	Interval time.Duration
	MaxAge   time.Duration
}

// Load reads configuration from a .env file (if present) and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading from environment")
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		AppEnv:          getEnv("APP_ENV", "development"),
		ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 60*time.Second),
		WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),
		CORSOrigins:     getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		Upload: UploadConfig{
			MaxBytes:            getEnvInt64("UPLOAD_MAX_BYTES", DefaultMaxUploadBytes),
			AllowedContentTypes: getEnvList("UPLOAD_ALLOWED_TYPES", []string{"image/jpeg", "image/png", "image/webp"}),
			TempDir:             getEnv("UPLOAD_TEMP_DIR", os.TempDir()),
			JWTSecret:           getEnv("UPLOAD_JWT_SECRET", ""),
		},

		// Credentials have no defaults: their absence is reported per request
		// as a server misconfiguration.
		Storage: loadStorage(),

		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},

		Cleanup: CleanupConfig{
			Enabled:  getEnvBool("CLEANUP_ENABLED", true),
			Interval: getEnvDuration("CLEANUP_INTERVAL", 30*time.Minute),
			MaxAge:   getEnvDuration("CLEANUP_MAX_AGE", time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// loadStorage reads STORAGE_*. Local MinIO defaults apply only to the minio
// driver; the s3 driver defaults to AWS with public-read object ACLs.
func loadStorage() StorageConfig {
	driver := getEnv("STORAGE_DRIVER", "minio")
	isMinio := driver == "minio"

	sc := StorageConfig{
		Driver:     driver,
		Endpoint:   getEnv("STORAGE_ENDPOINT", ""),
		Region:     getEnv("STORAGE_REGION", "us-east-1"),
		AccessKey:  getEnv("STORAGE_ACCESS_KEY", ""),
		SecretKey:  getEnv("STORAGE_SECRET_KEY", ""),
		Bucket:     getEnv("STORAGE_BUCKET", "artwork"),
		PublicBase: getEnv("STORAGE_PUBLIC_BASE", ""),
		UseSSL:     getEnvBool("STORAGE_USE_SSL", false),
		PathStyle:  getEnvBool("STORAGE_PATH_STYLE", isMinio),
		ObjectACL:  getEnvBool("STORAGE_OBJECT_ACL", driver == "s3"),
	}
	if isMinio {
		if sc.Endpoint == "" {
			sc.Endpoint = "localhost:9000"
		}
		if sc.PublicBase == "" {
			scheme := "http"
			if sc.UseSSL {
				scheme = "https"
			}
			sc.PublicBase = fmt.Sprintf("%s://%s/%s", scheme, sc.Endpoint, sc.Bucket)
		}
	}
	return sc
}

// Validate rejects values the service cannot run with.
// Missing storage credentials are deliberately not checked here.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %q", c.Port)
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", c.Upload.MaxBytes)
	}
	switch c.Storage.Driver {
	case "minio", "s3", "memory":
	default:
		return fmt.Errorf("STORAGE_DRIVER must be one of minio, s3, memory, got %q", c.Storage.Driver)
	}
	if c.Cleanup.Enabled && (c.Cleanup.Interval <= 0 || c.Cleanup.MaxAge <= 0) {
		return fmt.Errorf("CLEANUP_INTERVAL and CLEANUP_MAX_AGE must be positive")
	}
	return nil
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated value. "none" yields an empty list.
func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	if v == "none" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
