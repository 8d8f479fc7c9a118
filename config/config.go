package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Agora    AgoraConfig
	Uploads  UploadsConfig
	Webhook  WebhookConfig
	Redis    RedisConfig
	Database DatabaseConfig
	AWS      AWSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	// PublicBaseURL is the externally reachable base URL of this service.
	// It is handed to the provider at start time so the provider knows
	// where to push recorded files (e.g. https://api.example.com).
	PublicBaseURL string
}

// AgoraConfig holds Agora application identity and REST control-plane credentials.
type AgoraConfig struct {
	AppID          string
	AppCertificate string
	CustomerID     string // basic-auth user against api.agora.io
	CustomerSecret string // basic-auth password
	BaseURL        string // override for tests; default https://api.agora.io
	RequestTimeout time.Duration
}

// UploadsConfig holds webhook file persistence settings.
type UploadsConfig struct {
	// Dir is the local directory recorded files are written to.
	Dir string
	// Retention bounds how long correlation entries are kept before eviction.
	Retention time.Duration
	// StoreBackend selects the correlation store: "memory" or "redis".
	StoreBackend string
}

// WebhookConfig holds signed-callback verification settings.
type WebhookConfig struct {
	// Secret enables HMAC signature verification of inbound callbacks when set.
	Secret string
}

// RedisConfig holds Redis connection settings. Empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DatabaseConfig holds PostgreSQL settings for the upload audit log.
// Empty URL disables the audit repository.
type DatabaseConfig struct {
	URL string
}

// AWSConfig holds credentials and the archive bucket. Empty bucket disables archiving.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	ArchiveBucket        string
	PresignExpireMinutes int
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "60"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			PublicBaseURL:      strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		},
		Agora: AgoraConfig{
			AppID:          getEnv("AGORA_APP_ID", ""),
			AppCertificate: getEnv("AGORA_APP_CERTIFICATE", ""),
			CustomerID:     getEnv("AGORA_CUSTOMER_ID", ""),
			CustomerSecret: getEnv("AGORA_CUSTOMER_SECRET", ""),
			BaseURL:        getEnv("AGORA_BASE_URL", "https://api.agora.io"),
			RequestTimeout: time.Duration(getEnvInt("AGORA_TIMEOUT_SEC", 30)) * time.Second,
		},
		Uploads: UploadsConfig{
			Dir:          getEnv("UPLOADS_DIR", "uploads"),
			Retention:    time.Duration(getEnvInt("UPLOADS_RETENTION_HOURS", 24)) * time.Hour,
			StoreBackend: getEnv("UPLOADS_STORE", "memory"),
		},
		Webhook: WebhookConfig{
			Secret: getEnv("WEBHOOK_SECRET", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ArchiveBucket:        getEnv("AWS_S3_ARCHIVE_BUCKET", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
