package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the process-wide configuration surface, read once at startup
// via Load using the getEnvString/getEnvInt/getEnvBool/getEnvDuration
// helpers below.
type Config struct {
	Port int

	Environment string
	LogLevel    string
	LogFormat   string

	DatabaseURL string
	RedisURL    string

	SpoolDir             string
	SpoolTTL             time.Duration
	UploadChunkCapBytes  int64
	DownloadChunkBytes   int64
	InitialRangeCapBytes int64
	MaxUploadSizeBytes   int64
	MaxPDFSizeBytes      int64

	TranscodeWorkers    int
	DownloadConcurrency int
	DBWriterWorkers     int
	JobTimeout          time.Duration
	MaxRetries          int

	ObjectStoreRootFolderID      string
	ObjectStoreCredentialsPath   string
	ObjectStoreUploadChunkSizeMB int

	TelegramAPIID       int
	TelegramAPIHash     string
	TelegramSessionPath string
	TelegramDownloadDir string
	AccessTokenTTL      time.Duration
	RefreshTokenTTL     time.Duration

	MetricsPort int
}

// Load reads configuration from the environment, failing fast on missing
// required variables and defaulting everything else.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.Port = getEnvInt("PORT", 8080)

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	cfg.SpoolDir = getEnvString("SPOOL_DIR", "/var/lib/media-vault/spool")
	cfg.SpoolTTL = time.Duration(getEnvInt("SPOOL_TTL_SECONDS", 86400)) * time.Second
	cfg.UploadChunkCapBytes = getEnvInt64("UPLOAD_CHUNK_CAP_BYTES", 10*1024*1024)
	cfg.DownloadChunkBytes = getEnvInt64("DOWNLOAD_CHUNK_BYTES", 2*1024*1024)
	cfg.InitialRangeCapBytes = getEnvInt64("INITIAL_RANGE_CAP_BYTES", 2*1024*1024)
	cfg.MaxUploadSizeBytes = getEnvInt64("MAX_UPLOAD_SIZE_BYTES", 5*1024*1024*1024)
	cfg.MaxPDFSizeBytes = getEnvInt64("MAX_PDF_SIZE_BYTES", 100*1024*1024)

	cfg.TranscodeWorkers = getEnvInt("TRANSCODE_WORKERS", 4)
	cfg.DownloadConcurrency = getEnvInt("DOWNLOAD_CONCURRENCY", 3)
	cfg.DBWriterWorkers = getEnvInt("DB_WRITER_WORKERS", 2)
	cfg.JobTimeout, err = getEnvDuration("JOB_TIMEOUT", "30m")
	if err != nil {
		return nil, fmt.Errorf("invalid JOB_TIMEOUT: %w", err)
	}
	cfg.MaxRetries = getEnvInt("MAX_RETRIES", 3)

	cfg.ObjectStoreRootFolderID = os.Getenv("OBJECT_STORE_ROOT_FOLDER_ID")
	if cfg.ObjectStoreRootFolderID == "" {
		return nil, fmt.Errorf("OBJECT_STORE_ROOT_FOLDER_ID is required")
	}
	cfg.ObjectStoreCredentialsPath = os.Getenv("OBJECT_STORE_CREDENTIALS_PATH")
	if cfg.ObjectStoreCredentialsPath == "" {
		return nil, fmt.Errorf("OBJECT_STORE_CREDENTIALS_PATH is required")
	}
	cfg.ObjectStoreUploadChunkSizeMB = getEnvInt("OBJECT_STORE_UPLOAD_CHUNK_SIZE_MB", 10)

	cfg.TelegramAPIID = getEnvInt("TELEGRAM_API_ID", 0)
	cfg.TelegramAPIHash = os.Getenv("TELEGRAM_API_HASH")
	cfg.TelegramSessionPath = getEnvString("TELEGRAM_SESSION_PATH", "/var/lib/media-vault/telegram.session")
	cfg.TelegramDownloadDir = getEnvString("TELEGRAM_DOWNLOAD_DIR", "/var/lib/media-vault/telegram-downloads")

	cfg.AccessTokenTTL, err = getEnvDuration("ACCESS_TOKEN_TTL", "15m")
	if err != nil {
		return nil, fmt.Errorf("invalid ACCESS_TOKEN_TTL: %w", err)
	}
	cfg.RefreshTokenTTL, err = getEnvDuration("REFRESH_TOKEN_TTL", "720h")
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_TOKEN_TTL: %w", err)
	}

	cfg.Environment = getEnvString("ENVIRONMENT", "development")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.LogFormat = os.Getenv("LOG_FORMAT")
	cfg.MetricsPort = getEnvInt("METRICS_PORT", 9090)

	return cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key, defaultValue string) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	return time.ParseDuration(value)
}

// Validate catches obviously-wrong values before any component starts.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MaxUploadSizeBytes < 1 {
		return fmt.Errorf("invalid max upload size: %d", c.MaxUploadSizeBytes)
	}
	if c.TranscodeWorkers < 1 {
		return fmt.Errorf("invalid transcode workers: %d", c.TranscodeWorkers)
	}
	if c.DownloadConcurrency < 1 {
		return fmt.Errorf("invalid download concurrency: %d", c.DownloadConcurrency)
	}
	if c.DBWriterWorkers < 1 {
		return fmt.Errorf("invalid db writer workers: %d", c.DBWriterWorkers)
	}
	return nil
}
