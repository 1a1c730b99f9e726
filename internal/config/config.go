/**
 * Configuration for the OCRR Worker
 *
 * Defaults, then the optional YAML file named by CONFIG_FILE, then
 * environment variables. Later sources win.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/adverant/nexus/ocrr-worker/internal/redaction"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration
	RedisURL     string `yaml:"redisUrl"`
	QueueName    string `yaml:"queueName"`
	QueueBackend string `yaml:"queueBackend"` // redis or asynq

	// PostgreSQL job tracking
	DatabaseURL string `yaml:"databaseUrl"`

	// MongoDB task records
	MongoURI         string `yaml:"mongoUri"`
	MongoUploadDB    string `yaml:"mongoUploadDb"`
	MongoWorkspaceDB string `yaml:"mongoWorkspaceDb"`

	// MinIO report archive, disabled when the endpoint is empty
	MinIOEndpoint  string `yaml:"minioEndpoint"`
	MinIOAccessKey string `yaml:"minioAccessKey"`
	MinIOSecretKey string `yaml:"minioSecretKey"`
	MinIOBucket    string `yaml:"minioBucket"`
	MinIOUseSSL    bool   `yaml:"minioUseSsl"`

	// Kafka status events, disabled when no brokers are set
	KafkaBrokers []string `yaml:"kafkaBrokers"`
	KafkaTopic   string   `yaml:"kafkaTopic"`

	WebhookEnabled bool `yaml:"webhookEnabled"`

	// Redaction
	DocumentMode string `yaml:"documentMode"` // 1/permissive or 0/strict

	// Worker configuration
	WorkerConcurrency int   `yaml:"workerConcurrency"`
	ProcessingTimeout int64 `yaml:"processingTimeout"` // milliseconds
	MaxFileSize       int64 `yaml:"maxFileSize"`

	// Tesseract configuration
	TessdataPrefix      string `yaml:"tessdataPrefix"`
	OCRLanguage         string `yaml:"ocrLanguage"`
	OCRRegionalLanguage string `yaml:"ocrRegionalLanguage"`

	// Directories
	UploadDir    string `yaml:"uploadDir"`
	WorkspaceDir string `yaml:"workspaceDir"`

	HTTPAddr  string `yaml:"httpAddr"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
}

// Defaults returns the configuration used when nothing overrides it
func Defaults() *Config {
	return &Config{
		RedisURL:            "redis://localhost:6379",
		QueueName:           "ocrr:jobs",
		QueueBackend:        "redis",
		MongoUploadDB:       "upload",
		MongoWorkspaceDB:    "ocrrworkspace",
		MinIOBucket:         "ocrr-reports",
		KafkaTopic:          "ocrr.status",
		WebhookEnabled:      true,
		DocumentMode:        "1",
		WorkerConcurrency:   4,
		ProcessingTimeout:   300000,   // 5 minutes
		MaxFileSize:         52428800, // 50MB
		OCRLanguage:         "eng",
		OCRRegionalLanguage: "hin+eng",
		UploadDir:           "/data/upload",
		WorkspaceDir:        "/data/ocrrworkspace",
		HTTPAddr:            ":8098",
		LogLevel:            "info",
		LogFormat:           "json",
	}
}

// LoadConfig loads configuration from CONFIG_FILE and environment variables
func LoadConfig() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile overlays the YAML file onto cfg; keys absent from the file keep their value
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.RedisURL = getEnvOrDefault("REDIS_URL", c.RedisURL)
	c.QueueName = getEnvOrDefault("QUEUE_NAME", c.QueueName)
	c.QueueBackend = strings.ToLower(getEnvOrDefault("QUEUE_BACKEND", c.QueueBackend))
	c.DatabaseURL = getEnvOrDefault("DATABASE_URL", c.DatabaseURL)
	c.MongoURI = getEnvOrDefault("MONGO_URI", c.MongoURI)
	c.MongoUploadDB = getEnvOrDefault("MONGO_UPLOAD_DB", c.MongoUploadDB)
	c.MongoWorkspaceDB = getEnvOrDefault("MONGO_WORKSPACE_DB", c.MongoWorkspaceDB)
	c.MinIOEndpoint = getEnvOrDefault("MINIO_ENDPOINT", c.MinIOEndpoint)
	c.MinIOAccessKey = getEnvOrDefault("MINIO_ACCESS_KEY", c.MinIOAccessKey)
	c.MinIOSecretKey = getEnvOrDefault("MINIO_SECRET_KEY", c.MinIOSecretKey)
	c.MinIOBucket = getEnvOrDefault("MINIO_BUCKET", c.MinIOBucket)
	c.MinIOUseSSL = getEnvAsBoolOrDefault("MINIO_USE_SSL", c.MinIOUseSSL)
	c.KafkaBrokers = getEnvAsListOrDefault("KAFKA_BROKERS", c.KafkaBrokers)
	c.KafkaTopic = getEnvOrDefault("KAFKA_TOPIC", c.KafkaTopic)
	c.WebhookEnabled = getEnvAsBoolOrDefault("WEBHOOK_ENABLED", c.WebhookEnabled)
	c.DocumentMode = getEnvOrDefault("DOCUMENT_MODE", c.DocumentMode)
	c.WorkerConcurrency = getEnvAsIntOrDefault("WORKER_CONCURRENCY", c.WorkerConcurrency)
	c.ProcessingTimeout = getEnvAsInt64OrDefault("PROCESSING_TIMEOUT", c.ProcessingTimeout)
	c.MaxFileSize = getEnvAsInt64OrDefault("MAX_FILE_SIZE", c.MaxFileSize)
	c.TessdataPrefix = getEnvOrDefault("TESSDATA_PREFIX", c.TessdataPrefix)
	c.OCRLanguage = getEnvOrDefault("OCR_LANGUAGE", c.OCRLanguage)
	c.OCRRegionalLanguage = getEnvOrDefault("OCR_REGIONAL_LANGUAGE", c.OCRRegionalLanguage)
	c.UploadDir = getEnvOrDefault("UPLOAD_DIR", c.UploadDir)
	c.WorkspaceDir = getEnvOrDefault("WORKSPACE_DIR", c.WorkspaceDir)
	c.HTTPAddr = getEnvOrDefault("HTTP_ADDR", c.HTTPAddr)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvOrDefault("LOG_FORMAT", c.LogFormat)
}

// Mode parses DocumentMode
func (c *Config) Mode() (redaction.Mode, error) {
	return redaction.ParseMode(c.DocumentMode)
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.QueueBackend != "redis" && c.QueueBackend != "asynq" {
		return fmt.Errorf("QUEUE_BACKEND must be redis or asynq, got %q", c.QueueBackend)
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}

	if _, err := c.Mode(); err != nil {
		return fmt.Errorf("DOCUMENT_MODE: %w", err)
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.ProcessingTimeout < 1000 {
		return fmt.Errorf("PROCESSING_TIMEOUT must be at least 1000ms, got %d", c.ProcessingTimeout)
	}

	if c.MaxFileSize < 1024 || c.MaxFileSize > 1073741824 { // 1KB to 1GB
		return fmt.Errorf("MAX_FILE_SIZE must be between 1KB and 1GB, got %d", c.MaxFileSize)
	}

	if c.UploadDir == "" {
		return fmt.Errorf("UPLOAD_DIR is required")
	}

	if c.MinIOEndpoint != "" && (c.MinIOAccessKey == "" || c.MinIOSecretKey == "" || c.MinIOBucket == "") {
		return fmt.Errorf("MINIO_ACCESS_KEY, MINIO_SECRET_KEY and MINIO_BUCKET are required with MINIO_ENDPOINT")
	}

	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required with KAFKA_BROKERS")
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsBoolOrDefault accepts anything strconv.ParseBool does
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsListOrDefault splits a comma-separated variable, dropping blanks
func getEnvAsListOrDefault(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
