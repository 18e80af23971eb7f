package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Observability ObservabilityConfig
	Database      DatabaseConfig
	Storage       StorageConfig
	Fetcher       FetcherConfig
	Scheduler     SchedulerConfig
	Cleaner       CleanerConfig
	Converter     ConverterConfig
	Pipeline      PipelineConfig
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
	LogLevel       string
	LogFormat      string // json or text
}

type DatabaseConfig struct {
	Driver     string // postgres or sqlite
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
	SSLMode    string
	SQLitePath string
}

type StorageConfig struct {
	Type               string // local or gcs
	LocalPath          string
	GCSBucket          string
	GCSPrefix          string
	GCSCredentialsFile string
	GCSEndpoint        string
}

type FetcherConfig struct {
	BaseURL       string
	UserAgent     string
	MaxAttempts   int
	BaseDelay     time.Duration
	Timeout       time.Duration
	RatePerSecond float64
	RateBurst     int
	MaxBodyBytes  int64
}

type SchedulerConfig struct {
	Enabled    bool
	Spec       string
	RunTimeout time.Duration
}

// CleanerConfig carries the layout constants; empty lists mean the built-in defaults.
type CleanerConfig struct {
	BlankColumns []string
	RedactLabels []string
}

type ConverterConfig struct {
	Mode     string // local or service
	Endpoint string
	Token    string
}

type PipelineConfig struct {
	MonthlyOnIngest bool
	CrawlEnabled    bool
	Categories      []string
}

// Load reads configuration from environment variables, after loading a
// .env file from the working directory when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads configuration from the process environment only
func FromEnv() (*Config, error) {
	cfg := &Config{
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "sqlite"),
			Host:       getEnv("POSTGRES_HOST", "localhost"),
			Port:       getEnvAsInt("POSTGRES_PORT", 5432),
			User:       getEnv("POSTGRES_USER", "postgres"),
			Password:   getEnv("POSTGRES_PASSWORD", "postgres"),
			Database:   getEnv("POSTGRES_DB", "reports"),
			SSLMode:    getEnv("POSTGRES_SSLMODE", "disable"),
			SQLitePath: getEnv("SQLITE_PATH", "./data/reports.db"),
		},
		Storage: StorageConfig{
			Type:               getEnv("STORAGE_TYPE", "local"),
			LocalPath:          getEnv("STORAGE_PATH", "./data/reports"),
			GCSBucket:          getEnv("GCS_BUCKET", ""),
			GCSPrefix:          getEnv("GCS_PREFIX", ""),
			GCSCredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
			GCSEndpoint:        getEnv("GCS_ENDPOINT", ""),
		},
		Fetcher: FetcherConfig{
			BaseURL:       getEnv("REPORTS_BASE_URL", "https://www.acea.auto"),
			UserAgent:     getEnv("FETCH_USER_AGENT", ""),
			MaxAttempts:   getEnvAsInt("FETCH_MAX_ATTEMPTS", 3),
			BaseDelay:     getEnvAsDuration("FETCH_BASE_DELAY", 2*time.Second),
			Timeout:       getEnvAsDuration("FETCH_TIMEOUT", 30*time.Second),
			RatePerSecond: getEnvAsFloat("FETCH_RATE_PER_SECOND", 1),
			RateBurst:     getEnvAsInt("FETCH_RATE_BURST", 1),
			MaxBodyBytes:  int64(getEnvAsInt("FETCH_MAX_BODY_BYTES", 64<<20)),
		},
		Scheduler: SchedulerConfig{
			Enabled:    getEnvAsBool("SCHEDULER_ENABLED", true),
			Spec:       getEnv("SCHEDULER_SPEC", "@every 12h"),
			RunTimeout: getEnvAsDuration("SCHEDULER_RUN_TIMEOUT", 2*time.Hour),
		},
		Cleaner: CleanerConfig{
			BlankColumns: getEnvAsList("CLEANER_BLANK_COLUMNS", nil),
			RedactLabels: getEnvAsList("CLEANER_REDACT_LABELS", nil),
		},
		Converter: ConverterConfig{
			Mode:     getEnv("EXTRACT_MODE", "local"),
			Endpoint: getEnv("CONVERTER_ENDPOINT", ""),
			Token:    getEnv("CONVERTER_TOKEN", ""),
		},
		Pipeline: PipelineConfig{
			MonthlyOnIngest: getEnvAsBool("PIPELINE_MONTHLY_ON_INGEST", true),
			CrawlEnabled:    getEnvAsBool("PIPELINE_CRAWL_ENABLED", true),
			Categories:      getEnvAsList("PIPELINE_CATEGORIES", []string{"PC", "CV"}),
		},
	}

	if strings.EqualFold(cfg.Converter.Mode, "service") && cfg.Converter.Endpoint == "" {
		return nil, errors.New("CONVERTER_ENDPOINT is required when EXTRACT_MODE=service")
	}

	if strings.EqualFold(cfg.Storage.Type, "gcs") && cfg.Storage.GCSBucket == "" {
		return nil, errors.New("GCS_BUCKET is required when STORAGE_TYPE=gcs")
	}

	if cfg.Fetcher.MaxAttempts < 1 {
		return nil, fmt.Errorf("FETCH_MAX_ATTEMPTS must be at least 1, got %d", cfg.Fetcher.MaxAttempts)
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping empty items.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if strings.TrimSpace(valueStr) == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
