package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultAPIURL is the hosted serverless inference endpoint.
	DefaultAPIURL = "https://serverless.roboflow.com"

	DedupeLast    = "last"
	DedupeHighest = "highest"
)

var (
	ErrMissingAPIKey  = errors.New("ROBOFLOW_API_KEY is not set")
	ErrMissingModelID = errors.New("ROBOFLOW_MODEL_ID is not set")
)

type Config struct {
	Port     int
	Password string // empty disables the login gate

	APIKey     string
	ModelID    string // "<project>/<version>"
	Project    string
	Version    int
	APIURL     string
	Timeout    time.Duration
	Annotate   bool
	Stroke     int
	Dedupe     string
	Confidence float64
	Overlap    float64

	MaxUploadSize     int64 // bytes
	MaxImageDimension int
	MaxImagePixels    int // decoded width*height budget

	HistoryEnabled           bool
	DBPath                   string
	ImageDirectory           string
	ImageBufferLimit         int
	ImageBufferFlushInterval int   // seconds
	MaxImageDirectorySize    int64 // GB

	StaticDirectory string
	LogDirectory    string
	LogLevel        string
}

// Load reads configuration from the environment, after seeding it from an
// optional .env file. Missing credentials or a malformed model id are errors.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{
		Port:     getEnvAsInt("PORT", 8080),
		Password: getEnv("PASSWORD", ""),

		APIKey:     strings.TrimSpace(os.Getenv("ROBOFLOW_API_KEY")),
		ModelID:    strings.TrimSpace(os.Getenv("ROBOFLOW_MODEL_ID")),
		APIURL:     strings.TrimRight(getEnv("ROBOFLOW_API_URL", DefaultAPIURL), "/"),
		Timeout:    time.Duration(getEnvAsInt("REQUEST_TIMEOUT", 30)) * time.Second,
		Annotate:   getEnvAsBool("ANNOTATE", true),
		Stroke:     getEnvAsInt("STROKE", 2),
		Dedupe:     strings.ToLower(getEnv("DEDUPE_POLICY", DedupeLast)),
		Confidence: getEnvAsFloat("CONFIDENCE", 0.40),
		Overlap:    getEnvAsFloat("OVERLAP", 0.30),

		MaxUploadSize:     getEnvAsInt64("MAX_UPLOAD_MB", 10) << 20,
		MaxImageDimension: getEnvAsInt("MAX_IMAGE_DIMENSION", 1600),
		MaxImagePixels:    getEnvAsInt("MAX_IMAGE_PIXELS", 40_000_000),

		HistoryEnabled:           getEnvAsBool("HISTORY_ENABLED", true),
		DBPath:                   getEnv("DB_PATH", filepath.Join(".", "data", "scans.db")),
		ImageDirectory:           getEnv("IMAGE_DIR", filepath.Join(".", "data", "images")),
		ImageBufferLimit:         getEnvAsInt("BUFFER_LIMIT", 20),
		ImageBufferFlushInterval: getEnvAsInt("FLUSH_INTERVAL", 30),
		MaxImageDirectorySize:    getEnvAsInt64("MAX_IMAGE_DIRECTORY_SIZE", 2),

		StaticDirectory: getEnv("STATIC_DIR", "static"),
		LogDirectory:    getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and fills Project/Version from ModelID.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.ModelID == "" {
		return ErrMissingModelID
	}

	project, version, err := ParseModelID(c.ModelID)
	if err != nil {
		return err
	}
	c.Project = project
	c.Version = version

	if math.IsNaN(c.Confidence) || c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("CONFIDENCE must be within [0,1], got %v", c.Confidence)
	}
	if math.IsNaN(c.Overlap) || c.Overlap < 0 || c.Overlap > 1 {
		return fmt.Errorf("OVERLAP must be within [0,1], got %v", c.Overlap)
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if c.MaxImagePixels <= 0 {
		return fmt.Errorf("MAX_IMAGE_PIXELS must be positive, got %d", c.MaxImagePixels)
	}
	if c.Dedupe != DedupeLast && c.Dedupe != DedupeHighest {
		return fmt.Errorf("DEDUPE_POLICY must be %q or %q, got %q", DedupeLast, DedupeHighest, c.Dedupe)
	}
	if c.Stroke <= 0 {
		c.Stroke = 2
	}
	return nil
}

// ParseModelID splits "<project>/<version>" into its parts.
func ParseModelID(id string) (string, int, error) {
	parts := strings.Split(id, "/")
	if len(parts) != 2 || parts[0] == "" {
		return "", 0, fmt.Errorf("model id must be in format 'project/version' (e.g. lab-e3lrr/3), got %q", id)
	}
	version, err := strconv.Atoi(parts[1])
	if err != nil || version <= 0 {
		return "", 0, fmt.Errorf("model version must be a positive integer, got %q", parts[1])
	}
	return parts[0], version, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
