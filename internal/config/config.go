/**
 * Configuration for TextScan
 *
 * Values come from an optional YAML file, then from environment variables
 * (a .env file is loaded first when present). Environment wins.
 */

package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds client and reference service configuration
type Config struct {
	// Extraction service the workflow posts to
	ExtractURL     string        `yaml:"extract_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"` // 0 = no timeout

	// Web UI
	Addr           string        `yaml:"addr"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	SessionIdleTTL time.Duration `yaml:"session_idle_ttl"`

	// Result affordances
	DownloadDir  string        `yaml:"download_dir"`
	CopiedReset  time.Duration `yaml:"copied_reset"`
	ClipboardKey string        `yaml:"clipboard"` // system or memory

	// Reference extraction service
	ExtractdAddr          string        `yaml:"extractd_addr"`
	ExtractdLanguages     []string      `yaml:"extractd_languages"`
	ExtractdMaxConcurrent int64         `yaml:"extractd_max_concurrent"`
	ExtractdRateEvery     time.Duration `yaml:"extractd_rate_every"`
	ExtractdRateBurst     int           `yaml:"extractd_rate_burst"`
	ExtractdAllowedOrigin string        `yaml:"extractd_allowed_origin"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		ExtractURL:     "http://127.0.0.1:8000/api/extract/",
		Addr:           "127.0.0.1:3000",
		MaxUploadBytes: 10 << 20,
		SessionIdleTTL: 30 * time.Minute,
		DownloadDir:    ".",
		CopiedReset:    2000 * time.Millisecond,
		ClipboardKey:   "system",

		ExtractdAddr:          "127.0.0.1:8000",
		ExtractdLanguages:     []string{"eng"},
		ExtractdMaxConcurrent: 4,
		ExtractdRateEvery:     600 * time.Millisecond,
		ExtractdRateBurst:     20,
		ExtractdAllowedOrigin: "*",

		LogLevel:  "info",
		LogFormat: "console",
	}
}

// LoadConfig loads configuration from path (optional) and the environment
func LoadConfig(path string) (*Config, error) {
	// .env is optional; system environment is used when it is absent
	_ = godotenv.Load()

	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.ExtractURL = getEnvOrDefault("TEXTSCAN_EXTRACT_URL", c.ExtractURL)
	c.RequestTimeout = getEnvAsDurationOrDefault("TEXTSCAN_REQUEST_TIMEOUT", c.RequestTimeout)
	c.Addr = getEnvOrDefault("TEXTSCAN_ADDR", c.Addr)
	c.MaxUploadBytes = getEnvAsInt64OrDefault("TEXTSCAN_MAX_UPLOAD_BYTES", c.MaxUploadBytes)
	c.SessionIdleTTL = getEnvAsDurationOrDefault("TEXTSCAN_SESSION_IDLE_TTL", c.SessionIdleTTL)
	c.DownloadDir = getEnvOrDefault("TEXTSCAN_DOWNLOAD_DIR", c.DownloadDir)
	c.CopiedReset = getEnvAsDurationOrDefault("TEXTSCAN_COPIED_RESET", c.CopiedReset)
	c.ClipboardKey = getEnvOrDefault("TEXTSCAN_CLIPBOARD", c.ClipboardKey)

	c.ExtractdAddr = getEnvOrDefault("EXTRACTD_ADDR", c.ExtractdAddr)
	if langs := getEnvOrDefault("EXTRACTD_LANGUAGES", ""); langs != "" {
		c.ExtractdLanguages = splitList(langs)
	}
	c.ExtractdMaxConcurrent = getEnvAsInt64OrDefault("EXTRACTD_MAX_CONCURRENT", c.ExtractdMaxConcurrent)
	c.ExtractdRateEvery = getEnvAsDurationOrDefault("EXTRACTD_RATE_EVERY", c.ExtractdRateEvery)
	c.ExtractdRateBurst = getEnvAsIntOrDefault("EXTRACTD_RATE_BURST", c.ExtractdRateBurst)
	c.ExtractdAllowedOrigin = getEnvOrDefault("EXTRACTD_ALLOWED_ORIGIN", c.ExtractdAllowedOrigin)

	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvOrDefault("LOG_FORMAT", c.LogFormat)
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	u, err := url.Parse(c.ExtractURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("TEXTSCAN_EXTRACT_URL must be an http/https URL, got %q", c.ExtractURL)
	}

	if c.RequestTimeout < 0 {
		return fmt.Errorf("TEXTSCAN_REQUEST_TIMEOUT must not be negative, got %v", c.RequestTimeout)
	}

	if c.MaxUploadBytes < 1024 || c.MaxUploadBytes > 100<<20 { // 1KB to 100MB
		return fmt.Errorf("TEXTSCAN_MAX_UPLOAD_BYTES must be between 1KB and 100MB, got %d", c.MaxUploadBytes)
	}

	if c.CopiedReset <= 0 {
		return fmt.Errorf("TEXTSCAN_COPIED_RESET must be positive, got %v", c.CopiedReset)
	}

	switch c.ClipboardKey {
	case "system", "memory":
	default:
		return fmt.Errorf("TEXTSCAN_CLIPBOARD must be system or memory, got %q", c.ClipboardKey)
	}

	if c.ExtractdMaxConcurrent < 1 || c.ExtractdMaxConcurrent > 64 {
		return fmt.Errorf("EXTRACTD_MAX_CONCURRENT must be between 1 and 64, got %d", c.ExtractdMaxConcurrent)
	}

	if len(c.ExtractdLanguages) == 0 {
		return fmt.Errorf("EXTRACTD_LANGUAGES must name at least one language")
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := strings.TrimSpace(os.Getenv(key))
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
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
