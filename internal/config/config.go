package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// REST API
	Port               string
	MaxUploadBytes     int64
	RateLimitPerMinute int
	KPICacheTTL        time.Duration

	// Dashboard
	WebPort string
	APIURL  string

	// Database
	SQLiteDBPath string

	// AMQP (optional on the API side, required by the worker)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Classification providers, tried in this order
	OllamaHost          string
	OllamaModel         string
	AnthropicAPIKey     string
	OpenAIAPIKey        string
	GeminiAPIKey        string
	GeminiModel         string
	ClassifyConcurrency int

	// Mirror worker
	MirrorBackend       string
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8000"),
		MaxUploadBytes:     getEnvInt64("MAX_UPLOAD_BYTES", 10<<20),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		KPICacheTTL:        getEnvDuration("KPI_CACHE_TTL", 5*time.Minute),

		WebPort: getEnv("WEB_PORT", "8081"),
		APIURL:  getEnv("API_URL", "http://localhost:8000"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/gastos.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "gastos"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "mirror_expenses"),

		OllamaHost:          getEnv("OLLAMA_HOST", ""),
		OllamaModel:         getEnv("OLLAMA_MODEL", "llama3.2"),
		AnthropicAPIKey:     getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		ClassifyConcurrency: getEnvInt("CLASSIFY_CONCURRENCY", 4),

		MirrorBackend:       getEnv("MIRROR_BACKEND", "memory"),
		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Gastos"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	ports := []struct{ name, value string }{{"port", c.Port}, {"web port", c.WebPort}}
	for _, port := range ports {
		if p, err := strconv.Atoi(port.value); err != nil {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': must be a number", port.name, port.value))
		} else if p < 1 || p > 65535 {
			errors = append(errors, fmt.Sprintf("invalid %s %d: must be between 1 and 65535", port.name, p))
		}
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if parsed, err := url.Parse(c.APIURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid API URL '%s': must be an absolute http(s) URL", c.APIURL))
	}

	if c.MaxUploadBytes < 1024 {
		errors = append(errors, fmt.Sprintf("invalid max upload size %d: must be at least 1024 bytes", c.MaxUploadBytes))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	if c.KPICacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid KPI cache TTL %v: must not be negative", c.KPICacheTTL))
	}
	if c.ClassifyConcurrency < 1 || c.ClassifyConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid classify concurrency %d: must be between 1 and 64", c.ClassifyConcurrency))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.OllamaHost != "" {
		parsed, err := url.Parse(c.OllamaHost)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid Ollama host '%s': must be an http or https URL", c.OllamaHost))
		}
	}

	switch c.MirrorBackend {
	case "memory":
	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using the sheets mirror")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when using the sheets mirror")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid mirror backend '%s': must be one of [memory sheets]", c.MirrorBackend))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
