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

	"github.com/pep299/article-classifier-proxy/internal/backend"
	"github.com/pep299/article-classifier-proxy/internal/prediction"
	"github.com/pep299/article-classifier-proxy/internal/source"
)

const configPathEnv = "ARTICLE_PROXY_CONFIG"

// Config holds all configuration for the application
type Config struct {
	// Server settings
	Port string `json:"port" yaml:"port"`
	Host string `json:"host" yaml:"host"`

	// Prediction backend settings
	APIURL            string   `json:"api_url" yaml:"apiUrl"`
	BackendPayload    string   `json:"backend_payload" yaml:"backendPayload"` // "text" or "url"
	PredictionMethods []string `json:"prediction_methods" yaml:"predictionMethods"`
	StatusSchedule    string   `json:"status_schedule" yaml:"statusSchedule"`

	// Content API settings
	AllowedSourceHost string `json:"allowed_source_host" yaml:"allowedSourceHost"`
	MaxArticleBytes   int64  `json:"max_article_bytes" yaml:"maxArticleBytes"`

	// Outbound HTTP timeout, in seconds
	HTTPTimeoutSeconds int `json:"http_timeout_seconds" yaml:"httpTimeoutSeconds"`
}

// Load reads configuration from an optional YAML file, the .env file and
// environment variables, in increasing order of precedence
func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	config := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		fileConfig, err := readFile(path)
		if err != nil {
			return nil, err
		}
		config = mergeConfig(config, fileConfig)
	}

	config.applyEnvOverrides()

	return config, config.validate()
}

func defaultConfig() *Config {
	return &Config{
		Port:               "8080",
		Host:               "0.0.0.0",
		BackendPayload:     string(backend.ModeText),
		PredictionMethods:  []string{},
		StatusSchedule:     "@every 1m",
		AllowedSourceHost:  source.DefaultHost,
		MaxArticleBytes:    5 * 1024 * 1024,
		HTTPTimeoutSeconds: 60,
	}
}

func readFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Field: configPathEnv, Message: fmt.Sprintf("cannot read %s: %v", path, err)}
	}
	var fileConfig Config
	if err := yaml.Unmarshal(raw, &fileConfig); err != nil {
		return nil, &ConfigError{Field: configPathEnv, Message: fmt.Sprintf("cannot parse %s: %v", path, err)}
	}
	return &fileConfig, nil
}

func mergeConfig(base, override *Config) *Config {
	if override.Port != "" {
		base.Port = override.Port
	}
	if override.Host != "" {
		base.Host = override.Host
	}
	if override.APIURL != "" {
		base.APIURL = override.APIURL
	}
	if override.BackendPayload != "" {
		base.BackendPayload = override.BackendPayload
	}
	if len(override.PredictionMethods) > 0 {
		base.PredictionMethods = override.PredictionMethods
	}
	if override.StatusSchedule != "" {
		base.StatusSchedule = override.StatusSchedule
	}
	if override.AllowedSourceHost != "" {
		base.AllowedSourceHost = override.AllowedSourceHost
	}
	if override.MaxArticleBytes > 0 {
		base.MaxArticleBytes = override.MaxArticleBytes
	}
	if override.HTTPTimeoutSeconds > 0 {
		base.HTTPTimeoutSeconds = override.HTTPTimeoutSeconds
	}
	return base
}

func (c *Config) applyEnvOverrides() {
	c.Port = getEnvOrDefault("PORT", c.Port)
	c.Host = getEnvOrDefault("HOST", c.Host)
	c.APIURL = getEnvOrDefault("API_URL", c.APIURL)
	c.BackendPayload = getEnvOrDefault("BACKEND_PAYLOAD", c.BackendPayload)
	if value := os.Getenv("PREDICTION_METHODS"); value != "" {
		c.PredictionMethods = parseStringSlice(value)
	}
	c.StatusSchedule = getEnvOrDefault("STATUS_SCHEDULE", c.StatusSchedule)
	c.AllowedSourceHost = getEnvOrDefault("ALLOWED_SOURCE_HOST", c.AllowedSourceHost)
	c.MaxArticleBytes = int64(getEnvOrDefaultInt("MAX_ARTICLE_BYTES", int(c.MaxArticleBytes)))
	c.HTTPTimeoutSeconds = getEnvOrDefaultInt("HTTP_TIMEOUT_SECONDS", c.HTTPTimeoutSeconds)
}

// validate checks if required configuration values are present and usable
func (c *Config) validate() error {
	if c.APIURL == "" {
		return &ConfigError{Field: "API_URL", Message: "prediction backend URL is required"}
	}
	if u, err := url.Parse(c.APIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ConfigError{Field: "API_URL", Message: "must be an absolute http(s) URL"}
	}
	if _, err := backend.ParseMode(c.BackendPayload); err != nil {
		return &ConfigError{Field: "BACKEND_PAYLOAD", Message: "must be 'text' or 'url'"}
	}
	if _, err := prediction.NewMethodSet(c.PredictionMethods); err != nil {
		return &ConfigError{Field: "PREDICTION_METHODS", Message: err.Error()}
	}
	if c.HTTPTimeoutSeconds <= 0 {
		return &ConfigError{Field: "HTTP_TIMEOUT_SECONDS", Message: "must be positive"}
	}
	if c.MaxArticleBytes <= 0 {
		return &ConfigError{Field: "MAX_ARTICLE_BYTES", Message: "must be positive"}
	}
	return nil
}

// HTTPTimeout returns the outbound HTTP timeout
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default if not set
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// parseStringSlice parses comma-separated string into slice
func parseStringSlice(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
