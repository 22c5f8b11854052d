// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultRegistryBaseURL is the EDSN EAN-codeboek gateway.
	DefaultRegistryBaseURL = "https://gateway.edsn.nl/eancodeboek/v1"

	// QueryModeCombined asks the registry once per address for all products.
	QueryModeCombined = "combined"
	// QueryModePerProduct asks the registry once per product (ELK, then GAS).
	QueryModePerProduct = "per_product"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetAPIRateLimit() float64
	GetAPIRateBurst() int
}

// RegistryConfig provides settings for the metering-point registry client.
type RegistryConfig interface {
	GetRegistryBaseURL() string
	GetRegistryAPIKey() string
	GetRegistryTimeout() time.Duration
	GetRegistryMaxRetries() int
	GetRegistryRetryBackoff() time.Duration
	GetRegistryQueryMode() string
	GetRegistryRateLimit() float64
	GetRegistryCacheTTL() time.Duration
}

// RedisConfig provides the optional Redis connection used for caching and result storage.
type RedisConfig interface {
	GetRedisURL() string
	IsRedisEnabled() bool
}

// LookupConfig provides settings for the upload/lookup module.
type LookupConfig interface {
	GetResultTTL() time.Duration
	GetUploadMaxBytes() int64
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env            string
	HTTPAddr       string
	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool
	APIRateLimit   float64
	APIRateBurst   int

	RegistryBaseURL      string
	RegistryAPIKey       string
	RegistryTimeout      time.Duration
	RegistryMaxRetries   int
	RegistryRetryBackoff time.Duration
	RegistryQueryMode    string
	RegistryRateLimit    float64
	RegistryCacheTTL     time.Duration

	RedisURL       string
	ResultTTL      time.Duration
	UploadMaxBytes int64
}

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }
func (c *Config) GetAPIRateLimit() float64 { return c.APIRateLimit }
func (c *Config) GetAPIRateBurst() int     { return c.APIRateBurst }

// RegistryConfig implementation
func (c *Config) GetRegistryBaseURL() string             { return c.RegistryBaseURL }
func (c *Config) GetRegistryAPIKey() string              { return c.RegistryAPIKey }
func (c *Config) GetRegistryTimeout() time.Duration      { return c.RegistryTimeout }
func (c *Config) GetRegistryMaxRetries() int             { return c.RegistryMaxRetries }
func (c *Config) GetRegistryRetryBackoff() time.Duration { return c.RegistryRetryBackoff }
func (c *Config) GetRegistryQueryMode() string           { return c.RegistryQueryMode }
func (c *Config) GetRegistryRateLimit() float64          { return c.RegistryRateLimit }
func (c *Config) GetRegistryCacheTTL() time.Duration     { return c.RegistryCacheTTL }

// RedisConfig implementation
func (c *Config) GetRedisURL() string  { return c.RedisURL }
func (c *Config) IsRedisEnabled() bool { return c.RedisURL != "" }

// LookupConfig implementation
func (c *Config) GetResultTTL() time.Duration { return c.ResultTTL }
func (c *Config) GetUploadMaxBytes() int64    { return c.UploadMaxBytes }

// registryFile mirrors the optional YAML file holding the registry options.
// Pointer fields distinguish "absent" from zero values.
type registryFile struct {
	APIBaseURL     string   `yaml:"api_base_url"`
	APIKey         string   `yaml:"api_key"`
	TimeoutSeconds *float64 `yaml:"timeout_seconds"`
	MaxRetries     *int     `yaml:"max_retries"`
	QueryMode      string   `yaml:"query_mode"`
	RateLimit      *float64 `yaml:"rate_limit"`
}

// Load reads configuration from .env, the optional registry options file and
// environment variables. Environment variables win over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:            getEnv("APP_ENV", "development"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		CORSAllowAll:   corsAllowAll,
		CORSOrigins:    corsOrigins,
		CORSAllowCreds: strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		APIRateLimit:   mustFloat(getEnv("API_RATE_LIMIT", "5")),
		APIRateBurst:   int(mustInt64(getEnv("API_RATE_BURST", "10"))),

		RegistryBaseURL:      DefaultRegistryBaseURL,
		RegistryTimeout:      10 * time.Second,
		RegistryRetryBackoff: 500 * time.Millisecond,
		RegistryQueryMode:    QueryModeCombined,

		RedisURL:       getEnv("REDIS_URL", ""),
		ResultTTL:      mustDuration(getEnv("RESULT_TTL", "1h")),
		UploadMaxBytes: mustInt64(getEnv("UPLOAD_MAX_BYTES", "10485760")),
	}

	if path := getEnv("REGISTRY_CONFIG_FILE", ""); path != "" {
		if err := cfg.applyRegistryFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyRegistryEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks invariants that would otherwise surface as confusing runtime failures.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RegistryBaseURL) == "" {
		return fmt.Errorf("REGISTRY_API_BASE_URL must not be empty")
	}
	if c.RegistryTimeout <= 0 {
		return fmt.Errorf("REGISTRY_TIMEOUT_SECONDS must be positive")
	}
	if c.RegistryMaxRetries < 0 {
		return fmt.Errorf("REGISTRY_MAX_RETRIES must not be negative")
	}
	if c.RegistryQueryMode != QueryModeCombined && c.RegistryQueryMode != QueryModePerProduct {
		return fmt.Errorf("REGISTRY_QUERY_MODE must be %q or %q, got %q", QueryModeCombined, QueryModePerProduct, c.RegistryQueryMode)
	}
	if c.RegistryCacheTTL < 0 {
		return fmt.Errorf("REGISTRY_CACHE_TTL must not be negative")
	}
	if c.RegistryRateLimit < 0 {
		return fmt.Errorf("REGISTRY_RATE_LIMIT must not be negative")
	}
	if c.ResultTTL <= 0 {
		return fmt.Errorf("RESULT_TTL must be positive")
	}
	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	if c.CORSAllowAll && c.CORSAllowCreds {
		return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	return nil
}

func (c *Config) applyRegistryFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read registry config %s: %w", path, err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse registry config %s: %w", path, err)
	}

	if file.APIBaseURL != "" {
		c.RegistryBaseURL = file.APIBaseURL
	}
	if file.APIKey != "" {
		c.RegistryAPIKey = file.APIKey
	}
	if file.TimeoutSeconds != nil {
		c.RegistryTimeout = secondsToDuration(*file.TimeoutSeconds)
	}
	if file.MaxRetries != nil {
		c.RegistryMaxRetries = *file.MaxRetries
	}
	if file.QueryMode != "" {
		c.RegistryQueryMode = file.QueryMode
	}
	if file.RateLimit != nil {
		c.RegistryRateLimit = *file.RateLimit
	}
	return nil
}

func (c *Config) applyRegistryEnv() error {
	if v, ok := os.LookupEnv("REGISTRY_API_BASE_URL"); ok {
		c.RegistryBaseURL = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("REGISTRY_API_KEY"); ok {
		c.RegistryAPIKey = v
	}
	if v, ok := os.LookupEnv("REGISTRY_TIMEOUT_SECONDS"); ok {
		seconds, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("REGISTRY_TIMEOUT_SECONDS: %w", err)
		}
		c.RegistryTimeout = secondsToDuration(seconds)
	}
	if v, ok := os.LookupEnv("REGISTRY_MAX_RETRIES"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("REGISTRY_MAX_RETRIES: %w", err)
		}
		c.RegistryMaxRetries = n
	}
	if v, ok := os.LookupEnv("REGISTRY_RETRY_BACKOFF"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("REGISTRY_RETRY_BACKOFF: %w", err)
		}
		c.RegistryRetryBackoff = d
	}
	if v, ok := os.LookupEnv("REGISTRY_QUERY_MODE"); ok {
		c.RegistryQueryMode = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := os.LookupEnv("REGISTRY_RATE_LIMIT"); ok {
		limit, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("REGISTRY_RATE_LIMIT: %w", err)
		}
		c.RegistryRateLimit = limit
	}
	if v, ok := os.LookupEnv("REGISTRY_CACHE_TTL"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("REGISTRY_CACHE_TTL: %w", err)
		}
		c.RegistryCacheTTL = d
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return d
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
