package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeRegistryFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write registry file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REGISTRY_CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected defaults to load, got %v", err)
	}
	if cfg.GetRegistryBaseURL() != DefaultRegistryBaseURL {
		t.Fatalf("expected default base url, got %q", cfg.GetRegistryBaseURL())
	}
	if cfg.GetRegistryTimeout() != 10*time.Second {
		t.Fatalf("expected 10s timeout, got %s", cfg.GetRegistryTimeout())
	}
	if cfg.GetRegistryMaxRetries() != 0 {
		t.Fatalf("expected no retries by default, got %d", cfg.GetRegistryMaxRetries())
	}
	if cfg.GetRegistryQueryMode() != QueryModeCombined {
		t.Fatalf("expected combined mode, got %q", cfg.GetRegistryQueryMode())
	}
	if cfg.IsRedisEnabled() {
		t.Fatalf("expected redis disabled without REDIS_URL")
	}
	if cfg.GetRegistryCacheTTL() != 0 {
		t.Fatalf("expected registry cache off by default, got %s", cfg.GetRegistryCacheTTL())
	}
}

func TestLoadRegistryCacheOptIn(t *testing.T) {
	t.Setenv("REGISTRY_CONFIG_FILE", "")
	t.Setenv("REGISTRY_CACHE_TTL", "30m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GetRegistryCacheTTL() != 30*time.Minute {
		t.Fatalf("expected 30m cache ttl, got %s", cfg.GetRegistryCacheTTL())
	}
}

func TestLoadRegistryFileThenEnvOverride(t *testing.T) {
	path := writeRegistryFile(t, `
api_base_url: https://registry.example.test/v1
api_key: from-file
timeout_seconds: 2.5
max_retries: 2
query_mode: per_product
rate_limit: 4
`)
	t.Setenv("REGISTRY_CONFIG_FILE", path)
	t.Setenv("REGISTRY_API_KEY", "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GetRegistryBaseURL() != "https://registry.example.test/v1" {
		t.Fatalf("expected base url from file, got %q", cfg.GetRegistryBaseURL())
	}
	if cfg.GetRegistryAPIKey() != "from-env" {
		t.Fatalf("expected env to override api key, got %q", cfg.GetRegistryAPIKey())
	}
	if cfg.GetRegistryTimeout() != 2500*time.Millisecond {
		t.Fatalf("expected 2.5s timeout, got %s", cfg.GetRegistryTimeout())
	}
	if cfg.GetRegistryMaxRetries() != 2 {
		t.Fatalf("expected 2 retries, got %d", cfg.GetRegistryMaxRetries())
	}
	if cfg.GetRegistryQueryMode() != QueryModePerProduct {
		t.Fatalf("expected per_product mode, got %q", cfg.GetRegistryQueryMode())
	}
	if cfg.GetRegistryRateLimit() != 4 {
		t.Fatalf("expected rate limit 4, got %v", cfg.GetRegistryRateLimit())
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown query mode": {"REGISTRY_QUERY_MODE": "bulk"},
		"zero timeout":       {"REGISTRY_TIMEOUT_SECONDS": "0"},
		"garbage timeout":    {"REGISTRY_TIMEOUT_SECONDS": "soon"},
		"negative retries":   {"REGISTRY_MAX_RETRIES": "-1"},
		"unitless cache ttl": {"REGISTRY_CACHE_TTL": "24"},
		"negative cache ttl": {"REGISTRY_CACHE_TTL": "-1h"},
		"garbage rate limit": {"REGISTRY_RATE_LIMIT": "five"},
		"garbage backoff":    {"REGISTRY_RETRY_BACKOFF": "fast"},
		"cors creds with *":  {"CORS_ORIGINS": "*", "CORS_ALLOW_CREDENTIALS": "true"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("REGISTRY_CONFIG_FILE", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestLoadMissingRegistryFile(t *testing.T) {
	t.Setenv("REGISTRY_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing registry file")
	}
}
