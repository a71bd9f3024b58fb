package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmoreira/weathertool/internal/weathererr"
)

func writeConfig(t *testing.T, dir, env, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config", env+".yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

// chdir changes into dir for the duration of the test, restoring the
// previous working directory on cleanup (t.Chdir needs Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd() error = %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir() error = %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("Chdir() error = %v", err)
		}
	})
}

const minimalYAML = `
server:
  port: "9090"
cache:
  backend: "in_memory"
  ttl: "5m"
`

// TestLoad_FromFileAndEnv verifies values come from the YAML file with the
// API key supplied by environment.
func TestLoad_FromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "dev", minimalYAML)
	chdir(t, dir)
	t.Setenv("ENV_NAME", "")
	t.Setenv("WEATHER_API_KEY", "test-api-key-1234567890")
	t.Setenv("CACHE_BACKEND", "")
	t.Setenv("MEMCACHED_ADDRS", "")
	t.Setenv("REDIS_ADDR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want 9090", cfg.ServerPort)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want 5m", cfg.CacheTTL)
	}
	if cfg.CacheBackend != "in_memory" {
		t.Errorf("CacheBackend = %q, want in_memory", cfg.CacheBackend)
	}
	if cfg.WeatherAPIKey != "test-api-key-1234567890" {
		t.Errorf("WeatherAPIKey = %q, want env value", cfg.WeatherAPIKey)
	}
}

// TestLoad_Defaults verifies unset fields fall back to documented defaults.
func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "dev", "server:\n  port: \"\"\n")
	chdir(t, dir)
	t.Setenv("ENV_NAME", "")
	t.Setenv("WEATHER_API_KEY", "test-api-key-1234567890")
	t.Setenv("CACHE_BACKEND", "")
	t.Setenv("MEMCACHED_ADDRS", "")
	t.Setenv("REDIS_ADDR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
	if cfg.CacheTTL != 10*time.Minute {
		t.Errorf("CacheTTL = %v, want default 10m", cfg.CacheTTL)
	}
	if cfg.CacheBackend != "in_memory" {
		t.Errorf("CacheBackend = %q, want default in_memory", cfg.CacheBackend)
	}
	if cfg.WeatherAPILang != "en" {
		t.Errorf("WeatherAPILang = %q, want default en", cfg.WeatherAPILang)
	}
	if cfg.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %d, want default 3", cfg.RetryAttempts)
	}
	if cfg.RateLimitRPS != 100 || cfg.RateLimitBurst != 250 {
		t.Errorf("RateLimit = %d/%d, want defaults 100/250", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.LocationMinLength != 2 || cfg.LocationMaxLength != 100 {
		t.Errorf("Location bounds = %d/%d, want defaults 2/100", cfg.LocationMinLength, cfg.LocationMaxLength)
	}
}

// TestLoad_EnvOverridesBackend verifies CACHE_BACKEND wins over the file.
func TestLoad_EnvOverridesBackend(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "dev", minimalYAML)
	chdir(t, dir)
	t.Setenv("ENV_NAME", "")
	t.Setenv("WEATHER_API_KEY", "test-api-key-1234567890")
	t.Setenv("CACHE_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("MEMCACHED_ADDRS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheBackend != "redis" {
		t.Errorf("CacheBackend = %q, want redis (env folded to lowercase)", cfg.CacheBackend)
	}
	if cfg.RedisAddr != "redis.internal:6380" {
		t.Errorf("RedisAddr = %q, want env value", cfg.RedisAddr)
	}
}

// TestLoad_MissingAPIKey verifies a missing key fails with a ConfigError.
func TestLoad_MissingAPIKey(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "dev", minimalYAML)
	chdir(t, dir)
	t.Setenv("ENV_NAME", "")
	t.Setenv("WEATHER_API_KEY", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() error = nil, want ConfigError")
	}
	if !weathererr.IsConfig(err) {
		t.Errorf("Load() error = %v, want ConfigError", err)
	}
}

// TestLoad_APIKeyFromSecretsFile verifies the secrets file backfills the key
// when the env is unset.
func TestLoad_APIKeyFromSecretsFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "dev", minimalYAML)
	secrets := "weather_api_key: \"secrets-file-key-123\"\n"
	if err := os.WriteFile(filepath.Join(dir, "config", "secrets.yaml"), []byte(secrets), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	chdir(t, dir)
	t.Setenv("ENV_NAME", "")
	t.Setenv("WEATHER_API_KEY", "")
	t.Setenv("CACHE_BACKEND", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WeatherAPIKey != "secrets-file-key-123" {
		t.Errorf("WeatherAPIKey = %q, want secrets file value", cfg.WeatherAPIKey)
	}
}

// TestLoad_UnknownBackend verifies an unrecognized backend name fails
// validation.
func TestLoad_UnknownBackend(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "dev", "cache:\n  backend: \"cassandra\"\n")
	chdir(t, dir)
	t.Setenv("ENV_NAME", "")
	t.Setenv("WEATHER_API_KEY", "test-api-key-1234567890")
	t.Setenv("CACHE_BACKEND", "")

	_, err := Load()
	if !weathererr.IsConfig(err) {
		t.Fatalf("Load() error = %v, want ConfigError for unknown backend", err)
	}
}

// TestLoad_MissingConfigFile verifies a clear ConfigError when the env's
// config file is absent.
func TestLoad_MissingConfigFile(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ENV_NAME", "")
	t.Setenv("WEATHER_API_KEY", "test-api-key-1234567890")

	_, err := Load()
	if !weathererr.IsConfig(err) {
		t.Fatalf("Load() error = %v, want ConfigError for missing file", err)
	}
}

// TestParseDuration verifies fallback behavior for empty, invalid and
// non-positive inputs.
func TestParseDuration(t *testing.T) {
	tests := []struct {
		name string
		in   string
		def  time.Duration
		want time.Duration
	}{
		{"valid", "250ms", time.Second, 250 * time.Millisecond},
		{"empty uses default", "", time.Second, time.Second},
		{"garbage uses default", "soon", time.Second, time.Second},
		{"non-positive uses default", "-5s", time.Second, time.Second},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := parseDuration(tc.in, tc.def); got != tc.want {
				t.Errorf("parseDuration(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

// TestValidate_RequestTimeoutBumped verifies the request timeout is raised
// above the upstream timeout instead of failing.
func TestValidate_RequestTimeoutBumped(t *testing.T) {
	cfg := &Config{
		WeatherAPITimeout: 5 * time.Second,
		RequestTimeout:    2 * time.Second,
		CacheTTL:          10 * time.Minute,
		CacheBackend:      "in_memory",
		LocationMinLength: 2,
		LocationMaxLength: 100,
	}
	if err := validate(cfg); err != nil {
		t.Fatalf("validate() error = %v", err)
	}
	if cfg.RequestTimeout <= cfg.WeatherAPITimeout {
		t.Errorf("RequestTimeout = %v, want > WeatherAPITimeout %v", cfg.RequestTimeout, cfg.WeatherAPITimeout)
	}
}

// TestValidate_LocationBounds verifies inverted length bounds are rejected.
func TestValidate_LocationBounds(t *testing.T) {
	cfg := &Config{
		WeatherAPITimeout: time.Second,
		RequestTimeout:    5 * time.Second,
		CacheTTL:          10 * time.Minute,
		CacheBackend:      "in_memory",
		LocationMinLength: 50,
		LocationMaxLength: 10,
	}
	if err := validate(cfg); !weathererr.IsConfig(err) {
		t.Fatalf("validate() error = %v, want ConfigError", err)
	}
}
