package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.JavaBackendTimeoutSec != 15 {
		t.Errorf("JavaBackendTimeoutSec = %d, want 15", cfg.JavaBackendTimeoutSec)
	}
	if cfg.RouterConfidenceHigh != 0.7 || cfg.RouterConfidenceLow != 0.4 {
		t.Errorf("confidence thresholds = %v/%v, want 0.7/0.4", cfg.RouterConfidenceHigh, cfg.RouterConfidenceLow)
	}
	if cfg.RetryMaxAttempts != 3 || cfg.RetryBaseDelayMs != 500 {
		t.Errorf("retry config = %d/%dms, want 3/500ms", cfg.RetryMaxAttempts, cfg.RetryBaseDelayMs)
	}
	if cfg.CircuitOpenThreshold != 5 || cfg.CircuitResetSec != 60 {
		t.Errorf("circuit config = %d/%ds, want 5/60s", cfg.CircuitOpenThreshold, cfg.CircuitResetSec)
	}
	if cfg.SessionTTLSec != 3600 {
		t.Errorf("SessionTTLSec = %d, want 3600", cfg.SessionTTLSec)
	}
	if cfg.ToolTimeoutSec != 15 {
		t.Errorf("ToolTimeoutSec = %d, want 15", cfg.ToolTimeoutSec)
	}
	if cfg.UseMockData() {
		t.Error("UseMockData should default to false")
	}
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("JAVA_BACKEND_BASE_URL", "https://backend.example.com")
	t.Setenv("JAVA_BACKEND_TIMEOUT_SEC", "30")
	t.Setenv("USE_MOCK_DATA", "true")
	t.Setenv("ROUTER_CONFIDENCE_HIGH", "0.85")
	t.Setenv("SESSION_TTL_SEC", "7200")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.JavaBackendBaseURL != "https://backend.example.com" {
		t.Errorf("JavaBackendBaseURL = %q", cfg.JavaBackendBaseURL)
	}
	if cfg.JavaBackendTimeoutSec != 30 {
		t.Errorf("JavaBackendTimeoutSec = %d, want 30", cfg.JavaBackendTimeoutSec)
	}
	if !cfg.UseMockData() {
		t.Error("UseMockData should be true from env")
	}
	if cfg.RouterConfidenceHigh != 0.85 {
		t.Errorf("RouterConfidenceHigh = %v, want 0.85", cfg.RouterConfidenceHigh)
	}
	if cfg.SessionTTLSec != 7200 {
		t.Errorf("SessionTTLSec = %d, want 7200", cfg.SessionTTLSec)
	}
}

func TestLoadRateLimitDefaultsToDisabled(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.RateLimitPerSecond != 0 || cfg.RateLimitBurst != 0 {
		t.Errorf("rate limit config = %v/%d, want disabled (0/0)", cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	}
}

func TestLoadRateLimitEnvOverride(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_SECOND", "10.5")
	t.Setenv("RATE_LIMIT_BURST", "20")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.RateLimitPerSecond != 10.5 {
		t.Errorf("RateLimitPerSecond = %v, want 10.5", cfg.RateLimitPerSecond)
	}
	if cfg.RateLimitBurst != 20 {
		t.Errorf("RateLimitBurst = %d, want 20", cfg.RateLimitBurst)
	}
}

func TestLoadYAMLOverridesEnv(t *testing.T) {
	t.Setenv("JAVA_BACKEND_BASE_URL", "https://from-env.example.com")
	t.Setenv("SESSION_TTL_SEC", "1800")

	dir := t.TempDir()
	path := filepath.Join(dir, "pageflow.yaml")
	content := "javaBackendBaseUrl: https://from-yaml.example.com\nretryMaxAttempts: 7\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.JavaBackendBaseURL != "https://from-yaml.example.com" {
		t.Errorf("JavaBackendBaseURL = %q, want yaml override to win", cfg.JavaBackendBaseURL)
	}
	if cfg.RetryMaxAttempts != 7 {
		t.Errorf("RetryMaxAttempts = %d, want 7", cfg.RetryMaxAttempts)
	}
	// SessionTTLSec was not present in the yaml file, so the env value must
	// survive untouched.
	if cfg.SessionTTLSec != 1800 {
		t.Errorf("SessionTTLSec = %d, want env value 1800 to survive", cfg.SessionTTLSec)
	}
}

func TestLoadMissingYAMLPathIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load should tolerate a missing yaml file, got: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want default", cfg.ListenAddr)
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got, want := cfg.JavaBackendTimeout().Seconds(), 15.0; got != want {
		t.Errorf("JavaBackendTimeout() = %vs, want %vs", got, want)
	}
	if got, want := cfg.RetryBaseDelay().Milliseconds(), int64(500); got != want {
		t.Errorf("RetryBaseDelay() = %dms, want %dms", got, want)
	}
	if got, want := cfg.CircuitResetTimeout().Seconds(), 60.0; got != want {
		t.Errorf("CircuitResetTimeout() = %vs, want %vs", got, want)
	}
	if got, want := cfg.SessionTTL().Seconds(), 3600.0; got != want {
		t.Errorf("SessionTTL() = %vs, want %vs", got, want)
	}
	if got, want := cfg.ToolTimeout().Seconds(), 15.0; got != want {
		t.Errorf("ToolTimeout() = %vs, want %vs", got, want)
	}
}

func TestSetUseMockDataHotToggles(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.UseMockData() {
		t.Fatal("expected UseMockData to start false")
	}
	cfg.SetUseMockData(true)
	if !cfg.UseMockData() {
		t.Fatal("expected UseMockData to be true after SetUseMockData(true)")
	}
}
