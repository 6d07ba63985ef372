package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_MatchesDocumentedDefaults(t *testing.T) {
	cfg := Default()
	if cfg.GlobalRateLimit != 100 || cfg.BlockedRateLimit != 5 {
		t.Errorf("unexpected rate limit defaults: %+v", cfg)
	}
	if cfg.PassthroughThreshold != 0.55 {
		t.Errorf("expected passthrough threshold default 0.55, got %f", cfg.PassthroughThreshold)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("expected default listen addr :8080, got %q", cfg.ListenAddr)
	}
}

func TestRecoveryTimeout_ConvertsSecondsToDuration(t *testing.T) {
	cfg := Default()
	cfg.CBRecoveryTimeoutS = 45
	if cfg.RecoveryTimeout() != 45*time.Second {
		t.Errorf("expected 45s, got %v", cfg.RecoveryTimeout())
	}
}

func TestRateLimitWindow_ConvertsSecondsToDuration(t *testing.T) {
	cfg := Default()
	cfg.RateLimitWindowSeconds = 120
	if cfg.RateLimitWindow() != 2*time.Minute {
		t.Errorf("expected 2m, got %v", cfg.RateLimitWindow())
	}
}

func TestLoad_NoPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GlobalRateLimit != 100 {
		t.Errorf("expected defaults when no yaml path given, got %+v", cfg)
	}
}

func TestLoad_YAMLOverlayOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("global_rate_limit: 250\nenable_web_search: false\n"), 0o644); err != nil {
		t.Fatalf("failed to write test yaml: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GlobalRateLimit != 250 {
		t.Errorf("expected yaml override to take effect, got %d", cfg.GlobalRateLimit)
	}
	if cfg.EnableWebSearch {
		t.Error("expected yaml override to disable web search")
	}
	if cfg.BlockedRateLimit != 5 {
		t.Error("expected fields absent from the yaml overlay to keep their default")
	}
}

func TestLoad_MissingYAMLPathIsIgnored(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected a missing yaml file to be silently ignored, got %v", err)
	}
	if cfg.GlobalRateLimit != 100 {
		t.Errorf("expected defaults when the yaml file does not exist, got %+v", cfg)
	}
}

func TestLoad_EnvOverridesTakePrecedenceOverYAML(t *testing.T) {
	t.Setenv("GLOBAL_RATE_LIMIT", "500")
	t.Setenv("REDIS_ADDR", "redis.internal:6379")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("global_rate_limit: 250\n"), 0o644); err != nil {
		t.Fatalf("failed to write test yaml: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GlobalRateLimit != 500 {
		t.Errorf("expected env override to win over yaml, got %d", cfg.GlobalRateLimit)
	}
	if cfg.RedisAddr != "redis.internal:6379" {
		t.Errorf("expected redis addr env override applied, got %q", cfg.RedisAddr)
	}
}
