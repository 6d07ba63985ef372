// Package config loads the closed set of environment-style settings that
// govern rate limiting, circuit breaking, retrieval and memory-write
// behavior. A YAML overlay file may be supplied for local profiles; both
// sources are optional and every field has a spec-mandated default.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full closed configuration set from the external interfaces
// contract. Every field has a default matching the spec.
type Config struct {
	BlockedRateLimit        int           `yaml:"blocked_rate_limit"`
	GlobalRateLimit         int           `yaml:"global_rate_limit"`
	RateLimitWindowSeconds  int           `yaml:"rate_limit_window_seconds"`
	CBFailureThreshold      int           `yaml:"cb_failure_threshold"`
	CBRecoveryTimeoutS      int           `yaml:"cb_recovery_timeout_s"`
	CBSuccessThreshold      int           `yaml:"cb_success_threshold"`
	EnableWebSearch         bool          `yaml:"enable_web_search"`
	EnableKnowledgePreflight bool         `yaml:"enable_knowledge_preflight"`
	EnableAdaptiveThresholds bool         `yaml:"enable_adaptive_thresholds"`
	EnableCoretrievalTracking bool        `yaml:"enable_coretrieval_tracking"`
	PassthroughThreshold    float64       `yaml:"passthrough_threshold"`
	MaxContextChars         int           `yaml:"max_context_chars"`
	RawTTLSeconds           int64         `yaml:"raw_ttl_seconds"`
	EnrichedTTLSeconds      int64         `yaml:"enriched_ttl_seconds"`
	KnowledgeTTLSeconds     *int64        `yaml:"knowledge_ttl_seconds"`

	RedisAddr    string `yaml:"redis_addr"`
	PostgresDSN  string `yaml:"postgres_dsn"`
	QdrantAddr   string `yaml:"qdrant_addr"`
	ListenAddr   string `yaml:"listen_addr"`
}

// Default returns the spec's default configuration.
func Default() *Config {
	return &Config{
		BlockedRateLimit:          5,
		GlobalRateLimit:           100,
		RateLimitWindowSeconds:    60,
		CBFailureThreshold:        5,
		CBRecoveryTimeoutS:        30,
		CBSuccessThreshold:        2,
		EnableWebSearch:           true,
		EnableKnowledgePreflight:  true,
		EnableAdaptiveThresholds:  true,
		EnableCoretrievalTracking: true,
		PassthroughThreshold:      0.55,
		MaxContextChars:           6000,
		RawTTLSeconds:             604800,
		EnrichedTTLSeconds:        2592000,
		KnowledgeTTLSeconds:       nil,
		ListenAddr:                ":8080",
	}
}

// RecoveryTimeout returns CBRecoveryTimeoutS as a time.Duration.
func (c *Config) RecoveryTimeout() time.Duration {
	return time.Duration(c.CBRecoveryTimeoutS) * time.Second
}

// RateLimitWindow returns RateLimitWindowSeconds as a time.Duration.
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

// Load builds a Config from defaults, then a YAML file at path (if
// non-empty and present), then environment variable overrides.
func Load(yamlPath string) (*Config, error) {
	cfg := Default()

	if yamlPath != "" {
		if raw, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, err
			}
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("QDRANT_ADDR"); v != "" {
		cfg.QdrantAddr = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("GLOBAL_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.GlobalRateLimit = n
		}
	}
	if v := os.Getenv("BLOCKED_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BlockedRateLimit = n
		}
	}
	if v := os.Getenv("ENABLE_WEB_SEARCH"); v != "" {
		cfg.EnableWebSearch = v == "true"
	}
}
