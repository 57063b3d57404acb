package config

import (
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OPENROUTER_API_KEY", "sk-or-test")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", cfg.APIPort)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.OpenRouterBaseURL != "https://openrouter.ai/api/v1" {
		t.Errorf("OpenRouterBaseURL = %s", cfg.OpenRouterBaseURL)
	}
	if cfg.Model != "deepseek/deepseek-chat" {
		t.Errorf("Model = %s", cfg.Model)
	}
	if cfg.MinContentChars != 1600 || cfg.MaxContentChars != 1950 {
		t.Errorf("content bounds = (%d, %d), want (1600, 1950)", cfg.MinContentChars, cfg.MaxContentChars)
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.MaxRuntimeSec != 7200 {
		t.Errorf("MaxRuntimeSec = %d, want 7200", cfg.MaxRuntimeSec)
	}
	if cfg.LessonDelaySec != 4 {
		t.Errorf("LessonDelaySec = %d, want 4", cfg.LessonDelaySec)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("API_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MAX_ATTEMPTS", "5")
	t.Setenv("MIN_CONTENT_CHARS", "1000")
	t.Setenv("MAX_CONTENT_CHARS", "1200")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", cfg.APIPort)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.MaxAttempts)
	}
	if cfg.MinContentChars != 1000 || cfg.MaxContentChars != 1200 {
		t.Errorf("content bounds = (%d, %d), want (1000, 1200)", cfg.MinContentChars, cfg.MaxContentChars)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing required env vars, got nil")
	}
}

func TestLoad_InvertedBounds(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MIN_CONTENT_CHARS", "2000")
	t.Setenv("MAX_CONTENT_CHARS", "1500")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for inverted content bounds, got nil")
	}
}

func TestLoad_OptionalBackends(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DatabaseDSN != "" {
		t.Errorf("DatabaseDSN = %q, want empty", cfg.DatabaseDSN)
	}
	if cfg.RedisURL != "" {
		t.Errorf("RedisURL = %q, want empty", cfg.RedisURL)
	}
}
