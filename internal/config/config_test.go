package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Backend.APIKey != "${GEMINI_API_KEY}" {
		t.Error("expected gemini API key placeholder")
	}
	if cfg.Illustrations.SceneCount != 3 {
		t.Errorf("expected 3 scenes per chapter, got %d", cfg.Illustrations.SceneCount)
	}
	if cfg.Batch.Concurrency != 3 {
		t.Errorf("expected concurrency 3, got %d", cfg.Batch.Concurrency)
	}
	if cfg.Batch.MinChapterWords != 1000 {
		t.Errorf("expected min chapter words 1000, got %d", cfg.Batch.MinChapterWords)
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		os.Setenv("TEST_API_KEY", "secret123")
		defer os.Unsetenv("TEST_API_KEY")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestResolveAPIKey(t *testing.T) {
	t.Run("resolves env var reference", func(t *testing.T) {
		os.Setenv("TEST_GEMINI_KEY", "gm-key-123")
		defer os.Unsetenv("TEST_GEMINI_KEY")

		cfg := &Config{Backend: BackendCfg{APIKey: "${TEST_GEMINI_KEY}"}}
		key, err := cfg.ResolveAPIKey()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if key != "gm-key-123" {
			t.Errorf("expected gm-key-123, got %s", key)
		}
	})

	t.Run("missing key is a config error", func(t *testing.T) {
		cfg := &Config{Backend: BackendCfg{APIKey: "${DEFINITELY_NOT_SET_12345}"}}
		_, err := cfg.ResolveAPIKey()
		if !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("expected ErrMissingAPIKey, got %v", err)
		}
	})
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}

	content := string(data)
	if !strings.Contains(content, "GEMINI_API_KEY") {
		t.Error("expected config to reference GEMINI_API_KEY")
	}
	if !strings.Contains(content, "scene_count: 3") {
		t.Error("expected default scene_count in config")
	}
}
