package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	t.Setenv("FERROCLAW_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Model.Name == "" || cfg.Model.MaxToolIterations != 20 {
		t.Errorf("defaults not applied: %+v", cfg.Model)
	}
	if !cfg.Heartbeat.Enabled || cfg.Heartbeat.IntervalMinutes != 30 {
		t.Errorf("heartbeat defaults = %+v", cfg.Heartbeat)
	}
}

func TestLoadReadsFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	os.WriteFile(path, []byte(`{
		"model": {"name": "file-model", "maxTokens": 2048},
		"providers": {"openai": {"apiKey": "file-key"}}
	}`), 0600)

	t.Setenv("FERROCLAW_CONFIG", path)
	t.Setenv("FERROCLAW_MODEL_MODEL", "env-model")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	// Env beats file, file beats defaults.
	if cfg.Model.Name != "env-model" {
		t.Errorf("model name = %q", cfg.Model.Name)
	}
	if cfg.Model.MaxTokens != 2048 {
		t.Errorf("max tokens = %d", cfg.Model.MaxTokens)
	}
	if cfg.Providers.OpenAI.APIKey != "file-key" {
		t.Errorf("api key = %q", cfg.Providers.OpenAI.APIKey)
	}
}

func TestLoadSubstitutesEnvPlaceholders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{
		"model": {"name": "${TEST_MODEL_NAME}"},
		"providers": {"openai": {"apiKey": "${TEST_API_KEY}", "apiBase": "${UNSET_VAR_XYZ}"}}
	}`), 0600)

	t.Setenv("FERROCLAW_CONFIG", path)
	t.Setenv("TEST_MODEL_NAME", "env-model")
	t.Setenv("TEST_API_KEY", "sk-from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Model.Name != "env-model" {
		t.Errorf("model name = %q", cfg.Model.Name)
	}
	if cfg.Providers.OpenAI.APIKey != "sk-from-env" {
		t.Errorf("api key = %q", cfg.Providers.OpenAI.APIKey)
	}
	// Unset variables stay verbatim.
	if cfg.Providers.OpenAI.APIBase != "${UNSET_VAR_XYZ}" {
		t.Errorf("api base = %q", cfg.Providers.OpenAI.APIBase)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte("{not json"), 0600)
	t.Setenv("FERROCLAW_CONFIG", path)

	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("FERROCLAW_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.Model.Name = "saved-model"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Model.Name != "saved-model" {
		t.Errorf("model name = %q", loaded.Model.Name)
	}
}

func TestConfigPathHonorsExplicitEnv(t *testing.T) {
	t.Setenv("FERROCLAW_CONFIG", "/tmp/custom.json")

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath() error: %v", err)
	}
	if path != "/tmp/custom.json" {
		t.Errorf("path = %q", path)
	}
}
