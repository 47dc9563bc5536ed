package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	t.Setenv(envConfigPath, filepath.Join(t.TempDir(), "does-not-exist.toml"))

	cfg, warning := Load()
	if warning == "" {
		t.Fatal("expected a warning for a missing config file")
	}
	if cfg.Server.Host != defaultHost || cfg.Server.Port != defaultPort {
		t.Errorf("expected default server bind, got %+v", cfg.Server)
	}
	if len(cfg.Providers) != 0 {
		t.Errorf("expected no providers, got %+v", cfg.Providers)
	}
}

func TestLoad_ParsesProvidersAndModels(t *testing.T) {
	body := `
[server]
host = "0.0.0.0"
port = 9000

[[providers]]
name = "claude"
rps = 5
concurrent = 2

  [[providers.models]]
  name = "sonnet"
  rps = 10
  timeout_secs = 30

[[providers]]
name = "codex"
supports_auto_model = false
`
	path := writeTempConfig(t, body)
	t.Setenv(envConfigPath, path)

	cfg, warning := Load()
	if warning != "" {
		t.Fatalf("unexpected warning: %s", warning)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9000 {
		t.Errorf("server settings = %+v", cfg.Server)
	}
	if len(cfg.Providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(cfg.Providers))
	}

	claude := cfg.Providers[0]
	if claude.Name != "claude" || !claude.SupportsAutoModel {
		t.Errorf("claude provider = %+v, want supports_auto_model true by default", claude)
	}
	if len(claude.Models) != 1 || claude.Models[0].Name != "sonnet" || claude.Models[0].TimeoutSecs != 30 {
		t.Errorf("claude models = %+v", claude.Models)
	}

	codex := cfg.Providers[1]
	if codex.SupportsAutoModel {
		t.Error("expected codex supports_auto_model to be false as configured")
	}
	if codex.TimeoutSecs != defaultTimeout {
		t.Errorf("expected default timeout to be applied, got %d", codex.TimeoutSecs)
	}
}

func TestLoad_MalformedFileFallsBackToDefaults(t *testing.T) {
	path := writeTempConfig(t, "this is not [ valid toml")
	t.Setenv(envConfigPath, path)

	cfg, warning := Load()
	if warning == "" {
		t.Fatal("expected a warning for a malformed config file")
	}
	if len(cfg.Providers) != 0 {
		t.Errorf("expected no providers on parse failure, got %+v", cfg.Providers)
	}
}
