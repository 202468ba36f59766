package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 9000\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("expected configured port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Vision.ModelsDir != "models" {
		t.Errorf("expected default models dir, got %q", cfg.Vision.ModelsDir)
	}
	if cfg.Vision.FrameSkipModulo != 3 {
		t.Errorf("expected default frame skip modulo 3, got %d", cfg.Vision.FrameSkipModulo)
	}
	if cfg.Vision.ObjectStrideModulo != 10 {
		t.Errorf("expected default object stride modulo 10, got %d", cfg.Vision.ObjectStrideModulo)
	}
	if cfg.Session.AlertMaxAgeSec != 5 {
		t.Errorf("expected default alert max age 5s, got %d", cfg.Session.AlertMaxAgeSec)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 9000\n")

	t.Setenv("PROCTOR_SERVER_PORT", "7000")
	t.Setenv("PROCTOR_MODELS_DIR", "/opt/models")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Server.Port != 7000 {
		t.Errorf("expected env override port 7000, got %d", cfg.Server.Port)
	}
	if cfg.Vision.ModelsDir != "/opt/models" {
		t.Errorf("expected env override models dir, got %q", cfg.Vision.ModelsDir)
	}
}
