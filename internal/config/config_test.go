package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	t.Parallel()
	path := writeConfigFile(t, `
generator:
  command: python
`)

	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != 7860 {
		t.Fatalf("expected default port 7860, got %d", cfg.Server.Port)
	}
	if cfg.Queue.MaxQueueSize != 10 {
		t.Fatalf("expected default queue cap 10, got %d", cfg.Queue.MaxQueueSize)
	}
	if cfg.Queue.HistoryLimit != 100 {
		t.Fatalf("expected default history limit 100, got %d", cfg.Queue.HistoryLimit)
	}
	if cfg.Generator.Timeout != 5*time.Minute {
		t.Fatalf("expected default timeout 5m, got %v", cfg.Generator.Timeout)
	}
	if cfg.Generator.DefaultSamplingSteps != 40 || cfg.Generator.MaxSamplingSteps != 50 {
		t.Fatalf("unexpected sampling defaults: %d/%d",
			cfg.Generator.DefaultSamplingSteps, cfg.Generator.MaxSamplingSteps)
	}
	if cfg.Runtime.Dev {
		t.Fatalf("dev flag must be off")
	}
}

func TestLoadConfig_OverridesFromFile(t *testing.T) {
	t.Parallel()
	path := writeConfigFile(t, `
server:
  port: 9000
queue:
  max_queue_size: 3
  history_limit: 25
generator:
  command: python
  args: ["generate_multitalk.py"]
  timeout: 10m
`)

	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Fatalf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Queue.MaxQueueSize != 3 || cfg.Queue.HistoryLimit != 25 {
		t.Fatalf("queue overrides not applied: %+v", cfg.Queue)
	}
	if cfg.Generator.Timeout != 10*time.Minute {
		t.Fatalf("expected timeout 10m, got %v", cfg.Generator.Timeout)
	}
}

func TestLoadConfig_RequiresCommandOutsideDev(t *testing.T) {
	t.Parallel()
	path := writeConfigFile(t, `
server:
  port: 9000
`)

	if _, err := LoadConfig(path, false); err == nil {
		t.Fatalf("expected error without generator.command outside dev")
	}
	if _, err := LoadConfig(path, true); err != nil {
		t.Fatalf("dev mode must allow a missing command, got %v", err)
	}
}

func TestLoadConfig_RejectsNegativeQueueCap(t *testing.T) {
	t.Parallel()
	path := writeConfigFile(t, `
queue:
  max_queue_size: -1
generator:
  command: python
`)

	if _, err := LoadConfig(path, false); err == nil {
		t.Fatalf("expected error for negative max_queue_size")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), true); err == nil {
		t.Fatalf("expected error for a missing file")
	}
}

func TestLoadOrDefault_DevFallsBackWhenFileMissing(t *testing.T) {
	t.Parallel()
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"), true)
	if err != nil {
		t.Fatalf("dev mode must tolerate a missing config file, got %v", err)
	}
	if !cfg.Runtime.Dev {
		t.Fatalf("fallback config must keep dev mode on")
	}
	if cfg.Server.Port != 7860 {
		t.Fatalf("expected default port 7860, got %d", cfg.Server.Port)
	}
}

func TestLoadOrDefault_NonDevStillRequiresFile(t *testing.T) {
	t.Parallel()
	if _, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"), false); err == nil {
		t.Fatalf("expected error for a missing file outside dev")
	}
}

func TestLoadOrDefault_DevDoesNotMaskParseErrors(t *testing.T) {
	t.Parallel()
	path := writeConfigFile(t, "server: [not a mapping")
	if _, err := LoadOrDefault(path, true); err == nil {
		t.Fatalf("a broken file must still fail in dev")
	}
}

func TestDefault(t *testing.T) {
	t.Parallel()
	cfg := Default()
	if !cfg.Runtime.Dev {
		t.Fatalf("Default must enable dev mode")
	}
	if cfg.Capture.LogBufferLines != 100 || cfg.Capture.OutputBufferLines != 200 {
		t.Fatalf("unexpected capture defaults: %+v", cfg.Capture)
	}
	if cfg.Worker.PollInterval != 500*time.Millisecond {
		t.Fatalf("expected 500ms poll interval, got %v", cfg.Worker.PollInterval)
	}
}
