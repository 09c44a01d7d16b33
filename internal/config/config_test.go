package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.Workflow.MaxParallelTasks != 10 {
		t.Errorf("expected 10, got %d", cfg.Workflow.MaxParallelTasks)
	}
	if cfg.Workflow.DefaultMaxRetries != 3 {
		t.Errorf("expected 3, got %d", cfg.Workflow.DefaultMaxRetries)
	}
	if cfg.Sandbox.ContainerRuntimeBinary != "docker" {
		t.Errorf("expected docker, got %s", cfg.Sandbox.ContainerRuntimeBinary)
	}
	if cfg.Sandbox.AllowNetwork {
		t.Error("expected network disabled by default")
	}
}

func TestLoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.toml")
	os.WriteFile(path, []byte(`
[workflow]
max_parallel_tasks = 8

[sandbox]
allow_network = true
`), 0644)

	cfg := Load(path)
	if cfg.Workflow.MaxParallelTasks != 8 {
		t.Errorf("expected 8, got %d", cfg.Workflow.MaxParallelTasks)
	}
	if !cfg.Sandbox.AllowNetwork {
		t.Error("expected allow_network true from TOML")
	}
	// Defaults preserved for fields not set in the TOML file
	if cfg.Workflow.DefaultMaxRetries != 3 {
		t.Errorf("default should be preserved, got %d", cfg.Workflow.DefaultMaxRetries)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("AUTOMATION_MAX_PARALLEL_TASKS", "16")
	t.Setenv("AUTOMATION_AUDIT_LOG_PATH", "/tmp/custom-audit.jsonl")

	cfg := Load("/nonexistent/path.toml")
	if cfg.Workflow.MaxParallelTasks != 16 {
		t.Errorf("expected 16, got %d", cfg.Workflow.MaxParallelTasks)
	}
	if cfg.Permission.AuditLogPath != "/tmp/custom-audit.jsonl" {
		t.Errorf("expected override path, got %s", cfg.Permission.AuditLogPath)
	}
}

func TestEnvOverrideWinsOverTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.toml")
	os.WriteFile(path, []byte(`
[workflow]
max_parallel_tasks = 8
`), 0644)

	t.Setenv("AUTOMATION_MAX_PARALLEL_TASKS", "32")
	cfg := Load(path)
	if cfg.Workflow.MaxParallelTasks != 32 {
		t.Errorf("env should win over TOML, got %d", cfg.Workflow.MaxParallelTasks)
	}
}

func TestRollbackRetentionAge(t *testing.T) {
	cfg := Default()
	if cfg.Rollback.RetentionAge().Hours() != float64(7*24) {
		t.Errorf("expected 168h, got %v", cfg.Rollback.RetentionAge())
	}
}
