// Package config loads the engine's configuration: hardcoded defaults,
// overlaid by an optional TOML file, overlaid by AUTOMATION_-prefixed
// environment variables.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Workflow   WorkflowConfig   `toml:"workflow"`
	Sandbox    SandboxConfig    `toml:"sandbox"`
	Permission PermissionConfig `toml:"permission"`
	Rollback   RollbackConfig   `toml:"rollback"`
	Observer   ObserverConfig   `toml:"observer"`
}

type WorkflowConfig struct {
	MaxParallelTasks      int `toml:"max_parallel_tasks"`
	DefaultTimeoutSeconds int `toml:"default_timeout_seconds"`
	DefaultMaxRetries     int `toml:"default_max_retries"`
}

type SandboxConfig struct {
	WorkspaceRoot          string                    `toml:"workspace_root"`
	ContainerRuntimeBinary string                    `toml:"container_runtime_binary"`
	DefaultMemoryBytes     int64                     `toml:"default_memory_bytes"`
	DefaultCPUQuota        float64                   `toml:"default_cpu_quota"`
	DefaultPIDLimit        int64                     `toml:"default_pid_limit"`
	DefaultTimeoutSeconds  int                       `toml:"default_timeout_seconds"`
	AllowNetwork           bool                      `toml:"allow_network"`
	Languages              map[string]LanguageConfig `toml:"languages"`
}

type LanguageConfig struct {
	Image  string `toml:"image"`
	Binary string `toml:"binary"`
}

type PermissionConfig struct {
	AuditLogPath          string   `toml:"audit_log_path"`
	RuleStorePath         string   `toml:"rule_store_path"`
	DefaultDecisionForLow string   `toml:"default_decision_for_low"`
	DomainAllowlist       []string `toml:"domain_allowlist"`
	PathBlocklist         []string `toml:"path_blocklist"`
}

type RollbackConfig struct {
	BackupDir           string `toml:"backup_dir"`
	RetentionAgeSeconds int    `toml:"retention_age_seconds"`
}

// RetentionAge returns RetentionAgeSeconds as a time.Duration.
func (c RollbackConfig) RetentionAge() time.Duration {
	return time.Duration(c.RetentionAgeSeconds) * time.Second
}

type ObserverConfig struct {
	Enabled     bool   `toml:"enabled"`
	ServiceName string `toml:"service_name"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "/tmp"
	}
	workspace := filepath.Join(home, "automation-workspace")
	return Config{
		Workflow: WorkflowConfig{
			MaxParallelTasks:      10,
			DefaultTimeoutSeconds: 60,
			DefaultMaxRetries:     3,
		},
		Sandbox: SandboxConfig{
			WorkspaceRoot:          filepath.Join(workspace, "sandbox"),
			ContainerRuntimeBinary: "docker",
			DefaultMemoryBytes:     256 * 1024 * 1024,
			DefaultCPUQuota:        1.0,
			DefaultPIDLimit:        64,
			DefaultTimeoutSeconds:  30,
			AllowNetwork:           false,
		},
		Permission: PermissionConfig{
			AuditLogPath:          filepath.Join(workspace, "audit.jsonl"),
			RuleStorePath:         filepath.Join(workspace, "rules.json"),
			DefaultDecisionForLow: "allow",
		},
		Rollback: RollbackConfig{
			BackupDir:           filepath.Join(workspace, "backups"),
			RetentionAgeSeconds: 7 * 24 * 3600,
		},
		Observer: ObserverConfig{
			ServiceName: "automation-engine",
		},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "automation.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	if v := os.Getenv("AUTOMATION_MAX_PARALLEL_TASKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workflow.MaxParallelTasks = n
		}
	}
	if v := os.Getenv("AUTOMATION_DEFAULT_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workflow.DefaultTimeoutSeconds = n
		}
	}
	if v := os.Getenv("AUTOMATION_SANDBOX_WORKSPACE"); v != "" {
		cfg.Sandbox.WorkspaceRoot = v
	}
	if v := os.Getenv("AUTOMATION_CONTAINER_RUNTIME_BINARY"); v != "" {
		cfg.Sandbox.ContainerRuntimeBinary = v
	}
	if v := os.Getenv("AUTOMATION_SANDBOX_ALLOW_NETWORK"); v == "true" || v == "1" {
		cfg.Sandbox.AllowNetwork = true
	}
	if v := os.Getenv("AUTOMATION_AUDIT_LOG_PATH"); v != "" {
		cfg.Permission.AuditLogPath = v
	}
	if v := os.Getenv("AUTOMATION_RULE_STORE_PATH"); v != "" {
		cfg.Permission.RuleStorePath = v
	}
	if v := os.Getenv("AUTOMATION_ROLLBACK_BACKUP_DIR"); v != "" {
		cfg.Rollback.BackupDir = v
	}
	if v := os.Getenv("AUTOMATION_OBSERVER_ENABLED"); v == "true" || v == "1" {
		cfg.Observer.Enabled = true
	}
	if v := os.Getenv("AUTOMATION_OTLP_ENDPOINT"); v != "" {
		cfg.Observer.OTLPEndpoint = v
	}

	if cfg.Sandbox.Languages == nil {
		cfg.Sandbox.Languages = map[string]LanguageConfig{}
	}

	return cfg
}
