// Package sandbox runs untrusted source under enforced resource and
// isolation limits, dispatching to a container runtime when one is
// reachable and falling back to a direct subprocess otherwise.
package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	automation "github.com/execore/automation"
)

// Status is the terminal outcome of one sandboxed execution.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
	StatusKilled    Status = "killed"
)

// ResourceLimits bounds one sandboxed execution.
type ResourceLimits struct {
	MemoryMB        int64
	CPUPercent      int // percent of one core, e.g. 50 = half a core
	Timeout         time.Duration
	MaxOutputBytes  int
	NetworkEnabled  bool
	AllowedDomains  []string
}

// DefaultLimits mirrors the engine's documented defaults: 256MB, half a
// core, 30s wall clock, 64KB of captured output per stream, no network.
func DefaultLimits() ResourceLimits {
	return ResourceLimits{
		MemoryMB:       256,
		CPUPercent:     50,
		Timeout:        30 * time.Second,
		MaxOutputBytes: 64 * 1024,
		NetworkEnabled: false,
	}
}

// ExecutionResult is the structured outcome of Execute.
type ExecutionResult struct {
	Status     Status
	Stdout     string
	Stderr     string
	ExitCode   int
	Duration   time.Duration
	Executor   string // e.g. "container:python:3.12-slim" or "subprocess:python3"
}

// InputFile is an auxiliary file materialized into the scratch directory
// before the sandboxed process is launched.
type InputFile struct {
	Name    string
	Content []byte
}

// Stats is the aggregate execution counters exposed by ExecutionStats.
type Stats struct {
	ByStatus    map[Status]int
	AverageWall time.Duration
}

// ContainerRuntime abstracts the container dispatch path so the Docker SDK
// dependency can be swapped or stubbed in tests without touching Executor.
type ContainerRuntime interface {
	// Available reports whether the runtime can be reached right now.
	Available(ctx context.Context) bool
	// Run launches a container per req and blocks until it exits, is
	// killed by ctx's deadline, or the PID cap is hit inside the
	// container. workspaceDir is bind-mounted read-only.
	Run(ctx context.Context, req ContainerRequest) (ExecutionResult, error)
}

// ContainerRequest carries everything ContainerRuntime.Run needs to launch
// one sandboxed container.
type ContainerRequest struct {
	Image          string
	Command        []string
	WorkspaceDir   string
	MountPath      string
	MemoryMB       int64
	NanoCPUs       int64
	PidsLimit      int64
	NetworkEnabled bool
	Env            []string
	MaxOutputBytes int
}

// Executor prepares a scratch directory, materializes input files, runs the
// source under limits via the container runtime (or a subprocess fallback),
// and tears down. Safe for concurrent use.
type Executor struct {
	workspaceRoot string
	runtime       ContainerRuntime
	languages     map[string]Language
	logger        *slog.Logger
	tracer        automation.Tracer

	statsMu sync.Mutex
	counts  map[Status]int
	wallSum time.Duration
	wallN   int
}

// Option configures an Executor.
type Option func(*Executor)

// WithContainerRuntime overrides the container dispatch implementation.
// When omitted, NewExecutor uses a real Docker-backed runtime.
func WithContainerRuntime(rt ContainerRuntime) Option {
	return func(e *Executor) { e.runtime = rt }
}

// WithLanguages overrides the language dispatch table.
func WithLanguages(table map[string]Language) Option {
	return func(e *Executor) { e.languages = table }
}

// WithLogger attaches a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithTracer attaches a Tracer used to emit a sandbox.execute span around
// every Execute call. When omitted, spans are discarded.
func WithTracer(t automation.Tracer) Option {
	return func(e *Executor) { e.tracer = t }
}

// NewExecutor creates an Executor whose scratch directories are created
// under workspaceRoot.
func NewExecutor(workspaceRoot string, opts ...Option) *Executor {
	e := &Executor{
		workspaceRoot: workspaceRoot,
		languages:     defaultLanguages(),
		logger:        slog.New(slog.NewTextHandler(discardWriter{}, nil)),
		tracer:        automation.NoopTracer{},
		counts:        make(map[Status]int),
	}
	for _, o := range opts {
		o(e)
	}
	if e.runtime == nil {
		e.runtime = NewDockerRuntime()
	}
	return e
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// CheckSandboxAvailable reports whether the container runtime can be
// reached. When false, Execute transparently uses the subprocess fallback.
func (e *Executor) CheckSandboxAvailable(ctx context.Context) bool {
	return e.runtime.Available(ctx)
}

// ExecutionStats returns aggregate counts per terminal status and the mean
// wall-clock duration observed so far.
func (e *Executor) ExecutionStats() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	out := Stats{ByStatus: make(map[Status]int, len(e.counts))}
	for k, v := range e.counts {
		out.ByStatus[k] = v
	}
	if e.wallN > 0 {
		out.AverageWall = e.wallSum / time.Duration(e.wallN)
	}
	return out
}

func (e *Executor) recordStats(status Status, d time.Duration) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	e.counts[status]++
	e.wallSum += d
	e.wallN++
}

// Execute runs code under language's invocation template with limits,
// materializing files into a fresh scratch directory and passing env
// explicitly with no host environment leakage. The scratch directory is
// always removed before Execute returns.
func (e *Executor) Execute(ctx context.Context, code, language string, limits ResourceLimits, files []InputFile, env map[string]string) (ExecutionResult, error) {
	lang, ok := e.languages[language]
	if !ok {
		return ExecutionResult{}, &automation.SandboxError{Status: "setup", Detail: "unknown language: " + language}
	}

	execID := automation.NewID()
	scratchDir := filepath.Join(e.workspaceRoot, execID)
	if err := os.MkdirAll(scratchDir, 0o750); err != nil {
		return ExecutionResult{}, &automation.SandboxError{Status: "setup", Detail: "create scratch dir: " + err.Error()}
	}
	defer os.RemoveAll(scratchDir)

	scriptPath := filepath.Join(scratchDir, "script"+lang.Extension)
	mode := os.FileMode(0o640)
	if lang.Executable {
		mode = 0o750
	}
	if err := os.WriteFile(scriptPath, []byte(code), mode); err != nil {
		return ExecutionResult{}, &automation.SandboxError{Status: "setup", Detail: "write script: " + err.Error()}
	}
	for _, f := range files {
		if err := writeAuxFile(scratchDir, f); err != nil {
			return ExecutionResult{}, &automation.SandboxError{Status: "setup", Detail: err.Error()}
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, limits.Timeout)
	defer cancel()

	spanCtx, span := e.tracer.Start(runCtx, "sandbox.execute",
		automation.Attr("sandbox.language", language), automation.Attr("sandbox.exec_id", execID))
	defer span.End()

	start := time.Now()
	var result ExecutionResult
	if e.runtime.Available(spanCtx) {
		result = e.runContainer(spanCtx, lang, scratchDir, limits, env, execID)
	} else {
		result = e.runSubprocess(spanCtx, lang, scriptPath, scratchDir, limits, env)
	}
	result.Duration = time.Since(start)
	if result.Status == StatusTimeout {
		result.Stderr = fmt.Sprintf("execution timed out after %s", limits.Timeout)
	}
	span.SetAttr(automation.Attr("sandbox.status", string(result.Status)), automation.Attr("sandbox.duration_ms", result.Duration.Milliseconds()))
	e.recordStats(result.Status, result.Duration)
	return result, nil
}

func writeAuxFile(scratchDir string, f InputFile) error {
	clean := filepath.Join(scratchDir, filepath.Clean(string(filepath.Separator)+f.Name))
	if !pathWithin(scratchDir, clean) {
		return &automation.SandboxError{Status: "setup", Detail: "auxiliary file escapes scratch directory: " + f.Name}
	}
	if err := os.MkdirAll(filepath.Dir(clean), 0o750); err != nil {
		return err
	}
	return os.WriteFile(clean, f.Content, 0o640)
}

func pathWithin(root, candidate string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	return rel != ".." && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.'
}
