// Command automation runs a single workflow definition to completion.
//
// It wires together the configuration loader, OpenTelemetry instruments,
// the permission and rollback managers, the sandbox executor, and the file/
// shell/HTTP reference actions, then executes a workflow read from a JSON
// file (or stdin) and prints the result.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	automation "github.com/execore/automation"
	"github.com/execore/automation/actions"
	"github.com/execore/automation/internal/config"
	"github.com/execore/automation/observer"
	"github.com/execore/automation/permission"
	"github.com/execore/automation/rollback"
	"github.com/execore/automation/sandbox"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmsgprefix)
	log.SetPrefix("[automation] ")

	if err := run(); err != nil {
		log.Fatalf("run: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("AUTOMATION_CONFIG")
	var cfg config.Config
	if cfgPath != "" {
		cfg = config.Load(cfgPath)
	} else {
		cfg = config.Default()
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var inst *observer.Instruments
	var tracer automation.Tracer = automation.NoopTracer{}
	if cfg.Observer.Enabled {
		var shutdown func(context.Context) error
		var err error
		inst, shutdown, err = observer.Init(ctx, cfg.Observer.ServiceName)
		if err != nil {
			return fmt.Errorf("observer init: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Error("observer shutdown failed", "error", err)
			}
		}()
		tracer = observer.NewTracer(inst)
	}

	permMgr, err := permission.NewManager(cfg.Permission.AuditLogPath,
		permission.WithLogger(logger),
		permission.WithTracer(tracer),
		permission.WithDomainAllowlist(cfg.Permission.DomainAllowlist),
		permission.WithPathBlocklist(cfg.Permission.PathBlocklist),
	)
	if err != nil {
		return fmt.Errorf("permission manager: %w", err)
	}

	rollbackMgr := rollback.NewManager(cfg.Rollback.BackupDir,
		rollback.WithLogger(logger),
		rollback.WithTracer(tracer),
	)

	sandboxExec := sandbox.NewExecutor(cfg.Sandbox.WorkspaceRoot,
		sandbox.WithLogger(logger),
		sandbox.WithTracer(tracer),
	)

	wf, err := loadWorkflow(os.Args[1:],
		automation.MaxParallelTasks(cfg.Workflow.MaxParallelTasks),
		automation.WithTracer(tracer),
	)
	if err != nil {
		return fmt.Errorf("load workflow: %w", err)
	}

	registerActions(wf, cfg, permMgr, rollbackMgr, sandboxExec)

	result, err := wf.ExecuteWorkflow(ctx, automation.NewContext(nil))
	if err != nil {
		return fmt.Errorf("execute workflow: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func loadWorkflow(args []string, opts ...automation.WorkflowOption) (*automation.Workflow, error) {
	var raw []byte
	var err error
	if len(args) > 0 {
		raw, err = os.ReadFile(args[0])
	} else {
		raw, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}
	def, err := automation.ParseWorkflowDefinition(raw)
	if err != nil {
		return nil, err
	}
	return automation.FromDefinition(def, opts...)
}

func registerActions(wf *automation.Workflow, cfg config.Config, perm *permission.Manager, rb *rollback.Manager, sb *sandbox.Executor) {
	for kind, executor := range actions.FileExecutors(cfg.Sandbox.WorkspaceRoot, perm, rb) {
		wf.RegisterExecutor(kind, executor)
	}
	shellTimeout := time.Duration(cfg.Sandbox.DefaultTimeoutSeconds) * time.Second
	wf.RegisterExecutor("shell_exec", actions.ShellExecutor(cfg.Sandbox.WorkspaceRoot, shellTimeout, perm))
	wf.RegisterExecutor("http_fetch", actions.HTTPFetchExecutor(perm))
	wf.RegisterExecutor("code_execute", func(ctx context.Context, params map[string]any) (any, error) {
		if _, err := perm.Decide("code_execute", params); err != nil {
			return nil, err
		}
		language, _ := params["language"].(string)
		code, _ := params["code"].(string)
		limits := sandbox.DefaultLimits()
		return sb.Execute(ctx, code, language, limits, nil, nil)
	})
}
