package actions

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	automation "github.com/execore/automation"
	"github.com/execore/automation/permission"
)

// blockedCommandPatterns rejects obviously destructive commands outright,
// before permission evaluation ever sees them.
var blockedCommandPatterns = []string{
	"rm -rf /",
	"rm -rf /*",
	"sudo ",
	"mkfs.",
	"mkfs ",
	"> /dev/",
	"dd if=",
	":(){ :|:& };:",
}

func blockedCommand(command string) string {
	lower := strings.ToLower(command)
	for _, pattern := range blockedCommandPatterns {
		if strings.Contains(lower, pattern) {
			return pattern
		}
	}
	return ""
}

// ShellExecutor returns the engine's shell_exec Executor: commands run in
// workspacePath, bounded by defaultTimeout unless the task overrides it via
// a "timeout" param (clamped to 300s), gated by perm before the command
// runs.
func ShellExecutor(workspacePath string, defaultTimeout time.Duration, perm *permission.Manager) automation.Executor {
	s := &shellAction{workspacePath: workspacePath, defaultTimeout: defaultTimeout, perm: perm}
	return s.run
}

type shellAction struct {
	workspacePath  string
	defaultTimeout time.Duration
	perm           *permission.Manager
}

func (s *shellAction) run(ctx context.Context, params map[string]any) (any, error) {
	command := stringParam(params, "command")
	if command == "" {
		return nil, fmt.Errorf("command is required")
	}

	if pattern := blockedCommand(command); pattern != "" {
		return nil, fmt.Errorf("command blocked: matches %q", pattern)
	}

	if _, err := s.perm.Decide("shell_exec", params); err != nil {
		return nil, err
	}

	timeout := s.defaultTimeout
	if secs, ok := params["timeout"].(float64); ok && secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}
	if timeout > 300*time.Second {
		timeout = 300 * time.Second
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "sh", "-c", command)
	cmd.Dir = s.workspacePath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	var output string
	if stdout.Len() > 0 {
		output = stdout.String()
	}
	if stderr.Len() > 0 {
		if output != "" {
			output += "\n--- stderr ---\n"
		}
		output += stderr.String()
	}
	if len(output) > 4000 {
		output = output[:4000] + "\n... (truncated)"
	}

	if cmdCtx.Err() == context.DeadlineExceeded {
		return output, fmt.Errorf("command timed out after %s", timeout)
	}
	if err != nil {
		if output == "" {
			output = err.Error()
		}
		return output, fmt.Errorf("exit: %w", err)
	}
	if output == "" {
		output = "(no output)"
	}
	return output, nil
}
