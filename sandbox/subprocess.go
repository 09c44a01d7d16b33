package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// runSubprocess is the fallback path used when no container runtime is
// reachable. It applies the same timeout and output-capture semantics as
// the container path, but with weaker isolation: no filesystem, network, or
// PID confinement beyond the explicit environment passed to the child.
func (e *Executor) runSubprocess(ctx context.Context, lang Language, scriptPath, scratchDir string, limits ResourceLimits, env map[string]string) ExecutionResult {
	cmd := exec.CommandContext(ctx, lang.Command(scriptPath)[0], lang.Command(scriptPath)[1:]...)
	cmd.Dir = scratchDir
	cmd.Env = buildEnv(env)

	stdout := &limitedWriter{limit: limits.MaxOutputBytes}
	stderr := &limitedWriter{limit: limits.MaxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()

	executor := "subprocess:" + lang.Binary

	if ctx.Err() != nil {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		return ExecutionResult{
			Status:   StatusTimeout,
			Stdout:   "",
			Stderr:   "",
			ExitCode: -1,
			Executor: executor,
		}
	}

	if err == nil {
		return ExecutionResult{
			Status:   StatusCompleted,
			Stdout:   stdout.decoded(),
			Stderr:   stderr.decoded(),
			ExitCode: 0,
			Executor: executor,
		}
	}

	if exitErr, ok := err.(*exec.ExitError); ok {
		return ExecutionResult{
			Status:   StatusFailed,
			Stdout:   stdout.decoded(),
			Stderr:   stderr.decoded(),
			ExitCode: exitErr.ExitCode(),
			Executor: executor,
		}
	}

	return ExecutionResult{
		Status:   StatusKilled,
		Stdout:   stdout.decoded(),
		Stderr:   fmt.Sprintf("%s\n%s", stderr.decoded(), err.Error()),
		ExitCode: -1,
		Executor: executor,
	}
}

// runContainer is the primary dispatch path, delegating to the configured
// ContainerRuntime (normally Docker) with the translated resource limits.
func (e *Executor) runContainer(ctx context.Context, lang Language, scratchDir string, limits ResourceLimits, env map[string]string, execID string) ExecutionResult {
	pidsLimit := int64(50)
	result, err := e.runtime.Run(ctx, ContainerRequest{
		Image:          lang.Image,
		Command:        lang.Command(scriptInContainer(lang)),
		WorkspaceDir:   scratchDir,
		MountPath:      containerMountPath,
		MemoryMB:       limits.MemoryMB,
		NanoCPUs:       int64(limits.CPUPercent) * 1_000_000_0, // CPUPercent/100 of 1e9 nanoCPUs
		PidsLimit:      pidsLimit,
		NetworkEnabled: limits.NetworkEnabled,
		Env:            buildEnv(env),
		MaxOutputBytes: limits.MaxOutputBytes,
	})
	if err != nil {
		return ExecutionResult{
			Status:   StatusKilled,
			Stderr:   err.Error(),
			ExitCode: -1,
			Executor: "container:" + lang.Image,
		}
	}
	return result
}

func scriptInContainer(lang Language) string {
	return containerMountPath + "/script" + lang.Extension
}

// buildEnv produces the explicit environment passed to a sandboxed process:
// only the caller-supplied key/value pairs, plus the minimum needed for the
// interpreter to locate itself. No host environment variable is passed
// through implicitly.
func buildEnv(caller map[string]string) []string {
	env := []string{
		"PATH=" + os.Getenv("PATH"),
		"LANG=en_US.UTF-8",
	}
	for k, v := range caller {
		env = append(env, k+"="+v)
	}
	return env
}
