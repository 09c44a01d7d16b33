package sandbox

import (
	"context"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	dockerclient "github.com/docker/docker/client"

	automation "github.com/execore/automation"
)

// dockerRuntime dispatches sandboxed executions to containers via the
// Docker Engine API, matching the documented container settings: read-only
// bind mount, memory/CPU/PID caps, network toggle, explicit environment,
// auto-removal on exit.
type dockerRuntime struct {
	newClient func() (*dockerclient.Client, error)
}

// NewDockerRuntime creates a ContainerRuntime backed by the local Docker
// daemon, resolved the same way the Docker CLI does (DOCKER_HOST, TLS env
// vars, or the default socket).
func NewDockerRuntime() ContainerRuntime {
	return &dockerRuntime{
		newClient: func() (*dockerclient.Client, error) {
			return dockerclient.NewClientWithOpts(dockerclient.FromEnv, dockerclient.WithAPIVersionNegotiation())
		},
	}
}

func (r *dockerRuntime) Available(ctx context.Context) bool {
	cli, err := r.newClient()
	if err != nil {
		return false
	}
	defer cli.Close()
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err = cli.Ping(pingCtx)
	return err == nil
}

const containerMountPath = "/workspace"

func (r *dockerRuntime) Run(ctx context.Context, req ContainerRequest) (ExecutionResult, error) {
	cli, err := r.newClient()
	if err != nil {
		return ExecutionResult{}, &automation.SandboxError{Status: "setup", Detail: "docker client: " + err.Error()}
	}
	defer cli.Close()

	networkMode := container.NetworkMode("none")
	if req.NetworkEnabled {
		networkMode = "bridge"
	}

	hostCfg := &container.HostConfig{
		AutoRemove:  true,
		NetworkMode: networkMode,
		Mounts: []mount.Mount{{
			Type:     mount.TypeBind,
			Source:   req.WorkspaceDir,
			Target:   containerMountPath,
			ReadOnly: true,
		}},
		Resources: container.Resources{
			Memory:    req.MemoryMB * 1024 * 1024,
			NanoCPUs:  req.NanoCPUs,
			PidsLimit: &req.PidsLimit,
		},
	}

	containerCfg := &container.Config{
		Image:      req.Image,
		Cmd:        req.Command,
		Env:        req.Env,
		WorkingDir: containerMountPath,
		Tty:        false,
	}

	created, err := cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		return ExecutionResult{}, &automation.SandboxError{Status: "setup", Detail: "create container: " + err.Error()}
	}
	defer cli.ContainerRemove(context.Background(), created.ID, container.RemoveOptions{Force: true})

	if err := cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return ExecutionResult{}, &automation.SandboxError{Status: "setup", Detail: "start container: " + err.Error()}
	}

	statusCh, errCh := cli.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)

	var exitCode int64
	var waitErr error
	select {
	case <-ctx.Done():
		cli.ContainerKill(context.Background(), created.ID, "KILL")
		return ExecutionResult{
			Status:   StatusTimeout,
			ExitCode: -1,
			Executor: "container:" + req.Image,
		}, nil
	case err := <-errCh:
		waitErr = err
	case res := <-statusCh:
		exitCode = res.StatusCode
		if res.Error != nil {
			waitErr = &automation.SandboxError{Status: "killed", Detail: res.Error.Message}
		}
	}

	stdoutBuf := &limitedWriter{limit: req.MaxOutputBytes}
	stderrBuf := &limitedWriter{limit: req.MaxOutputBytes}
	logs, logErr := cli.ContainerLogs(context.Background(), created.ID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if logErr == nil {
		defer logs.Close()
		demuxLogs(logs, stdoutBuf, stderrBuf)
	}

	status := StatusCompleted
	if waitErr != nil {
		status = StatusKilled
	} else if exitCode != 0 {
		status = StatusFailed
	}

	return ExecutionResult{
		Status:   status,
		Stdout:   stdoutBuf.decoded(),
		Stderr:   stderrBuf.decoded(),
		ExitCode: int(exitCode),
		Executor: "container:" + req.Image,
	}, nil
}

// demuxLogs splits the Docker multiplexed log stream into stdout/stderr.
// Docker's stream format prefixes each frame with an 8-byte header whose
// first byte selects the stream; when the daemon is attached without a TTY
// (as here) logs always arrive framed this way.
func demuxLogs(r io.Reader, stdout, stderr io.Writer) {
	header := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			return
		}
		size := int(header[4])<<24 | int(header[5])<<16 | int(header[6])<<8 | int(header[7])
		frame := make([]byte, size)
		if _, err := io.ReadFull(r, frame); err != nil {
			return
		}
		switch header[0] {
		case 2:
			stderr.Write(frame)
		default:
			stdout.Write(frame)
		}
	}
}
