package local

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"syscall"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/facade"
)

// Exec launches one OS subprocess per job, the Local-runtime analogue of an ECS task
// or Container App job (spec §4.1). The runner binary itself is expected at
// RunnerPath and receives its job environment the same way the cloud variants inject
// container environment variables.
type Exec struct {
	RunnerPath string

	mu    sync.Mutex
	procs map[facade.JobHandle]*exec.Cmd
	done  map[facade.JobHandle]error
}

func NewExec(runnerPath string) *Exec {
	return &Exec{
		RunnerPath: runnerPath,
		procs:      make(map[facade.JobHandle]*exec.Cmd),
		done:       make(map[facade.JobHandle]error),
	}
}

func (e *Exec) Start(ctx context.Context, in facade.ExecStartInput) (facade.JobHandle, error) {
	cmd := exec.Command(e.RunnerPath)
	for k, v := range in.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	if err := cmd.Start(); err != nil {
		return "", apperrors.Wrap(apperrors.Transient, err, "start runner for job %s", in.JobID)
	}

	handle := facade.JobHandle(strconv.Itoa(cmd.Process.Pid))
	e.mu.Lock()
	e.procs[handle] = cmd
	e.mu.Unlock()

	go func() {
		err := cmd.Wait()
		e.mu.Lock()
		e.done[handle] = err
		e.mu.Unlock()
	}()

	return handle, nil
}

func (e *Exec) Status(_ context.Context, handle facade.JobHandle) (facade.ExecStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, running := e.procs[handle]; running {
		if err, finished := e.done[handle]; finished {
			if err != nil {
				return facade.ExecFailed, nil
			}
			return facade.ExecSucceeded, nil
		}
		return facade.ExecRunning, nil
	}
	return facade.ExecLost, nil
}

func (e *Exec) Stop(_ context.Context, handle facade.JobHandle) error {
	e.mu.Lock()
	cmd, ok := e.procs[handle]
	e.mu.Unlock()
	if !ok || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return apperrors.Wrap(apperrors.Transient, err, "stop job %s", handle)
	}
	return nil
}
