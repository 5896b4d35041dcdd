package fanout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/windmix/fanbench/internal/worker"
)

// ExecSpawner starts workers by re-executing a binary, by default the running
// executable, with the child environment from worker.ChildEnv.
type ExecSpawner struct {
	// Path is the binary to run. Empty means os.Executable().
	Path string
	Args []string
	// Env is appended after the inherited environment and the child variables.
	Env   []string
	Bound uint64
	// Stdout and Stderr receive the children's output. Nil means os.Stdout and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecSpawner returns a spawner re-executing the current binary.
func NewExecSpawner(bound uint64) *ExecSpawner {
	return &ExecSpawner{Bound: bound}
}

// Spawn starts worker index. The child is not tied to ctx; the runner decides
// when a straggler is killed so that it can reap it afterwards.
func (s *ExecSpawner) Spawn(ctx context.Context, index int) (WorkerHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.Path
	if path == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locating own executable: %w", err)
		}
		path = self
	}

	cmd := exec.Command(path, s.Args...)
	env := append(os.Environ(), worker.ChildEnv(index, s.Bound)...)
	cmd.Env = append(env, s.Env...)
	cmd.Stdout = s.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = s.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execHandle{cmd: cmd, started: started}, nil
}

type execHandle struct {
	cmd     *exec.Cmd
	started time.Time
}

func (h *execHandle) Pid() int {
	return h.cmd.Process.Pid
}

func (h *execHandle) Wait() (ExitOutcome, error) {
	err := h.cmd.Wait()
	out := ExitOutcome{Pid: h.cmd.Process.Pid, Duration: time.Since(h.started)}
	state := h.cmd.ProcessState
	if state == nil {
		return out, err
	}
	// With a reaped state, an error is either the expected *exec.ExitError
	// or a failure copying output; neither changes the exit status.
	decodeState(state, &out)
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return out, fmt.Errorf("collecting output of pid %d: %w", out.Pid, err)
	}
	return out, nil
}

func (h *execHandle) Kill() error {
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
