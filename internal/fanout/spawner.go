package fanout

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mocks/mock_spawner.go -package=mocks github.com/windmix/fanbench/internal/fanout Spawner,WorkerHandle

// Spawner starts one worker process.
type Spawner interface {
	// Spawn starts worker index and returns a handle to it. The worker runs
	// the workload, reports itself and terminates with an identity-derived
	// exit status.
	Spawn(ctx context.Context, index int) (WorkerHandle, error)
}

// WorkerHandle is a started child process.
type WorkerHandle interface {
	Pid() int
	// Wait blocks until the child terminates and reaps it. It is called exactly
	// once per handle. A non-zero exit status is not an error.
	Wait() (ExitOutcome, error)
	// Kill forcibly terminates the child. Killing a child that has already
	// exited is not an error.
	Kill() error
}

// ExitOutcome describes how a reaped child terminated.
type ExitOutcome struct {
	Pid int
	// Exited is true when the child called exit; Code is then its status.
	Exited bool
	Code   int
	// Signal names the signal that terminated the child when Exited is false.
	Signal   string
	Duration time.Duration
	CPUTime  time.Duration
}
