// Package worker is the child side of the process model. The parent re-executes
// its own binary with the child environment set; main checks IsChild before
// anything else and hands control to RunChild.
package worker

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/windmix/fanbench/internal/workload"
)

// Environment variables understood by a child.
const (
	EnvChild = "FANBENCH_CHILD"
	EnvIndex = "FANBENCH_CHILD_INDEX"
	EnvBound = "FANBENCH_CHILD_BOUND"
)

// ExitStatusRange is the number of distinct exit statuses a parent can observe.
const ExitStatusRange = 256

// Params are the inputs a child reads from its environment.
type Params struct {
	Index int
	Bound uint64
}

// ChildEnv returns the environment entries that turn a re-executed binary into
// worker index with the given bound.
func ChildEnv(index int, bound uint64) []string {
	return []string{
		EnvChild + "=1",
		EnvIndex + "=" + strconv.Itoa(index),
		EnvBound + "=" + strconv.FormatUint(bound, 10),
	}
}

// IsChild reports whether the current process was launched as a worker.
func IsChild() bool {
	return os.Getenv(EnvChild) == "1"
}

// ParamsFromEnv reads the child parameters through getenv. Missing or malformed
// values fall back to index 0 and workload.DefaultBound: a child has no channel
// to report an error other than its exit status, which is already spoken for.
func ParamsFromEnv(getenv func(string) string) Params {
	p := Params{Bound: workload.DefaultBound}
	if v, err := strconv.Atoi(getenv(EnvIndex)); err == nil && v >= 0 {
		p.Index = v
	}
	if v, err := strconv.ParseUint(getenv(EnvBound), 10, 64); err == nil {
		p.Bound = v
	}
	return p
}

// ExitStatus folds a pid into the 0..255 range of a process exit status.
func ExitStatus(pid int) int {
	return pid % ExitStatusRange
}

// RunChild runs the workload once, prints the child's line to out and returns
// the exit status the process must terminate with.
func RunChild(out io.Writer) int {
	p := ParamsFromEnv(os.Getenv)
	result := workload.NestedSqrtSum(p.Bound)
	pid := os.Getpid()
	fmt.Fprintf(out, "Child %d PID: %d | Math sum: %d\n", p.Index, pid, result)
	return ExitStatus(pid)
}
