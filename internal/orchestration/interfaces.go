package orchestration

import (
	"context"
	"io"
	"time"

	"github.com/windmix/fanbench/internal/fanout"
	"github.com/windmix/fanbench/internal/metrics"
	"github.com/windmix/fanbench/internal/sysmon"
)

// RunReport is the outcome of one run together with its derived statistics.
type RunReport struct {
	Aggregate *fanout.Aggregate `json:"aggregate" yaml:"aggregate"`
	// Strategy is the thread result strategy; empty for process runs.
	Strategy fanout.Strategy `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	// Latency digests the worker durations of this run.
	Latency metrics.LatencySummary `json:"latency" yaml:"latency"`
	// Memory is the runtime memory change across a thread run.
	Memory *metrics.MemoryDelta `json:"memory,omitempty" yaml:"memory,omitempty"`
	// Consistent reports whether every worker computed the same workload
	// value. Always true when the values are unknown.
	Consistent bool `json:"consistent" yaml:"consistent"`
}

// InfoReport is the system information report.
type InfoReport struct {
	Host           sysmon.HostInfo `json:"host" yaml:"host"`
	DefaultWorkers int             `json:"default_workers" yaml:"default_workers"`
	WordSize       int             `json:"word_size" yaml:"word_size"`
}

// PresentationOptions configures how results are presented to the user.
type PresentationOptions struct {
	Details bool
	Verbose bool
	Quiet   bool
}

// ProgressReporter shows workers starting and finishing. Begin and End
// bracket every run; the embedded Observer methods are called concurrently
// in between.
type ProgressReporter interface {
	fanout.Observer
	Begin(model fanout.Model, total int)
	End()
}

// NullProgressReporter discards all progress events.
// Useful for quiet mode, structured output or testing.
type NullProgressReporter struct {
	fanout.NopObserver
}

// Begin does nothing.
func (NullProgressReporter) Begin(fanout.Model, int) {}

// End does nothing.
func (NullProgressReporter) End() {}

// ResultPresenter defines the interface for presenting reports.
type ResultPresenter interface {
	PresentInfo(info InfoReport, out io.Writer)
	PresentRun(report RunReport, opts PresentationOptions, out io.Writer)
}

// ErrorHandler handles run errors and returns exit codes.
type ErrorHandler interface {
	HandleError(err error, duration time.Duration, out io.Writer) int
}

// Runner executes one fan-out run. fanout.ProcessRunner and
// fanout.ThreadRunner implement it.
type Runner interface {
	Run(ctx context.Context, count int) (*fanout.Aggregate, error)
}

// RunnerFactory builds the runner for a model from the per-run options.
type RunnerFactory func(model fanout.Model, opts fanout.Options) Runner
