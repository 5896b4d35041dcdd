package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/windmix/fanbench/internal/fanout"
	"github.com/windmix/fanbench/internal/format"
	"github.com/windmix/fanbench/internal/orchestration"
	"github.com/windmix/fanbench/internal/ui"
)

// CLIProgressReporter implements orchestration.ProgressReporter for plain
// terminal output. It prints one line per finished thread worker, flags
// abnormal children, and keeps a spinner with a progress bar running while
// the run is in flight.
type CLIProgressReporter struct {
	out         io.Writer
	showSpinner bool

	mu      sync.Mutex
	agg     *orchestration.ProgressAggregator
	spinner Spinner
}

var _ orchestration.ProgressReporter = (*CLIProgressReporter)(nil)

// NewCLIProgressReporter creates a reporter writing worker lines to out.
func NewCLIProgressReporter(out io.Writer, showSpinner bool) *CLIProgressReporter {
	return &CLIProgressReporter{out: out, showSpinner: showSpinner}
}

// Begin starts tracking a run of total workers.
func (r *CLIProgressReporter) Begin(model fanout.Model, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agg = orchestration.NewProgressAggregator(model, total)
	if !r.showSpinner {
		return
	}
	r.spinner = newSpinner()
	r.spinner.UpdateSuffix(progressSuffix(model, 0, total, 0, 0))
	r.spinner.Start()
}

// WorkerStarted is a no-op; lines are printed when a worker finishes.
func (r *CLIProgressReporter) WorkerStarted(fanout.Model, int, uint64) {}

// WorkerFinished prints the worker's line and advances the progress bar.
func (r *CLIProgressReporter) WorkerFinished(model fanout.Model, item fanout.WorkItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case model == fanout.ModelThread:
		fmt.Fprintf(r.out, "Thread %d ID: %d | Math sum: %d\n", item.Index, item.Identity, item.WorkloadResult)
	case item.Abnormal:
		fmt.Fprintf(r.out, "%sChild %d PID: %d terminated by %s%s\n",
			ui.ColorYellow(), item.Index, item.Identity, item.Signal, ui.ColorReset())
	}
	if r.agg == nil {
		return
	}
	p := r.agg.Update(item)
	if r.spinner != nil {
		r.spinner.UpdateSuffix(progressSuffix(model, p.Done, p.Total, p.Fraction, p.ETA))
	}
}

// End stops the spinner.
func (r *CLIProgressReporter) End() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.spinner != nil {
		r.spinner.Stop()
		r.spinner = nil
	}
	r.agg = nil
}

func progressSuffix(model fanout.Model, done, total int, fraction float64, eta time.Duration) string {
	return fmt.Sprintf(" %s workers %d/%d %s", model, done, total,
		format.FormatProgressBar(fraction, eta, ProgressBarWidth))
}
