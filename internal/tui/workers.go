package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/windmix/fanbench/internal/fanout"
	"github.com/windmix/fanbench/internal/format"
	"github.com/windmix/fanbench/internal/orchestration"
)

// maxLogLines bounds the worker log kept in memory.
const maxLogLines = 2000

// WorkersModel shows the current run's progress bar above a scrollable log
// of worker lines and run summaries.
type WorkersModel struct {
	bar      progress.Model
	model    fanout.Model
	total    int
	started  int
	done     int
	abnormal int
	fraction float64
	eta      string
	running  bool

	lines  []string
	offset int // lines scrolled up from the bottom
	width  int
	height int
}

// NewWorkersModel creates an empty worker panel.
func NewWorkersModel() WorkersModel {
	return WorkersModel{bar: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())}
}

// SetSize updates dimensions.
func (w *WorkersModel) SetSize(width, height int) {
	w.width = width
	w.height = height
	w.bar.Width = max(width-24, 10)
}

// Begin resets the counters for a new run.
func (w *WorkersModel) Begin(msg RunBeganMsg) {
	w.model = msg.Model
	w.total = msg.Total
	w.started, w.done, w.abnormal = 0, 0, 0
	w.fraction = 0
	w.eta = ""
	w.running = true
	w.append(modelStyle(string(msg.Model)).Render(fmt.Sprintf("── %s run: %d workers ──", msg.Model, msg.Total)))
}

// Started counts a launched worker.
func (w *WorkersModel) Started() { w.started++ }

// Finished records a finished worker.
func (w *WorkersModel) Finished(p orchestration.AggregatedProgress) {
	w.done = p.Done
	w.abnormal = p.Abnormal
	w.fraction = p.Fraction
	w.eta = format.FormatETA(p.ETA)
	item := p.Item
	switch {
	case p.Model == fanout.ModelThread:
		w.append(fmt.Sprintf("Thread %d ID: %d | Math sum: %d", item.Index, item.Identity, item.WorkloadResult))
	case item.Abnormal:
		w.append(warningStyle.Render(fmt.Sprintf("Child %d PID: %d terminated by %s", item.Index, item.Identity, item.Signal)))
	default:
		w.append(fmt.Sprintf("Child %d PID: %d | exit status: %d", item.Index, item.Identity, item.Contribution))
	}
}

// End marks the run finished.
func (w *WorkersModel) End() { w.running = false }

// AddInfo appends the information report.
func (w *WorkersModel) AddInfo(info orchestration.InfoReport) {
	h := info.Host
	w.append(accentStyle.Render("── system information ──"))
	w.append(fmt.Sprintf("Number of processors: %d", h.LogicalCPUs))
	w.append("Hostname: " + h.Hostname)
	w.append("Hardware platform: " + h.Machine)
	w.append(fmt.Sprintf("Total memory: %d MB", h.TotalMemory/(1024*1024)))
	w.append(fmt.Sprintf("Default worker count: %d", info.DefaultWorkers))
}

// AddReport appends a run summary.
func (w *WorkersModel) AddReport(r orchestration.RunReport) {
	agg := r.Aggregate
	label := "Total Thread ID sum"
	if agg.Model == fanout.ModelProcess {
		label = "Total PID sum"
	}
	w.append(successStyle.Render(fmt.Sprintf("%s: %d", label, agg.IdentitySum)))
	w.append(fmt.Sprintf("Time taken: %s", format.FormatExecutionDuration(agg.Elapsed)))
	if agg.WorkloadKnown {
		w.append(fmt.Sprintf("Combined math sum: %d", agg.WorkloadSum))
	}
	if agg.Abnormal > 0 {
		w.append(warningStyle.Render(fmt.Sprintf("Abnormal workers: %d of %d", agg.Abnormal, agg.Count)))
	}
	if !r.Consistent {
		w.append(errorStyle.Render("Workers disagree on the math sum."))
	}
}

// AddError appends a run failure.
func (w *WorkersModel) AddError(msg ErrorMsg) {
	w.running = false
	w.append(errorStyle.Render(fmt.Sprintf("Error after %s: %v", format.FormatExecutionDuration(msg.Duration), msg.Err)))
}

// Scroll moves the view by delta lines; positive scrolls towards older lines.
func (w *WorkersModel) Scroll(delta int) {
	w.offset = min(max(w.offset+delta, 0), max(len(w.lines)-w.logHeight(), 0))
}

func (w *WorkersModel) append(line string) {
	w.lines = append(w.lines, line)
	if len(w.lines) > maxLogLines {
		w.lines = w.lines[len(w.lines)-maxLogLines:]
	}
	if w.offset > 0 {
		w.offset++
	}
}

func (w WorkersModel) logHeight() int {
	// borders, status line and bar line
	return max(w.height-4, 1)
}

// View renders the panel.
func (w WorkersModel) View() string {
	var b strings.Builder
	status := dimStyle.Render("idle")
	if w.model != "" {
		status = fmt.Sprintf("%s %s/%s started, %s done",
			modelStyle(string(w.model)).Render(string(w.model)),
			format.FormatCount(uint64(w.started)), format.FormatCount(uint64(w.total)),
			format.FormatCount(uint64(w.done)))
		if w.abnormal > 0 {
			status += warningStyle.Render(fmt.Sprintf(", %d abnormal", w.abnormal))
		}
	}
	b.WriteString(status)
	b.WriteString("\n")
	b.WriteString(w.bar.ViewAs(w.fraction))
	b.WriteString(fmt.Sprintf(" %5.1f%%", w.fraction*100))
	if w.running && w.eta != "" {
		b.WriteString(dimStyle.Render(" ETA " + w.eta))
	}

	h := w.logHeight()
	end := len(w.lines) - w.offset
	start := max(end-h, 0)
	for _, line := range w.lines[start:end] {
		b.WriteString("\n")
		b.WriteString(line)
	}
	return panelStyle.Width(max(w.width-2, 0)).Height(max(w.height-2, 0)).Render(b.String())
}
