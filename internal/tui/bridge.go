package tui

import (
	"io"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	apperrors "github.com/windmix/fanbench/internal/errors"
	"github.com/windmix/fanbench/internal/fanout"
	"github.com/windmix/fanbench/internal/orchestration"
)

// programRef is a shared reference to the tea.Program.
// Because bubbletea copies the model on every Update, we need a pointer
// that survives copies so the orchestrator goroutine can send messages.
type programRef struct {
	mu      sync.RWMutex
	program *tea.Program
}

// SetProgram sets the tea.Program reference (thread-safe).
func (r *programRef) SetProgram(p *tea.Program) {
	r.mu.Lock()
	r.program = p
	r.mu.Unlock()
}

// Send sends a message to the bubbletea program (thread-safe).
// It is a no-op until a program is set.
func (r *programRef) Send(msg tea.Msg) {
	r.mu.RLock()
	p := r.program
	r.mu.RUnlock()
	if p != nil {
		p.Send(msg)
	}
}

// TUIProgressReporter implements orchestration.ProgressReporter by turning
// worker events into bubbletea messages.
type TUIProgressReporter struct {
	ref *programRef

	mu  sync.Mutex
	agg *orchestration.ProgressAggregator
}

// Verify interface compliance.
var _ orchestration.ProgressReporter = (*TUIProgressReporter)(nil)

// Begin starts tracking a run.
func (t *TUIProgressReporter) Begin(model fanout.Model, total int) {
	t.mu.Lock()
	t.agg = orchestration.NewProgressAggregator(model, total)
	t.mu.Unlock()
	t.ref.Send(RunBeganMsg{Model: model, Total: total})
}

// WorkerStarted forwards a launch event.
func (t *TUIProgressReporter) WorkerStarted(model fanout.Model, index int, identity uint64) {
	t.ref.Send(WorkerStartedMsg{Model: model, Index: index, Identity: identity})
}

// WorkerFinished forwards a completion event with the updated progress.
func (t *TUIProgressReporter) WorkerFinished(model fanout.Model, item fanout.WorkItem) {
	t.mu.Lock()
	agg := t.agg
	t.mu.Unlock()
	p := orchestration.AggregatedProgress{Model: model, Item: item}
	if agg != nil {
		p = agg.Update(item)
	}
	t.ref.Send(WorkerFinishedMsg{Progress: p})
}

// End closes the run.
func (t *TUIProgressReporter) End() {
	t.mu.Lock()
	t.agg = nil
	t.mu.Unlock()
	t.ref.Send(RunEndedMsg{})
}

// TUIResultPresenter implements orchestration.ResultPresenter and
// orchestration.ErrorHandler. It sends reports to the dashboard instead of
// writing them out.
type TUIResultPresenter struct {
	ref *programRef
}

// Verify interface compliance.
var (
	_ orchestration.ResultPresenter = (*TUIResultPresenter)(nil)
	_ orchestration.ErrorHandler    = (*TUIResultPresenter)(nil)
)

// PresentInfo sends the information report to the dashboard.
func (t *TUIResultPresenter) PresentInfo(info orchestration.InfoReport, _ io.Writer) {
	t.ref.Send(InfoMsg{Info: info})
}

// PresentRun sends a run summary to the dashboard.
func (t *TUIResultPresenter) PresentRun(report orchestration.RunReport, _ orchestration.PresentationOptions, _ io.Writer) {
	t.ref.Send(RunReportMsg{Report: report})
}

// HandleError sends an error message to the dashboard and returns the exit code.
func (t *TUIResultPresenter) HandleError(err error, duration time.Duration, _ io.Writer) int {
	if err == nil {
		return apperrors.ExitSuccess
	}
	t.ref.Send(ErrorMsg{Err: err, Duration: duration})
	return apperrors.HandleRunError(err, duration, io.Discard, nil)
}
