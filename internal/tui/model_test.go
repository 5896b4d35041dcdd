package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	apperrors "github.com/windmix/fanbench/internal/errors"
	"github.com/windmix/fanbench/internal/fanout"
	"github.com/windmix/fanbench/internal/orchestration"
	"github.com/windmix/fanbench/internal/sysmon"
)

func newTestModel(t *testing.T) (Model, *bool) {
	t.Helper()
	canceled := false
	m := NewModel(context.Background(), func() { canceled = true }, "v1.0.0")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	return next.(Model), &canceled
}

func update(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestModel_ViewBeforeResize(t *testing.T) {
	m := NewModel(context.Background(), nil, "dev")
	if got := m.View(); got != "Initializing..." {
		t.Errorf("View() = %q", got)
	}
}

func TestModel_RunLifecycle(t *testing.T) {
	m, _ := newTestModel(t)
	m = update(t, m,
		InfoMsg{Info: orchestration.InfoReport{Host: sysmon.HostInfo{Hostname: "bench-01", LogicalCPUs: 4}}},
		RunBeganMsg{Model: fanout.ModelThread, Total: 2},
		WorkerStartedMsg{Model: fanout.ModelThread, Index: 0, Identity: 41},
		WorkerStartedMsg{Model: fanout.ModelThread, Index: 1, Identity: 42},
		WorkerFinishedMsg{Progress: orchestration.AggregatedProgress{
			Model: fanout.ModelThread, Done: 1, Total: 2, Fraction: 0.5,
			Item: fanout.WorkItem{Index: 0, Identity: 41, WorkloadResult: 258},
		}},
	)
	if m.workers.started != 2 || m.workers.done != 1 {
		t.Errorf("started=%d done=%d, want 2 and 1", m.workers.started, m.workers.done)
	}

	view := m.View()
	for _, want := range []string{"fanbench v1.0.0", "thread run", "Hostname: bench-01", "Thread 0 ID: 41 | Math sum: 258", "RUNNING"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	agg := &fanout.Aggregate{Model: fanout.ModelThread, Count: 2, IdentitySum: 99, WorkloadSum: 516, WorkloadKnown: true}
	m = update(t, m,
		RunEndedMsg{},
		RunReportMsg{Report: orchestration.RunReport{Aggregate: agg, Consistent: true}},
		PlanCompleteMsg{ExitCode: apperrors.ExitSuccess},
	)
	if !m.done || m.exitCode != apperrors.ExitSuccess {
		t.Errorf("done=%v exit=%d", m.done, m.exitCode)
	}
	view = m.View()
	for _, want := range []string{"Total Thread ID sum: 99", "Combined math sum: 516", "DONE"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_ErrorMarksFailure(t *testing.T) {
	m, _ := newTestModel(t)
	m = update(t, m,
		RunBeganMsg{Model: fanout.ModelProcess, Total: 3},
		ErrorMsg{Err: errors.New("fork failed"), Duration: time.Second},
		PlanCompleteMsg{ExitCode: apperrors.ExitErrorSpawn},
	)
	if m.exitCode != apperrors.ExitErrorSpawn {
		t.Errorf("exitCode = %d", m.exitCode)
	}
	view := m.View()
	if !strings.Contains(view, "fork failed") || !strings.Contains(view, "FAILED") {
		t.Error("expected the error and failed status in the view")
	}
}

func TestModel_AbnormalChild(t *testing.T) {
	m, _ := newTestModel(t)
	m = update(t, m,
		RunBeganMsg{Model: fanout.ModelProcess, Total: 1},
		WorkerFinishedMsg{Progress: orchestration.AggregatedProgress{
			Model: fanout.ModelProcess, Done: 1, Total: 1, Fraction: 1, Abnormal: 1,
			Item: fanout.WorkItem{Index: 0, Identity: 500, Abnormal: true, Signal: "SIGKILL"},
		}},
	)
	view := m.View()
	if !strings.Contains(view, "terminated by SIGKILL") || !strings.Contains(view, "1 abnormal") {
		t.Error("expected the abnormal child in the view")
	}
}

func TestModel_QuitCancels(t *testing.T) {
	m, canceled := newTestModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !*canceled {
		t.Error("expected quit to cancel the run")
	}
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestModel_PauseStopsSampling(t *testing.T) {
	m, _ := newTestModel(t)
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	if !m.paused {
		t.Fatal("expected paused")
	}
	if !strings.Contains(m.View(), "PAUSED") {
		t.Error("expected paused status")
	}
	m = update(t, m, MemStatsMsg{HeapAlloc: 1024, Goroutines: 7}, SysStatsMsg{CPUPercent: 50})
	if m.metrics.mem.Goroutines != 7 || m.metrics.cpu.Last() != 50 {
		t.Error("samples already in flight are still applied")
	}
}

func TestModel_ContextCancelledQuits(t *testing.T) {
	m, _ := newTestModel(t)
	_, cmd := m.Update(ContextCancelledMsg{Err: context.Canceled})
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestWorkersModel_Scroll(t *testing.T) {
	w := NewWorkersModel()
	w.SetSize(80, 10)
	for i := range 20 {
		w.append(strings.Repeat("x", i))
	}
	w.Scroll(100)
	if w.offset != 20-w.logHeight() {
		t.Errorf("offset = %d, want %d", w.offset, 20-w.logHeight())
	}
	w.Scroll(-100)
	if w.offset != 0 {
		t.Errorf("offset = %d, want 0", w.offset)
	}
}

func TestWorkersModel_LogIsBounded(t *testing.T) {
	w := NewWorkersModel()
	for range maxLogLines + 10 {
		w.append("line")
	}
	if len(w.lines) != maxLogLines {
		t.Errorf("len(lines) = %d, want %d", len(w.lines), maxLogLines)
	}
}
