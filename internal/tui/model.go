package tui

import (
	"context"
	"io"
	"runtime"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/windmix/fanbench/internal/config"
	apperrors "github.com/windmix/fanbench/internal/errors"
	"github.com/windmix/fanbench/internal/orchestration"
	"github.com/windmix/fanbench/internal/sysmon"
)

// Layout constants for the dashboard.
const (
	headerHeight             = 1
	footerHeight             = 1
	minBodyHeight            = 8
	WorkersPanelWidthPercent = 62
	sampleInterval           = 500 * time.Millisecond
)

// LayoutManager holds terminal dimensions and provides layout calculations.
type LayoutManager struct {
	width  int
	height int
}

func (l LayoutManager) bodyHeight() int {
	return max(l.height-headerHeight-footerHeight, minBodyHeight)
}

func (l LayoutManager) workersWidth() int {
	return l.width * WorkersPanelWidthPercent / 100
}

func (l LayoutManager) metricsWidth() int {
	return l.width - l.workersWidth()
}

// Model is the root bubbletea model for the dashboard.
type Model struct {
	header  HeaderModel
	workers WorkersModel
	metrics MetricsModel
	footer  FooterModel
	keymap  KeyMap

	LayoutManager

	ctx      context.Context
	cancel   context.CancelFunc
	paused   bool
	done     bool
	exitCode int
}

// NewModel creates the dashboard model. cancel is called when the user quits.
func NewModel(ctx context.Context, cancel context.CancelFunc, version string) Model {
	keys := DefaultKeyMap()
	return Model{
		header:   NewHeaderModel(version),
		workers:  NewWorkersModel(),
		metrics:  NewMetricsModel(),
		footer:   NewFooterModel(keys),
		keymap:   keys,
		ctx:      ctx,
		cancel:   cancel,
		exitCode: apperrors.ExitSuccess,
	}
}

// Init returns the initial commands.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), watchContextCmd(m.ctx))
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layoutPanels()
		return m, nil

	case RunBeganMsg:
		m.header.SetRun(string(msg.Model))
		m.workers.Begin(msg)
		return m, nil

	case WorkerStartedMsg:
		m.workers.Started()
		return m, nil

	case WorkerFinishedMsg:
		m.workers.Finished(msg.Progress)
		return m, nil

	case RunEndedMsg:
		m.workers.End()
		return m, nil

	case InfoMsg:
		m.workers.AddInfo(msg.Info)
		return m, nil

	case RunReportMsg:
		m.workers.AddReport(msg.Report)
		return m, nil

	case ErrorMsg:
		m.workers.AddError(msg)
		m.footer.SetError(true)
		return m, nil

	case PlanCompleteMsg:
		m.done = true
		m.exitCode = msg.ExitCode
		m.header.SetDone()
		m.footer.SetDone(true)
		if msg.ExitCode != apperrors.ExitSuccess {
			m.footer.SetError(true)
		}
		return m, nil

	case TickMsg:
		if m.done {
			return m, nil
		}
		if m.paused {
			return m, tickCmd()
		}
		return m, tea.Batch(sampleMemStatsCmd(), sampleSysStatsCmd(), tickCmd())

	case MemStatsMsg:
		m.metrics.UpdateMemStats(msg)
		return m, nil

	case SysStatsMsg:
		m.metrics.UpdateSysStats(msg)
		return m, nil

	case ContextCancelledMsg:
		m.header.SetDone()
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Pause):
		m.paused = !m.paused
		m.footer.SetPaused(m.paused)
	case key.Matches(msg, m.keymap.Up):
		m.workers.Scroll(1)
	case key.Matches(msg, m.keymap.Down):
		m.workers.Scroll(-1)
	case key.Matches(msg, m.keymap.PageUp):
		m.workers.Scroll(m.workers.logHeight())
	case key.Matches(msg, m.keymap.PageDown):
		m.workers.Scroll(-m.workers.logHeight())
	}
	return m, nil
}

// View renders the entire dashboard.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.workers.View(), m.metrics.View())
	return lipgloss.JoinVertical(lipgloss.Left, m.header.View(), body, m.footer.View())
}

func (m *Model) layoutPanels() {
	m.header.SetWidth(m.width)
	m.footer.SetWidth(m.width)
	m.workers.SetSize(m.workersWidth(), m.bodyHeight())
	m.metrics.SetSize(m.metricsWidth(), m.bodyHeight())
}

// Run executes plan with orch while showing the dashboard, and returns the
// orchestrator's exit code. The orchestrator's reporter, presenter and error
// handler are replaced by the dashboard bridge. Run returns only after the
// orchestrator did, so every spawned worker has been reaped.
func Run(ctx context.Context, orch *orchestration.Orchestrator, plan config.Plan, version string) int {
	// Rebuild styles from the current ui theme (set by the app via InitTheme).
	initTUIStyles()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ref := &programRef{}
	presenter := &TUIResultPresenter{ref: ref}
	orch.Progress = &TUIProgressReporter{ref: ref}
	orch.Presenter = presenter
	orch.Errors = presenter

	p := tea.NewProgram(NewModel(ctx, cancel, version), tea.WithAltScreen())
	// Inject the program reference before the orchestrator starts sending.
	ref.SetProgram(p)

	result := make(chan int, 1)
	go func() {
		code := orch.Execute(ctx, plan, io.Discard)
		ref.Send(PlanCompleteMsg{ExitCode: code})
		result <- code
	}()

	_, err := p.Run()
	cancel()
	code := <-result
	if err != nil && code == apperrors.ExitSuccess {
		return apperrors.ExitErrorGeneric
	}
	return code
}

// tickCmd returns a command that sends a TickMsg after sampleInterval.
func tickCmd() tea.Cmd {
	return tea.Tick(sampleInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// sampleMemStatsCmd reads runtime memory stats and returns a MemStatsMsg.
func sampleMemStatsCmd() tea.Cmd {
	return func() tea.Msg {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		threads, _ := runtime.ThreadCreateProfile(nil)
		return MemStatsMsg{
			HeapAlloc:    ms.HeapAlloc,
			HeapSys:      ms.HeapSys,
			NumGC:        ms.NumGC,
			PauseTotalNs: ms.PauseTotalNs,
			Goroutines:   runtime.NumGoroutine(),
			OSThreads:    threads,
		}
	}
}

// sampleSysStatsCmd reads system-wide CPU and memory stats and returns a SysStatsMsg.
func sampleSysStatsCmd() tea.Cmd {
	return func() tea.Msg {
		s := sysmon.Sample()
		return SysStatsMsg{CPUPercent: s.CPUPercent, MemPercent: s.MemPercent}
	}
}

// watchContextCmd waits for context cancellation and sends a message.
func watchContextCmd(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		<-ctx.Done()
		return ContextCancelledMsg{Err: ctx.Err()}
	}
}
