package tui

import (
	"time"

	"github.com/windmix/fanbench/internal/fanout"
	"github.com/windmix/fanbench/internal/orchestration"
)

// RunBeganMsg announces a run of Total workers.
type RunBeganMsg struct {
	Model fanout.Model
	Total int
}

// WorkerStartedMsg reports a launched worker.
type WorkerStartedMsg struct {
	Model    fanout.Model
	Index    int
	Identity uint64
}

// WorkerFinishedMsg reports a finished worker and the run's progress after it.
type WorkerFinishedMsg struct {
	Progress orchestration.AggregatedProgress
}

// RunEndedMsg closes the current run, whatever its outcome.
type RunEndedMsg struct{}

// InfoMsg carries the system information report.
type InfoMsg struct {
	Info orchestration.InfoReport
}

// RunReportMsg carries the summary of a finished run.
type RunReportMsg struct {
	Report orchestration.RunReport
}

// ErrorMsg carries a run failure.
type ErrorMsg struct {
	Err      error
	Duration time.Duration
}

// PlanCompleteMsg is sent once the orchestrator returned.
type PlanCompleteMsg struct {
	ExitCode int
}

// TickMsg drives periodic sampling.
type TickMsg time.Time

// MemStatsMsg carries a runtime memory sample.
type MemStatsMsg struct {
	HeapAlloc    uint64
	HeapSys      uint64
	NumGC        uint32
	PauseTotalNs uint64
	Goroutines   int
	OSThreads    int
}

// SysStatsMsg carries a system-wide CPU and memory sample.
type SysStatsMsg struct {
	CPUPercent float64
	MemPercent float64
}

// ContextCancelledMsg reports that the parent context ended.
type ContextCancelledMsg struct {
	Err error
}
