package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/windmix/fanbench/internal/errors"
	"github.com/windmix/fanbench/internal/fanout"
	"github.com/windmix/fanbench/internal/metrics"
	"github.com/windmix/fanbench/internal/orchestration"
	"github.com/windmix/fanbench/internal/sysmon"
)

func sampleThreadReport() orchestration.RunReport {
	agg := &fanout.Aggregate{
		RunID: "run-1", Model: fanout.ModelThread, Count: 2, Bound: 10,
		IdentitySum: 300, WorkloadSum: 516, WorkloadKnown: true,
		Elapsed: 1500 * time.Millisecond,
		Items: []fanout.WorkItem{
			{Index: 0, Identity: 77, Contribution: 100, WorkloadResult: 258, Duration: 2 * time.Millisecond},
			{Index: 1, Identity: 78, Contribution: 200, WorkloadResult: 258, Duration: 3 * time.Millisecond},
		},
	}
	report := orchestration.BuildReport(agg)
	report.Strategy = fanout.StrategyLocked
	report.Memory = &metrics.MemoryDelta{PeakHeapAlloc: 2048, GCCycles: 1, ThreadsCreated: 2}
	return report
}

func sampleProcessReport() orchestration.RunReport {
	agg := &fanout.Aggregate{
		RunID: "run-2", Model: fanout.ModelProcess, Count: 3, IdentitySum: 42, Abnormal: 1,
		Elapsed: 250 * time.Millisecond,
		Items: []fanout.WorkItem{
			{Index: 0, Identity: 1000, Contribution: 232},
			{Index: 1, Identity: 1001, Abnormal: true, Signal: "SIGKILL"},
			{Index: 2, Identity: 1002, Contribution: 234},
		},
	}
	return orchestration.BuildReport(agg)
}

func TestCLIResultPresenter_PresentInfo(t *testing.T) {
	noColor(t)
	var out bytes.Buffer
	CLIResultPresenter{}.PresentInfo(orchestration.InfoReport{
		Host: sysmon.HostInfo{
			Hostname: "bench-01", OS: "linux", Platform: "ubuntu", Machine: "x86_64",
			LogicalCPUs: 8, PhysicalCores: 4, CPUModel: "Test CPU", TotalMemory: 16 * 1024 * 1024 * 1024,
			KernelVersion: "6.1.0",
		},
		DefaultWorkers: 8,
		WordSize:       64,
	}, &out)

	got := out.String()
	for _, want := range []string{
		"Number of processors: 8\n",
		"Hostname: bench-01\n",
		"Hardware platform: x86_64\n",
		"Total memory: 16384 MB\n",
		"Operating system: linux (ubuntu)\n",
		"Kernel version: 6.1.0\n",
		"CPU model: Test CPU\n",
		"Physical cores: 4\n",
		"Default worker count: 8 (64-bit)\n",
	} {
		assert.Contains(t, got, want)
	}
}

func TestCLIResultPresenter_PresentRun(t *testing.T) {
	noColor(t)
	tests := []struct {
		name     string
		report   orchestration.RunReport
		opts     orchestration.PresentationOptions
		contains []string
		excludes []string
	}{
		{
			name:   "thread summary",
			report: sampleThreadReport(),
			contains: []string{
				"Total Thread ID sum: 300\n",
				"Time taken: 1.500000 seconds\n",
				"Combined math sum: 516\n",
			},
			excludes: []string{"Run ID", "TID", "PID sum"},
		},
		{
			name:   "process summary with abnormal child",
			report: sampleProcessReport(),
			contains: []string{
				"Total PID sum: 42\n",
				"Time taken: 0.250000 seconds\n",
				"Abnormal workers: 1 of 3 contributed nothing",
			},
			excludes: []string{"Combined math sum"},
		},
		{
			name:     "details table",
			report:   sampleProcessReport(),
			opts:     orchestration.PresentationOptions{Details: true},
			contains: []string{"PID", "CONTRIBUTION", "SIGKILL", "1001"},
		},
		{
			name:   "verbose statistics",
			report: sampleThreadReport(),
			opts:   orchestration.PresentationOptions{Verbose: true},
			contains: []string{
				"Run ID: run-1\n",
				"Strategy: locked\n",
				"Worker time: min",
				"Memory: peak heap 2.0 KiB, 1 GC cycles",
				"2 OS threads created",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			CLIResultPresenter{}.PresentRun(tt.report, tt.opts, &out)
			for _, want := range tt.contains {
				if tt.opts.Details {
					assert.Contains(t, strings.ToUpper(out.String()), strings.ToUpper(want))
					continue
				}
				assert.Contains(t, out.String(), want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, out.String(), unwanted)
			}
		})
	}
}

func TestCLIResultPresenter_Inconsistent(t *testing.T) {
	noColor(t)
	report := sampleThreadReport()
	report.Aggregate.Items[1].WorkloadResult = 1
	report.Consistent = orchestration.Consistent(report.Aggregate)

	var out bytes.Buffer
	CLIResultPresenter{}.PresentRun(report, orchestration.PresentationOptions{}, &out)
	assert.Contains(t, out.String(), "Workers disagree on the math sum.")
}

func TestCLIResultPresenter_HandleError(t *testing.T) {
	noColor(t)
	tests := []struct {
		name string
		err  error
		code int
		text string
	}{
		{"nil", nil, apperrors.ExitSuccess, ""},
		{"spawn", apperrors.SpawnError{Model: "thread", Index: 3, Cause: errors.New("EAGAIN")}, apperrors.ExitErrorSpawn, "could not create thread worker 3"},
		{"invalid", apperrors.ValidationError{Field: "count", Message: "Invalid count: x"}, apperrors.ExitErrorConfig, "Invalid count: x"},
		{"timeout", apperrors.TimeoutError{Operation: "process fan-out", Limit: time.Second}, apperrors.ExitErrorTimeout, "Run timed out"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			code := CLIResultPresenter{}.HandleError(tt.err, time.Second, &out)
			assert.Equal(t, tt.code, code)
			if tt.text == "" {
				assert.Empty(t, out.String())
				return
			}
			assert.Contains(t, out.String(), tt.text)
		})
	}
}
