// Package cli renders run progress and summaries for the terminal and as
// JSON or YAML documents.
package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	apperrors "github.com/windmix/fanbench/internal/errors"
	"github.com/windmix/fanbench/internal/fanout"
	"github.com/windmix/fanbench/internal/format"
	"github.com/windmix/fanbench/internal/orchestration"
	"github.com/windmix/fanbench/internal/ui"
)

const bytesPerMB = 1024 * 1024

// CLIResultPresenter implements orchestration.ResultPresenter for plain text
// output.
type CLIResultPresenter struct{}

// Verify interface compliance.
var (
	_ orchestration.ResultPresenter = CLIResultPresenter{}
	_ orchestration.ErrorHandler    = CLIResultPresenter{}
)

// PresentInfo prints the system information report.
func (CLIResultPresenter) PresentInfo(info orchestration.InfoReport, out io.Writer) {
	h := info.Host
	fmt.Fprintf(out, "Number of processors: %s%d%s\n", ui.ColorBlue(), h.LogicalCPUs, ui.ColorReset())
	fmt.Fprintf(out, "Hostname: %s\n", h.Hostname)
	fmt.Fprintf(out, "Hardware platform: %s\n", h.Machine)
	fmt.Fprintf(out, "Total memory: %d MB\n", h.TotalMemory/bytesPerMB)
	if h.Platform != "" {
		fmt.Fprintf(out, "Operating system: %s (%s)\n", h.OS, h.Platform)
	} else {
		fmt.Fprintf(out, "Operating system: %s\n", h.OS)
	}
	if h.KernelVersion != "" {
		fmt.Fprintf(out, "Kernel version: %s\n", h.KernelVersion)
	}
	if h.CPUModel != "" {
		fmt.Fprintf(out, "CPU model: %s\n", h.CPUModel)
	}
	if h.PhysicalCores > 0 {
		fmt.Fprintf(out, "Physical cores: %d\n", h.PhysicalCores)
	}
	fmt.Fprintf(out, "Default worker count: %d (%d-bit)\n", info.DefaultWorkers, info.WordSize)
}

// PresentRun prints the summary of one run.
func (CLIResultPresenter) PresentRun(report orchestration.RunReport, opts orchestration.PresentationOptions, out io.Writer) {
	agg := report.Aggregate
	if opts.Details {
		DisplayWorkerTable(agg, out)
	}
	switch agg.Model {
	case fanout.ModelProcess:
		fmt.Fprintf(out, "Total PID sum: %s%d%s\n", ui.ColorGreen(), agg.IdentitySum, ui.ColorReset())
	default:
		fmt.Fprintf(out, "Total Thread ID sum: %s%d%s\n", ui.ColorGreen(), agg.IdentitySum, ui.ColorReset())
	}
	fmt.Fprintf(out, "Time taken: %s\n", formatSecondsLong(agg.Elapsed))
	if agg.WorkloadKnown {
		fmt.Fprintf(out, "Combined math sum: %d\n", agg.WorkloadSum)
	}
	if agg.Abnormal > 0 {
		fmt.Fprintf(out, "%sAbnormal workers: %d of %d contributed nothing%s\n",
			ui.ColorYellow(), agg.Abnormal, agg.Count, ui.ColorReset())
	}
	if !report.Consistent {
		fmt.Fprintf(out, "%sWorkers disagree on the math sum.%s\n", ui.ColorRed(), ui.ColorReset())
	}
	if opts.Verbose {
		displayVerbose(report, out)
	}
}

// HandleError handles run errors and returns an appropriate exit code.
func (CLIResultPresenter) HandleError(err error, duration time.Duration, out io.Writer) int {
	return apperrors.HandleRunError(err, duration, out, CLIColorProvider{})
}

// DisplayWorkerTable renders one row per worker.
func DisplayWorkerTable(agg *fanout.Aggregate, out io.Writer) {
	identity := "PID"
	if agg.Model == fanout.ModelThread {
		identity = "TID"
	}
	table := tablewriter.NewWriter(out)
	table.Header("Worker", identity, "Contribution", "Math sum", "Duration", "CPU time", "Status")
	for _, item := range agg.Items {
		mathSum := "-"
		if agg.WorkloadKnown {
			mathSum = strconv.FormatUint(item.WorkloadResult, 10)
		}
		status := "ok"
		if item.Abnormal {
			status = item.Signal
		}
		_ = table.Append(
			strconv.Itoa(item.Index),
			strconv.FormatUint(item.Identity, 10),
			strconv.FormatUint(item.Contribution, 10),
			mathSum,
			format.FormatExecutionDuration(item.Duration),
			format.FormatExecutionDuration(item.CPUTime),
			status,
		)
	}
	_ = table.Render()
}

func displayVerbose(report orchestration.RunReport, out io.Writer) {
	agg := report.Aggregate
	lat := report.Latency
	fmt.Fprintf(out, "Run ID: %s\n", agg.RunID)
	if report.Strategy != "" {
		fmt.Fprintf(out, "Strategy: %s\n", report.Strategy)
	}
	fmt.Fprintf(out, "Worker time: min %s, mean %s, p50 %s, p90 %s, p99 %s, max %s\n",
		format.FormatExecutionDuration(lat.Min),
		format.FormatExecutionDuration(lat.Mean),
		format.FormatExecutionDuration(lat.P50),
		format.FormatExecutionDuration(lat.P90),
		format.FormatExecutionDuration(lat.P99),
		format.FormatExecutionDuration(lat.Max))
	if m := report.Memory; m != nil {
		fmt.Fprintf(out, "Memory: peak heap %s, %d GC cycles (%s paused), %d OS threads created\n",
			format.FormatBytes(m.PeakHeapAlloc), m.GCCycles,
			format.FormatExecutionDuration(time.Duration(m.GCPause)), m.ThreadsCreated)
	}
}

func formatSecondsLong(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 6, 64) + " seconds"
}
