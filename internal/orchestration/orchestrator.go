package orchestration

import (
	"context"
	"io"
	"time"

	"github.com/windmix/fanbench/internal/config"
	apperrors "github.com/windmix/fanbench/internal/errors"
	"github.com/windmix/fanbench/internal/fanout"
	"github.com/windmix/fanbench/internal/logging"
	"github.com/windmix/fanbench/internal/metrics"
	"github.com/windmix/fanbench/internal/sysmon"
)

// Orchestrator executes a resolved plan: the information report first, then
// the process run, then the thread run. The first failing run stops the plan.
type Orchestrator struct {
	// Factory builds the runner of each model. Nil means DefaultRunnerFactory
	// with the collected strategy and output to the orchestrator's writer.
	Factory RunnerFactory
	// Options are the base runner options. Observer and Recorder are
	// overwritten per run.
	Options      fanout.Options
	Strategy     fanout.Strategy
	Progress     ProgressReporter
	Presenter    ResultPresenter
	Errors       ErrorHandler
	Presentation PresentationOptions
	// Recorder, when set, receives worker statistics and is written to
	// MetricsFile once the plan is done.
	Recorder    *metrics.Recorder
	MetricsFile string
	Logger      logging.Logger
	// Info gathers the information report. Nil means CollectInfo.
	Info func(ctx context.Context) InfoReport
}

// CollectInfo gathers the host description and the worker defaults.
func CollectInfo(ctx context.Context) InfoReport {
	return InfoReport{
		Host:           sysmon.CollectHostInfo(ctx),
		DefaultWorkers: config.EstimateDefaultWorkers(),
		WordSize:       config.WordSize(),
	}
}

// Execute runs the plan and returns the exit code of the first failure, or
// ExitSuccess.
func (o *Orchestrator) Execute(ctx context.Context, plan config.Plan, out io.Writer) int {
	logger := o.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	code := o.execute(ctx, plan, out, logger)
	if o.Recorder != nil && o.MetricsFile != "" {
		if err := o.Recorder.WriteTextfile(o.MetricsFile); err != nil {
			logger.Error("writing metrics file", err, logging.String("path", o.MetricsFile))
			if code == apperrors.ExitSuccess {
				code = o.Errors.HandleError(apperrors.WrapError(err, "writing metrics file"), 0, out)
			}
		}
	}
	return code
}

func (o *Orchestrator) execute(ctx context.Context, plan config.Plan, out io.Writer, logger logging.Logger) int {
	if plan.Info {
		collect := o.Info
		if collect == nil {
			collect = CollectInfo
		}
		o.Presenter.PresentInfo(collect(ctx), out)
	}
	if plan.Processes > 0 {
		if code := o.run(ctx, fanout.ModelProcess, plan.Processes, out, logger); code != apperrors.ExitSuccess {
			return code
		}
	}
	if plan.Threads > 0 {
		if code := o.run(ctx, fanout.ModelThread, plan.Threads, out, logger); code != apperrors.ExitSuccess {
			return code
		}
	}
	return apperrors.ExitSuccess
}

func (o *Orchestrator) run(ctx context.Context, model fanout.Model, count int, out io.Writer, logger logging.Logger) int {
	progress := o.Progress
	if progress == nil {
		progress = NullProgressReporter{}
	}
	opts := o.Options
	opts.Logger = logger
	opts.Observer = progress
	opts.Recorder = fanout.NopRecorder{}
	if o.Recorder != nil {
		opts.Recorder = o.Recorder
	}
	factory := o.Factory
	if factory == nil {
		factory = DefaultRunnerFactory(o.Strategy, false, out)
	}
	runner := factory(model, opts)

	logger.Debug("run starting", logging.String("model", string(model)), logging.Int("count", count))
	collector := metrics.NewMemoryCollector()
	before := collector.Snapshot()
	start := time.Now()
	progress.Begin(model, count)
	agg, err := runner.Run(ctx, count)
	progress.End()
	if err != nil {
		return o.Errors.HandleError(err, time.Since(start), out)
	}

	report := BuildReport(agg)
	if model == fanout.ModelThread {
		report.Strategy = o.Strategy
		if report.Strategy == "" {
			report.Strategy = fanout.StrategyCollected
		}
		delta := metrics.Delta(before, collector.Snapshot())
		report.Memory = &delta
	}
	o.Presenter.PresentRun(report, o.Presentation, out)
	logger.Info("run finished",
		logging.String("model", string(model)),
		logging.String("run_id", agg.RunID),
		logging.Int("count", agg.Count),
		logging.Int("abnormal", agg.Abnormal),
		logging.Duration("elapsed", agg.Elapsed))

	if !report.Consistent {
		err := apperrors.WrapError(apperrors.ErrInconsistentResults, "%s run %s", model, agg.RunID)
		return o.Errors.HandleError(err, agg.Elapsed, out)
	}
	return apperrors.ExitSuccess
}

// BuildReport derives the latency digest and the consistency verdict of an
// aggregate.
func BuildReport(agg *fanout.Aggregate) RunReport {
	durations := make([]time.Duration, 0, len(agg.Items))
	for _, item := range agg.Items {
		durations = append(durations, item.Duration)
	}
	return RunReport{
		Aggregate:  agg,
		Latency:    metrics.Summarize(durations),
		Consistent: Consistent(agg),
	}
}

// Consistent reports whether every worker of agg computed the same workload
// value. Aggregates without workload values are consistent.
func Consistent(agg *fanout.Aggregate) bool {
	if !agg.WorkloadKnown || len(agg.Items) == 0 {
		return true
	}
	first := agg.Items[0].WorkloadResult
	for _, item := range agg.Items[1:] {
		if item.WorkloadResult != first {
			return false
		}
	}
	return true
}

// DefaultRunnerFactory returns a factory building the real runners. Process
// children write their lines to childOut.
func DefaultRunnerFactory(strategy fanout.Strategy, pin bool, childOut io.Writer) RunnerFactory {
	if strategy == "" {
		strategy = fanout.StrategyCollected
	}
	return func(model fanout.Model, opts fanout.Options) Runner {
		if model == fanout.ModelProcess {
			spawner := fanout.NewExecSpawner(opts.Bound)
			spawner.Stdout = childOut
			return fanout.NewProcessRunner(spawner, opts)
		}
		return fanout.NewThreadRunner(opts, fanout.WithStrategy(strategy), fanout.WithPinning(pin))
	}
}
