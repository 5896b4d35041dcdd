package orchestration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windmix/fanbench/internal/config"
	apperrors "github.com/windmix/fanbench/internal/errors"
	"github.com/windmix/fanbench/internal/fanout"
	"github.com/windmix/fanbench/internal/metrics"
)

type fakeRunner struct {
	model fanout.Model
	opts  fanout.Options
	agg   *fanout.Aggregate
	err   error
	calls *[]string
}

func (f *fakeRunner) Run(_ context.Context, count int) (*fanout.Aggregate, error) {
	*f.calls = append(*f.calls, fmt.Sprintf("%s:%d", f.model, count))
	if f.err != nil {
		return nil, f.err
	}
	for _, item := range f.agg.Items {
		f.opts.Observer.WorkerFinished(f.model, item)
		f.opts.Recorder.WorkerDone(string(f.model), item.Duration, item.Abnormal)
	}
	f.opts.Recorder.RunDone(string(f.model), count, f.agg.Elapsed)
	return f.agg, nil
}

type recordingPresenter struct {
	infos   []InfoReport
	reports []RunReport
}

func (p *recordingPresenter) PresentInfo(info InfoReport, out io.Writer) {
	p.infos = append(p.infos, info)
	fmt.Fprintln(out, "info")
}

func (p *recordingPresenter) PresentRun(report RunReport, _ PresentationOptions, out io.Writer) {
	p.reports = append(p.reports, report)
	fmt.Fprintf(out, "run %s\n", report.Aggregate.Model)
}

type codeHandler struct{ errs []error }

func (h *codeHandler) HandleError(err error, _ time.Duration, _ io.Writer) int {
	h.errs = append(h.errs, err)
	return apperrors.ExitCodeFor(err)
}

type countingProgress struct {
	NullProgressReporter
	mu       sync.Mutex
	begins   []fanout.Model
	ends     int
	finished int
}

func (c *countingProgress) Begin(model fanout.Model, _ int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.begins = append(c.begins, model)
}

func (c *countingProgress) End() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ends++
}

func (c *countingProgress) WorkerFinished(fanout.Model, fanout.WorkItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finished++
}

func threadAggregate(results ...uint64) *fanout.Aggregate {
	agg := &fanout.Aggregate{RunID: "t", Model: fanout.ModelThread, Count: len(results), WorkloadKnown: true}
	for i, r := range results {
		agg.Items = append(agg.Items, fanout.WorkItem{Index: i, WorkloadResult: r, Duration: time.Millisecond})
		agg.WorkloadSum += r
	}
	return agg
}

func processAggregate() *fanout.Aggregate {
	return &fanout.Aggregate{
		RunID: "p", Model: fanout.ModelProcess, Count: 2, IdentitySum: 3,
		Items: []fanout.WorkItem{
			{Index: 0, Contribution: 1, Duration: 2 * time.Millisecond},
			{Index: 1, Contribution: 2, Duration: 4 * time.Millisecond},
		},
	}
}

type harness struct {
	orch      *Orchestrator
	presenter *recordingPresenter
	errs      *codeHandler
	progress  *countingProgress
	calls     []string
}

func newHarness(results map[fanout.Model]*fakeRunner) *harness {
	h := &harness{presenter: &recordingPresenter{}, errs: &codeHandler{}, progress: &countingProgress{}}
	h.orch = &Orchestrator{
		Factory: func(model fanout.Model, opts fanout.Options) Runner {
			r := results[model]
			r.model, r.opts, r.calls = model, opts, &h.calls
			return r
		},
		Progress:  h.progress,
		Presenter: h.presenter,
		Errors:    h.errs,
		Info: func(context.Context) InfoReport {
			return InfoReport{DefaultWorkers: 4, WordSize: 64}
		},
	}
	return h
}

func TestExecute_RunsPlanInOrder(t *testing.T) {
	t.Parallel()
	h := newHarness(map[fanout.Model]*fakeRunner{
		fanout.ModelProcess: {agg: processAggregate()},
		fanout.ModelThread:  {agg: threadAggregate(258, 258, 258)},
	})
	var out bytes.Buffer

	code := h.orch.Execute(context.Background(), config.Plan{Info: true, Processes: 2, Threads: 3}, &out)

	assert.Equal(t, apperrors.ExitSuccess, code)
	assert.Equal(t, "info\nrun process\nrun thread\n", out.String())
	assert.Equal(t, []string{"process:2", "thread:3"}, h.calls)
	assert.Equal(t, []fanout.Model{fanout.ModelProcess, fanout.ModelThread}, h.progress.begins)
	assert.Equal(t, 2, h.progress.ends)
	assert.Equal(t, 5, h.progress.finished)
	require.Len(t, h.presenter.reports, 2)

	proc := h.presenter.reports[0]
	assert.Empty(t, proc.Strategy)
	assert.Nil(t, proc.Memory)
	assert.True(t, proc.Consistent)
	assert.Equal(t, int64(2), proc.Latency.Count)

	thr := h.presenter.reports[1]
	assert.Equal(t, fanout.StrategyCollected, thr.Strategy)
	assert.NotNil(t, thr.Memory)
	assert.True(t, thr.Consistent)
	assert.Empty(t, h.errs.errs)
}

func TestExecute_FactoryRunnersGetObserverAndRecorder(t *testing.T) {
	t.Parallel()
	var seen []fanout.Options
	orch := &Orchestrator{
		Factory: func(model fanout.Model, opts fanout.Options) Runner {
			seen = append(seen, opts)
			agg := processAggregate()
			if model == fanout.ModelThread {
				agg = threadAggregate(258)
			}
			return &fakeRunner{model: model, opts: opts, agg: agg, calls: new([]string)}
		},
		Presenter: &recordingPresenter{},
		Errors:    &codeHandler{},
	}

	code := orch.Execute(context.Background(), config.Plan{Processes: 2, Threads: 1}, io.Discard)

	assert.Equal(t, apperrors.ExitSuccess, code)
	require.Len(t, seen, 2)
	for _, opts := range seen {
		assert.NotNil(t, opts.Observer)
		assert.NotNil(t, opts.Recorder)
		assert.NotNil(t, opts.Logger)
	}
}

func TestExecute_InfoOnly(t *testing.T) {
	t.Parallel()
	h := newHarness(nil)
	var out bytes.Buffer
	code := h.orch.Execute(context.Background(), config.Plan{Info: true}, &out)
	assert.Equal(t, apperrors.ExitSuccess, code)
	require.Len(t, h.presenter.infos, 1)
	assert.Equal(t, 4, h.presenter.infos[0].DefaultWorkers)
	assert.Empty(t, h.calls)
}

func TestExecute_FailedRunStopsPlan(t *testing.T) {
	t.Parallel()
	spawnErr := apperrors.SpawnError{Model: "process", Index: 1, Cause: errors.New("EAGAIN")}
	h := newHarness(map[fanout.Model]*fakeRunner{
		fanout.ModelProcess: {err: spawnErr},
		fanout.ModelThread:  {agg: threadAggregate(1)},
	})
	var out bytes.Buffer

	code := h.orch.Execute(context.Background(), config.Plan{Processes: 3, Threads: 2}, &out)

	assert.Equal(t, apperrors.ExitErrorSpawn, code)
	assert.Equal(t, []string{"process:3"}, h.calls, "thread run skipped")
	assert.Empty(t, h.presenter.reports)
	assert.Equal(t, 1, h.progress.ends, "progress closed after a failure")
	require.Len(t, h.errs.errs, 1)
	assert.ErrorIs(t, h.errs.errs[0], apperrors.ErrSpawnFailure)
}

func TestExecute_InconsistentWorkload(t *testing.T) {
	t.Parallel()
	h := newHarness(map[fanout.Model]*fakeRunner{
		fanout.ModelThread: {agg: threadAggregate(258, 257)},
	})
	var out bytes.Buffer

	code := h.orch.Execute(context.Background(), config.Plan{Threads: 2}, &out)

	assert.Equal(t, apperrors.ExitErrorMismatch, code)
	require.Len(t, h.presenter.reports, 1, "summary still presented")
	assert.False(t, h.presenter.reports[0].Consistent)
	require.Len(t, h.errs.errs, 1)
	assert.ErrorIs(t, h.errs.errs[0], apperrors.ErrInconsistentResults)
}

func TestExecute_TimeoutExitCode(t *testing.T) {
	t.Parallel()
	h := newHarness(map[fanout.Model]*fakeRunner{
		fanout.ModelProcess: {err: apperrors.TimeoutError{Operation: "process fan-out", Limit: time.Second}},
	})
	code := h.orch.Execute(context.Background(), config.Plan{Processes: 1}, io.Discard)
	assert.Equal(t, apperrors.ExitErrorTimeout, code)
}

func TestExecute_WritesMetricsFile(t *testing.T) {
	t.Parallel()
	h := newHarness(map[fanout.Model]*fakeRunner{
		fanout.ModelThread: {agg: threadAggregate(5, 5)},
	})
	h.orch.Recorder = metrics.NewRecorder()
	h.orch.MetricsFile = filepath.Join(t.TempDir(), "run.prom")

	code := h.orch.Execute(context.Background(), config.Plan{Threads: 2}, io.Discard)

	require.Equal(t, apperrors.ExitSuccess, code)
	assert.FileExists(t, h.orch.MetricsFile)
	assert.Equal(t, int64(2), h.orch.Recorder.Latency("thread").Count)
}

func TestExecute_MetricsFileError(t *testing.T) {
	t.Parallel()
	h := newHarness(map[fanout.Model]*fakeRunner{
		fanout.ModelThread: {agg: threadAggregate(5)},
	})
	h.orch.Recorder = metrics.NewRecorder()
	h.orch.MetricsFile = filepath.Join(t.TempDir(), "missing", "dir", "run.prom")

	code := h.orch.Execute(context.Background(), config.Plan{Threads: 1}, io.Discard)
	assert.Equal(t, apperrors.ExitErrorGeneric, code)
}

func TestConsistent(t *testing.T) {
	t.Parallel()
	assert.True(t, Consistent(processAggregate()), "unknown workload values")
	assert.True(t, Consistent(threadAggregate(7, 7, 7)))
	assert.False(t, Consistent(threadAggregate(7, 8, 7)))
	assert.True(t, Consistent(&fanout.Aggregate{WorkloadKnown: true}))
}

func TestDefaultRunnerFactory(t *testing.T) {
	t.Parallel()
	factory := DefaultRunnerFactory("", false, io.Discard)
	assert.IsType(t, &fanout.ProcessRunner{}, factory(fanout.ModelProcess, fanout.Options{}))
	assert.IsType(t, &fanout.ThreadRunner{}, factory(fanout.ModelThread, fanout.Options{}))
}

func TestDefaultRunnerFactory_ThreadRun(t *testing.T) {
	t.Parallel()
	factory := DefaultRunnerFactory(fanout.StrategyLocked, false, io.Discard)
	agg, err := factory(fanout.ModelThread, fanout.Options{Bound: 10}).Run(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(3*258), agg.WorkloadSum)
	assert.True(t, Consistent(agg))
}
