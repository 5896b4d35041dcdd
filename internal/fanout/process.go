package fanout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/windmix/fanbench/internal/errors"
	"github.com/windmix/fanbench/internal/logging"
)

// ProcessRunner runs the process model: it spawns N children, reaps every one
// of them and sums the identity values recovered from their exit statuses.
type ProcessRunner struct {
	spawner Spawner
	opts    Options
}

// NewProcessRunner returns a runner using spawner to start children.
func NewProcessRunner(spawner Spawner, opts Options) *ProcessRunner {
	return &ProcessRunner{spawner: spawner, opts: opts.withDefaults()}
}

// RunProcesses spawns count children of the current binary and returns their
// aggregate.
func RunProcesses(ctx context.Context, count int, opts Options) (*Aggregate, error) {
	opts = opts.withDefaults()
	return NewProcessRunner(NewExecSpawner(opts.Bound), opts).Run(ctx, count)
}

type reaped struct {
	index   int
	outcome ExitOutcome
	err     error
}

// Run spawns count children, waits for all of them and aggregates the decoded
// exit statuses. An abnormally terminated child contributes zero and is
// counted in Aggregate.Abnormal.
//
// If a spawn fails, the children already started are killed and reaped and a
// SpawnError is returned with no aggregate. If the context ends or the
// configured timeout expires, remaining children are killed and reaped before
// Run returns.
func (r *ProcessRunner) Run(ctx context.Context, count int) (*Aggregate, error) {
	opts := r.opts
	if err := ValidateCount(count, opts.MaxWorkers); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "fanout.processes",
		trace.WithAttributes(attribute.Int("fanout.count", count)))
	defer span.End()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	handles := make([]WorkerHandle, 0, count)
	pacer := newLaunchPacer(opts.SpawnRate)
	for i := range count {
		if err := pacer.Wait(ctx); err != nil {
			r.abort(handles)
			return nil, r.interrupted(ctx, span, err)
		}
		h, err := r.spawner.Spawn(ctx, i)
		if err != nil {
			r.abort(handles)
			if ctx.Err() != nil {
				return nil, r.interrupted(ctx, span, ctx.Err())
			}
			opts.Recorder.SpawnFailed(string(ModelProcess))
			spawnErr := apperrors.SpawnError{Model: string(ModelProcess), Index: i, Cause: err}
			opts.Logger.Error("spawn failed", err,
				logging.Int("index", i), logging.Int("started", len(handles)))
			span.RecordError(spawnErr)
			span.SetStatus(codes.Error, "spawn failed")
			return nil, spawnErr
		}
		handles = append(handles, h)
		opts.Observer.WorkerStarted(ModelProcess, i, uint64(h.Pid()))
		opts.Logger.Debug("child started", logging.Int("index", i), logging.Int("pid", h.Pid()))
	}

	items, err := r.reap(ctx, handles)
	if err != nil {
		return nil, r.interrupted(ctx, span, err)
	}

	agg := &Aggregate{
		RunID: uuid.NewString(),
		Model: ModelProcess,
		Count: count,
		Bound: opts.Bound,
		Items: items,
	}
	for _, item := range items {
		agg.IdentitySum += item.Contribution
		if item.Abnormal {
			agg.Abnormal++
		}
	}
	agg.Elapsed = time.Since(start)
	opts.Recorder.RunDone(string(ModelProcess), count, agg.Elapsed)
	span.SetAttributes(
		attribute.Int64("fanout.identity_sum", int64(agg.IdentitySum)),
		attribute.Int("fanout.abnormal", agg.Abnormal),
	)
	return agg, nil
}

// reap waits on every handle exactly once. When ctx ends first, the children
// still running are killed and reaping continues until all are collected, so
// no child outlives the call.
func (r *ProcessRunner) reap(ctx context.Context, handles []WorkerHandle) ([]WorkItem, error) {
	results := make(chan reaped, len(handles))
	var g errgroup.Group
	for i, h := range handles {
		g.Go(func() error {
			out, err := h.Wait()
			results <- reaped{index: i, outcome: out, err: err}
			return nil
		})
	}

	items := make([]WorkItem, len(handles))
	done := make([]bool, len(handles))
	ctxDone := ctx.Done()
	var ctxErr error
	for remaining := len(handles); remaining > 0; {
		select {
		case res := <-results:
			remaining--
			done[res.index] = true
			items[res.index] = r.decode(res, handles[res.index])
			r.opts.Observer.WorkerFinished(ModelProcess, items[res.index])
		case <-ctxDone:
			ctxErr = ctx.Err()
			ctxDone = nil
			killed := 0
			for i, h := range handles {
				if done[i] {
					continue
				}
				if err := h.Kill(); err != nil {
					r.opts.Logger.Error("kill failed", err, logging.Int("pid", h.Pid()))
				}
				killed++
			}
			r.opts.Logger.Warn("killing stragglers", logging.Int("count", killed), logging.Err(ctxErr))
		}
	}
	_ = g.Wait()
	return items, ctxErr
}

func (r *ProcessRunner) decode(res reaped, h WorkerHandle) WorkItem {
	pid := res.outcome.Pid
	if pid == 0 {
		pid = h.Pid()
	}
	item := WorkItem{
		Index:    res.index,
		Identity: uint64(pid),
		Duration: res.outcome.Duration,
		CPUTime:  res.outcome.CPUTime,
	}
	switch {
	case res.err != nil && !res.outcome.Exited && res.outcome.Signal == "":
		item.Abnormal = true
		item.Err = apperrors.WrapError(res.err, "waiting for pid %d", pid)
		r.opts.Logger.Error("wait failed", res.err, logging.Int("pid", pid))
	case !res.outcome.Exited:
		item.Abnormal = true
		item.Signal = res.outcome.Signal
		item.Err = apperrors.AbnormalTerminationError{Pid: pid, Signal: res.outcome.Signal}
		r.opts.Logger.Warn("child terminated abnormally",
			logging.Int("pid", pid), logging.String("signal", res.outcome.Signal))
	default:
		item.Contribution = uint64(res.outcome.Code)
		if res.err != nil {
			r.opts.Logger.Warn("child output incomplete", logging.Int("pid", pid), logging.Err(res.err))
		}
	}
	r.opts.Recorder.WorkerDone(string(ModelProcess), item.Duration, item.Abnormal)
	return item
}

// abort kills and reaps children started before a failed launch.
func (r *ProcessRunner) abort(handles []WorkerHandle) {
	for _, h := range handles {
		if err := h.Kill(); err != nil {
			r.opts.Logger.Error("kill failed", err, logging.Int("pid", h.Pid()))
		}
	}
	for _, h := range handles {
		if _, err := h.Wait(); err != nil {
			r.opts.Logger.Debug("reaping aborted child", logging.Int("pid", h.Pid()), logging.Err(err))
		}
	}
	if len(handles) > 0 {
		r.opts.Logger.Warn("aborted run, started children killed and reaped", logging.Int("count", len(handles)))
	}
}

func (r *ProcessRunner) interrupted(ctx context.Context, span trace.Span, err error) error {
	span.RecordError(err)
	switch {
	case errors.Is(err, context.DeadlineExceeded) && r.opts.Timeout > 0:
		span.SetStatus(codes.Error, "timeout")
		return apperrors.TimeoutError{Operation: "process fan-out", Limit: r.opts.Timeout}
	case ctx.Err() != nil:
		span.SetStatus(codes.Error, "canceled")
		return ctx.Err()
	default:
		span.SetStatus(codes.Error, err.Error())
		return err
	}
}
