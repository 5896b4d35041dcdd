package fanout

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/windmix/fanbench/internal/errors"
	"github.com/windmix/fanbench/internal/logging"
	"github.com/windmix/fanbench/internal/workload"
)

// Strategy selects how thread workers publish their results.
type Strategy string

const (
	// StrategyCollected gives each worker its own result slot and reduces the
	// slots after every worker has been joined. Workers share no lock.
	StrategyCollected Strategy = "collected"
	// StrategyLocked has every worker add to a shared Accumulator under a mutex.
	StrategyLocked Strategy = "locked"
)

// ParseStrategy validates a strategy name. The empty string selects
// StrategyCollected.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyCollected:
		return StrategyCollected, nil
	case StrategyLocked:
		return StrategyLocked, nil
	default:
		return "", apperrors.ValidationError{Field: "strategy", Message: fmt.Sprintf("unknown strategy %q (want collected or locked)", s)}
	}
}

// IdentityFunc returns the identity of the calling worker. It runs on the
// worker's own locked OS thread.
type IdentityFunc func(index int) uint64

// ThreadID returns the OS thread id of the caller where the platform exposes
// one, and a process-unique sequence number elsewhere.
func ThreadID(int) uint64 {
	return currentThreadID()
}

// Accumulator holds the shared totals of the locked strategy.
type Accumulator struct {
	mu          sync.Mutex
	identitySum uint64
	workloadSum uint64
}

// Add folds one worker's values into the totals.
func (a *Accumulator) Add(identityHash, workloadResult uint64) {
	a.mu.Lock()
	a.identitySum += identityHash
	a.workloadSum += workloadResult
	a.mu.Unlock()
}

// Totals returns the current sums.
func (a *Accumulator) Totals() (identitySum, workloadSum uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.identitySum, a.workloadSum
}

// ThreadRunner runs the thread model: N goroutines, each locked to an OS
// thread of its own, run the workload and hash their identity.
type ThreadRunner struct {
	opts     Options
	workload workload.Func
	identity IdentityFunc
	hash     HashFunc
	strategy Strategy
	pin      bool
}

// ThreadOption customizes a ThreadRunner.
type ThreadOption func(*ThreadRunner)

// WithWorkload replaces the workload every thread runs.
func WithWorkload(fn workload.Func) ThreadOption {
	return func(r *ThreadRunner) { r.workload = fn }
}

// WithIdentity replaces how a thread determines its identity.
func WithIdentity(fn IdentityFunc) ThreadOption {
	return func(r *ThreadRunner) { r.identity = fn }
}

// WithHash replaces the identity hash.
func WithHash(fn HashFunc) ThreadOption {
	return func(r *ThreadRunner) { r.hash = fn }
}

// WithStrategy selects the result publication strategy.
func WithStrategy(s Strategy) ThreadOption {
	return func(r *ThreadRunner) { r.strategy = s }
}

// WithPinning pins worker i to CPU i modulo the CPUs available, where the
// platform supports it.
func WithPinning(pin bool) ThreadOption {
	return func(r *ThreadRunner) { r.pin = pin }
}

// NewThreadRunner returns a thread runner with the defaults: the nested sqrt
// workload at opts.Bound, OS thread ids, FNV-1a hashing and the collected
// strategy.
func NewThreadRunner(opts Options, options ...ThreadOption) *ThreadRunner {
	opts = opts.withDefaults()
	r := &ThreadRunner{
		opts:     opts,
		workload: workload.WithBound(opts.Bound),
		identity: ThreadID,
		hash:     HashIdentity,
		strategy: StrategyCollected,
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// RunThreads runs count thread workers with the default settings.
func RunThreads(ctx context.Context, count int, opts Options, options ...ThreadOption) (*Aggregate, error) {
	return NewThreadRunner(opts, options...).Run(ctx, count)
}

// Run launches count workers, joins all of them and returns the identity hash
// sum and the workload sum. Every launched worker is joined before Run
// returns, including when ctx ends during launching; in that case no
// aggregate is returned.
func (r *ThreadRunner) Run(ctx context.Context, count int) (*Aggregate, error) {
	opts := r.opts
	if err := ValidateCount(count, opts.MaxWorkers); err != nil {
		return nil, err
	}
	if _, err := ParseStrategy(string(r.strategy)); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "fanout.threads", trace.WithAttributes(
		attribute.Int("fanout.count", count),
		attribute.String("fanout.strategy", string(r.strategy)),
	))
	defer span.End()

	start := time.Now()
	items := make([]WorkItem, count)
	acc := &Accumulator{}
	pacer := newLaunchPacer(opts.SpawnRate)

	var g errgroup.Group
	var launchErr error
	for i := range count {
		if err := pacer.Wait(ctx); err != nil {
			launchErr = err
			break
		}
		g.Go(func() error {
			items[i] = r.work(i, acc)
			return nil
		})
	}
	_ = g.Wait()

	if launchErr != nil {
		span.RecordError(launchErr)
		span.SetStatus(codes.Error, "launch interrupted")
		opts.Logger.Warn("thread launch interrupted, launched workers joined", logging.Err(launchErr))
		return nil, launchErr
	}

	agg := &Aggregate{
		RunID:         uuid.NewString(),
		Model:         ModelThread,
		Count:         count,
		Bound:         opts.Bound,
		WorkloadKnown: true,
		Items:         items,
	}
	switch r.strategy {
	case StrategyLocked:
		agg.IdentitySum, agg.WorkloadSum = acc.Totals()
	default:
		for _, item := range items {
			agg.IdentitySum += item.Contribution
			agg.WorkloadSum += item.WorkloadResult
		}
	}
	agg.Elapsed = time.Since(start)
	opts.Recorder.RunDone(string(ModelThread), count, agg.Elapsed)
	span.SetAttributes(attribute.Int64("fanout.identity_sum", int64(agg.IdentitySum)))
	return agg, nil
}

// work runs one worker. The goroutine stays locked to its thread when it
// returns, so the runtime retires that thread and no two workers share one.
func (r *ThreadRunner) work(index int, acc *Accumulator) WorkItem {
	runtime.LockOSThread()
	started := time.Now()
	cpuStart := threadCPUTime()

	if r.pin {
		if cpu, err := pinToCPU(index); err != nil {
			r.opts.Logger.Debug("cpu pinning unavailable", logging.Int("index", index), logging.Err(err))
		} else {
			r.opts.Logger.Debug("worker pinned", logging.Int("index", index), logging.Int("cpu", cpu))
		}
	}

	id := r.identity(index)
	r.opts.Observer.WorkerStarted(ModelThread, index, id)
	result := r.workload()
	h := r.hash(id)
	if r.strategy == StrategyLocked {
		acc.Add(h, result)
	}

	item := WorkItem{
		Index:          index,
		Identity:       id,
		Contribution:   h,
		WorkloadResult: result,
		Duration:       time.Since(started),
		CPUTime:        threadCPUTime() - cpuStart,
	}
	r.opts.Recorder.WorkerDone(string(ModelThread), item.Duration, false)
	r.opts.Observer.WorkerFinished(ModelThread, item)
	return item
}
