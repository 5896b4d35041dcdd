package fanout

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/windmix/fanbench/internal/errors"
	"github.com/windmix/fanbench/internal/logging"
	"github.com/windmix/fanbench/internal/workload"
)

// Model names an execution model.
type Model string

const (
	// ModelProcess runs each worker in its own OS process.
	ModelProcess Model = "process"
	// ModelThread runs each worker on its own OS thread inside this process.
	ModelThread Model = "thread"
)

// DefaultMaxWorkers caps the worker count of a single run. Each worker is an
// OS process or an OS thread, and both are finite system resources.
const DefaultMaxWorkers = 1024

// WorkItem is the record of one worker after it finished.
type WorkItem struct {
	// Index is the position assigned by the runner, 0..N-1.
	Index int `json:"index" yaml:"index"`
	// Identity is the pid (process model) or OS thread id (thread model).
	Identity uint64 `json:"identity" yaml:"identity"`
	// Contribution is the identity-derived value added to the identity sum:
	// the decoded exit status for processes, the identity hash for threads.
	Contribution uint64 `json:"contribution" yaml:"contribution"`
	// WorkloadResult is the workload value. Only the thread model knows it.
	WorkloadResult uint64 `json:"workload_result,omitempty" yaml:"workload_result,omitempty"`
	// Duration is the worker's wall time as seen by the runner.
	Duration time.Duration `json:"duration_ns" yaml:"duration"`
	// CPUTime is user+system CPU consumed by the worker, when the platform reports it.
	CPUTime time.Duration `json:"cpu_time_ns,omitempty" yaml:"cpu_time,omitempty"`
	// Abnormal is set when a child process did not exit normally.
	Abnormal bool `json:"abnormal,omitempty" yaml:"abnormal,omitempty"`
	// Signal names the terminating signal of an abnormal child.
	Signal string `json:"signal,omitempty" yaml:"signal,omitempty"`
	// Err describes an abnormal termination; nil otherwise.
	Err error `json:"-" yaml:"-"`
}

// Aggregate is the result of one run.
type Aggregate struct {
	RunID string `json:"run_id" yaml:"run_id"`
	Model Model  `json:"model" yaml:"model"`
	Count int    `json:"count" yaml:"count"`
	Bound uint64 `json:"bound" yaml:"bound"`
	// IdentitySum is the sum of every worker's Contribution.
	IdentitySum uint64 `json:"identity_sum" yaml:"identity_sum"`
	// WorkloadSum is the sum of every WorkloadResult. Valid only when WorkloadKnown.
	WorkloadSum   uint64 `json:"workload_sum,omitempty" yaml:"workload_sum,omitempty"`
	WorkloadKnown bool   `json:"workload_known" yaml:"workload_known"`
	// Abnormal counts workers that contributed zero because they did not exit normally.
	Abnormal int           `json:"abnormal" yaml:"abnormal"`
	Items    []WorkItem    `json:"items" yaml:"items"`
	Elapsed  time.Duration `json:"elapsed_ns" yaml:"elapsed"`
}

// Contributions returns the number of workers whose contribution was counted.
func (a *Aggregate) Contributions() int {
	return a.Count - a.Abnormal
}

// Observer receives per-worker lifecycle events. Thread runs call it from many
// goroutines at once, so implementations must be safe for concurrent use.
type Observer interface {
	WorkerStarted(model Model, index int, identity uint64)
	WorkerFinished(model Model, item WorkItem)
}

// NopObserver ignores all events.
type NopObserver struct{}

// WorkerStarted does nothing.
func (NopObserver) WorkerStarted(Model, int, uint64) {}

// WorkerFinished does nothing.
func (NopObserver) WorkerFinished(Model, WorkItem) {}

// Recorder receives run statistics for export. It is implemented by
// metrics.Recorder; model is passed as a plain string.
type Recorder interface {
	WorkerDone(model string, d time.Duration, abnormal bool)
	RunDone(model string, count int, elapsed time.Duration)
	SpawnFailed(model string)
}

// NopRecorder discards all statistics.
type NopRecorder struct{}

func (NopRecorder) WorkerDone(string, time.Duration, bool) {}
func (NopRecorder) RunDone(string, int, time.Duration)     {}
func (NopRecorder) SpawnFailed(string)                     {}

// Options holds the settings shared by both runners.
type Options struct {
	// Bound is the workload bound B. Zero means workload.DefaultBound.
	Bound uint64
	// MaxWorkers caps the count. Zero means DefaultMaxWorkers.
	MaxWorkers int
	// Timeout bounds the whole run for the process model; stragglers are
	// killed and reaped when it expires. Zero disables it.
	Timeout time.Duration
	// SpawnRate limits worker launches per second. Zero means unlimited.
	SpawnRate float64
	Logger    logging.Logger
	Observer  Observer
	Recorder  Recorder
}

func (o Options) withDefaults() Options {
	if o.Bound == 0 {
		o.Bound = workload.DefaultBound
	}
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = DefaultMaxWorkers
	}
	if o.Logger == nil {
		o.Logger = logging.NewNopLogger()
	}
	if o.Observer == nil {
		o.Observer = NopObserver{}
	}
	if o.Recorder == nil {
		o.Recorder = NopRecorder{}
	}
	return o
}

// ValidateCount rejects worker counts outside 1..maxWorkers.
func ValidateCount(count, maxWorkers int) error {
	if count <= 0 {
		return apperrors.ValidationError{Field: "count", Message: fmt.Sprintf("must be positive, got %d", count)}
	}
	if maxWorkers > 0 && count > maxWorkers {
		return apperrors.ValidationError{Field: "count", Message: fmt.Sprintf("%d exceeds the limit of %d workers", count, maxWorkers)}
	}
	return nil
}

// launchPacer throttles worker launches. Without a limiter it only checks
// the context.
type launchPacer struct {
	limiter *rate.Limiter
}

func newLaunchPacer(perSecond float64) *launchPacer {
	if perSecond <= 0 {
		return &launchPacer{}
	}
	return &launchPacer{limiter: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

func (p *launchPacer) Wait(ctx context.Context) error {
	if p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}
