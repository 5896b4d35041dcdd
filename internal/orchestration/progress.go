package orchestration

import (
	"sync"
	"time"

	"github.com/windmix/fanbench/internal/fanout"
	"github.com/windmix/fanbench/internal/format"
)

// ProgressAggregator turns worker completion events into a progress fraction
// and an ETA. Both the CLI spinner and the dashboard use it. It is safe for
// concurrent use.
type ProgressAggregator struct {
	mu       sync.Mutex
	model    fanout.Model
	state    *format.WorkerProgress
	abnormal int
}

// NewProgressAggregator creates an aggregator for a run of total workers.
// Returns nil if total <= 0.
func NewProgressAggregator(model fanout.Model, total int) *ProgressAggregator {
	if total <= 0 {
		return nil
	}
	return &ProgressAggregator{model: model, state: format.NewWorkerProgress(total)}
}

// AggregatedProgress is the state after one worker finished.
type AggregatedProgress struct {
	Model    fanout.Model
	Item     fanout.WorkItem
	Done     int
	Total    int
	Abnormal int
	Fraction float64
	ETA      time.Duration
}

// Update records a finished worker and returns the new totals.
func (a *ProgressAggregator) Update(item fanout.WorkItem) AggregatedProgress {
	fraction := a.state.Finish()
	a.mu.Lock()
	if item.Abnormal {
		a.abnormal++
	}
	abnormal := a.abnormal
	a.mu.Unlock()
	done, total := a.state.Done()
	return AggregatedProgress{
		Model:    a.model,
		Item:     item,
		Done:     done,
		Total:    total,
		Abnormal: abnormal,
		Fraction: fraction,
		ETA:      a.state.ETA(),
	}
}

// Fraction returns the finished share without updating.
func (a *ProgressAggregator) Fraction() float64 {
	return a.state.Fraction()
}

// GetETA returns the current ETA estimate without updating.
// Useful for periodic refresh between updates.
func (a *ProgressAggregator) GetETA() time.Duration {
	return a.state.ETA()
}

// Model returns the execution model being tracked.
func (a *ProgressAggregator) Model() fanout.Model {
	return a.model
}
