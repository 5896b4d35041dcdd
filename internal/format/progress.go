package format

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// WorkerProgress counts finished workers of a run and estimates the time left
// from the average completion rate so far. It is safe for concurrent use.
type WorkerProgress struct {
	mu       sync.Mutex
	total    int
	done     int
	start    time.Time
	lastDone time.Time
	now      func() time.Time
}

// NewWorkerProgress starts tracking a run of total workers.
func NewWorkerProgress(total int) *WorkerProgress {
	return newWorkerProgress(total, time.Now)
}

func newWorkerProgress(total int, now func() time.Time) *WorkerProgress {
	t := now()
	return &WorkerProgress{total: max(total, 0), start: t, lastDone: t, now: now}
}

// Finish records one more finished worker and returns the updated fraction.
// Calls beyond the total are ignored.
func (p *WorkerProgress) Finish() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done < p.total {
		p.done++
		p.lastDone = p.now()
	}
	return p.fractionLocked()
}

// Done returns the finished and total counts.
func (p *WorkerProgress) Done() (done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done, p.total
}

// Fraction returns the finished share in 0..1. An empty run is complete.
func (p *WorkerProgress) Fraction() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fractionLocked()
}

func (p *WorkerProgress) fractionLocked() float64 {
	if p.total == 0 {
		return 1
	}
	return float64(p.done) / float64(p.total)
}

// ETA estimates the remaining time. It is zero until the first worker has
// finished and once all have.
func (p *WorkerProgress) ETA() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == 0 || p.done >= p.total {
		return 0
	}
	perWorker := p.lastDone.Sub(p.start) / time.Duration(p.done)
	remaining := perWorker*time.Duration(p.total-p.done) - p.now().Sub(p.lastDone)
	return max(remaining, 0)
}

// FormatProgressBar renders "[████░░░░]  50.0% ETA: 30s" with a bar of width cells.
func FormatProgressBar(fraction float64, eta time.Duration, width int) string {
	fraction = min(max(fraction, 0), 1)
	width = max(width, 1)
	filled := int(fraction * float64(width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	etaText := FormatETA(eta)
	if fraction >= 1 {
		etaText = "done"
	}
	return fmt.Sprintf("[%s] %5.1f%% ETA: %s", bar, fraction*100, etaText)
}
