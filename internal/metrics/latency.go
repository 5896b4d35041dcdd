package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Worker durations are recorded in microseconds between 1µs and one hour with
// three significant digits.
const (
	latencyMin     = 1
	latencyMax     = int64(time.Hour / time.Microsecond)
	latencySigFigs = 3
)

// LatencyHistogram accumulates worker durations. It is safe for concurrent use.
type LatencyHistogram struct {
	mu sync.Mutex
	h  *hdrhistogram.Histogram
}

// NewLatencyHistogram returns an empty histogram.
func NewLatencyHistogram() *LatencyHistogram {
	return &LatencyHistogram{h: hdrhistogram.New(latencyMin, latencyMax, latencySigFigs)}
}

// Record adds one duration. Values outside the trackable range are clamped.
func (l *LatencyHistogram) Record(d time.Duration) {
	us := d.Microseconds()
	us = max(us, latencyMin)
	us = min(us, latencyMax)
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.h.RecordValue(us)
}

// LatencySummary is a percentile digest of recorded durations.
type LatencySummary struct {
	Count int64         `json:"count" yaml:"count"`
	Min   time.Duration `json:"min_ns" yaml:"min"`
	Mean  time.Duration `json:"mean_ns" yaml:"mean"`
	P50   time.Duration `json:"p50_ns" yaml:"p50"`
	P90   time.Duration `json:"p90_ns" yaml:"p90"`
	P99   time.Duration `json:"p99_ns" yaml:"p99"`
	Max   time.Duration `json:"max_ns" yaml:"max"`
}

// Summary returns the digest. An empty histogram yields the zero summary.
func (l *LatencyHistogram) Summary() LatencySummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.h.TotalCount() == 0 {
		return LatencySummary{}
	}
	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }
	return LatencySummary{
		Count: l.h.TotalCount(),
		Min:   us(l.h.Min()),
		Mean:  time.Duration(l.h.Mean() * float64(time.Microsecond)),
		P50:   us(l.h.ValueAtQuantile(50)),
		P90:   us(l.h.ValueAtQuantile(90)),
		P99:   us(l.h.ValueAtQuantile(99)),
		Max:   us(l.h.Max()),
	}
}

// Summarize builds a digest from a list of durations.
func Summarize(durations []time.Duration) LatencySummary {
	h := NewLatencyHistogram()
	for _, d := range durations {
		h.Record(d)
	}
	return h.Summary()
}
