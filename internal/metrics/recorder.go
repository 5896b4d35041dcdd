package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Recorder collects fan-out statistics into a Prometheus registry of its own,
// never the global default one.
type Recorder struct {
	registry       *prometheus.Registry
	workers        *prometheus.CounterVec
	workerDuration *prometheus.HistogramVec
	runs           *prometheus.CounterVec
	runDuration    *prometheus.GaugeVec
	runWorkers     *prometheus.GaugeVec
	spawnFailures  *prometheus.CounterVec

	mu      sync.Mutex
	latency map[string]*LatencyHistogram
}

// NewRecorder creates a recorder with the fanbench collectors and the Go
// runtime collector registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		workers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fanbench_workers_total",
			Help: "Workers finished, by execution model and outcome.",
		}, []string{"model", "outcome"}),
		workerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fanbench_worker_duration_seconds",
			Help:    "Wall time of a single worker.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		}, []string{"model"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fanbench_runs_total",
			Help: "Completed fan-out runs.",
		}, []string{"model"}),
		runDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fanbench_run_duration_seconds",
			Help: "Wall time of the last run, spawn to join.",
		}, []string{"model"}),
		runWorkers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fanbench_run_workers",
			Help: "Worker count of the last run.",
		}, []string{"model"}),
		spawnFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fanbench_spawn_failures_total",
			Help: "Runs aborted because a worker could not be created.",
		}, []string{"model"}),
		latency: make(map[string]*LatencyHistogram),
	}
	r.registry.MustRegister(
		r.workers, r.workerDuration, r.runs, r.runDuration, r.runWorkers, r.spawnFailures,
		collectors.NewGoCollector(),
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WorkerDone records one finished worker.
func (r *Recorder) WorkerDone(model string, d time.Duration, abnormal bool) {
	outcome := "ok"
	if abnormal {
		outcome = "abnormal"
	}
	r.workers.WithLabelValues(model, outcome).Inc()
	r.workerDuration.WithLabelValues(model).Observe(d.Seconds())
	r.histogram(model).Record(d)
}

// RunDone records a completed run.
func (r *Recorder) RunDone(model string, count int, elapsed time.Duration) {
	r.runs.WithLabelValues(model).Inc()
	r.runDuration.WithLabelValues(model).Set(elapsed.Seconds())
	r.runWorkers.WithLabelValues(model).Set(float64(count))
}

// SpawnFailed records a run aborted by a spawn failure.
func (r *Recorder) SpawnFailed(model string) {
	r.spawnFailures.WithLabelValues(model).Inc()
}

// Latency returns the worker duration digest for model.
func (r *Recorder) Latency(model string) LatencySummary {
	return r.histogram(model).Summary()
}

func (r *Recorder) histogram(model string) *LatencyHistogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.latency[model]
	if !ok {
		h = NewLatencyHistogram()
		r.latency[model] = h
	}
	return h
}

// WriteTextfile writes every collected metric to path in the Prometheus text
// exposition format, for pickup by a node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
