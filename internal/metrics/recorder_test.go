package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counters(t *testing.T) {
	t.Parallel()
	r := NewRecorder()

	r.WorkerDone("process", 10*time.Millisecond, false)
	r.WorkerDone("process", 12*time.Millisecond, true)
	r.WorkerDone("thread", 5*time.Millisecond, false)
	r.RunDone("process", 2, 40*time.Millisecond)
	r.SpawnFailed("thread")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.workers.WithLabelValues("process", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.workers.WithLabelValues("process", "abnormal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("process")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.runWorkers.WithLabelValues("process")))
	assert.InDelta(t, 0.04, testutil.ToFloat64(r.runDuration.WithLabelValues("process")), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.spawnFailures.WithLabelValues("thread")))

	assert.Equal(t, int64(2), r.Latency("process").Count)
	assert.Equal(t, int64(1), r.Latency("thread").Count)
	assert.Zero(t, r.Latency("unknown").Count)
}

func TestRecorder_ConcurrentWorkers(t *testing.T) {
	t.Parallel()
	r := NewRecorder()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.WorkerDone("thread", time.Millisecond, false)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50.0, testutil.ToFloat64(r.workers.WithLabelValues("thread", "ok")))
	assert.Equal(t, int64(50), r.Latency("thread").Count)
}

func TestRecorder_WriteTextfile(t *testing.T) {
	t.Parallel()
	r := NewRecorder()
	r.RunDone("thread", 4, time.Second)

	path := filepath.Join(t.TempDir(), "fanbench.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(data)
	assert.True(t, strings.Contains(body, `fanbench_runs_total{model="thread"} 1`), body)
	assert.Contains(t, body, "fanbench_run_workers")
	assert.Contains(t, body, "go_goroutines")
}

func TestLatencyHistogram_Summary(t *testing.T) {
	t.Parallel()
	var durations []time.Duration
	for i := 1; i <= 100; i++ {
		durations = append(durations, time.Duration(i)*time.Millisecond)
	}
	s := Summarize(durations)

	assert.Equal(t, int64(100), s.Count)
	assert.InDelta(t, float64(time.Millisecond), float64(s.Min), float64(10*time.Microsecond))
	assert.InDelta(t, float64(100*time.Millisecond), float64(s.Max), float64(time.Millisecond))
	assert.InDelta(t, float64(50*time.Millisecond), float64(s.P50), float64(time.Millisecond))
	assert.InDelta(t, float64(99*time.Millisecond), float64(s.P99), float64(time.Millisecond))
	assert.LessOrEqual(t, s.P50, s.P90)
	assert.LessOrEqual(t, s.P90, s.P99)
}

func TestLatencyHistogram_ClampsAndEmpty(t *testing.T) {
	t.Parallel()
	assert.Equal(t, LatencySummary{}, NewLatencyHistogram().Summary())

	h := NewLatencyHistogram()
	h.Record(0)
	h.Record(2 * time.Hour)
	s := h.Summary()
	assert.Equal(t, int64(2), s.Count)
	assert.Equal(t, time.Microsecond, s.Min)
	assert.InDelta(t, float64(time.Hour), float64(s.Max), float64(time.Hour)/500)
}
