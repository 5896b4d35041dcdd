package metrics

import "runtime"

// MemorySnapshot holds a point-in-time memory reading.
type MemorySnapshot struct {
	HeapAlloc    uint64 // bytes in use by application
	HeapSys      uint64 // bytes obtained from OS for heap
	Sys          uint64 // total bytes obtained from OS
	NumGC        uint32 // number of completed GC cycles
	PauseTotalNs uint64 // cumulative GC pause time
	HeapObjects  uint64 // number of allocated heap objects
	// OSThreads is the number of OS threads the runtime has created. Thread
	// runs retire one thread per worker, so it grows by about N per run.
	OSThreads int
}

// MemoryCollector reads runtime memory statistics.
type MemoryCollector struct{}

// NewMemoryCollector creates a new memory collector.
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{}
}

// Snapshot reads current memory statistics.
func (mc *MemoryCollector) Snapshot() MemorySnapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	threads, _ := runtime.ThreadCreateProfile(nil)
	return MemorySnapshot{
		HeapAlloc:    m.HeapAlloc,
		HeapSys:      m.HeapSys,
		Sys:          m.Sys,
		NumGC:        m.NumGC,
		PauseTotalNs: m.PauseTotalNs,
		HeapObjects:  m.HeapObjects,
		OSThreads:    threads,
	}
}

// MemoryDelta is the change between two snapshots taken around a run.
type MemoryDelta struct {
	PeakHeapAlloc  uint64
	GCCycles       uint32
	GCPause        uint64 // nanoseconds
	ThreadsCreated int
}

// Delta compares a snapshot taken before a run with one taken after it.
func Delta(before, after MemorySnapshot) MemoryDelta {
	d := MemoryDelta{
		PeakHeapAlloc: max(before.HeapAlloc, after.HeapAlloc),
	}
	if after.NumGC >= before.NumGC {
		d.GCCycles = after.NumGC - before.NumGC
	}
	if after.PauseTotalNs >= before.PauseTotalNs {
		d.GCPause = after.PauseTotalNs - before.PauseTotalNs
	}
	if after.OSThreads >= before.OSThreads {
		d.ThreadsCreated = after.OSThreads - before.OSThreads
	}
	return d
}
