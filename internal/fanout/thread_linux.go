//go:build linux

package fanout

import (
	"time"

	"golang.org/x/sys/unix"
)

func currentThreadID() uint64 {
	return uint64(unix.Gettid())
}

// threadCPUTime returns the CPU time consumed by the calling thread.
func threadCPUTime() time.Duration {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_THREAD, &ru); err != nil {
		return 0
	}
	return time.Duration(ru.Utime.Nano() + ru.Stime.Nano())
}

// pinToCPU restricts the calling thread to one CPU chosen from the process
// affinity mask by index. The caller must hold runtime.LockOSThread.
func pinToCPU(index int) (int, error) {
	var allowed unix.CPUSet
	if err := unix.SchedGetaffinity(0, &allowed); err != nil {
		return 0, err
	}
	n := allowed.Count()
	cpus := make([]int, 0, n)
	for cpu := 0; len(cpus) < n; cpu++ {
		if allowed.IsSet(cpu) {
			cpus = append(cpus, cpu)
		}
	}
	if len(cpus) == 0 {
		return 0, unix.EINVAL
	}
	cpu := cpus[index%len(cpus)]
	var set unix.CPUSet
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return 0, err
	}
	return cpu, nil
}
