package config

import "runtime"

// EstimateDefaultWorkers suggests a worker count for this machine: one worker
// per logical CPU, the point past which CPU-bound workers only time-share.
func EstimateDefaultWorkers() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}

// WordSize returns the native word size in bits.
func WordSize() int {
	return 32 << (^uint(0) >> 63)
}
