//go:build !linux

package fanout

import (
	"errors"
	"sync/atomic"
	"time"
)

var threadSeq atomic.Uint64

// currentThreadID hands out sequence numbers; the OS thread id is not
// portably available outside Linux.
func currentThreadID() uint64 {
	return threadSeq.Add(1)
}

func threadCPUTime() time.Duration { return 0 }

func pinToCPU(int) (int, error) {
	return 0, errors.New("thread affinity is not supported on this platform")
}
