//go:build unix

package fanout

import (
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

func decodeState(state *os.ProcessState, out *ExitOutcome) {
	if ru, ok := state.SysUsage().(*syscall.Rusage); ok && ru != nil {
		out.CPUTime = time.Duration(ru.Utime.Nano() + ru.Stime.Nano())
	}
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		out.Exited = state.Exited()
		out.Code = state.ExitCode()
		return
	}
	switch {
	case ws.Exited():
		out.Exited = true
		out.Code = ws.ExitStatus()
	case ws.Signaled():
		out.Signal = unix.SignalName(ws.Signal())
		if out.Signal == "" {
			out.Signal = ws.Signal().String()
		}
	default:
		out.Signal = "unknown"
	}
}
