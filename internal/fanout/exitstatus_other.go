//go:build !unix

package fanout

import "os"

func decodeState(state *os.ProcessState, out *ExitOutcome) {
	out.Exited = state.Exited()
	out.Code = state.ExitCode()
	if !out.Exited {
		out.Signal = "unknown"
	}
}
