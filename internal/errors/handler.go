package apperrors

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// ColorProvider supplies the escape sequences used to highlight error output.
// A nil provider prints plain text.
type ColorProvider interface {
	Red() string
	Yellow() string
	Reset() string
}

// HandleRunError prints a description of a failed run and returns the exit
// code for it. A nil error prints nothing and returns ExitSuccess.
func HandleRunError(err error, elapsed time.Duration, out io.Writer, colors ColorProvider) int {
	if err == nil {
		return ExitSuccess
	}
	red, yellow, reset := "", "", ""
	if colors != nil {
		red, yellow, reset = colors.Red(), colors.Yellow(), colors.Reset()
	}

	code := ExitCodeFor(err)
	var spawnErr SpawnError
	var validationErr ValidationError
	switch {
	case code == ExitErrorTimeout:
		fmt.Fprintf(out, "%sRun timed out%s after %s: %v\n", yellow, reset, elapsed.Round(time.Millisecond), err)
	case code == ExitErrorCanceled:
		fmt.Fprintf(out, "%sRun canceled%s after %s.\n", yellow, reset, elapsed.Round(time.Millisecond))
	case errors.As(err, &spawnErr):
		fmt.Fprintf(out, "%sError:%s could not create %s worker %d: %v\n", red, reset, spawnErr.Model, spawnErr.Index, spawnErr.Cause)
	case errors.As(err, &validationErr) && validationErr.Field == "":
		fmt.Fprintf(out, "%sError:%s %s\n", red, reset, validationErr.Message)
	case errors.As(err, &validationErr):
		fmt.Fprintf(out, "%sError:%s invalid %s: %s\n", red, reset, validationErr.Field, validationErr.Message)
	default:
		fmt.Fprintf(out, "%sError:%s %v\n", red, reset, err)
	}
	return code
}
