// Package format holds the display helpers shared by the CLI and the TUI.
package format

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatExecutionDuration formats a time.Duration for display.
// It shows microseconds for durations less than a millisecond, milliseconds for
// durations less than a second, and the default string representation otherwise.
func FormatExecutionDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	} else if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(time.Millisecond).String()
}

// FormatSeconds renders d as fractional seconds, e.g. "1.234 s".
func FormatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.3f s", d.Seconds())
}

// FormatBytes renders a byte count in IEC units, e.g. "15 GiB".
func FormatBytes(n uint64) string {
	return humanize.IBytes(n)
}

// FormatCount renders an integer with thousands separators.
func FormatCount(n uint64) string {
	return humanize.Comma(int64(n))
}

// FormatETA renders a remaining-time estimate compactly. Non-positive values
// mean no estimate is available yet.
func FormatETA(eta time.Duration) string {
	switch {
	case eta <= 0:
		return "calculating..."
	case eta < time.Second:
		return "< 1s"
	case eta < time.Minute:
		return fmt.Sprintf("%ds", int(eta.Seconds()))
	case eta < time.Hour:
		m := int(eta.Minutes())
		s := int(eta.Seconds()) % 60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm%ds", m, s)
	default:
		h := int(eta.Hours())
		m := int(eta.Minutes()) % 60
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh%dm", h, m)
	}
}
