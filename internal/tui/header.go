package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/windmix/fanbench/internal/format"
)

// HeaderModel renders the top bar: title, version, current run, elapsed time.
type HeaderModel struct {
	startTime time.Time
	endTime   time.Time
	version   string
	run       string
	width     int
}

// NewHeaderModel creates a new header.
func NewHeaderModel(version string) HeaderModel {
	return HeaderModel{startTime: time.Now(), version: version}
}

// SetRun names the run in progress.
func (h *HeaderModel) SetRun(run string) { h.run = run }

// SetDone freezes the elapsed timer at the current time.
func (h *HeaderModel) SetDone() { h.endTime = time.Now() }

// SetWidth updates the available width.
func (h *HeaderModel) SetWidth(w int) { h.width = w }

// View renders the header.
func (h HeaderModel) View() string {
	titleText := "fanbench"
	if h.version != "" && h.version != "dev" {
		titleText += " " + h.version
	}
	pipe := dimStyle.Render(" | ")
	end := h.endTime
	if end.IsZero() {
		end = time.Now()
	}
	parts := []string{titleStyle.Render(titleText)}
	if h.run != "" {
		parts = append(parts, modelStyle(h.run).Render(h.run+" run"))
	}
	parts = append(parts, accentStyle.Render(fmt.Sprintf("Elapsed: %s", format.FormatExecutionDuration(end.Sub(h.startTime)))))
	row := strings.Join(parts, pipe)
	gap := max(h.width-2-lipgloss.Width(row), 0)
	return headerStyle.Width(h.width).Render(row + strings.Repeat(" ", gap))
}
