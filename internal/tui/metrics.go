package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/windmix/fanbench/internal/format"
)

// sparklineCapacity is the number of samples kept for each sparkline.
const sparklineCapacity = 120

// MetricsModel displays runtime memory statistics and system load.
type MetricsModel struct {
	mem    MemStatsMsg
	cpu    *RingBuffer
	sysMem *RingBuffer
	width  int
	height int
}

// NewMetricsModel creates a new metrics panel.
func NewMetricsModel() MetricsModel {
	return MetricsModel{
		cpu:    NewRingBuffer(sparklineCapacity),
		sysMem: NewRingBuffer(sparklineCapacity),
	}
}

// SetSize updates dimensions.
func (m *MetricsModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// UpdateMemStats stores a runtime memory sample.
func (m *MetricsModel) UpdateMemStats(msg MemStatsMsg) { m.mem = msg }

// UpdateSysStats records a system load sample.
func (m *MetricsModel) UpdateSysStats(msg SysStatsMsg) {
	m.cpu.Push(msg.CPUPercent)
	m.sysMem.Push(msg.MemPercent)
}

// View renders the panel.
func (m MetricsModel) View() string {
	inner := max(m.width-4, 10)
	rows := []string{
		metricRow("Heap:", format.FormatBytes(m.mem.HeapAlloc)+" / "+format.FormatBytes(m.mem.HeapSys)),
		metricRow("GC:", fmt.Sprintf("%d (%.1fms)", m.mem.NumGC, float64(m.mem.PauseTotalNs)/1e6)),
		metricRow("Goroutines:", fmt.Sprintf("%d", m.mem.Goroutines)),
		metricRow("OS threads:", fmt.Sprintf("%d", m.mem.OSThreads)),
		"",
		metricRow("CPU:", fmt.Sprintf("%5.1f%%", m.cpu.Last())),
		accentStyle.Render(RenderSparkline(m.cpu.Slice(), inner)),
		metricRow("Memory:", fmt.Sprintf("%5.1f%%", m.sysMem.Last())),
		warningStyle.Render(RenderSparkline(m.sysMem.Slice(), inner)),
	}
	return panelStyle.
		Width(max(m.width-2, 0)).
		Height(max(m.height-2, 0)).
		Render(strings.Join(rows, "\n"))
}

func metricRow(label, value string) string {
	cell := " " + metricLabelStyle.Render(fmt.Sprintf("%-12s", label)) + " " + metricValueStyle.Render(value)
	return cell + strings.Repeat(" ", max(0, 28-lipgloss.Width(cell)))
}
