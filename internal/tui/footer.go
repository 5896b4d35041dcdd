package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"
)

// FooterModel renders key help on the left and the run status on the right.
type FooterModel struct {
	help   help.Model
	keys   KeyMap
	paused bool
	done   bool
	failed bool
	width  int
}

// NewFooterModel creates a footer for keys.
func NewFooterModel(keys KeyMap) FooterModel {
	return FooterModel{help: help.New(), keys: keys}
}

// SetWidth updates the available width.
func (f *FooterModel) SetWidth(w int) {
	f.width = w
	f.help.Width = w
}

// SetPaused toggles the paused indicator.
func (f *FooterModel) SetPaused(p bool) { f.paused = p }

// SetDone marks the plan complete.
func (f *FooterModel) SetDone(d bool) { f.done = d }

// SetError marks the plan failed.
func (f *FooterModel) SetError(e bool) { f.failed = e }

// View renders the footer.
func (f FooterModel) View() string {
	var status string
	switch {
	case f.failed:
		status = statusErrorStyle.Render("FAILED")
	case f.done:
		status = statusDoneStyle.Render("DONE")
	case f.paused:
		status = statusPausedStyle.Render("PAUSED")
	default:
		status = statusRunningStyle.Render("RUNNING")
	}
	keys := f.help.View(f.keys)
	gap := max(f.width-lipgloss.Width(keys)-lipgloss.Width(status)-1, 1)
	return keys + lipgloss.NewStyle().Width(gap).Render("") + status
}
