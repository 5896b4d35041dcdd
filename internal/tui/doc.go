// Package tui implements the interactive dashboard shown with --tui: worker
// progress and lines on the left, runtime and system metrics on the right.
// The orchestrator runs in its own goroutine and reaches the bubbletea
// program through the bridge types in bridge.go.
package tui
