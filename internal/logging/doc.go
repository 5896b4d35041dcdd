// Package logging provides a unified logging interface for the fan-out harness.
// It abstracts the underlying logging implementation (zerolog by default, the
// standard library logger as an alternative), allowing consistent structured
// logging across runners, the driver and the CLI.
package logging
