// Package config defines the application configuration and loads it from
// command-line flags, FANBENCH_* environment variables and an optional YAML
// file, in that order of priority.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/windmix/fanbench/internal/errors"
	"github.com/windmix/fanbench/internal/fanout"
	"github.com/windmix/fanbench/internal/workload"
)

// EnvPrefix is the prefix of every environment variable the application reads.
const EnvPrefix = "FANBENCH"

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// AppConfig aggregates all configuration parameters of the application.
type AppConfig struct {
	// Info requests the system information report.
	Info bool `mapstructure:"info"`
	// Fork is the raw process count. Empty means no process run.
	Fork string `mapstructure:"fork"`
	// Threads is the raw thread count. Empty means no thread run.
	Threads string `mapstructure:"threads"`
	// Bound is the workload bound B.
	Bound uint64 `mapstructure:"bound"`
	// Timeout bounds each process run; stragglers are killed. Zero disables it.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxWorkers caps the count of a single run.
	MaxWorkers int `mapstructure:"max_workers"`
	// Strategy is the thread result strategy, "collected" or "locked".
	Strategy string `mapstructure:"strategy"`
	// Pin pins thread workers to CPUs.
	Pin bool `mapstructure:"pin"`
	// SpawnRate limits worker launches per second. Zero means unlimited.
	SpawnRate float64 `mapstructure:"spawn_rate"`
	// Format selects the summary encoding: text, json or yaml.
	Format string `mapstructure:"format"`
	// Details adds the per-worker table to text summaries.
	Details bool `mapstructure:"details"`
	// Quiet suppresses per-worker lines and progress output.
	Quiet bool `mapstructure:"quiet"`
	// Verbose adds timing percentiles and memory statistics.
	Verbose bool `mapstructure:"verbose"`
	// NoColor disables ANSI colors.
	NoColor bool `mapstructure:"no_color"`
	// TUI runs the interactive dashboard instead of plain output.
	TUI bool `mapstructure:"tui"`
	// MetricsFile, when set, receives the run metrics in Prometheus text format.
	MetricsFile string `mapstructure:"metrics_file"`
	// LogLevel is the zerolog level name for diagnostics on stderr.
	LogLevel string `mapstructure:"log_level"`
}

// Default returns the configuration used when nothing is overridden.
func Default() AppConfig {
	return AppConfig{
		Bound:      workload.DefaultBound,
		MaxWorkers: fanout.DefaultMaxWorkers,
		Strategy:   string(fanout.StrategyCollected),
		Format:     FormatText,
		LogLevel:   "warn",
	}
}

// Plan is the resolved list of actions, run in the order info, processes, threads.
// A zero count skips that run.
type Plan struct {
	Info      bool
	Processes int
	Threads   int
}

// Empty reports whether the plan has nothing to do.
func (p Plan) Empty() bool {
	return !p.Info && p.Processes == 0 && p.Threads == 0
}

// ParseCount parses a worker count given on the command line. Anything but a
// positive decimal integer is rejected.
func ParseCount(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, apperrors.ValidationError{Message: "Invalid count: " + s}
	}
	return n, nil
}

// Plan resolves the requested actions. Every count is parsed before anything
// runs, so a bad thread count never leaves a finished process run behind it.
func (c AppConfig) Plan() (Plan, error) {
	p := Plan{Info: c.Info}
	if c.Fork != "" {
		n, err := ParseCount(c.Fork)
		if err != nil {
			return Plan{}, err
		}
		p.Processes = n
	}
	if c.Threads != "" {
		n, err := ParseCount(c.Threads)
		if err != nil {
			return Plan{}, err
		}
		p.Threads = n
	}
	return p, nil
}

// Validate checks the configuration for consistency.
func (c AppConfig) Validate() error {
	if c.Bound == 0 {
		return apperrors.ValidationError{Field: "bound", Message: "must be positive"}
	}
	if c.MaxWorkers <= 0 {
		return apperrors.ValidationError{Field: "max-workers", Message: fmt.Sprintf("must be positive, got %d", c.MaxWorkers)}
	}
	if c.Timeout < 0 {
		return apperrors.ValidationError{Field: "timeout", Message: "must not be negative"}
	}
	if c.SpawnRate < 0 {
		return apperrors.ValidationError{Field: "spawn-rate", Message: "must not be negative"}
	}
	if _, err := fanout.ParseStrategy(c.Strategy); err != nil {
		return err
	}
	switch c.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return apperrors.ValidationError{Field: "format", Message: fmt.Sprintf("unknown format %q (want text, json or yaml)", c.Format)}
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return apperrors.ValidationError{Field: "log-level", Message: err.Error()}
	}
	if c.TUI && c.Format != FormatText {
		return apperrors.NewConfigError("--tui cannot be combined with --format %s", c.Format)
	}
	if c.Quiet && c.Verbose {
		return apperrors.NewConfigError("--quiet and --verbose are mutually exclusive")
	}
	plan, err := c.Plan()
	if err != nil {
		return err
	}
	for _, n := range []int{plan.Processes, plan.Threads} {
		if n == 0 {
			continue
		}
		if err := fanout.ValidateCount(n, c.MaxWorkers); err != nil {
			return err
		}
	}
	return nil
}

// RunOptions converts the configuration into runner options.
func (c AppConfig) RunOptions() fanout.Options {
	return fanout.Options{
		Bound:      c.Bound,
		MaxWorkers: c.MaxWorkers,
		Timeout:    c.Timeout,
		SpawnRate:  c.SpawnRate,
	}
}
