// Package app wires configuration, orchestration and presentation into the
// fanbench command tree.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/windmix/fanbench/internal/cli"
	"github.com/windmix/fanbench/internal/config"
	apperrors "github.com/windmix/fanbench/internal/errors"
	"github.com/windmix/fanbench/internal/fanout"
	"github.com/windmix/fanbench/internal/logging"
	"github.com/windmix/fanbench/internal/metrics"
	"github.com/windmix/fanbench/internal/orchestration"
	"github.com/windmix/fanbench/internal/tui"
	"github.com/windmix/fanbench/internal/ui"
)

// Build-time variables set with -ldflags.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// errUsage is returned when nothing was requested.
var errUsage = apperrors.NewConfigError("Usage: fanbench [-i] [-f N] [-t N]")

// Application represents the fanbench application instance.
type Application struct {
	Out    io.Writer
	ErrOut io.Writer
	// Factory overrides the runners. Nil means the real process and thread
	// runners.
	Factory orchestration.RunnerFactory
	// Info overrides the information report collector.
	Info func(ctx context.Context) orchestration.InfoReport

	configFile string
	exitCode   int
}

// AppOption configures an Application during construction.
type AppOption func(*Application)

// WithRunnerFactory sets a custom runner factory.
func WithRunnerFactory(f orchestration.RunnerFactory) AppOption {
	return func(a *Application) { a.Factory = f }
}

// WithInfo sets a custom information collector.
func WithInfo(f func(ctx context.Context) orchestration.InfoReport) AppOption {
	return func(a *Application) { a.Info = f }
}

// New creates an application writing summaries to out and diagnostics to errOut.
func New(out, errOut io.Writer, opts ...AppOption) *Application {
	a := &Application{Out: out, ErrOut: errOut}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run parses args, executes the requested command and returns the exit code.
func (a *Application) Run(ctx context.Context, args []string) int {
	a.exitCode = apperrors.ExitSuccess
	cmd := a.NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(a.Out)
	cmd.SetErr(a.ErrOut)
	if err := cmd.ExecuteContext(ctx); err != nil {
		noColor, _ := cmd.PersistentFlags().GetBool("no-color")
		ui.InitTheme(noColor)
		return apperrors.HandleRunError(err, 0, a.ErrOut, cli.CLIColorProvider{})
	}
	return a.exitCode
}

// NewRootCommand builds the command tree.
func (a *Application) NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "fanbench",
		Short: "Compare process and thread fan-out on a CPU-bound workload",
		Long: `fanbench runs the same nested square-root workload in N child processes or
N OS threads, waits for all of them, and reports the sum of their identities,
the combined workload result and the elapsed time.

Requested actions always run in the order information, processes, threads,
whatever the order of the flags. A repeated flag keeps its last value.

Examples:
  fanbench -i                # system information
  fanbench -f 8              # eight child processes
  fanbench -t 8              # eight threads
  fanbench -i -f 4 -t 4      # all three, in that order
  fanbench threads 16 --strategy locked --details`,
		Args:          noArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.execute(cmd, nil)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return apperrors.NewConfigError("%v", err)
	})
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default: <user config dir>/fanbench/fanbench.yaml)")
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		a.planCommand("info", "Print system information", cobra.NoArgs, func(c *config.AppConfig, _ []string) {
			c.Info, c.Fork, c.Threads = true, "", ""
		}),
		a.planCommand("procs N", "Run the process model with N children", exactlyOneArg, func(c *config.AppConfig, args []string) {
			c.Info, c.Fork, c.Threads = false, args[0], ""
		}),
		a.planCommand("threads N", "Run the thread model with N threads", exactlyOneArg, func(c *config.AppConfig, args []string) {
			c.Info, c.Fork, c.Threads = false, "", args[0]
		}),
		a.versionCommand(),
	)
	return root
}

func (a *Application) planCommand(use, short string, args cobra.PositionalArgs, override func(*config.AppConfig, []string)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args: func(cmd *cobra.Command, posArgs []string) error {
			if err := args(cmd, posArgs); err != nil {
				return apperrors.NewConfigError("%v", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			return a.execute(cmd, func(c *config.AppConfig) { override(c, posArgs) })
		},
	}
}

func (a *Application) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			PrintVersion(cmd.OutOrStdout())
		},
	}
}

// PrintVersion writes the build information to out.
func PrintVersion(out io.Writer) {
	fmt.Fprintf(out, "fanbench %s\n", Version)
	fmt.Fprintf(out, "  commit:  %s\n", Commit)
	fmt.Fprintf(out, "  built:   %s\n", BuildDate)
	fmt.Fprintf(out, "  go:      %s\n", runtime.Version())
	fmt.Fprintf(out, "  os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

func noArgs(_ *cobra.Command, args []string) error {
	if len(args) > 0 {
		return apperrors.NewConfigError("unexpected argument %q\n%s", args[0], errUsage.Error())
	}
	return nil
}

func exactlyOneArg(cmd *cobra.Command, args []string) error {
	return cobra.ExactArgs(1)(cmd, args)
}

// execute loads the configuration, applies a subcommand override and runs
// the resulting plan. Every count is resolved before anything runs.
func (a *Application) execute(cmd *cobra.Command, override func(*config.AppConfig)) error {
	cfg, err := config.Load(cmd.Flags(), a.configFile)
	if err != nil {
		return err
	}
	if override != nil {
		override(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	plan, err := cfg.Plan()
	if err != nil {
		return err
	}
	if plan.Empty() {
		return errUsage
	}
	a.exitCode = a.runPlan(cmd.Context(), cfg, plan)
	return nil
}

func (a *Application) runPlan(ctx context.Context, cfg config.AppConfig, plan config.Plan) int {
	ui.InitTheme(cfg.NoColor)
	logger := logging.NewConsoleLogger(a.ErrOut, cfg.LogLevel, cfg.NoColor)

	ctx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	strategy, _ := fanout.ParseStrategy(cfg.Strategy)
	orch := &orchestration.Orchestrator{
		Factory:  a.Factory,
		Options:  cfg.RunOptions(),
		Strategy: strategy,
		Presentation: orchestration.PresentationOptions{
			Details: cfg.Details,
			Verbose: cfg.Verbose,
			Quiet:   cfg.Quiet,
		},
		Logger:      logger,
		MetricsFile: cfg.MetricsFile,
		Info:        a.Info,
	}
	if cfg.MetricsFile != "" || cfg.Verbose {
		orch.Recorder = metrics.NewRecorder()
	}

	if cfg.TUI {
		if orch.Factory == nil {
			orch.Factory = orchestration.DefaultRunnerFactory(strategy, cfg.Pin, io.Discard)
		}
		return tui.Run(ctx, orch, plan, Version)
	}

	structured := cfg.Format != config.FormatText
	out := lockedWriterFor(a.Out)
	childOut := out
	if structured || cfg.Quiet {
		childOut = io.Discard
	}
	if orch.Factory == nil {
		orch.Factory = orchestration.DefaultRunnerFactory(strategy, cfg.Pin, childOut)
	}

	switch {
	case structured:
		p := cli.StructuredPresenter{Format: cfg.Format, ErrOut: a.ErrOut}
		orch.Presenter, orch.Errors = p, p
		orch.Progress = orchestration.NullProgressReporter{}
	default:
		orch.Presenter = cli.CLIResultPresenter{}
		orch.Errors = errorsTo{handler: cli.CLIResultPresenter{}, w: a.ErrOut}
		if cfg.Quiet {
			orch.Progress = orchestration.NullProgressReporter{}
		} else {
			orch.Progress = cli.NewCLIProgressReporter(out, true)
		}
	}
	return orch.Execute(ctx, plan, out)
}

// errorsTo sends run errors to w instead of the summary writer.
type errorsTo struct {
	handler orchestration.ErrorHandler
	w       io.Writer
}

func (e errorsTo) HandleError(err error, elapsed time.Duration, _ io.Writer) int {
	return e.handler.HandleError(err, elapsed, e.w)
}

// lockedWriter serializes writes from child output copiers and the progress
// reporter.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// lockedWriterFor returns w unchanged when it is a file, which children
// inherit directly, and a mutex-guarded wrapper otherwise.
func lockedWriterFor(w io.Writer) io.Writer {
	if _, ok := w.(*os.File); ok {
		return w
	}
	return &lockedWriter{w: w}
}
