package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	apperrors "github.com/windmix/fanbench/internal/errors"
)

// RegisterFlags declares the configuration flags on fs. Flag names use dashes;
// the matching config file keys and FANBENCH_* variables use underscores.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.BoolP("info", "i", false, "print system information")
	fs.StringP("fork", "f", "", "run the process model with `N` children")
	fs.StringP("threads", "t", "", "run the thread model with `N` threads")
	fs.Uint64("bound", d.Bound, "workload bound B (B*(B+1)/2 square roots per worker)")
	fs.Duration("timeout", d.Timeout, "kill children still running after this long (0 = wait forever)")
	fs.Int("max-workers", d.MaxWorkers, "largest accepted worker count")
	fs.String("strategy", d.Strategy, "thread result strategy: collected or locked")
	fs.Bool("pin", false, "pin thread workers to CPUs")
	fs.Float64("spawn-rate", 0, "maximum worker launches per second (0 = unlimited)")
	fs.String("format", d.Format, "summary format: text, json or yaml")
	fs.BoolP("details", "d", false, "print the per-worker table")
	fs.BoolP("quiet", "q", false, "print summaries only")
	fs.BoolP("verbose", "v", false, "print timing percentiles and memory statistics")
	fs.Bool("no-color", false, "disable colored output")
	fs.Bool("tui", false, "show the interactive dashboard")
	fs.String("metrics-file", "", "write run metrics in Prometheus text format to `path`")
	fs.String("log-level", d.LogLevel, "diagnostic log level (debug, info, warn, error)")
}

func keyFor(flagName string) string {
	return strings.ReplaceAll(flagName, "-", "_")
}

// Load builds the configuration from the flags in fs, the environment and a
// config file. An explicit configFile must exist; otherwise fanbench.yaml is
// looked up in the user config directory and skipped when absent.
func Load(fs *pflag.FlagSet, configFile string) (AppConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("info", d.Info)
	v.SetDefault("fork", d.Fork)
	v.SetDefault("threads", d.Threads)
	v.SetDefault("bound", d.Bound)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("max_workers", d.MaxWorkers)
	v.SetDefault("strategy", d.Strategy)
	v.SetDefault("pin", d.Pin)
	v.SetDefault("spawn_rate", d.SpawnRate)
	v.SetDefault("format", d.Format)
	v.SetDefault("details", d.Details)
	v.SetDefault("quiet", d.Quiet)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("no_color", d.NoColor)
	v.SetDefault("tui", d.TUI)
	v.SetDefault("metrics_file", d.MetricsFile)
	v.SetDefault("log_level", d.LogLevel)

	var bindErr error
	if fs != nil {
		fs.VisitAll(func(f *pflag.Flag) {
			if f.Name == "config" || f.Name == "help" {
				return
			}
			if err := v.BindPFlag(keyFor(f.Name), f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
	}
	if bindErr != nil {
		return AppConfig{}, apperrors.WrapError(bindErr, "binding flags")
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return AppConfig{}, apperrors.NewConfigError("failed to read config file %s: %v", configFile, err)
		}
	} else {
		v.SetConfigName("fanbench")
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "fanbench"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return AppConfig{}, apperrors.NewConfigError("failed to read config file: %v", err)
			}
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return AppConfig{}, apperrors.NewConfigError("failed to decode configuration: %v", err)
	}
	return cfg, nil
}
