// Package main provides the rvsim command line: run a RISC-V ELF program on
// one of the simulated cores, step through it interactively, compare the
// cores on the built-in microbenchmarks, or manage configuration files.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/rvsim/config"
)

type globalFlags struct {
	configPath string
	core       string
	logLevel   string
	maxCycles  uint64
	dcache     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var exit exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:          "rvsim",
		Short:        "RISC-V out-of-order core simulator",
		SilenceUsage: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to a JSON configuration file")
	pf.StringVar(&flags.core, "core", "", "core kind: single, inorder, dual, or triple (overrides the file)")
	pf.StringVar(&flags.logLevel, "log-level", "warn", "log level: debug, info, warn, or error")
	pf.Uint64Var(&flags.maxCycles, "max-cycles", 0, "stop after this many cycles (0 keeps the configured bound)")
	pf.BoolVar(&flags.dcache, "dcache", false, "enable the L1 data cache timing model")

	rootCmd.AddCommand(
		newRunCmd(flags),
		newDebugCmd(flags),
		newConfigCmd(flags),
		newBenchCmd(flags),
	)

	return rootCmd
}

// loadConfig builds the configuration from the file, if any, and applies
// the command line overrides.
func (f *globalFlags) loadConfig() (*config.Config, error) {
	kind := config.CoreKind(f.core)

	var cfg *config.Config
	switch {
	case f.configPath != "":
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		if kind != "" {
			cfg.Core = kind
		}
	case kind != "":
		cfg = config.DefaultFor(kind)
	default:
		cfg = config.Default()
	}

	if f.maxCycles > 0 {
		cfg.MaxCycles = f.maxCycles
	}
	if f.dcache {
		cfg.DCache.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (f *globalFlags) logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(f.logLevel))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", f.logLevel)
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}
