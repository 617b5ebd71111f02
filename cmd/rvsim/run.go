package main

import (
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/rvsim/program"
	"github.com/sarchlab/rvsim/timing/core"
)

// exitError carries the simulated program's exit code out of a command.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("program exited with code %d", e.code)
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	var (
		showStats  bool
		cpuProfile string
		memProfile string
	)

	cmd := &cobra.Command{
		Use:   "run <program.elf>",
		Short: "Run a program to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := bootCore(flags, args[0], cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			stopProfile, err := startCPUProfile(cpuProfile)
			if err != nil {
				return err
			}

			start := time.Now()
			code, err := c.Run(c.Config().MaxCycles)
			elapsed := time.Since(start)
			stopProfile()

			if showStats {
				printStats(cmd.ErrOrStderr(), c.Stats())
				printSpeed(cmd.ErrOrStderr(), c.Stats(), elapsed)
			}
			if memProfile != "" {
				if perr := writeHeapProfile(memProfile); perr != nil {
					return perr
				}
			}
			if err != nil {
				return err
			}

			if code != 0 {
				cmd.SilenceErrors = true
				return exitError{code: int(code)}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showStats, "stats", false, "print performance statistics to stderr")
	cmd.Flags().StringVar(&cpuProfile, "cpuprofile", "", "write a CPU profile of the simulation to this file")
	cmd.Flags().StringVar(&memProfile, "memprofile", "", "write a heap profile to this file after the run")

	return cmd
}

// bootCore builds the configured core and loads the ELF program at path.
func bootCore(
	flags *globalFlags,
	path string,
	stdin io.Reader,
	stdout, stderr io.Writer,
) (*core.Core, error) {
	cfg, err := flags.loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := flags.logger(stderr)
	if err != nil {
		return nil, err
	}

	prog, err := program.LoadELF(path)
	if err != nil {
		return nil, err
	}

	c, err := core.NewCore(cfg,
		core.WithLogger(logger),
		core.WithOutput(stdout, stderr),
		core.WithStdin(stdin),
	)
	if err != nil {
		return nil, err
	}

	if err := c.Load(prog); err != nil {
		return nil, err
	}

	logger.Info("loaded program",
		"path", path,
		"entry", fmt.Sprintf("0x%x", prog.Entry),
		"core", cfg.Core,
	)

	return c, nil
}

func printStats(w io.Writer, s core.Stats) {
	_, _ = fmt.Fprintf(w, "cycles:          %d\n", s.Cycles)
	_, _ = fmt.Fprintf(w, "instructions:    %d\n", s.Instructions)
	_, _ = fmt.Fprintf(w, "cpi:             %.3f\n", s.CPI())
	_, _ = fmt.Fprintf(w, "stalls:          %d\n", s.Stalls)
	_, _ = fmt.Fprintf(w, "flushes:         %d\n", s.Flushes)

	switch {
	case s.InOrder.Cycles != 0:
		p := s.InOrder
		_, _ = fmt.Fprintf(w, "branches:        %d (%d mispredicted)\n", p.BranchPredictions, p.BranchMispredictions)
		_, _ = fmt.Fprintf(w, "data hazards:    %d\n", p.DataHazards)
		_, _ = fmt.Fprintf(w, "load-use:        %d\n", p.LoadUseStalls)
		_, _ = fmt.Fprintf(w, "exec stalls:     %d\n", p.ExecStalls)
		_, _ = fmt.Fprintf(w, "mem stalls:      %d\n", p.MemStalls)
		_, _ = fmt.Fprintf(w, "serializations:  %d\n", p.Serializations)
	case s.Detail.Cycles != 0:
		d := s.Detail
		_, _ = fmt.Fprintf(w, "branches:        %d (%d mispredicted)\n", d.Branches, d.BranchMispredicts)
		_, _ = fmt.Fprintf(w, "rob full:        %d\n", d.ROBFullStalls)
		_, _ = fmt.Fprintf(w, "rs full:         %d\n", d.RSFullStalls)
		_, _ = fmt.Fprintf(w, "dependency:      %d\n", d.DependencyStalls)
		_, _ = fmt.Fprintf(w, "load/store:      %d\n", d.LoadStoreStalls)
		_, _ = fmt.Fprintf(w, "squashed:        %d\n", d.SquashedCompletions)
		_, _ = fmt.Fprintf(w, "serializations:  %d\n", d.Serializations)
	default:
		return
	}
	if s.Predictor.Predictions > 0 {
		_, _ = fmt.Fprintf(w, "btb hit rate:    %.1f%%\n", s.Predictor.BTBHitRate())
	}

	if s.DCacheEnabled {
		_, _ = fmt.Fprintf(w, "dcache hit rate: %.1f%% (%d reads, %d writes)\n",
			s.DCache.HitRate()*100, s.DCache.Reads, s.DCache.Writes)
	}
}

func printSpeed(w io.Writer, s core.Stats, elapsed time.Duration) {
	_, _ = fmt.Fprintf(w, "wall time:       %v\n", elapsed)
	if secs := elapsed.Seconds(); secs > 0 {
		_, _ = fmt.Fprintf(w, "cycles/second:   %.0f\n", float64(s.Cycles)/secs)
	}
}

// startCPUProfile starts profiling into path and returns the function that
// stops it. An empty path disables profiling.
func startCPUProfile(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating CPU profile: %w", err)
	}

	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("starting CPU profile: %w", err)
	}

	return func() {
		pprof.StopCPUProfile()
		_ = f.Close()
	}, nil
}

func writeHeapProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating memory profile: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("writing memory profile: %w", err)
	}
	return nil
}
