package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/rvsim/benchmarks"
	"github.com/sarchlab/rvsim/config"
)

func newBenchCmd(flags *globalFlags) *cobra.Command {
	var (
		csvOutput  bool
		jsonOutput bool
		quick      bool
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the built-in microbenchmarks on every core",
		Long: `Run the built-in microbenchmarks and report cycles, CPI, stalls, and
branch prediction for each core. With --core only that core is measured.
A --config file shapes every core that runs; otherwise each core uses its
own defaults.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if csvOutput && jsonOutput {
				return fmt.Errorf("--csv and --json are mutually exclusive")
			}

			base, err := flags.loadConfig()
			if err != nil {
				return err
			}

			hc := benchmarks.DefaultConfig()
			if flags.configPath != "" {
				hc.Base = base
			}
			hc.EnableDCache = base.DCache.Enabled
			hc.Output = cmd.OutOrStdout()
			if flags.core != "" {
				hc.Cores = []config.CoreKind{base.Core}
			}
			if base.MaxCycles > 0 {
				hc.MaxCycles = base.MaxCycles
			}

			harness := benchmarks.NewHarness(hc)
			if quick {
				harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
			} else {
				harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
			}

			results := harness.RunAll()

			switch {
			case csvOutput:
				harness.PrintCSV(results)
			case jsonOutput:
				return harness.PrintJSON(results)
			default:
				harness.PrintResults(results)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&csvOutput, "csv", false, "output results in CSV format")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output results as JSON")
	cmd.Flags().BoolVar(&quick, "quick", false, "run only the loop, matrix, and branch benchmarks")

	return cmd
}
