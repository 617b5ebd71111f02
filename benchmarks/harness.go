// Package benchmarks provides timing benchmark infrastructure for comparing
// the rvsim cores.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sarchlab/rvsim/config"
	"github.com/sarchlab/rvsim/program"
	"github.com/sarchlab/rvsim/timing/core"
)

// DefaultMaxCycles bounds each benchmark run.
const DefaultMaxCycles = 1_000_000

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// Core is the microarchitecture the benchmark ran on
	Core config.CoreKind `json:"core"`

	// SimulatedCycles is the total cycle count from the timing simulator
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of completed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi"`

	// ROBFullStalls, RSFullStalls, DependencyStalls, and LoadStoreStalls
	// break down the issue stalls of the out-of-order cores.
	ROBFullStalls    uint64 `json:"rob_full_stalls"`
	RSFullStalls     uint64 `json:"rs_full_stalls"`
	DependencyStalls uint64 `json:"dependency_stalls"`
	LoadStoreStalls  uint64 `json:"load_store_stalls"`

	// LoadUseStalls and ExecStalls break down the front-end stalls of the
	// in-order pipeline.
	LoadUseStalls uint64 `json:"load_use_stalls,omitempty"`
	ExecStalls    uint64 `json:"exec_stalls,omitempty"`

	// PipelineFlushes is the number of pipeline flushes
	PipelineFlushes uint64 `json:"pipeline_flushes"`

	// DCacheHits/Misses (if cache enabled)
	DCacheHits   uint64 `json:"dcache_hits,omitempty"`
	DCacheMisses uint64 `json:"dcache_misses,omitempty"`

	// Branch predictor stats
	BranchPredictions     uint64  `json:"branch_predictions,omitempty"`
	BranchCorrect         uint64  `json:"branch_correct,omitempty"`
	BranchMispredictions  uint64  `json:"branch_mispredictions,omitempty"`
	BranchAccuracyPercent float64 `json:"branch_accuracy_percent,omitempty"`

	// ExitCode is the program's exit code
	ExitCode int64 `json:"exit_code"`

	// Error is set when the run stopped abnormally
	Error string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Passed reports whether the run halted normally with the given exit code.
func (r BenchmarkResult) Passed(expected int64) bool {
	return r.Error == "" && r.ExitCode == expected
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Program builds the RV32 program to execute. It is called once per
	// run so that every run starts from a fresh image.
	Program func() *program.Program

	// ExpectedExit is the expected exit code (for validation)
	ExpectedExit int64
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Cores lists the microarchitectures every benchmark runs on
	Cores []config.CoreKind

	// Base is the configuration each core is derived from. Its Core field
	// is overridden per run. Nil means the per-core defaults.
	Base *config.Config

	// EnableDCache enables data cache simulation
	EnableDCache bool

	// MaxCycles bounds each run (default: DefaultMaxCycles)
	MaxCycles uint64

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Cores:     []config.CoreKind{config.CoreSingle, config.CoreInOrder, config.CoreDual, config.CoreTriple},
		MaxCycles: DefaultMaxCycles,
		Output:    os.Stdout,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.MaxCycles == 0 {
		config.MaxCycles = DefaultMaxCycles
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes every benchmark on every configured core and returns the
// results, grouped by benchmark.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks)*len(h.config.Cores))

	for _, bench := range h.benchmarks {
		for _, kind := range h.config.Cores {
			result := h.runBenchmark(bench, kind)
			if h.config.Verbose {
				_, _ = fmt.Fprintf(h.config.Output, "ran %s on %s: %d cycles\n",
					bench.Name, kind, result.SimulatedCycles)
			}
			results = append(results, result)
		}
	}

	return results
}

func (h *Harness) coreConfig(kind config.CoreKind) *config.Config {
	var cfg *config.Config
	if h.config.Base != nil {
		cfg = h.config.Base.Clone()
		cfg.Core = kind
	} else {
		cfg = config.DefaultFor(kind)
	}

	if h.config.EnableDCache {
		cfg.DCache.Enabled = true
	}

	return cfg
}

// runBenchmark executes a single benchmark on one core.
func (h *Harness) runBenchmark(bench Benchmark, kind config.CoreKind) BenchmarkResult {
	result := BenchmarkResult{
		Name:        bench.Name,
		Description: bench.Description,
		Core:        kind,
	}

	c, err := core.NewCore(h.coreConfig(kind),
		core.WithOutput(io.Discard, io.Discard))
	if err == nil {
		err = c.Load(bench.Program())
	}
	if err != nil {
		result.Error = err.Error()
		return result
	}

	start := time.Now()
	exitCode, err := c.Run(h.config.MaxCycles)
	result.WallTime = time.Since(start)
	if err != nil {
		result.Error = err.Error()
	}

	stats := c.Stats()
	result.SimulatedCycles = stats.Cycles
	result.InstructionsRetired = stats.Instructions
	result.CPI = stats.CPI()
	result.ROBFullStalls = stats.Detail.ROBFullStalls
	result.RSFullStalls = stats.Detail.RSFullStalls
	result.DependencyStalls = stats.Detail.DependencyStalls
	result.LoadStoreStalls = stats.Detail.LoadStoreStalls
	result.LoadUseStalls = stats.InOrder.LoadUseStalls
	result.ExecStalls = stats.InOrder.ExecStalls
	result.PipelineFlushes = stats.Flushes
	result.ExitCode = exitCode

	if stats.DCacheEnabled {
		result.DCacheHits = stats.DCache.Hits
		result.DCacheMisses = stats.DCache.Misses
	}

	result.BranchPredictions = stats.Predictor.Predictions
	result.BranchCorrect = stats.Predictor.Correct
	result.BranchMispredictions = stats.Predictor.Mispredictions
	result.BranchAccuracyPercent = stats.Predictor.Accuracy()

	return result
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	w := h.config.Output
	_, _ = fmt.Fprintln(w, "=== rvsim Timing Benchmark Results ===")
	_, _ = fmt.Fprintln(w, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(w, "Benchmark: %s (%s core)\n", r.Name, r.Core)
		_, _ = fmt.Fprintf(w, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(w, "  Exit Code: %d\n", r.ExitCode)
		if r.Error != "" {
			_, _ = fmt.Fprintf(w, "  Error: %s\n", r.Error)
		}
		_, _ = fmt.Fprintln(w, "  --- Timing ---")
		_, _ = fmt.Fprintf(w, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(w, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(w, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(w, "  ROB Full Stalls:      %d\n", r.ROBFullStalls)
		_, _ = fmt.Fprintf(w, "  RS Full Stalls:       %d\n", r.RSFullStalls)
		_, _ = fmt.Fprintf(w, "  Dependency Stalls:    %d\n", r.DependencyStalls)
		_, _ = fmt.Fprintf(w, "  Load/Store Stalls:    %d\n", r.LoadStoreStalls)
		if r.Core == config.CoreInOrder {
			_, _ = fmt.Fprintf(w, "  Load-Use Stalls:      %d\n", r.LoadUseStalls)
			_, _ = fmt.Fprintf(w, "  Exec Stalls:          %d\n", r.ExecStalls)
		}
		_, _ = fmt.Fprintf(w, "  Pipeline Flushes:     %d\n", r.PipelineFlushes)

		if r.DCacheHits > 0 || r.DCacheMisses > 0 {
			_, _ = fmt.Fprintln(w, "  --- D-Cache ---")
			_, _ = fmt.Fprintf(w, "  Hits:   %d\n", r.DCacheHits)
			_, _ = fmt.Fprintf(w, "  Misses: %d\n", r.DCacheMisses)
		}

		if r.BranchPredictions > 0 {
			_, _ = fmt.Fprintln(w, "  --- Branch Predictor ---")
			_, _ = fmt.Fprintf(w, "  Predictions:     %d\n", r.BranchPredictions)
			_, _ = fmt.Fprintf(w, "  Correct:         %d\n", r.BranchCorrect)
			_, _ = fmt.Fprintf(w, "  Mispredictions:  %d\n", r.BranchMispredictions)
			_, _ = fmt.Fprintf(w, "  Accuracy:        %.1f%%\n", r.BranchAccuracyPercent)
		}

		_, _ = fmt.Fprintf(w, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(w, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,core,cycles,instructions,cpi,rob_full,rs_full,dependency,load_store,flushes,dcache_hits,dcache_misses,mispredictions,exit_code")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%s,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%d,%d,%d\n",
			r.Name,
			r.Core,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.ROBFullStalls,
			r.RSFullStalls,
			r.DependencyStalls,
			r.LoadStoreStalls,
			r.PipelineFlushes,
			r.DCacheHits,
			r.DCacheMisses,
			r.BranchMispredictions,
			r.ExitCode,
		)
	}
}

// PrintJSON outputs benchmark results as an indented JSON array.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	enc := json.NewEncoder(h.config.Output)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
