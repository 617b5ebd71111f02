// Package core provides the simulated CPU core behind one control surface.
// It builds the microarchitecture a config.Config names, loads programs
// into it, steps it, and reports its state.
package core

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/xlab/treeprint"

	"github.com/sarchlab/rvsim/config"
	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/program"
	"github.com/sarchlab/rvsim/timing/bpred"
	"github.com/sarchlab/rvsim/timing/cache"
	"github.com/sarchlab/rvsim/timing/latency"
	"github.com/sarchlab/rvsim/timing/ooo"
	"github.com/sarchlab/rvsim/timing/pipeline"
)

// ErrUndoUnsupported is returned by Undo. The core keeps no history.
var ErrUndoUnsupported = errors.New("core: undo is not supported")

// ErrCycleLimit is returned by Run when the cycle bound is reached before
// the program halts.
var ErrCycleLimit = errors.New("core: cycle limit reached")

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Stalls is the number of issue and memory-order stalls.
	Stalls uint64
	// Flushes is the number of pipeline flushes: branch recoveries plus
	// system call serializations.
	Flushes uint64

	// Detail is the out-of-order breakdown. It is zero for the other
	// cores.
	Detail ooo.Stats

	// InOrder is the in-order pipeline breakdown. It is zero for the other
	// cores.
	InOrder pipeline.Statistics

	Predictor     bpred.Stats
	DCache        cache.Statistics
	DCacheEnabled bool
}

// CPI returns the cycles per retired instruction.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Option is a functional option for configuring the Core.
type Option func(*options)

type options struct {
	logger *slog.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// WithLogger sets the logger handed to the pipelined cores.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithOutput sets the writers behind the program's stdout and stderr.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(o *options) {
		o.stdout = stdout
		o.stderr = stderr
	}
}

// WithStdin sets the reader behind the program's stdin.
func WithStdin(r io.Reader) Option {
	return func(o *options) {
		o.stdin = r
	}
}

// Core represents a simulated CPU core. It wraps an out-of-order core, the
// in-order pipeline, or, for the single kind, the functional emulator
// stepping one instruction per cycle.
type Core struct {
	config *config.Config

	// OoO is the out-of-order core. It is nil for the other cores.
	OoO *ooo.Core

	// InOrder is the five-stage pipeline. It is nil for the other cores.
	InOrder *pipeline.Pipeline

	emulator *emu.Emulator

	// Shared resources
	regFile *emu.RegFile
	memory  *emu.Memory

	prog *program.Program

	// Single-cycle state
	cycles   uint64
	retired  uint64
	halted   bool
	exitCode int64
	err      error
}

// NewCore validates cfg and builds the core it describes.
func NewCore(cfg *config.Config, opts ...Option) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}

	o := &options{stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		opt(o)
	}

	c := &Core{config: cfg.Clone()}

	if cfg.Core == config.CoreSingle {
		c.emulator = emu.NewEmulator(
			emu.WithStdout(o.stdout),
			emu.WithStderr(o.stderr),
			emu.WithStdin(o.stdin),
		)
		c.regFile = c.emulator.RegFile()
		c.memory = c.emulator.Memory()
		return c, nil
	}

	c.regFile = &emu.RegFile{}
	c.memory = emu.NewMemory()

	if cfg.Core == config.CoreInOrder {
		c.InOrder = pipeline.NewPipeline(c.regFile, c.memory, pipelineOptions(cfg, o)...)
		return c, nil
	}

	oooOpts := []ooo.Option{
		ooo.WithOutput(o.stdout, o.stderr),
		ooo.WithStdin(o.stdin),
		ooo.WithLatencyTable(latency.NewTableWithConfig(cfg.Latency)),
		ooo.WithPredictor(cfg.Predictor),
	}
	if o.logger != nil {
		oooOpts = append(oooOpts, ooo.WithLogger(o.logger))
	}
	if cfg.DCache.Enabled {
		oooOpts = append(oooOpts, ooo.WithDCache(cfg.DCache.Config))
	}

	c.OoO = ooo.NewCore(paramsFor(cfg), c.regFile, c.memory, oooOpts...)

	return c, nil
}

func pipelineOptions(cfg *config.Config, o *options) []pipeline.PipelineOption {
	opts := []pipeline.PipelineOption{
		pipeline.WithOutput(o.stdout, o.stderr),
		pipeline.WithStdin(o.stdin),
		pipeline.WithLatencyTable(latency.NewTableWithConfig(cfg.Latency)),
	}
	if o.logger != nil {
		opts = append(opts, pipeline.WithLogger(o.logger))
	}
	if cfg.InOrder.BranchPrediction {
		opts = append(opts, pipeline.WithPredictor(cfg.Predictor))
	} else {
		opts = append(opts, pipeline.WithoutBranchPrediction())
	}
	if !cfg.InOrder.Forwarding {
		opts = append(opts, pipeline.WithoutForwarding())
	}
	if cfg.DCache.Enabled {
		opts = append(opts, pipeline.WithDCache(cfg.DCache.Config))
	}
	return opts
}

func paramsFor(cfg *config.Config) ooo.Params {
	return ooo.Params{
		IssueWidth: cfg.Core.IssueWidth(),
		FPLane:     cfg.Core == config.CoreTriple,
		ROBSize:    cfg.ROBSize,
		ALURSSize:  cfg.ALURSSize,
		FPURSSize:  cfg.FPURSSize,
		LSURSSize:  cfg.LSURSSize,
	}
}

// Config returns a copy of the configuration the core was built from.
func (c *Core) Config() *config.Config {
	return c.config.Clone()
}

// RegFile returns the architectural register file.
func (c *Core) RegFile() *emu.RegFile {
	return c.regFile
}

// Memory returns the simulated memory.
func (c *Core) Memory() *emu.Memory {
	return c.memory
}

// Load clears the machine and installs prog: text, data, stack pointer,
// and entry point. A program without a data base is laid out from the
// configured one.
func (c *Core) Load(prog *program.Program) error {
	p := *prog
	if p.DataBase == 0 {
		p.DataBase = c.config.DataBase
	}
	if p.InitialSP == 0 {
		p.InitialSP = program.DefaultStackTop
	}

	c.clear()

	if err := p.Load(c.memory); err != nil {
		return fmt.Errorf("core: load program: %w", err)
	}
	c.regFile.WriteReg(emu.RegSP, p.InitialSP)
	c.SetPC(p.Entry)

	c.prog = &p

	return nil
}

// SetPC sets the program counter.
func (c *Core) SetPC(pc uint32) {
	switch {
	case c.OoO != nil:
		c.OoO.SetPC(pc)
	case c.InOrder != nil:
		c.InOrder.SetPC(pc)
	default:
		c.regFile.PC = pc
	}
}

// PC returns the architectural program counter.
func (c *Core) PC() uint32 {
	return c.regFile.PC
}

// Step executes one cycle.
func (c *Core) Step() {
	if c.OoO != nil {
		c.OoO.Step()
		return
	}
	if c.InOrder != nil {
		c.InOrder.Tick()
		return
	}

	if c.halted {
		return
	}

	c.cycles++
	res := c.emulator.Step()

	switch {
	case res.Err != nil:
		c.halt(0, res.Err)
	case res.Exited:
		c.halt(res.ExitCode, nil)
	case res.Halted:
		c.halt(0, nil)
	default:
		c.retired++
	}
}

func (c *Core) halt(exitCode int64, err error) {
	c.halted = true
	c.exitCode = exitCode
	c.err = err
}

// Halted returns true once the program has exited, hit a breakpoint, or
// committed an illegal instruction.
func (c *Core) Halted() bool {
	switch {
	case c.OoO != nil:
		return c.OoO.Halted()
	case c.InOrder != nil:
		return c.InOrder.Halted()
	}
	return c.halted
}

// ExitCode returns the exit code if the core has halted.
func (c *Core) ExitCode() int64 {
	switch {
	case c.OoO != nil:
		return c.OoO.ExitCode()
	case c.InOrder != nil:
		return c.InOrder.ExitCode()
	}
	return c.exitCode
}

// Err returns the reason the core halted abnormally, or nil.
func (c *Core) Err() error {
	switch {
	case c.OoO != nil:
		return c.OoO.Err()
	case c.InOrder != nil:
		return c.InOrder.Err()
	}
	return c.err
}

// RunCycles executes the core for the specified number of cycles.
// Returns true if still running, false if halted.
func (c *Core) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles && !c.Halted(); i++ {
		c.Step()
	}
	return !c.Halted()
}

// Run executes the core until it halts or maxCycles have been simulated.
// A maxCycles of 0 means no bound. It returns the exit code.
func (c *Core) Run(maxCycles uint64) (int64, error) {
	for !c.Halted() {
		if maxCycles > 0 && c.cycleCount() >= maxCycles {
			return 0, fmt.Errorf("%w after %d cycles", ErrCycleLimit, maxCycles)
		}
		c.Step()
	}

	return c.ExitCode(), c.Err()
}

func (c *Core) cycleCount() uint64 {
	switch {
	case c.OoO != nil:
		return c.OoO.Stats().Cycles
	case c.InOrder != nil:
		return c.InOrder.Stats().Cycles
	}
	return c.cycles
}

// Undo would step the core back one cycle. It is not supported.
func (c *Core) Undo() error {
	return ErrUndoUnsupported
}

// Reset clears all core state and reinstalls the loaded program, if any.
func (c *Core) Reset() error {
	if c.prog == nil {
		c.clear()
		return nil
	}
	return c.Load(c.prog)
}

// clear resets the register file and memory in place, so the syscall
// handlers stay bound to them, along with every microarchitectural
// structure and statistic.
func (c *Core) clear() {
	if c.OoO != nil || c.InOrder != nil {
		if c.OoO != nil {
			c.OoO.Reset()
		} else {
			c.InOrder.Reset()
		}
		c.regFile.Reset()
		c.memory.Reset()
		return
	}

	c.emulator.Reset()
	c.cycles = 0
	c.retired = 0
	c.halted = false
	c.exitCode = 0
	c.err = nil
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	if c.InOrder != nil {
		s := c.InOrder.Stats()
		stats := Stats{
			Cycles:       s.Cycles,
			Instructions: s.Instructions,
			Stalls:       s.Stalls,
			Flushes:      s.Flushes,
			InOrder:      s,
			Predictor:    c.InOrder.PredictorStats(),
		}
		stats.DCache, stats.DCacheEnabled = c.InOrder.DCacheStats()
		return stats
	}
	if c.OoO == nil {
		return Stats{Cycles: c.cycles, Instructions: c.retired}
	}

	s := c.OoO.Stats()
	stats := Stats{
		Cycles:       s.Cycles,
		Instructions: s.InstrsRetired,
		Stalls:       s.ROBFullStalls + s.RSFullStalls + s.DependencyStalls + s.LoadStoreStalls,
		Flushes:      s.BranchMispredicts + s.Serializations,
		Detail:       s,
		Predictor:    c.OoO.PredictorStats(),
	}
	stats.DCache, stats.DCacheEnabled = c.OoO.DCacheStats()

	return stats
}

// Report renders the pipeline latches, reservation stations, and reorder
// buffer as a tree.
func (c *Core) Report() string {
	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("%s core, cycle %d, pc 0x%08x",
		c.config.Core, c.Stats().Cycles, c.PC()))

	if c.InOrder != nil {
		latches := tree.AddBranch("latches")
		for _, l := range c.InOrder.Latches() {
			latches.AddMetaNode(l.Name, l.String())
		}
		c.reportStats(tree)
		return tree.String()
	}

	if c.OoO == nil {
		c.reportStats(tree)
		return tree.String()
	}

	latches := tree.AddBranch("latches")
	for _, l := range c.OoO.Latches() {
		b := latches.AddBranch(l.Name)
		for _, instr := range l.Instrs {
			b.AddNode(instr.String())
		}
	}

	stations := tree.AddBranch("stations")
	for _, v := range c.OoO.Stations() {
		used := 0
		for _, instr := range v.Instrs {
			if !instr.Illegal {
				used++
			}
		}

		b := stations.AddBranch(fmt.Sprintf("%s %d/%d", v.Name, used, len(v.Instrs)))
		for _, instr := range v.Instrs {
			if instr.Illegal {
				continue
			}
			b.AddMetaNode(readiness(instr), fmt.Sprintf("%s %s", instr.Tag, instr))
		}
	}

	rob := c.OoO.ROBView()
	robBranch := tree.AddBranch(fmt.Sprintf("rob head=%d tail=%d free=%d",
		rob.Head, rob.Tail, rob.Free))
	for i, instr := range rob.Instrs {
		if instr.Illegal {
			continue
		}
		state := "pending"
		if rob.Ready[i] {
			state = "ready"
		}
		robBranch.AddMetaNode(i, fmt.Sprintf("%s seq=%d %s", state, instr.Seq, instr))
	}

	c.reportStats(tree)

	return tree.String()
}

func readiness(instr *ooo.InstrContext) string {
	if instr.ReadyToExec {
		return "ready"
	}

	waiting := ""
	for _, op := range instr.Operands {
		if op.Waiting {
			waiting += " " + op.Producer.String()
		}
	}
	return "wait" + waiting
}

func (c *Core) reportStats(tree treeprint.Tree) {
	s := c.Stats()
	b := tree.AddBranch("stats")
	b.AddMetaNode("retired", s.Instructions)
	b.AddMetaNode("cpi", fmt.Sprintf("%.3f", s.CPI()))

	if c.InOrder != nil {
		b.AddMetaNode("branches", s.InOrder.BranchPredictions)
		b.AddMetaNode("mispredicts", s.InOrder.BranchMispredictions)
		b.AddMetaNode("stalls", s.Stalls)
		b.AddMetaNode("flushes", s.Flushes)
		b.AddMetaNode("load-use", s.InOrder.LoadUseStalls)
		return
	}
	if c.OoO == nil {
		return
	}

	b.AddMetaNode("branches", s.Detail.Branches)
	b.AddMetaNode("mispredicts", s.Detail.BranchMispredicts)
	b.AddMetaNode("stalls", s.Stalls)
	b.AddMetaNode("flushes", s.Flushes)
	b.AddMetaNode("squashed", s.Detail.SquashedCompletions)
}
