package pipeline

import (
	"io"
	"log/slog"
	"os"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/timing/bpred"
	"github.com/sarchlab/rvsim/timing/cache"
	"github.com/sarchlab/rvsim/timing/latency"
)

// ErrIllegalInstruction is the halt reason when an instruction that does not
// decode reaches the memory stage.
var ErrIllegalInstruction = emu.ErrIllegalInstruction

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions completed (retired).
	Instructions uint64
	// Stalls is the number of cycles the front end was held.
	Stalls uint64
	// Flushes is the number of pipeline flushes: branch mispredictions
	// plus system call serializations.
	Flushes uint64
	// ExecStalls is the number of stalls due to multi-cycle execution.
	ExecStalls uint64
	// MemStalls is the number of stalls due to data cache latency.
	MemStalls uint64
	// DataHazards is the number of RAW hazards: instructions that took a
	// forwarded operand or, without forwarding, decode bubbles.
	DataHazards uint64
	// LoadUseStalls is the number of bubbles inserted behind a load.
	LoadUseStalls uint64
	// BranchPredictions is the number of branches and jumps resolved.
	BranchPredictions uint64
	// BranchCorrect is the number of resolved branches fetch had followed.
	BranchCorrect uint64
	// BranchMispredictions is the number of branch mispredictions.
	BranchMispredictions uint64
	// Serializations is the number of system calls that restarted fetch.
	Serializations uint64
}

// CPI returns the cycles per instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the logger for recovery, serialization, and halt events.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithSyscallHandler sets a custom syscall handler.
func WithSyscallHandler(handler emu.SyscallHandler) PipelineOption {
	return func(p *Pipeline) {
		p.syscallHandler = handler
	}
}

// WithOutput sets the writers behind the default syscall handler.
func WithOutput(stdout, stderr io.Writer) PipelineOption {
	return func(p *Pipeline) {
		p.stdout = stdout
		p.stderr = stderr
	}
}

// WithStdin sets the reader behind the default syscall handler.
func WithStdin(r io.Reader) PipelineOption {
	return func(p *Pipeline) {
		p.stdin = r
	}
}

// WithLatencyTable sets a custom latency table for instruction timing.
// Multi-cycle operations hold the execute stage and stall the front end.
func WithLatencyTable(table *latency.Table) PipelineOption {
	return func(p *Pipeline) {
		p.latencyTable = table
	}
}

// WithPredictor sets the branch predictor geometry.
func WithPredictor(config bpred.Config) PipelineOption {
	return func(p *Pipeline) {
		p.branchPredictor = bpred.New(config)
	}
}

// WithoutBranchPrediction makes fetch always continue sequentially. Every
// taken branch and jump then flushes the front end.
func WithoutBranchPrediction() PipelineOption {
	return func(p *Pipeline) {
		p.noPrediction = true
	}
}

// WithoutForwarding disables the bypass paths. A consumer waits in decode
// until its producers have written back.
func WithoutForwarding() PipelineOption {
	return func(p *Pipeline) {
		p.noForwarding = true
	}
}

// WithDCache enables the L1 data cache timing model. Loads and stores then
// hold the memory stage for the cache access latency.
func WithDCache(config cache.Config) PipelineOption {
	return func(p *Pipeline) {
		p.dcache = cache.New(config)
	}
}

// Pipeline implements a 5-stage in-order pipelined CPU model.
// Stages: Fetch (IF) -> Decode (ID) -> Execute (EX) -> Memory (MEM) -> Writeback (WB)
type Pipeline struct {
	// Pipeline registers
	ifid  IFIDRegister
	idex  IDEXRegister
	exmem EXMEMRegister
	memwb MEMWBRegister

	decoder    *insts.Decoder
	hazardUnit *HazardUnit

	branchPredictor *bpred.Predictor
	noPrediction    bool
	noForwarding    bool

	// Instruction timing
	latencyTable *latency.Table
	exLatency    uint64 // Remaining cycles for execute stage
	dcache       *cache.Cache
	memLatency   uint64 // Remaining cycles for memory stage

	// Shared resources
	regFile *emu.RegFile
	memory  *emu.Memory

	syscallHandler emu.SyscallHandler
	stdin          io.Reader
	stdout         io.Writer
	stderr         io.Writer

	logger *slog.Logger

	// Fetch program counter
	pc uint32

	stats Statistics

	halted   bool
	exitCode int64
	err      error
}

// NewPipeline creates a new 5-stage pipeline that writes back into regFile
// and memory.
func NewPipeline(regFile *emu.RegFile, memory *emu.Memory, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		decoder:    insts.NewDecoder(),
		hazardUnit: NewHazardUnit(),
		regFile:    regFile,
		memory:     memory,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.noPrediction {
		p.branchPredictor = nil
	} else if p.branchPredictor == nil {
		p.branchPredictor = bpred.New(bpred.DefaultConfig())
	}
	if p.latencyTable == nil {
		p.latencyTable = latency.NewTable()
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	if p.syscallHandler == nil {
		handler := emu.NewDefaultSyscallHandler(regFile, memory, p.stdout, p.stderr)
		handler.SetStdin(p.stdin)
		p.syscallHandler = handler
	}

	return p
}

// PC returns the fetch program counter.
func (p *Pipeline) PC() uint32 {
	return p.pc
}

// SetPC redirects fetch and sets the architectural PC.
func (p *Pipeline) SetPC(pc uint32) {
	p.pc = pc
	p.regFile.PC = pc
}

// GetIFID returns the IF/ID pipeline register.
func (p *Pipeline) GetIFID() *IFIDRegister {
	return &p.ifid
}

// GetIDEX returns the ID/EX pipeline register.
func (p *Pipeline) GetIDEX() *IDEXRegister {
	return &p.idex
}

// GetEXMEM returns the EX/MEM pipeline register.
func (p *Pipeline) GetEXMEM() *EXMEMRegister {
	return &p.exmem
}

// GetMEMWB returns the MEM/WB pipeline register.
func (p *Pipeline) GetMEMWB() *MEMWBRegister {
	return &p.memwb
}

// Latches returns a view of every pipeline register, front to back.
func (p *Pipeline) Latches() []Latch {
	ifid := Latch{Name: "IF/ID", Valid: p.ifid.Valid, PC: p.ifid.PC}
	if ifid.Valid {
		ifid.Inst = p.decoder.Decode(p.ifid.InstructionWord)
	}

	return []Latch{
		ifid,
		{Name: "ID/EX", Valid: p.idex.Valid, PC: p.idex.PC, Inst: p.idex.Inst},
		{Name: "EX/MEM", Valid: p.exmem.Valid, PC: p.exmem.PC, Inst: p.exmem.Inst},
		{Name: "MEM/WB", Valid: p.memwb.Valid, PC: p.memwb.PC, Inst: p.memwb.Inst},
	}
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	return p.stats
}

// PredictorStats returns the branch predictor statistics. They are zero
// when branch prediction is disabled.
func (p *Pipeline) PredictorStats() bpred.Stats {
	if p.branchPredictor == nil {
		return bpred.Stats{}
	}
	return p.branchPredictor.Stats()
}

// DCacheStats returns the data cache statistics, if the cache is enabled.
func (p *Pipeline) DCacheStats() (cache.Statistics, bool) {
	if p.dcache == nil {
		return cache.Statistics{}, false
	}
	return p.dcache.Stats(), true
}

// Halted returns true once an exit, a breakpoint, or an illegal
// instruction has reached the memory stage.
func (p *Pipeline) Halted() bool {
	return p.halted
}

// ExitCode returns the exit code if the pipeline has halted.
func (p *Pipeline) ExitCode() int64 {
	return p.exitCode
}

// Err returns the reason the pipeline halted abnormally, or nil.
func (p *Pipeline) Err() error {
	return p.err
}

// Run executes the pipeline until it halts.
// Returns the exit code.
func (p *Pipeline) Run() int64 {
	for !p.halted {
		p.Tick()
	}
	return p.exitCode
}

// RunCycles executes the pipeline for the specified number of cycles.
// Returns true if still running, false if halted.
func (p *Pipeline) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles && !p.halted; i++ {
		p.Tick()
	}
	return !p.halted
}

// Tick executes one pipeline cycle.
//
// Stages are evaluated in reverse order (WB, MEM, EX, ID, IF) to compute new
// values before latching them into pipeline registers at cycle end. WB
// writes the register file before ID reads it.
//
// Hazard handling:
//   - Forwarding from EX/MEM and MEM/WB resolves RAW hazards; only a load
//     followed by a consumer stalls, for one cycle. Without forwarding a
//     consumer waits in decode until its producers have written back.
//   - Branches are predicted at fetch and resolved in EX; a misprediction
//     flushes IF and ID.
//   - A system call runs in MEM, after every older instruction has written
//     back, and restarts fetch behind itself.
func (p *Pipeline) Tick() {
	if p.halted {
		return
	}

	p.stats.Cycles++

	// Detect hazards between ID/EX, EX/MEM and the instruction in IF/ID
	// before any stage moves.
	var next *insts.Instruction
	hazard := false
	if p.ifid.Valid {
		next = p.decoder.Decode(p.ifid.InstructionWord)
		hazard = p.detectHazard(next)
	}

	// Stage 5: Writeback
	savedMEMWB := p.memwb
	p.writeback()

	// Stage 4: Memory
	nextMEMWB, memStall, serialize := p.memoryStage()
	if p.halted {
		return
	}

	// Stage 3: Execute
	var nextEXMEM EXMEMRegister
	execStall := false
	mispredicted := false
	var redirect uint32
	if !memStall && !serialize {
		nextEXMEM, execStall, mispredicted, redirect = p.executeStage(&savedMEMWB)
	}
	if serialize {
		redirect = p.exmem.PC + 4
	}

	stalls := p.hazardUnit.ComputeStalls(hazard || execStall || memStall, mispredicted || serialize)

	// Stage 1: Fetch
	var nextIFID IFIDRegister
	switch {
	case stalls.FlushIF:
	case stalls.StallIF:
		nextIFID = p.ifid
		p.stats.Stalls++
	default:
		nextIFID = p.fetchStage()
	}

	// Stage 2: Decode
	var nextIDEX IDEXRegister
	switch {
	case stalls.FlushID:
	case execStall || memStall:
		nextIDEX = p.idex
	case stalls.InsertBubbleEX:
		if p.noForwarding {
			p.stats.DataHazards++
		} else {
			p.stats.LoadUseStalls++
		}
	case p.ifid.Valid:
		nextIDEX = p.decodeStage(next)
	}

	if mispredicted || serialize {
		p.pc = redirect
		p.exLatency = 0
		p.stats.Flushes++
	}

	if memStall {
		p.memwb.Clear()
	} else {
		p.memwb = nextMEMWB
		if execStall {
			p.exmem.Clear()
		} else {
			p.exmem = nextEXMEM
		}
	}
	p.idex = nextIDEX
	p.ifid = nextIFID

	// A held ID/EX register missed this cycle's writeback.
	if memStall && p.idex.Valid && p.exLatency == 0 {
		p.readOperands(&p.idex)
	}
}

// detectHazard reports whether next must wait in decode this cycle.
func (p *Pipeline) detectHazard(next *insts.Instruction) bool {
	if p.noForwarding {
		return p.hazardUnit.DetectDataHazard(next, &p.idex, &p.exmem)
	}
	return p.hazardUnit.DetectLoadUseHazard(&p.idex, next)
}

// Reset clears all microarchitectural state and statistics. The register
// file and memory are left to the caller.
func (p *Pipeline) Reset() {
	p.ifid.Clear()
	p.idex.Clear()
	p.exmem.Clear()
	p.memwb.Clear()

	if p.branchPredictor != nil {
		p.branchPredictor.Reset()
	}
	if p.dcache != nil {
		p.dcache.Reset()
	}

	p.exLatency = 0
	p.memLatency = 0
	p.pc = 0
	p.stats = Statistics{}
	p.halted = false
	p.exitCode = 0
	p.err = nil
}

func (p *Pipeline) halt(exitCode int64, err error) {
	p.halted = true
	p.exitCode = exitCode
	p.err = err
	p.logger.Debug("halt", "cycle", p.stats.Cycles, "exit_code", exitCode, "err", err)
}
