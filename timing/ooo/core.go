package ooo

import (
	"fmt"
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
// decode reaches commit.
var ErrIllegalInstruction = emu.ErrIllegalInstruction

// Option is a functional option for configuring the Core.
type Option func(*Core)

// WithLogger sets the logger for recovery, serialization, and halt events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Core) {
		c.logger = logger
	}
}

// WithSyscallHandler sets a custom syscall handler.
func WithSyscallHandler(handler emu.SyscallHandler) Option {
	return func(c *Core) {
		c.syscallHandler = handler
	}
}

// WithOutput sets the writers behind the default syscall handler.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(c *Core) {
		c.stdout = stdout
		c.stderr = stderr
	}
}

// WithStdin sets the reader behind the default syscall handler.
func WithStdin(r io.Reader) Option {
	return func(c *Core) {
		c.stdin = r
	}
}

// WithLatencyTable sets the functional unit latencies.
func WithLatencyTable(table *latency.Table) Option {
	return func(c *Core) {
		c.latency = table
	}
}

// WithPredictor sets the branch predictor geometry.
func WithPredictor(config bpred.Config) Option {
	return func(c *Core) {
		c.predictor = bpred.New(config)
	}
}

// WithDCache enables the L1 data cache timing model. Loads then take the
// cache access latency instead of the configured load latency.
func WithDCache(config cache.Config) Option {
	return func(c *Core) {
		c.dcache = cache.New(config)
	}
}

// Core is an out-of-order superscalar core.
//
// Each cycle runs, in order: commit, pull (completed results into the
// reorder buffer and onto the bus), listen (stations consume the bus),
// execute, issue, decode, and fetch. Committing before issuing makes the
// capacity freed by commit visible to the same cycle's issue.
type Core struct {
	params Params

	regFile *emu.RegFile
	memory  *emu.Memory
	decoder *insts.Decoder

	status *RegisterStatus
	bus    *CommonDataBus
	rob    *ReorderBuffer

	aluRS  *ReservationStation
	faluRS *ReservationStation
	lsuRS  *ReservationStation
	lanes  []*lane

	// Front-end latches, oldest first.
	fetchLatch []*InstrContext
	issueLatch []*InstrContext

	predictor *bpred.Predictor
	latency   *latency.Table
	dcache    *cache.Cache

	syscallHandler emu.SyscallHandler
	stdin          io.Reader
	stdout         io.Writer
	stderr         io.Writer

	logger *slog.Logger

	pc          uint32
	nextSeq     uint64
	expectedSeq uint64

	stats Stats

	halted   bool
	exitCode int64
	err      error
}

// NewCore creates a core that commits into regFile and memory.
func NewCore(params Params, regFile *emu.RegFile, memory *emu.Memory, opts ...Option) *Core {
	c := &Core{
		params:  params,
		regFile: regFile,
		memory:  memory,
		decoder: insts.NewDecoder(),
		status:  NewRegisterStatus(),
		bus:     NewCommonDataBus(),
		rob:     NewReorderBuffer(params.ROBSize),
		aluRS:   NewReservationStation("ALU", params.ALURSSize),
		lsuRS:   NewReservationStation("LSU", params.LSURSSize),
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}

	c.lanes = append(c.lanes, newLane(UnitALU, c.aluRS))
	if params.FPLane {
		c.faluRS = NewReservationStation("FALU", params.FPURSSize)
		c.lanes = append(c.lanes, newLane(UnitFALU, c.faluRS))
	}
	c.lanes = append(c.lanes, newLane(UnitLSU, c.lsuRS))

	for _, opt := range opts {
		opt(c)
	}

	if c.predictor == nil {
		c.predictor = bpred.New(bpred.DefaultConfig())
	}
	if c.latency == nil {
		c.latency = latency.NewTable()
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.syscallHandler == nil {
		handler := emu.NewDefaultSyscallHandler(regFile, memory, c.stdout, c.stderr)
		handler.SetStdin(c.stdin)
		c.syscallHandler = handler
	}

	return c
}

// Params returns the core parameters.
func (c *Core) Params() Params {
	return c.params
}

// PC returns the fetch program counter.
func (c *Core) PC() uint32 {
	return c.pc
}

// SetPC redirects fetch and sets the architectural PC.
func (c *Core) SetPC(pc uint32) {
	c.pc = pc
	c.regFile.PC = pc
}

// Halted returns true once the core has committed an exit, a breakpoint,
// or an illegal instruction.
func (c *Core) Halted() bool {
	return c.halted
}

// ExitCode returns the exit code if the core has halted.
func (c *Core) ExitCode() int64 {
	return c.exitCode
}

// Err returns the reason the core halted abnormally, or nil.
func (c *Core) Err() error {
	return c.err
}

// Stats returns core statistics.
func (c *Core) Stats() Stats {
	return c.stats
}

// PredictorStats returns the branch predictor statistics.
func (c *Core) PredictorStats() bpred.Stats {
	return c.predictor.Stats()
}

// DCacheStats returns the data cache statistics, if the cache is enabled.
func (c *Core) DCacheStats() (cache.Statistics, bool) {
	if c.dcache == nil {
		return cache.Statistics{}, false
	}
	return c.dcache.Stats(), true
}

// RunCycles steps the core for up to cycles cycles.
// Returns true if still running, false if halted.
func (c *Core) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles && !c.halted; i++ {
		c.Step()
	}
	return !c.halted
}

// Step advances the core by exactly one cycle.
func (c *Core) Step() {
	if c.halted {
		return
	}

	c.stats.Cycles++

	c.commit()
	if c.halted {
		return
	}

	c.pull()
	c.listen()
	c.execute()
	c.issue()
	c.decode()
	c.fetch()
}

// Reset clears all microarchitectural state and statistics. The register
// file and memory are left to the caller.
func (c *Core) Reset() {
	c.status.Reset()
	c.bus.Reset()
	c.rob.Reset()
	for _, l := range c.lanes {
		l.station.Reset()
		l.reset()
	}

	c.fetchLatch = c.fetchLatch[:0]
	c.issueLatch = c.issueLatch[:0]

	c.predictor.Reset()
	if c.dcache != nil {
		c.dcache.Reset()
	}

	c.pc = 0
	c.nextSeq = 0
	c.expectedSeq = 0
	c.stats = Stats{}
	c.halted = false
	c.exitCode = 0
	c.err = nil
}

func (c *Core) commit() {
	c.rob.Commit(c.params.IssueWidth, committer{c})
}

// pull hands every completed instruction to the reorder buffer and
// broadcasts its result. A completion whose slot was squashed broadcasts a
// cleared dependency instead.
func (c *Core) pull() {
	for _, l := range c.lanes {
		instr := l.out
		if instr == nil {
			continue
		}
		l.out = nil

		if !c.rob.Push(instr) {
			c.stats.SquashedCompletions++
			if instr.Control.RegWrite {
				c.bus.Broadcast(instr.Tag, 0, true)
			}
			continue
		}

		if instr.Control.RegWrite {
			c.bus.Broadcast(instr.Tag, instr.Result(), false)
		}
	}
}

func (c *Core) listen() {
	for _, l := range c.lanes {
		l.station.ListenToBroadcast(c.bus)
	}
	c.bus.Reset()
}

func (c *Core) execute() {
	for _, l := range c.lanes {
		if l.idle() {
			if instr := c.selectReady(l); instr != nil {
				l.start(instr, c.run(instr))
			}
		}
		l.advance()
	}
}

// selectReady picks the next instruction for a lane. The ALU and FALU take
// any ready instruction; the LSU takes only the oldest, and a load waits
// while an older store has not committed.
func (c *Core) selectReady(l *lane) *InstrContext {
	if l.unit != UnitLSU {
		return l.station.GetReadyInstr()
	}

	head := l.station.PeekInorder()
	if head == nil || !head.ReadyToExec {
		return nil
	}
	if head.Control.MemRead && c.rob.HasOlderStore(head.Seq) {
		c.stats.LoadStoreStalls++
		return nil
	}

	return l.station.GetInorderInstr()
}

// run computes the results of instr and returns how many cycles it
// occupies its unit. Loads read memory here; stores write it at commit.
func (c *Core) run(instr *InstrContext) uint64 {
	ops := &instr.Operands
	out := emu.Compute(instr.Inst, instr.PC, ops[0].Value, ops[1].Value, ops[2].Value)

	instr.ALUOut = out.Value
	instr.Overflow = out.Overflow
	instr.FFlags = out.FFlags
	instr.MemAddr = out.Addr
	instr.StoreValue = out.StoreValue
	instr.BranchTaken = out.Taken
	instr.BranchTarget = out.Target

	cycles := c.latency.GetLatency(instr.Inst)

	if instr.Control.MemRead {
		instr.MemOut = emu.ExecuteLoad(c.memory, instr.Inst, instr.MemAddr)
		if c.dcache != nil {
			cycles = c.dcache.Read(instr.MemAddr).Latency
		}
	}

	return cycles
}

func (c *Core) issue() {
	if c.params.IssueWidth >= 3 {
		c.issueTriple()
		return
	}
	c.issueDual()
}

// decode moves fetched instructions into free issue latch slots.
func (c *Core) decode() {
	n := 0
	for _, instr := range c.fetchLatch {
		if len(c.issueLatch) >= c.params.IssueWidth {
			break
		}
		instr.decode(c.params.FPLane)
		c.issueLatch = append(c.issueLatch, instr)
		n++
	}
	c.fetchLatch = shift(c.fetchLatch, n)
}

// fetch fills the free fetch latch slots in program order. It stops after
// a branch predicted taken, redirecting the PC to its predicted target.
// jal is always taken and its target is known from the encoding.
func (c *Core) fetch() {
	for len(c.fetchLatch) < c.params.IssueWidth {
		pc := c.pc
		instr := newFetched(c.decoder, pc, c.memory.Read32(pc))

		switch {
		case instr.Inst.Op == insts.OpJAL:
			instr.PredictedTaken = true
			instr.PredictedTarget = pc + uint32(instr.Inst.Imm)
		case instr.Inst.IsBranch() || instr.Inst.Op == insts.OpJALR:
			pred := c.predictor.Predict(pc)
			if pred.Redirect() {
				instr.PredictedTaken = true
				instr.PredictedTarget = pred.Target
			}
		}

		c.fetchLatch = append(c.fetchLatch, instr)

		if instr.PredictedTaken {
			c.pc = instr.PredictedTarget
			return
		}
		c.pc = pc + 4
	}
}

func (c *Core) operandSource() OperandSource {
	return OperandSource{Regs: c.regFile, Status: c.status, ROB: c.rob}
}

func (c *Core) stationFor(instr *InstrContext) *ReservationStation {
	switch instr.Control.Unit {
	case UnitLSU:
		return c.lsuRS
	case UnitFALU:
		return c.faluRS
	}
	return c.aluRS
}

// reserve assigns the next sequence number and a reorder buffer slot.
func (c *Core) reserve(instr *InstrContext) {
	instr.Seq = c.nextSeq
	c.nextSeq++
	c.rob.Reserve(instr)
}

// committer is the architectural side of the reorder buffer's commit.
type committer struct {
	c *Core
}

func (w committer) ExpectedSeq() uint64 {
	return w.c.expectedSeq
}

func (w committer) WriteBack(instr *InstrContext) bool {
	return w.c.writeBack(instr)
}

// writeBack retires instr into the register file and memory. Branches are
// verified here; a misprediction or a system call flushes every younger
// instruction and stops this cycle's commit.
func (c *Core) writeBack(instr *InstrContext) bool {
	c.expectedSeq++
	ctrl := instr.Control

	if ctrl.Halt {
		if instr.Inst.Op == insts.OpUnknown {
			c.halt(0, fmt.Errorf("%w: 0x%08x at pc=0x%x", ErrIllegalInstruction, instr.Word, instr.PC))
		} else {
			c.regFile.PC = instr.PC
			c.halt(0, nil)
		}
		return false
	}

	if ctrl.Syscall {
		c.regFile.PC = instr.PC + 4
		res := c.syscallHandler.Handle()
		if res.Exited {
			c.halt(res.ExitCode, nil)
			return false
		}
		c.stats.InstrsRetired++
		c.stats.Serializations++
		c.logger.Debug("serialize", "pc", instr.PC, "seq", instr.Seq)
		c.squash(instr, instr.PC+4)
		return false
	}

	c.stats.InstrsRetired++

	if ctrl.MemWrite {
		emu.ExecuteStore(c.memory, instr.Inst, instr.MemAddr, instr.StoreValue)
		if c.dcache != nil {
			c.dcache.Write(instr.MemAddr)
		}
	}

	if ctrl.RegWrite {
		c.regFile.Write(instr.Inst.Rd, ctrl.RegWriteToFPR, instr.Result())
		c.status.EndDependency(instr.Inst.Rd, ctrl.RegWriteToFPR, instr.Tag)
	}

	c.regFile.AccrueFlags(instr.FFlags)
	c.regFile.PC = instr.NextPC()

	if !ctrl.Branch && !ctrl.Jump {
		return true
	}

	c.stats.Branches++
	c.predictor.Update(instr.PC, instr.BranchTaken, instr.BranchTarget)

	if !instr.Mispredicted() {
		return true
	}

	c.stats.BranchMispredicts++
	c.logger.Debug("mispredict",
		"pc", instr.PC,
		"seq", instr.Seq,
		"predicted_taken", instr.PredictedTaken,
		"taken", instr.BranchTaken,
		"target", instr.NextPC(),
	)
	c.squash(instr, instr.NextPC())

	return false
}

// squash discards every instruction younger than instr and restarts fetch
// at target. Instructions still inside a functional unit drain; their
// results are rejected by the reorder buffer.
func (c *Core) squash(instr *InstrContext, target uint32) {
	c.rob.ResetTailTillIdx(instr.Tag.Index)

	for _, l := range c.lanes {
		l.station.Flush(instr.Seq)
		if l.out != nil && l.out.Seq > instr.Seq {
			l.out = nil
			c.stats.SquashedCompletions++
		}
	}

	c.status.Squash(instr.Seq)

	c.fetchLatch = c.fetchLatch[:0]
	c.issueLatch = c.issueLatch[:0]

	c.expectedSeq = c.nextSeq
	c.pc = target
}

func (c *Core) halt(exitCode int64, err error) {
	c.halted = true
	c.exitCode = exitCode
	c.err = err
	c.logger.Debug("halt", "cycle", c.stats.Cycles, "exit_code", exitCode, "err", err)
}

// shift drops the first n entries of a latch, keeping its backing array.
func shift(latch []*InstrContext, n int) []*InstrContext {
	if n == 0 {
		return latch
	}
	m := copy(latch, latch[n:])
	for i := m; i < len(latch); i++ {
		latch[i] = nil
	}
	return latch[:m]
}
