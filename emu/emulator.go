package emu

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/rvsim/insts"
)

// ErrIllegalInstruction is returned when the fetched word does not decode.
var ErrIllegalInstruction = errors.New("emu: illegal instruction")

// ErrMaxInstructions is returned when the instruction limit is reached.
var ErrMaxInstructions = errors.New("emu: max instructions reached")

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Exited is true if the program terminated (via exit syscall).
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int64

	// Halted is true if execution stopped at an ebreak.
	Halted bool

	// Err is set if an error occurred during execution.
	Err error
}

// Emulator executes RISC-V instructions functionally, one per step. It is
// the reference the timing cores are checked against.
type Emulator struct {
	regFile        *RegFile
	memory         *Memory
	decoder        *insts.Decoder
	syscallHandler SyscallHandler

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.stdout = w
	}
}

// WithStderr sets a custom stderr writer.
func WithStderr(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.stderr = w
	}
}

// WithStdin sets the reader backing the read syscall.
func WithStdin(r io.Reader) EmulatorOption {
	return func(e *Emulator) {
		e.stdin = r
	}
}

// WithSyscallHandler sets a custom syscall handler.
func WithSyscallHandler(handler SyscallHandler) EmulatorOption {
	return func(e *Emulator) {
		e.syscallHandler = handler
	}
}

// WithStackPointer sets the initial value of sp (x2).
func WithStackPointer(sp uint32) EmulatorOption {
	return func(e *Emulator) {
		e.regFile.WriteReg(RegSP, sp)
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// NewEmulator creates a new RISC-V emulator.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		regFile: &RegFile{},
		memory:  NewMemory(),
		decoder: insts.NewDecoder(),
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.syscallHandler == nil {
		handler := NewDefaultSyscallHandler(e.regFile, e.memory, e.stdout, e.stderr)
		handler.SetStdin(e.stdin)
		e.syscallHandler = handler
	}

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// LoadProgram copies code into memory at entry and sets the PC there.
func (e *Emulator) LoadProgram(entry uint32, code []byte) {
	e.memory.LoadBytes(entry, code)
	e.regFile.PC = entry
}

// Reset clears registers, memory, and the instruction count. The register
// file and memory are reset in place so the syscall handler stays bound.
func (e *Emulator) Reset() {
	e.regFile.Reset()
	e.memory.Reset()
	e.instructionCount = 0
}

// Step executes a single instruction.
func (e *Emulator) Step() StepResult {
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{Err: ErrMaxInstructions}
	}

	pc := e.regFile.PC
	inst := e.decoder.Decode(e.memory.Read32(pc))
	result := e.execute(inst, pc)

	e.instructionCount++

	return result
}

// Run executes instructions until the program exits, halts, or fails.
// Returns the exit code (-1 if error).
func (e *Emulator) Run() int64 {
	for {
		result := e.Step()
		switch {
		case result.Err != nil:
			_, _ = fmt.Fprintf(e.stderr, "emulation error: %v\n", result.Err)
			return -1
		case result.Exited:
			return result.ExitCode
		case result.Halted:
			return 0
		}
	}
}

func (e *Emulator) execute(inst *insts.Instruction, pc uint32) StepResult {
	switch inst.Op {
	case insts.OpUnknown:
		return StepResult{
			Err: fmt.Errorf("%w: 0x%08x at pc=0x%x", ErrIllegalInstruction, inst.Word, pc),
		}
	case insts.OpEBREAK:
		return StepResult{Halted: true}
	case insts.OpECALL:
		e.regFile.PC = pc + 4
		res := e.syscallHandler.Handle()
		return StepResult{Exited: res.Exited, ExitCode: res.ExitCode}
	}

	ops := inst.Operands()
	var rs1, rs2, rs3 uint32
	if ops.UsesRs1 {
		rs1 = e.regFile.Read(inst.Rs1, ops.Rs1FP)
	}
	if ops.UsesRs2 {
		rs2 = e.regFile.Read(inst.Rs2, ops.Rs2FP)
	}
	if ops.UsesRs3 {
		rs3 = e.regFile.Read(inst.Rs3, ops.Rs3FP)
	}

	out := Compute(inst, pc, rs1, rs2, rs3)

	switch {
	case inst.IsLoad():
		e.regFile.Write(inst.Rd, ops.RdFP, ExecuteLoad(e.memory, inst, out.Addr))
	case inst.IsStore():
		ExecuteStore(e.memory, inst, out.Addr, out.StoreValue)
	case ops.WritesRd:
		e.regFile.Write(inst.Rd, ops.RdFP, out.Value)
	}

	e.regFile.AccrueFlags(out.FFlags)
	e.regFile.PC = out.NextPC(pc)

	return StepResult{}
}
