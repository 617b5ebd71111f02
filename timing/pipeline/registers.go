// Package pipeline provides the in-order five-stage core: fetch, decode,
// execute, memory, and writeback, separated by pipeline registers.
package pipeline

import (
	"fmt"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
)

// IFIDRegister holds state between Fetch and Decode stages.
type IFIDRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the fetched instruction.
	PC uint32

	// InstructionWord is the raw 32-bit instruction word.
	InstructionWord uint32

	// PredictedTaken indicates if fetch followed a taken prediction.
	PredictedTaken bool

	// PredictedTarget is the address fetch continued at when taken.
	PredictedTarget uint32

	// EarlyResolved indicates a jal whose target was computed at fetch.
	EarlyResolved bool
}

// Clear resets the IF/ID register to empty state.
func (r *IFIDRegister) Clear() {
	*r = IFIDRegister{}
}

// IDEXRegister holds state between Decode and Execute stages.
type IDEXRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the instruction.
	PC uint32

	// Inst is the decoded instruction.
	Inst *insts.Instruction

	// Ops is the register usage of Inst, including the register file each
	// operand lives in.
	Ops insts.Operands

	// Register values read from the register file in decode. Forwarded
	// values replace them on the first execute cycle.
	Rs1Value uint32
	Rs2Value uint32
	Rs3Value uint32

	// Control signals.
	MemRead  bool // True for load instructions
	MemWrite bool // True for store instructions
	RegWrite bool // True if instruction writes to register
	MemToReg bool // True if result comes from memory (load)
	IsBranch bool // True for branches and jumps

	// Branch prediction info (propagated from IF/ID).
	PredictedTaken  bool
	PredictedTarget uint32
	EarlyResolved   bool

	// Out is computed on the first execute cycle and held while a
	// multi-cycle operation occupies the stage.
	Out emu.Outcome
}

// Clear resets the ID/EX register to empty state.
func (r *IDEXRegister) Clear() {
	*r = IDEXRegister{}
}

// Rd returns the destination register.
func (r *IDEXRegister) Rd() uint8 {
	return r.Inst.Rd
}

// EXMEMRegister holds state between Execute and Memory stages.
type EXMEMRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the instruction.
	PC uint32

	// Inst is the decoded instruction.
	Inst *insts.Instruction

	// ALU result (address for load/store, result for everything else).
	ALUResult uint32

	// Value to store for store instructions.
	StoreValue uint32

	// Destination register and the file it lives in.
	Rd   uint8
	RdFP bool

	// NextPC is the architecturally correct successor.
	NextPC uint32

	// FFlags are the floating-point exception flags raised.
	FFlags uint32

	// Control signals (propagated from ID/EX).
	MemRead  bool
	MemWrite bool
	RegWrite bool
	MemToReg bool
}

// Clear resets the EX/MEM register to empty state.
func (r *EXMEMRegister) Clear() {
	*r = EXMEMRegister{}
}

// MEMWBRegister holds state between Memory and Writeback stages.
type MEMWBRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the instruction.
	PC uint32

	// Inst is the decoded instruction.
	Inst *insts.Instruction

	// ALU result (for non-load instructions).
	ALUResult uint32

	// Data read from memory (for load instructions).
	MemData uint32

	Rd     uint8
	RdFP   bool
	NextPC uint32
	FFlags uint32

	RegWrite bool
	MemToReg bool // True if result comes from memory
}

// Clear resets the MEM/WB register to empty state.
func (r *MEMWBRegister) Clear() {
	*r = MEMWBRegister{}
}

// Result returns the value written to the destination register.
func (r *MEMWBRegister) Result() uint32 {
	if r.MemToReg {
		return r.MemData
	}
	return r.ALUResult
}

// Latch is a read-only view of one pipeline register.
type Latch struct {
	Name  string
	Valid bool
	PC    uint32
	Inst  *insts.Instruction
}

func (l Latch) String() string {
	if !l.Valid {
		return "bubble"
	}
	return fmt.Sprintf("0x%04x: %s", l.PC, l.Inst)
}
