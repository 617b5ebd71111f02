// Package ooo implements the out-of-order execution engine shared by the
// dual-issue and triple-issue cores.
//
// The engine is a Tomasulo-style scheduler. Decoded instructions reserve a
// slot in the reorder buffer, resolve their source operands against the
// register status file, and wait in a reservation station until every
// operand is available. Functional units complete out of order and publish
// results on the common data bus; the reorder buffer retires them strictly
// in program order. Branches are predicted at fetch and verified at commit,
// where a misprediction discards every younger instruction.
//
// Slots are identified by a Tag: a reorder buffer index plus the epoch of
// that slot. Every reservation and every discard bumps the epoch, so results
// addressed to a recycled slot are recognised as stale and ignored.
package ooo

import (
	"fmt"

	"github.com/sarchlab/rvsim/insts"
)

// Tag names a producer: a reorder buffer slot and the generation of that
// slot.
type Tag struct {
	Index int
	Epoch uint32
}

func (t Tag) String() string {
	return fmt.Sprintf("#%d.%d", t.Index, t.Epoch)
}

// Unit is the functional unit an instruction executes on.
type Unit uint8

// Functional units.
const (
	UnitNone Unit = iota
	UnitALU
	UnitFALU
	UnitLSU
)

func (u Unit) String() string {
	switch u {
	case UnitALU:
		return "ALU"
	case UnitFALU:
		return "FALU"
	case UnitLSU:
		return "LSU"
	}
	return "-"
}

// Control holds the decoded control signals of an instruction. It is filled
// once at decode and never changed afterwards.
type Control struct {
	UsesRs1 bool
	UsesRs2 bool
	UsesRs3 bool
	Rs1FP   bool
	Rs2FP   bool
	Rs3FP   bool

	RegWrite      bool // writes rd
	RegWriteToFPR bool // rd is a floating-point register

	MemRead   bool
	MemWrite  bool
	MemSize   int
	MemSigned bool

	Branch   bool // conditional branch
	Jump     bool // jal, jalr
	ImmToALU bool // second ALU operand is the immediate
	Syscall  bool // ecall, executed at commit
	Halt     bool // ebreak, or an instruction that does not decode

	Unit Unit
}

// Operand is one source operand of an in-flight instruction. While Waiting
// is set, Value is undefined and Producer names the instruction that will
// supply it.
type Operand struct {
	Value    uint32
	Waiting  bool
	Producer Tag
}

// InstrContext is one in-flight instruction. It is created at fetch, filled
// in by decode, tagged at issue, completed by a functional unit, and
// consumed by commit.
type InstrContext struct {
	PC   uint32
	Word uint32

	// Seq is the program-order sequence number assigned at issue.
	Seq uint64
	Tag Tag

	Inst    *insts.Instruction
	Control Control

	Operands [3]Operand

	ALUOut     uint32
	MemOut     uint32
	MemAddr    uint32
	StoreValue uint32
	Overflow   bool
	FFlags     uint32

	// Illegal marks a bubble: the slot holds no instruction.
	Illegal     bool
	ReadyToExec bool

	PredictedTaken  bool
	PredictedTarget uint32
	BranchTaken     bool
	BranchTarget    uint32

	// reserved is set once the instruction holds a reorder buffer slot.
	reserved bool
}

// Bubble returns an empty latch or station slot.
func Bubble() *InstrContext {
	return &InstrContext{Illegal: true}
}

// newFetched creates the context of a fetched word. The word is predecoded
// so fetch can recognise branches; control signals are filled in by decode.
func newFetched(decoder *insts.Decoder, pc, word uint32) *InstrContext {
	return &InstrContext{PC: pc, Word: word, Inst: decoder.Decode(word)}
}

// Decode returns the fully decoded context of the word at pc, as the decode
// stage would produce it.
func Decode(pc, word uint32, fpLane bool) *InstrContext {
	instr := newFetched(insts.NewDecoder(), pc, word)
	instr.decode(fpLane)
	return instr
}

// decode fills in the control signals. fpLane selects whether F-extension
// computation goes to a separate floating-point unit.
func (i *InstrContext) decode(fpLane bool) {
	inst := i.Inst
	ops := inst.Operands()

	i.Control = Control{
		UsesRs1:       ops.UsesRs1,
		UsesRs2:       ops.UsesRs2,
		UsesRs3:       ops.UsesRs3,
		Rs1FP:         ops.Rs1FP,
		Rs2FP:         ops.Rs2FP,
		Rs3FP:         ops.Rs3FP,
		RegWrite:      ops.WritesRd,
		RegWriteToFPR: ops.RdFP,
		MemRead:       inst.IsLoad(),
		MemWrite:      inst.IsStore(),
		MemSize:       inst.MemSize(),
		MemSigned:     inst.MemSigned(),
		Branch:        inst.IsBranch(),
		Jump:          inst.IsJump(),
		ImmToALU:      inst.Format == insts.FormatI || inst.Format == insts.FormatU,
		Syscall:       inst.Op == insts.OpECALL,
		Halt:          inst.Op == insts.OpEBREAK || inst.Op == insts.OpUnknown,
	}

	// Writes to x0 are dropped here so nothing ever waits on them.
	if i.Control.RegWrite && !i.Control.RegWriteToFPR && inst.Rd == 0 {
		i.Control.RegWrite = false
	}

	switch {
	case i.Control.MemRead || i.Control.MemWrite:
		i.Control.Unit = UnitLSU
	case fpLane && inst.IsFloat():
		i.Control.Unit = UnitFALU
	default:
		i.Control.Unit = UnitALU
	}
}

// sourceReg returns the register and file of source operand n.
func (i *InstrContext) sourceReg(n int) (reg uint8, fp, used bool) {
	switch n {
	case 0:
		return i.Inst.Rs1, i.Control.Rs1FP, i.Control.UsesRs1
	case 1:
		return i.Inst.Rs2, i.Control.Rs2FP, i.Control.UsesRs2
	default:
		return i.Inst.Rs3, i.Control.Rs3FP, i.Control.UsesRs3
	}
}

func (i *InstrContext) updateReady() {
	i.ReadyToExec = !i.Operands[0].Waiting &&
		!i.Operands[1].Waiting &&
		!i.Operands[2].Waiting
}

// Result returns the value the instruction writes to rd.
func (i *InstrContext) Result() uint32 {
	if i.Control.MemRead {
		return i.MemOut
	}
	return i.ALUOut
}

// NextPC returns the address of the architecturally next instruction.
// Only meaningful after execution.
func (i *InstrContext) NextPC() uint32 {
	if i.BranchTaken {
		return i.BranchTarget
	}
	return i.PC + 4
}

// Mispredicted reports whether the direction or target chosen at fetch
// differs from the resolved one. Only meaningful after execution.
func (i *InstrContext) Mispredicted() bool {
	if i.BranchTaken != i.PredictedTaken {
		return true
	}
	return i.BranchTaken && i.BranchTarget != i.PredictedTarget
}

// String renders the instruction for state dumps.
func (i *InstrContext) String() string {
	if i == nil || i.Illegal {
		return "bubble"
	}
	if i.Inst == nil {
		return fmt.Sprintf("0x%04x: %08x", i.PC, i.Word)
	}
	return fmt.Sprintf("0x%04x: %s", i.PC, i.Inst)
}
