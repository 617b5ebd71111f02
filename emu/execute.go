package emu

import "github.com/sarchlab/rvsim/insts"

// Outcome is everything an instruction computes before architectural state
// is touched. Both the reference emulator and the timing cores use it, so
// they agree on semantics by construction.
type Outcome struct {
	// Value is the register result: ALU or FPU output, link address for
	// jumps, upper immediate for lui/auipc.
	Value uint32

	// Addr is the effective address of a load or store.
	Addr uint32

	// StoreValue is the data a store writes.
	StoreValue uint32

	// Taken is true for taken branches and for every jump.
	Taken bool

	// Target is the branch or jump destination. For a conditional branch it
	// is set regardless of the direction.
	Target uint32

	Overflow bool
	FFlags   uint32
}

// NextPC returns the address of the instruction that follows on the
// architecturally correct path.
func (o Outcome) NextPC(pc uint32) uint32 {
	if o.Taken {
		return o.Target
	}
	return pc + 4
}

// Compute evaluates inst at pc given its source operand values. Operands the
// instruction does not use are ignored. Loads, stores, and system
// instructions only compute addresses here; memory is not accessed.
func Compute(inst *insts.Instruction, pc, rs1, rs2, rs3 uint32) Outcome {
	imm := uint32(inst.Imm)

	switch {
	case inst.Op == insts.OpLUI:
		return Outcome{Value: imm}
	case inst.Op == insts.OpAUIPC:
		return Outcome{Value: pc + imm}
	case inst.IsJump():
		return Outcome{Value: pc + 4, Taken: true, Target: JumpTarget(inst, pc, rs1)}
	case inst.IsBranch():
		return Outcome{Taken: BranchTaken(inst.Op, rs1, rs2), Target: pc + imm}
	case inst.IsLoad():
		return Outcome{Addr: rs1 + imm}
	case inst.IsStore():
		return Outcome{Addr: rs1 + imm, StoreValue: rs2}
	case inst.IsFloat():
		res := ExecuteFPU(inst.Op, inst.Funct3, rs1, rs2, rs3)
		return Outcome{Value: res.Value, FFlags: res.Flags}
	case inst.Op == insts.OpECALL, inst.Op == insts.OpEBREAK, inst.Op == insts.OpFENCE,
		inst.Op == insts.OpUnknown:
		return Outcome{}
	}

	b := imm
	if inst.Format == insts.FormatR {
		b = rs2
	}
	res := ExecuteALU(inst.Op, rs1, b)
	return Outcome{Value: res.Value, Overflow: res.Overflow}
}
