package emu

import "github.com/sarchlab/rvsim/insts"

// BranchTaken evaluates the condition of a conditional branch.
func BranchTaken(op insts.Op, a, b uint32) bool {
	switch op {
	case insts.OpBEQ:
		return a == b
	case insts.OpBNE:
		return a != b
	case insts.OpBLT:
		return int32(a) < int32(b)
	case insts.OpBGE:
		return int32(a) >= int32(b)
	case insts.OpBLTU:
		return a < b
	case insts.OpBGEU:
		return a >= b
	}
	return false
}

// JumpTarget returns the destination of a jal or jalr. The low bit of a
// jalr target is cleared.
func JumpTarget(inst *insts.Instruction, pc, rs1 uint32) uint32 {
	if inst.Op == insts.OpJALR {
		return (rs1 + uint32(inst.Imm)) &^ 1
	}
	return pc + uint32(inst.Imm)
}
