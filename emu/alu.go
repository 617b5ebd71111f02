package emu

import (
	"math/bits"

	"github.com/sarchlab/rvsim/insts"
)

// ALUResult is the output of an integer operation.
type ALUResult struct {
	Value uint32

	// Overflow reports signed overflow for add, addi and sub. RISC-V does not
	// trap on it; the flag is kept for inspection only.
	Overflow bool
}

// ExecuteALU performs an RV32IM register-register or register-immediate
// operation. b is rs2 for R-type instructions and the sign-extended
// immediate otherwise.
func ExecuteALU(op insts.Op, a, b uint32) ALUResult {
	switch op {
	case insts.OpADD, insts.OpADDI:
		r := a + b
		return ALUResult{Value: r, Overflow: (a^r)&(b^r)&0x80000000 != 0}
	case insts.OpSUB:
		r := a - b
		return ALUResult{Value: r, Overflow: (a^b)&(a^r)&0x80000000 != 0}
	case insts.OpSLL, insts.OpSLLI:
		return ALUResult{Value: a << (b & 31)}
	case insts.OpSRL, insts.OpSRLI:
		return ALUResult{Value: a >> (b & 31)}
	case insts.OpSRA, insts.OpSRAI:
		return ALUResult{Value: uint32(int32(a) >> (b & 31))}
	case insts.OpSLT, insts.OpSLTI:
		return ALUResult{Value: boolToU32(int32(a) < int32(b))}
	case insts.OpSLTU, insts.OpSLTIU:
		return ALUResult{Value: boolToU32(a < b)}
	case insts.OpXOR, insts.OpXORI:
		return ALUResult{Value: a ^ b}
	case insts.OpOR, insts.OpORI:
		return ALUResult{Value: a | b}
	case insts.OpAND, insts.OpANDI:
		return ALUResult{Value: a & b}
	}

	return ALUResult{Value: executeMulDiv(op, a, b)}
}

func executeMulDiv(op insts.Op, a, b uint32) uint32 {
	switch op {
	case insts.OpMUL:
		return a * b
	case insts.OpMULH:
		return uint32(uint64(int64(int32(a))*int64(int32(b))) >> 32)
	case insts.OpMULHSU:
		return uint32(uint64(int64(int32(a))*int64(b)) >> 32)
	case insts.OpMULHU:
		hi, _ := bits.Mul32(a, b)
		return hi
	case insts.OpDIV:
		switch {
		case b == 0:
			return 0xFFFFFFFF
		case a == 0x80000000 && b == 0xFFFFFFFF:
			return a
		}
		return uint32(int32(a) / int32(b))
	case insts.OpDIVU:
		if b == 0 {
			return 0xFFFFFFFF
		}
		return a / b
	case insts.OpREM:
		switch {
		case b == 0:
			return a
		case a == 0x80000000 && b == 0xFFFFFFFF:
			return 0
		}
		return uint32(int32(a) % int32(b))
	case insts.OpREMU:
		if b == 0 {
			return a
		}
		return a % b
	}
	return 0
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
