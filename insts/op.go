package insts

// Op represents a RISC-V opcode.
type Op uint16

// RV32IMF opcodes.
const (
	OpUnknown Op = iota

	// RV32I
	OpLUI
	OpAUIPC
	OpJAL
	OpJALR
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU
	OpLB
	OpLH
	OpLW
	OpLBU
	OpLHU
	OpSB
	OpSH
	OpSW
	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND
	OpFENCE
	OpECALL
	OpEBREAK

	// M extension
	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU

	// F extension
	OpFLW
	OpFSW
	OpFMADDS
	OpFMSUBS
	OpFNMSUBS
	OpFNMADDS
	OpFADDS
	OpFSUBS
	OpFMULS
	OpFDIVS
	OpFSQRTS
	OpFSGNJS
	OpFSGNJNS
	OpFSGNJXS
	OpFMINS
	OpFMAXS
	OpFCVTWS
	OpFCVTWUS
	OpFMVXW
	OpFEQS
	OpFLTS
	OpFLES
	OpFCLASSS
	OpFCVTSW
	OpFCVTSWU
	OpFMVWX

	numOps
)

var opNames = [numOps]string{
	OpUnknown: "unknown",
	OpLUI:     "lui", OpAUIPC: "auipc", OpJAL: "jal", OpJALR: "jalr",
	OpBEQ: "beq", OpBNE: "bne", OpBLT: "blt", OpBGE: "bge", OpBLTU: "bltu", OpBGEU: "bgeu",
	OpLB: "lb", OpLH: "lh", OpLW: "lw", OpLBU: "lbu", OpLHU: "lhu",
	OpSB: "sb", OpSH: "sh", OpSW: "sw",
	OpADDI: "addi", OpSLTI: "slti", OpSLTIU: "sltiu", OpXORI: "xori", OpORI: "ori",
	OpANDI: "andi", OpSLLI: "slli", OpSRLI: "srli", OpSRAI: "srai",
	OpADD: "add", OpSUB: "sub", OpSLL: "sll", OpSLT: "slt", OpSLTU: "sltu",
	OpXOR: "xor", OpSRL: "srl", OpSRA: "sra", OpOR: "or", OpAND: "and",
	OpFENCE: "fence", OpECALL: "ecall", OpEBREAK: "ebreak",
	OpMUL: "mul", OpMULH: "mulh", OpMULHSU: "mulhsu", OpMULHU: "mulhu",
	OpDIV: "div", OpDIVU: "divu", OpREM: "rem", OpREMU: "remu",
	OpFLW: "flw", OpFSW: "fsw",
	OpFMADDS: "fmadd.s", OpFMSUBS: "fmsub.s", OpFNMSUBS: "fnmsub.s", OpFNMADDS: "fnmadd.s",
	OpFADDS: "fadd.s", OpFSUBS: "fsub.s", OpFMULS: "fmul.s", OpFDIVS: "fdiv.s",
	OpFSQRTS: "fsqrt.s", OpFSGNJS: "fsgnj.s", OpFSGNJNS: "fsgnjn.s", OpFSGNJXS: "fsgnjx.s",
	OpFMINS: "fmin.s", OpFMAXS: "fmax.s", OpFCVTWS: "fcvt.w.s", OpFCVTWUS: "fcvt.wu.s",
	OpFMVXW: "fmv.x.w", OpFEQS: "feq.s", OpFLTS: "flt.s", OpFLES: "fle.s",
	OpFCLASSS: "fclass.s", OpFCVTSW: "fcvt.s.w", OpFCVTSWU: "fcvt.s.wu", OpFMVWX: "fmv.w.x",
}

// String returns the assembler mnemonic of the opcode.
func (op Op) String() string {
	if op >= numOps {
		return "unknown"
	}
	return opNames[op]
}

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR              // register-register
	FormatR4             // fused multiply-add, three sources
	FormatI              // immediate, loads, jalr
	FormatS              // stores
	FormatB              // conditional branches
	FormatU              // lui, auipc
	FormatJ              // jal
)

// Instruction represents a decoded RISC-V instruction.
type Instruction struct {
	Op     Op     // Operation code
	Format Format // Encoding format
	Word   uint32 // Raw encoded word

	Rd  uint8 // Destination register
	Rs1 uint8 // First source register
	Rs2 uint8 // Second source register
	Rs3 uint8 // Third source register (R4 format only)

	// Imm is the sign-extended immediate. For U-type it already holds the
	// value shifted into bits [31:12]; for B/J-type it is the byte offset.
	Imm int32

	Funct3 uint8
	Funct7 uint8
}

// Operands describes how an instruction uses the register files.
type Operands struct {
	UsesRs1 bool
	UsesRs2 bool
	UsesRs3 bool
	Rs1FP   bool
	Rs2FP   bool
	Rs3FP   bool

	// WritesRd is true when the instruction produces a register result.
	// Integer writes to x0 are still reported; consumers discard them.
	WritesRd bool
	RdFP     bool
}

// Operands returns the register usage of the instruction.
func (i *Instruction) Operands() Operands {
	switch i.Op {
	case OpLUI, OpAUIPC, OpJAL:
		return Operands{WritesRd: true}
	case OpJALR, OpLB, OpLH, OpLW, OpLBU, OpLHU,
		OpADDI, OpSLTI, OpSLTIU, OpXORI, OpORI, OpANDI, OpSLLI, OpSRLI, OpSRAI:
		return Operands{UsesRs1: true, WritesRd: true}
	case OpBEQ, OpBNE, OpBLT, OpBGE, OpBLTU, OpBGEU, OpSB, OpSH, OpSW:
		return Operands{UsesRs1: true, UsesRs2: true}
	case OpADD, OpSUB, OpSLL, OpSLT, OpSLTU, OpXOR, OpSRL, OpSRA, OpOR, OpAND,
		OpMUL, OpMULH, OpMULHSU, OpMULHU, OpDIV, OpDIVU, OpREM, OpREMU:
		return Operands{UsesRs1: true, UsesRs2: true, WritesRd: true}
	case OpECALL:
		// a7 selects the syscall; a0 is both argument and result.
		return Operands{}
	case OpFLW:
		return Operands{UsesRs1: true, WritesRd: true, RdFP: true}
	case OpFSW:
		return Operands{UsesRs1: true, UsesRs2: true, Rs2FP: true}
	case OpFMADDS, OpFMSUBS, OpFNMSUBS, OpFNMADDS:
		return Operands{
			UsesRs1: true, UsesRs2: true, UsesRs3: true,
			Rs1FP: true, Rs2FP: true, Rs3FP: true,
			WritesRd: true, RdFP: true,
		}
	case OpFADDS, OpFSUBS, OpFMULS, OpFDIVS, OpFSGNJS, OpFSGNJNS, OpFSGNJXS, OpFMINS, OpFMAXS:
		return Operands{UsesRs1: true, UsesRs2: true, Rs1FP: true, Rs2FP: true, WritesRd: true, RdFP: true}
	case OpFSQRTS:
		return Operands{UsesRs1: true, Rs1FP: true, WritesRd: true, RdFP: true}
	case OpFCVTWS, OpFCVTWUS, OpFMVXW, OpFCLASSS:
		return Operands{UsesRs1: true, Rs1FP: true, WritesRd: true}
	case OpFEQS, OpFLTS, OpFLES:
		return Operands{UsesRs1: true, UsesRs2: true, Rs1FP: true, Rs2FP: true, WritesRd: true}
	case OpFCVTSW, OpFCVTSWU, OpFMVWX:
		return Operands{UsesRs1: true, WritesRd: true, RdFP: true}
	default:
		return Operands{}
	}
}

// IsLoad returns true for integer and floating-point loads.
func (i *Instruction) IsLoad() bool {
	switch i.Op {
	case OpLB, OpLH, OpLW, OpLBU, OpLHU, OpFLW:
		return true
	}
	return false
}

// IsStore returns true for integer and floating-point stores.
func (i *Instruction) IsStore() bool {
	switch i.Op {
	case OpSB, OpSH, OpSW, OpFSW:
		return true
	}
	return false
}

// IsBranch returns true for conditional branches.
func (i *Instruction) IsBranch() bool {
	return i.Format == FormatB
}

// IsJump returns true for jal and jalr.
func (i *Instruction) IsJump() bool {
	return i.Op == OpJAL || i.Op == OpJALR
}

// IsFloat returns true for F-extension computational instructions.
// Floating-point loads and stores are memory operations and return false.
func (i *Instruction) IsFloat() bool {
	return i.Op >= OpFMADDS && i.Op <= OpFMVWX
}

// MemSize returns the access width in bytes of a load or store, 0 otherwise.
func (i *Instruction) MemSize() int {
	switch i.Op {
	case OpLB, OpLBU, OpSB:
		return 1
	case OpLH, OpLHU, OpSH:
		return 2
	case OpLW, OpSW, OpFLW, OpFSW:
		return 4
	}
	return 0
}

// MemSigned returns true for sign-extending loads.
func (i *Instruction) MemSigned() bool {
	return i.Op == OpLB || i.Op == OpLH
}
