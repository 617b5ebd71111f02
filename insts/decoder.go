package insts

// Major opcodes (bits [6:0]).
const (
	opcodeLoad    = 0x03
	opcodeLoadFP  = 0x07
	opcodeMiscMem = 0x0F
	opcodeOpImm   = 0x13
	opcodeAUIPC   = 0x17
	opcodeStore   = 0x23
	opcodeStoreFP = 0x27
	opcodeOp      = 0x33
	opcodeLUI     = 0x37
	opcodeMADD    = 0x43
	opcodeMSUB    = 0x47
	opcodeNMSUB   = 0x4B
	opcodeNMADD   = 0x4F
	opcodeOpFP    = 0x53
	opcodeBranch  = 0x63
	opcodeJALR    = 0x67
	opcodeJAL     = 0x6F
	opcodeSystem  = 0x73
)

// Decoder decodes RISC-V machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new RV32IMF instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit RISC-V instruction word. Words that do not encode a
// supported instruction decode to OpUnknown.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{
		Op:     OpUnknown,
		Format: FormatUnknown,
		Word:   word,
		Rd:     uint8((word >> 7) & 0x1F),
		Rs1:    uint8((word >> 15) & 0x1F),
		Rs2:    uint8((word >> 20) & 0x1F),
		Rs3:    uint8((word >> 27) & 0x1F),
		Funct3: uint8((word >> 12) & 0x7),
		Funct7: uint8((word >> 25) & 0x7F),
	}

	switch word & 0x7F {
	case opcodeLUI:
		inst.Format = FormatU
		inst.Imm = int32(word & 0xFFFFF000)
		inst.Op = OpLUI
	case opcodeAUIPC:
		inst.Format = FormatU
		inst.Imm = int32(word & 0xFFFFF000)
		inst.Op = OpAUIPC
	case opcodeJAL:
		inst.Format = FormatJ
		inst.Imm = immJ(word)
		inst.Op = OpJAL
	case opcodeJALR:
		if inst.Funct3 == 0 {
			inst.Format = FormatI
			inst.Imm = immI(word)
			inst.Op = OpJALR
		}
	case opcodeBranch:
		d.decodeBranch(word, inst)
	case opcodeLoad:
		d.decodeLoad(word, inst)
	case opcodeStore:
		d.decodeStore(word, inst)
	case opcodeOpImm:
		d.decodeOpImm(word, inst)
	case opcodeOp:
		d.decodeOp(inst)
	case opcodeMiscMem:
		inst.Format = FormatI
		inst.Op = OpFENCE
	case opcodeSystem:
		d.decodeSystem(word, inst)
	case opcodeLoadFP:
		if inst.Funct3 == 2 {
			inst.Format = FormatI
			inst.Imm = immI(word)
			inst.Op = OpFLW
		}
	case opcodeStoreFP:
		if inst.Funct3 == 2 {
			inst.Format = FormatS
			inst.Imm = immS(word)
			inst.Op = OpFSW
		}
	case opcodeMADD, opcodeMSUB, opcodeNMSUB, opcodeNMADD:
		d.decodeFused(word, inst)
	case opcodeOpFP:
		d.decodeOpFP(inst)
	}

	return inst
}

func (d *Decoder) decodeBranch(word uint32, inst *Instruction) {
	ops := [8]Op{OpBEQ, OpBNE, OpUnknown, OpUnknown, OpBLT, OpBGE, OpBLTU, OpBGEU}
	op := ops[inst.Funct3]
	if op == OpUnknown {
		return
	}
	inst.Format = FormatB
	inst.Imm = immB(word)
	inst.Op = op
}

func (d *Decoder) decodeLoad(word uint32, inst *Instruction) {
	ops := [8]Op{OpLB, OpLH, OpLW, OpUnknown, OpLBU, OpLHU, OpUnknown, OpUnknown}
	op := ops[inst.Funct3]
	if op == OpUnknown {
		return
	}
	inst.Format = FormatI
	inst.Imm = immI(word)
	inst.Op = op
}

func (d *Decoder) decodeStore(word uint32, inst *Instruction) {
	ops := [8]Op{OpSB, OpSH, OpSW, OpUnknown, OpUnknown, OpUnknown, OpUnknown, OpUnknown}
	op := ops[inst.Funct3]
	if op == OpUnknown {
		return
	}
	inst.Format = FormatS
	inst.Imm = immS(word)
	inst.Op = op
}

func (d *Decoder) decodeOpImm(word uint32, inst *Instruction) {
	inst.Format = FormatI
	inst.Imm = immI(word)

	switch inst.Funct3 {
	case 0:
		inst.Op = OpADDI
	case 2:
		inst.Op = OpSLTI
	case 3:
		inst.Op = OpSLTIU
	case 4:
		inst.Op = OpXORI
	case 6:
		inst.Op = OpORI
	case 7:
		inst.Op = OpANDI
	case 1:
		if inst.Funct7 == 0 {
			inst.Op = OpSLLI
			inst.Imm &= 0x1F
		}
	case 5:
		switch inst.Funct7 {
		case 0x00:
			inst.Op = OpSRLI
			inst.Imm &= 0x1F
		case 0x20:
			inst.Op = OpSRAI
			inst.Imm &= 0x1F
		}
	}

	if inst.Op == OpUnknown {
		inst.Format = FormatUnknown
	}
}

func (d *Decoder) decodeOp(inst *Instruction) {
	base := [8]Op{OpADD, OpSLL, OpSLT, OpSLTU, OpXOR, OpSRL, OpOR, OpAND}
	mext := [8]Op{OpMUL, OpMULH, OpMULHSU, OpMULHU, OpDIV, OpDIVU, OpREM, OpREMU}

	switch inst.Funct7 {
	case 0x00:
		inst.Op = base[inst.Funct3]
	case 0x01:
		inst.Op = mext[inst.Funct3]
	case 0x20:
		switch inst.Funct3 {
		case 0:
			inst.Op = OpSUB
		case 5:
			inst.Op = OpSRA
		}
	}

	if inst.Op != OpUnknown {
		inst.Format = FormatR
	}
}

func (d *Decoder) decodeSystem(word uint32, inst *Instruction) {
	if inst.Funct3 != 0 || inst.Rd != 0 || inst.Rs1 != 0 {
		return
	}
	switch word >> 20 {
	case 0:
		inst.Op = OpECALL
	case 1:
		inst.Op = OpEBREAK
	default:
		return
	}
	inst.Format = FormatI
}

func (d *Decoder) decodeFused(word uint32, inst *Instruction) {
	// fmt field [26:25] must select single precision.
	if (word>>25)&0x3 != 0 {
		return
	}
	inst.Format = FormatR4
	switch word & 0x7F {
	case opcodeMADD:
		inst.Op = OpFMADDS
	case opcodeMSUB:
		inst.Op = OpFMSUBS
	case opcodeNMSUB:
		inst.Op = OpFNMSUBS
	case opcodeNMADD:
		inst.Op = OpFNMADDS
	}
}

func (d *Decoder) decodeOpFP(inst *Instruction) {
	f3 := inst.Funct3

	switch inst.Funct7 {
	case 0x00:
		inst.Op = OpFADDS
	case 0x04:
		inst.Op = OpFSUBS
	case 0x08:
		inst.Op = OpFMULS
	case 0x0C:
		inst.Op = OpFDIVS
	case 0x2C:
		if inst.Rs2 == 0 {
			inst.Op = OpFSQRTS
		}
	case 0x10:
		switch f3 {
		case 0:
			inst.Op = OpFSGNJS
		case 1:
			inst.Op = OpFSGNJNS
		case 2:
			inst.Op = OpFSGNJXS
		}
	case 0x14:
		switch f3 {
		case 0:
			inst.Op = OpFMINS
		case 1:
			inst.Op = OpFMAXS
		}
	case 0x60:
		switch inst.Rs2 {
		case 0:
			inst.Op = OpFCVTWS
		case 1:
			inst.Op = OpFCVTWUS
		}
	case 0x70:
		if inst.Rs2 != 0 {
			break
		}
		switch f3 {
		case 0:
			inst.Op = OpFMVXW
		case 1:
			inst.Op = OpFCLASSS
		}
	case 0x50:
		switch f3 {
		case 0:
			inst.Op = OpFLES
		case 1:
			inst.Op = OpFLTS
		case 2:
			inst.Op = OpFEQS
		}
	case 0x68:
		switch inst.Rs2 {
		case 0:
			inst.Op = OpFCVTSW
		case 1:
			inst.Op = OpFCVTSWU
		}
	case 0x78:
		if inst.Rs2 == 0 && f3 == 0 {
			inst.Op = OpFMVWX
		}
	}

	if inst.Op != OpUnknown {
		inst.Format = FormatR
	}
}

// immI extracts the sign-extended 12-bit I-type immediate.
func immI(word uint32) int32 {
	return int32(word) >> 20
}

// immS extracts the sign-extended 12-bit S-type immediate.
func immS(word uint32) int32 {
	return (int32(word)>>25)<<5 | int32((word>>7)&0x1F)
}

// immB extracts the sign-extended 13-bit B-type byte offset.
// imm[12|10:5|4:1|11]
func immB(word uint32) int32 {
	raw := ((word >> 31) & 0x1 << 12) |
		((word >> 7) & 0x1 << 11) |
		((word >> 25) & 0x3F << 5) |
		((word >> 8) & 0xF << 1)
	return int32(raw<<19) >> 19
}

// immJ extracts the sign-extended 21-bit J-type byte offset.
// imm[20|10:1|11|19:12]
func immJ(word uint32) int32 {
	raw := ((word >> 31) & 0x1 << 20) |
		((word >> 12) & 0xFF << 12) |
		((word >> 20) & 0x1 << 11) |
		((word >> 21) & 0x3FF << 1)
	return int32(raw<<11) >> 11
}
