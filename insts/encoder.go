package insts

import (
	"errors"
	"fmt"
)

// ErrUnencodable is returned when an instruction cannot be encoded.
var ErrUnencodable = errors.New("insts: cannot encode instruction")

type encoding struct {
	format Format
	opcode uint32
	funct3 uint32
	funct7 uint32
	// rs2 is a fixed rs2 field for unary FP ops (fsqrt, fcvt, fmv, fclass).
	rs2     uint32
	fixRs2  bool
	shiftOp bool
}

var encodings = map[Op]encoding{
	OpLUI:   {format: FormatU, opcode: opcodeLUI},
	OpAUIPC: {format: FormatU, opcode: opcodeAUIPC},
	OpJAL:   {format: FormatJ, opcode: opcodeJAL},
	OpJALR:  {format: FormatI, opcode: opcodeJALR},

	OpBEQ:  {format: FormatB, opcode: opcodeBranch, funct3: 0},
	OpBNE:  {format: FormatB, opcode: opcodeBranch, funct3: 1},
	OpBLT:  {format: FormatB, opcode: opcodeBranch, funct3: 4},
	OpBGE:  {format: FormatB, opcode: opcodeBranch, funct3: 5},
	OpBLTU: {format: FormatB, opcode: opcodeBranch, funct3: 6},
	OpBGEU: {format: FormatB, opcode: opcodeBranch, funct3: 7},

	OpLB:  {format: FormatI, opcode: opcodeLoad, funct3: 0},
	OpLH:  {format: FormatI, opcode: opcodeLoad, funct3: 1},
	OpLW:  {format: FormatI, opcode: opcodeLoad, funct3: 2},
	OpLBU: {format: FormatI, opcode: opcodeLoad, funct3: 4},
	OpLHU: {format: FormatI, opcode: opcodeLoad, funct3: 5},
	OpSB:  {format: FormatS, opcode: opcodeStore, funct3: 0},
	OpSH:  {format: FormatS, opcode: opcodeStore, funct3: 1},
	OpSW:  {format: FormatS, opcode: opcodeStore, funct3: 2},

	OpADDI:  {format: FormatI, opcode: opcodeOpImm, funct3: 0},
	OpSLTI:  {format: FormatI, opcode: opcodeOpImm, funct3: 2},
	OpSLTIU: {format: FormatI, opcode: opcodeOpImm, funct3: 3},
	OpXORI:  {format: FormatI, opcode: opcodeOpImm, funct3: 4},
	OpORI:   {format: FormatI, opcode: opcodeOpImm, funct3: 6},
	OpANDI:  {format: FormatI, opcode: opcodeOpImm, funct3: 7},
	OpSLLI:  {format: FormatI, opcode: opcodeOpImm, funct3: 1, shiftOp: true},
	OpSRLI:  {format: FormatI, opcode: opcodeOpImm, funct3: 5, shiftOp: true},
	OpSRAI:  {format: FormatI, opcode: opcodeOpImm, funct3: 5, funct7: 0x20, shiftOp: true},

	OpADD:  {format: FormatR, opcode: opcodeOp, funct3: 0},
	OpSUB:  {format: FormatR, opcode: opcodeOp, funct3: 0, funct7: 0x20},
	OpSLL:  {format: FormatR, opcode: opcodeOp, funct3: 1},
	OpSLT:  {format: FormatR, opcode: opcodeOp, funct3: 2},
	OpSLTU: {format: FormatR, opcode: opcodeOp, funct3: 3},
	OpXOR:  {format: FormatR, opcode: opcodeOp, funct3: 4},
	OpSRL:  {format: FormatR, opcode: opcodeOp, funct3: 5},
	OpSRA:  {format: FormatR, opcode: opcodeOp, funct3: 5, funct7: 0x20},
	OpOR:   {format: FormatR, opcode: opcodeOp, funct3: 6},
	OpAND:  {format: FormatR, opcode: opcodeOp, funct3: 7},

	OpMUL:    {format: FormatR, opcode: opcodeOp, funct3: 0, funct7: 0x01},
	OpMULH:   {format: FormatR, opcode: opcodeOp, funct3: 1, funct7: 0x01},
	OpMULHSU: {format: FormatR, opcode: opcodeOp, funct3: 2, funct7: 0x01},
	OpMULHU:  {format: FormatR, opcode: opcodeOp, funct3: 3, funct7: 0x01},
	OpDIV:    {format: FormatR, opcode: opcodeOp, funct3: 4, funct7: 0x01},
	OpDIVU:   {format: FormatR, opcode: opcodeOp, funct3: 5, funct7: 0x01},
	OpREM:    {format: FormatR, opcode: opcodeOp, funct3: 6, funct7: 0x01},
	OpREMU:   {format: FormatR, opcode: opcodeOp, funct3: 7, funct7: 0x01},

	OpFENCE:  {format: FormatI, opcode: opcodeMiscMem},
	OpECALL:  {format: FormatI, opcode: opcodeSystem},
	OpEBREAK: {format: FormatI, opcode: opcodeSystem},

	OpFLW: {format: FormatI, opcode: opcodeLoadFP, funct3: 2},
	OpFSW: {format: FormatS, opcode: opcodeStoreFP, funct3: 2},

	OpFMADDS:  {format: FormatR4, opcode: opcodeMADD},
	OpFMSUBS:  {format: FormatR4, opcode: opcodeMSUB},
	OpFNMSUBS: {format: FormatR4, opcode: opcodeNMSUB},
	OpFNMADDS: {format: FormatR4, opcode: opcodeNMADD},

	OpFADDS:   {format: FormatR, opcode: opcodeOpFP, funct7: 0x00, funct3: 7},
	OpFSUBS:   {format: FormatR, opcode: opcodeOpFP, funct7: 0x04, funct3: 7},
	OpFMULS:   {format: FormatR, opcode: opcodeOpFP, funct7: 0x08, funct3: 7},
	OpFDIVS:   {format: FormatR, opcode: opcodeOpFP, funct7: 0x0C, funct3: 7},
	OpFSQRTS:  {format: FormatR, opcode: opcodeOpFP, funct7: 0x2C, funct3: 7, fixRs2: true, rs2: 0},
	OpFSGNJS:  {format: FormatR, opcode: opcodeOpFP, funct7: 0x10, funct3: 0},
	OpFSGNJNS: {format: FormatR, opcode: opcodeOpFP, funct7: 0x10, funct3: 1},
	OpFSGNJXS: {format: FormatR, opcode: opcodeOpFP, funct7: 0x10, funct3: 2},
	OpFMINS:   {format: FormatR, opcode: opcodeOpFP, funct7: 0x14, funct3: 0},
	OpFMAXS:   {format: FormatR, opcode: opcodeOpFP, funct7: 0x14, funct3: 1},
	OpFCVTWS:  {format: FormatR, opcode: opcodeOpFP, funct7: 0x60, funct3: 1, fixRs2: true, rs2: 0},
	OpFCVTWUS: {format: FormatR, opcode: opcodeOpFP, funct7: 0x60, funct3: 1, fixRs2: true, rs2: 1},
	OpFMVXW:   {format: FormatR, opcode: opcodeOpFP, funct7: 0x70, funct3: 0, fixRs2: true, rs2: 0},
	OpFCLASSS: {format: FormatR, opcode: opcodeOpFP, funct7: 0x70, funct3: 1, fixRs2: true, rs2: 0},
	OpFEQS:    {format: FormatR, opcode: opcodeOpFP, funct7: 0x50, funct3: 2},
	OpFLTS:    {format: FormatR, opcode: opcodeOpFP, funct7: 0x50, funct3: 1},
	OpFLES:    {format: FormatR, opcode: opcodeOpFP, funct7: 0x50, funct3: 0},
	OpFCVTSW:  {format: FormatR, opcode: opcodeOpFP, funct7: 0x68, funct3: 7, fixRs2: true, rs2: 0},
	OpFCVTSWU: {format: FormatR, opcode: opcodeOpFP, funct7: 0x68, funct3: 7, fixRs2: true, rs2: 1},
	OpFMVWX:   {format: FormatR, opcode: opcodeOpFP, funct7: 0x78, funct3: 0, fixRs2: true, rs2: 0},
}

// Encode builds the machine word for op. Register fields that the format does
// not use are ignored. imm is the byte offset for branches and jumps and the
// full 32-bit value (low 12 bits zero) for lui/auipc.
func Encode(op Op, rd, rs1, rs2, rs3 uint8, imm int32) (uint32, error) {
	enc, ok := encodings[op]
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrUnencodable, op)
	}
	if rd > 31 || rs1 > 31 || rs2 > 31 || rs3 > 31 {
		return 0, fmt.Errorf("%w: register out of range", ErrUnencodable)
	}

	switch op {
	case OpECALL:
		return opcodeSystem, nil
	case OpEBREAK:
		return 1<<20 | opcodeSystem, nil
	case OpFENCE:
		// fence iorw, iorw
		return 0x0FF<<20 | opcodeMiscMem, nil
	}

	r2 := uint32(rs2)
	if enc.fixRs2 {
		r2 = enc.rs2
	}

	switch enc.format {
	case FormatR:
		return EncodeRType(enc.opcode, uint32(rd), enc.funct3, uint32(rs1), r2, enc.funct7), nil
	case FormatR4:
		return EncodeR4Type(enc.opcode, uint32(rd), 7, uint32(rs1), uint32(rs2), uint32(rs3)), nil
	case FormatI:
		if enc.shiftOp {
			if imm < 0 || imm > 31 {
				return 0, fmt.Errorf("%w: shift amount %d", ErrUnencodable, imm)
			}
			imm |= int32(enc.funct7 << 5)
		} else if imm < -2048 || imm > 2047 {
			return 0, fmt.Errorf("%w: immediate %d out of range", ErrUnencodable, imm)
		}
		return EncodeIType(enc.opcode, uint32(rd), enc.funct3, uint32(rs1), imm), nil
	case FormatS:
		if imm < -2048 || imm > 2047 {
			return 0, fmt.Errorf("%w: immediate %d out of range", ErrUnencodable, imm)
		}
		return EncodeSType(enc.opcode, enc.funct3, uint32(rs1), uint32(rs2), imm), nil
	case FormatB:
		if imm%2 != 0 || imm < -4096 || imm > 4094 {
			return 0, fmt.Errorf("%w: branch offset %d", ErrUnencodable, imm)
		}
		return EncodeBType(enc.opcode, enc.funct3, uint32(rs1), uint32(rs2), imm), nil
	case FormatU:
		return EncodeUType(enc.opcode, uint32(rd), uint32(imm)), nil
	case FormatJ:
		if imm%2 != 0 || imm < -(1<<20) || imm >= 1<<20 {
			return 0, fmt.Errorf("%w: jump offset %d", ErrUnencodable, imm)
		}
		return EncodeJType(enc.opcode, uint32(rd), imm), nil
	}

	return 0, fmt.Errorf("%w: %v", ErrUnencodable, op)
}

// MustEncode is like Encode but panics on error. Intended for tests and
// hand-built programs.
func MustEncode(op Op, rd, rs1, rs2, rs3 uint8, imm int32) uint32 {
	word, err := Encode(op, rd, rs1, rs2, rs3, imm)
	if err != nil {
		panic(err)
	}
	return word
}

// EncodeRType encodes an R-type instruction.
func EncodeRType(opcode, rd, funct3, rs1, rs2, funct7 uint32) uint32 {
	return (funct7 << 25) | (rs2 << 20) | (rs1 << 15) | (funct3 << 12) | (rd << 7) | opcode
}

// EncodeR4Type encodes a fused multiply-add instruction (fmt = single).
func EncodeR4Type(opcode, rd, rm, rs1, rs2, rs3 uint32) uint32 {
	return (rs3 << 27) | (rs2 << 20) | (rs1 << 15) | (rm << 12) | (rd << 7) | opcode
}

// EncodeIType encodes an I-type instruction.
func EncodeIType(opcode, rd, funct3, rs1 uint32, imm int32) uint32 {
	return (uint32(imm&0xFFF) << 20) | (rs1 << 15) | (funct3 << 12) | (rd << 7) | opcode
}

// EncodeSType encodes an S-type instruction.
func EncodeSType(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	immU := uint32(imm & 0xFFF)
	return ((immU >> 5) << 25) | (rs2 << 20) | (rs1 << 15) | (funct3 << 12) |
		((immU & 0x1F) << 7) | opcode
}

// EncodeBType encodes a B-type instruction.
func EncodeBType(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	immU := uint32(imm)
	return (((immU >> 12) & 0x1) << 31) | (((immU >> 5) & 0x3F) << 25) |
		(rs2 << 20) | (rs1 << 15) | (funct3 << 12) |
		(((immU >> 1) & 0xF) << 8) | (((immU >> 11) & 0x1) << 7) | opcode
}

// EncodeUType encodes a U-type instruction.
func EncodeUType(opcode, rd uint32, imm uint32) uint32 {
	return (imm & 0xFFFFF000) | (rd << 7) | opcode
}

// EncodeJType encodes a J-type instruction.
func EncodeJType(opcode, rd uint32, imm int32) uint32 {
	immU := uint32(imm)
	return (((immU >> 20) & 0x1) << 31) | (((immU >> 1) & 0x3FF) << 21) |
		(((immU >> 11) & 0x1) << 20) | (((immU >> 12) & 0xFF) << 12) |
		(rd << 7) | opcode
}
