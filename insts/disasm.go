package insts

import "fmt"

// String renders the instruction in assembler syntax, e.g. "addi x1, x0, 5".
func (i *Instruction) String() string {
	if i == nil || i.Op == OpUnknown {
		return fmt.Sprintf("unknown 0x%08x", wordOf(i))
	}

	ops := i.Operands()
	rd := regName(i.Rd, ops.RdFP)
	rs1 := regName(i.Rs1, ops.Rs1FP)
	rs2 := regName(i.Rs2, ops.Rs2FP)

	switch i.Format {
	case FormatU:
		return fmt.Sprintf("%s %s, 0x%x", i.Op, rd, uint32(i.Imm)>>12)
	case FormatJ:
		return fmt.Sprintf("%s %s, %d", i.Op, rd, i.Imm)
	case FormatB:
		return fmt.Sprintf("%s %s, %s, %d", i.Op, rs1, rs2, i.Imm)
	case FormatS:
		return fmt.Sprintf("%s %s, %d(%s)", i.Op, rs2, i.Imm, rs1)
	case FormatR4:
		return fmt.Sprintf("%s %s, %s, %s, %s", i.Op, rd, rs1, rs2, regName(i.Rs3, true))
	case FormatR:
		if !ops.UsesRs2 {
			return fmt.Sprintf("%s %s, %s", i.Op, rd, rs1)
		}
		return fmt.Sprintf("%s %s, %s, %s", i.Op, rd, rs1, rs2)
	}

	switch {
	case i.Op == OpECALL || i.Op == OpEBREAK || i.Op == OpFENCE:
		return i.Op.String()
	case i.IsLoad() || i.Op == OpJALR:
		return fmt.Sprintf("%s %s, %d(%s)", i.Op, rd, i.Imm, rs1)
	default:
		return fmt.Sprintf("%s %s, %s, %d", i.Op, rd, rs1, i.Imm)
	}
}

func regName(r uint8, fp bool) string {
	if fp {
		return fmt.Sprintf("f%d", r)
	}
	return fmt.Sprintf("x%d", r)
}

func wordOf(i *Instruction) uint32 {
	if i == nil {
		return 0
	}
	return i.Word
}
