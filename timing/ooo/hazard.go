package ooo

// checkDependency reports whether instr must stay behind any of the parked
// older instructions of its issue group. Issuing it first is unsafe when it
// reads a register a parked instruction writes (RAW), writes a register a
// parked instruction reads (WAR) or writes (WAW), or when both are memory
// operations, which must enter the load/store station in program order.
func checkDependency(instr *InstrContext, parked []*InstrContext) bool {
	for _, older := range parked {
		if instr.Control.Unit == UnitLSU && older.Control.Unit == UnitLSU {
			return true
		}

		if older.Control.RegWrite {
			rd, fp := older.Inst.Rd, older.Control.RegWriteToFPR
			if reads(instr, rd, fp) {
				return true
			}
			if writes(instr, rd, fp) {
				return true
			}
		}

		if instr.Control.RegWrite && reads(older, instr.Inst.Rd, instr.Control.RegWriteToFPR) {
			return true
		}
	}

	return false
}

func reads(instr *InstrContext, reg uint8, fp bool) bool {
	for n := range instr.Operands {
		src, srcFP, used := instr.sourceReg(n)
		if used && src == reg && srcFP == fp {
			return true
		}
	}
	return false
}

func writes(instr *InstrContext, reg uint8, fp bool) bool {
	return instr.Control.RegWrite &&
		instr.Inst.Rd == reg &&
		instr.Control.RegWriteToFPR == fp
}
