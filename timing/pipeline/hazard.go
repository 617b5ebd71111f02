package pipeline

import "github.com/sarchlab/rvsim/insts"

// ForwardSource indicates where a forwarded value should come from.
type ForwardSource int

const (
	// ForwardNone means no forwarding needed - use register file value.
	ForwardNone ForwardSource = iota
	// ForwardFromEXMEM means forward from EX/MEM pipeline register.
	ForwardFromEXMEM
	// ForwardFromMEMWB means forward from MEM/WB pipeline register.
	ForwardFromMEMWB
)

// ForwardingResult contains forwarding decisions for the source operands.
// rs2 is also the data operand of a store.
type ForwardingResult struct {
	ForwardRs1 ForwardSource
	ForwardRs2 ForwardSource
	ForwardRs3 ForwardSource
}

// Any reports whether any operand is forwarded.
func (f ForwardingResult) Any() bool {
	return f.ForwardRs1 != ForwardNone || f.ForwardRs2 != ForwardNone || f.ForwardRs3 != ForwardNone
}

// StallResult contains stall and flush control signals.
type StallResult struct {
	// StallIF indicates the IF stage should stall (hold current instruction).
	StallIF bool
	// StallID indicates the ID stage should stall.
	StallID bool
	// InsertBubbleEX indicates a bubble (NOP) should be inserted in EX stage.
	InsertBubbleEX bool
	// FlushIF indicates the IF stage should be flushed.
	FlushIF bool
	// FlushID indicates the ID stage should be flushed.
	FlushID bool
}

// HazardUnit detects data hazards and determines forwarding/stall signals.
type HazardUnit struct{}

// NewHazardUnit creates a new hazard detection unit.
func NewHazardUnit() *HazardUnit {
	return &HazardUnit{}
}

// DetectForwarding determines if forwarding is needed for the ID/EX stage.
// A source matches a producer only when both name the same register in the
// same register file.
func (h *HazardUnit) DetectForwarding(
	idex *IDEXRegister,
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
) ForwardingResult {
	result := ForwardingResult{}

	if !idex.Valid {
		return result
	}

	ops := idex.Ops
	if ops.UsesRs1 {
		result.ForwardRs1 = h.detectForwardForReg(idex.Inst.Rs1, ops.Rs1FP, exmem, memwb)
	}
	if ops.UsesRs2 {
		result.ForwardRs2 = h.detectForwardForReg(idex.Inst.Rs2, ops.Rs2FP, exmem, memwb)
	}
	if ops.UsesRs3 {
		result.ForwardRs3 = h.detectForwardForReg(idex.Inst.Rs3, ops.Rs3FP, exmem, memwb)
	}

	return result
}

// detectForwardForReg checks if a specific register needs forwarding.
func (h *HazardUnit) detectForwardForReg(
	reg uint8,
	fp bool,
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
) ForwardSource {
	// x0 always reads as 0
	if !fp && reg == 0 {
		return ForwardNone
	}

	// EX/MEM has precedence over MEM/WB (more recent value)
	if exmem.Valid && exmem.RegWrite && exmem.Rd == reg && exmem.RdFP == fp {
		return ForwardFromEXMEM
	}

	if memwb.Valid && memwb.RegWrite && memwb.Rd == reg && memwb.RdFP == fp {
		return ForwardFromMEMWB
	}

	return ForwardNone
}

// DetectLoadUseHazard detects a load in ID/EX immediately followed by an
// instruction that reads the loaded register. The value isn't available
// until after the MEM stage, so the consumer must stall one cycle.
func (h *HazardUnit) DetectLoadUseHazard(idex *IDEXRegister, next *insts.Instruction) bool {
	if !idex.Valid || !idex.MemRead {
		return false
	}
	return reads(next, idex.Rd(), idex.Ops.RdFP)
}

// DetectDataHazard detects a read of a register still being produced by
// the instruction in ID/EX or EX/MEM. Without forwarding the consumer must
// wait in decode until the producer has written back.
func (h *HazardUnit) DetectDataHazard(
	next *insts.Instruction,
	idex *IDEXRegister,
	exmem *EXMEMRegister,
) bool {
	if idex.Valid && idex.RegWrite && reads(next, idex.Rd(), idex.Ops.RdFP) {
		return true
	}
	return exmem.Valid && exmem.RegWrite && reads(next, exmem.Rd, exmem.RdFP)
}

// reads reports whether inst reads register reg of the given file.
func reads(inst *insts.Instruction, reg uint8, fp bool) bool {
	if inst == nil || (!fp && reg == 0) {
		return false
	}

	ops := inst.Operands()
	return (ops.UsesRs1 && inst.Rs1 == reg && ops.Rs1FP == fp) ||
		(ops.UsesRs2 && inst.Rs2 == reg && ops.Rs2FP == fp) ||
		(ops.UsesRs3 && inst.Rs3 == reg && ops.Rs3FP == fp)
}

// ComputeStalls computes stall and flush signals based on hazard conditions.
func (h *HazardUnit) ComputeStalls(hazard bool, flush bool) StallResult {
	result := StallResult{}

	// Hazard: stall IF and ID, insert bubble in EX
	if hazard {
		result.StallIF = true
		result.StallID = true
		result.InsertBubbleEX = true
	}

	// Redirect: flush IF and ID (kill fetched/decoded instructions)
	if flush {
		result.FlushIF = true
		result.FlushID = true
	}

	return result
}

// GetForwardedValue returns the value to use based on forwarding decision.
func (h *HazardUnit) GetForwardedValue(
	forward ForwardSource,
	originalValue uint32,
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
) uint32 {
	switch forward {
	case ForwardFromEXMEM:
		return exmem.ALUResult
	case ForwardFromMEMWB:
		return memwb.Result()
	default:
		return originalValue
	}
}
