// Package latency provides functional-unit latencies for the timing cores.
//
// Latencies are configured via TimingConfig and looked up per decoded
// instruction.
package latency

import (
	"github.com/sarchlab/rvsim/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the execution latency in cycles for the given
// instruction. Unknown instructions take one cycle.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	switch {
	case inst.IsLoad():
		return t.config.LoadLatency
	case inst.IsStore():
		return t.config.StoreLatency
	case inst.IsBranch(), inst.IsJump():
		return t.config.BranchLatency
	}

	switch inst.Op {
	case insts.OpMUL, insts.OpMULH, insts.OpMULHSU, insts.OpMULHU:
		return t.config.MultiplyLatency

	case insts.OpDIV, insts.OpDIVU, insts.OpREM, insts.OpREMU:
		return t.config.DivideLatency

	case insts.OpFADDS, insts.OpFSUBS:
		return t.config.FPAddLatency

	case insts.OpFMULS:
		return t.config.FPMulLatency

	case insts.OpFMADDS, insts.OpFMSUBS, insts.OpFNMSUBS, insts.OpFNMADDS:
		return t.config.FPFMALatency

	case insts.OpFDIVS, insts.OpFSQRTS:
		return t.config.FPDivLatency

	case insts.OpECALL, insts.OpEBREAK, insts.OpFENCE:
		return t.config.SyscallLatency
	}

	if inst.IsFloat() {
		return t.config.FPMiscLatency
	}

	return t.config.ALULatency
}

// IsMemoryOp returns true if the instruction accesses memory.
func (t *Table) IsMemoryOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.IsLoad() || inst.IsStore()
}

// IsLongLatency returns true for operations that occupy their unit for more
// than one cycle under the current configuration.
func (t *Table) IsLongLatency(inst *insts.Instruction) bool {
	return t.GetLatency(inst) > 1
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
