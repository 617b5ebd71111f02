package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds functional-unit occupancy, in cycles, for each
// instruction class.
type TimingConfig struct {
	// ALULatency is the execution latency for basic integer operations
	// (add, sub, logic, shifts, compares, lui, auipc). Default: 1 cycle.
	ALULatency uint64 `json:"alu_latency"`

	// BranchLatency is the execution latency for branches and jumps.
	// Default: 1 cycle.
	BranchLatency uint64 `json:"branch_latency"`

	// LoadLatency is the address-generation plus access latency of a load
	// without a data cache model. Default: 2 cycles.
	LoadLatency uint64 `json:"load_latency"`

	// StoreLatency is the latency of a store in the LSU. The memory write
	// itself happens at commit. Default: 1 cycle.
	StoreLatency uint64 `json:"store_latency"`

	// MultiplyLatency is the latency for mul, mulh, mulhsu and mulhu.
	// Default: 3 cycles.
	MultiplyLatency uint64 `json:"multiply_latency"`

	// DivideLatency is the latency for div, divu, rem and remu.
	// Default: 12 cycles.
	DivideLatency uint64 `json:"divide_latency"`

	// FPAddLatency is the latency for fadd.s and fsub.s. Default: 3 cycles.
	FPAddLatency uint64 `json:"fp_add_latency"`

	// FPMulLatency is the latency for fmul.s. Default: 4 cycles.
	FPMulLatency uint64 `json:"fp_mul_latency"`

	// FPFMALatency is the latency for the fused multiply-add family.
	// Default: 5 cycles.
	FPFMALatency uint64 `json:"fp_fma_latency"`

	// FPDivLatency is the latency for fdiv.s and fsqrt.s. Default: 10 cycles.
	FPDivLatency uint64 `json:"fp_div_latency"`

	// FPMiscLatency is the latency for sign injection, min/max, compares,
	// classification, conversions and moves. Default: 1 cycle.
	FPMiscLatency uint64 `json:"fp_misc_latency"`

	// SyscallLatency is the latency for ecall, ebreak and fence in the ALU.
	// Default: 1 cycle (handling happens at commit).
	SyscallLatency uint64 `json:"syscall_latency"`
}

// DefaultTimingConfig returns a TimingConfig with the default values.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		ALULatency:      1,
		BranchLatency:   1,
		LoadLatency:     2,
		StoreLatency:    1,
		MultiplyLatency: 3,
		DivideLatency:   12,
		FPAddLatency:    3,
		FPMulLatency:    4,
		FPFMALatency:    5,
		FPDivLatency:    10,
		FPMiscLatency:   1,
		SyscallLatency:  1,
	}
}

// LoadConfig loads a TimingConfig from a JSON file. Fields missing from the
// file keep their default values.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that all latency values are valid (> 0).
func (c *TimingConfig) Validate() error {
	fields := []struct {
		name  string
		value uint64
	}{
		{"alu_latency", c.ALULatency},
		{"branch_latency", c.BranchLatency},
		{"load_latency", c.LoadLatency},
		{"store_latency", c.StoreLatency},
		{"multiply_latency", c.MultiplyLatency},
		{"divide_latency", c.DivideLatency},
		{"fp_add_latency", c.FPAddLatency},
		{"fp_mul_latency", c.FPMulLatency},
		{"fp_fma_latency", c.FPFMALatency},
		{"fp_div_latency", c.FPDivLatency},
		{"fp_misc_latency", c.FPMiscLatency},
		{"syscall_latency", c.SyscallLatency},
	}

	for _, f := range fields {
		if f.value == 0 {
			return fmt.Errorf("%s must be > 0", f.name)
		}
	}

	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
