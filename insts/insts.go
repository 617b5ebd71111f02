// Package insts provides RISC-V instruction definitions, decoding and encoding.
//
// This package implements decoding of RV32IMF machine code into structured
// instruction representations. It supports:
//   - RV32I base integer instructions (arithmetic, loads/stores, branches, jumps)
//   - the M extension (MUL, DIV, REM and friends)
//   - the single-precision F extension, including fused multiply-add
//   - ECALL / EBREAK
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x00500093) // addi x1, x0, 5
//	fmt.Printf("Op: %v, Rd: %d, Rs1: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Rs1, inst.Imm)
package insts
