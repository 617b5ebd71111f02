// Package emu provides functional RISC-V emulation: the architectural state
// (register files and memory), the pure execution units, and a single-cycle
// reference emulator.
package emu

import "fmt"

// Registers with a fixed role in the RISC-V calling convention.
const (
	RegZero uint8 = 0
	RegRA   uint8 = 1
	RegSP   uint8 = 2
	RegA0   uint8 = 10
	RegA1   uint8 = 11
	RegA2   uint8 = 12
	RegA7   uint8 = 17
)

// NumRegs is the number of registers in each of the integer and
// floating-point register files.
const NumRegs = 32

// RegFile represents the RV32F architectural register state.
type RegFile struct {
	// X holds the integer registers. X[0] is hardwired to zero.
	X [NumRegs]uint32

	// F holds the single-precision registers as raw IEEE-754 bits.
	F [NumRegs]uint32

	// FFlags holds the accrued floating-point exception flags (fcsr[4:0]).
	FFlags uint32

	// PC is the program counter.
	PC uint32
}

// ReadReg reads an integer register. Register 0 always reads as 0.
func (r *RegFile) ReadReg(reg uint8) uint32 {
	checkReg(reg)
	if reg == RegZero {
		return 0
	}
	return r.X[reg]
}

// WriteReg writes an integer register. Writes to register 0 are ignored.
func (r *RegFile) WriteReg(reg uint8, value uint32) {
	checkReg(reg)
	if reg == RegZero {
		return
	}
	r.X[reg] = value
}

// ReadFReg reads the raw bits of a floating-point register.
func (r *RegFile) ReadFReg(reg uint8) uint32 {
	checkReg(reg)
	return r.F[reg]
}

// WriteFReg writes the raw bits of a floating-point register.
func (r *RegFile) WriteFReg(reg uint8, value uint32) {
	checkReg(reg)
	r.F[reg] = value
}

// Read reads from the integer or floating-point file.
func (r *RegFile) Read(reg uint8, fp bool) uint32 {
	if fp {
		return r.ReadFReg(reg)
	}
	return r.ReadReg(reg)
}

// Write writes to the integer or floating-point file.
func (r *RegFile) Write(reg uint8, fp bool, value uint32) {
	if fp {
		r.WriteFReg(reg, value)
		return
	}
	r.WriteReg(reg, value)
}

// AccrueFlags ORs floating-point exception flags into fflags.
func (r *RegFile) AccrueFlags(flags uint32) {
	r.FFlags |= flags & 0x1F
}

// Reset zeroes every register in place.
func (r *RegFile) Reset() {
	*r = RegFile{}
}

func checkReg(reg uint8) {
	if reg >= NumRegs {
		panic(fmt.Sprintf("emu: register index %d out of range", reg))
	}
}
