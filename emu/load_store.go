package emu

import "github.com/sarchlab/rvsim/insts"

// ExecuteLoad performs the memory read of a load instruction and returns the
// value to be written to rd, sign- or zero-extended to 32 bits.
func ExecuteLoad(mem *Memory, inst *insts.Instruction, addr uint32) uint32 {
	switch inst.MemSize() {
	case 1:
		v := mem.Read8(addr)
		if inst.MemSigned() {
			return uint32(int32(int8(v)))
		}
		return uint32(v)
	case 2:
		v := mem.Read16(addr)
		if inst.MemSigned() {
			return uint32(int32(int16(v)))
		}
		return uint32(v)
	default:
		return mem.Read32(addr)
	}
}

// ExecuteStore performs the memory write of a store instruction.
func ExecuteStore(mem *Memory, inst *insts.Instruction, addr, value uint32) {
	switch inst.MemSize() {
	case 1:
		mem.Write8(addr, uint8(value))
	case 2:
		mem.Write16(addr, uint16(value))
	default:
		mem.Write32(addr, value)
	}
}
