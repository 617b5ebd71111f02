package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/emu"
)

var _ = Describe("RegFile", func() {
	var regFile *emu.RegFile

	BeforeEach(func() {
		regFile = &emu.RegFile{}
	})

	It("should hardwire x0 to zero", func() {
		regFile.WriteReg(0, 42)
		Expect(regFile.ReadReg(0)).To(Equal(uint32(0)))
	})

	It("should keep f0 writable", func() {
		regFile.WriteFReg(0, 0x3F800000)
		Expect(regFile.ReadFReg(0)).To(Equal(uint32(0x3F800000)))
	})

	It("should select the file by the fp flag", func() {
		regFile.Write(5, false, 7)
		regFile.Write(5, true, 9)

		Expect(regFile.Read(5, false)).To(Equal(uint32(7)))
		Expect(regFile.Read(5, true)).To(Equal(uint32(9)))
	})

	It("should accrue only the five flag bits", func() {
		regFile.AccrueFlags(emu.FlagDZ)
		regFile.AccrueFlags(emu.FlagNV | 0xE0)

		Expect(regFile.FFlags).To(Equal(emu.FlagDZ | emu.FlagNV))
	})

	It("should panic on an out of range register", func() {
		Expect(func() { regFile.ReadReg(32) }).To(Panic())
		Expect(func() { regFile.WriteFReg(40, 1) }).To(Panic())
	})

	It("should clear everything on reset", func() {
		regFile.WriteReg(3, 1)
		regFile.PC = 0x100
		regFile.Reset()

		Expect(regFile.ReadReg(3)).To(BeZero())
		Expect(regFile.PC).To(BeZero())
	})
})

var _ = Describe("Memory", func() {
	var memory *emu.Memory

	BeforeEach(func() {
		memory = emu.NewMemory()
	})

	It("should read unwritten locations as zero", func() {
		Expect(memory.Read32(0xDEAD0000)).To(BeZero())
	})

	It("should store words little-endian", func() {
		memory.Write32(0x100, 0x11223344)

		Expect(memory.Read8(0x100)).To(Equal(uint8(0x44)))
		Expect(memory.Read8(0x103)).To(Equal(uint8(0x11)))
		Expect(memory.Read16(0x102)).To(Equal(uint16(0x1122)))
	})

	It("should handle accesses spanning a page boundary", func() {
		memory.Write32(0xFFE, 0xCAFEBABE)
		Expect(memory.Read32(0xFFE)).To(Equal(uint32(0xCAFEBABE)))
	})

	It("should write doublewords as two words", func() {
		memory.Write64(0x20, 0x0102030405060708)

		Expect(memory.Read32(0x20)).To(Equal(uint32(0x05060708)))
		Expect(memory.Read32(0x24)).To(Equal(uint32(0x01020304)))
	})

	It("should copy byte slices in and out", func() {
		memory.LoadBytes(0x40, []byte("hi!"))
		Expect(memory.ReadBytes(0x40, 3)).To(Equal([]byte("hi!")))
	})

	It("should drop everything on reset", func() {
		memory.Write8(0x10, 1)
		memory.Reset()
		Expect(memory.Read8(0x10)).To(BeZero())
	})
})
