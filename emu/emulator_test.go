package emu_test

import (
	"bytes"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
)

var _ = Describe("Emulator", func() {
	var (
		e         *emu.Emulator
		stdoutBuf *bytes.Buffer
	)

	enc := insts.MustEncode

	exitWith := func(code int32) []uint32 {
		return []uint32{
			enc(insts.OpADDI, emu.RegA0, 0, 0, 0, code),
			enc(insts.OpADDI, emu.RegA7, 0, 0, 0, int32(emu.SyscallExit)),
			enc(insts.OpECALL, 0, 0, 0, 0, 0),
		}
	}

	BeforeEach(func() {
		stdoutBuf = &bytes.Buffer{}
		e = emu.NewEmulator(emu.WithStdout(stdoutBuf))
	})

	Describe("LoadProgram", func() {
		It("should set the PC and copy the code", func() {
			e.LoadProgram(0x100, []byte{0xDE, 0xAD, 0xBE, 0xEF})

			Expect(e.RegFile().PC).To(Equal(uint32(0x100)))
			Expect(e.Memory().Read32(0x100)).To(Equal(uint32(0xEFBEADDE)))
		})
	})

	Describe("Step", func() {
		It("should execute addi and advance the PC", func() {
			e.LoadProgram(0, wordsToBytes(0x00500093)) // addi x1, x0, 5

			result := e.Step()

			Expect(result.Err).NotTo(HaveOccurred())
			Expect(e.RegFile().ReadReg(1)).To(Equal(uint32(5)))
			Expect(e.RegFile().PC).To(Equal(uint32(4)))
			Expect(e.InstructionCount()).To(Equal(uint64(1)))
		})

		It("should fail on an illegal instruction", func() {
			e.LoadProgram(0, wordsToBytes(0))

			result := e.Step()

			Expect(result.Err).To(MatchError(emu.ErrIllegalInstruction))
		})

		It("should halt on ebreak", func() {
			e.LoadProgram(0, wordsToBytes(enc(insts.OpEBREAK, 0, 0, 0, 0, 0)))

			Expect(e.Step().Halted).To(BeTrue())
		})

		It("should stop at the instruction limit", func() {
			e = emu.NewEmulator(emu.WithMaxInstructions(1))
			e.LoadProgram(0, wordsToBytes(0x00500093, 0x00500093))

			Expect(e.Step().Err).NotTo(HaveOccurred())
			Expect(e.Step().Err).To(MatchError(emu.ErrMaxInstructions))
		})
	})

	Describe("Run", func() {
		It("should sum 1..10 in a loop", func() {
			prog := []uint32{
				enc(insts.OpADDI, 5, 0, 0, 0, 10), // x5 = 10
				enc(insts.OpADDI, 6, 0, 0, 0, 0),  // x6 = 0
				enc(insts.OpADD, 6, 6, 5, 0, 0),   // loop: x6 += x5
				enc(insts.OpADDI, 5, 5, 0, 0, -1), // x5--
				enc(insts.OpBNE, 0, 5, 0, 0, -8),  // bne x5, x0, loop
				enc(insts.OpADDI, emu.RegA0, 6, 0, 0, 0),
				enc(insts.OpADDI, emu.RegA7, 0, 0, 0, int32(emu.SyscallExit)),
				enc(insts.OpECALL, 0, 0, 0, 0, 0),
			}
			e.LoadProgram(0, wordsToBytes(prog...))

			Expect(e.Run()).To(Equal(int64(55)))
		})

		It("should call and return through jal and jalr", func() {
			prog := []uint32{
				enc(insts.OpJAL, emu.RegRA, 0, 0, 0, 16), // 0x00: call 0x10
				enc(insts.OpADDI, 7, 7, 0, 0, 1),         // 0x04: x7++
			}
			prog = append(prog, exitWith(0)[1:]...)   // 0x08, 0x0C: exit(a0)
			prog = append(prog,
				enc(insts.OpADDI, emu.RegA0, 0, 0, 0, 9), // 0x10: a0 = 9
				enc(insts.OpJALR, 0, emu.RegRA, 0, 0, 0), // 0x14: ret
			)
			e.LoadProgram(0, wordsToBytes(prog...))

			Expect(e.Run()).To(Equal(int64(9)))
			Expect(e.RegFile().ReadReg(7)).To(Equal(uint32(1)))
			Expect(e.RegFile().ReadReg(emu.RegRA)).To(Equal(uint32(4)))
		})

		It("should store and load through memory", func() {
			prog := append([]uint32{
				enc(insts.OpLUI, 1, 0, 0, 0, 0x1000),   // x1 = 0x1000
				enc(insts.OpADDI, 2, 0, 0, 0, -2),      // x2 = -2
				enc(insts.OpSB, 0, 1, 2, 0, 3),         // mem[0x1003] = 0xFE
				enc(insts.OpLB, 3, 1, 0, 0, 3),         // x3 = -2
				enc(insts.OpLBU, 4, 1, 0, 0, 3),        // x4 = 0xFE
				enc(insts.OpSW, 0, 1, 4, 0, 8),         // mem[0x1008] = 0xFE
				enc(insts.OpLW, emu.RegA0, 1, 0, 0, 8), // a0 = 0xFE
			}, exitWith(0)[1:]...)
			e.LoadProgram(0, wordsToBytes(prog...))

			Expect(e.Run()).To(Equal(int64(0xFE)))
			Expect(e.RegFile().ReadReg(3)).To(Equal(uint32(0xFFFFFFFE)))
		})

		It("should print through the write syscall", func() {
			e.Memory().LoadBytes(0x800, []byte("ok\n"))
			prog := append([]uint32{
				enc(insts.OpADDI, emu.RegA0, 0, 0, 0, 1),
				enc(insts.OpADDI, emu.RegA1, 0, 0, 0, 0x7FF),
				enc(insts.OpADDI, emu.RegA1, emu.RegA1, 0, 0, 1),
				enc(insts.OpADDI, emu.RegA2, 0, 0, 0, 3),
				enc(insts.OpADDI, emu.RegA7, 0, 0, 0, int32(emu.SyscallWrite)),
				enc(insts.OpECALL, 0, 0, 0, 0, 0),
			}, exitWith(0)...)
			e.LoadProgram(0, wordsToBytes(prog...))

			Expect(e.Run()).To(Equal(int64(0)))
			Expect(stdoutBuf.String()).To(Equal("ok\n"))
		})

		It("should evaluate a fused multiply-add", func() {
			e.RegFile().WriteFReg(1, math.Float32bits(2))
			e.RegFile().WriteFReg(2, math.Float32bits(3))
			e.RegFile().WriteFReg(3, math.Float32bits(0.5))
			prog := append([]uint32{
				enc(insts.OpFMADDS, 4, 1, 2, 3, 0),
				enc(insts.OpFCVTWS, emu.RegA0, 4, 0, 0, 0),
			}, exitWith(0)[1:]...)
			e.LoadProgram(0, wordsToBytes(prog...))

			Expect(e.Run()).To(Equal(int64(6)))
			Expect(e.RegFile().ReadFReg(4)).To(Equal(math.Float32bits(6.5)))
			Expect(e.RegFile().FFlags).To(Equal(emu.FlagNX))
		})
	})
})
