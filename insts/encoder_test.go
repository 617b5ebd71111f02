package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/insts"
)

var _ = Describe("Encoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	It("should produce the canonical encodings", func() {
		Expect(insts.MustEncode(insts.OpADDI, 1, 0, 0, 0, 5)).To(Equal(uint32(0x00500093)))
		Expect(insts.MustEncode(insts.OpADD, 4, 3, 3, 0, 0)).To(Equal(uint32(0x00318233)))
		Expect(insts.MustEncode(insts.OpBEQ, 0, 1, 2, 0, -8)).To(Equal(uint32(0xFE208CE3)))
		Expect(insts.MustEncode(insts.OpSW, 0, 1, 2, 0, 12)).To(Equal(uint32(0x0020A623)))
		Expect(insts.MustEncode(insts.OpSRAI, 1, 2, 0, 0, 3)).To(Equal(uint32(0x40315093)))
		Expect(insts.MustEncode(insts.OpECALL, 0, 0, 0, 0, 0)).To(Equal(uint32(0x00000073)))
	})

	DescribeTable("decoding what was encoded",
		func(op insts.Op, rd, rs1, rs2, rs3 uint8, imm int32) {
			word, err := insts.Encode(op, rd, rs1, rs2, rs3, imm)
			Expect(err).NotTo(HaveOccurred())

			inst := decoder.Decode(word)
			Expect(inst.Op).To(Equal(op))
		},
		Entry("jal backwards", insts.OpJAL, uint8(1), uint8(0), uint8(0), uint8(0), int32(-1024)),
		Entry("jalr", insts.OpJALR, uint8(0), uint8(1), uint8(0), uint8(0), int32(0)),
		Entry("bgeu forward", insts.OpBGEU, uint8(0), uint8(5), uint8(6), uint8(0), int32(64)),
		Entry("remu", insts.OpREMU, uint8(7), uint8(8), uint8(9), uint8(0), int32(0)),
		Entry("fsqrt.s", insts.OpFSQRTS, uint8(1), uint8(2), uint8(0), uint8(0), int32(0)),
		Entry("fnmadd.s", insts.OpFNMADDS, uint8(1), uint8(2), uint8(3), uint8(4), int32(0)),
		Entry("fcvt.s.wu", insts.OpFCVTSWU, uint8(1), uint8(2), uint8(0), uint8(0), int32(0)),
		Entry("fle.s", insts.OpFLES, uint8(1), uint8(2), uint8(3), uint8(0), int32(0)),
		Entry("fsw", insts.OpFSW, uint8(0), uint8(2), uint8(3), uint8(0), int32(-4)),
	)

	It("should keep the immediate of a decoded branch", func() {
		word := insts.MustEncode(insts.OpBNE, 0, 3, 4, 0, -4096)
		Expect(decoder.Decode(word).Imm).To(Equal(int32(-4096)))
	})

	It("should reject out of range immediates", func() {
		_, err := insts.Encode(insts.OpADDI, 1, 0, 0, 0, 4096)
		Expect(err).To(MatchError(insts.ErrUnencodable))

		_, err = insts.Encode(insts.OpBEQ, 0, 1, 2, 0, 3)
		Expect(err).To(MatchError(insts.ErrUnencodable))

		_, err = insts.Encode(insts.OpSLLI, 1, 1, 0, 0, 32)
		Expect(err).To(MatchError(insts.ErrUnencodable))
	})

	It("should reject unknown opcodes", func() {
		_, err := insts.Encode(insts.OpUnknown, 0, 0, 0, 0, 0)
		Expect(err).To(MatchError(insts.ErrUnencodable))
	})

	Describe("String", func() {
		It("should render assembler syntax", func() {
			Expect(decoder.Decode(0x00500093).String()).To(Equal("addi x1, x0, 5"))
			Expect(decoder.Decode(0x0080A103).String()).To(Equal("lw x2, 8(x1)"))
			Expect(decoder.Decode(0x0020A623).String()).To(Equal("sw x2, 12(x1)"))
			Expect(decoder.Decode(0x003170D3).String()).To(Equal("fadd.s f1, f2, f3"))
			Expect(decoder.Decode(0x00000073).String()).To(Equal("ecall"))
		})
	})
})
