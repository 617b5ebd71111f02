package emu_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
)

var _ = Describe("FPU", func() {
	f := math.Float32bits
	posInf := f(float32(math.Inf(1)))
	negZero := uint32(0x80000000)
	sNaN := uint32(0x7F800001)

	exec := func(op insts.Op, a, b, c uint32) emu.FPUResult {
		return emu.ExecuteFPU(op, emu.RoundDynamic, a, b, c)
	}

	It("should add, multiply, and divide", func() {
		Expect(exec(insts.OpFADDS, f(1.5), f(2.25), 0).Value).To(Equal(f(3.75)))
		Expect(exec(insts.OpFMULS, f(-2), f(3), 0).Value).To(Equal(f(-6)))
		Expect(exec(insts.OpFDIVS, f(1), f(4), 0).Value).To(Equal(f(0.25)))
	})

	It("should fuse multiply-add variants", func() {
		a, b, c := f(2), f(3), f(1)

		Expect(exec(insts.OpFMADDS, a, b, c).Value).To(Equal(f(7)))
		Expect(exec(insts.OpFMSUBS, a, b, c).Value).To(Equal(f(5)))
		Expect(exec(insts.OpFNMSUBS, a, b, c).Value).To(Equal(f(-5)))
		Expect(exec(insts.OpFNMADDS, a, b, c).Value).To(Equal(f(-7)))
	})

	It("should raise divide-by-zero", func() {
		res := exec(insts.OpFDIVS, f(1), 0, 0)

		Expect(res.Value).To(Equal(posInf))
		Expect(res.Flags).To(Equal(emu.FlagDZ))
	})

	It("should return the canonical NaN for invalid operations", func() {
		res := exec(insts.OpFSQRTS, f(-1), 0, 0)
		Expect(res.Value).To(Equal(emu.CanonicalNaN))
		Expect(res.Flags).To(Equal(emu.FlagNV))

		res = exec(insts.OpFSUBS, posInf, posInf, 0)
		Expect(res.Value).To(Equal(emu.CanonicalNaN))
		Expect(res.Flags).To(Equal(emu.FlagNV))
	})

	It("should propagate quiet NaNs without raising invalid", func() {
		res := exec(insts.OpFADDS, emu.CanonicalNaN, f(1), 0)

		Expect(res.Value).To(Equal(emu.CanonicalNaN))
		Expect(res.Flags).To(BeZero())
	})

	It("should flag overflow to infinity", func() {
		res := exec(insts.OpFMULS, f(math.MaxFloat32), f(2), 0)

		Expect(res.Value).To(Equal(posInf))
		Expect(res.Flags).To(Equal(emu.FlagOF | emu.FlagNX))
	})

	It("should inject signs", func() {
		Expect(exec(insts.OpFSGNJS, f(1), f(-2), 0).Value).To(Equal(f(-1)))
		Expect(exec(insts.OpFSGNJNS, f(1), f(-2), 0).Value).To(Equal(f(1)))
		Expect(exec(insts.OpFSGNJXS, f(-1), f(-2), 0).Value).To(Equal(f(1)))
	})

	It("should order zeros and ignore a single NaN in min/max", func() {
		Expect(exec(insts.OpFMINS, 0, negZero, 0).Value).To(Equal(negZero))
		Expect(exec(insts.OpFMAXS, 0, negZero, 0).Value).To(Equal(uint32(0)))
		Expect(exec(insts.OpFMINS, emu.CanonicalNaN, f(3), 0).Value).To(Equal(f(3)))

		res := exec(insts.OpFMAXS, sNaN, f(3), 0)
		Expect(res.Value).To(Equal(f(3)))
		Expect(res.Flags).To(Equal(emu.FlagNV))
	})

	It("should compare, treating NaN as unordered", func() {
		Expect(exec(insts.OpFLTS, f(1), f(2), 0).Value).To(Equal(uint32(1)))
		Expect(exec(insts.OpFLES, f(2), f(2), 0).Value).To(Equal(uint32(1)))
		Expect(exec(insts.OpFEQS, f(2), f(3), 0).Value).To(Equal(uint32(0)))

		res := exec(insts.OpFEQS, emu.CanonicalNaN, f(1), 0)
		Expect(res.Value).To(BeZero())
		Expect(res.Flags).To(BeZero())

		res = exec(insts.OpFLTS, emu.CanonicalNaN, f(1), 0)
		Expect(res.Flags).To(Equal(emu.FlagNV))
	})

	Describe("conversions", func() {
		It("should honor the rounding mode when converting to integer", func() {
			Expect(emu.ExecuteFPU(insts.OpFCVTWS, emu.RoundTowardZero, f(-2.7), 0, 0).Value).
				To(Equal(uint32(0xFFFFFFFE)))
			Expect(emu.ExecuteFPU(insts.OpFCVTWS, emu.RoundNearestEven, f(2.5), 0, 0).Value).
				To(Equal(uint32(2)))
			Expect(emu.ExecuteFPU(insts.OpFCVTWS, emu.RoundUp, f(2.1), 0, 0).Value).
				To(Equal(uint32(3)))
		})

		It("should saturate out of range conversions", func() {
			res := exec(insts.OpFCVTWS, f(3e9), 0, 0)
			Expect(res.Value).To(Equal(uint32(0x7FFFFFFF)))
			Expect(res.Flags).To(Equal(emu.FlagNV))

			res = exec(insts.OpFCVTWUS, f(-5), 0, 0)
			Expect(res.Value).To(BeZero())
			Expect(res.Flags).To(Equal(emu.FlagNV))

			res = exec(insts.OpFCVTWS, emu.CanonicalNaN, 0, 0)
			Expect(res.Value).To(Equal(uint32(0x7FFFFFFF)))
		})

		It("should convert integers to single precision", func() {
			Expect(exec(insts.OpFCVTSW, uint32(0xFFFFFFFD), 0, 0).Value).To(Equal(f(-3)))
			Expect(exec(insts.OpFCVTSWU, uint32(0xFFFFFFFD), 0, 0).Value).
				To(Equal(f(float32(uint32(0xFFFFFFFD)))))
		})

		It("should move bits unchanged", func() {
			Expect(exec(insts.OpFMVXW, sNaN, 0, 0).Value).To(Equal(sNaN))
			Expect(exec(insts.OpFMVWX, 0x12345678, 0, 0).Value).To(Equal(uint32(0x12345678)))
		})
	})

	DescribeTable("Classify",
		func(bits uint32, bit uint) {
			Expect(emu.Classify(bits)).To(Equal(uint32(1) << bit))
		},
		Entry("-inf", uint32(0xFF800000), uint(0)),
		Entry("-normal", f(-1), uint(1)),
		Entry("-subnormal", uint32(0x80000001), uint(2)),
		Entry("-0", negZero, uint(3)),
		Entry("+0", uint32(0), uint(4)),
		Entry("+subnormal", uint32(0x00000001), uint(5)),
		Entry("+normal", f(1), uint(6)),
		Entry("+inf", posInf, uint(7)),
		Entry("signaling NaN", sNaN, uint(8)),
		Entry("quiet NaN", emu.CanonicalNaN, uint(9)),
	)
})
