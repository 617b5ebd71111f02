package emu

import (
	"math"

	"github.com/sarchlab/rvsim/insts"
)

// Floating-point exception flags, as accrued in fcsr.fflags.
const (
	FlagNX uint32 = 1 << 0 // inexact
	FlagUF uint32 = 1 << 1 // underflow
	FlagOF uint32 = 1 << 2 // overflow
	FlagDZ uint32 = 1 << 3 // divide by zero
	FlagNV uint32 = 1 << 4 // invalid operation
)

// Rounding modes encoded in the rm field.
const (
	RoundNearestEven uint8 = 0
	RoundTowardZero  uint8 = 1
	RoundDown        uint8 = 2
	RoundUp          uint8 = 3
	RoundNearestMax  uint8 = 4
	RoundDynamic     uint8 = 7
)

// CanonicalNaN is the quiet NaN produced by every arithmetic operation whose
// result is NaN.
const CanonicalNaN uint32 = 0x7FC00000

const signBit uint32 = 0x80000000

// FPUResult is the output of a single-precision operation. Value holds raw
// float bits for results written to an f register and a plain integer for
// compares, classifies, and conversions to integer.
type FPUResult struct {
	Value uint32
	Flags uint32
}

// ExecuteFPU performs an RV32F computational operation on raw register bits.
// a, b, and c are rs1, rs2, and rs3; for fcvt.s.w(u) and fmv.w.x a is the
// integer source. rm is the instruction's rounding-mode field and only
// affects conversions to integer, where the dynamic mode means
// round-to-nearest-even. Arithmetic rounds to nearest even.
func ExecuteFPU(op insts.Op, rm uint8, a, b, c uint32) FPUResult {
	fa, fb, fc := f32(a), f32(b), f32(c)

	switch op {
	case insts.OpFADDS:
		return arith(float32(fa+fb), a, b)
	case insts.OpFSUBS:
		return arith(float32(fa-fb), a, b)
	case insts.OpFMULS:
		return arith(float32(fa*fb), a, b)
	case insts.OpFDIVS:
		res := arith(float32(fa/fb), a, b)
		if fb == 0 && fa != 0 && !isNaN(a) && !isInf(a) {
			res.Flags = FlagDZ
		}
		return res
	case insts.OpFSQRTS:
		return arith(float32(math.Sqrt(float64(fa))), a)
	case insts.OpFMADDS:
		return arith(fma(fa, fb, fc), a, b, c)
	case insts.OpFMSUBS:
		return arith(fma(fa, fb, -fc), a, b, c)
	case insts.OpFNMSUBS:
		return arith(fma(-fa, fb, fc), a, b, c)
	case insts.OpFNMADDS:
		return arith(fma(-fa, fb, -fc), a, b, c)
	case insts.OpFSGNJS:
		return FPUResult{Value: a&^signBit | b&signBit}
	case insts.OpFSGNJNS:
		return FPUResult{Value: a&^signBit | ^b&signBit}
	case insts.OpFSGNJXS:
		return FPUResult{Value: a ^ b&signBit}
	case insts.OpFMINS:
		return minMax(a, b, false)
	case insts.OpFMAXS:
		return minMax(a, b, true)
	case insts.OpFCVTWS:
		return toInt32(fa, rm)
	case insts.OpFCVTWUS:
		return toUint32(fa, rm)
	case insts.OpFMVXW, insts.OpFMVWX:
		return FPUResult{Value: a}
	case insts.OpFEQS:
		return compare(a, b, fa == fb, false)
	case insts.OpFLTS:
		return compare(a, b, fa < fb, true)
	case insts.OpFLES:
		return compare(a, b, fa <= fb, true)
	case insts.OpFCLASSS:
		return FPUResult{Value: Classify(a)}
	case insts.OpFCVTSW:
		return FPUResult{Value: math.Float32bits(float32(int32(a)))}
	case insts.OpFCVTSWU:
		return FPUResult{Value: math.Float32bits(float32(a))}
	}

	return FPUResult{}
}

// Classify returns the fclass.s bit mask of a single-precision value.
func Classify(a uint32) uint32 {
	neg := a&signBit != 0
	exp := (a >> 23) & 0xFF
	frac := a & 0x7FFFFF

	pick := func(negBit, posBit uint) uint32 {
		if neg {
			return 1 << negBit
		}
		return 1 << posBit
	}

	switch {
	case exp == 0xFF && frac == 0:
		return pick(0, 7)
	case exp == 0xFF && frac&(1<<22) != 0:
		return 1 << 9
	case exp == 0xFF:
		return 1 << 8
	case exp == 0 && frac == 0:
		return pick(3, 4)
	case exp == 0:
		return pick(2, 5)
	default:
		return pick(1, 6)
	}
}

func f32(bits uint32) float32 {
	return math.Float32frombits(bits)
}

func fma(a, b, c float32) float32 {
	return float32(math.FMA(float64(a), float64(b), float64(c)))
}

func isNaN(bits uint32) bool {
	return bits&0x7F800000 == 0x7F800000 && bits&0x7FFFFF != 0
}

func isSignalingNaN(bits uint32) bool {
	return isNaN(bits) && bits&(1<<22) == 0
}

func isInf(bits uint32) bool {
	return bits&^signBit == 0x7F800000
}

func arith(r float32, inputs ...uint32) FPUResult {
	if math.IsNaN(float64(r)) {
		flags := FlagNV
		quietInput := false
		for _, in := range inputs {
			if isSignalingNaN(in) {
				return FPUResult{Value: CanonicalNaN, Flags: FlagNV}
			}
			quietInput = quietInput || isNaN(in)
		}
		if quietInput {
			flags = 0
		}
		return FPUResult{Value: CanonicalNaN, Flags: flags}
	}

	bits := math.Float32bits(r)
	if isInf(bits) {
		for _, in := range inputs {
			if isInf(in) {
				return FPUResult{Value: bits}
			}
		}
		return FPUResult{Value: bits, Flags: FlagOF | FlagNX}
	}

	return FPUResult{Value: bits}
}

func minMax(a, b uint32, wantMax bool) FPUResult {
	var flags uint32
	if isSignalingNaN(a) || isSignalingNaN(b) {
		flags = FlagNV
	}

	switch {
	case isNaN(a) && isNaN(b):
		return FPUResult{Value: CanonicalNaN, Flags: flags}
	case isNaN(a):
		return FPUResult{Value: b, Flags: flags}
	case isNaN(b):
		return FPUResult{Value: a, Flags: flags}
	}

	fa, fb := f32(a), f32(b)
	if fa == fb {
		// -0.0 orders below +0.0.
		if wantMax {
			return FPUResult{Value: a & b}
		}
		return FPUResult{Value: a | b}
	}

	if (fa > fb) == wantMax {
		return FPUResult{Value: a}
	}
	return FPUResult{Value: b}
}

func compare(a, b uint32, result, signaling bool) FPUResult {
	if isNaN(a) || isNaN(b) {
		if signaling || isSignalingNaN(a) || isSignalingNaN(b) {
			return FPUResult{Flags: FlagNV}
		}
		return FPUResult{}
	}
	return FPUResult{Value: boolToU32(result)}
}

func round(f float64, rm uint8) float64 {
	switch rm {
	case RoundTowardZero:
		return math.Trunc(f)
	case RoundDown:
		return math.Floor(f)
	case RoundUp:
		return math.Ceil(f)
	case RoundNearestMax:
		return math.Round(f)
	default:
		return math.RoundToEven(f)
	}
}

func toInt32(f float32, rm uint8) FPUResult {
	if math.IsNaN(float64(f)) {
		return FPUResult{Value: math.MaxInt32, Flags: FlagNV}
	}

	r := round(float64(f), rm)
	switch {
	case r > math.MaxInt32:
		return FPUResult{Value: math.MaxInt32, Flags: FlagNV}
	case r < math.MinInt32:
		return FPUResult{Value: signBit, Flags: FlagNV}
	}

	res := FPUResult{Value: uint32(int32(r))}
	if r != float64(f) {
		res.Flags = FlagNX
	}
	return res
}

func toUint32(f float32, rm uint8) FPUResult {
	if math.IsNaN(float64(f)) {
		return FPUResult{Value: math.MaxUint32, Flags: FlagNV}
	}

	r := round(float64(f), rm)
	switch {
	case r > math.MaxUint32:
		return FPUResult{Value: math.MaxUint32, Flags: FlagNV}
	case r < 0:
		return FPUResult{Value: 0, Flags: FlagNV}
	}

	res := FPUResult{Value: uint32(r)}
	if r != float64(f) {
		res.Flags = FlagNX
	}
	return res
}
