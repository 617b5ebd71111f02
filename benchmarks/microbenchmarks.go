package benchmarks

import (
	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/program"
)

const (
	a0 = emu.RegA0
	ra = emu.RegRA
)

// GetMicrobenchmarks returns the standard set of microbenchmarks. Each
// benchmark targets a specific core characteristic.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		memorySequential(),
		functionCalls(),
		branchTaken(),
		mixedOperations(),
		matrixMultiply2x2(),
		loopSimulation(),
		floatDotProduct(),
		dividePressure(),
	}
}

// GetCoreBenchmarks returns a minimal set of 3 core benchmarks for quick
// validation: a loop, a matrix multiply, and branch-heavy code.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		loopSimulation(),
		matrixMultiply2x2(),
		branchTaken(),
	}
}

// offsetTo returns the offset from the instruction about to be appended to
// target.
func offsetTo(b *program.Builder, target uint32) int32 {
	return int32(target) - int32(b.PC())
}

// withLeaf emits a jump over a leaf function and returns the function's
// address. body appends the function's instructions, without the return.
func withLeaf(b *program.Builder, size int, body func()) uint32 {
	b.Inst(insts.OpJAL, 0, 0, 0, 0, int32(size+2)*4)
	fn := b.PC()
	body()
	b.Inst(insts.OpJALR, 0, ra, 0, 0, 0)
	return fn
}

// 1. Arithmetic Sequential - Tests ALU throughput with independent operations
func arithmeticSequential() Benchmark {
	return Benchmark{
		Name:        "arithmetic_sequential",
		Description: "20 independent ADDI operations - measures ALU throughput",
		Program: func() *program.Program {
			b := program.NewBuilder()
			for i := 0; i < 20; i++ {
				rd := uint8(5 + i%5)
				b.Inst(insts.OpADDI, rd, rd, 0, 0, 1)
			}
			b.Inst(insts.OpADDI, a0, 5, 0, 0, 0)
			b.Exit()
			return b.MustBuild()
		},
		ExpectedExit: 4,
	}
}

// 2. Dependency Chain - Tests back-to-back result forwarding
func dependencyChain() Benchmark {
	return Benchmark{
		Name:        "dependency_chain",
		Description: "20 dependent ADDI operations - measures wakeup latency",
		Program: func() *program.Program {
			b := program.NewBuilder()
			for i := 0; i < 20; i++ {
				b.Inst(insts.OpADDI, a0, a0, 0, 0, 1)
			}
			b.Exit()
			return b.MustBuild()
		},
		ExpectedExit: 20,
	}
}

// 3. Memory Sequential - Tests store/load ordering
func memorySequential() Benchmark {
	return Benchmark{
		Name:        "memory_sequential",
		Description: "10 store/load pairs to sequential addresses - measures memory latency",
		Program: func() *program.Program {
			b := program.NewBuilder()
			buf := b.DataWord(0)
			for i := 1; i < 10; i++ {
				b.DataWord(0)
			}

			b.LoadImm(5, buf)
			b.Inst(insts.OpADDI, a0, 0, 0, 0, 42)
			for i := int32(0); i < 10; i++ {
				b.Inst(insts.OpSW, 0, 5, a0, 0, i*4)
				b.Inst(insts.OpLW, a0, 5, 0, 0, i*4)
			}
			b.Exit()
			return b.MustBuild()
		},
		ExpectedExit: 42,
	}
}

// 4. Function Calls - Tests JAL/JALR overhead
func functionCalls() Benchmark {
	return Benchmark{
		Name:        "function_calls",
		Description: "5 function calls (JAL + JALR pairs) - measures call overhead",
		Program: func() *program.Program {
			b := program.NewBuilder()
			fn := withLeaf(b, 1, func() {
				b.Inst(insts.OpADDI, a0, a0, 0, 0, 1)
			})
			for i := 0; i < 5; i++ {
				b.Inst(insts.OpJAL, ra, 0, 0, 0, offsetTo(b, fn))
			}
			b.Exit()
			return b.MustBuild()
		},
		ExpectedExit: 5,
	}
}

// 5. Branch Taken - Tests taken-branch redirect cost
func branchTaken() Benchmark {
	return Benchmark{
		Name:        "branch_taken",
		Description: "5 forward jumps over skipped code - measures branch overhead",
		Program: func() *program.Program {
			b := program.NewBuilder()
			for i := 0; i < 5; i++ {
				b.Inst(insts.OpADDI, a0, a0, 0, 0, 1)
				b.Inst(insts.OpJAL, 0, 0, 0, 0, 8)
				b.Inst(insts.OpADDI, a0, a0, 0, 0, 100)
			}
			b.Exit()
			return b.MustBuild()
		},
		ExpectedExit: 5,
	}
}

// 6. Mixed Operations - calls, memory, and a loop branch
func mixedOperations() Benchmark {
	return Benchmark{
		Name:        "mixed_operations",
		Description: "Mix of ADDI, SW/LW, and JAL in a loop - realistic workload characteristics",
		Program: func() *program.Program {
			b := program.NewBuilder()
			buf := b.DataWord(0)

			fn := withLeaf(b, 1, func() {
				b.Inst(insts.OpADDI, a0, a0, 0, 0, 10)
			})
			b.LoadImm(5, buf)
			b.Inst(insts.OpADDI, 6, 0, 0, 0, 10)
			loop := b.PC()
			b.Inst(insts.OpJAL, ra, 0, 0, 0, offsetTo(b, fn))
			b.Inst(insts.OpSW, 0, 5, a0, 0, 0)
			b.Inst(insts.OpLW, a0, 5, 0, 0, 0)
			b.Inst(insts.OpADDI, 6, 6, 0, 0, -1)
			b.Inst(insts.OpBNE, 0, 6, 0, 0, offsetTo(b, loop))
			b.Exit()
			return b.MustBuild()
		},
		ExpectedExit: 100,
	}
}

// 7. Matrix Multiply - load/compute/store pattern
func matrixMultiply2x2() Benchmark {
	return Benchmark{
		Name:        "matrix_operations",
		Description: "2x2 integer matrix multiply with MUL - tests memory access and the multiplier",
		Program: func() *program.Program {
			b := program.NewBuilder()
			ma := b.DataWord(1)
			b.DataWord(2)
			b.DataWord(3)
			b.DataWord(4)
			mb := b.DataWord(5)
			b.DataWord(6)
			b.DataWord(7)
			b.DataWord(8)
			mc := b.DataWord(0)
			b.DataWord(0)
			b.DataWord(0)
			b.DataWord(0)

			b.LoadImm(28, ma)
			b.LoadImm(29, mb)
			b.LoadImm(30, mc)
			for i := uint8(0); i < 4; i++ {
				b.Inst(insts.OpLW, 5+i, 28, 0, 0, int32(i)*4)
				b.Inst(insts.OpLW, 18+i, 29, 0, 0, int32(i)*4)
			}

			// c[r][k] = a[r][0]*b[0][k] + a[r][1]*b[1][k]
			for r := uint8(0); r < 2; r++ {
				for k := uint8(0); k < 2; k++ {
					b.Inst(insts.OpMUL, 13, 5+2*r, 18+k, 0, 0)
					b.Inst(insts.OpMUL, 14, 6+2*r, 20+k, 0, 0)
					b.Inst(insts.OpADD, 15, 13, 14, 0, 0)
					b.Inst(insts.OpSW, 0, 30, 15, 0, int32(2*r+k)*4)
				}
			}

			for i := int32(0); i < 4; i++ {
				b.Inst(insts.OpLW, 16, 30, 0, 0, i*4)
				b.Inst(insts.OpADD, a0, a0, 16, 0, 0)
			}
			b.Exit()
			return b.MustBuild()
		},
		ExpectedExit: 19 + 22 + 43 + 50,
	}
}

// 8. Loop - sums 0..9 with a backward conditional branch
func loopSimulation() Benchmark {
	return Benchmark{
		Name:        "loop_simulation",
		Description: "10-iteration counted loop - tests branch prediction on loop back-edges",
		Program: func() *program.Program {
			b := program.NewBuilder()
			b.Inst(insts.OpADDI, 5, 0, 0, 0, 0)
			b.Inst(insts.OpADDI, 6, 0, 0, 0, 10)
			loop := b.PC()
			b.Inst(insts.OpADD, a0, a0, 5, 0, 0)
			b.Inst(insts.OpADDI, 5, 5, 0, 0, 1)
			b.Inst(insts.OpBLT, 0, 5, 6, 0, offsetTo(b, loop))
			b.Exit()
			return b.MustBuild()
		},
		ExpectedExit: 45,
	}
}

// 9. Float Dot Product - fused multiply-adds beside integer bookkeeping
func floatDotProduct() Benchmark {
	return Benchmark{
		Name:        "float_dot_product",
		Description: "4-element FMADD.S dot product - exercises the floating-point lane",
		Program: func() *program.Program {
			b := program.NewBuilder()
			x := b.DataFloat(1)
			b.DataFloat(2)
			b.DataFloat(3)
			b.DataFloat(4)
			y := b.DataFloat(2)
			b.DataFloat(2)
			b.DataFloat(2)
			b.DataFloat(2)

			b.LoadImm(5, x)
			b.LoadImm(6, y)
			b.Inst(insts.OpFCVTSW, 0, 0, 0, 0, 0)
			for i := int32(0); i < 4; i++ {
				b.Inst(insts.OpFLW, 1, 5, 0, 0, i*4)
				b.Inst(insts.OpFLW, 2, 6, 0, 0, i*4)
				b.Inst(insts.OpFMADDS, 0, 1, 2, 0, 0)
				b.Inst(insts.OpADDI, 7, 7, 0, 0, 1)
			}
			b.Inst(insts.OpFCVTWS, a0, 0, 0, 0, 0)
			b.Exit()
			return b.MustBuild()
		},
		ExpectedExit: 20,
	}
}

// 10. Divide Pressure - long-latency divides beside independent work
func dividePressure() Benchmark {
	return Benchmark{
		Name:        "divide_pressure",
		Description: "Chained DIVs with independent ADDIs - measures latency hiding",
		Program: func() *program.Program {
			b := program.NewBuilder()
			b.LoadImm(5, 1<<20)
			b.Inst(insts.OpADDI, 6, 0, 0, 0, 2)
			for i := 0; i < 4; i++ {
				b.Inst(insts.OpDIV, 5, 5, 6, 0, 0)
				b.Inst(insts.OpADDI, 7, 7, 0, 0, 1)
				b.Inst(insts.OpADDI, 8, 8, 0, 0, 1)
			}
			b.Inst(insts.OpSRLI, 5, 5, 0, 0, 10)
			b.Inst(insts.OpADD, a0, 5, 7, 0, 0)
			b.Exit()
			return b.MustBuild()
		},
		ExpectedExit: 64 + 4,
	}
}
