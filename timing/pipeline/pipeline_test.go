package pipeline_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/program"
	"github.com/sarchlab/rvsim/timing/cache"
	"github.com/sarchlab/rvsim/timing/pipeline"
)

const maxCycles = 100000

type machine struct {
	pipe    *pipeline.Pipeline
	regFile *emu.RegFile
	memory  *emu.Memory
	output  *bytes.Buffer
}

func boot(prog *program.Program, opts ...pipeline.PipelineOption) *machine {
	m := &machine{
		regFile: &emu.RegFile{},
		memory:  emu.NewMemory(),
		output:  &bytes.Buffer{},
	}
	Expect(prog.Load(m.memory)).To(Succeed())
	m.regFile.WriteReg(emu.RegSP, prog.InitialSP)

	opts = append([]pipeline.PipelineOption{pipeline.WithOutput(m.output, m.output)}, opts...)
	m.pipe = pipeline.NewPipeline(m.regFile, m.memory, opts...)
	m.pipe.SetPC(prog.Entry)

	return m
}

func (m *machine) run() {
	m.pipe.RunCycles(maxCycles)
	ExpectWithOffset(1, m.pipe.Halted()).To(BeTrue(), "pipeline did not halt")
}

func expectSameState(m *machine, prog *program.Program) {
	var out bytes.Buffer
	ref := emu.NewEmulator(
		emu.WithStdout(&out),
		emu.WithStderr(&out),
		emu.WithStackPointer(prog.InitialSP),
		emu.WithMaxInstructions(maxCycles),
	)
	Expect(prog.Load(ref.Memory())).To(Succeed())
	ref.RegFile().PC = prog.Entry
	code := ref.Run()
	want := ref.RegFile()

	Expect(m.pipe.Err()).NotTo(HaveOccurred())
	Expect(m.pipe.ExitCode()).To(Equal(code))
	Expect(m.regFile.X).To(Equal(want.X))
	Expect(m.regFile.F).To(Equal(want.F))
	Expect(m.regFile.FFlags).To(Equal(want.FFlags))
	Expect(m.regFile.PC).To(Equal(want.PC))
	Expect(m.output.String()).To(Equal(out.String()))

	layout := prog.Layout()
	if len(layout) > 0 {
		span := layout[len(layout)-1] + 8 - prog.DataBase
		Expect(m.memory.ReadBytes(prog.DataBase, span)).
			To(Equal(ref.Memory().ReadBytes(prog.DataBase, span)))
	}
	Expect(m.memory.ReadBytes(prog.InitialSP-64, 64)).
		To(Equal(ref.Memory().ReadBytes(prog.InitialSP-64, 64)))
}

// increments adds one to x1 n times and stops at a breakpoint.
func increments(n int) *program.Program {
	b := program.NewBuilder()
	for i := 0; i < n; i++ {
		b.Inst(insts.OpADDI, 1, 1, 0, 0, 1)
	}
	b.Inst(insts.OpEBREAK, 0, 0, 0, 0, 0)
	return b.MustBuild()
}

// countdown swallows system calls and exits on the given call.
type countdown struct {
	calls int
	seen  int
}

func (h *countdown) Handle() emu.SyscallResult {
	h.seen++
	if h.seen == h.calls {
		return emu.SyscallResult{Exited: true, ExitCode: 7}
	}
	return emu.SyscallResult{}
}

var _ = Describe("Pipeline", func() {
	DescribeTable("should match the functional emulator",
		func(build func() *program.Program, opts ...pipeline.PipelineOption) {
			prog := build()
			m := boot(prog, opts...)
			m.run()

			expectSameState(m, prog)
		},
		Entry("loop", loopSum),
		Entry("loop without forwarding", loopSum, pipeline.WithoutForwarding()),
		Entry("loop without prediction", loopSum, pipeline.WithoutBranchPrediction()),
		Entry("prefix sum", prefixSum),
		Entry("prefix sum without forwarding", prefixSum, pipeline.WithoutForwarding()),
		Entry("prefix sum with a data cache", prefixSum, pipeline.WithDCache(cache.DefaultL1DConfig())),
		Entry("calls", calls),
		Entry("calls without prediction", calls, pipeline.WithoutBranchPrediction()),
		Entry("calls with a data cache", calls, pipeline.WithDCache(cache.DefaultL1DConfig())),
		Entry("mul and div", mulDiv),
		Entry("mul and div without forwarding", mulDiv, pipeline.WithoutForwarding()),
		Entry("mixed register files", mixedFiles),
		Entry("mixed register files without forwarding", mixedFiles, pipeline.WithoutForwarding()),
		Entry("mixed register files with a data cache", mixedFiles, pipeline.WithDCache(cache.DefaultL1DConfig())),
		Entry("chain", chain),
		Entry("chain without forwarding", chain, pipeline.WithoutForwarding()),
		Entry("hello", hello),
		Entry("hello with a data cache", hello, pipeline.WithDCache(cache.DefaultL1DConfig())),
	)

	It("should write back the first instruction on the fifth cycle", func() {
		m := boot(increments(1))

		m.pipe.RunCycles(4)
		Expect(m.regFile.X[1]).To(BeZero())
		Expect(m.pipe.Stats().Instructions).To(BeZero())

		m.pipe.Tick()
		Expect(m.regFile.X[1]).To(Equal(uint32(1)))
		Expect(m.pipe.Stats().Instructions).To(Equal(uint64(1)))
	})

	It("should forward back-to-back results without stalling", func() {
		m := boot(increments(4))
		m.run()

		s := m.pipe.Stats()
		Expect(m.regFile.X[1]).To(Equal(uint32(4)))
		Expect(s.Cycles).To(Equal(uint64(8)))
		Expect(s.Instructions).To(Equal(uint64(4)))
		Expect(s.Stalls).To(BeZero())
		Expect(s.DataHazards).To(Equal(uint64(3)))
	})

	It("should stall decode until producers write back without forwarding", func() {
		fwd := boot(increments(4))
		fwd.run()
		m := boot(increments(4), pipeline.WithoutForwarding())
		m.run()

		Expect(m.regFile.X[1]).To(Equal(uint32(4)))
		Expect(m.pipe.Stats().DataHazards).To(Equal(uint64(6)))
		Expect(m.pipe.Stats().Cycles).To(Equal(fwd.pipe.Stats().Cycles + 6))
	})

	It("should insert one bubble between a load and its consumer", func() {
		b := program.NewBuilder()
		d := b.DataWord(41)
		b.LoadImm(5, d)
		b.Inst(insts.OpLW, 6, 5, 0, 0, 0)
		b.Inst(insts.OpADDI, 7, 6, 0, 0, 1)
		b.Inst(insts.OpEBREAK, 0, 0, 0, 0, 0)
		m := boot(b.MustBuild())
		m.run()

		Expect(m.regFile.X[7]).To(Equal(uint32(42)))
		Expect(m.pipe.Stats().LoadUseStalls).To(Equal(uint64(1)))
	})

	It("should hold execute for a multi-cycle operation", func() {
		b := program.NewBuilder()
		b.Inst(insts.OpADDI, 5, 0, 0, 0, 100)
		b.Inst(insts.OpADDI, 6, 0, 0, 0, 7)
		b.Inst(insts.OpDIV, 7, 5, 6, 0, 0)
		b.Inst(insts.OpEBREAK, 0, 0, 0, 0, 0)
		m := boot(b.MustBuild())
		m.run()

		Expect(m.regFile.X[7]).To(Equal(uint32(14)))
		Expect(m.pipe.Stats().ExecStalls).To(Equal(uint64(11)))
	})

	It("should hold memory for the data cache latency", func() {
		m := boot(prefixSum(), pipeline.WithDCache(cache.DefaultL1DConfig()))
		m.run()

		reads := m.pipe.Stats()
		Expect(reads.MemStalls).To(BeNumerically(">", 0))
		dc, ok := m.pipe.DCacheStats()
		Expect(ok).To(BeTrue())
		Expect(dc.Reads).To(Equal(uint64(5)))
		Expect(dc.Writes).To(Equal(uint64(5)))
	})

	It("should report no data cache when it is disabled", func() {
		m := boot(prefixSum())
		m.run()

		_, ok := m.pipe.DCacheStats()
		Expect(ok).To(BeFalse())
		Expect(m.pipe.Stats().MemStalls).To(BeZero())
	})

	It("should flush the wrong path of a mispredicted branch", func() {
		b := program.NewBuilder()
		b.Inst(insts.OpBEQ, 0, 0, 0, 0, 12)
		b.Inst(insts.OpADDI, 5, 0, 0, 0, 1)
		b.Inst(insts.OpADDI, 6, 0, 0, 0, 1)
		b.Inst(insts.OpADDI, 7, 0, 0, 0, 3)
		b.Inst(insts.OpEBREAK, 0, 0, 0, 0, 0)
		m := boot(b.MustBuild())
		m.run()

		s := m.pipe.Stats()
		Expect(m.regFile.X[5]).To(BeZero())
		Expect(m.regFile.X[6]).To(BeZero())
		Expect(m.regFile.X[7]).To(Equal(uint32(3)))
		Expect(s.BranchMispredictions).To(Equal(uint64(1)))
		Expect(s.Flushes).To(Equal(uint64(1)))
		Expect(s.Instructions).To(Equal(uint64(2)))
	})

	It("should learn a loop branch", func() {
		static := boot(loopSum(), pipeline.WithoutBranchPrediction())
		static.run()
		m := boot(loopSum())
		m.run()

		Expect(static.pipe.PredictorStats()).To(BeZero())
		Expect(static.pipe.Stats().BranchMispredictions).To(Equal(uint64(9)))
		Expect(m.pipe.Stats().BranchMispredictions).To(BeNumerically("<", 9))
		Expect(m.pipe.PredictorStats().Predictions).To(BeNumerically(">", 0))
		Expect(m.pipe.Stats().Cycles).To(BeNumerically("<", static.pipe.Stats().Cycles))
	})

	It("should resolve jal at fetch", func() {
		m := boot(calls())
		m.run()

		s := m.pipe.Stats()
		Expect(s.BranchPredictions).To(Equal(uint64(4)))
		Expect(s.BranchMispredictions).To(Equal(uint64(2)))
		Expect(s.BranchCorrect).To(Equal(uint64(2)))
	})

	It("should restart fetch behind a system call", func() {
		m := boot(hello())
		m.run()

		Expect(m.output.String()).To(Equal("hello\n"))
		Expect(m.pipe.Stats().Serializations).To(Equal(uint64(1)))
		Expect(m.pipe.Stats().Flushes).To(BeNumerically(">=", 1))
	})

	It("should run system calls through a custom handler", func() {
		handler := &countdown{calls: 2}
		m := boot(hello(), pipeline.WithSyscallHandler(handler))
		m.run()

		Expect(handler.seen).To(Equal(2))
		Expect(m.output.String()).To(BeEmpty())
		Expect(m.pipe.ExitCode()).To(Equal(int64(7)))
	})

	It("should not count the exit call as retired", func() {
		b := program.NewBuilder()
		b.Inst(insts.OpADDI, a0, 0, 0, 0, 7)
		b.Exit()
		m := boot(b.MustBuild())

		Expect(m.pipe.Run()).To(Equal(int64(7)))
		Expect(m.pipe.Stats().Instructions).To(Equal(uint64(2)))
	})

	It("should stop at a breakpoint with the PC on it", func() {
		m := boot(increments(1))
		m.run()

		Expect(m.pipe.Err()).NotTo(HaveOccurred())
		Expect(m.regFile.PC).To(Equal(uint32(4)))
		Expect(m.pipe.Stats().Instructions).To(Equal(uint64(1)))
	})

	It("should halt on an illegal instruction that reaches memory", func() {
		b := program.NewBuilder()
		b.Inst(insts.OpADDI, 5, 0, 0, 0, 1)
		b.Word(0)
		b.Inst(insts.OpADDI, 6, 0, 0, 0, 1)
		m := boot(b.MustBuild())
		m.run()

		Expect(m.pipe.Err()).To(MatchError(pipeline.ErrIllegalInstruction))
		Expect(m.regFile.X[5]).To(Equal(uint32(1)))
		Expect(m.regFile.X[6]).To(BeZero())
	})

	It("should ignore an illegal word on a squashed path", func() {
		b := program.NewBuilder()
		b.Inst(insts.OpBEQ, 0, 0, 0, 0, 8)
		b.Word(0)
		b.Inst(insts.OpADDI, a0, 0, 0, 0, 9)
		b.Exit()
		m := boot(b.MustBuild())
		m.run()

		Expect(m.pipe.Err()).NotTo(HaveOccurred())
		Expect(m.pipe.ExitCode()).To(Equal(int64(9)))
	})

	It("should name its latches front to back", func() {
		m := boot(increments(4))
		m.pipe.RunCycles(4)

		latches := m.pipe.Latches()
		Expect(latches).To(HaveLen(4))
		for i, name := range []string{"IF/ID", "ID/EX", "EX/MEM", "MEM/WB"} {
			Expect(latches[i].Name).To(Equal(name))
			Expect(latches[i].Valid).To(BeTrue())
			Expect(latches[i].PC).To(Equal(uint32(12 - 4*i)))
		}
		Expect(latches[3].String()).To(HavePrefix("0x0000: "))
	})

	It("should reset to an empty pipeline", func() {
		m := boot(loopSum(), pipeline.WithDCache(cache.DefaultL1DConfig()))
		m.run()

		m.pipe.Reset()

		Expect(m.pipe.Halted()).To(BeFalse())
		Expect(m.pipe.Err()).NotTo(HaveOccurred())
		Expect(m.pipe.Stats()).To(BeZero())
		Expect(m.pipe.PredictorStats()).To(BeZero())
		for _, l := range m.pipe.Latches() {
			Expect(l.Valid).To(BeFalse())
			Expect(l.String()).To(Equal("bubble"))
		}
	})

	It("should not advance once halted", func() {
		m := boot(increments(1))
		m.run()
		cycles := m.pipe.Stats().Cycles

		Expect(m.pipe.RunCycles(10)).To(BeFalse())
		Expect(m.pipe.Stats().Cycles).To(Equal(cycles))
	})
})
