package core_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/config"
	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/program"
	"github.com/sarchlab/rvsim/timing/core"
)

// sumAndPrint writes "hi\n", sums 1..10 into a data word, and exits with
// the sum.
func sumAndPrint() *program.Program {
	b := program.NewBuilder()
	msg := b.DataString("hi\n")
	total := b.DataWord(0)

	b.Inst(insts.OpADDI, emu.RegA0, 0, 0, 0, 1)
	b.LoadImm(emu.RegA1, msg)
	b.Inst(insts.OpADDI, emu.RegA2, 0, 0, 0, 3)
	b.Inst(insts.OpADDI, emu.RegA7, 0, 0, 0, int32(emu.SyscallWrite))
	b.Inst(insts.OpECALL, 0, 0, 0, 0, 0)

	b.Inst(insts.OpADDI, 5, 0, 0, 0, 0)
	b.Inst(insts.OpADDI, 6, 0, 0, 0, 10)
	loop := b.PC()
	b.Inst(insts.OpADD, 5, 5, 6, 0, 0)
	b.Inst(insts.OpADDI, 6, 6, 0, 0, -1)
	b.Inst(insts.OpBNE, 0, 6, 0, 0, int32(loop)-int32(b.PC()))

	b.LoadImm(7, total)
	b.Inst(insts.OpSW, 0, 7, 5, 0, 0)
	b.Inst(insts.OpLW, emu.RegA0, 7, 0, 0, 0)
	b.Exit()

	return b.MustBuild()
}

var _ = Describe("Core", func() {
	var (
		out bytes.Buffer
		c   *core.Core
	)

	build := func(cfg *config.Config) *core.Core {
		out.Reset()
		built, err := core.NewCore(cfg, core.WithOutput(&out, &out))
		Expect(err).NotTo(HaveOccurred())
		return built
	}

	Describe("NewCore", func() {
		It("should reject an invalid configuration", func() {
			cfg := config.Default()
			cfg.ROBSize = 0

			_, err := core.NewCore(cfg)
			Expect(err).To(HaveOccurred())
		})

		It("should reject an unknown core kind", func() {
			cfg := config.Default()
			cfg.Core = "quad"

			_, err := core.NewCore(cfg)
			Expect(err).To(MatchError(config.ErrUnknownCore))
		})

		It("should build the single-cycle core without an out-of-order engine", func() {
			c = build(config.DefaultFor(config.CoreSingle))
			Expect(c.OoO).To(BeNil())
			Expect(c.InOrder).To(BeNil())
		})

		It("should build the in-order pipeline without an out-of-order engine", func() {
			c = build(config.DefaultFor(config.CoreInOrder))
			Expect(c.InOrder).NotTo(BeNil())
			Expect(c.OoO).To(BeNil())
		})

		It("should size the out-of-order core from the configuration", func() {
			cfg := config.DefaultFor(config.CoreTriple)
			cfg.ROBSize = 12
			c = build(cfg)

			Expect(c.OoO).NotTo(BeNil())
			Expect(c.OoO.Params().IssueWidth).To(Equal(3))
			Expect(c.OoO.Params().FPLane).To(BeTrue())
			Expect(c.OoO.ROBView().Instrs).To(HaveLen(12))
		})
	})

	DescribeTable("should run a program to completion",
		func(kind config.CoreKind) {
			c = build(config.DefaultFor(kind))
			Expect(c.Load(sumAndPrint())).To(Succeed())

			code, err := c.Run(0)

			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(int64(55)))
			Expect(out.String()).To(Equal("hi\n"))
			Expect(c.Halted()).To(BeTrue())
			Expect(c.Stats().Instructions).To(BeNumerically(">", 30))
			Expect(c.Stats().CPI()).To(BeNumerically(">", 0))
		},
		Entry("single", config.CoreSingle),
		Entry("in-order", config.CoreInOrder),
		Entry("dual", config.CoreDual),
		Entry("triple", config.CoreTriple),
	)

	It("should retire the same instructions on every core", func() {
		var retired []uint64
		for _, kind := range []config.CoreKind{
			config.CoreSingle, config.CoreInOrder, config.CoreDual, config.CoreTriple,
		} {
			c = build(config.DefaultFor(kind))
			Expect(c.Load(sumAndPrint())).To(Succeed())
			_, err := c.Run(0)
			Expect(err).NotTo(HaveOccurred())
			retired = append(retired, c.Stats().Instructions)
		}

		Expect(retired).To(HaveEach(retired[0]))
	})

	DescribeTable("should not count the exit call as retired",
		func(kind config.CoreKind) {
			b := program.NewBuilder()
			b.Inst(insts.OpADDI, emu.RegA0, 0, 0, 0, 7)
			b.Exit()
			c = build(config.DefaultFor(kind))
			Expect(c.Load(b.MustBuild())).To(Succeed())

			code, err := c.Run(0)

			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(int64(7)))
			Expect(c.Stats().Instructions).To(Equal(uint64(2)))
		},
		Entry("single", config.CoreSingle),
		Entry("in-order", config.CoreInOrder),
		Entry("dual", config.CoreDual),
		Entry("triple", config.CoreTriple),
	)

	DescribeTable("should report an illegal instruction",
		func(kind config.CoreKind) {
			c = build(config.DefaultFor(kind))
			b := program.NewBuilder()
			b.Inst(insts.OpADDI, 5, 0, 0, 0, 1)
			b.Word(0)
			Expect(c.Load(b.MustBuild())).To(Succeed())

			_, err := c.Run(1000)

			Expect(err).To(MatchError(emu.ErrIllegalInstruction))
			Expect(c.RegFile().X[5]).To(Equal(uint32(1)))
		},
		Entry("single", config.CoreSingle),
		Entry("in-order", config.CoreInOrder),
		Entry("dual", config.CoreDual),
	)

	Context("with the dual-issue core", func() {
		BeforeEach(func() {
			c = build(config.Default())
		})

		It("should lay out data from the configured base", func() {
			cfg := config.Default()
			cfg.DataBase = 0x2000
			c = build(cfg)

			prog := &program.Program{
				Text: program.NewBuilder().Inst(insts.OpEBREAK, 0, 0, 0, 0, 0).MustBuild().Text,
				Data: []program.DataEntry{{Kind: program.KindWord, Int: 42}},
			}
			Expect(c.Load(prog)).To(Succeed())

			Expect(c.Memory().Read32(0x2000)).To(Equal(uint32(42)))
			Expect(c.RegFile().ReadReg(emu.RegSP)).To(Equal(program.DefaultStackTop))
		})

		It("should stop at the cycle limit", func() {
			b := program.NewBuilder()
			b.Inst(insts.OpJAL, 0, 0, 0, 0, 0)
			Expect(c.Load(b.MustBuild())).To(Succeed())

			_, err := c.Run(100)

			Expect(err).To(MatchError(core.ErrCycleLimit))
			Expect(c.Stats().Cycles).To(Equal(uint64(100)))
			Expect(c.Halted()).To(BeFalse())
		})

		It("should run for specified cycles and return running status", func() {
			Expect(c.Load(sumAndPrint())).To(Succeed())

			Expect(c.RunCycles(5)).To(BeTrue())
			Expect(c.Stats().Cycles).To(Equal(uint64(5)))
			Expect(c.RunCycles(10000)).To(BeFalse())
		})

		It("should not support undo", func() {
			Expect(c.Undo()).To(MatchError(core.ErrUndoUnsupported))
		})

		It("should reset to the freshly loaded program", func() {
			prog := sumAndPrint()
			Expect(c.Load(prog)).To(Succeed())
			_, err := c.Run(0)
			Expect(err).NotTo(HaveOccurred())
			first := c.Stats()

			Expect(c.Reset()).To(Succeed())

			Expect(c.Halted()).To(BeFalse())
			Expect(c.Stats().Cycles).To(BeZero())
			Expect(c.Stats().Instructions).To(BeZero())
			Expect(c.PC()).To(Equal(prog.Entry))
			Expect(c.Memory().Read32(prog.Layout()[1])).To(BeZero())

			code, err := c.Run(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(int64(55)))
			Expect(c.Stats().Cycles).To(Equal(first.Cycles))
		})

		It("should fold the out-of-order statistics", func() {
			Expect(c.Load(sumAndPrint())).To(Succeed())
			_, err := c.Run(0)
			Expect(err).NotTo(HaveOccurred())

			s := c.Stats()
			Expect(s.Instructions).To(Equal(s.Detail.InstrsRetired))
			Expect(s.Flushes).To(Equal(s.Detail.BranchMispredicts + s.Detail.Serializations))
			Expect(s.Detail.Serializations).To(Equal(uint64(1)))
			Expect(s.Predictor.Predictions).To(BeNumerically(">", 0))
			Expect(s.DCacheEnabled).To(BeFalse())
		})

		It("should render the machine state as a tree", func() {
			Expect(c.Load(sumAndPrint())).To(Succeed())
			c.RunCycles(4)

			report := c.Report()
			for _, part := range []string{
				"dual core, cycle 4",
				"latches", "IF/ID", "ID/IS", "EX ALU", "EX/ROB LSU",
				"stations", "ALU ", "LSU ",
				"rob head=",
				"stats", "retired",
			} {
				Expect(report).To(ContainSubstring(part))
			}
		})
	})

	It("should time loads through an enabled data cache", func() {
		cfg := config.Default()
		cfg.DCache.Enabled = true
		c = build(cfg)
		Expect(c.Load(sumAndPrint())).To(Succeed())

		code, err := c.Run(0)

		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(int64(55)))
		Expect(c.Stats().DCacheEnabled).To(BeTrue())
		Expect(c.Stats().DCache.Reads).To(BeNumerically(">=", 1))
		Expect(c.Stats().DCache.Writes).To(Equal(uint64(1)))
	})

	Context("with the in-order core", func() {
		BeforeEach(func() {
			c = build(config.DefaultFor(config.CoreInOrder))
		})

		It("should fold the pipeline statistics", func() {
			Expect(c.Load(sumAndPrint())).To(Succeed())
			_, err := c.Run(0)
			Expect(err).NotTo(HaveOccurred())

			s := c.Stats()
			Expect(s.Instructions).To(Equal(s.InOrder.Instructions))
			Expect(s.Flushes).To(Equal(s.InOrder.BranchMispredictions + s.InOrder.Serializations))
			Expect(s.InOrder.Serializations).To(Equal(uint64(1)))
			Expect(s.Predictor.Predictions).To(BeNumerically(">", 0))
			Expect(s.Detail).To(BeZero())
		})

		It("should render the pipeline registers as a tree", func() {
			Expect(c.Load(sumAndPrint())).To(Succeed())
			c.RunCycles(4)

			report := c.Report()
			for _, part := range []string{
				"inorder core, cycle 4",
				"latches", "IF/ID", "ID/EX", "EX/MEM", "MEM/WB",
				"stats", "load-use",
			} {
				Expect(report).To(ContainSubstring(part))
			}
			Expect(report).NotTo(ContainSubstring("rob"))
		})

		It("should reset to the freshly loaded program", func() {
			Expect(c.Load(sumAndPrint())).To(Succeed())
			_, err := c.Run(0)
			Expect(err).NotTo(HaveOccurred())
			first := c.Stats()

			Expect(c.Reset()).To(Succeed())
			Expect(c.Stats().Cycles).To(BeZero())

			code, err := c.Run(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(int64(55)))
			Expect(c.Stats().Cycles).To(Equal(first.Cycles))
		})

		It("should slow down with forwarding and prediction turned off", func() {
			Expect(c.Load(sumAndPrint())).To(Succeed())
			_, err := c.Run(0)
			Expect(err).NotTo(HaveOccurred())
			fast := c.Stats()

			cfg := config.DefaultFor(config.CoreInOrder)
			cfg.InOrder = config.InOrderConfig{}
			c = build(cfg)
			Expect(c.Load(sumAndPrint())).To(Succeed())
			code, err := c.Run(0)
			Expect(err).NotTo(HaveOccurred())

			Expect(code).To(Equal(int64(55)))
			Expect(c.Stats().Instructions).To(Equal(fast.Instructions))
			Expect(c.Stats().Cycles).To(BeNumerically(">", fast.Cycles))
			Expect(c.Stats().Predictor).To(BeZero())
		})
	})

	It("should report only statistics for the single-cycle core", func() {
		c = build(config.DefaultFor(config.CoreSingle))
		Expect(c.Load(sumAndPrint())).To(Succeed())
		c.RunCycles(3)

		report := c.Report()
		Expect(report).To(ContainSubstring("single core, cycle 3"))
		Expect(report).To(ContainSubstring("stats"))
		Expect(report).NotTo(ContainSubstring("rob"))
	})
})
