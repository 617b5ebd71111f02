package program_test

import (
	"encoding/binary"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/program"
)

const (
	elf32HeaderSize = 52
	elf32PhdrSize   = 32
	machineRISCV    = 243
	machineARM      = 40
)

type elfSegment struct {
	addr    uint32
	data    []byte
	memSize uint32
	flags   uint32
}

// writeELF32 writes a minimal little-endian ELF32 executable.
func writeELF32(path string, class byte, machine uint16, entry uint32, segs ...elfSegment) {
	header := make([]byte, elf32HeaderSize)
	copy(header[0:4], []byte{0x7f, 'E', 'L', 'F'})
	header[4] = class // ELFCLASS32 = 1
	header[5] = 1     // little endian
	header[6] = 1     // version
	binary.LittleEndian.PutUint16(header[16:18], 2) // executable
	binary.LittleEndian.PutUint16(header[18:20], machine)
	binary.LittleEndian.PutUint32(header[20:24], 1)
	binary.LittleEndian.PutUint32(header[24:28], entry)
	binary.LittleEndian.PutUint32(header[28:32], elf32HeaderSize) // phoff
	binary.LittleEndian.PutUint16(header[40:42], elf32HeaderSize)
	binary.LittleEndian.PutUint16(header[42:44], elf32PhdrSize)
	binary.LittleEndian.PutUint16(header[44:46], uint16(len(segs)))
	binary.LittleEndian.PutUint16(header[46:48], 40) // shentsize

	offset := uint32(elf32HeaderSize + elf32PhdrSize*len(segs))
	phdrs := make([]byte, 0, elf32PhdrSize*len(segs))
	var payload []byte
	for _, s := range segs {
		ph := make([]byte, elf32PhdrSize)
		binary.LittleEndian.PutUint32(ph[0:4], 1) // PT_LOAD
		binary.LittleEndian.PutUint32(ph[4:8], offset)
		binary.LittleEndian.PutUint32(ph[8:12], s.addr)
		binary.LittleEndian.PutUint32(ph[12:16], s.addr)
		binary.LittleEndian.PutUint32(ph[16:20], uint32(len(s.data)))
		binary.LittleEndian.PutUint32(ph[20:24], s.memSize)
		binary.LittleEndian.PutUint32(ph[24:28], s.flags)
		binary.LittleEndian.PutUint32(ph[28:32], 0x1000)
		phdrs = append(phdrs, ph...)
		payload = append(payload, s.data...)
		offset += uint32(len(s.data))
	}

	file, err := os.Create(path)
	Expect(err).NotTo(HaveOccurred())
	defer func() { _ = file.Close() }()

	_, _ = file.Write(header)
	_, _ = file.Write(phdrs)
	_, _ = file.Write(payload)
}

var _ = Describe("ELF Loader", func() {
	var tempDir string

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()
	})

	Context("with a valid RV32 executable", func() {
		var elfPath string
		code := []byte{0x93, 0x00, 0x50, 0x00} // addi x1, x0, 5
		data := []byte{1, 2, 3, 4}

		BeforeEach(func() {
			elfPath = filepath.Join(tempDir, "test.elf")
			writeELF32(elfPath, 1, machineRISCV, 0x10074,
				elfSegment{addr: 0x10074, data: code, memSize: 4, flags: 0x5},
				elfSegment{addr: 0x11000, data: data, memSize: 0x100, flags: 0x6},
			)
		})

		It("should extract the entry point", func() {
			prog, err := program.LoadELF(elfPath)

			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Entry).To(Equal(uint32(0x10074)))
			Expect(prog.InitialSP).To(Equal(program.DefaultStackTop))
		})

		It("should keep every loadable segment with its flags", func() {
			prog, err := program.LoadELF(elfPath)
			Expect(err).NotTo(HaveOccurred())

			Expect(prog.Segments).To(HaveLen(2))
			Expect(prog.Segments[0].Flags).To(Equal(
				program.SegmentFlagExecute | program.SegmentFlagRead))
			Expect(prog.Segments[1].Flags).To(Equal(
				program.SegmentFlagWrite | program.SegmentFlagRead))
			Expect(prog.Segments[1].MemSize).To(Equal(uint32(0x100)))
		})

		It("should place segments in memory on load", func() {
			prog, err := program.LoadELF(elfPath)
			Expect(err).NotTo(HaveOccurred())

			mem := emu.NewMemory()
			Expect(prog.Load(mem)).To(Succeed())

			Expect(mem.Read32(0x10074)).To(Equal(uint32(0x00500093)))
			Expect(mem.Read32(0x11000)).To(Equal(uint32(0x04030201)))
		})
	})

	It("should reject a non-RISC-V machine", func() {
		path := filepath.Join(tempDir, "arm.elf")
		writeELF32(path, 1, machineARM, 0)

		_, err := program.LoadELF(path)

		Expect(err).To(MatchError(program.ErrNotRISCV32))
	})

	It("should fail for a missing file", func() {
		_, err := program.LoadELF(filepath.Join(tempDir, "missing.elf"))
		Expect(err).To(HaveOccurred())
	})
})
