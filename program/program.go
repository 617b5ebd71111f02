// Package program describes the image a core executes: machine code placed
// at address 0, a typed data segment laid out from a base address, and any
// extra segments read from an ELF file.
package program

import (
	"errors"
	"fmt"
	"math"

	"github.com/sarchlab/rvsim/emu"
)

// DefaultDataBase is where the data segment starts unless configured.
const DefaultDataBase uint32 = 0x10000000

// DefaultStackTop is the initial sp for programs that do not set one.
const DefaultStackTop uint32 = 0x7FFFFFF0

// ErrOverlap is returned when the text segment runs into the data segment.
var ErrOverlap = errors.New("program: text overlaps data segment")

// DataKind is the type of a data segment entry.
type DataKind uint8

// Data entry kinds.
const (
	KindByte DataKind = iota
	KindHalf
	KindWord
	KindDword
	KindFloat
	KindDouble
	KindString
)

// Size returns the number of bytes an entry of kind k occupies, excluding
// strings, whose size depends on their contents.
func (k DataKind) Size() uint32 {
	switch k {
	case KindByte:
		return 1
	case KindHalf:
		return 2
	case KindWord, KindFloat:
		return 4
	case KindDword, KindDouble:
		return 8
	}
	return 1
}

// Align returns the natural alignment of kind k. Strings are byte aligned.
func (k DataKind) Align() uint32 {
	if k == KindString {
		return 1
	}
	return k.Size()
}

// DataEntry is one value of the data segment.
type DataEntry struct {
	Kind DataKind

	// Int holds byte, half, word, and dword values.
	Int uint64

	// Float holds float and double values.
	Float float64

	// Str holds string contents; a NUL terminator is appended on load.
	Str string
}

func (d DataEntry) size() uint32 {
	if d.Kind == KindString {
		return uint32(len(d.Str)) + 1
	}
	return d.Kind.Size()
}

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Segment is a block of bytes placed at a fixed address.
type Segment struct {
	// Addr is the address where the segment is loaded.
	Addr uint32
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint32
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Program is an assembled RISC-V program.
type Program struct {
	// Text is the machine code, loaded at address 0.
	Text []byte

	// Data is the typed data segment, laid out from DataBase.
	Data     []DataEntry
	DataBase uint32

	// Segments holds additional loadable segments, e.g. from an ELF file.
	Segments []Segment

	// Entry is the address of the first instruction.
	Entry uint32

	// InitialSP is the initial stack pointer.
	InitialSP uint32
}

// Layout returns the address of every data entry, honoring natural
// alignment.
func (p *Program) Layout() []uint32 {
	addrs := make([]uint32, len(p.Data))
	cursor := p.DataBase
	for i, d := range p.Data {
		cursor = alignUp(cursor, d.Kind.Align())
		addrs[i] = cursor
		cursor += d.size()
	}
	return addrs
}

// Load installs the program into memory: text at address 0, the data
// segment from DataBase, then any extra segments.
func (p *Program) Load(mem *emu.Memory) error {
	if len(p.Data) > 0 && uint64(len(p.Text)) > uint64(p.DataBase) {
		return fmt.Errorf("%w: text ends at 0x%x, data starts at 0x%x",
			ErrOverlap, len(p.Text), p.DataBase)
	}

	mem.LoadBytes(0, p.Text)

	for i, addr := range p.Layout() {
		writeEntry(mem, addr, p.Data[i])
	}

	for _, seg := range p.Segments {
		mem.LoadBytes(seg.Addr, seg.Data)
	}

	return nil
}

func writeEntry(mem *emu.Memory, addr uint32, d DataEntry) {
	switch d.Kind {
	case KindByte:
		mem.Write8(addr, uint8(d.Int))
	case KindHalf:
		mem.Write16(addr, uint16(d.Int))
	case KindWord:
		mem.Write32(addr, uint32(d.Int))
	case KindDword:
		mem.Write64(addr, d.Int)
	case KindFloat:
		mem.Write32(addr, math.Float32bits(float32(d.Float)))
	case KindDouble:
		mem.Write64(addr, math.Float64bits(d.Float))
	case KindString:
		mem.LoadBytes(addr, []byte(d.Str))
		mem.Write8(addr+uint32(len(d.Str)), 0)
	}
}

func alignUp(addr, align uint32) uint32 {
	return (addr + align - 1) &^ (align - 1)
}
