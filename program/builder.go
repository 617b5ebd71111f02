package program

import (
	"encoding/binary"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
)

// Builder assembles a Program from encoded instructions and data values.
// The first encoding error is kept and returned by Build.
type Builder struct {
	text     []byte
	data     []DataEntry
	dataBase uint32
	cursor   uint32
	sp       uint32
	err      error
}

// NewBuilder creates a builder whose data segment starts at
// DefaultDataBase.
func NewBuilder() *Builder {
	return &Builder{
		dataBase: DefaultDataBase,
		cursor:   DefaultDataBase,
		sp:       DefaultStackTop,
	}
}

// WithDataBase moves the data segment. It must be called before any data is
// added.
func (b *Builder) WithDataBase(addr uint32) *Builder {
	b.dataBase = addr
	b.cursor = addr
	return b
}

// WithStackTop sets the initial stack pointer of the built program.
func (b *Builder) WithStackTop(sp uint32) *Builder {
	b.sp = sp
	return b
}

// PC returns the address the next instruction will be placed at.
func (b *Builder) PC() uint32 {
	return uint32(len(b.text))
}

// Inst appends one encoded instruction.
func (b *Builder) Inst(op insts.Op, rd, rs1, rs2, rs3 uint8, imm int32) *Builder {
	word, err := insts.Encode(op, rd, rs1, rs2, rs3, imm)
	if err != nil && b.err == nil {
		b.err = err
	}
	return b.Word(word)
}

// Word appends a raw instruction word.
func (b *Builder) Word(word uint32) *Builder {
	b.text = binary.LittleEndian.AppendUint32(b.text, word)
	return b
}

// LoadImm materializes a 32-bit constant in rd with lui+addi.
func (b *Builder) LoadImm(rd uint8, value uint32) *Builder {
	lo := int32(value<<20) >> 20
	hi := value - uint32(lo)
	if hi != 0 {
		b.Inst(insts.OpLUI, rd, 0, 0, 0, int32(hi))
		return b.Inst(insts.OpADDI, rd, rd, 0, 0, lo)
	}
	return b.Inst(insts.OpADDI, rd, 0, 0, 0, lo)
}

// Exit appends an exit syscall returning the value in a0.
func (b *Builder) Exit() *Builder {
	b.Inst(insts.OpADDI, emu.RegA7, 0, 0, 0, int32(emu.SyscallExit))
	return b.Inst(insts.OpECALL, 0, 0, 0, 0, 0)
}

// Data appends a data entry and returns its address.
func (b *Builder) Data(d DataEntry) uint32 {
	b.cursor = alignUp(b.cursor, d.Kind.Align())
	addr := b.cursor
	b.cursor += d.size()
	b.data = append(b.data, d)
	return addr
}

// DataWord appends a word and returns its address.
func (b *Builder) DataWord(v uint32) uint32 {
	return b.Data(DataEntry{Kind: KindWord, Int: uint64(v)})
}

// DataFloat appends a single-precision value and returns its address.
func (b *Builder) DataFloat(v float32) uint32 {
	return b.Data(DataEntry{Kind: KindFloat, Float: float64(v)})
}

// DataString appends a NUL-terminated string and returns its address.
func (b *Builder) DataString(s string) uint32 {
	return b.Data(DataEntry{Kind: KindString, Str: s})
}

// Build returns the assembled program.
func (b *Builder) Build() (*Program, error) {
	if b.err != nil {
		return nil, b.err
	}

	return &Program{
		Text:      append([]byte(nil), b.text...),
		Data:      append([]DataEntry(nil), b.data...),
		DataBase:  b.dataBase,
		InitialSP: b.sp,
	}, nil
}

// MustBuild is like Build but panics on error. Intended for tests.
func (b *Builder) MustBuild() *Program {
	p, err := b.Build()
	if err != nil {
		panic(err)
	}
	return p
}
