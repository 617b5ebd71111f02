package program

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
)

// ErrNotRISCV32 is returned for ELF files that are not RV32 executables.
var ErrNotRISCV32 = errors.New("program: not a 32-bit RISC-V ELF file")

// LoadELF parses a RISC-V ELF32 executable. Its PT_LOAD segments become the
// program's Segments; Text and Data are left empty.
func LoadELF(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("%w: class %v", ErrNotRISCV32, f.Class)
	}

	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("%w: machine type %v", ErrNotRISCV32, f.Machine)
	}

	prog := &Program{
		Entry:     uint32(f.Entry),
		DataBase:  DefaultDataBase,
		InitialSP: DefaultStackTop,
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			Addr:    uint32(phdr.Vaddr),
			Data:    data,
			MemSize: uint32(phdr.Memsz),
			Flags:   flags,
		})
	}

	return prog, nil
}
