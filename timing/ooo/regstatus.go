package ooo

import (
	"fmt"

	"github.com/sarchlab/rvsim/emu"
)

type regStatusEntry struct {
	valid bool
	tag   Tag
	seq   uint64
}

// RegisterStatus maps every architectural register to the in-flight
// instruction that will write it, if any. A register has at most one
// producer; a newer writer replaces the older mapping.
type RegisterStatus struct {
	x [emu.NumRegs]regStatusEntry
	f [emu.NumRegs]regStatusEntry
}

// NewRegisterStatus creates an empty register status file.
func NewRegisterStatus() *RegisterStatus {
	return &RegisterStatus{}
}

func (s *RegisterStatus) entry(reg uint8, fp bool) *regStatusEntry {
	if int(reg) >= emu.NumRegs {
		panic(fmt.Sprintf("ooo: register index %d out of range", reg))
	}
	if fp {
		return &s.f[reg]
	}
	return &s.x[reg]
}

// Query returns whether reg has an in-flight producer and its tag. x0 never
// has one.
func (s *RegisterStatus) Query(reg uint8, fp bool) (bool, Tag) {
	e := s.entry(reg, fp)
	if !fp && reg == 0 {
		return false, Tag{}
	}
	return e.valid, e.tag
}

// Register records tag as the newest producer of reg.
func (s *RegisterStatus) Register(reg uint8, fp bool, tag Tag, seq uint64) {
	e := s.entry(reg, fp)
	if !fp && reg == 0 {
		return
	}
	*e = regStatusEntry{valid: true, tag: tag, seq: seq}
}

// EndDependency clears the mapping of reg if tag is still its producer.
func (s *RegisterStatus) EndDependency(reg uint8, fp bool, tag Tag) {
	e := s.entry(reg, fp)
	if e.valid && e.tag == tag {
		*e = regStatusEntry{}
	}
}

// Squash clears every mapping whose producer is younger than afterSeq.
func (s *RegisterStatus) Squash(afterSeq uint64) {
	for i := range s.x {
		if s.x[i].valid && s.x[i].seq > afterSeq {
			s.x[i] = regStatusEntry{}
		}
		if s.f[i].valid && s.f[i].seq > afterSeq {
			s.f[i] = regStatusEntry{}
		}
	}
}

// Pending returns the number of registers with a live producer.
func (s *RegisterStatus) Pending() int {
	n := 0
	for i := range s.x {
		if s.x[i].valid {
			n++
		}
		if s.f[i].valid {
			n++
		}
	}
	return n
}

// Reset clears all mappings.
func (s *RegisterStatus) Reset() {
	*s = RegisterStatus{}
}
