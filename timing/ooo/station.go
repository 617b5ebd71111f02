package ooo

import (
	"fmt"

	"github.com/sarchlab/rvsim/emu"
)

// OperandSource is what a reservation station consults when an instruction
// is pushed: the committed register values, the in-flight producers, and
// the results already sitting in the reorder buffer.
type OperandSource struct {
	Regs   *emu.RegFile
	Status *RegisterStatus
	ROB    *ReorderBuffer
}

// ReservationStation holds issued instructions until their operands are
// available. A nil slot is empty.
type ReservationStation struct {
	name  string
	slots []*InstrContext
}

// NewReservationStation creates a station with the given number of slots.
func NewReservationStation(name string, size int) *ReservationStation {
	return &ReservationStation{
		name:  name,
		slots: make([]*InstrContext, size),
	}
}

// Name returns the station name.
func (rs *ReservationStation) Name() string {
	return rs.name
}

// Capacity returns the number of slots.
func (rs *ReservationStation) Capacity() int {
	return len(rs.slots)
}

// EmptySlots returns the number of empty slots.
func (rs *ReservationStation) EmptySlots() int {
	n := 0
	for _, s := range rs.slots {
		if s == nil {
			n++
		}
	}
	return n
}

// Push resolves the operands of instr and places it in the first empty
// slot. Each used operand is read from the register file when no producer
// is in flight, copied from the reorder buffer when the producer has
// completed, and otherwise left waiting on the producer's tag. If instr
// writes a register, it then becomes that register's producer.
//
// The caller must have checked EmptySlots; pushing into a full station
// panics.
func (rs *ReservationStation) Push(instr *InstrContext, src OperandSource) {
	slot := -1
	for i, s := range rs.slots {
		if s == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		panic(fmt.Sprintf("ooo: push into full reservation station %s", rs.name))
	}

	for n := range instr.Operands {
		op := &instr.Operands[n]
		*op = Operand{}

		reg, fp, used := instr.sourceReg(n)
		if !used {
			continue
		}

		busy, producer := src.Status.Query(reg, fp)
		if !busy {
			op.Value = src.Regs.Read(reg, fp)
			continue
		}

		if ready, value := src.ROB.QueryVal(producer); ready {
			op.Value = value
			continue
		}

		op.Waiting = true
		op.Producer = producer
	}

	if instr.Control.RegWrite {
		src.Status.Register(instr.Inst.Rd, instr.Control.RegWriteToFPR, instr.Tag, instr.Seq)
	}

	instr.updateReady()
	rs.slots[slot] = instr
}

// ListenToBroadcast delivers every message on the bus to the waiting
// operands whose producer tag, epoch included, matches.
func (rs *ReservationStation) ListenToBroadcast(bus *CommonDataBus) {
	msgs := bus.Messages()
	if len(msgs) == 0 {
		return
	}

	for _, instr := range rs.slots {
		if instr == nil || instr.ReadyToExec {
			continue
		}

		for n := range instr.Operands {
			op := &instr.Operands[n]
			if !op.Waiting {
				continue
			}

			for _, m := range msgs {
				if m.Producer != op.Producer {
					continue
				}
				op.Waiting = false
				if !m.ClearDependency {
					op.Value = m.Value
				}
				break
			}
		}

		instr.updateReady()
	}
}

// GetReadyInstr removes and returns the first ready instruction found, in
// slot order rather than age order. It returns nil if none is ready.
func (rs *ReservationStation) GetReadyInstr() *InstrContext {
	for i, instr := range rs.slots {
		if instr != nil && instr.ReadyToExec {
			rs.slots[i] = nil
			return instr
		}
	}
	return nil
}

// GetInorderInstr removes and returns the oldest instruction if it is
// ready. Younger ready instructions never pass it.
func (rs *ReservationStation) GetInorderInstr() *InstrContext {
	i := rs.oldest()
	if i < 0 || !rs.slots[i].ReadyToExec {
		return nil
	}

	instr := rs.slots[i]
	rs.slots[i] = nil
	return instr
}

// PeekInorder returns the oldest instruction without removing it.
func (rs *ReservationStation) PeekInorder() *InstrContext {
	i := rs.oldest()
	if i < 0 {
		return nil
	}
	return rs.slots[i]
}

func (rs *ReservationStation) oldest() int {
	idx := -1
	for i, instr := range rs.slots {
		if instr == nil {
			continue
		}
		if idx < 0 || instr.Seq < rs.slots[idx].Seq {
			idx = i
		}
	}
	return idx
}

// Flush removes every instruction younger than afterSeq and returns how
// many were removed.
func (rs *ReservationStation) Flush(afterSeq uint64) int {
	n := 0
	for i, instr := range rs.slots {
		if instr != nil && instr.Seq > afterSeq {
			rs.slots[i] = nil
			n++
		}
	}
	return n
}

// Instrs returns the slots in order, with bubbles for empty ones.
func (rs *ReservationStation) Instrs() []*InstrContext {
	out := make([]*InstrContext, len(rs.slots))
	for i, instr := range rs.slots {
		if instr == nil {
			out[i] = Bubble()
			continue
		}
		c := *instr
		out[i] = &c
	}
	return out
}

// Reset empties every slot.
func (rs *ReservationStation) Reset() {
	for i := range rs.slots {
		rs.slots[i] = nil
	}
}
