package ooo

import "fmt"

// CommitTarget is the architectural side of commit: it names the next
// sequence number allowed to retire and performs the writeback.
type CommitTarget interface {
	ExpectedSeq() uint64

	// WriteBack retires instr. It returns false when no further instruction
	// may commit this cycle, e.g. after a misprediction or a halt.
	WriteBack(instr *InstrContext) bool
}

type robSlot struct {
	instr    *InstrContext
	reserved bool
	ready    bool
	epoch    uint32
}

// ReorderBuffer is a circular buffer of in-flight instructions in program
// order. Slots are reserved at issue, filled when execution completes, and
// released at commit or when squashed.
type ReorderBuffer struct {
	slots []robSlot
	head  int
	tail  int
	count int
}

// NewReorderBuffer creates a reorder buffer with the given number of slots.
func NewReorderBuffer(size int) *ReorderBuffer {
	return &ReorderBuffer{slots: make([]robSlot, size)}
}

// Capacity returns the number of slots.
func (r *ReorderBuffer) Capacity() int {
	return len(r.slots)
}

// EmptySlots returns the number of free slots.
func (r *ReorderBuffer) EmptySlots() int {
	return len(r.slots) - r.count
}

// Len returns the number of reserved slots.
func (r *ReorderBuffer) Len() int {
	return r.count
}

// Head returns the index of the oldest slot.
func (r *ReorderBuffer) Head() int {
	return r.head
}

// Tail returns the index of the next slot to reserve.
func (r *ReorderBuffer) Tail() int {
	return r.tail
}

func (r *ReorderBuffer) next(i int) int {
	return (i + 1) % len(r.slots)
}

func (r *ReorderBuffer) prev(i int) int {
	return (i + len(r.slots) - 1) % len(r.slots)
}

// Reserve allocates the tail slot for instr, bumps its epoch, and stores the
// resulting tag in instr. The caller must have checked EmptySlots;
// reserving in a full buffer panics.
func (r *ReorderBuffer) Reserve(instr *InstrContext) Tag {
	if r.count == len(r.slots) {
		panic("ooo: reserve in full reorder buffer")
	}

	s := &r.slots[r.tail]
	s.epoch++
	s.instr = instr
	s.reserved = true
	s.ready = false

	tag := Tag{Index: r.tail, Epoch: s.epoch}
	instr.Tag = tag
	instr.reserved = true

	r.tail = r.next(r.tail)
	r.count++

	return tag
}

// Push marks the completed instr ready to commit. It returns false, and
// changes nothing, if the slot instr reserved has since been squashed.
func (r *ReorderBuffer) Push(instr *InstrContext) bool {
	tag := instr.Tag
	if tag.Index < 0 || tag.Index >= len(r.slots) {
		return false
	}

	s := &r.slots[tag.Index]
	if !s.reserved || s.epoch != tag.Epoch {
		return false
	}

	s.instr = instr
	s.ready = true
	return true
}

// QueryVal returns the result of the producer named by tag if it has
// completed and not yet committed.
func (r *ReorderBuffer) QueryVal(tag Tag) (bool, uint32) {
	if tag.Index < 0 || tag.Index >= len(r.slots) {
		return false, 0
	}

	s := &r.slots[tag.Index]
	if !s.reserved || !s.ready || s.epoch != tag.Epoch {
		return false, 0
	}
	return true, s.instr.Result()
}

// Commit retires up to width ready instructions from the head. A head entry
// older than the target's expected sequence number is left over from a
// squashed path and is dropped without writeback. Commit stops at the first
// entry that is not ready, or when WriteBack returns false. It returns the
// number of instructions written back.
func (r *ReorderBuffer) Commit(width int, target CommitTarget) int {
	committed := 0

	for committed < width && r.count > 0 {
		s := &r.slots[r.head]
		if !s.ready {
			break
		}

		instr := s.instr
		expected := target.ExpectedSeq()

		if instr.Seq < expected {
			r.retireHead()
			continue
		}
		if instr.Seq > expected {
			panic(fmt.Sprintf("ooo: commit of seq %d while expecting %d", instr.Seq, expected))
		}

		r.retireHead()
		committed++

		if !target.WriteBack(instr) {
			break
		}
	}

	return committed
}

func (r *ReorderBuffer) retireHead() {
	s := &r.slots[r.head]
	s.instr = nil
	s.reserved = false
	s.ready = false

	r.head = r.next(r.head)
	r.count--
}

// ResetTailTillIdx discards every entry younger than the one at idx and
// moves the tail just past idx. Discarded slots get a new epoch so results
// still in flight for them are ignored. It returns the number of entries
// discarded.
func (r *ReorderBuffer) ResetTailTillIdx(idx int) int {
	n := 0
	for r.count > 0 && r.prev(r.tail) != idx {
		r.tail = r.prev(r.tail)

		s := &r.slots[r.tail]
		s.epoch++
		s.instr = nil
		s.reserved = false
		s.ready = false

		r.count--
		n++
	}

	if r.count == 0 {
		r.tail = r.head
	}

	return n
}

// HasOlderStore reports whether a store older than seq is still waiting to
// commit.
func (r *ReorderBuffer) HasOlderStore(seq uint64) bool {
	for i, n := r.head, 0; n < r.count; i, n = r.next(i), n+1 {
		instr := r.slots[i].instr
		if instr.Seq >= seq {
			return false
		}
		if instr.Control.MemWrite {
			return true
		}
	}
	return false
}

// Instrs returns a copy of every slot in index order, with bubbles for free
// ones.
func (r *ReorderBuffer) Instrs() []*InstrContext {
	out := make([]*InstrContext, len(r.slots))
	for i, s := range r.slots {
		if !s.reserved {
			out[i] = Bubble()
			continue
		}
		c := *s.instr
		out[i] = &c
	}
	return out
}

// ReadyBits returns the ready-to-commit flag of every slot.
func (r *ReorderBuffer) ReadyBits() []bool {
	out := make([]bool, len(r.slots))
	for i, s := range r.slots {
		out[i] = s.reserved && s.ready
	}
	return out
}

// Reset frees every slot. Epochs keep counting so that no tag handed out
// before the reset is ever valid again.
func (r *ReorderBuffer) Reset() {
	for i := range r.slots {
		s := &r.slots[i]
		if s.reserved {
			s.epoch++
		}
		s.instr = nil
		s.reserved = false
		s.ready = false
	}
	r.head, r.tail, r.count = 0, 0, 0
}
