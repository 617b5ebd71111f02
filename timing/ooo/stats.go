package ooo

// Stats holds core performance statistics.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// InstrsRetired is the number of instructions committed. Halting
	// instructions are not counted.
	InstrsRetired uint64
	// Branches is the number of branches and jumps committed.
	Branches uint64
	// BranchMispredicts is the number of committed branches whose fetch
	// prediction was wrong.
	BranchMispredicts uint64

	// ROBFullStalls counts issue attempts blocked by a full reorder buffer.
	ROBFullStalls uint64
	// RSFullStalls counts issue attempts blocked by a full reservation
	// station.
	RSFullStalls uint64
	// DependencyStalls counts instructions held behind a parked older
	// instruction of the same issue group.
	DependencyStalls uint64
	// LoadStoreStalls counts cycles a ready load waited for an older store
	// to commit.
	LoadStoreStalls uint64

	// SquashedCompletions counts instructions that finished executing after
	// their reorder buffer slot had been squashed.
	SquashedCompletions uint64
	// Serializations counts pipeline flushes after a system call.
	Serializations uint64
}

// CPI returns the cycles per instruction.
func (s Stats) CPI() float64 {
	if s.InstrsRetired == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.InstrsRetired)
}

// IPC returns the instructions per cycle.
func (s Stats) IPC() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.InstrsRetired) / float64(s.Cycles)
}
