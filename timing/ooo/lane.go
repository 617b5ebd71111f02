package ooo

// lane is one functional unit. It holds a single instruction for its
// latency, then moves it to the post-execute latch, where the next cycle's
// pull stage hands it to the reorder buffer.
type lane struct {
	unit    Unit
	station *ReservationStation

	busy      *InstrContext
	remaining uint64
	out       *InstrContext
}

func newLane(unit Unit, station *ReservationStation) *lane {
	return &lane{unit: unit, station: station}
}

func (l *lane) idle() bool {
	return l.busy == nil
}

func (l *lane) start(instr *InstrContext, cycles uint64) {
	l.busy = instr
	l.remaining = cycles
}

// advance spends one cycle on the busy instruction.
func (l *lane) advance() {
	if l.busy == nil {
		return
	}

	if l.remaining > 0 {
		l.remaining--
	}
	if l.remaining == 0 && l.out == nil {
		l.out = l.busy
		l.busy = nil
	}
}

func (l *lane) reset() {
	l.busy = nil
	l.remaining = 0
	l.out = nil
}
