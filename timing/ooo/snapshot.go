package ooo

// Latch is a view of one pipeline latch.
type Latch struct {
	Name   string
	Instrs []*InstrContext
}

// StationView is a view of one reservation station.
type StationView struct {
	Name   string
	Unit   Unit
	Instrs []*InstrContext
}

// ROBView is a view of the reorder buffer.
type ROBView struct {
	Instrs []*InstrContext
	Ready  []bool
	Head   int
	Tail   int
	Free   int
}

// Latches returns a copy of every pipeline latch: the two front-end latches
// padded to the issue width with bubbles, then each functional unit's
// execute and post-execute latch.
func (c *Core) Latches() []Latch {
	latches := []Latch{
		{Name: "IF/ID", Instrs: c.padded(c.fetchLatch)},
		{Name: "ID/IS", Instrs: c.padded(c.issueLatch)},
	}

	for _, l := range c.lanes {
		latches = append(latches,
			Latch{Name: "EX " + l.unit.String(), Instrs: []*InstrContext{view(l.busy)}},
			Latch{Name: "EX/ROB " + l.unit.String(), Instrs: []*InstrContext{view(l.out)}},
		)
	}

	return latches
}

func (c *Core) padded(latch []*InstrContext) []*InstrContext {
	out := make([]*InstrContext, c.params.IssueWidth)
	for i := range out {
		if i < len(latch) {
			out[i] = view(latch[i])
		} else {
			out[i] = Bubble()
		}
	}
	return out
}

func view(instr *InstrContext) *InstrContext {
	if instr == nil {
		return Bubble()
	}
	c := *instr
	return &c
}

// Stations returns a copy of every reservation station.
func (c *Core) Stations() []StationView {
	views := make([]StationView, 0, len(c.lanes))
	for _, l := range c.lanes {
		views = append(views, StationView{
			Name:   l.station.Name(),
			Unit:   l.unit,
			Instrs: l.station.Instrs(),
		})
	}
	return views
}

// ROBView returns a copy of the reorder buffer.
func (c *Core) ROBView() ROBView {
	return ROBView{
		Instrs: c.rob.Instrs(),
		Ready:  c.rob.ReadyBits(),
		Head:   c.rob.Head(),
		Tail:   c.rob.Tail(),
		Free:   c.rob.EmptySlots(),
	}
}
