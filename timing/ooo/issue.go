package ooo

// issueDual admits decoded instructions strictly oldest first. The first
// one that cannot get both a reorder buffer slot and a station slot stops
// issue for itself and every younger instruction this cycle.
func (c *Core) issueDual() {
	issued := 0
	for _, instr := range c.issueLatch {
		if c.rob.EmptySlots() == 0 {
			c.stats.ROBFullStalls++
			break
		}

		rs := c.stationFor(instr)
		if rs.EmptySlots() == 0 {
			c.stats.RSFullStalls++
			break
		}

		c.reserve(instr)
		rs.Push(instr, c.operandSource())
		issued++
	}

	c.issueLatch = shift(c.issueLatch, issued)
}

// issueTriple reserves reorder buffer slots in program order but lets a
// younger instruction enter its station ahead of an older one whose station
// is full. The older one is parked: it keeps its slot and is retried next
// cycle. checkDependency keeps a younger instruction behind a parked one it
// conflicts with.
func (c *Core) issueTriple() {
	var parked []*InstrContext
	done := 0

	for _, instr := range c.issueLatch {
		if !instr.reserved {
			if c.rob.EmptySlots() == 0 {
				c.stats.ROBFullStalls++
				break
			}
			c.reserve(instr)
		}
		done++

		if checkDependency(instr, parked) {
			c.stats.DependencyStalls++
			parked = append(parked, instr)
			continue
		}

		rs := c.stationFor(instr)
		if rs.EmptySlots() == 0 {
			c.stats.RSFullStalls++
			parked = append(parked, instr)
			continue
		}

		rs.Push(instr, c.operandSource())
	}

	rest := c.issueLatch[done:]
	latch := make([]*InstrContext, 0, c.params.IssueWidth)
	latch = append(latch, parked...)
	latch = append(latch, rest...)
	c.issueLatch = latch
}
