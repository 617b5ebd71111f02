package ooo

// Params sizes a core.
type Params struct {
	// IssueWidth is the number of instructions fetched, decoded, issued,
	// and committed per cycle.
	IssueWidth int

	// FPLane adds a floating-point unit with its own reservation station.
	// Without it, F-extension computation runs on the integer ALU.
	FPLane bool

	ROBSize   int
	ALURSSize int
	FPURSSize int
	LSURSSize int
}

// DualIssue returns the parameters of the dual-issue core.
func DualIssue() Params {
	return Params{
		IssueWidth: 2,
		ROBSize:    8,
		ALURSSize:  4,
		LSURSSize:  4,
	}
}

// TripleIssue returns the parameters of the triple-issue core.
func TripleIssue() Params {
	return Params{
		IssueWidth: 3,
		FPLane:     true,
		ROBSize:    16,
		ALURSSize:  4,
		FPURSSize:  4,
		LSURSSize:  4,
	}
}
